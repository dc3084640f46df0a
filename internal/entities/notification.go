package entities

// Notification is a user-facing notification synthesized from a
// notification frame. The ID is wall-clock based and only locally unique.
type Notification struct {
	ID        int64       `json:"id"`
	Type      string      `json:"type"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	Read      bool        `json:"read"`
	CreatedAt EpochMillis `json:"createdAt"`
	Amount    *float64    `json:"amount,omitempty"`
}
