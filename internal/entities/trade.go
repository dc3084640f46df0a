package entities

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TradeType is the kind of activity a trade event represents.
type TradeType string

const (
	TradeBuy         TradeType = "BUY"
	TradeSell        TradeType = "SELL"
	TradeTransferIn  TradeType = "TRANSFER_IN"
	TradeTransferOut TradeType = "TRANSFER_OUT"
)

// EpochMillis is a timestamp in milliseconds since the Unix epoch.
// The backend is not consistent about the wire representation, so it
// accepts a JSON number (integer or float) or a numeric string.
type EpochMillis int64

func (m *EpochMillis) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*m = 0
		return nil
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		*m = EpochMillis(i)
		return nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	*m = EpochMillis(int64(f))
	return nil
}

func (m EpochMillis) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(m))
}

// TradeEvent represents a single trade pushed over the event stream or
// returned by the recent-trades endpoint. Immutable once constructed.
type TradeEvent struct {
	Type       TradeType   `json:"type"`
	Username   string      `json:"username"`
	Amount     float64     `json:"amount"`
	CoinSymbol string      `json:"coinSymbol"`
	CoinName   *string     `json:"coinName,omitempty"`
	CoinIcon   *string     `json:"coinIcon,omitempty"`
	TotalValue float64     `json:"totalValue"`
	Price      float64     `json:"price"`
	Timestamp  EpochMillis `json:"timestamp"`
	UserID     string      `json:"userId"`
	UserImage  *string     `json:"userImage,omitempty"`
}
