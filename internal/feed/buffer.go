package feed

import (
	"sync"

	"github.com/sand/crypto-stream-client/internal/entities"
)

// Buffer caps for the two trade feeds.
const (
	PreviewCap = 5
	FullCap    = 100
)

// TradeBuffer is a capped, newest-first sequence of trade events. Socket
// pushes prepend through Push; REST seeds replace the whole buffer through
// the BeginLoad/ApplyLoad pair, which attaches a monotonically increasing
// sequence number to each load so that a response that resolves after a
// newer load (or after newer socket pushes under a newer load) is discarded
// instead of overwriting fresher data.
type TradeBuffer struct {
	mu     sync.Mutex
	cap    int
	trades []entities.TradeEvent

	// latest sequence number issued; only a load carrying this number
	// may apply its response
	loadSeq uint64
}

// NewTradeBuffer creates an empty buffer with the given capacity.
func NewTradeBuffer(capacity int) *TradeBuffer {
	return &TradeBuffer{cap: capacity}
}

// Push prepends a trade and truncates to the buffer cap.
func (b *TradeBuffer) Push(trade entities.TradeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trades = append([]entities.TradeEvent{trade}, b.trades...)
	if len(b.trades) > b.cap {
		b.trades = b.trades[:b.cap]
	}
}

// BeginLoad issues a new load sequence number, invalidating any load still
// in flight for this buffer.
func (b *TradeBuffer) BeginLoad() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.loadSeq++
	return b.loadSeq
}

// ApplyLoad replaces the buffer contents wholesale with the given trades,
// truncated to cap. It applies only if seq is still the latest issued load;
// a stale response returns false and leaves the buffer untouched.
func (b *TradeBuffer) ApplyLoad(seq uint64, trades []entities.TradeEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if seq != b.loadSeq {
		return false
	}

	if len(trades) > b.cap {
		trades = trades[:b.cap]
	}
	b.trades = append([]entities.TradeEvent(nil), trades...)
	return true
}

// Clear drops all buffered trades. Loads already in flight stay valid.
func (b *TradeBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trades = nil
}

// Snapshot returns a copy of the buffered trades, newest first.
func (b *TradeBuffer) Snapshot() []entities.TradeEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]entities.TradeEvent(nil), b.trades...)
}

// Len returns the number of buffered trades.
func (b *TradeBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.trades)
}
