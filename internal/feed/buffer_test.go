package feed

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sand/crypto-stream-client/internal/entities"
)

func makeTrade(i int) entities.TradeEvent {
	return entities.TradeEvent{
		Type:       entities.TradeBuy,
		Username:   "user" + strconv.Itoa(i),
		CoinSymbol: "BTC",
		Amount:     float64(i),
		Timestamp:  entities.EpochMillis(1700000000000 + int64(i)),
		UserID:     strconv.Itoa(i),
	}
}

func TestPushKeepsNewestFirstWithinCap(t *testing.T) {
	buf := NewTradeBuffer(PreviewCap)

	for i := 0; i < 8; i++ {
		buf.Push(makeTrade(i))
	}

	trades := buf.Snapshot()
	require.Len(t, trades, PreviewCap)
	require.Equal(t, "user7", trades[0].Username, "first element must be the most recently ingested trade")
	require.Equal(t, "user3", trades[PreviewCap-1].Username)
}

func TestPushFullFeedCap(t *testing.T) {
	buf := NewTradeBuffer(FullCap)

	for i := 0; i < 120; i++ {
		buf.Push(makeTrade(i))
	}

	trades := buf.Snapshot()
	require.Len(t, trades, FullCap)
	require.Equal(t, "user119", trades[0].Username)
	require.Equal(t, "user20", trades[FullCap-1].Username)
}

func TestPushBelowCap(t *testing.T) {
	buf := NewTradeBuffer(PreviewCap)

	buf.Push(makeTrade(1))
	buf.Push(makeTrade(2))

	trades := buf.Snapshot()
	require.Len(t, trades, 2)
	require.Equal(t, "user2", trades[0].Username)
}

func TestApplyLoadReplacesWholesale(t *testing.T) {
	buf := NewTradeBuffer(FullCap)
	buf.Push(makeTrade(1))

	seq := buf.BeginLoad()
	applied := buf.ApplyLoad(seq, []entities.TradeEvent{makeTrade(10), makeTrade(11)})
	require.True(t, applied)

	trades := buf.Snapshot()
	require.Len(t, trades, 2)
	require.Equal(t, "user10", trades[0].Username, "load result replaces, not merges")
}

func TestApplyLoadDiscardsStaleSequence(t *testing.T) {
	buf := NewTradeBuffer(FullCap)

	stale := buf.BeginLoad()
	fresh := buf.BeginLoad()

	require.True(t, buf.ApplyLoad(fresh, []entities.TradeEvent{makeTrade(2)}))
	require.False(t, buf.ApplyLoad(stale, []entities.TradeEvent{makeTrade(1)}),
		"a response for an older load must not overwrite a newer one")

	trades := buf.Snapshot()
	require.Len(t, trades, 1)
	require.Equal(t, "user2", trades[0].Username)
}

func TestApplyLoadTruncatesToCap(t *testing.T) {
	buf := NewTradeBuffer(PreviewCap)

	batch := make([]entities.TradeEvent, 9)
	for i := range batch {
		batch[i] = makeTrade(i)
	}

	seq := buf.BeginLoad()
	require.True(t, buf.ApplyLoad(seq, batch))
	require.Equal(t, PreviewCap, buf.Len())
}

func TestClear(t *testing.T) {
	buf := NewTradeBuffer(FullCap)
	buf.Push(makeTrade(1))

	buf.Clear()
	require.Zero(t, buf.Len())

	// A load issued before the clear still applies; clearing invalidates
	// contents, not loads.
	seq := buf.BeginLoad()
	buf.Clear()
	require.True(t, buf.ApplyLoad(seq, []entities.TradeEvent{makeTrade(3)}))
	require.Equal(t, 1, buf.Len())
}
