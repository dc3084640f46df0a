package devserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.openly.dev/pointy"

	"github.com/sand/crypto-stream-client/internal/entities"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(slog.Default())
	router := mux.NewRouter()
	s.RegisterRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return s, srv
}

func seedTrade(s *Server, symbol string, totalValue float64) {
	s.recordTrade(entities.TradeEvent{
		Type:       entities.TradeBuy,
		Username:   "seed",
		CoinSymbol: symbol,
		TotalValue: totalValue,
		Timestamp:  entities.EpochMillis(time.Now().UnixMilli()),
	})
}

func fetchTrades(t *testing.T, srv *httptest.Server, query string) []entities.TradeEvent {
	t.Helper()
	resp, err := http.Get(srv.URL + "/trades/recent?" + query)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Trades []entities.TradeEvent `json:"trades"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload.Trades
}

func TestRecentTradesFiltering(t *testing.T) {
	s, srv := newTestServer(t)

	seedTrade(s, "BTC", 50)
	seedTrade(s, "ETH", 2500)
	seedTrade(s, "BTC", 9000)

	all := fetchTrades(t, srv, "limit=10")
	require.Len(t, all, 3)
	require.Equal(t, "BTC", all[0].CoinSymbol, "newest first")
	require.Equal(t, 9000.0, all[0].TotalValue)

	btc := fetchTrades(t, srv, "limit=10&coinSymbol=BTC")
	require.Len(t, btc, 2)

	large := fetchTrades(t, srv, "limit=10&minValue=1000")
	require.Len(t, large, 2)
	for _, tr := range large {
		require.GreaterOrEqual(t, tr.TotalValue, 1000.0)
	}

	limited := fetchTrades(t, srv, "limit=2")
	require.Len(t, limited, 2)
}

func TestRecentTradesRejectsBadParams(t *testing.T) {
	_, srv := newTestServer(t)

	for _, query := range []string{"limit=0", "limit=nope", "minValue=-5"} {
		resp, err := http.Get(srv.URL + "/trades/recent?" + query)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
	}
}

func dialStream(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitForSession polls until a connected session satisfies ready. Inbound
// subscribe/set frames land asynchronously, so broadcasts must wait for the
// session state to reflect them before firing.
func waitForSession(t *testing.T, s *Server, ready func(*session) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, sess := range s.snapshotSessions() {
			if ready(sess) {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for session state")
}

// readFrame reads exactly one frame. A gorilla connection must never be
// read again after a read error, so there is no retry here.
func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestStreamAllTradesRespectsFilter(t *testing.T) {
	s, srv := newTestServer(t)
	conn := dialStream(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "subscribe", "channel": "trades:all", "coinSymbol": "ETH",
	}))
	waitForSession(t, s, func(sess *session) bool { return sess.wantsAllTrades("ETH") })

	s.broadcastTrade(entities.TradeEvent{CoinSymbol: "BTC", Username: "skip", TotalValue: 10})
	s.broadcastTrade(entities.TradeEvent{CoinSymbol: "ETH", Username: "hit", TotalValue: 10})

	frame := readFrame(t, conn)
	require.Equal(t, "all-trades", frame["type"])
	data := frame["data"].(map[string]any)
	require.Equal(t, "ETH", data["coinSymbol"])
	require.Equal(t, "hit", data["username"])
}

func TestStreamLargeTradesThreshold(t *testing.T) {
	s, srv := newTestServer(t)
	conn := dialStream(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "subscribe", "channel": "trades:large",
	}))
	waitForSession(t, s, func(sess *session) bool { return sess.wantsLargeTrades() })

	s.broadcastTrade(entities.TradeEvent{CoinSymbol: "BTC", Username: "small", TotalValue: 10})
	s.broadcastTrade(entities.TradeEvent{CoinSymbol: "BTC", Username: "whale", TotalValue: 5000})

	frame := readFrame(t, conn)
	require.Equal(t, "live-trade", frame["type"])
	data := frame["data"].(map[string]any)
	require.Equal(t, "whale", data["username"])
}

func TestStreamPriceUpdatesFollowBoundCoin(t *testing.T) {
	s, srv := newTestServer(t)
	conn := dialStream(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "set_coin", "coinSymbol": "SOL",
	}))
	waitForSession(t, s, func(sess *session) bool { return sess.boundCoin() == "SOL" })

	s.broadcastPrice(entities.PriceSnapshot{CoinSymbol: "BTC", CurrentPrice: 64000})
	s.broadcastPrice(entities.PriceSnapshot{
		CoinSymbol:     "SOL",
		CurrentPrice:   145,
		PoolCoinAmount: pointy.Float64(1_000_000),
	})

	frame := readFrame(t, conn)
	require.Equal(t, "price_update", frame["type"])
	require.Equal(t, "SOL", frame["coinSymbol"])
	require.Equal(t, 145.0, frame["currentPrice"])
	require.Equal(t, 1_000_000.0, frame["poolCoinAmount"])
}

func TestStreamPing(t *testing.T) {
	s, srv := newTestServer(t)
	conn := dialStream(t, srv)

	waitForSession(t, s, func(*session) bool { return true })
	s.broadcastPing()

	frame := readFrame(t, conn)
	require.Equal(t, "ping", frame["type"])
}

func TestBroadcastToDepartedSessionIsDropped(t *testing.T) {
	s, srv := newTestServer(t)
	conn := dialStream(t, srv)
	waitForSession(t, s, func(*session) bool { return true })

	// A broadcaster snapshots the session set, the client goes away, the
	// session is torn down, and the broadcaster only then enqueues.
	stale := s.snapshotSessions()
	require.Len(t, stale, 1)

	conn.Close()
	require.Eventually(t, func() bool { return len(s.snapshotSessions()) == 0 },
		2*time.Second, 5*time.Millisecond)

	require.NotPanics(t, func() {
		stale[0].enqueue(map[string]any{"type": "ping"})
	})
}
