// Package devserver is a development stand-in for the trading backend: it
// serves the recent-trades REST endpoint and the websocket event stream
// with synthetic data, so the stream client can be exercised without the
// production platform.
package devserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/sand/crypto-stream-client/internal/entities"
)

const historyCap = 500

// Server holds the synthetic trade history and the connected sessions.
type Server struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	history  []entities.TradeEvent // newest first
	sessions map[*session]struct{}
	pairs    []*pairState
}

type pairState struct {
	Symbol string
	Name   string
	Icon   string
	Price  float64
	Pooled bool
}

// NewServer creates a dev server with a default set of trading pairs.
func NewServer(logger *slog.Logger) *Server {
	return &Server{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessions: make(map[*session]struct{}),
		pairs: []*pairState{
			{Symbol: "BTC", Name: "Bitcoin", Icon: "/icons/btc.png", Price: 64000},
			{Symbol: "ETH", Name: "Ethereum", Icon: "/icons/eth.png", Price: 3400},
			{Symbol: "SOL", Name: "Solana", Icon: "/icons/sol.png", Price: 145, Pooled: true},
			{Symbol: "DOGE", Name: "Dogecoin", Icon: "/icons/doge.png", Price: 0.12, Pooled: true},
		},
	}
}

// RegisterRoutes registers the REST and websocket endpoints.
func (s *Server) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/trades/recent", s.handleRecentTrades).Methods("GET")
	router.HandleFunc("/ws", s.handleStream)
}

// handleRecentTrades serves the seed query: ?limit=<n>&minValue=<n>&coinSymbol=<s>.
func (s *Server) handleRecentTrades(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	minValue := 0.0
	if v := r.URL.Query().Get("minValue"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			http.Error(w, "invalid minValue", http.StatusBadRequest)
			return
		}
		minValue = f
	}

	coinSymbol := r.URL.Query().Get("coinSymbol")

	s.mu.Lock()
	trades := make([]entities.TradeEvent, 0, limit)
	for _, t := range s.history {
		if len(trades) == limit {
			break
		}
		if coinSymbol != "" && t.CoinSymbol != coinSymbol {
			continue
		}
		if t.TotalValue < minValue {
			continue
		}
		trades = append(trades, t)
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"trades": trades}); err != nil {
		s.logger.Error("Error encoding recent trades", "error", err)
	}
}

// handleStream upgrades the connection and runs the session until the
// client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Error upgrading connection", "error", err)
		return
	}

	sess := newSession(s.logger, conn)

	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	s.logger.Info("New stream session", "remote", r.RemoteAddr)

	go sess.writeLoop()
	sess.readLoop()

	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
	sess.close()
	s.logger.Info("Stream session closed", "remote", r.RemoteAddr)
}

// recordTrade prepends a trade to the capped history.
func (s *Server) recordTrade(trade entities.TradeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append([]entities.TradeEvent{trade}, s.history...)
	if len(s.history) > historyCap {
		s.history = s.history[:historyCap]
	}
}

func (s *Server) snapshotSessions() []*session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}

// broadcastTrade fans a trade out to the sessions whose subscriptions
// match: all-trades respecting each session's filter, live-trade for
// every large-trades subscriber when the value clears the threshold.
func (s *Server) broadcastTrade(trade entities.TradeEvent) {
	const largeTradeThreshold = 1000

	for _, sess := range s.snapshotSessions() {
		if sess.wantsAllTrades(trade.CoinSymbol) {
			sess.enqueue(map[string]any{"type": "all-trades", "data": trade})
		}
		if sess.wantsLargeTrades() && trade.TotalValue >= largeTradeThreshold {
			sess.enqueue(map[string]any{"type": "live-trade", "data": trade})
		}
	}
}

// broadcastPrice sends a price update to sessions bound to the coin.
func (s *Server) broadcastPrice(snapshot entities.PriceSnapshot) {
	frame := map[string]any{
		"type":         "price_update",
		"coinSymbol":   snapshot.CoinSymbol,
		"currentPrice": snapshot.CurrentPrice,
		"marketCap":    snapshot.MarketCap,
		"change24h":    snapshot.Change24h,
		"volume24h":    snapshot.Volume24h,
	}
	if snapshot.PoolCoinAmount != nil {
		frame["poolCoinAmount"] = *snapshot.PoolCoinAmount
	}
	if snapshot.PoolBaseCurrencyAmount != nil {
		frame["poolBaseCurrencyAmount"] = *snapshot.PoolBaseCurrencyAmount
	}

	for _, sess := range s.snapshotSessions() {
		if sess.boundCoin() == snapshot.CoinSymbol {
			sess.enqueue(frame)
		}
	}
}

// broadcastPing probes every session; clients answer with pong.
func (s *Server) broadcastPing() {
	for _, sess := range s.snapshotSessions() {
		sess.enqueue(map[string]any{"type": "ping"})
	}
}
