package devserver

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const sessionSendBuffer = 64

// session is one connected stream client with its subscription state.
// Subscribe/set messages mutate the state in place; a repeated subscribe
// for the same channel replaces the previous one.
type session struct {
	logger *slog.Logger
	conn   *websocket.Conn

	mu        sync.Mutex
	allTrades bool
	filter    *string // all-trades coin filter, nil = unfiltered
	large     bool
	coin      string
	userID    string

	out       chan any
	done      chan struct{}
	closeOnce sync.Once
}

// inboundMessage is the union of all client-to-server frames.
type inboundMessage struct {
	Type       string  `json:"type"`
	Channel    string  `json:"channel,omitempty"`
	CoinSymbol *string `json:"coinSymbol,omitempty"`
	UserID     string  `json:"userId,omitempty"`
}

func newSession(logger *slog.Logger, conn *websocket.Conn) *session {
	return &session{
		logger: logger,
		conn:   conn,
		coin:   "@global",
		out:    make(chan any, sessionSendBuffer),
		done:   make(chan struct{}),
	}
}

// readLoop consumes client frames until the connection drops.
func (s *session) readLoop() {
	for {
		var msg inboundMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "subscribe":
			s.handleSubscribe(msg)

		case "set_coin":
			if msg.CoinSymbol != nil {
				s.mu.Lock()
				s.coin = *msg.CoinSymbol
				s.mu.Unlock()
			}

		case "set_user":
			s.mu.Lock()
			s.userID = msg.UserID
			s.mu.Unlock()

		case "pong":
			// Liveness acknowledged; nothing to track for the dev server.

		default:
			s.logger.Debug("Unhandled client message", "type", msg.Type)
		}
	}
}

func (s *session) handleSubscribe(msg inboundMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Channel {
	case "trades:all":
		s.allTrades = true
		s.filter = msg.CoinSymbol
	case "trades:large":
		s.large = true
	default:
		s.logger.Debug("Unknown channel", "channel", msg.Channel)
	}
}

// writeLoop serializes all outbound frames for this session.
func (s *session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.conn.WriteJSON(frame); err != nil {
				s.conn.Close()
				return
			}
		}
	}
}

// enqueue queues a frame, dropping it when the session is closed or backed
// up. The out channel is never closed: a broadcaster holding a snapshot of
// the session set may still call enqueue after the session is torn down,
// and that must be a silent drop, not a send on a closed channel.
func (s *session) enqueue(frame any) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.out <- frame:
	default:
		s.logger.Warn("Session send buffer full, dropping frame")
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *session) wantsAllTrades(coinSymbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.allTrades {
		return false
	}
	return s.filter == nil || *s.filter == coinSymbol
}

func (s *session) wantsLargeTrades() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.large
}

func (s *session) boundCoin() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coin
}
