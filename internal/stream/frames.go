package stream

import (
	"encoding/json"
	"fmt"

	"github.com/sand/crypto-stream-client/internal/entities"
)

// Channel names multiplexed over the single connection.
const (
	ChannelAllTrades   = "trades:all"
	ChannelLargeTrades = "trades:large"
)

// GlobalCoin is the sentinel active coin used when no coin page is open.
const GlobalCoin = "@global"

// Inbound frame type discriminants.
const (
	frameLiveTrade    = "live-trade"
	frameAllTrades    = "all-trades"
	framePriceUpdate  = "price_update"
	framePing         = "ping"
	frameNewComment   = "new_comment"
	frameCommentLiked = "comment_liked"
	frameNotification = "notification"
)

// Frame is one decoded inbound message. Exactly one concrete type per
// message kind; frames the backend may add later decode to UnknownFrame.
type Frame interface {
	frame()
}

// TradeScope says which feed a trade frame belongs to.
type TradeScope int

const (
	// ScopeLive is the value-thresholded preview feed ("live-trade").
	ScopeLive TradeScope = iota
	// ScopeAll is the full feed ("all-trades").
	ScopeAll
)

// TradeFrame carries one trade event for either feed.
type TradeFrame struct {
	Scope TradeScope
	Trade entities.TradeEvent
}

// PriceUpdateFrame carries the latest market state for one coin.
type PriceUpdateFrame struct {
	Snapshot entities.PriceSnapshot
}

// PingFrame is the server liveness probe; it expects an immediate pong.
type PingFrame struct{}

// CommentFrame is a comment event for the currently active coin. The
// frame carries no coin identifier; routing is purely by local active-coin
// context, an invariant the backend must uphold.
type CommentFrame struct {
	Kind string // "new_comment" or "comment_liked"
	Raw  json.RawMessage
}

// NotificationFrame is a user notification push.
type NotificationFrame struct {
	NotificationType string               `json:"notificationType"`
	Title            string               `json:"title"`
	Message          string               `json:"message"`
	Timestamp        entities.EpochMillis `json:"timestamp"`
	Amount           *float64             `json:"amount,omitempty"`
}

// UnknownFrame is any frame with an unrecognized type discriminant.
type UnknownFrame struct {
	Type string
	Raw  json.RawMessage
}

func (TradeFrame) frame()        {}
func (PriceUpdateFrame) frame()  {}
func (PingFrame) frame()         {}
func (CommentFrame) frame()      {}
func (NotificationFrame) frame() {}
func (UnknownFrame) frame()      {}

// DecodeFrame parses one inbound text frame into its typed variant.
func DecodeFrame(data []byte) (Frame, error) {
	var envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	switch envelope.Type {
	case frameLiveTrade, frameAllTrades:
		var trade entities.TradeEvent
		if err := json.Unmarshal(envelope.Data, &trade); err != nil {
			return nil, fmt.Errorf("decode %s data: %w", envelope.Type, err)
		}
		scope := ScopeLive
		if envelope.Type == frameAllTrades {
			scope = ScopeAll
		}
		return TradeFrame{Scope: scope, Trade: trade}, nil

	case framePriceUpdate:
		// Price fields sit at the top level of the frame, not under data.
		var snapshot entities.PriceSnapshot
		if err := json.Unmarshal(data, &snapshot); err != nil {
			return nil, fmt.Errorf("decode price_update: %w", err)
		}
		return PriceUpdateFrame{Snapshot: snapshot}, nil

	case framePing:
		return PingFrame{}, nil

	case frameNewComment, frameCommentLiked:
		return CommentFrame{Kind: envelope.Type, Raw: append(json.RawMessage(nil), data...)}, nil

	case frameNotification:
		var notif NotificationFrame
		if err := json.Unmarshal(data, &notif); err != nil {
			return nil, fmt.Errorf("decode notification: %w", err)
		}
		return notif, nil

	default:
		return UnknownFrame{Type: envelope.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

// Outbound frames. The trades:all subscribe always carries the coinSymbol
// key, null meaning unfiltered; the trades:large subscribe never does.

type allTradesSubscribe struct {
	Type       string  `json:"type"`
	Channel    string  `json:"channel"`
	CoinSymbol *string `json:"coinSymbol"`
}

type largeTradesSubscribe struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

type setCoinFrame struct {
	Type       string `json:"type"`
	CoinSymbol string `json:"coinSymbol"`
}

type setUserFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type pongFrame struct {
	Type string `json:"type"`
}

func newAllTradesSubscribe(filter *string) allTradesSubscribe {
	return allTradesSubscribe{Type: "subscribe", Channel: ChannelAllTrades, CoinSymbol: filter}
}

func newLargeTradesSubscribe() largeTradesSubscribe {
	return largeTradesSubscribe{Type: "subscribe", Channel: ChannelLargeTrades}
}

func newSetCoin(coinSymbol string) setCoinFrame {
	return setCoinFrame{Type: "set_coin", CoinSymbol: coinSymbol}
}

func newSetUser(userID string) setUserFrame {
	return setUserFrame{Type: "set_user", UserID: userID}
}

func newPong() pongFrame {
	return pongFrame{Type: "pong"}
}
