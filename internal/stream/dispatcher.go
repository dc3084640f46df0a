package stream

import (
	"log/slog"
	"time"

	"github.com/sand/crypto-stream-client/internal/entities"
	"github.com/sand/crypto-stream-client/internal/feed"
)

// notificationsRoute is the deep link attached to notification alerts.
const notificationsRoute = "/notifications"

// Dispatcher parses inbound frames and routes them by type. No frame is
// ever fatal: a parse failure is logged and the frame dropped, an unknown
// type is logged and ignored.
type Dispatcher struct {
	logger   *slog.Logger
	preview  *feed.TradeBuffer
	full     *feed.TradeBuffer
	prices   *feed.PriceCache
	registry *Registry

	notifications NotificationSink
	alerts        AlertSink

	// pong sends the heartbeat reply on the owning connection
	pong func()

	// now is wall-clock time, swappable in tests
	now func() time.Time
}

// NewDispatcher wires a dispatcher to its buffers, cache, registry and
// sinks. pong is invoked once per inbound ping.
func NewDispatcher(
	logger *slog.Logger,
	preview, full *feed.TradeBuffer,
	prices *feed.PriceCache,
	registry *Registry,
	notifications NotificationSink,
	alerts AlertSink,
	pong func(),
) *Dispatcher {
	if notifications == nil {
		notifications = NopNotificationSink{}
	}
	if alerts == nil {
		alerts = NopAlertSink{}
	}

	return &Dispatcher{
		logger:        logger,
		preview:       preview,
		full:          full,
		prices:        prices,
		registry:      registry,
		notifications: notifications,
		alerts:        alerts,
		pong:          pong,
		now:           time.Now,
	}
}

// Dispatch handles one inbound text frame. Handlers run on the read loop
// goroutine, so within a single connection frames are processed in strict
// arrival order.
func (d *Dispatcher) Dispatch(data []byte) {
	frame, err := DecodeFrame(data)
	if err != nil {
		d.logger.Error("Failed to process stream message", "error", err)
		return
	}

	switch f := frame.(type) {
	case TradeFrame:
		d.handleTrade(f)

	case PriceUpdateFrame:
		d.handlePriceUpdate(f)

	case PingFrame:
		d.pong()

	case CommentFrame:
		d.handleComment(f)

	case NotificationFrame:
		d.handleNotification(f)

	case UnknownFrame:
		d.logger.Info("Unhandled message type", "type", f.Type)
	}
}

func (d *Dispatcher) handleTrade(f TradeFrame) {
	switch f.Scope {
	case ScopeLive:
		d.preview.Push(f.Trade)
	case ScopeAll:
		d.full.Push(f.Trade)
	}
}

func (d *Dispatcher) handlePriceUpdate(f PriceUpdateFrame) {
	d.prices.Put(f.Snapshot)

	if fn, ok := d.registry.priceHandlerFor(f.Snapshot.CoinSymbol); ok {
		fn(f.Snapshot)
	}
}

// handleComment routes the frame to the callback registered under the
// current active coin only; frames arriving while no matching callback is
// registered are silently discarded.
func (d *Dispatcher) handleComment(f CommentFrame) {
	if fn, ok := d.registry.commentHandlerForActiveCoin(); ok {
		fn(f.Raw)
	}
}

func (d *Dispatcher) handleNotification(f NotificationFrame) {
	notification := entities.Notification{
		ID:        d.now().UnixMilli(),
		Type:      f.NotificationType,
		Title:     f.Title,
		Message:   f.Message,
		Read:      false,
		CreatedAt: f.Timestamp,
		Amount:    f.Amount,
	}

	d.notifications.Push(notification)
	d.notifications.IncrementUnread()

	d.alerts.Alert(Alert{
		Title:   f.Title,
		Message: f.Message,
		Route:   notificationsRoute,
	})
}
