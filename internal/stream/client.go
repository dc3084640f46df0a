package stream

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sand/crypto-stream-client/internal/entities"
	"github.com/sand/crypto-stream-client/internal/feed"
	"github.com/sand/crypto-stream-client/internal/observe"
)

const (
	defaultReconnectDelay = 5 * time.Second
	handshakeTimeout      = 10 * time.Second
	writeTimeout          = 10 * time.Second
)

// Config configures a stream client.
type Config struct {
	// WebsocketURL is the event-stream endpoint.
	WebsocketURL string
	// APIBaseURL is the REST collaborator serving /trades/recent.
	APIBaseURL string
	// ReconnectDelay is the fixed delay before a reconnect attempt.
	// The backend is single and controlled, so eventual liveness wins
	// over thundering-herd avoidance: no backoff, no jitter, no ceiling.
	ReconnectDelay time.Duration
	// HTTPClient is used for REST seeding. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Notifications receives notification records. Optional.
	Notifications NotificationSink
	// Alerts receives transient alerts. Optional.
	Alerts AlertSink
}

// Client maintains the single persistent event-stream connection:
// lifecycle, fixed-delay reconnection, channel re-establishment, message
// dispatch into the bounded trade buffers and price cache, and reactive
// reloading when the trade filter changes. All session state that the
// browser implementation kept in module-level singletons lives here, so
// multiple clients can coexist and tests can construct them freely.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu             sync.Mutex
	conn           *websocket.Conn
	connecting     bool
	closed         bool
	reconnectTimer *time.Timer
	userID         string
	filter         *string

	writeMu sync.Mutex

	connected *observe.Value[bool]
	loading   *observe.Value[bool]

	preview  *feed.TradeBuffer
	full     *feed.TradeBuffer
	prices   *feed.PriceCache
	registry *Registry

	dispatcher *Dispatcher
	loader     *Loader

	wg sync.WaitGroup
}

// NewClient creates a client. It does not connect; call Connect.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}

	c := &Client{
		cfg:       cfg,
		logger:    logger,
		connected: observe.NewValue(false),
		loading:   observe.NewValue(false),
		preview:   feed.NewTradeBuffer(feed.PreviewCap),
		full:      feed.NewTradeBuffer(feed.FullCap),
		prices:    feed.NewPriceCache(),
	}

	c.registry = NewRegistry(c.send)
	c.loader = NewLoader(logger, cfg.HTTPClient, cfg.APIBaseURL, c.preview, c.full, c.loading)
	c.dispatcher = NewDispatcher(
		logger,
		c.preview, c.full, c.prices,
		c.registry,
		cfg.Notifications, cfg.Alerts,
		func() { c.send(newPong()) },
	)

	return c
}

// Connect opens the stream. It is idempotent: a no-op while a connection
// is open or a dial is in progress. Any pending reconnect timer is
// cleared, and both trade feeds are seeded concurrently with the dial so
// consumers have data before the first push arrives. On success it issues
// the three channel subscriptions and, if a user identity is known, binds
// it with set_user. A dial failure schedules a fixed-delay retry.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil || c.connecting {
		c.mu.Unlock()
		return nil
	}
	c.connecting = true
	c.closed = false
	c.clearReconnectTimerLocked()
	filter := c.filter
	expandedSeq := c.loader.Begin(LoadExpanded)
	previewSeq := c.loader.Begin(LoadPreview)
	c.mu.Unlock()

	// Seeding is never cancelled once started; responses are guarded by
	// the per-buffer load sequence, claimed above in call order.
	go func() { _ = c.loader.Load(context.Background(), LoadExpanded, filter, expandedSeq) }()
	go func() { _ = c.loader.Load(context.Background(), LoadPreview, nil, previewSeq) }()

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.cfg.WebsocketURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.mu.Lock()
		c.connecting = false
		if !c.closed {
			c.scheduleReconnectLocked()
		}
		c.mu.Unlock()
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		// Close raced the dial; honor the manual disconnect.
		c.connecting = false
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.connecting = false
	c.clearReconnectTimerLocked()
	userID := c.userID
	filter = c.filter
	c.mu.Unlock()

	c.logger.Info("Stream connected", "url", c.cfg.WebsocketURL)
	c.connected.Set(true)

	c.registry.SubscribeChannels(filter)
	if userID != "" {
		c.send(newSetUser(userID))
	}

	c.wg.Add(1)
	go c.readLoop(conn)

	return nil
}

// Close terminates the stream for good: it cancels any pending reconnect,
// closes the socket and suppresses the reconnect the resulting read error
// would otherwise schedule. A later Connect starts a fresh session.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.clearReconnectTimerLocked()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		conn.Close()
	}

	c.connected.Set(false)
	c.wg.Wait()
	return nil
}

// readLoop consumes frames until the connection fails or is closed.
// Dispatch runs inline, so frames are handled in strict arrival order.
func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}
		c.dispatcher.Dispatch(data)
	}
}

// handleDisconnect releases the connection and schedules a fixed-delay
// reconnect unless the disconnect was requested through Close.
func (c *Client) handleDisconnect(conn *websocket.Conn, err error) {
	conn.Close()

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	manual := c.closed
	if !manual {
		c.scheduleReconnectLocked()
	}
	c.mu.Unlock()

	c.connected.Set(false)

	if manual {
		c.logger.Info("Stream closed")
		return
	}
	c.logger.Warn("Stream disconnected, reconnect scheduled",
		"error", err, "delay", c.cfg.ReconnectDelay.String())
}

// scheduleReconnectLocked arms the single reconnect timer, replacing any
// pending one. Caller holds c.mu.
func (c *Client) scheduleReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.reconnectTimer = time.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		if err := c.Connect(context.Background()); err != nil {
			c.logger.Warn("Reconnect attempt failed", "error", err)
		}
	})
}

// clearReconnectTimerLocked cancels the pending reconnect timer, if any.
// Caller holds c.mu.
func (c *Client) clearReconnectTimerLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

// send writes one outbound frame. Silently a no-op while disconnected,
// matching the fire-and-continue send semantics of the protocol.
func (c *Client) send(v any) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(v); err != nil {
		c.logger.Error("Failed to send frame", "error", err)
	}
}

// SetTradeFilter changes the coin filter restricting the all-trades feed.
// nil means unfiltered. On an actual change the full buffer is cleared
// immediately so consumers never see stale-filter rows, an expanded reload
// starts with the new filter, and the all-trades subscribe is re-sent when
// connected. A repeated subscribe replaces the previous one on the backend,
// so no unsubscribe precedes it. The reload sequence is claimed under the
// same lock as the filter update, so responses for superseded filters can
// never overwrite the latest filter's rows no matter how their goroutines
// interleave.
func (c *Client) SetTradeFilter(filter *string) {
	c.mu.Lock()
	if filterEqual(c.filter, filter) {
		c.mu.Unlock()
		return
	}
	old := c.filter
	c.filter = filter
	connected := c.conn != nil
	c.full.Clear()
	seq := c.loader.Begin(LoadExpanded)
	c.mu.Unlock()

	c.logger.Info("Trade filter changed",
		"from", filterString(old), "to", filterString(filter))

	c.loading.Set(true)
	go func() { _ = c.loader.Load(context.Background(), LoadExpanded, filter, seq) }()

	if connected {
		c.registry.ResubscribeAllTrades(filter)
	}
}

// TradeFilter returns the current trade filter, nil meaning unfiltered.
func (c *Client) TradeFilter() *string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// SetUser records the user identity and, when connected, binds it to the
// session. Called again on every identity change.
func (c *Client) SetUser(userID string) {
	c.mu.Lock()
	c.userID = userID
	connected := c.conn != nil
	c.mu.Unlock()

	if connected && userID != "" {
		c.send(newSetUser(userID))
	}
}

// SetCoin binds the session's comment/price context to a coin.
func (c *Client) SetCoin(coinSymbol string) {
	c.registry.SetCoin(coinSymbol)
}

// SubscribeToComments registers the comment callback for a coin.
func (c *Client) SubscribeToComments(coinSymbol string, fn CommentHandler) (cancel func()) {
	return c.registry.SubscribeToComments(coinSymbol, fn)
}

// SubscribeToPriceUpdates registers the price callback for a coin.
func (c *Client) SubscribeToPriceUpdates(coinSymbol string, fn PriceHandler) (cancel func()) {
	return c.registry.SubscribeToPriceUpdates(coinSymbol, fn)
}

// LoadInitialTrades seeds one feed on demand, outside the connect path.
func (c *Client) LoadInitialTrades(ctx context.Context, mode LoadMode, filter *string) error {
	return c.loader.Load(ctx, mode, filter, c.loader.Begin(mode))
}

// PreviewTrades returns the preview feed, newest first.
func (c *Client) PreviewTrades() []entities.TradeEvent {
	return c.preview.Snapshot()
}

// AllTrades returns the full feed, newest first.
func (c *Client) AllTrades() []entities.TradeEvent {
	return c.full.Snapshot()
}

// Price returns the latest cached snapshot for a symbol.
func (c *Client) Price(coinSymbol string) (entities.PriceSnapshot, bool) {
	return c.prices.Get(coinSymbol)
}

// Connected exposes the connectivity observable.
func (c *Client) Connected() *observe.Value[bool] {
	return c.connected
}

// Loading exposes the trades-loading observable.
func (c *Client) Loading() *observe.Value[bool] {
	return c.loading
}

// ActiveCoin returns the coin the session context is bound to.
func (c *Client) ActiveCoin() string {
	return c.registry.ActiveCoin()
}

func filterEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func filterString(f *string) string {
	if f == nil {
		return "<all>"
	}
	return *f
}
