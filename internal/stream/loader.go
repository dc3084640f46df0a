package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sand/crypto-stream-client/internal/entities"
	"github.com/sand/crypto-stream-client/internal/feed"
	"github.com/sand/crypto-stream-client/internal/observe"
)

// LoadMode selects which feed an initial load seeds.
type LoadMode int

const (
	// LoadPreview seeds the small value-thresholded preview feed.
	LoadPreview LoadMode = iota
	// LoadExpanded seeds the full feed, honoring the trade filter.
	LoadExpanded
)

const (
	previewLimit    = feed.PreviewCap
	previewMinValue = 1000
	expandedLimit   = feed.FullCap

	recentTradesPath = "/trades/recent"
)

// Loader seeds the trade buffers from the recent-trades REST endpoint so a
// consumer has data before the first server push arrives. Every load runs
// under a per-buffer sequence number so a slow response can never overwrite
// rows delivered by a newer load.
type Loader struct {
	logger  *slog.Logger
	client  *http.Client
	baseURL string
	preview *feed.TradeBuffer
	full    *feed.TradeBuffer
	loading *observe.Value[bool]
}

// NewLoader creates a loader. client may be nil, in which case
// http.DefaultClient is used.
func NewLoader(
	logger *slog.Logger,
	client *http.Client,
	baseURL string,
	preview, full *feed.TradeBuffer,
	loading *observe.Value[bool],
) *Loader {
	if client == nil {
		client = http.DefaultClient
	}

	return &Loader{
		logger:  logger,
		client:  client,
		baseURL: baseURL,
		preview: preview,
		full:    full,
		loading: loading,
	}
}

// Begin claims the next load sequence for the target feed. Callers must
// claim the sequence before spawning the load goroutine: claiming inside
// the goroutine would let two rapid loads race for the latest sequence and
// the slower caller's response could win over the fresher one.
func (l *Loader) Begin(mode LoadMode) uint64 {
	return l.target(mode).BeginLoad()
}

// Load fetches a batch of recent trades and replaces the target buffer
// wholesale, provided seq (claimed via Begin) is still the latest load.
// Preview loads request a small value-thresholded batch and ignore the
// filter; expanded loads request up to the full-buffer cap and honor it.
// On failure the full buffer degrades to empty while the preview buffer is
// left untouched. The loading flag is cleared in all outcomes.
func (l *Loader) Load(ctx context.Context, mode LoadMode, filter *string, seq uint64) error {
	l.loading.Set(true)
	defer l.loading.Set(false)

	target := l.target(mode)

	params := url.Values{}
	if mode == LoadPreview {
		params.Set("limit", strconv.Itoa(previewLimit))
		params.Set("minValue", strconv.Itoa(previewMinValue))
	} else {
		params.Set("limit", strconv.Itoa(expandedLimit))
		if filter != nil {
			params.Set("coinSymbol", *filter)
		}
	}

	trades, err := l.fetch(ctx, params)
	if err != nil {
		l.logger.Error("Failed to load initial trades", "error", err)
		if mode == LoadExpanded {
			// Best-effort degrade to an empty feed, still seq-guarded so
			// a newer load's result is never clobbered.
			target.ApplyLoad(seq, nil)
		}
		return err
	}

	if !target.ApplyLoad(seq, trades) {
		l.logger.Debug("Discarded stale trade load", "seq", seq)
	}

	return nil
}

func (l *Loader) target(mode LoadMode) *feed.TradeBuffer {
	if mode == LoadPreview {
		return l.preview
	}
	return l.full
}

func (l *Loader) fetch(ctx context.Context, params url.Values) ([]entities.TradeEvent, error) {
	endpoint := l.baseURL + recentTradesPath + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch recent trades: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch recent trades: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Trades []entities.TradeEvent `json:"trades"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode recent trades: %w", err)
	}

	return payload.Trades, nil
}
