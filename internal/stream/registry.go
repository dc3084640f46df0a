package stream

import (
	"encoding/json"
	"sync"

	"github.com/sand/crypto-stream-client/internal/entities"
)

// CommentHandler receives raw comment frames for a coin.
type CommentHandler func(raw json.RawMessage)

// PriceHandler receives price snapshots for a coin.
type PriceHandler func(snapshot entities.PriceSnapshot)

type commentReg struct {
	seq uint64
	fn  CommentHandler
}

type priceReg struct {
	seq uint64
	fn  PriceHandler
}

// Registry tracks per-coin comment and price callbacks plus the single
// active coin the session's comment/price context is bound to. Registering
// under an already-used coin replaces the previous callback: the registries
// exist so that only the currently viewed coin page receives events, so
// last writer wins is intentional. Comment and price subscription carry no
// wire message of their own; the server-side context follows set_coin.
type Registry struct {
	send func(v any)

	mu         sync.Mutex
	activeCoin string
	comments   map[string]commentReg
	prices     map[string]priceReg
	regSeq     uint64
}

// NewRegistry creates a registry bound to the given outbound send func.
// The active coin starts at the global sentinel.
func NewRegistry(send func(v any)) *Registry {
	return &Registry{
		send:       send,
		activeCoin: GlobalCoin,
		comments:   make(map[string]commentReg),
		prices:     make(map[string]priceReg),
	}
}

// ActiveCoin returns the coin the session context is currently bound to.
func (r *Registry) ActiveCoin() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeCoin
}

// SubscribeChannels issues the three subscribe/set messages that establish
// the session's channels: the all-trades feed with the given filter, the
// always-unfiltered large-trades feed, and set_coin for the active coin.
// The backend treats a repeated subscribe for the same channel as a
// replacement, so no unsubscribe is ever sent.
func (r *Registry) SubscribeChannels(filter *string) {
	r.send(newAllTradesSubscribe(filter))
	r.send(newLargeTradesSubscribe())
	r.send(newSetCoin(r.ActiveCoin()))
}

// ResubscribeAllTrades re-issues only the all-trades subscribe, used when
// the trade filter changes on a live connection.
func (r *Registry) ResubscribeAllTrades(filter *string) {
	r.send(newAllTradesSubscribe(filter))
}

// SetCoin binds the session to a new coin. Switching away from a non-global
// coin drops its price callback; the comment callback stays registered, its
// owner is expected to cancel it when navigating away. The set_coin message
// is sent unconditionally, even if the coin is unchanged.
func (r *Registry) SetCoin(coinSymbol string) {
	r.mu.Lock()
	if r.activeCoin != coinSymbol && r.activeCoin != GlobalCoin {
		delete(r.prices, r.activeCoin)
	}
	r.activeCoin = coinSymbol
	r.mu.Unlock()

	r.send(newSetCoin(coinSymbol))
}

// SubscribeToComments registers the comment callback for a coin, replacing
// any previous one. The cancel func removes the registration unless a later
// registration has already replaced it.
func (r *Registry) SubscribeToComments(coinSymbol string, fn CommentHandler) (cancel func()) {
	r.mu.Lock()
	r.regSeq++
	seq := r.regSeq
	r.comments[coinSymbol] = commentReg{seq: seq, fn: fn}
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		if reg, ok := r.comments[coinSymbol]; ok && reg.seq == seq {
			delete(r.comments, coinSymbol)
		}
		r.mu.Unlock()
	}
}

// SubscribeToPriceUpdates registers the price callback for a coin,
// replacing any previous one.
func (r *Registry) SubscribeToPriceUpdates(coinSymbol string, fn PriceHandler) (cancel func()) {
	r.mu.Lock()
	r.regSeq++
	seq := r.regSeq
	r.prices[coinSymbol] = priceReg{seq: seq, fn: fn}
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		if reg, ok := r.prices[coinSymbol]; ok && reg.seq == seq {
			delete(r.prices, coinSymbol)
		}
		r.mu.Unlock()
	}
}

// commentHandlerForActiveCoin returns the callback registered under the
// current active coin, if any. Comment frames carry no coin identifier.
func (r *Registry) commentHandlerForActiveCoin() (CommentHandler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.comments[r.activeCoin]
	return reg.fn, ok
}

// priceHandlerFor returns the callback registered for the symbol, if any.
func (r *Registry) priceHandlerFor(coinSymbol string) (PriceHandler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.prices[coinSymbol]
	return reg.fn, ok
}
