package devserver

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.openly.dev/pointy"

	"github.com/sand/crypto-stream-client/internal/entities"
)

const (
	tradeInterval = 500 * time.Millisecond
	priceInterval = 2 * time.Second
	pingInterval  = 30 * time.Second

	maxTradeAmount      = 250.0
	priceDriftPercent   = 0.02 // -2% to +2% per update
	marketCapMultiplier = 21_000_000
)

var usernames = []string{"whalewatcher", "satoshi_jr", "moonboy", "dip_buyer", "hodler99", "gasfee_victim"}

// secureFloat64 returns a uniform float64 in [0, 1) from crypto/rand.
func secureFloat64(logger *slog.Logger) float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		logger.Error("Error reading random bytes", "error", err)
		return 0.5
	}
	return float64(binary.BigEndian.Uint64(buf[:])>>11) / float64(1<<53)
}

// Run generates synthetic trades, price updates and pings until the
// context is cancelled. Seed a bit of history first so /trades/recent has
// something to serve immediately.
func (s *Server) Run(ctx context.Context) {
	s.seedHistory()

	tradeTicker := time.NewTicker(tradeInterval)
	defer tradeTicker.Stop()
	priceTicker := time.NewTicker(priceInterval)
	defer priceTicker.Stop()
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	s.logger.Info("Dev server generator started",
		"trade_interval", tradeInterval.String(),
		"price_interval", priceInterval.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Dev server generator stopped")
			return

		case <-tradeTicker.C:
			trade := s.generateTrade()
			s.recordTrade(trade)
			s.broadcastTrade(trade)

		case <-priceTicker.C:
			for _, snapshot := range s.updatePrices() {
				s.broadcastPrice(snapshot)
			}

		case <-pingTicker.C:
			s.broadcastPing()
		}
	}
}

func (s *Server) seedHistory() {
	for i := 0; i < historyCap/2; i++ {
		s.recordTrade(s.generateTrade())
	}
}

// generateTrade builds one random trade against a random pair.
func (s *Server) generateTrade() entities.TradeEvent {
	s.mu.Lock()
	pair := s.pairs[int(secureFloat64(s.logger)*float64(len(s.pairs)))%len(s.pairs)]
	price := pair.Price
	symbol, name, icon := pair.Symbol, pair.Name, pair.Icon
	s.mu.Unlock()

	tradeType := entities.TradeBuy
	switch r := secureFloat64(s.logger); {
	case r < 0.45:
		tradeType = entities.TradeSell
	case r < 0.5:
		tradeType = entities.TradeTransferIn
	case r < 0.55:
		tradeType = entities.TradeTransferOut
	}

	amount := secureFloat64(s.logger) * maxTradeAmount
	username := usernames[int(secureFloat64(s.logger)*float64(len(usernames)))%len(usernames)]

	return entities.TradeEvent{
		Type:       tradeType,
		Username:   username,
		Amount:     amount,
		CoinSymbol: symbol,
		CoinName:   pointy.String(name),
		CoinIcon:   pointy.String(icon),
		TotalValue: amount * price,
		Price:      price,
		Timestamp:  entities.EpochMillis(time.Now().UnixMilli()),
		UserID:     uuid.New().String(),
	}
}

// updatePrices drifts each pair's price and returns the new snapshots.
func (s *Server) updatePrices() []entities.PriceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshots := make([]entities.PriceSnapshot, 0, len(s.pairs))
	for _, pair := range s.pairs {
		drift := pair.Price * (secureFloat64(s.logger)*2 - 1) * priceDriftPercent
		pair.Price = math.Max(pair.Price+drift, 0.000001)

		snapshot := entities.PriceSnapshot{
			CoinSymbol:   pair.Symbol,
			CurrentPrice: pair.Price,
			MarketCap:    pair.Price * marketCapMultiplier,
			Change24h:    (secureFloat64(s.logger)*2 - 1) * 10,
			Volume24h:    secureFloat64(s.logger) * 1_000_000,
		}
		if pair.Pooled {
			snapshot.PoolCoinAmount = pointy.Float64(secureFloat64(s.logger) * 10_000)
			snapshot.PoolBaseCurrencyAmount = pointy.Float64(secureFloat64(s.logger) * 500_000)
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots
}
