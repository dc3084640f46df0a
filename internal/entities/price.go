package entities

// PriceSnapshot is the latest known market state for a coin. The cache
// keeps one snapshot per symbol, last write wins; no history is retained.
// Pool fields are present only for pooled-liquidity assets.
type PriceSnapshot struct {
	CoinSymbol             string   `json:"coinSymbol"`
	CurrentPrice           float64  `json:"currentPrice"`
	MarketCap              float64  `json:"marketCap"`
	Change24h              float64  `json:"change24h"`
	Volume24h              float64  `json:"volume24h"`
	PoolCoinAmount         *float64 `json:"poolCoinAmount,omitempty"`
	PoolBaseCurrencyAmount *float64 `json:"poolBaseCurrencyAmount,omitempty"`
}
