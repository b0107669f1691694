package domain

import (
	"context"
	"time"
)

// MarketDataGateway defines uniform access to market history and quotes
// across providers. The backtest engine and the evaluator consume this
// interface; the marketdata package implements it. Keeping the contract here
// avoids an import cycle between the engine and the gateway.
type MarketDataGateway interface {
	// GetBars returns ordered bars aligned to the interval for the window.
	// Gaps are explicit holes, never interpolated. Deterministic for a
	// (symbol, interval, window) triple within a snapshot epoch.
	GetBars(ctx context.Context, symbol, interval string, start, end time.Time) ([]Bar, error)

	// GetQuote returns the latest quote, possibly stale up to the gateway TTL.
	GetQuote(ctx context.Context, symbol string) (Quote, error)

	// RegimeTags labels every bar of the window with a market regime.
	// The slice is aligned with GetBars output for the same arguments.
	RegimeTags(ctx context.Context, symbol, interval string, start, end time.Time) ([]Regime, error)

	// WindowHash returns the hash-stable cache key of a data window.
	WindowHash(symbol, interval string, start, end time.Time) string
}

// BarProvider is one upstream market data source. Providers are configured as
// a fixed ordered list; the gateway fails over on rate_limited and
// upstream_unavailable, traversing the list at most once per call.
type BarProvider interface {
	// Name identifies the provider in configuration and logs.
	Name() string

	// GetBars fetches ordered bars, or a typed error.
	GetBars(ctx context.Context, symbol, interval string, start, end time.Time) ([]Bar, error)

	// GetQuote fetches the latest raw quote values for a symbol.
	GetQuote(ctx context.Context, symbol string) (Quote, error)
}
