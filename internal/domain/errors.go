package domain

import "errors"

// Typed error kinds surfaced by the market data gateway, backtest engine, and
// MCN. Callers match with errors.Is; wrapping with fmt.Errorf("...: %w", err)
// preserves the kind.
var (
	// Transient upstream errors: no state change, attempts incremented,
	// retried on a later tick.
	ErrRateLimited         = errors.New("rate_limited")
	ErrUpstreamUnavailable = errors.New("upstream_unavailable")
	ErrBacktestTimeout     = errors.New("backtest_timeout")

	// Data quality errors: no state change; repeated failures discard the
	// strategy once the attempt limit is reached.
	ErrInsufficientBars        = errors.New("insufficient_bars")
	ErrDataGapExceedsThreshold = errors.New("data_gap_exceeds_threshold")

	// Request errors from the gateway.
	ErrSymbolUnknown  = errors.New("symbol_unknown")
	ErrWindowTooLarge = errors.New("window_too_large")

	// Logic errors: fatal for the strategy, discarded immediately.
	ErrMalformedRuleSet     = errors.New("rule_set_malformed")
	ErrFingerprintCollision = errors.New("fingerprint_collision")

	// MCN lineage errors.
	ErrCycleDetected = errors.New("cycle_detected")
)

// IsTransientUpstream reports whether the error is a transient upstream kind
// that should be retried without touching strategy state.
func IsTransientUpstream(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrBacktestTimeout)
}

// IsDataQuality reports whether the error is a data-quality kind that counts
// toward the attempt limit before discarding.
func IsDataQuality(err error) bool {
	return errors.Is(err, ErrInsufficientBars) ||
		errors.Is(err, ErrDataGapExceedsThreshold)
}

// IsLogic reports whether the error is fatal for the strategy.
func IsLogic(err error) bool {
	return errors.Is(err, ErrMalformedRuleSet) ||
		errors.Is(err, ErrFingerprintCollision)
}
