// Package domain provides core domain models and types.
package domain

import "time"

// Status represents the lifecycle state of a strategy
type Status string

const (
	// StatusExperiment is the initial state for every strategy
	StatusExperiment Status = "experiment"
	// StatusCandidate marks a strategy that scored above the candidate threshold
	StatusCandidate Status = "candidate"
	// StatusProposable marks a strategy eligible for recommendation
	StatusProposable Status = "proposable"
	// StatusDiscarded is terminal; a discarded strategy is never revived
	StatusDiscarded Status = "discarded"
)

// Valid reports whether the status is a member of the closed set
func (s Status) Valid() bool {
	switch s {
	case StatusExperiment, StatusCandidate, StatusProposable, StatusDiscarded:
		return true
	}
	return false
}

// Regime represents a coarse market regime label
type Regime string

const (
	RegimeBull    Regime = "bull"
	RegimeBear    Regime = "bear"
	RegimeHighVol Regime = "high_vol"
	RegimeLowVol  Regime = "low_vol"
)

// AllRegimes lists the closed regime set in canonical order
func AllRegimes() []Regime {
	return []Regime{RegimeBull, RegimeBear, RegimeHighVol, RegimeLowVol}
}

// MutationKind represents one rule-space edit applied to a parent strategy
type MutationKind string

const (
	MutationParameterJitter     MutationKind = "parameter_jitter"
	MutationRuleSwap            MutationKind = "rule_swap"
	MutationThresholdShift      MutationKind = "threshold_shift"
	MutationWindowResize        MutationKind = "window_resize"
	MutationIndicatorSubstitute MutationKind = "indicator_substitute"
)

// AllMutationKinds lists the closed mutation set in canonical order
func AllMutationKinds() []MutationKind {
	return []MutationKind{
		MutationParameterJitter,
		MutationRuleSwap,
		MutationThresholdShift,
		MutationWindowResize,
		MutationIndicatorSubstitute,
	}
}

// Strategy represents an algorithmic trading strategy and its evaluation state.
// The repository is the single owner of persisted strategy rows; every other
// component works on copies handed to or returned from it.
type Strategy struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	OwnerID     string  `json:"owner_id"`
	AssetClass  string  `json:"asset_class"`
	RuleSet     RuleSet `json:"rule_set"`
	Fingerprint string  `json:"fingerprint"`

	Status            Status                   `json:"status"`
	Score             *float64                 `json:"score,omitempty"`
	TrainMetrics      *MetricRecord            `json:"train_metrics,omitempty"`
	TestMetrics       *MetricRecord            `json:"test_metrics,omitempty"`
	PerSymbol         map[string]*MetricRecord `json:"per_symbol_performance,omitempty"`
	ExplanationHuman  string                   `json:"explanation_human"`
	RiskNote          string                   `json:"risk_note"`
	IsProposable      bool                     `json:"is_proposable"`
	Generalized       bool                     `json:"generalized"`
	EvolutionAttempts int                      `json:"evolution_attempts"`
	DiscardReason     string                   `json:"discard_reason,omitempty"`

	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastBacktestAt *time.Time `json:"last_backtest_at,omitempty"`
}

// Sentiment is a coarse quote sentiment tag derived from recent momentum
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// Bar represents one OHLCV bar aligned to an interval. Ts is the bar open
// time in UTC. Gaps in a series are explicit holes, never interpolated.
type Bar struct {
	Ts     time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Quote represents the latest known quote for a symbol, possibly stale up to
// the gateway's configured TTL.
type Quote struct {
	Symbol           string    `json:"symbol"`
	Price            float64   `json:"price"`
	Change24h        float64   `json:"change_24h"`
	Change7d         float64   `json:"change_7d"`
	AnnualizedVol    float64   `json:"annualized_vol"`
	Volume           float64   `json:"volume"`
	Sentiment        Sentiment `json:"sentiment"`
	Regime           Regime    `json:"regime"`
	RegimeConfidence float64   `json:"regime_confidence"`
	AsOf             time.Time `json:"as_of"`
}
