package domain

import "time"

// EvaluationUpdate is the atomic post-evaluation write for one strategy row.
// The repository applies it as a single UPDATE so readers never observe a
// partially evaluated strategy.
type EvaluationUpdate struct {
	Status            Status
	Score             *float64
	TrainMetrics      *MetricRecord
	TestMetrics       *MetricRecord
	PerSymbol         map[string]*MetricRecord
	ExplanationHuman  string
	RiskNote          string
	IsProposable      bool
	Generalized       bool
	EvolutionAttempts int
	DiscardReason     string
	// LastBacktestAt is set when an engine run actually completed; failure
	// paths leave it nil and the stored value untouched.
	LastBacktestAt *time.Time
}
