package evaluation

// =============================================================================
// FROZEN SCORE FORMULA
// =============================================================================
// score = 0.35·clip(test_sharpe/3) + 0.25·test_win_rate
//       + 0.20·clip(1 − test_max_drawdown) + 0.15·clip(test_profit_factor/3)
//       + 0.05·novelty
//
// Stored scores are comparable across runs only while the weights stay fixed.
// Changing any weight or scale is a schema change: historical scores must be
// recomputed or versioned.

const (
	// Main score component weights (must sum to 1.0)
	WeightSharpe       = 0.35 // Risk-adjusted return on the held-out segment
	WeightWinRate      = 0.25 // Share of winning trades
	WeightDrawdown     = 0.20 // Capital preservation (1 - max drawdown)
	WeightProfitFactor = 0.15 // Gross profit over gross loss
	WeightNovelty      = 0.05 // Distance from known strategies (MCN Jaccard)

	// Normalization scales: a Sharpe of 3 or a profit factor of 3 saturates
	// its component.
	SharpeScale       = 3.0
	ProfitFactorScale = 3.0
)

// Thresholds are the frozen evaluation gates. Injected so tests can tighten
// or relax them; production uses DefaultThresholds.
type Thresholds struct {
	// MaxOverfitGap is the largest tolerated train-minus-test Sharpe gap
	// before a strategy is discarded as overfit.
	MaxOverfitGap float64

	// MinTestSharpe is the floor on held-out Sharpe; below it the strategy
	// is discarded regardless of score.
	MinTestSharpe float64

	// ProposableScore and CandidateScore are the status ladder cutoffs.
	ProposableScore float64
	CandidateScore  float64

	// MinTrades, MinWinRate, MinRegimePasses are the extra proposable gates
	// beyond the score.
	MinTrades       int
	MinWinRate      float64
	MinRegimePasses int

	// MaxAttempts bounds evolution attempts; data-quality failures discard
	// the strategy once reached, and mutation stops spawning from it.
	MaxAttempts int

	// MinGeneralizedSymbols is how many symbols must be individually
	// profitable on the test segment for the generalized flag.
	MinGeneralizedSymbols int
}

// DefaultThresholds returns the production gates.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxOverfitGap:         0.6,
		MinTestSharpe:         0.3,
		ProposableScore:       0.70,
		CandidateScore:        0.40,
		MinTrades:             50,
		MinWinRate:            0.55,
		MinRegimePasses:       3,
		MaxAttempts:           5,
		MinGeneralizedSymbols: 2,
	}
}
