// Package evaluation turns backtest results into strategy state: the frozen
// score, the status ladder, per-regime robustness snapshots, and the typed
// failure policy. The evaluator is pure; persistence and MCN writes happen in
// the scheduler from the returned Outcome.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/mcn"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/pkg/formulas"
)

// Outcome is the full instruction set produced by one evaluation: what to
// persist, which MCN snapshots to record, and whether the mutation step runs.
type Outcome struct {
	// Persist carries a full strategy row update when set.
	Persist bool
	Update  domain.EvaluationUpdate

	// IncrementAttempts bumps the attempt counter without touching
	// evaluation state (transient and early data-quality failures).
	IncrementAttempts bool

	// Abort marks infrastructure failures and shutdown: nothing is written
	// for this strategy, previously committed state stays intact.
	Abort bool

	// Snapshots are the per-regime MCN records; present on every
	// non-discarded result.
	Snapshots []mcn.RegimeSnapshot

	// SpawnMutation is set when the strategy just transitioned into
	// candidate with attempt budget remaining.
	SpawnMutation bool

	StatusChanged bool
	OldStatus     domain.Status
	NewStatus     domain.Status

	// FailureKind labels a typed failure for events and logs; empty on
	// success.
	FailureKind string
}

// Evaluator applies the frozen scoring rules. It holds no mutable state.
type Evaluator struct {
	thresholds     Thresholds
	periodsPerYear int
	log            zerolog.Logger
}

// NewEvaluator creates an evaluator for the given thresholds and bar
// interval (the interval fixes the Sharpe annualization of regime
// re-scoring).
func NewEvaluator(thresholds Thresholds, interval string, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		thresholds:     thresholds,
		periodsPerYear: domain.PeriodsPerYear(interval),
		log:            log.With().Str("component", "evaluator").Logger(),
	}
}

// Score computes the frozen score from held-out metrics and novelty. Nil
// metric fields contribute zero, which only ever lowers the score.
func Score(test *domain.MetricRecord, novelty float64) float64 {
	if test == nil {
		return 0
	}

	winRate := 0.0
	if test.WinRate != nil {
		winRate = *test.WinRate
	}
	drawdown := 0.0
	if test.MaxDrawdown != nil {
		drawdown = *test.MaxDrawdown
	}
	profitFactor := 0.0
	if test.ProfitFactor != nil {
		profitFactor = *test.ProfitFactor
	}

	return WeightSharpe*formulas.Clip(test.SharpeOrZero()/SharpeScale, 0, 1) +
		WeightWinRate*winRate +
		WeightDrawdown*formulas.Clip(1-drawdown, 0, 1) +
		WeightProfitFactor*formulas.Clip(profitFactor/ProfitFactorScale, 0, 1) +
		WeightNovelty*formulas.Clip(novelty, 0, 1)
}

// Evaluate scores one completed backtest. now becomes the strategy's
// last_backtest_at; passing it in keeps the evaluator pure.
func (e *Evaluator) Evaluate(strat *domain.Strategy, result *domain.BacktestResult, novelty float64, now time.Time) Outcome {
	trainSharpe := result.Train.Metrics.SharpeOrZero()
	testSharpe := result.Test.Metrics.SharpeOrZero()
	testMetrics := result.Test.Metrics
	trainMetrics := result.Train.Metrics

	snapshots, regimePasses := e.regimeSnapshots(result)
	score := Score(&testMetrics, novelty)
	gap := trainSharpe - testSharpe
	generalized := e.isGeneralized(result.Test.PerSymbol)

	update := domain.EvaluationUpdate{
		Score:             &score,
		TrainMetrics:      &trainMetrics,
		TestMetrics:       &testMetrics,
		PerSymbol:         result.Test.PerSymbol,
		Generalized:       generalized,
		EvolutionAttempts: strat.EvolutionAttempts,
		LastBacktestAt:    &now,
	}

	// Overfitting gate: a large train/test gap or a weak held-out Sharpe is
	// terminal no matter how good the score looks.
	if gap > e.thresholds.MaxOverfitGap {
		update.Status = domain.StatusDiscarded
		update.DiscardReason = fmt.Sprintf("overfitting: train/test sharpe gap %.2f exceeds %.2f", gap, e.thresholds.MaxOverfitGap)
		update.ExplanationHuman = e.buildExplanation(score, &testMetrics, domain.StatusDiscarded, generalized)
		update.RiskNote = e.buildRiskNote(&testMetrics, gap, regimePasses)
		return e.resultOutcome(strat, update, nil, false)
	}
	if testSharpe < e.thresholds.MinTestSharpe {
		update.Status = domain.StatusDiscarded
		update.DiscardReason = fmt.Sprintf("test sharpe %.2f below floor %.2f", testSharpe, e.thresholds.MinTestSharpe)
		update.ExplanationHuman = e.buildExplanation(score, &testMetrics, domain.StatusDiscarded, generalized)
		update.RiskNote = e.buildRiskNote(&testMetrics, gap, regimePasses)
		return e.resultOutcome(strat, update, nil, false)
	}

	status := domain.StatusExperiment
	switch {
	case score >= e.thresholds.ProposableScore &&
		testMetrics.TotalTrades >= e.thresholds.MinTrades &&
		winRateOrZero(&testMetrics) >= e.thresholds.MinWinRate &&
		regimePasses >= e.thresholds.MinRegimePasses:
		status = domain.StatusProposable
	case score >= e.thresholds.CandidateScore:
		status = domain.StatusCandidate
	}

	update.Status = status
	update.IsProposable = status == domain.StatusProposable
	update.ExplanationHuman = e.buildExplanation(score, &testMetrics, status, generalized)
	update.RiskNote = e.buildRiskNote(&testMetrics, gap, regimePasses)

	spawn := status == domain.StatusCandidate &&
		strat.Status != domain.StatusCandidate &&
		strat.EvolutionAttempts < e.thresholds.MaxAttempts

	return e.resultOutcome(strat, update, snapshots, spawn)
}

// EvaluateFailure applies the typed failure policy for a run that produced no
// result.
func (e *Evaluator) EvaluateFailure(strat *domain.Strategy, runErr error) Outcome {
	switch {
	case domain.IsLogic(runErr):
		return Outcome{
			Persist: true,
			Update: domain.EvaluationUpdate{
				Status:            domain.StatusDiscarded,
				DiscardReason:     runErr.Error(),
				EvolutionAttempts: strat.EvolutionAttempts,
			},
			StatusChanged: strat.Status != domain.StatusDiscarded,
			OldStatus:     strat.Status,
			NewStatus:     domain.StatusDiscarded,
			FailureKind:   "logic",
		}

	case domain.IsTransientUpstream(runErr):
		return Outcome{
			IncrementAttempts: true,
			OldStatus:         strat.Status,
			NewStatus:         strat.Status,
			FailureKind:       "transient_upstream",
		}

	case domain.IsDataQuality(runErr),
		errors.Is(runErr, domain.ErrSymbolUnknown),
		errors.Is(runErr, domain.ErrWindowTooLarge):
		next := strat.EvolutionAttempts + 1
		if next >= e.thresholds.MaxAttempts {
			return Outcome{
				Persist: true,
				Update: domain.EvaluationUpdate{
					Status:            domain.StatusDiscarded,
					DiscardReason:     fmt.Sprintf("data quality: %v after %d attempts", runErr, next),
					EvolutionAttempts: next,
				},
				StatusChanged: strat.Status != domain.StatusDiscarded,
				OldStatus:     strat.Status,
				NewStatus:     domain.StatusDiscarded,
				FailureKind:   "data_quality",
			}
		}
		return Outcome{
			IncrementAttempts: true,
			OldStatus:         strat.Status,
			NewStatus:         strat.Status,
			FailureKind:       "data_quality",
		}

	case errors.Is(runErr, context.Canceled):
		return Outcome{Abort: true, OldStatus: strat.Status, NewStatus: strat.Status, FailureKind: "canceled"}

	default:
		return Outcome{Abort: true, OldStatus: strat.Status, NewStatus: strat.Status, FailureKind: "infrastructure"}
	}
}

func (e *Evaluator) resultOutcome(strat *domain.Strategy, update domain.EvaluationUpdate, snapshots []mcn.RegimeSnapshot, spawn bool) Outcome {
	return Outcome{
		Persist:       true,
		Update:        update,
		Snapshots:     snapshots,
		SpawnMutation: spawn,
		StatusChanged: strat.Status != update.Status,
		OldStatus:     strat.Status,
		NewStatus:     update.Status,
	}
}

// regimeSnapshots re-scores the test segment restricted to the bars tagged
// with each regime. Pass requires a positive regime Sharpe and net positive
// returns; a regime with fewer than two observations fails.
func (e *Evaluator) regimeSnapshots(result *domain.BacktestResult) ([]mcn.RegimeSnapshot, int) {
	trainSharpe := result.Train.Metrics.SharpeOrZero()
	testSharpe := result.Test.Metrics.SharpeOrZero()
	tags := result.Test.RegimeTags
	returns := result.Test.Returns

	snapshots := make([]mcn.RegimeSnapshot, 0, 4)
	passes := 0

	for _, regime := range domain.AllRegimes() {
		var regimeReturns []float64
		for i, tag := range tags {
			if tag == regime && i < len(returns) {
				regimeReturns = append(regimeReturns, returns[i])
			}
		}

		snap := mcn.RegimeSnapshot{
			Regime:      regime,
			WindowHash:  result.WindowHash,
			TrainSharpe: trainSharpe,
			TestSharpe:  testSharpe,
		}
		snap.Metrics.TotalTrades = tradesExitingIn(result.Test.Trades, tags, regime)

		if len(regimeReturns) >= 2 {
			sharpe := formulas.CalculateSharpeRatio(regimeReturns, 0, e.periodsPerYear)
			net, grossProfit, grossLoss := sumSplit(regimeReturns)
			snap.Metrics.Sharpe = sharpe
			if grossLoss > 0 {
				pf := grossProfit / grossLoss
				snap.Metrics.ProfitFactor = &pf
			}
			snap.Pass = sharpe != nil && *sharpe > 0 && net > 0
		}

		if snap.Pass {
			passes++
		}
		snapshots = append(snapshots, snap)
	}

	return snapshots, passes
}

func (e *Evaluator) isGeneralized(perSymbol map[string]*domain.MetricRecord) bool {
	profitable := 0
	for _, rec := range perSymbol {
		if rec.Profitable() {
			profitable++
		}
	}
	return profitable >= e.thresholds.MinGeneralizedSymbols
}

func (e *Evaluator) buildExplanation(score float64, test *domain.MetricRecord, status domain.Status, generalized bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scored %.2f on held-out data", score)
	if test.Sharpe != nil {
		fmt.Fprintf(&b, ": Sharpe %.2f", *test.Sharpe)
	}
	fmt.Fprintf(&b, " over %d trades", test.TotalTrades)
	if test.WinRate != nil {
		fmt.Fprintf(&b, ", %.0f%% winners", *test.WinRate*100)
	}
	fmt.Fprintf(&b, ". Status: %s.", status)
	if generalized {
		b.WriteString(" Profitable on multiple symbols independently.")
	}
	return b.String()
}

func (e *Evaluator) buildRiskNote(test *domain.MetricRecord, gap float64, regimePasses int) string {
	var b strings.Builder
	if test.MaxDrawdown != nil {
		fmt.Fprintf(&b, "Max drawdown %.0f%% on the test segment. ", *test.MaxDrawdown*100)
	}
	fmt.Fprintf(&b, "Train/test Sharpe gap %.2f. Profitable in %d of 4 market regimes.", gap, regimePasses)
	return b.String()
}

// tradesExitingIn counts test trades whose exit bar carries the regime tag.
func tradesExitingIn(trades []domain.TradeRecord, tags []domain.Regime, regime domain.Regime) int {
	count := 0
	for _, t := range trades {
		if t.ExitBar >= 0 && t.ExitBar < len(tags) && tags[t.ExitBar] == regime {
			count++
		}
	}
	return count
}

func sumSplit(returns []float64) (net, grossProfit, grossLoss float64) {
	for _, r := range returns {
		net += r
		if r > 0 {
			grossProfit += r
		} else {
			grossLoss += -r
		}
	}
	return net, grossProfit, grossLoss
}

func winRateOrZero(m *domain.MetricRecord) float64 {
	if m == nil || m.WinRate == nil {
		return 0
	}
	return *m.WinRate
}
