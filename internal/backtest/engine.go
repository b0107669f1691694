// Package backtest implements the deterministic replay engine: rule sets are
// evaluated bar by bar over gateway data, producing per-segment metrics,
// trade logs, and equity curves. Identical requests over identical bars
// produce byte-identical results.
package backtest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/pkg/formulas"
)

const (
	// TrainFraction is the calendar share of the window used for training;
	// the remainder is the held-out test segment.
	TrainFraction = 0.7

	// MinSegmentBars is the minimum usable bars per split segment (train
	// excludes warmup). Shorter segments fail with ErrInsufficientBars.
	MinSegmentBars = 60

	// MaxGapFraction is the tolerated share of missing bars per symbol
	// before the run fails with ErrDataGapExceedsThreshold.
	MaxGapFraction = 0.15

	// barBatch is how many bars the replay loop processes between
	// cancellation checks.
	barBatch = 256
)

// Engine replays rule sets over historical bars. It holds no per-run state;
// one engine serves concurrent runs.
type Engine struct {
	gateway        domain.MarketDataGateway
	minSegmentBars int
	maxGapFraction float64
	log            zerolog.Logger
}

// NewEngine creates an engine reading bars through the given gateway.
func NewEngine(gateway domain.MarketDataGateway, log zerolog.Logger) *Engine {
	return &Engine{
		gateway:        gateway,
		minSegmentBars: MinSegmentBars,
		maxGapFraction: MaxGapFraction,
		log:            log.With().Str("component", "backtest_engine").Logger(),
	}
}

// SetSegmentBounds overrides the segment length floor and gap tolerance.
func (e *Engine) SetSegmentBounds(minBars int, maxGap float64) {
	if minBars > 0 {
		e.minSegmentBars = minBars
	}
	if maxGap > 0 {
		e.maxGapFraction = maxGap
	}
}

// symbolReplay is one symbol's replay output for one segment.
type symbolReplay struct {
	equity  []float64
	returns []float64
	trades  []domain.TradeRecord
}

// Run executes one backtest. The context deadline is the per-run timeout:
// exceeding it returns ErrBacktestTimeout; a plain cancellation returns
// context.Canceled. Either way no partial result escapes.
func (e *Engine) Run(ctx context.Context, req domain.BacktestRequest) (domain.BacktestResult, error) {
	if err := req.RuleSet.Validate(); err != nil {
		return domain.BacktestResult{}, err
	}
	if len(req.Symbols) == 0 {
		return domain.BacktestResult{}, fmt.Errorf("backtest request for strategy %s has no symbols", req.StrategyID)
	}
	step, err := domain.IntervalDuration(req.Interval)
	if err != nil {
		return domain.BacktestResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.BacktestResult{}, timeoutOr(err)
	}

	ppy := domain.PeriodsPerYear(req.Interval)
	warmup := req.RuleSet.MaxWindow() + 1
	trainEnd := req.Start.Add(time.Duration(float64(req.End.Sub(req.Start)) * TrainFraction))

	var (
		trainReplays, testReplays []symbolReplay
		trainTags, testTags       []domain.Regime
	)

	for idx, symbol := range req.Symbols {
		bars, err := e.gateway.GetBars(ctx, symbol, req.Interval, req.Start, req.End)
		if err != nil {
			return domain.BacktestResult{}, timeoutOr(fmt.Errorf("fetching %s bars: %w", symbol, err))
		}

		expected := int(req.End.Sub(req.Start) / step)
		if expected > 0 {
			gap := float64(expected-len(bars)) / float64(expected)
			if gap > e.maxGapFraction {
				return domain.BacktestResult{}, fmt.Errorf(
					"symbol %s missing %.0f%% of %d expected bars: %w",
					symbol, gap*100, expected, domain.ErrDataGapExceedsThreshold)
			}
		}

		tags, err := e.gateway.RegimeTags(ctx, symbol, req.Interval, req.Start, req.End)
		if err != nil {
			return domain.BacktestResult{}, timeoutOr(fmt.Errorf("tagging %s regimes: %w", symbol, err))
		}
		if len(tags) != len(bars) {
			return domain.BacktestResult{}, fmt.Errorf("symbol %s: %d regime tags for %d bars", symbol, len(tags), len(bars))
		}

		split := sort.Search(len(bars), func(i int) bool { return !bars[i].Ts.Before(trainEnd) })
		if split-warmup < e.minSegmentBars {
			return domain.BacktestResult{}, fmt.Errorf(
				"symbol %s train segment has %d usable bars, need %d: %w",
				symbol, split-warmup, e.minSegmentBars, domain.ErrInsufficientBars)
		}
		if len(bars)-split < e.minSegmentBars {
			return domain.BacktestResult{}, fmt.Errorf(
				"symbol %s test segment has %d bars, need %d: %w",
				symbol, len(bars)-split, e.minSegmentBars, domain.ErrInsufficientBars)
		}

		closes := make([]float64, len(bars))
		for i, b := range bars {
			closes[i] = b.Close
		}
		features := computeFeatures(&req.RuleSet, closes, ppy)

		// Features carry across the split: indicators do not reset at the
		// test boundary, they just never see future bars.
		trainRep, err := e.replaySegment(ctx, &req.RuleSet, features, bars, warmup, split, req.CostBps, symbol)
		if err != nil {
			return domain.BacktestResult{}, timeoutOr(err)
		}
		testRep, err := e.replaySegment(ctx, &req.RuleSet, features, bars, split, len(bars), req.CostBps, symbol)
		if err != nil {
			return domain.BacktestResult{}, timeoutOr(err)
		}

		trainReplays = append(trainReplays, trainRep)
		testReplays = append(testReplays, testRep)

		// Regime tags of the first symbol stand for the whole run; callers
		// order symbols by importance.
		if idx == 0 {
			trainTags = tags[warmup:split]
			testTags = tags[split:]
		}
	}

	windowHash := e.combinedWindowHash(req)

	result := domain.BacktestResult{
		RunID:      runID(req.StrategyID, windowHash, req.Seed),
		WindowHash: windowHash,
		Seed:       req.Seed,
		Train:      buildSegment(req.Symbols, trainReplays, trainTags, ppy),
		Test:       buildSegment(req.Symbols, testReplays, testTags, ppy),
	}

	return result, nil
}

// replaySegment walks bars[from:to) applying the rule set: enter when every
// entry predicate holds, exit when any exit predicate fires or the segment
// ends, all-in long-only, per-trade bps costs on entry and exit notional.
func (e *Engine) replaySegment(
	ctx context.Context,
	rs *domain.RuleSet,
	features *featureSet,
	bars []domain.Bar,
	from, to int,
	costBps float64,
	symbol string,
) (symbolReplay, error) {
	rep := symbolReplay{
		equity:  make([]float64, 0, to-from),
		returns: make([]float64, 0, to-from),
	}

	eq := 1.0
	prev := 1.0
	inPos := false
	var units, entryEquity, entryCost float64
	var entryIdx int

	for i := from; i < to; i++ {
		if (i-from)%barBatch == 0 {
			if err := ctx.Err(); err != nil {
				return symbolReplay{}, err
			}
		}

		price := bars[i].Close
		if inPos {
			eq = units * price
		}

		if !inPos {
			// Entries on the final bar are skipped: the trade could never
			// be closed inside the segment.
			if i < to-1 && allFire(rs.Entry, features, i) {
				cost := eq * costBps / 10000
				entryEquity = eq
				entryCost = cost
				eq -= cost
				units = eq / price
				entryIdx = i
				inPos = true
			}
		} else if anyFires(rs.Exit, features, i) || i == to-1 {
			cost := eq * costBps / 10000
			eq -= cost
			rep.trades = append(rep.trades, domain.TradeRecord{
				Symbol:    symbol,
				EntryBar:  entryIdx - from,
				ExitBar:   i - from,
				EntryTime: bars[entryIdx].Ts,
				ExitTime:  bars[i].Ts,
				Entry:     bars[entryIdx].Close,
				Exit:      price,
				PnL:       eq - entryEquity,
				Costs:     entryCost + cost,
			})
			inPos = false
			units = 0
		}

		rep.equity = append(rep.equity, eq)
		rep.returns = append(rep.returns, eq/prev-1)
		prev = eq
	}

	return rep, nil
}

// buildSegment aggregates per-symbol replays into one SegmentResult: equal
// weighted average equity, returns derived from the aggregate, per-symbol
// metric records preserved.
func buildSegment(symbols []string, replays []symbolReplay, tags []domain.Regime, ppy int) domain.SegmentResult {
	maxLen := 0
	for _, r := range replays {
		if len(r.equity) > maxLen {
			maxLen = len(r.equity)
		}
	}

	equity := make([]float64, maxLen)
	for j := 0; j < maxLen; j++ {
		sum := 0.0
		for _, r := range replays {
			// A symbol whose bars end early holds its last equity value.
			if j < len(r.equity) {
				sum += r.equity[j]
			} else {
				sum += r.equity[len(r.equity)-1]
			}
		}
		equity[j] = sum / float64(len(replays))
	}

	returns := make([]float64, maxLen)
	prev := 1.0
	for j, eq := range equity {
		returns[j] = eq/prev - 1
		prev = eq
	}

	points := make([]domain.EquityPoint, maxLen)
	peak := 1.0
	for j, eq := range equity {
		if eq > peak {
			peak = eq
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - eq) / peak
		}
		points[j] = domain.EquityPoint{BarIndex: j, Equity: eq, Drawdown: dd}
	}

	var trades []domain.TradeRecord
	perSymbol := make(map[string]*domain.MetricRecord, len(replays))
	for i, r := range replays {
		trades = append(trades, r.trades...)
		rec := metricsFor(r.returns, r.equity, r.trades, ppy)
		perSymbol[symbols[i]] = &rec
	}

	segTags := make([]domain.Regime, maxLen)
	for j := 0; j < maxLen; j++ {
		switch {
		case j < len(tags):
			segTags[j] = tags[j]
		case len(tags) > 0:
			segTags[j] = tags[len(tags)-1]
		default:
			segTags[j] = domain.RegimeLowVol
		}
	}

	return domain.SegmentResult{
		Metrics:    metricsFor(returns, equity, trades, ppy),
		PerSymbol:  perSymbol,
		Trades:     trades,
		Equity:     points,
		Returns:    returns,
		RegimeTags: segTags,
	}
}

// metricsFor derives the canonical metric record for one return/equity/trade
// series. Fields stay nil where the data cannot support them.
func metricsFor(returns, equity []float64, trades []domain.TradeRecord, ppy int) domain.MetricRecord {
	pnls := make([]float64, len(trades))
	for i, t := range trades {
		pnls[i] = t.PnL
	}

	return domain.MetricRecord{
		TotalTrades:      len(trades),
		WinRate:          formulas.CalculateWinRate(pnls),
		AvgRewardRisk:    formulas.CalculateAvgRewardRisk(pnls),
		Sharpe:           formulas.CalculateSharpeRatio(returns, 0, ppy),
		Sortino:          formulas.CalculateSortinoRatio(returns, 0, 0, ppy),
		MaxDrawdown:      formulas.CalculateMaxDrawdown(equity),
		ProfitFactor:     formulas.CalculateProfitFactor(pnls),
		AnnualizedReturn: formulas.CalculateAnnualizedReturn(equity, ppy),
		LongestDDBars:    formulas.CalculateLongestDrawdownBars(equity),
	}
}

// combinedWindowHash folds the per-symbol window hashes into the run's data
// window identity.
func (e *Engine) combinedWindowHash(req domain.BacktestRequest) string {
	h := sha256.New()
	for _, symbol := range req.Symbols {
		h.Write([]byte(e.gateway.WindowHash(symbol, req.Interval, req.Start, req.End)))
		h.Write([]byte{'|'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// runID derives the deterministic run identifier: the same strategy over the
// same data window with the same seed is the same run.
func runID(strategyID, windowHash string, seed int64) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s|%s|%d", strategyID, windowHash, seed))).String()
}

// timeoutOr maps a deadline expiry to the typed timeout error; any other
// error passes through unchanged.
func timeoutOr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("run exceeded deadline: %w", domain.ErrBacktestTimeout)
	}
	return err
}
