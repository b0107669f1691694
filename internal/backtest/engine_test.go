package backtest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
	testingpkg "github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/testing"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// rampedBars builds a daily series with a known shape: flat at 100, a 2%
// per-bar ramp for 20 bars, a 1% per-bar decline for 10, then flat.
func rampedBars(n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	price := 100.0
	for i := 0; i < n; i++ {
		switch {
		case i >= 50 && i < 70:
			price *= 1.02
		case i >= 70 && i < 80:
			price *= 0.99
		}
		bars[i] = domain.Bar{
			Ts:     testStart.Add(time.Duration(i) * 24 * time.Hour),
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: 1000,
		}
	}
	return bars
}

func momentumRuleSet() domain.RuleSet {
	return domain.RuleSet{
		Entry: []domain.Rule{
			{Indicator: domain.IndicatorMomentum, Comparator: domain.CompGT, Threshold: 0.05, Window: 5},
		},
		Exit: []domain.Rule{
			{Indicator: domain.IndicatorMomentum, Comparator: domain.CompLT, Threshold: 0, Window: 5},
		},
		Params: map[string]float64{"position_size": 1.0},
	}
}

func newTestEngine(gateway domain.MarketDataGateway) *Engine {
	return NewEngine(gateway, zerolog.Nop())
}

func windowRequest(rs domain.RuleSet, symbols []string, days int, costBps float64) domain.BacktestRequest {
	return domain.BacktestRequest{
		StrategyID: "strat-1",
		RuleSet:    rs,
		Symbols:    symbols,
		Interval:   "1d",
		Start:      testStart,
		End:        testStart.Add(time.Duration(days) * 24 * time.Hour),
		CostBps:    costBps,
		Seed:       1,
	}
}

func TestEngineReplaysKnownTrade(t *testing.T) {
	gw := testingpkg.NewMockGateway()
	gw.SetBars("BTC-USD", rampedBars(300))

	engine := newTestEngine(gw)
	result, err := engine.Run(context.Background(), windowRequest(momentumRuleSet(), []string{"BTC-USD"}, 300, 0))
	require.NoError(t, err)

	// Momentum crosses 5% three bars into the ramp and drops below zero four
	// bars into the decline; warmup is window+1 = 6 bars.
	require.Len(t, result.Train.Trades, 1)
	trade := result.Train.Trades[0]
	assert.Equal(t, "BTC-USD", trade.Symbol)
	assert.Equal(t, 46, trade.EntryBar)
	assert.Equal(t, 67, trade.ExitBar)
	assert.InDelta(t, 106.1208, trade.Entry, 0.001)
	assert.Greater(t, trade.PnL, 0.0)
	assert.Equal(t, 0.0, trade.Costs)

	// The flat tail of the series spans the whole test segment: no trades,
	// equity stays at 1.
	assert.Empty(t, result.Test.Trades)
	require.NotEmpty(t, result.Test.Equity)
	assert.Equal(t, 1.0, result.Test.Equity[len(result.Test.Equity)-1].Equity)

	assert.Equal(t, 1, result.Train.Metrics.TotalTrades)
	require.NotNil(t, result.Train.Metrics.WinRate)
	assert.Equal(t, 1.0, *result.Train.Metrics.WinRate)

	// Aligned outputs: one equity point, return, and regime tag per bar.
	assert.Len(t, result.Train.Returns, len(result.Train.Equity))
	assert.Len(t, result.Train.RegimeTags, len(result.Train.Equity))
}

func TestEngineIsDeterministic(t *testing.T) {
	gw := testingpkg.NewMockGateway()
	gw.SetBars("BTC-USD", testingpkg.NewBarSeries(7, testStart, 300))

	rs := testingpkg.NewStrategyFixture("s", "s").RuleSet
	engine := newTestEngine(gw)
	req := windowRequest(rs, []string{"BTC-USD"}, 300, 10)

	first, err := engine.Run(context.Background(), req)
	require.NoError(t, err)
	second, err := engine.Run(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, first, second)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)
}

func TestEngineRunIDBindsStrategyWindowSeed(t *testing.T) {
	gw := testingpkg.NewMockGateway()
	gw.SetBars("BTC-USD", testingpkg.NewBarSeries(7, testStart, 300))

	engine := newTestEngine(gw)
	req := windowRequest(momentumRuleSet(), []string{"BTC-USD"}, 300, 0)

	base, err := engine.Run(context.Background(), req)
	require.NoError(t, err)

	req.Seed = 2
	reseeded, err := engine.Run(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, base.RunID, reseeded.RunID)
	assert.Equal(t, base.WindowHash, reseeded.WindowHash)
	assert.Equal(t, base.Train.Metrics, reseeded.Train.Metrics, "seed never changes replay output")
}

func TestEngineCostsReduceEquity(t *testing.T) {
	gw := testingpkg.NewMockGateway()
	gw.SetBars("BTC-USD", rampedBars(300))
	engine := newTestEngine(gw)

	free, err := engine.Run(context.Background(), windowRequest(momentumRuleSet(), []string{"BTC-USD"}, 300, 0))
	require.NoError(t, err)
	costed, err := engine.Run(context.Background(), windowRequest(momentumRuleSet(), []string{"BTC-USD"}, 300, 50))
	require.NoError(t, err)

	require.Len(t, costed.Train.Trades, 1)
	assert.Greater(t, costed.Train.Trades[0].Costs, 0.0)

	freeFinal := free.Train.Equity[len(free.Train.Equity)-1].Equity
	costedFinal := costed.Train.Equity[len(costed.Train.Equity)-1].Equity
	assert.Less(t, costedFinal, freeFinal)
}

func TestEngineAggregatesAcrossSymbols(t *testing.T) {
	gw := testingpkg.NewMockGateway()
	gw.SetBars("BTC-USD", rampedBars(300))
	gw.SetBars("ETH-USD", rampedBars(300))

	engine := newTestEngine(gw)
	result, err := engine.Run(context.Background(), windowRequest(momentumRuleSet(), []string{"BTC-USD", "ETH-USD"}, 300, 0))
	require.NoError(t, err)

	require.Len(t, result.Train.PerSymbol, 2)
	assert.Equal(t, 2, result.Train.Metrics.TotalTrades)

	// Identical series: the equal-weighted aggregate matches each symbol.
	btc := result.Train.PerSymbol["BTC-USD"]
	require.NotNil(t, btc)
	assert.Equal(t, btc.SharpeOrZero(), result.Train.Metrics.SharpeOrZero())
}

func TestEngineRejectsMalformedRuleSet(t *testing.T) {
	gw := testingpkg.NewMockGateway()
	gw.SetBars("BTC-USD", rampedBars(300))

	rs := momentumRuleSet()
	rs.Exit = nil

	engine := newTestEngine(gw)
	_, err := engine.Run(context.Background(), windowRequest(rs, []string{"BTC-USD"}, 300, 0))
	require.ErrorIs(t, err, domain.ErrMalformedRuleSet)
	assert.Equal(t, 0, gw.Calls(), "malformed rule sets never reach the gateway")
}

func TestEngineInsufficientBars(t *testing.T) {
	gw := testingpkg.NewMockGateway()
	gw.SetBars("BTC-USD", rampedBars(150))

	// 150 days split 70/30 leaves a 45-bar test segment, under the floor.
	engine := newTestEngine(gw)
	_, err := engine.Run(context.Background(), windowRequest(momentumRuleSet(), []string{"BTC-USD"}, 150, 0))
	require.ErrorIs(t, err, domain.ErrInsufficientBars)
}

func TestEngineDataGapExceedsThreshold(t *testing.T) {
	gw := testingpkg.NewMockGateway()
	gw.SetBars("BTC-USD", rampedBars(250)) // 50 of 300 expected bars missing

	engine := newTestEngine(gw)
	_, err := engine.Run(context.Background(), windowRequest(momentumRuleSet(), []string{"BTC-USD"}, 300, 0))
	require.ErrorIs(t, err, domain.ErrDataGapExceedsThreshold)
}

func TestEngineMapsDeadlineToTimeout(t *testing.T) {
	gw := testingpkg.NewMockGateway()
	gw.SetBars("BTC-USD", rampedBars(300))

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	engine := newTestEngine(gw)
	_, err := engine.Run(ctx, windowRequest(momentumRuleSet(), []string{"BTC-USD"}, 300, 0))
	require.ErrorIs(t, err, domain.ErrBacktestTimeout)
}

func TestEngineCancellationReturnsCanceled(t *testing.T) {
	gw := testingpkg.NewMockGateway()
	gw.SetBars("BTC-USD", rampedBars(300))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := newTestEngine(gw)
	_, err := engine.Run(ctx, windowRequest(momentumRuleSet(), []string{"BTC-USD"}, 300, 0))
	require.ErrorIs(t, err, context.Canceled)
}

func TestEnginePropagatesGatewayErrors(t *testing.T) {
	gw := testingpkg.NewMockGateway()
	gw.SetError(domain.ErrUpstreamUnavailable)

	engine := newTestEngine(gw)
	_, err := engine.Run(context.Background(), windowRequest(momentumRuleSet(), []string{"BTC-USD"}, 300, 0))
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}
