package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateSharpeRatio_InsufficientData(t *testing.T) {
	assert.Nil(t, CalculateSharpeRatio([]float64{0.01}, 0.0, 252), "One return is not enough")
	assert.Nil(t, CalculateSharpeRatio(nil, 0.0, 252), "Nil returns should yield nil")
}

func TestCalculateSharpeRatio_ZeroVolatility(t *testing.T) {
	// Constant returns have zero standard deviation
	returns := []float64{0.01, 0.01, 0.01, 0.01}
	assert.Nil(t, CalculateSharpeRatio(returns, 0.0, 252), "Zero volatility should yield nil")
}

func TestCalculateSharpeRatio_PositiveReturns(t *testing.T) {
	returns := []float64{0.01, 0.02, -0.005, 0.015, 0.008}

	sharpe := CalculateSharpeRatio(returns, 0.0, 252)

	require.NotNil(t, sharpe)
	assert.Greater(t, *sharpe, 0.0, "Mostly positive returns should give positive Sharpe")
}

func TestCalculateSortinoRatio_NoDownside(t *testing.T) {
	// All returns above the MAR: downside deviation is undefined
	returns := []float64{0.01, 0.02, 0.03}
	assert.Nil(t, CalculateSortinoRatio(returns, 0.0, 0.0, 252))
}

func TestCalculateSortinoRatio_MixedReturns(t *testing.T) {
	returns := []float64{0.02, -0.01, 0.03, -0.02, 0.01}

	sortino := CalculateSortinoRatio(returns, 0.0, 0.0, 252)

	require.NotNil(t, sortino)
	assert.Greater(t, *sortino, 0.0)
}

func TestCalculateMaxDrawdown(t *testing.T) {
	// Peak at 120, trough at 90: drawdown = (120-90)/120 = 0.25
	prices := []float64{100, 120, 110, 90, 115}

	dd := CalculateMaxDrawdown(prices)

	require.NotNil(t, dd)
	assert.InDelta(t, 0.25, *dd, 1e-9, "Max drawdown should be 25%")
}

func TestCalculateMaxDrawdown_MonotonicRise(t *testing.T) {
	prices := []float64{100, 101, 102, 103}

	dd := CalculateMaxDrawdown(prices)

	require.NotNil(t, dd)
	assert.Equal(t, 0.0, *dd, "Rising series has no drawdown")
}

func TestCalculateLongestDrawdownBars(t *testing.T) {
	// Below the peak of 120 for 3 consecutive bars (110, 90, 115)
	equity := []float64{100, 120, 110, 90, 115, 125, 124}

	bars := CalculateLongestDrawdownBars(equity)

	require.NotNil(t, bars)
	assert.Equal(t, 3, *bars)
}

func TestCalculateAnnualizedReturn(t *testing.T) {
	// 10% over exactly one year of daily bars
	equity := make([]float64, 253)
	for i := range equity {
		equity[i] = 100.0 + 10.0*float64(i)/252.0
	}

	ann := CalculateAnnualizedReturn(equity, 252)

	require.NotNil(t, ann)
	assert.InDelta(t, 0.10, *ann, 1e-9)
}

func TestCalculateWinRate(t *testing.T) {
	pnls := []float64{10, -5, 20, -3, 7}

	wr := CalculateWinRate(pnls)

	require.NotNil(t, wr)
	assert.InDelta(t, 0.6, *wr, 1e-9, "3 of 5 trades are winners")
}

func TestCalculateWinRate_NoTrades(t *testing.T) {
	assert.Nil(t, CalculateWinRate(nil), "No closed trades means no win rate")
}

func TestCalculateProfitFactor(t *testing.T) {
	// Gross profit 30, gross loss 10
	pnls := []float64{10, -5, 20, -5}

	pf := CalculateProfitFactor(pnls)

	require.NotNil(t, pf)
	assert.InDelta(t, 3.0, *pf, 1e-9)
}

func TestCalculateProfitFactor_NoLosses(t *testing.T) {
	pnls := []float64{10, 20}
	assert.Nil(t, CalculateProfitFactor(pnls), "Undefined without losing trades")
}

func TestCalculateAvgRewardRisk(t *testing.T) {
	// Avg win = 15, avg loss = 5
	pnls := []float64{10, 20, -5, -5}

	rr := CalculateAvgRewardRisk(pnls)

	require.NotNil(t, rr)
	assert.InDelta(t, 3.0, *rr, 1e-9)
}

func TestCalculateReturns(t *testing.T) {
	prices := []float64{100, 110, 99}

	returns := CalculateReturns(prices)

	require.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-9)
	assert.InDelta(t, -0.10, returns[1], 1e-9)
}

func TestClip(t *testing.T) {
	assert.Equal(t, 0.0, Clip(-1.2, 0, 1))
	assert.Equal(t, 1.0, Clip(4.2, 0, 1))
	assert.Equal(t, 0.7, Clip(0.7, 0, 1))
}

func TestCalculateRSI_InsufficientData(t *testing.T) {
	closes := []float64{100, 101, 102}
	assert.Nil(t, CalculateRSI(closes, 14))
}

func TestCalculateRSI_TrendingSeries(t *testing.T) {
	// Steadily rising closes push RSI above 50
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100.0 + float64(i)
	}

	rsi := CalculateRSI(closes, 14)

	require.NotNil(t, rsi)
	assert.Greater(t, *rsi, 50.0, "Uptrend should have RSI above midline")
}

func TestCalculateSMA(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}

	sma := CalculateSMA(closes, 5)

	require.NotNil(t, sma)
	assert.InDelta(t, 3.0, *sma, 1e-9)
}
