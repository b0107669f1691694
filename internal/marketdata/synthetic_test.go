package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
)

func newTestSynthetic() *SyntheticProvider {
	return NewSyntheticProvider(42, []string{"BTC-USD", "ETH-USD"}, zerolog.Nop())
}

func TestSyntheticBarsAreDeterministic(t *testing.T) {
	p := newTestSynthetic()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)

	first, err := p.GetBars(context.Background(), "BTC-USD", "1d", start, end)
	require.NoError(t, err)
	require.Len(t, first, 30)

	second, err := p.GetBars(context.Background(), "BTC-USD", "1d", start, end)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSyntheticOverlappingWindowsAgree(t *testing.T) {
	p := newTestSynthetic()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	wide, err := p.GetBars(context.Background(), "BTC-USD", "1d", start, start.AddDate(0, 0, 60))
	require.NoError(t, err)
	require.Len(t, wide, 60)

	// A window starting later must reproduce the same bars for the shared
	// timestamps: the series is a function of time, not the request.
	narrow, err := p.GetBars(context.Background(), "BTC-USD", "1d", start.AddDate(0, 0, 20), start.AddDate(0, 0, 60))
	require.NoError(t, err)
	require.Len(t, narrow, 40)

	assert.Equal(t, wide[20:], narrow)
}

func TestSyntheticUnknownSymbol(t *testing.T) {
	p := newTestSynthetic()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := p.GetBars(context.Background(), "DOGE-USD", "1d", start, start.AddDate(0, 0, 10))
	require.ErrorIs(t, err, domain.ErrSymbolUnknown)
}

func TestSyntheticSymbolsAndSeedsProduceDistinctSeries(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 10)

	p := newTestSynthetic()
	btc, err := p.GetBars(context.Background(), "BTC-USD", "1d", start, end)
	require.NoError(t, err)
	eth, err := p.GetBars(context.Background(), "ETH-USD", "1d", start, end)
	require.NoError(t, err)
	assert.NotEqual(t, btc[0].Close, eth[0].Close)

	other := NewSyntheticProvider(7, []string{"BTC-USD"}, zerolog.Nop())
	reseeded, err := other.GetBars(context.Background(), "BTC-USD", "1d", start, end)
	require.NoError(t, err)
	assert.NotEqual(t, btc[0].Close, reseeded[0].Close)
}

func TestSyntheticBarsRespectWindowBounds(t *testing.T) {
	p := newTestSynthetic()
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)

	bars, err := p.GetBars(context.Background(), "BTC-USD", "1h", start, end)
	require.NoError(t, err)
	require.Len(t, bars, 48)

	for i, b := range bars {
		assert.False(t, b.Ts.Before(start))
		assert.True(t, b.Ts.Before(end))
		if i > 0 {
			assert.Equal(t, time.Hour, b.Ts.Sub(bars[i-1].Ts))
		}
		assert.Greater(t, b.Close, 0.0)
		assert.GreaterOrEqual(t, b.High, b.Low)
	}
}

func TestSyntheticQuote(t *testing.T) {
	p := newTestSynthetic()

	quote, err := p.GetQuote(context.Background(), "BTC-USD")
	require.NoError(t, err)

	assert.Equal(t, "BTC-USD", quote.Symbol)
	assert.Greater(t, quote.Price, 0.0)
	assert.False(t, quote.AsOf.IsZero())

	_, err = p.GetQuote(context.Background(), "DOGE-USD")
	require.ErrorIs(t, err, domain.ErrSymbolUnknown)
}
