package testing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
)

// MockGateway is a mock implementation of domain.MarketDataGateway for
// testing. Bars and regimes are canned per symbol; errors can be injected
// per call.
type MockGateway struct {
	mu      sync.RWMutex
	bars    map[string][]domain.Bar
	regimes map[string][]domain.Regime
	quotes  map[string]domain.Quote
	err     error
	calls   int
}

// NewMockGateway creates a new mock gateway
func NewMockGateway() *MockGateway {
	return &MockGateway{
		bars:    make(map[string][]domain.Bar),
		regimes: make(map[string][]domain.Regime),
		quotes:  make(map[string]domain.Quote),
	}
}

// SetBars sets the bars returned for a symbol
func (m *MockGateway) SetBars(symbol string, bars []domain.Bar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars[symbol] = bars
}

// SetRegimes sets per-bar regime tags returned for a symbol
func (m *MockGateway) SetRegimes(symbol string, regimes []domain.Regime) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regimes[symbol] = regimes
}

// SetQuote sets the quote returned for a symbol
func (m *MockGateway) SetQuote(symbol string, q domain.Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[symbol] = q
}

// SetError sets the error to return from all calls
func (m *MockGateway) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of GetBars calls observed
func (m *MockGateway) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// GetBars implements domain.MarketDataGateway
func (m *MockGateway) GetBars(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.Bar, error) {
	m.mu.Lock()
	m.calls++
	err := m.err
	bars := m.bars[symbol]
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if bars == nil {
		return nil, domain.ErrSymbolUnknown
	}

	var out []domain.Bar
	for _, b := range bars {
		if !b.Ts.Before(start) && b.Ts.Before(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

// GetQuote implements domain.MarketDataGateway
func (m *MockGateway) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return domain.Quote{}, m.err
	}
	q, ok := m.quotes[symbol]
	if !ok {
		return domain.Quote{}, domain.ErrSymbolUnknown
	}
	return q, nil
}

// RegimeTags implements domain.MarketDataGateway. When no canned regimes are
// set for a symbol, every bar in the window is tagged sequentially through
// the four regimes so each regime has coverage.
func (m *MockGateway) RegimeTags(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.Regime, error) {
	bars, err := m.GetBars(ctx, symbol, interval, start, end)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	canned := m.regimes[symbol]
	m.mu.RUnlock()

	if canned != nil {
		if len(canned) < len(bars) {
			return nil, fmt.Errorf("mock regimes shorter than bars: %d < %d", len(canned), len(bars))
		}
		return canned[:len(bars)], nil
	}

	all := domain.AllRegimes()
	tags := make([]domain.Regime, len(bars))
	for i := range bars {
		tags[i] = all[i%len(all)]
	}
	return tags, nil
}

// WindowHash implements domain.MarketDataGateway
func (m *MockGateway) WindowHash(symbol, interval string, start, end time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%d", symbol, interval, start.Unix(), end.Unix())))
	return hex.EncodeToString(sum[:])
}
