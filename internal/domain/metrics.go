package domain

// MetricRecord is the canonical performance record produced by the backtest
// engine for one segment. The stored field names are a compatibility surface
// consumed by the recommendation API and must not change.
//
// Optional fields are nil when there is insufficient data to compute them.
// A nil field is never substituted with zero.
type MetricRecord struct {
	TotalTrades      int      `json:"total_trades"`
	WinRate          *float64 `json:"win_rate,omitempty"`
	AvgRewardRisk    *float64 `json:"avg_reward_risk,omitempty"`
	Sharpe           *float64 `json:"sharpe,omitempty"`
	Sortino          *float64 `json:"sortino,omitempty"`
	MaxDrawdown      *float64 `json:"max_drawdown,omitempty"`
	ProfitFactor     *float64 `json:"profit_factor,omitempty"`
	AnnualizedReturn *float64 `json:"annualized_return,omitempty"`
	LongestDDBars    *int     `json:"longest_dd_bars,omitempty"`
}

// SharpeOrZero returns the Sharpe ratio or zero when unset. Used where a
// missing Sharpe must behave as the worst case rather than be skipped.
func (m *MetricRecord) SharpeOrZero() float64 {
	if m == nil || m.Sharpe == nil {
		return 0
	}
	return *m.Sharpe
}

// Profitable reports whether the record shows net profitable results:
// a profit factor above 1 with at least one closed trade.
func (m *MetricRecord) Profitable() bool {
	if m == nil || m.ProfitFactor == nil {
		return false
	}
	return m.TotalTrades > 0 && *m.ProfitFactor > 1
}
