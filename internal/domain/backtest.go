package domain

import "time"

// BacktestRequest describes one deterministic engine run.
type BacktestRequest struct {
	StrategyID string
	RuleSet    RuleSet
	Symbols    []string
	Interval   string
	Start      time.Time
	End        time.Time
	CostBps    float64
	Seed       int64
}

// TradeRecord is one closed trade in the trade log.
type TradeRecord struct {
	Symbol    string    `json:"symbol"`
	EntryBar  int       `json:"entry_bar"`
	ExitBar   int       `json:"exit_bar"`
	EntryTime time.Time `json:"entry_time"`
	ExitTime  time.Time `json:"exit_time"`
	Entry     float64   `json:"entry"`
	Exit      float64   `json:"exit"`
	PnL       float64   `json:"pnl"`
	Costs     float64   `json:"costs"`
}

// EquityPoint is one sample of the aggregated equity curve. Drawdown is the
// running (peak - equity) / peak at this bar.
type EquityPoint struct {
	BarIndex int     `json:"bar_index"`
	Equity   float64 `json:"equity"`
	Drawdown float64 `json:"drawdown"`
}

// SegmentResult groups everything computed for one split segment.
type SegmentResult struct {
	Metrics   MetricRecord             `json:"metrics"`
	PerSymbol map[string]*MetricRecord `json:"per_symbol"`
	Trades    []TradeRecord            `json:"trades"`
	Equity    []EquityPoint            `json:"equity"`
	// Returns are per-bar returns of the aggregated equity curve, kept for
	// regime re-scoring and the estimated profit range.
	Returns []float64 `json:"-"`
	// RegimeTags holds one regime label per bar of this segment, aligned
	// with the aggregated equity curve.
	RegimeTags []Regime `json:"-"`
}

// BacktestResult is the full output of one engine run, transferred by value
// from the engine to the evaluator. RunID is unique per run; WindowHash is
// the hash-stable identity of the data window the run consumed. The result
// carries no wall-clock fields: identical requests over identical bars must
// produce byte-identical results.
type BacktestResult struct {
	RunID      string        `json:"run_id"`
	WindowHash string        `json:"window_hash"`
	Seed       int64         `json:"seed"`
	Train      SegmentResult `json:"train"`
	Test       SegmentResult `json:"test"`
}
