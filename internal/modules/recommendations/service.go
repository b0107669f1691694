// Package recommendations is the read surface higher layers draw proposable
// strategies from. It never mutates strategy state; promotion and demotion
// stay with the evolution pipeline.
package recommendations

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
)

// ProfitRange is the estimated annualized return band of a strategy, taken
// from the spread of its per-symbol held-out results. Historical, not a
// forecast.
type ProfitRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Recommendation is one proposable strategy dressed for the read API.
type Recommendation struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	AssetClass  string               `json:"asset_class"`
	Score       float64              `json:"score"`
	Metrics     *domain.MetricRecord `json:"metrics"`
	Explanation string               `json:"explanation"`
	RiskNote    string               `json:"risk_note"`
	Generalized bool                 `json:"generalized"`
	ProfitRange ProfitRange          `json:"profit_range"`
	Robustness  float64              `json:"robustness"`
}

// proposableSource is the only strategy query this surface needs.
type proposableSource interface {
	TopProposables(limit int) ([]*domain.Strategy, error)
}

// robustnessSource folds stored regime snapshots into a 0-100 score.
type robustnessSource interface {
	Robustness(fingerprint string) (float64, error)
}

// Service assembles recommendations from the strategy store and the memory
// core.
type Service struct {
	strategies proposableSource
	memory     robustnessSource
	log        zerolog.Logger
}

// NewService creates a recommendation service.
func NewService(strategies proposableSource, memory robustnessSource, log zerolog.Logger) *Service {
	return &Service{
		strategies: strategies,
		memory:     memory,
		log:        log.With().Str("service", "recommendations").Logger(),
	}
}

// TopProposables returns up to limit proposable strategies ordered by score
// descending, each with metrics, explanation, risk note, and the estimated
// profit range from held-out per-symbol returns.
func (s *Service) TopProposables(limit int) ([]Recommendation, error) {
	rows, err := s.strategies.TopProposables(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load proposable strategies: %w", err)
	}

	out := make([]Recommendation, 0, len(rows))
	for _, strat := range rows {
		rec := Recommendation{
			ID:          strat.ID,
			Name:        strat.Name,
			AssetClass:  strat.AssetClass,
			Metrics:     strat.TestMetrics,
			Explanation: strat.ExplanationHuman,
			RiskNote:    strat.RiskNote,
			Generalized: strat.Generalized,
			ProfitRange: profitRange(strat),
		}
		if strat.Score != nil {
			rec.Score = *strat.Score
		}

		robustness, err := s.memory.Robustness(strat.Fingerprint)
		if err != nil {
			s.log.Warn().Err(err).Str("strategy", strat.ID).Msg("Failed to compute robustness")
		} else {
			rec.Robustness = robustness
		}

		out = append(out, rec)
	}
	return out, nil
}

// profitRange spans the per-symbol annualized held-out returns. A strategy
// measured on a single symbol (or with no per-symbol records) collapses to
// the aggregate value on both ends.
func profitRange(strat *domain.Strategy) ProfitRange {
	var values []float64
	for _, m := range strat.PerSymbol {
		if m != nil && m.AnnualizedReturn != nil {
			values = append(values, *m.AnnualizedReturn)
		}
	}

	if len(values) == 0 {
		if strat.TestMetrics != nil && strat.TestMetrics.AnnualizedReturn != nil {
			v := *strat.TestMetrics.AnnualizedReturn
			return ProfitRange{Min: v, Max: v}
		}
		return ProfitRange{}
	}

	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return ProfitRange{Min: min, Max: max}
}
