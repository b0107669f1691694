package strategies

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
)

// selectColumns is the full column list every reader scans, in schema order.
const selectColumns = `id, name, description, owner_id, asset_class, rule_set,
	fingerprint, status, score, train_metrics, test_metrics, per_symbol,
	explanation_human, risk_note, is_proposable, generalized,
	evolution_attempts, discard_reason, created_at, updated_at, last_backtest_at`

func encodeRuleSet(rs *domain.RuleSet) (string, error) {
	data, err := json.Marshal(rs)
	if err != nil {
		return "", fmt.Errorf("failed to encode rule set: %w", err)
	}
	return string(data), nil
}

func encodeMetrics(m *domain.MetricRecord) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode metrics: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func encodePerSymbol(m map[string]*domain.MetricRecord) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode per-symbol metrics: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// nullNano converts an optional time to the nanosecond integer stored in the
// schema. Nanoseconds keep creation order total even inside one mutation
// round where several children share a wall-clock second.
func nullNano(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStrategy(sc rowScanner) (*domain.Strategy, error) {
	var (
		s            domain.Strategy
		ruleSetJSON  string
		status       string
		score        sql.NullFloat64
		trainJSON    sql.NullString
		testJSON     sql.NullString
		perSymJSON   sql.NullString
		isProposable int
		generalized  int
		createdAt    int64
		updatedAt    int64
		lastBacktest sql.NullInt64
	)

	err := sc.Scan(&s.ID, &s.Name, &s.Description, &s.OwnerID, &s.AssetClass,
		&ruleSetJSON, &s.Fingerprint, &status, &score, &trainJSON, &testJSON,
		&perSymJSON, &s.ExplanationHuman, &s.RiskNote, &isProposable,
		&generalized, &s.EvolutionAttempts, &s.DiscardReason,
		&createdAt, &updatedAt, &lastBacktest)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(ruleSetJSON), &s.RuleSet); err != nil {
		return nil, fmt.Errorf("failed to decode rule set for %s: %w", s.ID, err)
	}
	if trainJSON.Valid {
		s.TrainMetrics = &domain.MetricRecord{}
		if err := json.Unmarshal([]byte(trainJSON.String), s.TrainMetrics); err != nil {
			return nil, fmt.Errorf("failed to decode train metrics for %s: %w", s.ID, err)
		}
	}
	if testJSON.Valid {
		s.TestMetrics = &domain.MetricRecord{}
		if err := json.Unmarshal([]byte(testJSON.String), s.TestMetrics); err != nil {
			return nil, fmt.Errorf("failed to decode test metrics for %s: %w", s.ID, err)
		}
	}
	if perSymJSON.Valid {
		if err := json.Unmarshal([]byte(perSymJSON.String), &s.PerSymbol); err != nil {
			return nil, fmt.Errorf("failed to decode per-symbol metrics for %s: %w", s.ID, err)
		}
	}

	s.Status = domain.Status(status)
	if score.Valid {
		v := score.Float64
		s.Score = &v
	}
	s.IsProposable = isProposable != 0
	s.Generalized = generalized != 0
	s.CreatedAt = time.Unix(0, createdAt).UTC()
	s.UpdatedAt = time.Unix(0, updatedAt).UTC()
	if lastBacktest.Valid {
		t := time.Unix(0, lastBacktest.Int64).UTC()
		s.LastBacktestAt = &t
	}

	return &s, nil
}
