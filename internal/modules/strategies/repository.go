// Package strategies owns durable strategy state. Every status, score, and
// attempt-counter write in the pipeline happens here as one atomic update
// per strategy, so readers never observe a mix of old and new fields.
package strategies

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/database"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
)

// Repository handles strategy database operations on strategies.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new strategy repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "strategies").Logger(),
	}
}

const insertSQL = `
	INSERT INTO strategies (
		id, name, description, owner_id, asset_class, rule_set, fingerprint,
		status, score, train_metrics, test_metrics, per_symbol,
		explanation_human, risk_note, is_proposable, generalized,
		evolution_attempts, discard_reason, created_at, updated_at,
		last_backtest_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING
`

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func execInsert(ex execer, s *domain.Strategy) error {
	ruleSetJSON, err := encodeRuleSet(&s.RuleSet)
	if err != nil {
		return err
	}
	train, err := encodeMetrics(s.TrainMetrics)
	if err != nil {
		return err
	}
	test, err := encodeMetrics(s.TestMetrics)
	if err != nil {
		return err
	}
	perSym, err := encodePerSymbol(s.PerSymbol)
	if err != nil {
		return err
	}

	var score sql.NullFloat64
	if s.Score != nil {
		score = sql.NullFloat64{Float64: *s.Score, Valid: true}
	}

	_, err = ex.Exec(insertSQL,
		s.ID, s.Name, s.Description, s.OwnerID, s.AssetClass, ruleSetJSON,
		s.Fingerprint, string(s.Status), score, train, test, perSym,
		s.ExplanationHuman, s.RiskNote, boolToInt(s.IsProposable),
		boolToInt(s.Generalized), s.EvolutionAttempts, s.DiscardReason,
		s.CreatedAt.UnixNano(), s.UpdatedAt.UnixNano(),
		nullNano(s.LastBacktestAt))
	if err != nil {
		return fmt.Errorf("failed to insert strategy %s: %w", s.ID, err)
	}
	return nil
}

// Insert persists a new strategy row. Inserting an id that already exists is
// a no-op, which makes replayed mutation steps harmless.
func (r *Repository) Insert(s *domain.Strategy) error {
	return execInsert(r.db, s)
}

// InsertChildren persists one mutation round in a single transaction, so a
// crash mid-round never leaves a partial litter.
func (r *Repository) InsertChildren(children []*domain.Strategy) error {
	if len(children) == 0 {
		return nil
	}
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		for _, child := range children {
			if err := execInsert(tx, child); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert %d children: %w", len(children), err)
	}
	return nil
}

// GetByID retrieves a strategy by id. Returns nil if not found (not an error).
func (r *Repository) GetByID(id string) (*domain.Strategy, error) {
	row := r.db.QueryRow("SELECT "+selectColumns+" FROM strategies WHERE id = ?", id)
	s, err := scanStrategy(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get strategy %s: %w", id, err)
	}
	return s, nil
}

// GetByFingerprint retrieves the oldest strategy carrying a fingerprint.
// Returns nil if none exists.
func (r *Repository) GetByFingerprint(fingerprint string) (*domain.Strategy, error) {
	row := r.db.QueryRow(
		"SELECT "+selectColumns+" FROM strategies WHERE fingerprint = ? ORDER BY created_at ASC, id ASC LIMIT 1",
		fingerprint)
	s, err := scanStrategy(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get strategy by fingerprint: %w", err)
	}
	return s, nil
}

// SelectForEvolution draws the next batch for the scheduler in priority
// order, as one deterministic query:
//
//  1. never backtested, oldest creation first
//  2. last backtest older than staleBefore, oldest backtest first
//  3. experiments, oldest creation first
//  4. candidates and proposables, oldest backtest first
//
// Discarded strategies never come back. Ties inside a tier break on id so
// the order is total.
func (r *Repository) SelectForEvolution(limit int, staleBefore time.Time) ([]*domain.Strategy, error) {
	if limit <= 0 {
		return nil, nil
	}

	cutoff := staleBefore.UnixNano()
	rows, err := r.db.Query(`
		SELECT `+selectColumns+` FROM strategies
		WHERE status != ?
		ORDER BY
			CASE
				WHEN last_backtest_at IS NULL THEN 0
				WHEN last_backtest_at < ? THEN 1
				WHEN status = ? THEN 2
				ELSE 3
			END ASC,
			CASE
				WHEN last_backtest_at IS NULL THEN created_at
				WHEN last_backtest_at < ? THEN last_backtest_at
				WHEN status = ? THEN created_at
				ELSE last_backtest_at
			END ASC,
			id ASC
		LIMIT ?
	`, string(domain.StatusDiscarded), cutoff, string(domain.StatusExperiment),
		cutoff, string(domain.StatusExperiment), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select strategies for evolution: %w", err)
	}
	defer rows.Close()

	return collect(rows)
}

// ApplyEvaluation writes one evaluation outcome as a single atomic update.
// Failure outcomes carry no metrics; COALESCE keeps the last completed run's
// measurements on the row instead of blanking them.
func (r *Repository) ApplyEvaluation(id string, update *domain.EvaluationUpdate) error {
	train, err := encodeMetrics(update.TrainMetrics)
	if err != nil {
		return err
	}
	test, err := encodeMetrics(update.TestMetrics)
	if err != nil {
		return err
	}
	perSym, err := encodePerSymbol(update.PerSymbol)
	if err != nil {
		return err
	}

	var score sql.NullFloat64
	if update.Score != nil {
		score = sql.NullFloat64{Float64: *update.Score, Valid: true}
	}

	res, err := r.db.Exec(`
		UPDATE strategies SET
			status = ?,
			score = COALESCE(?, score),
			train_metrics = COALESCE(?, train_metrics),
			test_metrics = COALESCE(?, test_metrics),
			per_symbol = COALESCE(?, per_symbol),
			explanation_human = COALESCE(NULLIF(?, ''), explanation_human),
			risk_note = COALESCE(NULLIF(?, ''), risk_note),
			is_proposable = ?,
			generalized = ?,
			evolution_attempts = ?,
			discard_reason = ?,
			updated_at = ?,
			last_backtest_at = COALESCE(?, last_backtest_at)
		WHERE id = ?
	`, string(update.Status), score, train, test, perSym,
		update.ExplanationHuman, update.RiskNote,
		boolToInt(update.IsProposable), boolToInt(update.Generalized),
		update.EvolutionAttempts, update.DiscardReason,
		time.Now().UnixNano(), nullNano(update.LastBacktestAt), id)
	if err != nil {
		return fmt.Errorf("failed to apply evaluation to %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read evaluation update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("strategy %s not found", id)
	}

	r.log.Debug().Str("strategy", id).Str("status", string(update.Status)).Msg("Applied evaluation")
	return nil
}

// IncrementAttempts bumps the evolution attempt counter by one.
func (r *Repository) IncrementAttempts(id string) error {
	res, err := r.db.Exec(`
		UPDATE strategies
		SET evolution_attempts = evolution_attempts + 1, updated_at = ?
		WHERE id = ?
	`, time.Now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to increment attempts for %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read attempt update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("strategy %s not found", id)
	}
	return nil
}

// TopProposables returns proposable strategies by score descending. The
// recommendation surface reads exclusively through this query.
func (r *Repository) TopProposables(limit int) ([]*domain.Strategy, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.Query(`
		SELECT `+selectColumns+` FROM strategies
		WHERE status = ?
		ORDER BY score DESC, id ASC
		LIMIT ?
	`, string(domain.StatusProposable), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select top proposables: %w", err)
	}
	defer rows.Close()

	return collect(rows)
}

// CountByStatus returns row counts per lifecycle status.
func (r *Repository) CountByStatus() (map[domain.Status]int, error) {
	rows, err := r.db.Query("SELECT status, COUNT(*) FROM strategies GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count strategies: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[domain.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}
	return counts, nil
}

func collect(rows *sql.Rows) ([]*domain.Strategy, error) {
	out := []*domain.Strategy{}
	for rows.Next() {
		s, err := scanStrategy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan strategy row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating strategy rows: %w", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
