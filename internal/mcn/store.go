package mcn

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/pkg/formulas"
)

// DefaultNeighborhood is the number of most recent registrations a
// fingerprint is compared against when computing novelty.
const DefaultNeighborhood = 256

// maxLineageDepth bounds ancestor walks. The graph is acyclic by
// construction; the bound only guards against a corrupted store.
const maxLineageDepth = 10000

// RegimeSnapshot is one per-regime performance record. The train/test Sharpe
// pair comes from the full backtest that produced the snapshot and is carried
// so robustness can weigh regime consistency by out-of-sample retention.
type RegimeSnapshot struct {
	Regime      domain.Regime
	Metrics     domain.MetricRecord
	Pass        bool
	WindowHash  string
	TrainSharpe float64
	TestSharpe  float64
}

// LineageStep is one edge on the mutation path from root to a strategy.
type LineageStep struct {
	ParentFingerprint string
	ChildFingerprint  string
	Kind              domain.MutationKind
	CreatedAt         time.Time
}

// snapshotPayload is the msgpack-encoded BLOB stored per (fingerprint,
// regime). Encode and decode go through the same struct, so field names only
// need to stay stable within this package.
type snapshotPayload struct {
	Metrics     domain.MetricRecord `msgpack:"metrics"`
	Pass        bool                `msgpack:"pass"`
	TrainSharpe float64             `msgpack:"train_sharpe"`
	TestSharpe  float64             `msgpack:"test_sharpe"`
}

// Store handles memory core database operations on mcn.db.
//
// The store is append-mostly: fingerprints and lineage edges are immutable
// once written; regime snapshots are overwritten per (fingerprint, regime)
// with last-writer-wins semantics.
type Store struct {
	db           *sql.DB
	neighborhood int
	log          zerolog.Logger
}

// NewStore creates a new memory core store with the default novelty
// neighborhood.
func NewStore(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{
		db:           db,
		neighborhood: DefaultNeighborhood,
		log:          log.With().Str("repository", "mcn").Logger(),
	}
}

// SetNeighborhood overrides the novelty comparison set size. Values below 1
// are ignored.
func (s *Store) SetNeighborhood(n int) {
	if n >= 1 {
		s.neighborhood = n
	}
}

// Register records a fingerprint with its feature set and canonical rule
// set. Registering the same fingerprint with an identical rule set is a
// no-op; the same fingerprint with a different rule set is a collision and
// returns domain.ErrFingerprintCollision.
func (s *Store) Register(fingerprint string, rs domain.RuleSet) error {
	canonical := rs.Canonical()

	featuresJSON, err := json.Marshal(rs.FeatureTokens())
	if err != nil {
		return fmt.Errorf("failed to marshal feature tokens: %w", err)
	}

	// Nanosecond timestamps keep "most recent registrations" a total order
	// even when a mutation round registers several children back to back.
	_, err = s.db.Exec(`
		INSERT INTO fingerprints (fingerprint, features, rule_set, registered_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
	`, fingerprint, string(featuresJSON), canonical, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to register fingerprint %s: %w", fingerprint, err)
	}

	// Verify the stored rule set matches. A mismatch means two distinct
	// rule sets hashed to the same fingerprint.
	var stored string
	err = s.db.QueryRow("SELECT rule_set FROM fingerprints WHERE fingerprint = ?", fingerprint).Scan(&stored)
	if err != nil {
		return fmt.Errorf("failed to read back fingerprint %s: %w", fingerprint, err)
	}
	if stored != canonical {
		return fmt.Errorf("fingerprint %s already registered with a different rule set: %w",
			fingerprint, domain.ErrFingerprintCollision)
	}

	return nil
}

// IsRegistered reports whether a fingerprint exists in the store.
func (s *Store) IsRegistered(fingerprint string) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM fingerprints WHERE fingerprint = ?", fingerprint).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check fingerprint %s: %w", fingerprint, err)
	}
	return true, nil
}

// HasEdge reports whether a lineage edge parent -> child exists.
func (s *Store) HasEdge(parentFingerprint, childFingerprint string) (bool, error) {
	var one int
	err := s.db.QueryRow(`
		SELECT 1 FROM lineage_edges
		WHERE parent_fingerprint = ? AND child_fingerprint = ?
	`, parentFingerprint, childFingerprint).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check lineage edge: %w", err)
	}
	return true, nil
}

// LinkChild records a mutation edge from parent to child. The edge is
// rejected with domain.ErrCycleDetected when the child is the parent itself
// or an ancestor of the parent, so the lineage graph stays acyclic.
// Re-linking an existing edge is a no-op.
func (s *Store) LinkChild(parentFingerprint, childFingerprint string, kind domain.MutationKind) error {
	if parentFingerprint == childFingerprint {
		return fmt.Errorf("edge %s -> itself: %w", parentFingerprint, domain.ErrCycleDetected)
	}

	isAncestor, err := s.isAncestor(childFingerprint, parentFingerprint)
	if err != nil {
		return err
	}
	if isAncestor {
		return fmt.Errorf("edge %s -> %s would close a lineage loop: %w",
			parentFingerprint, childFingerprint, domain.ErrCycleDetected)
	}

	_, err = s.db.Exec(`
		INSERT INTO lineage_edges (parent_fingerprint, child_fingerprint, mutation_kind, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(parent_fingerprint, child_fingerprint) DO NOTHING
	`, parentFingerprint, childFingerprint, string(kind), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to link %s -> %s: %w", parentFingerprint, childFingerprint, err)
	}

	return nil
}

// isAncestor reports whether candidate appears anywhere on the ancestor
// closure of fingerprint. BFS over parent edges; the visited set terminates
// the walk even if a child has multiple parents.
func (s *Store) isAncestor(candidate, fingerprint string) (bool, error) {
	visited := map[string]struct{}{fingerprint: {}}
	frontier := []string{fingerprint}

	for depth := 0; len(frontier) > 0 && depth < maxLineageDepth; depth++ {
		current := frontier[0]
		frontier = frontier[1:]

		rows, err := s.db.Query(
			"SELECT parent_fingerprint FROM lineage_edges WHERE child_fingerprint = ?", current)
		if err != nil {
			return false, fmt.Errorf("failed to walk ancestors of %s: %w", current, err)
		}

		parents := []string{}
		for rows.Next() {
			var parent string
			if err := rows.Scan(&parent); err != nil {
				_ = rows.Close()
				return false, fmt.Errorf("failed to scan ancestor row: %w", err)
			}
			parents = append(parents, parent)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return false, fmt.Errorf("error iterating ancestors: %w", err)
		}
		_ = rows.Close()

		for _, parent := range parents {
			if parent == candidate {
				return true, nil
			}
			if _, seen := visited[parent]; !seen {
				visited[parent] = struct{}{}
				frontier = append(frontier, parent)
			}
		}
	}

	return false, nil
}

// RecordRegime upserts the per-regime snapshot for a fingerprint. Snapshots
// are keyed by (fingerprint, regime); a newer backtest window overwrites the
// older snapshot, last writer wins.
func (s *Store) RecordRegime(fingerprint string, snap RegimeSnapshot) error {
	payload, err := msgpack.Marshal(snapshotPayload{
		Metrics:     snap.Metrics,
		Pass:        snap.Pass,
		TrainSharpe: snap.TrainSharpe,
		TestSharpe:  snap.TestSharpe,
	})
	if err != nil {
		return fmt.Errorf("failed to encode regime snapshot: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO regime_snapshots (fingerprint, regime, window_hash, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint, regime) DO UPDATE SET
			window_hash = excluded.window_hash,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, fingerprint, string(snap.Regime), snap.WindowHash, payload, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record regime snapshot %s/%s: %w", fingerprint, snap.Regime, err)
	}

	return nil
}

// Snapshots returns all stored regime snapshots for a fingerprint, keyed by
// regime. Regimes never recorded are absent from the map.
func (s *Store) Snapshots(fingerprint string) (map[domain.Regime]RegimeSnapshot, error) {
	rows, err := s.db.Query(`
		SELECT regime, window_hash, payload FROM regime_snapshots
		WHERE fingerprint = ?
	`, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots for %s: %w", fingerprint, err)
	}
	defer rows.Close()

	result := make(map[domain.Regime]RegimeSnapshot)
	for rows.Next() {
		var regime, windowHash string
		var blob []byte
		if err := rows.Scan(&regime, &windowHash, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}

		var payload snapshotPayload
		if err := msgpack.Unmarshal(blob, &payload); err != nil {
			s.log.Warn().
				Err(err).
				Str("fingerprint", fingerprint).
				Str("regime", regime).
				Msg("Failed to decode regime snapshot payload")
			continue
		}

		result[domain.Regime(regime)] = RegimeSnapshot{
			Regime:      domain.Regime(regime),
			Metrics:     payload.Metrics,
			Pass:        payload.Pass,
			WindowHash:  windowHash,
			TrainSharpe: payload.TrainSharpe,
			TestSharpe:  payload.TestSharpe,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return result, nil
}

// Novelty scores how structurally distinct a registered fingerprint is from
// the most recent registrations: 1 minus the maximum Jaccard similarity of
// rule-feature sets over the neighborhood. A fingerprint with no neighbors
// scores 1.0.
func (s *Store) Novelty(fingerprint string) (float64, error) {
	own, err := s.featureSet(fingerprint)
	if err != nil {
		return 0, err
	}

	rows, err := s.db.Query(`
		SELECT features FROM fingerprints
		WHERE fingerprint != ?
		ORDER BY registered_at DESC, fingerprint
		LIMIT ?
	`, fingerprint, s.neighborhood)
	if err != nil {
		return 0, fmt.Errorf("failed to load novelty neighborhood: %w", err)
	}
	defer rows.Close()

	maxSimilarity := 0.0
	seen := false
	for rows.Next() {
		var featuresJSON string
		if err := rows.Scan(&featuresJSON); err != nil {
			return 0, fmt.Errorf("failed to scan neighborhood row: %w", err)
		}

		var tokens []string
		if err := json.Unmarshal([]byte(featuresJSON), &tokens); err != nil {
			s.log.Warn().Err(err).Msg("Failed to decode feature tokens")
			continue
		}

		seen = true
		if sim := jaccard(own, tokenSet(tokens)); sim > maxSimilarity {
			maxSimilarity = sim
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating neighborhood: %w", err)
	}

	if !seen {
		return 1.0, nil
	}
	return 1.0 - maxSimilarity, nil
}

// Robustness aggregates the stored regime snapshots into a 0-100 score:
// the fraction of the four regimes that pass, weighted by how much of the
// in-sample Sharpe survived out of sample. Regimes never recorded count as
// failures.
func (s *Store) Robustness(fingerprint string) (float64, error) {
	snapshots, err := s.Snapshots(fingerprint)
	if err != nil {
		return 0, err
	}
	if len(snapshots) == 0 {
		return 0, nil
	}

	// Snapshots written by the same backtest carry an identical Sharpe
	// pair, so any present snapshot can serve as the reference.
	passed := 0
	var ref RegimeSnapshot
	for _, regime := range domain.AllRegimes() {
		snap, ok := snapshots[regime]
		if !ok {
			continue
		}
		if snap.Pass {
			passed++
		}
		ref = snap
	}

	passFraction := float64(passed) / float64(len(domain.AllRegimes()))

	// Retention of in-sample performance. A strategy that never worked in
	// sample has no retention to measure; one that improved out of sample
	// keeps the full weight.
	var ratio float64
	switch {
	case ref.TrainSharpe > 0:
		ratio = formulas.Clip(ref.TestSharpe/ref.TrainSharpe, 0, 1.5)
	case ref.TestSharpe > 0:
		ratio = 1.5
	default:
		ratio = 0
	}

	return passFraction * (ratio / 1.5) * 100, nil
}

// Lineage returns the mutation path from the root ancestor down to the given
// fingerprint. When a fingerprint was reached from multiple parents the
// oldest edge wins, so the path is stable. A root fingerprint yields an
// empty path.
func (s *Store) Lineage(fingerprint string) ([]LineageStep, error) {
	var path []LineageStep
	current := fingerprint

	for depth := 0; depth < maxLineageDepth; depth++ {
		var parent, kind string
		var createdAt int64
		err := s.db.QueryRow(`
			SELECT parent_fingerprint, mutation_kind, created_at FROM lineage_edges
			WHERE child_fingerprint = ?
			ORDER BY created_at ASC, parent_fingerprint ASC
			LIMIT 1
		`, current).Scan(&parent, &kind, &createdAt)
		if err == sql.ErrNoRows {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to walk lineage of %s: %w", fingerprint, err)
		}

		path = append(path, LineageStep{
			ParentFingerprint: parent,
			ChildFingerprint:  current,
			Kind:              domain.MutationKind(kind),
			CreatedAt:         time.Unix(0, createdAt).UTC(),
		})
		current = parent
	}

	// Walked child-up; callers read root-down.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	return path, nil
}

// CountFingerprints returns the number of registered fingerprints.
func (s *Store) CountFingerprints() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM fingerprints").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count fingerprints: %w", err)
	}
	return count, nil
}

// CountEdges returns the number of lineage edges.
func (s *Store) CountEdges() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM lineage_edges").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count lineage edges: %w", err)
	}
	return count, nil
}

// featureSet loads the stored feature tokens of a registered fingerprint.
func (s *Store) featureSet(fingerprint string) (map[string]struct{}, error) {
	var featuresJSON string
	err := s.db.QueryRow("SELECT features FROM fingerprints WHERE fingerprint = ?", fingerprint).Scan(&featuresJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("fingerprint %s is not registered", fingerprint)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load features for %s: %w", fingerprint, err)
	}

	var tokens []string
	if err := json.Unmarshal([]byte(featuresJSON), &tokens); err != nil {
		return nil, fmt.Errorf("failed to decode features for %s: %w", fingerprint, err)
	}
	return tokenSet(tokens), nil
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// jaccard computes intersection over union. Two empty sets are identical.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}
