// Package mcn implements the memory core: a content-addressed store of every
// rule set the platform has ever evaluated, the mutation lineage between
// them, and per-regime performance snapshots. Identity is the rule-set
// fingerprint, never the strategy row id, so re-registering an identical
// rule set under a new strategy is a no-op.
package mcn

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
)

// Fingerprint derives the stable identity of a rule set: the hex SHA-256 of
// its canonical serialized form. Structurally identical rule sets always map
// to the same fingerprint regardless of construction order.
func Fingerprint(rs *domain.RuleSet) string {
	sum := sha256.Sum256([]byte(rs.Canonical()))
	return hex.EncodeToString(sum[:])
}
