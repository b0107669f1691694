// Package mutation derives child strategies from a parent by applying one
// rule-space edit per child. Accepted children are registered and linked in
// the memory core before being handed back for persistence, so the lineage
// graph never lags the strategy store.
package mutation

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/mcn"
)

const (
	// DefaultMaxChildren is how many accepted children one mutation step
	// aims to produce.
	DefaultMaxChildren = 3

	// DefaultJitterPct bounds parameter_jitter adjustments to ±20%.
	DefaultJitterPct = 0.20

	// maxRuleWindow caps window_resize so a mutated lookback can never
	// exceed the warmup budget of a normal backtest window.
	maxRuleWindow = 200
)

// lineage is the slice of the memory core the mutator needs: duplicate
// detection at depth one and registration of accepted children.
type lineage interface {
	HasEdge(parentFingerprint, childFingerprint string) (bool, error)
	Register(fingerprint string, rs domain.RuleSet) error
	LinkChild(parentFingerprint, childFingerprint string, kind domain.MutationKind) error
}

// Child pairs a derived strategy with the edit that produced it.
type Child struct {
	Strategy *domain.Strategy
	Kind     domain.MutationKind
}

// Mutator produces structurally distinct children of a parent rule set.
// All randomness flows from a PRNG seeded by the parent fingerprint and its
// attempt counter, so a mutation step replays identically.
type Mutator struct {
	store       lineage
	maxChildren int
	jitterPct   float64
	log         zerolog.Logger
}

// NewMutator creates a mutator with the default child and jitter limits.
func NewMutator(store lineage, log zerolog.Logger) *Mutator {
	return &Mutator{
		store:       store,
		maxChildren: DefaultMaxChildren,
		jitterPct:   DefaultJitterPct,
		log:         log.With().Str("component", "mutator").Logger(),
	}
}

// SetLimits overrides the child count and jitter bound. Non-positive values
// keep the current setting.
func (m *Mutator) SetLimits(maxChildren int, jitterPct float64) {
	if maxChildren > 0 {
		m.maxChildren = maxChildren
	}
	if jitterPct > 0 {
		m.jitterPct = jitterPct
	}
}

// swapLibrary is the fixed predicate library rule_swap draws from. It covers
// every indicator family at common lookbacks so a swap can move a strategy
// between families, not just retune it.
var swapLibrary = []domain.Rule{
	{Indicator: domain.IndicatorRSI, Comparator: domain.CompLT, Threshold: 30, Window: 14},
	{Indicator: domain.IndicatorRSI, Comparator: domain.CompGT, Threshold: 70, Window: 14},
	{Indicator: domain.IndicatorSMA, Comparator: domain.CompCrossAbove, Threshold: 0, Window: 20},
	{Indicator: domain.IndicatorSMA, Comparator: domain.CompCrossBelow, Threshold: 0, Window: 50},
	{Indicator: domain.IndicatorEMA, Comparator: domain.CompGT, Threshold: 0, Window: 12},
	{Indicator: domain.IndicatorEMA, Comparator: domain.CompLT, Threshold: 0, Window: 26},
	{Indicator: domain.IndicatorMomentum, Comparator: domain.CompGT, Threshold: 0.02, Window: 10},
	{Indicator: domain.IndicatorMomentum, Comparator: domain.CompLT, Threshold: -0.02, Window: 10},
	{Indicator: domain.IndicatorVolatility, Comparator: domain.CompLT, Threshold: 0.40, Window: 20},
	{Indicator: domain.IndicatorVolatility, Comparator: domain.CompGT, Threshold: 0.80, Window: 20},
}

// Mutate proposes children of parent until the child limit is reached or the
// proposal budget runs out. A proposal is rejected, without counting against
// the limit, when the edit fails to change the fingerprint, breaks rule-set
// well-formedness, duplicates a sibling from this call, or already exists as
// a child edge of this parent.
func (m *Mutator) Mutate(parent *domain.Strategy, now time.Time) ([]Child, error) {
	parentFP := parent.Fingerprint
	if parentFP == "" {
		parentFP = mcn.Fingerprint(&parent.RuleSet)
	}

	rng := rand.New(rand.NewSource(seedFor(parentFP, parent.EvolutionAttempts)))
	kinds := domain.AllMutationKinds()

	children := make([]Child, 0, m.maxChildren)
	seen := map[string]struct{}{parentFP: {}}

	budget := m.maxChildren * len(kinds) * 2
	for i := 0; i < budget && len(children) < m.maxChildren; i++ {
		kind := kinds[i%len(kinds)]

		rs := parent.RuleSet.Clone()
		if !m.apply(kind, &rs, rng) {
			continue
		}
		if err := rs.Validate(); err != nil {
			m.log.Debug().Str("parent", parent.ID).Str("kind", string(kind)).
				Err(err).Msg("Rejected malformed child")
			continue
		}

		childFP := mcn.Fingerprint(&rs)
		if _, dup := seen[childFP]; dup {
			continue
		}

		exists, err := m.store.HasEdge(parentFP, childFP)
		if err != nil {
			return children, fmt.Errorf("failed to check child edge: %w", err)
		}
		if exists {
			continue
		}

		if err := m.store.Register(childFP, rs); err != nil {
			if errors.Is(err, domain.ErrFingerprintCollision) {
				continue
			}
			return children, fmt.Errorf("failed to register child: %w", err)
		}
		if err := m.store.LinkChild(parentFP, childFP, kind); err != nil {
			if errors.Is(err, domain.ErrCycleDetected) {
				continue
			}
			return children, fmt.Errorf("failed to link child: %w", err)
		}

		seen[childFP] = struct{}{}
		children = append(children, Child{
			Strategy: buildChild(parent, parentFP, childFP, rs, kind, now),
			Kind:     kind,
		})
	}

	m.log.Debug().
		Str("parent", parent.ID).
		Int("attempts", parent.EvolutionAttempts).
		Int("children", len(children)).
		Msg("Mutation step complete")

	return children, nil
}

func buildChild(parent *domain.Strategy, parentFP, childFP string, rs domain.RuleSet, kind domain.MutationKind, now time.Time) *domain.Strategy {
	// The id is derived from the lineage edge, so re-running the same
	// mutation step can never insert the same child twice.
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(parentFP+"|"+childFP)).String()

	return &domain.Strategy{
		ID:          id,
		Name:        fmt.Sprintf("%s [%s]", parent.Name, kind),
		Description: fmt.Sprintf("derived from %s by %s", parent.Name, kind),
		OwnerID:     parent.OwnerID,
		AssetClass:  parent.AssetClass,
		RuleSet:     rs,
		Fingerprint: childFP,
		Status:      domain.StatusExperiment,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (m *Mutator) apply(kind domain.MutationKind, rs *domain.RuleSet, rng *rand.Rand) bool {
	switch kind {
	case domain.MutationParameterJitter:
		return m.applyParameterJitter(rs, rng)
	case domain.MutationRuleSwap:
		return applyRuleSwap(rs, rng)
	case domain.MutationThresholdShift:
		return applyThresholdShift(rs, rng)
	case domain.MutationWindowResize:
		return applyWindowResize(rs, rng)
	case domain.MutationIndicatorSubstitute:
		return applyIndicatorSubstitute(rs, rng)
	}
	return false
}

func (m *Mutator) applyParameterJitter(rs *domain.RuleSet, rng *rand.Rand) bool {
	if len(rs.Params) == 0 {
		return false
	}
	keys := make([]string, 0, len(rs.Params))
	for k := range rs.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	k := keys[rng.Intn(len(keys))]
	factor := 1 + (rng.Float64()*2-1)*m.jitterPct
	rs.Params[k] *= factor
	return true
}

func applyRuleSwap(rs *domain.RuleSet, rng *rand.Rand) bool {
	r := pickRule(rs, rng)
	if r == nil {
		return false
	}
	idx := rng.Intn(len(swapLibrary))
	pick := swapLibrary[idx]
	if pick == *r {
		pick = swapLibrary[(idx+1)%len(swapLibrary)]
	}
	*r = pick
	return true
}

func applyThresholdShift(rs *domain.RuleSet, rng *rand.Rand) bool {
	r := pickRule(rs, rng)
	if r == nil {
		return false
	}
	if r.Threshold == 0 {
		r.Threshold = (rng.Float64()*2 - 1) * 0.05
	} else {
		r.Threshold *= 1 + (rng.Float64()*2-1)*0.25
	}
	return true
}

func applyWindowResize(rs *domain.RuleSet, rng *rand.Rand) bool {
	r := pickRule(rs, rng)
	if r == nil {
		return false
	}
	factor := 0.5 + rng.Float64()
	w := int(math.Round(float64(r.Window) * factor))
	if w < 2 {
		w = 2
	}
	if w > maxRuleWindow {
		w = maxRuleWindow
	}
	if w == r.Window {
		if w >= maxRuleWindow {
			w--
		} else {
			w++
		}
	}
	r.Window = w
	return true
}

func applyIndicatorSubstitute(rs *domain.RuleSet, rng *rand.Rand) bool {
	r := pickRule(rs, rng)
	if r == nil {
		return false
	}
	options := make([]domain.Indicator, 0, 4)
	for _, ind := range domain.AllIndicators() {
		if ind != r.Indicator {
			options = append(options, ind)
		}
	}
	r.Indicator = options[rng.Intn(len(options))]
	return true
}

// pickRule selects one rule across both sides uniformly and returns a
// pointer into the clone so the edit lands in place.
func pickRule(rs *domain.RuleSet, rng *rand.Rand) *domain.Rule {
	total := len(rs.Entry) + len(rs.Exit)
	if total == 0 {
		return nil
	}
	idx := rng.Intn(total)
	if idx < len(rs.Entry) {
		return &rs.Entry[idx]
	}
	return &rs.Exit[idx-len(rs.Entry)]
}

// seedFor folds the parent fingerprint and attempt counter into a PRNG seed.
// The same parent at the same attempt always proposes identical children.
func seedFor(fingerprint string, attempts int) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(fingerprint))
	return int64(h.Sum64()) + int64(attempts)
}
