package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Indicator identifies an indicator family. All families produce one output
// series per (family, window) over closing prices, which keeps every family
// substitutable for every other.
type Indicator string

const (
	IndicatorRSI        Indicator = "rsi"
	IndicatorEMA        Indicator = "ema"
	IndicatorSMA        Indicator = "sma"
	IndicatorMomentum   Indicator = "momentum"
	IndicatorVolatility Indicator = "volatility"
)

// AllIndicators lists the closed indicator set in canonical order
func AllIndicators() []Indicator {
	return []Indicator{IndicatorRSI, IndicatorEMA, IndicatorSMA, IndicatorMomentum, IndicatorVolatility}
}

// Valid reports whether the indicator is a member of the closed set
func (i Indicator) Valid() bool {
	switch i {
	case IndicatorRSI, IndicatorEMA, IndicatorSMA, IndicatorMomentum, IndicatorVolatility:
		return true
	}
	return false
}

// Comparator identifies how an indicator value is compared to a threshold
type Comparator string

const (
	CompGT         Comparator = "gt"
	CompLT         Comparator = "lt"
	CompGE         Comparator = "ge"
	CompLE         Comparator = "le"
	CompCrossAbove Comparator = "cross_above"
	CompCrossBelow Comparator = "cross_below"
)

// AllComparators lists the closed comparator set in canonical order
func AllComparators() []Comparator {
	return []Comparator{CompGT, CompLT, CompGE, CompLE, CompCrossAbove, CompCrossBelow}
}

// Valid reports whether the comparator is a member of the closed set
func (c Comparator) Valid() bool {
	switch c {
	case CompGT, CompLT, CompGE, CompLE, CompCrossAbove, CompCrossBelow:
		return true
	}
	return false
}

// Rule is one predicate over an indicator series: the indicator value at the
// current bar (and, for cross comparators, the previous bar) is compared to
// the threshold. A rule may reference only bars at or before the current one.
type Rule struct {
	Indicator  Indicator  `json:"indicator"`
	Comparator Comparator `json:"comparator"`
	Threshold  float64    `json:"threshold"`
	Window     int        `json:"window"`
}

// RuleSet is the structured, deterministic description of a strategy:
// entry predicates (all must hold), exit predicates (any may fire), and
// named numeric parameters.
type RuleSet struct {
	Entry  []Rule             `json:"entry"`
	Exit   []Rule             `json:"exit"`
	Params map[string]float64 `json:"params,omitempty"`
}

// Validate checks rule-set well-formedness. A strategy with a malformed rule
// set is a logic error and is discarded, never backtested.
func (rs *RuleSet) Validate() error {
	if len(rs.Entry) == 0 {
		return fmt.Errorf("%w: no entry rule", ErrMalformedRuleSet)
	}
	if len(rs.Exit) == 0 {
		return fmt.Errorf("%w: no exit rule", ErrMalformedRuleSet)
	}
	for i, r := range append(append([]Rule{}, rs.Entry...), rs.Exit...) {
		if !r.Indicator.Valid() {
			return fmt.Errorf("%w: rule %d: unknown indicator %q", ErrMalformedRuleSet, i, r.Indicator)
		}
		if !r.Comparator.Valid() {
			return fmt.Errorf("%w: rule %d: unknown comparator %q", ErrMalformedRuleSet, i, r.Comparator)
		}
		if r.Window < 2 {
			return fmt.Errorf("%w: rule %d: window %d below minimum 2", ErrMalformedRuleSet, i, r.Window)
		}
		if math.IsNaN(r.Threshold) || math.IsInf(r.Threshold, 0) {
			return fmt.Errorf("%w: rule %d: threshold not finite", ErrMalformedRuleSet, i)
		}
	}
	for k, v := range rs.Params {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: param %q not finite", ErrMalformedRuleSet, k)
		}
	}
	return nil
}

// MaxWindow returns the largest lookback window across all rules. The
// backtest engine uses it as the warmup length.
func (rs *RuleSet) MaxWindow() int {
	max := 0
	for _, r := range rs.Entry {
		if r.Window > max {
			max = r.Window
		}
	}
	for _, r := range rs.Exit {
		if r.Window > max {
			max = r.Window
		}
	}
	return max
}

// Canonical returns the canonical serialized form of the rule set: rules in
// declaration order, entry before exit, params sorted by key, numbers in %g
// form. Structurally identical rule sets produce identical canonical strings,
// which makes the form fingerprint-stable across versions.
func (rs *RuleSet) Canonical() string {
	var b strings.Builder
	b.WriteString("entry[")
	writeCanonicalRules(&b, rs.Entry)
	b.WriteString("]exit[")
	writeCanonicalRules(&b, rs.Exit)
	b.WriteString("]params[")
	keys := make([]string, 0, len(rs.Params))
	for k := range rs.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%g", k, rs.Params[k])
	}
	b.WriteString("]")
	return b.String()
}

func writeCanonicalRules(b *strings.Builder, rules []Rule) {
	for i, r := range rules {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(b, "%s:%s:%g:%d", r.Indicator, r.Comparator, r.Threshold, r.Window)
	}
}

// FeatureTokens returns the rule-feature set used for novelty comparison:
// one token per (side, indicator, comparator) pair and one per coarse
// (indicator, window band). Tokens are deduplicated and sorted.
func (rs *RuleSet) FeatureTokens() []string {
	set := make(map[string]struct{})
	for _, r := range rs.Entry {
		set[fmt.Sprintf("entry:%s:%s", r.Indicator, r.Comparator)] = struct{}{}
		set[fmt.Sprintf("window:%s:%s", r.Indicator, windowBand(r.Window))] = struct{}{}
	}
	for _, r := range rs.Exit {
		set[fmt.Sprintf("exit:%s:%s", r.Indicator, r.Comparator)] = struct{}{}
		set[fmt.Sprintf("window:%s:%s", r.Indicator, windowBand(r.Window))] = struct{}{}
	}
	tokens := make([]string, 0, len(set))
	for t := range set {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}

// windowBand buckets lookback windows so small jitters do not register as
// novelty while a regime-scale change does.
func windowBand(window int) string {
	switch {
	case window < 15:
		return "short"
	case window <= 50:
		return "mid"
	default:
		return "long"
	}
}

// Clone returns a deep copy. Mutation operates on clones so the parent rule
// set is never aliased.
func (rs *RuleSet) Clone() RuleSet {
	out := RuleSet{
		Entry: append([]Rule(nil), rs.Entry...),
		Exit:  append([]Rule(nil), rs.Exit...),
	}
	if rs.Params != nil {
		out.Params = make(map[string]float64, len(rs.Params))
		for k, v := range rs.Params {
			out.Params[k] = v
		}
	}
	return out
}
