package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRuleSet() RuleSet {
	return RuleSet{
		Entry: []Rule{
			{Indicator: IndicatorRSI, Comparator: CompLT, Threshold: 30, Window: 14},
		},
		Exit: []Rule{
			{Indicator: IndicatorRSI, Comparator: CompGT, Threshold: 70, Window: 14},
		},
		Params: map[string]float64{"position_size": 1.0},
	}
}

func TestRuleSetValidate_WellFormed(t *testing.T) {
	rs := validRuleSet()
	assert.NoError(t, rs.Validate())
}

func TestRuleSetValidate_NoEntryRule(t *testing.T) {
	rs := validRuleSet()
	rs.Entry = nil

	err := rs.Validate()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRuleSet)
}

func TestRuleSetValidate_NoExitRule(t *testing.T) {
	rs := validRuleSet()
	rs.Exit = nil

	assert.ErrorIs(t, rs.Validate(), ErrMalformedRuleSet)
}

func TestRuleSetValidate_WindowTooSmall(t *testing.T) {
	rs := validRuleSet()
	rs.Entry[0].Window = 1

	assert.ErrorIs(t, rs.Validate(), ErrMalformedRuleSet)
}

func TestRuleSetValidate_UnknownIndicator(t *testing.T) {
	rs := validRuleSet()
	rs.Entry[0].Indicator = Indicator("macd")

	assert.ErrorIs(t, rs.Validate(), ErrMalformedRuleSet)
}

func TestRuleSetCanonical_Stable(t *testing.T) {
	a := validRuleSet()
	b := validRuleSet()

	assert.Equal(t, a.Canonical(), b.Canonical(), "Structurally identical rule sets must serialize identically")
}

func TestRuleSetCanonical_ParamOrderIndependent(t *testing.T) {
	a := validRuleSet()
	a.Params = map[string]float64{"alpha": 1, "beta": 2}
	b := validRuleSet()
	b.Params = map[string]float64{"beta": 2, "alpha": 1}

	assert.Equal(t, a.Canonical(), b.Canonical(), "Param map insertion order must not leak into the canonical form")
}

func TestRuleSetCanonical_ThresholdChangesForm(t *testing.T) {
	a := validRuleSet()
	b := validRuleSet()
	b.Entry[0].Threshold = 25

	assert.NotEqual(t, a.Canonical(), b.Canonical())
}

func TestRuleSetFeatureTokens(t *testing.T) {
	rs := validRuleSet()

	tokens := rs.FeatureTokens()

	assert.Contains(t, tokens, "entry:rsi:lt")
	assert.Contains(t, tokens, "exit:rsi:gt")
	assert.Contains(t, tokens, "window:rsi:short")
}

func TestRuleSetFeatureTokens_Deduplicated(t *testing.T) {
	rs := validRuleSet()
	rs.Entry = append(rs.Entry, Rule{Indicator: IndicatorRSI, Comparator: CompLT, Threshold: 25, Window: 10})

	tokens := rs.FeatureTokens()

	count := 0
	for _, tok := range tokens {
		if tok == "entry:rsi:lt" {
			count++
		}
	}
	assert.Equal(t, 1, count, "Identical feature tokens should collapse")
}

func TestRuleSetClone_Independent(t *testing.T) {
	rs := validRuleSet()

	clone := rs.Clone()
	clone.Entry[0].Threshold = 99
	clone.Params["position_size"] = 2.0

	assert.Equal(t, 30.0, rs.Entry[0].Threshold, "Clone must not alias entry rules")
	assert.Equal(t, 1.0, rs.Params["position_size"], "Clone must not alias params")
}

func TestRuleSetMaxWindow(t *testing.T) {
	rs := validRuleSet()
	rs.Exit = append(rs.Exit, Rule{Indicator: IndicatorSMA, Comparator: CompCrossBelow, Threshold: 0, Window: 50})

	assert.Equal(t, 50, rs.MaxWindow())
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusExperiment.Valid())
	assert.True(t, StatusDiscarded.Valid())
	assert.False(t, Status("archived").Valid())
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsTransientUpstream(ErrRateLimited))
	assert.True(t, IsTransientUpstream(ErrBacktestTimeout))
	assert.True(t, IsDataQuality(ErrInsufficientBars))
	assert.True(t, IsLogic(ErrFingerprintCollision))
	assert.False(t, IsTransientUpstream(ErrInsufficientBars))
	assert.False(t, IsDataQuality(ErrRateLimited))
}
