package compare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridgegate/server/engine"
)

func bid(t *testing.T, raw string) *engine.Action {
	t.Helper()
	a, ok := engine.BidAction(raw)
	require.True(t, ok)
	return &a
}

func ptr(f float64) *float64 { return &f }

func opinion(suggested *engine.Action, conf *float64) Opinion {
	return Opinion{Result: &engine.Result{Suggested: suggested, Confidence: conf}}
}

func TestAgreementOnSameBid(t *testing.T) {
	out := Compare(opinion(bid(t, "4S"), nil), opinion(bid(t, "4S"), nil))
	assert.True(t, out.Conclusive)
	assert.True(t, out.Agreement)
	assert.Empty(t, out.Divergences)
}

func TestDivergentBids(t *testing.T) {
	out := Compare(opinion(bid(t, "4S"), nil), opinion(bid(t, "3N"), nil))
	assert.True(t, out.Conclusive)
	assert.False(t, out.Agreement)
	require.Len(t, out.Divergences, 1)
	d := out.Divergences[0]
	assert.Equal(t, "suggestedAction", d.Field)
	assert.Equal(t, "4S", d.Gemini)
	assert.Equal(t, "3N", d.Ben)
}

func TestConfidenceOnlyDifferenceIsNotADivergence(t *testing.T) {
	out := Compare(opinion(bid(t, "4S"), ptr(0.6)), opinion(bid(t, "4S"), ptr(0.95)))
	assert.True(t, out.Agreement)
	assert.Empty(t, out.Divergences)
}

func TestErroredEngineMakesComparisonInconclusive(t *testing.T) {
	gemini := Opinion{Error: engine.Errorf("gemini", engine.KindTimeout, "deadline exceeded")}
	out := Compare(gemini, opinion(bid(t, "4S"), nil))

	assert.False(t, out.Conclusive)
	assert.False(t, out.Agreement, "inconclusive must not read as agreement")
	assert.Empty(t, out.Divergences)

	// The failure is still surfaced, not dropped.
	require.NotNil(t, out.Results["gemini"].Error)
	assert.Equal(t, engine.KindTimeout, out.Results["gemini"].Error.Kind)
	require.NotNil(t, out.Results["ben"].Result)
}

func TestMissingSuggestionIsInconclusive(t *testing.T) {
	narrativeOnly := Opinion{Result: &engine.Result{Narrative: "an interesting deal"}}
	out := Compare(narrativeOnly, opinion(bid(t, "4S"), nil))
	assert.False(t, out.Conclusive)
	assert.Empty(t, out.Divergences)
}
