package orchestrator

import (
	"fmt"
	"strings"

	"bridgegate/server/engine"
)

// merge folds the two answers into one narrative and one recommendation.
// Gemini is authoritative for the explanation, BEN for the computed action;
// BEN's facts are annotated into the prose parenthetically. With a single
// surviving engine the merge degrades to that engine's answer alone.
func (o *Orchestrator) merge(g, b *engine.Result) (string, *engine.Action) {
	switch {
	case g == nil && b == nil:
		return "", nil
	case g == nil:
		return benSummary(b), b.Suggested
	case b == nil:
		return g.Narrative, g.Suggested
	}

	narrative := strings.TrimSpace(g.Narrative)
	if facts := benFacts(b); facts != "" {
		narrative = fmt.Sprintf("%s (%s)", narrative, facts)
	}
	return narrative, o.pickAction(g, b)
}

func (o *Orchestrator) pickAction(g, b *engine.Result) *engine.Action {
	if o.opts.PreferComputed && b.Suggested != nil {
		return b.Suggested
	}
	switch {
	case g.Suggested == nil:
		return b.Suggested
	case b.Suggested == nil:
		return g.Suggested
	}
	// Authority not forced: higher reported confidence wins, computation
	// breaking the tie.
	gc, bc := confidence(g), confidence(b)
	if bc >= gc {
		return b.Suggested
	}
	return g.Suggested
}

func confidence(r *engine.Result) float64 {
	if r.Confidence != nil {
		return *r.Confidence
	}
	if r.Computed() {
		return 1
	}
	return 0
}

// benFacts renders BEN's computed conclusions as a short annotation.
func benFacts(b *engine.Result) string {
	var parts []string
	if b.Suggested != nil {
		parts = append(parts, fmt.Sprintf("BEN recommends %s", b.Suggested))
	}
	if b.DoubleDummy != nil && b.DoubleDummy.Par != "" {
		parts = append(parts, fmt.Sprintf("double-dummy par %s", b.DoubleDummy.Par))
	}
	return strings.Join(parts, "; ")
}

func benSummary(b *engine.Result) string {
	facts := benFacts(b)
	if facts == "" {
		return "BEN returned no conclusions."
	}
	return facts + "."
}
