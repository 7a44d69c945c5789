// Package compare aligns two engine opinions onto common axes and reports
// their agreement or a structured diff. It is a pure function over two
// already-settled outcomes; divergence is its informative output, never an
// error.
package compare

import (
	"github.com/google/go-cmp/cmp"

	"bridgegate/server/engine"
)

// Opinion is one engine's settled outcome: a result or a typed error.
type Opinion struct {
	Result *engine.Result `json:"result,omitempty"`
	Error  *engine.Error  `json:"error,omitempty"`
}

// Divergence records one comparable field the engines disagree on, both
// values verbatim.
type Divergence struct {
	Field  string `json:"field"`
	Gemini string `json:"gemini_value"`
	Ben    string `json:"ben_value"`
}

// Result is the comparison verdict. Agreement is meaningful only when
// Conclusive; with fewer than two full opinions the comparison is explicitly
// inconclusive rather than falsely agreeing.
type Result struct {
	Results     map[string]Opinion `json:"results"`
	Agreement   bool               `json:"agreement"`
	Conclusive  bool               `json:"conclusive"`
	Divergences []Divergence       `json:"divergences"`
}

// Compare checks structural equality of the normalized suggested actions.
// Confidence differences alone are not divergences; the action is the
// compared field. Errored engines contribute no comparable fields but still
// appear in Results.
func Compare(gemini, ben Opinion) *Result {
	out := &Result{
		Results: map[string]Opinion{
			"gemini": gemini,
			"ben":    ben,
		},
		Divergences: []Divergence{},
	}

	g, b := gemini.Result, ben.Result
	if g == nil || b == nil || g.Suggested == nil || b.Suggested == nil {
		return out // inconclusive: fewer than two full opinions
	}

	out.Conclusive = true
	out.Agreement = true
	if !cmp.Equal(*g.Suggested, *b.Suggested) {
		out.Agreement = false
		out.Divergences = append(out.Divergences, Divergence{
			Field:  "suggestedAction",
			Gemini: g.Suggested.String(),
			Ben:    b.Suggested.String(),
		})
	}
	return out
}
