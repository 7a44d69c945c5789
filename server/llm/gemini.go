// Package llm adapts the Gemini reasoning service to the engine contract.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"google.golang.org/genai"

	"bridgegate/server/deal"
	"bridgegate/server/engine"
)

const Name = "gemini"

const analysisSystem = `
You are an expert contract-bridge analyst reviewing a complete hand record.

Directives:
- Evaluate the auction against standard bidding theory and the actual layout.
- When a play record is present, identify the decisive plays and any errors.
- Quantify where possible: HCP, fit, losers, makeable contracts.
- Keep the language precise; no filler.

Output format:
- Prose analysis first.
- Then a final line with exactly one JSON object:
  {"action": "<your recommended next bid like 4S, or next card like C2>", "confidence": <0..1>}
`

// Gemini calls the Gemini API through the google genai SDK.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key missing")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Name() string { return Name }

func (g *Gemini) Analyze(ctx context.Context, d *deal.Deal) (*engine.Result, error) {
	temp := float32(0.4)
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(BuildPrompt(d)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(analysisSystem, genai.RoleUser),
			Temperature:       &temp,
		})
	if err != nil {
		return nil, classify(ctx, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, engine.Errorf(Name, engine.KindInvalidResponse, "empty completion")
	}

	narrative, action, confidence := SplitSuggestion(text, d)
	return &engine.Result{
		Engine:     Name,
		Narrative:  narrative,
		Suggested:  action,
		Confidence: confidence,
	}, nil
}

// BuildPrompt renders the deal the way a human analyst would read it.
func BuildPrompt(d *deal.Deal) string {
	var b strings.Builder
	b.WriteString("Analyze this bridge deal.\n\n")
	rec := d.Record()
	for seat := deal.North; seat <= deal.West; seat++ {
		b.WriteString(seat.String())
		b.WriteString(": ")
		b.WriteString(rec.Hands[seat])
		b.WriteByte('\n')
	}
	b.WriteString("Dealer: ")
	b.WriteString(d.Dealer.String())
	b.WriteString("\nVulnerable: ")
	b.WriteString(vulnText(d.Vuln))
	b.WriteString("\nAuction: ")
	if len(d.Auction) == 0 {
		b.WriteString("(none yet)")
	}
	for i, c := range d.Auction {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(c.String())
	}
	if d.Contract != nil {
		b.WriteString("\nContract: ")
		b.WriteString(d.Contract.String())
	}
	if len(d.Play) > 0 {
		b.WriteString("\nPlay so far: ")
		for i, c := range d.Play {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(c.String())
		}
	}
	b.WriteByte('\n')
	return b.String()
}

func vulnText(v deal.Vulnerability) string {
	switch {
	case v.NS && v.EW:
		return "Both"
	case v.NS:
		return "NS"
	case v.EW:
		return "EW"
	}
	return "None"
}

// SplitSuggestion strips the trailing suggestion object off the narrative and
// decodes it. A missing or malformed suggestion is not an error; the
// narrative alone is a valid Gemini answer.
func SplitSuggestion(text string, d *deal.Deal) (string, *engine.Action, *float64) {
	raw := extractJSONObject(text)
	if raw == "" {
		return text, nil, nil
	}
	var s struct {
		Action     string   `json:"action"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return text, nil, nil
	}
	narrative := strings.TrimSpace(strings.Replace(text, raw, "", 1))
	action := parseAction(s.Action, d)
	if s.Confidence != nil && (*s.Confidence < 0 || *s.Confidence > 1) {
		s.Confidence = nil
	}
	return narrative, action, s.Confidence
}

func parseAction(raw string, d *deal.Deal) *engine.Action {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return nil
	}
	if a, ok := engine.BidAction(raw); ok {
		return &a
	}
	if card, ok := deal.ParseCard(raw); ok {
		return &engine.Action{Kind: engine.ActionPlay, Seat: d.NextToAct(), Card: card}
	}
	return nil
}

// extractJSONObject returns the last top-level {...} span in s, or "".
func extractJSONObject(s string) string {
	end := strings.LastIndex(s, "}")
	if end < 0 {
		return ""
	}
	start := strings.LastIndex(s[:end], "{")
	if start < 0 {
		return ""
	}
	return strings.TrimSpace(s[start : end+1])
}

func classify(ctx context.Context, err error) *engine.Error {
	if ctx.Err() != nil {
		return engine.AsError(Name, ctx.Err())
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return engine.Errorf(Name, engine.KindRateLimited, "%s", apiErr.Message)
		case apiErr.Code >= 500:
			return engine.Errorf(Name, engine.KindUnreachable, "http %d: %s", apiErr.Code, apiErr.Message)
		default:
			return engine.Errorf(Name, engine.KindUnknown, "http %d: %s", apiErr.Code, apiErr.Message)
		}
	}
	return engine.AsError(Name, err)
}
