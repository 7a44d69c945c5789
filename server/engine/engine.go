// Package engine defines the capability contract shared by the two analysis
// back ends. The orchestrator and comparison code depend only on these shapes,
// never on which adapter produced them.
package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"bridgegate/server/deal"
)

// Engine is one analysis back end. Analyze returns either a Result or an
// error; adapters translate every transport or payload failure into *Error so
// nothing rawer crosses this boundary.
type Engine interface {
	Name() string
	Analyze(ctx context.Context, d *deal.Deal) (*Result, error)
}

// Unconfigured is an Engine whose adapter was given no configuration. Every
// call fails with the same typed, non-transient error, so the other engine
// keeps serving.
func Unconfigured(name, detail string) Engine {
	return unconfigured{name: name, detail: detail}
}

type unconfigured struct{ name, detail string }

func (u unconfigured) Name() string { return u.name }

func (u unconfigured) Analyze(context.Context, *deal.Deal) (*Result, error) {
	return nil, Errorf(u.name, KindUnknown, "%s", u.detail)
}

// ActionKind discriminates a suggested bid from a suggested card play.
type ActionKind int

const (
	ActionBid ActionKind = iota
	ActionPlay
)

// Action is a normalized bid or play suggestion, the unit the comparison
// engine checks structural equality on.
type Action struct {
	Kind   ActionKind
	Level  int
	Strain byte
	Seat   deal.Seat
	Card   deal.Card
}

func (a Action) String() string {
	if a.Kind == ActionBid {
		return fmt.Sprintf("%d%c", a.Level, a.Strain)
	}
	return fmt.Sprintf("%s:%s", a.Seat, a.Card)
}

// actionWire is the transport form: bids as "4S", cards as "C2", seats as
// their letters. The internal byte/int representation never reaches clients.
type actionWire struct {
	Kind string `json:"kind"`
	Bid  string `json:"bid,omitempty"`
	Seat string `json:"seat,omitempty"`
	Card string `json:"card,omitempty"`
}

func (a Action) MarshalJSON() ([]byte, error) {
	if a.Kind == ActionBid {
		return json.Marshal(actionWire{Kind: "bid", Bid: a.String()})
	}
	return json.Marshal(actionWire{Kind: "play", Seat: a.Seat.String(), Card: a.Card.String()})
}

func (a *Action) UnmarshalJSON(data []byte) error {
	var w actionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case "bid":
		bid, ok := BidAction(w.Bid)
		if !ok {
			return fmt.Errorf("bad bid %q", w.Bid)
		}
		*a = bid
	case "play":
		seat, ok := deal.ParseSeat(w.Seat)
		if !ok {
			return fmt.Errorf("bad seat %q", w.Seat)
		}
		card, ok := deal.ParseCard(w.Card)
		if !ok {
			return fmt.Errorf("bad card %q", w.Card)
		}
		*a = Action{Kind: ActionPlay, Seat: seat, Card: card}
	default:
		return fmt.Errorf("bad action kind %q", w.Kind)
	}
	return nil
}

// BidAction builds a bid suggestion from its wire form, e.g. "4S".
func BidAction(raw string) (Action, bool) {
	c, ok := deal.ParseCall(raw)
	if !ok || c.Kind != deal.Bid {
		return Action{}, false
	}
	return Action{Kind: ActionBid, Level: c.Level, Strain: c.Strain}, true
}

// DDTable is a double-dummy summary: makeable tricks per declarer seat and
// strain, e.g. Tricks["N"]["S"] = 10.
type DDTable struct {
	Tricks map[string]map[string]int `json:"tricks"`
	Par    string                    `json:"par,omitempty"`
}

// Result is one engine's answer. Gemini populates Narrative and sometimes an
// extracted Suggested action; BEN always populates Suggested and may attach a
// double-dummy table. Confidence is optional for both.
type Result struct {
	Engine      string   `json:"engine"`
	Narrative   string   `json:"narrative,omitempty"`
	Suggested   *Action  `json:"suggested,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
	DoubleDummy *DDTable `json:"double_dummy,omitempty"`
}

// Computed reports whether the result is backed by exact computation rather
// than free-text reasoning.
func (r *Result) Computed() bool { return r.DoubleDummy != nil }
