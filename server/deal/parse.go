package deal

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Record is the wire shape of a deal: hands run N,E,S,W, each hand is four
// rank runs S.H.D.C, vuln is [NS, EW].
type Record struct {
	Dealer  string   `json:"dealer"`
	Vuln    []bool   `json:"vuln"`
	Hands   []string `json:"hands"`
	Auction []string `json:"auction"`
	Play    []string `json:"play,omitempty"`
}

// ValidationError marks a structurally invalid deal. Requests failing with it
// are rejected before any engine is contacted.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalidf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ParseJSON decodes and validates a deal record in one step.
func ParseJSON(data []byte) (*Deal, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, invalidf("bad deal json: %v", err)
	}
	return Parse(rec)
}

// Parse validates every structural invariant of the record and returns the
// canonical Deal. Pure; no network, no side effects.
func Parse(rec Record) (*Deal, error) {
	dealer, ok := ParseSeat(rec.Dealer)
	if !ok {
		return nil, invalidf("dealer must be one of N/E/S/W, got %q", rec.Dealer)
	}
	if len(rec.Vuln) != 2 {
		return nil, invalidf("vuln must be [NS, EW], got %d entries", len(rec.Vuln))
	}
	if len(rec.Hands) != 4 {
		return nil, invalidf("want 4 hands, got %d", len(rec.Hands))
	}

	d := &Deal{
		Dealer: dealer,
		Vuln:   Vulnerability{NS: rec.Vuln[0], EW: rec.Vuln[1]},
	}

	seen := make(map[Card]Seat, 52)
	for i, raw := range rec.Hands {
		seat := Seat(i)
		cards, err := parseHand(raw, seat)
		if err != nil {
			return nil, err
		}
		for _, c := range cards {
			if prev, dup := seen[c]; dup {
				return nil, invalidf("card %s dealt to both %s and %s", c, prev, seat)
			}
			seen[c] = seat
		}
		d.Hands[seat] = cards
	}
	// 4 hands x 13 distinct cards is necessarily the full 52-card universe.

	for i, raw := range rec.Auction {
		call, ok := ParseCall(raw)
		if !ok {
			return nil, invalidf("auction[%d]: bad call %q", i, raw)
		}
		d.Auction = append(d.Auction, call)
	}
	contract, err := validateAuction(dealer, d.Auction)
	if err != nil {
		return nil, err
	}
	d.Contract = contract

	if len(rec.Play) > 0 {
		if contract == nil {
			return nil, invalidf("play requires a completed auction with a contract")
		}
		for i, raw := range rec.Play {
			c, ok := ParseCard(raw)
			if !ok {
				return nil, invalidf("play[%d]: bad card %q", i, raw)
			}
			d.Play = append(d.Play, c)
		}
		if err := validatePlay(d, *contract); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// parseHand reads one S.H.D.C hand string into canonical card order.
func parseHand(raw string, seat Seat) ([]Card, error) {
	suits := splitSuits(raw)
	if len(suits) != 4 {
		return nil, invalidf("hand %s: want 4 suit groups, got %d", seat, len(suits))
	}
	cards := make([]Card, 0, 13)
	for si, run := range suits {
		suit := suitOrder[si]
		for j := 0; j < len(run); j++ {
			rank := rankOf(run[j])
			if rank == 0 {
				return nil, invalidf("hand %s: bad rank %q in suit %c", seat, run[j], suit)
			}
			cards = append(cards, Card{Suit: suit, Rank: rank})
		}
	}
	if len(cards) != 13 {
		return nil, invalidf("hand %s: has %d cards, want 13", seat, len(cards))
	}
	sortHand(cards)
	return cards, nil
}

func splitSuits(raw string) []string {
	var out []string
	start := 0
	for i := 0; i < len(raw); i++ {
		if raw[i] == '.' {
			out = append(out, raw[start:i])
			start = i + 1
		}
	}
	return append(out, raw[start:])
}

func sortHand(cards []Card) {
	sort.Slice(cards, func(i, j int) bool {
		a, b := cards[i], cards[j]
		if a.Suit != b.Suit {
			return suitIndex(a.Suit) < suitIndex(b.Suit)
		}
		return a.Rank > b.Rank
	})
}

func suitIndex(s byte) int {
	for i, x := range suitOrder {
		if x == s {
			return i
		}
	}
	return len(suitOrder)
}

// Record serializes back to the wire shape; Parse(d.Record()) reproduces d.
func (d *Deal) Record() Record {
	rec := Record{
		Dealer: d.Dealer.String(),
		Vuln:   []bool{d.Vuln.NS, d.Vuln.EW},
	}
	for seat := North; seat <= West; seat++ {
		rec.Hands = append(rec.Hands, formatHand(d.Hands[seat]))
	}
	for _, c := range d.Auction {
		rec.Auction = append(rec.Auction, c.String())
	}
	for _, c := range d.Play {
		rec.Play = append(rec.Play, c.String())
	}
	return rec
}

func formatHand(cards []Card) string {
	var runs [4][]byte
	for _, c := range cards {
		runs[suitIndex(c.Suit)] = append(runs[suitIndex(c.Suit)], rankChars[c.Rank])
	}
	out := make([]byte, 0, 16)
	for i, run := range runs {
		if i > 0 {
			out = append(out, '.')
		}
		out = append(out, run...)
	}
	return string(out)
}
