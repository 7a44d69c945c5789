package deal

import "fmt"

// Seat is a player position, rotating N -> E -> S -> W.
type Seat int

const (
	North Seat = iota
	East
	South
	West
)

var seatNames = [4]string{"N", "E", "S", "W"}

func (s Seat) String() string {
	if s < North || s > West {
		return "?"
	}
	return seatNames[s]
}

func ParseSeat(raw string) (Seat, bool) {
	for i, n := range seatNames {
		if raw == n {
			return Seat(i), true
		}
	}
	return 0, false
}

func (s Seat) Next() Seat { return (s + 1) % 4 }

// SameSide reports whether both seats belong to the same partnership.
func (s Seat) SameSide(o Seat) bool { return s%2 == o%2 }

// Vulnerability per partnership.
type Vulnerability struct {
	NS bool `json:"ns"`
	EW bool `json:"ew"`
}

// Card is one of the 52 cards. Suit is 'S','H','D' or 'C'; Rank runs 2..14.
type Card struct {
	Suit byte
	Rank int
}

const rankChars = "  23456789TJQKA"

var suitOrder = [4]byte{'S', 'H', 'D', 'C'}

func (c Card) String() string {
	return fmt.Sprintf("%c%c", c.Suit, rankChars[c.Rank])
}

func rankOf(ch byte) int {
	for r := 2; r <= 14; r++ {
		if rankChars[r] == ch {
			return r
		}
	}
	return 0
}

func suitValid(s byte) bool {
	return s == 'S' || s == 'H' || s == 'D' || s == 'C'
}

// ParseCard reads the suit-then-rank form used on the wire, e.g. "C2", "DA".
func ParseCard(raw string) (Card, bool) {
	if len(raw) != 2 {
		return Card{}, false
	}
	suit := raw[0]
	rank := rankOf(raw[1])
	if !suitValid(suit) || rank == 0 {
		return Card{}, false
	}
	return Card{Suit: suit, Rank: rank}, true
}

// CallKind discriminates the four kinds of auction calls.
type CallKind int

const (
	Pass CallKind = iota
	Bid
	Double
	Redouble
)

// Call is one step of the auction. Level and Strain are set only for bids;
// Strain is 'C','D','H','S' or 'N' (notrump).
type Call struct {
	Kind   CallKind
	Level  int
	Strain byte
}

func strainRank(s byte) int {
	switch s {
	case 'C':
		return 0
	case 'D':
		return 1
	case 'H':
		return 2
	case 'S':
		return 3
	case 'N':
		return 4
	}
	return -1
}

func (c Call) String() string {
	switch c.Kind {
	case Pass:
		return "PASS"
	case Double:
		return "X"
	case Redouble:
		return "XX"
	}
	return fmt.Sprintf("%d%c", c.Level, c.Strain)
}

// ParseCall accepts "1N".."7S", "PASS"/"P", "X"/"DOUBLE", "XX"/"REDOUBLE".
// A trailing "NT" is tolerated for notrump bids.
func ParseCall(raw string) (Call, bool) {
	switch raw {
	case "PASS", "P":
		return Call{Kind: Pass}, true
	case "X", "DOUBLE", "DBL":
		return Call{Kind: Double}, true
	case "XX", "REDOUBLE", "RDBL":
		return Call{Kind: Redouble}, true
	}
	if len(raw) == 3 && raw[1] == 'N' && raw[2] == 'T' {
		raw = raw[:2]
	}
	if len(raw) != 2 {
		return Call{}, false
	}
	level := int(raw[0] - '0')
	if level < 1 || level > 7 || strainRank(raw[1]) < 0 {
		return Call{}, false
	}
	return Call{Kind: Bid, Level: level, Strain: raw[1]}, true
}

// Higher reports whether bid c outranks bid prev.
func (c Call) Higher(prev Call) bool {
	if c.Level != prev.Level {
		return c.Level > prev.Level
	}
	return strainRank(c.Strain) > strainRank(prev.Strain)
}

// Contract is the outcome of a completed auction.
type Contract struct {
	Level    int
	Strain   byte
	Doubled  int // 0 plain, 1 doubled, 2 redoubled
	Declarer Seat
}

func (c Contract) String() string {
	x := ""
	switch c.Doubled {
	case 1:
		x = "X"
	case 2:
		x = "XX"
	}
	return fmt.Sprintf("%d%c%s by %s", c.Level, c.Strain, x, c.Declarer)
}

// Deal is one validated hand-record. Hands are indexed by Seat and kept in
// canonical order (suits S,H,D,C, ranks descending). Instances are built by
// Parse and never mutated afterwards.
type Deal struct {
	Dealer  Seat
	Vuln    Vulnerability
	Hands   [4][]Card
	Auction []Call
	Play    []Card

	// Contract is non-nil when the auction is complete and a bid was made.
	Contract *Contract
}
