package deal

// validatePlay replays the card sequence from the opening lead. Every card
// must still be held by the seat on turn; trick winners (trump-aware) decide
// the next lead. Revokes are accepted as historical fact, so suit-following
// is not enforced — only ownership and turn order are.
func validatePlay(d *Deal, contract Contract) error {
	_, err := playWalk(d, contract)
	return err
}

func playWalk(d *Deal, contract Contract) (Seat, error) {
	var remaining [4]map[Card]bool
	for seat := North; seat <= West; seat++ {
		remaining[seat] = make(map[Card]bool, 13)
		for _, c := range d.Hands[seat] {
			remaining[seat][c] = true
		}
	}

	trump := contract.Strain // 'N' means no trump
	onTurn := contract.Declarer.Next()
	type played struct {
		seat Seat
		card Card
	}
	trick := make([]played, 0, 4)

	for i, card := range d.Play {
		if !remaining[onTurn][card] {
			return onTurn, invalidf("play[%d]: %s does not hold %s at this point", i, onTurn, card)
		}
		delete(remaining[onTurn], card)
		trick = append(trick, played{onTurn, card})
		if len(trick) < 4 {
			onTurn = onTurn.Next()
			continue
		}
		best := trick[0]
		for _, p := range trick[1:] {
			if beats(p.card, best.card, trump) {
				best = p
			}
		}
		onTurn = best.seat
		trick = trick[:0]
	}
	return onTurn, nil
}

// NextToAct is the seat due to call (open auction) or play (live contract)
// next. Adapters use it to attribute play suggestions to a seat.
func (d *Deal) NextToAct() Seat {
	if d.Contract == nil {
		return Seat((int(d.Dealer) + len(d.Auction)) % 4)
	}
	seat, _ := playWalk(d, *d.Contract)
	return seat
}

// beats reports whether card a wins over the currently best card b.
func beats(a, b Card, trump byte) bool {
	if trump != 'N' && a.Suit != b.Suit {
		return a.Suit == trump
	}
	if a.Suit != b.Suit {
		return false
	}
	return a.Rank > b.Rank
}
