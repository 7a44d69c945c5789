package deal

// validateAuction walks the calls in seat rotation from the dealer and checks
// syntactic legality: bids strictly above the previous bid, doubles only of an
// undoubled opposing bid, redoubles only of an opposing double, and no calls
// after the auction has closed. Partial auctions are legal input; a contract
// is returned only when the auction closed over a bid.
func validateAuction(dealer Seat, calls []Call) (*Contract, error) {
	var (
		lastBid     *Call
		lastBidSeat Seat
		doubled     bool
		redoubled   bool
		doubleSeat  Seat
		passes      int
		closed      bool
	)
	// First seat of each side to name a strain; decides the declarer.
	var firstNamed [2]map[byte]Seat
	firstNamed[0] = make(map[byte]Seat)
	firstNamed[1] = make(map[byte]Seat)

	for i := range calls {
		call := calls[i]
		if closed {
			return nil, invalidf("auction[%d]: call after auction closed", i)
		}
		seat := Seat((int(dealer) + i) % 4)
		switch call.Kind {
		case Pass:
			passes++
			if lastBid == nil && passes == 4 {
				closed = true // passed out
			}
			if lastBid != nil && passes == 3 {
				closed = true
			}
		case Bid:
			if lastBid != nil && !call.Higher(*lastBid) {
				return nil, invalidf("auction[%d]: bid %s not above %s", i, call, *lastBid)
			}
			side := int(seat) % 2
			if _, ok := firstNamed[side][call.Strain]; !ok {
				firstNamed[side][call.Strain] = seat
			}
			c := call
			lastBid, lastBidSeat = &c, seat
			doubled, redoubled = false, false
			passes = 0
		case Double:
			if lastBid == nil || doubled || redoubled {
				return nil, invalidf("auction[%d]: double with nothing to double", i)
			}
			if seat.SameSide(lastBidSeat) {
				return nil, invalidf("auction[%d]: cannot double own side's bid", i)
			}
			doubled, doubleSeat = true, seat
			passes = 0
		case Redouble:
			if !doubled || redoubled {
				return nil, invalidf("auction[%d]: redouble without a double", i)
			}
			if seat.SameSide(doubleSeat) {
				return nil, invalidf("auction[%d]: cannot redouble own side's double", i)
			}
			redoubled = true
			passes = 0
		}
	}

	if !closed || lastBid == nil {
		return nil, nil
	}
	contract := &Contract{Level: lastBid.Level, Strain: lastBid.Strain}
	if redoubled {
		contract.Doubled = 2
	} else if doubled {
		contract.Doubled = 1
	}
	contract.Declarer = firstNamed[int(lastBidSeat)%2][lastBid.Strain]
	return contract, nil
}
