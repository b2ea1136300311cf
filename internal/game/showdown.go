package game

import (
	"sort"

	"github.com/lox/cardroom/internal/deck"
	"github.com/lox/cardroom/internal/evaluator"
)

// Award is the payout of one pot
type Award struct {
	Amount  int64         `json:"amount"`
	Winners []int         `json:"winners"`
	Shares  map[int]int64 `json:"shares"`
	Hand    string        `json:"hand,omitempty"` // Winning hand, empty when uncontested
}

// ResolveShowdown awards each pot to the best hand among its eligible seats.
//
// hands holds the hole cards of every seat still contesting. Ties split the
// pot evenly and leftover chips go one at a time to the winners in seat
// order starting left of the dealer, so every chip in a pot is paid out.
// A pot with a single eligible seat is awarded without evaluation.
func ResolveShowdown(pots []Pot, hands map[int][]deck.Card, board []deck.Card, dealer, maxSeats int) ([]Award, error) {
	results := make(map[int]evaluator.HandResult)
	awards := make([]Award, 0, len(pots))

	for _, pot := range pots {
		if len(pot.Eligible) == 1 {
			seat := pot.Eligible[0]
			awards = append(awards, Award{
				Amount:  pot.Amount,
				Winners: []int{seat},
				Shares:  map[int]int64{seat: pot.Amount},
			})
			continue
		}

		var best *evaluator.HandResult
		var winners []int
		for _, seat := range pot.Eligible {
			r, ok := results[seat]
			if !ok {
				hole, have := hands[seat]
				if !have {
					return nil, &ConcurrencyError{Seat: seat, Msg: "eligible seat has no hand"}
				}
				cards := make([]deck.Card, 0, len(hole)+len(board))
				cards = append(append(cards, hole...), board...)
				var err error
				if r, err = evaluator.Evaluate(cards); err != nil {
					return nil, err
				}
				results[seat] = r
			}
			switch {
			case best == nil || r.Beats(*best):
				rr := r
				best = &rr
				winners = []int{seat}
			case r.Ties(*best):
				winners = append(winners, seat)
			}
		}

		a := Award{
			Amount:  pot.Amount,
			Winners: winners,
			Shares:  splitPot(pot.Amount, winners, dealer, maxSeats),
		}
		if best != nil {
			a.Hand = best.String()
		}
		awards = append(awards, a)
	}
	return awards, nil
}

// splitPot divides amount evenly among winners. The remainder goes one chip
// at a time to the winners closest to the left of the dealer.
func splitPot(amount int64, winners []int, dealer, maxSeats int) map[int]int64 {
	shares := make(map[int]int64, len(winners))
	if len(winners) == 0 {
		return shares
	}
	ordered := append([]int(nil), winners...)
	sort.Slice(ordered, func(i, j int) bool {
		return seatDistance(dealer, ordered[i], maxSeats) < seatDistance(dealer, ordered[j], maxSeats)
	})

	n := int64(len(ordered))
	each, rem := amount/n, amount%n
	for i, seat := range ordered {
		shares[seat] = each
		if int64(i) < rem {
			shares[seat]++
		}
	}
	return shares
}

// seatDistance counts seats clockwise from the dealer, the seat to the
// dealer's left being 1 and the dealer itself maxSeats
func seatDistance(dealer, seat, maxSeats int) int {
	d := (seat - dealer + maxSeats) % maxSeats
	if d == 0 {
		return maxSeats
	}
	return d
}
