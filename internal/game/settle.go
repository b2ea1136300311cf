package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/lox/cardroom/internal/deck"
	"github.com/lox/cardroom/internal/evaluator"
	"github.com/lox/cardroom/internal/rake"
)

// Settlement is the outcome of one hand. It is emitted once per hand for
// the ledger, storage and subscribers, and never modified afterwards.
type Settlement struct {
	TableID    string         `json:"table_id"`
	HandID     string         `json:"hand_id"`
	HandNumber int            `json:"hand_number"`
	Kind       Kind           `json:"kind"`
	Timestamp  time.Time      `json:"timestamp"`
	Blinds     Blinds         `json:"blinds"`
	Dealer     int            `json:"dealer"`
	Board      []deck.Card    `json:"board"`
	Pots       []Award        `json:"pots"`
	Uncalled   *Refund        `json:"uncalled,omitempty"`
	PotTotal   int64          `json:"pot_total"` // Contested chips before rake
	Rake       int64          `json:"rake"`
	Showdown   bool           `json:"showdown"`
	Seats      []SeatResult   `json:"seats"`
	Actions    []ActionRecord `json:"actions,omitempty"`
}

// ActionRecord is one betting decision in a hand, in the order it was made.
// Blinds are not recorded.
type ActionRecord struct {
	Seat   int    `json:"seat"`
	Phase  Phase  `json:"phase"`
	Action Action `json:"action"`
	Total  int64  `json:"total"` // The seat's bet for the phase afterwards
}

// SeatResult is one seat's part in a settled hand
type SeatResult struct {
	Seat      int         `json:"seat"`
	Identity  string      `json:"identity"`
	HoleCards []deck.Card `json:"hole_cards,omitempty"` // Shown cards only
	Hand      string      `json:"hand,omitempty"`
	Folded    bool        `json:"folded"`
	Committed int64       `json:"committed"`
	Refunded  int64       `json:"refunded"`
	Won       int64       `json:"won"`
	RakePaid  int64       `json:"rake_paid"`
	Delta     int64       `json:"delta"` // Chips won or lost this hand
	Chips     int64       `json:"chips"` // Stack after settlement
}

// Seat returns the result for a seat ID
func (s *Settlement) Seat(id int) (SeatResult, bool) {
	for _, r := range s.Seats {
		if r.Seat == id {
			return r, true
		}
	}
	return SeatResult{}, false
}

// Winners returns every seat that won chips, in seat order
func (s *Settlement) Winners() []int {
	var out []int
	for _, r := range s.Seats {
		if r.Won > 0 {
			out = append(out, r.Seat)
		}
	}
	return out
}

// CheckConservation verifies that the hand moved chips only between seats
// and the house: the seat deltas plus the rake sum to zero.
func (s *Settlement) CheckConservation() error {
	var sum, paid int64
	for _, r := range s.Seats {
		if r.Delta != r.Won+r.Refunded-r.Committed {
			return fmt.Errorf("%w: seat %d delta %d does not match won %d, refunded %d, committed %d",
				ErrChipConservation, r.Seat, r.Delta, r.Won, r.Refunded, r.Committed)
		}
		sum += r.Delta
		paid += r.RakePaid
	}
	if sum+s.Rake != 0 {
		return fmt.Errorf("%w: deltas sum to %d with rake %d", ErrChipConservation, sum, s.Rake)
	}
	if paid != s.Rake {
		return fmt.Errorf("%w: rake paid %d does not match rake %d", ErrChipConservation, paid, s.Rake)
	}
	var awarded int64
	for _, p := range s.Pots {
		var shares int64
		for _, v := range p.Shares {
			shares += v
		}
		if shares != p.Amount {
			return fmt.Errorf("%w: pot of %d paid %d", ErrChipConservation, p.Amount, shares)
		}
		awarded += p.Amount
	}
	if awarded+s.Rake != s.PotTotal {
		return fmt.Errorf("%w: awarded %d plus rake %d is not the pot of %d",
			ErrChipConservation, awarded, s.Rake, s.PotTotal)
	}
	return nil
}

// settle resolves pots, takes the rake and pays the winners. Nothing is
// applied to the seats unless the result conserves chips; on a mismatch the
// table halts.
func (t *Table) settle() (*Settlement, error) {
	t.acting = -1
	showdown := t.countSeats((*Seat).contending) > 1
	if showdown {
		t.phase = Showdown
	}

	contributions := t.contributions()
	pots, rakeChips, awards, err := t.resolvePots(contributions)
	if err != nil {
		t.halt(err)
		return nil, err
	}

	s := &Settlement{
		TableID:    t.ID,
		HandID:     t.handID,
		HandNumber: t.handNumber,
		Kind:       t.Kind,
		Timestamp:  t.clock.Now(),
		Blinds:     t.Blinds,
		Dealer:     t.dealer,
		Board:      append([]deck.Card(nil), t.board...),
		Uncalled:   pots.Uncalled,
		Pots:       awards,
		PotTotal:   pots.Total(),
		Rake:       rakeChips,
		Showdown:   showdown,
		Actions:    append([]ActionRecord(nil), t.actions...),
	}

	contested := make(map[int]int64)
	for _, c := range contributions {
		contested[c.Seat] = c.Amount
	}
	if pots.Uncalled != nil {
		contested[pots.Uncalled.Seat] -= pots.Uncalled.Amount
	}
	rakePaid := rake.Apportion(s.Rake, contested)

	final := make(map[int]int64)
	for _, seat := range t.seats {
		if seat == nil || !seat.InHand {
			continue
		}
		r := SeatResult{
			Seat:      seat.ID,
			Identity:  seat.Identity,
			Folded:    seat.Folded,
			Committed: seat.Committed,
			RakePaid:  rakePaid[seat.ID],
		}
		if pots.Uncalled != nil && pots.Uncalled.Seat == seat.ID {
			r.Refunded = pots.Uncalled.Amount
		}
		for _, a := range awards {
			r.Won += a.Shares[seat.ID]
		}
		if showdown && !seat.Folded {
			r.HoleCards = append([]deck.Card(nil), seat.HoleCards...)
			if h, err := evaluator.Evaluate(append(append([]deck.Card(nil), seat.HoleCards...), t.board...)); err == nil {
				r.Hand = h.String()
			}
		}
		r.Delta = r.Won + r.Refunded - r.Committed
		r.Chips = seat.Chips + r.Won + r.Refunded
		final[seat.ID] = r.Chips
		s.Seats = append(s.Seats, r)
	}

	if err := s.CheckConservation(); err != nil {
		t.halt(err)
		return nil, err
	}
	if err := t.checkStacks(final, s.Rake); err != nil {
		t.halt(err)
		return nil, err
	}

	for id, chips := range final {
		t.seats[id].Chips = chips
	}
	t.phase = Finished
	t.last = s

	for i, seat := range t.seats {
		if seat != nil && seat.Leaving {
			t.seats[i] = nil
			t.logger.Info().Int("seat", i).Str("identity", seat.Identity).Msg("player left")
		}
	}
	if t.Funded() < 2 {
		t.phase = Waiting
	}

	t.logger.Info().
		Str("hand_id", s.HandID).
		Int("hand", s.HandNumber).
		Int64("pot", s.PotTotal).
		Int64("rake", s.Rake).
		Ints("winners", s.Winners()).
		Bool("showdown", showdown).
		Msg("hand settled")
	return s, nil
}

// contributions lists what every dealt seat committed this hand
func (t *Table) contributions() []Contribution {
	var out []Contribution
	for _, s := range t.seats {
		if s == nil || !s.InHand || s.Committed == 0 {
			continue
		}
		out = append(out, Contribution{Seat: s.ID, Amount: s.Committed, Folded: s.Folded})
	}
	return out
}

// resolvePots builds the pots, takes the rake from them and runs the
// showdown. A ConcurrencyError from the showdown means an eligible seat
// lost its hand; that seat is treated as folded and the pots rebuilt.
func (t *Table) resolvePots(contributions []Contribution) (Pots, int64, []Award, error) {
	for attempt := 0; attempt <= len(contributions); attempt++ {
		pots := BuildPots(contributions)
		rakeChips := t.rakeFor(pots.Total())
		raked := takeRake(pots.Pots, rakeChips)

		hands := make(map[int][]deck.Card)
		for _, s := range t.seats {
			if s != nil && s.contending() && len(s.HoleCards) == 2 {
				hands[s.ID] = s.HoleCards
			}
		}
		awards, err := ResolveShowdown(raked, hands, t.board, t.dealer, t.maxSeats)
		var cerr *ConcurrencyError
		if errors.As(err, &cerr) {
			t.logger.Warn().Err(err).Str("hand_id", t.handID).Msg("re-deriving pot eligibility")
			for i := range contributions {
				if contributions[i].Seat == cerr.Seat {
					contributions[i].Folded = true
				}
			}
			continue
		}
		if err != nil {
			return Pots{}, 0, nil, err
		}
		return pots, rakeChips, awards, nil
	}
	return Pots{}, 0, nil, errors.New("could not resolve pot eligibility")
}

// rakeFor returns the house's cut of a contested pot
func (t *Table) rakeFor(pot int64) int64 {
	if t.Kind != Cash || pot <= 0 {
		return 0
	}
	if t.rakeCfg.NoFlopNoDrop && !t.flopSeen {
		return 0
	}
	return rake.ChipRake(t.rakeCfg, pot, t.Blinds.Big)
}

// takeRake removes amount from the pots, main pot first
func takeRake(pots []Pot, amount int64) []Pot {
	out := make([]Pot, len(pots))
	copy(out, pots)
	for i := range out {
		if amount == 0 {
			break
		}
		cut := min(out[i].Amount, amount)
		out[i].Amount -= cut
		amount -= cut
	}
	return out
}

// checkStacks compares the chips at the table before and after the hand
func (t *Table) checkStacks(final map[int]int64, rakeChips int64) error {
	var before, after int64
	for _, s := range t.seats {
		if s == nil || !s.InHand {
			continue
		}
		before += s.startChips
		after += final[s.ID]
	}
	if before != after+rakeChips {
		return fmt.Errorf("%w: %d chips before the hand, %d after with rake %d",
			ErrChipConservation, before, after, rakeChips)
	}
	return nil
}
