package game

import (
	"fmt"

	"github.com/lox/cardroom/internal/deck"
)

// ActionOptions describes what the acting seat may do. Raise amounts are
// the total bet for the phase.
type ActionOptions struct {
	Actions    []Action `json:"actions"`
	CallAmount int64    `json:"call_amount"`
	MinRaise   int64    `json:"min_raise"`
	MaxRaise   int64    `json:"max_raise"`
}

// Can reports whether a is among the legal actions
func (o ActionOptions) Can(a Action) bool {
	for _, x := range o.Actions {
		if x == a {
			return true
		}
	}
	return false
}

// ValidActions lists the legal actions for a seat. Seats that are not
// acting get an empty set.
func (t *Table) ValidActions(seatID int) ActionOptions {
	if t.halted != nil || !t.phase.Betting() || seatID != t.acting {
		return ActionOptions{}
	}
	s := t.seats[seatID]
	toCall := max(t.currentBet-s.Bet, 0)
	stack := s.Bet + s.Chips

	opts := ActionOptions{Actions: []Action{Fold}}
	if toCall == 0 {
		opts.Actions = append(opts.Actions, Check)
	} else {
		opts.Actions = append(opts.Actions, Call)
		opts.CallAmount = min(toCall, s.Chips)
	}
	if t.mayRaise(s) && stack > t.currentBet {
		opts.Actions = append(opts.Actions, Raise)
		opts.MinRaise = min(t.currentBet+t.minRaise, stack)
		opts.MaxRaise = stack
	}
	if s.Chips > 0 && (t.mayRaise(s) || stack <= t.currentBet) {
		opts.Actions = append(opts.Actions, AllIn)
	}
	return opts
}

// mayRaise reports whether betting is open to the seat: it has not acted
// since the last full raise
func (t *Table) mayRaise(s *Seat) bool {
	return !s.Acted
}

// Act applies the acting seat's decision. Raise amounts are the proposed
// total bet for the phase. Rejected actions leave the table untouched and
// return the unchanged snapshot with the error. When the action ends the
// hand the settlement is returned as well.
func (t *Table) Act(seatID int, action Action, amount int64) (Snapshot, *Settlement, error) {
	if err := t.checkHalted(); err != nil {
		return t.Snapshot(), nil, err
	}
	if !t.phase.Betting() {
		return t.Snapshot(), nil, invalid(CodeHandNotInProgress, "no hand in progress")
	}
	s, err := t.seat(seatID)
	if err != nil {
		return t.Snapshot(), nil, err
	}
	if seatID != t.acting {
		return t.Snapshot(), nil, invalid(CodeNotYourTurn, "seat %d acts, not seat %d", t.acting, seatID)
	}

	action, total, err := t.normalize(s, action, amount)
	if err != nil {
		return t.Snapshot(), nil, err
	}
	t.apply(s, action, total)
	t.record(s, action)

	t.logger.Debug().
		Str("hand_id", t.handID).
		Int("seat", seatID).
		Str("action", action.String()).
		Int64("bet", s.Bet).
		Str("phase", t.phase.String()).
		Msg("action")

	settlement, err := t.progress(seatID)
	return t.Snapshot(), settlement, err
}

// normalize validates an action and resolves the total bet it produces
func (t *Table) normalize(s *Seat, action Action, amount int64) (Action, int64, error) {
	stack := s.Bet + s.Chips
	switch action {
	case Fold:
		return Fold, s.Bet, nil

	case Check:
		if s.Bet != t.currentBet {
			return 0, 0, invalid(CodeInvalidAction, "cannot check, must call %d", t.currentBet-s.Bet)
		}
		return Check, s.Bet, nil

	case Call:
		if t.currentBet <= s.Bet {
			return 0, 0, invalid(CodeInvalidAction, "nothing to call")
		}
		return Call, min(t.currentBet, stack), nil

	case Raise:
		if !t.mayRaise(s) {
			return 0, 0, invalid(CodeInvalidAction, "betting was not reopened, call or fold")
		}
		if amount > stack {
			return 0, 0, invalid(CodeInsufficientChips, "raise to %d exceeds stack of %d", amount, stack)
		}
		if amount <= t.currentBet {
			return 0, 0, invalid(CodeInvalidAmount, "raise to %d does not exceed the current bet of %d", amount, t.currentBet)
		}
		if amount < t.currentBet+t.minRaise {
			if amount < stack {
				return 0, 0, invalid(CodeInvalidAmount, "raise too small, minimum %d", t.currentBet+t.minRaise)
			}
			// A short raise for the whole stack is an all-in
			return AllIn, stack, nil
		}
		if amount == stack {
			return AllIn, stack, nil
		}
		return Raise, amount, nil

	case AllIn:
		if s.Chips == 0 {
			return 0, 0, invalid(CodeInvalidAction, "no chips to commit")
		}
		if stack > t.currentBet && !t.mayRaise(s) {
			return 0, 0, invalid(CodeInvalidAction, "betting was not reopened, call or fold")
		}
		return AllIn, stack, nil
	}
	return 0, 0, invalid(CodeInvalidAction, "unknown action %d", action)
}

// apply mutates the seat for a validated action
func (t *Table) apply(s *Seat, action Action, total int64) {
	s.Acted = true
	switch action {
	case Fold:
		s.Folded = true
	case Check:
	case Call, Raise, AllIn:
		s.commit(total - s.Bet)
		if total <= t.currentBet {
			return
		}
		if size := total - t.currentBet; size >= t.minRaise {
			// A full raise reopens betting for everyone else
			t.minRaise = size
			for _, other := range t.seats {
				if other != nil && other != s {
					other.Acted = false
				}
			}
		}
		t.currentBet = total
	}
}

// progress moves the hand forward after seat from has acted: it hands the
// action on, deals the next street, or settles the hand. Seats that are
// leaving fold when their turn comes.
func (t *Table) progress(from int) (*Settlement, error) {
	for {
		if t.countSeats((*Seat).contending) <= 1 {
			return t.settle()
		}
		if t.roundComplete() {
			if t.phase == River || t.countSeats((*Seat).canAct) < 2 {
				if err := t.runOut(); err != nil {
					return nil, err
				}
				return t.settle()
			}
			if err := t.nextStreet(); err != nil {
				return nil, err
			}
			from = t.dealer
		}

		next := t.nextToAct(from)
		if next < 0 {
			err := fmt.Errorf("no seat to act in %s with betting open", t.phase)
			t.halt(err)
			return nil, err
		}
		t.acting = next
		s := t.seats[next]
		if !s.Leaving {
			return nil, nil
		}
		s.Folded = true
		s.Acted = true
		t.record(s, Fold)
		from = next
	}
}

func (t *Table) record(s *Seat, action Action) {
	t.actions = append(t.actions, ActionRecord{Seat: s.ID, Phase: t.phase, Action: action, Total: s.Bet})
}

// roundComplete reports whether every seat that can act has acted since
// the last full raise and matched the current bet
func (t *Table) roundComplete() bool {
	var actors []*Seat
	for _, s := range t.seats {
		if s != nil && s.canAct() {
			actors = append(actors, s)
		}
	}
	switch len(actors) {
	case 0:
		return true
	case 1:
		// Nobody left to bet against
		return actors[0].Bet >= t.currentBet
	}
	for _, s := range actors {
		if !s.Acted || s.Bet != t.currentBet {
			return false
		}
	}
	return true
}

// nextToAct returns the first seat after from that still owes a decision
func (t *Table) nextToAct(from int) int {
	return t.nextSeat(from, func(s *Seat) bool {
		return s.canAct() && (!s.Acted || s.Bet < t.currentBet)
	})
}

// nextStreet resets the betting round, burns a card and deals the board
func (t *Table) nextStreet() error {
	for _, s := range t.seats {
		if s != nil {
			s.Bet = 0
			s.Acted = false
		}
	}
	t.currentBet = 0
	t.minRaise = t.Blinds.Big
	t.acting = -1

	deal := map[Phase]int{Preflop: 3, Flop: 1, Turn: 1}[t.phase]
	if err := t.deck.Burn(); err != nil {
		t.halt(&CapacityError{Resource: "deck", Err: err})
		return t.halted
	}
	cards, err := t.deck.DrawN(deal)
	if err != nil {
		t.halt(&CapacityError{Resource: "deck", Err: err})
		return t.halted
	}
	t.board = append(t.board, cards...)
	t.phase++
	if t.phase == Flop {
		t.flopSeen = true
	}
	t.logger.Debug().
		Str("hand_id", t.handID).
		Str("phase", t.phase.String()).
		Strs("board", deck.Codes(t.board)).
		Msg("dealt")
	return nil
}

// runOut deals the remaining streets when no more betting is possible
func (t *Table) runOut() error {
	for t.phase < River {
		if err := t.nextStreet(); err != nil {
			return err
		}
	}
	return nil
}
