package game

import "github.com/lox/cardroom/internal/deck"

// Seat is one player's place at a table. Chips persist across hands; every
// other field is reset when a hand starts.
type Seat struct {
	ID        int
	Identity  string
	Chips     int64
	Bet       int64 // Current bet in this phase
	Committed int64 // Total put in the pot this hand
	HoleCards []deck.Card
	Folded    bool
	AllIn     bool
	Acted     bool // Acted since the last full raise in this phase
	InHand    bool // Dealt into the current hand
	Away      bool
	Leaving   bool
	CPU       bool

	startChips int64
	reseated   bool
}

// canAct reports whether the seat still makes decisions this hand
func (s *Seat) canAct() bool {
	return s.InHand && !s.Folded && !s.AllIn
}

// contending reports whether the seat can still win chips this hand
func (s *Seat) contending() bool {
	return s.InHand && !s.Folded
}

func (s *Seat) resetForHand() {
	s.Bet = 0
	s.Committed = 0
	s.HoleCards = nil
	s.Folded = false
	s.AllIn = false
	s.Acted = false
	s.InHand = false
	s.startChips = s.Chips
}

// commit moves chips from the stack into the current bet
func (s *Seat) commit(amount int64) {
	s.Chips -= amount
	s.Bet += amount
	s.Committed += amount
	if s.Chips == 0 && s.InHand {
		s.AllIn = true
	}
}

// SeatOption configures a seat when it sits down
type SeatOption func(*Seat)

// Reseated seats a player whose tournament entry was already charged
func Reseated() SeatOption {
	return func(s *Seat) { s.reseated = true }
}

// AsCPU marks the seat as driven by the automation layer
func AsCPU() SeatOption {
	return func(s *Seat) { s.CPU = true }
}
