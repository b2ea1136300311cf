package game

import "github.com/lox/cardroom/internal/deck"

// Snapshot is an immutable copy of a table's state for transports and
// observers. Mutating it never affects the table.
type Snapshot struct {
	TableID    string      `json:"table_id"`
	Kind       Kind        `json:"kind"`
	Phase      Phase       `json:"phase"`
	HandID     string      `json:"hand_id,omitempty"`
	HandNumber int         `json:"hand_number"`
	Blinds     Blinds      `json:"blinds"`
	MaxSeats   int         `json:"max_seats"`
	Seats      []SeatView  `json:"seats"`
	Board      []deck.Card `json:"board"`
	Pot        int64       `json:"pot"`
	Pots       []Pot       `json:"pots,omitempty"`
	CurrentBet int64       `json:"current_bet"`
	MinRaise   int64       `json:"min_raise"`
	Acting     int         `json:"acting"` // -1 when nobody is to act
	Dealer     int         `json:"dealer"`
	Halted     bool        `json:"halted,omitempty"`
	Entries    int         `json:"entries,omitempty"` // Tournament entries charged

	// Options are the acting seat's legal actions
	Options *ActionOptions `json:"options,omitempty"`
}

// SeatView is a seat as seen in a snapshot
type SeatView struct {
	ID        int         `json:"id"`
	Identity  string      `json:"identity"`
	Chips     int64       `json:"chips"`
	Bet       int64       `json:"bet"`
	Committed int64       `json:"committed"`
	HoleCards []deck.Card `json:"hole_cards,omitempty"`
	Folded    bool        `json:"folded"`
	AllIn     bool        `json:"all_in"`
	Acted     bool        `json:"acted"`
	InHand    bool        `json:"in_hand"`
	Away      bool        `json:"away"`
	Leaving   bool        `json:"leaving"`
	CPU       bool        `json:"cpu"`
	Dealer    bool        `json:"dealer"`
	Shown     bool        `json:"shown,omitempty"` // Cards revealed at the last showdown
}

// Seat returns the view of one seat
func (s Snapshot) Seat(id int) (SeatView, bool) {
	for _, v := range s.Seats {
		if v.ID == id {
			return v, true
		}
	}
	return SeatView{}, false
}

// For returns a copy of the snapshot as seen by viewer: hole cards of other
// seats are removed unless they were shown down.
func (s Snapshot) For(viewer int) Snapshot {
	out := s
	out.Seats = make([]SeatView, len(s.Seats))
	for i, v := range s.Seats {
		if viewer != AllSeats && v.ID != viewer && !v.Shown {
			v.HoleCards = nil
		} else {
			v.HoleCards = append([]deck.Card(nil), v.HoleCards...)
		}
		out.Seats[i] = v
	}
	out.Board = append([]deck.Card{}, s.Board...)
	if s.Options != nil {
		opts := *s.Options
		opts.Actions = append([]Action(nil), s.Options.Actions...)
		out.Options = &opts
	}
	return out
}

// TotalChips is every chip at the table: stacks plus the pot
func (s Snapshot) TotalChips() int64 {
	live := s.Phase.Betting() || s.Phase == Showdown
	var total int64
	for _, v := range s.Seats {
		total += v.Chips
		if live {
			total += v.Committed
		}
	}
	return total
}

// AllSeats is the viewer that sees every hole card
const AllSeats = -2

// Spectator is the viewer that sees no hole cards before showdown
const Spectator = -1

// Snapshot returns the full state including every hole card
func (t *Table) Snapshot() Snapshot {
	return t.SnapshotFor(AllSeats)
}

// SnapshotFor returns the state as seen by viewer: other seats' hole cards
// are hidden unless they were shown down in the last settled hand.
func (t *Table) SnapshotFor(viewer int) Snapshot {
	snap := Snapshot{
		TableID:    t.ID,
		Kind:       t.Kind,
		Phase:      t.phase,
		HandID:     t.handID,
		HandNumber: t.handNumber,
		Blinds:     t.Blinds,
		MaxSeats:   t.maxSeats,
		Board:      append([]deck.Card{}, t.board...),
		CurrentBet: t.currentBet,
		MinRaise:   t.minRaise,
		Acting:     t.acting,
		Dealer:     t.dealer,
		Halted:     t.halted != nil,
		Entries:    len(t.buyIns),
	}

	for _, s := range t.seats {
		if s == nil {
			continue
		}
		v := SeatView{
			ID:        s.ID,
			Identity:  s.Identity,
			Chips:     s.Chips,
			Bet:       s.Bet,
			Committed: s.Committed,
			Folded:    s.Folded,
			AllIn:     s.AllIn,
			Acted:     s.Acted,
			InHand:    s.InHand,
			Away:      s.Away,
			Leaving:   s.Leaving,
			CPU:       s.CPU,
			Dealer:    s.ID == t.dealer,
			Shown:     t.shownDown(s),
			HoleCards: append([]deck.Card(nil), s.HoleCards...),
		}
		if t.InHand() {
			snap.Pot += s.Committed
		}
		snap.Seats = append(snap.Seats, v)
	}
	if t.InHand() {
		snap.Pots = BuildPots(t.contributions()).Pots
	}
	if t.acting >= 0 {
		opts := t.ValidActions(t.acting)
		snap.Options = &opts
	}
	return snap.For(viewer)
}

// shownDown reports whether the seat's cards were revealed at the showdown
// of the hand that just finished
func (t *Table) shownDown(s *Seat) bool {
	if t.InHand() || t.last == nil || !t.last.Showdown || t.last.HandID != t.handID {
		return false
	}
	r, ok := t.last.Seat(s.ID)
	return ok && len(r.HoleCards) > 0
}
