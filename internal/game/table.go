package game

import (
	"errors"
	"fmt"
	rand "math/rand/v2"

	"github.com/coder/quartz"
	"github.com/lox/cardroom/internal/deck"
	"github.com/lox/cardroom/internal/rake"
	"github.com/rs/zerolog"
)

// Table is the aggregate root for one poker table. All seat and hand state
// is mutated through its methods. A Table is not safe for concurrent use;
// callers serialize access per table.
type Table struct {
	ID     string
	Kind   Kind
	Blinds Blinds

	maxSeats int
	seats    []*Seat // indexed by seat ID, nil when empty

	phase      Phase
	board      []deck.Card
	deck       *deck.Deck
	currentBet int64
	minRaise   int64
	acting     int
	dealer     int
	handID     string
	handNumber int
	flopSeen   bool
	actions    []ActionRecord

	last    *Settlement
	halted  error
	buyIns  []float64
	entries int // Earlier entries restored with WithEntries

	rng        *rand.Rand
	deckSource func() *deck.Deck
	rakeCfg    rake.Config
	clock      quartz.Clock
	logger     zerolog.Logger
	buyIn      float64
	newHandID  func() string
}

// NewTable creates an empty table waiting for players
func NewTable(id string, kind Kind, blinds Blinds, opts ...Option) (*Table, error) {
	t := &Table{
		ID:     id,
		Kind:   kind,
		Blinds: blinds,
		acting: -1,
		dealer: -1,
	}
	defaultOptions(t)
	for _, opt := range opts {
		opt(t)
	}

	if id == "" {
		return nil, errors.New("table id is required")
	}
	if blinds.Small <= 0 || blinds.Big < blinds.Small {
		return nil, fmt.Errorf("invalid blinds %d/%d", blinds.Small, blinds.Big)
	}
	if t.maxSeats < 2 || t.maxSeats > 10 {
		return nil, fmt.Errorf("max seats must be between 2 and 10, got %d", t.maxSeats)
	}
	if t.rng == nil && t.deckSource == nil {
		return nil, errors.New("rng or deck source is required")
	}
	if err := t.rakeCfg.Validate(); err != nil {
		return nil, err
	}

	if t.Kind == Tournament {
		for range t.entries {
			t.buyIns = append(t.buyIns, t.buyIn)
		}
	}
	t.seats = make([]*Seat, t.maxSeats)
	t.logger = t.logger.With().Str("table_id", id).Logger()
	return t, nil
}

// Phase returns the current phase
func (t *Table) Phase() Phase { return t.phase }

// MaxSeats returns the number of seats at the table
func (t *Table) MaxSeats() int { return t.maxSeats }

// Acting returns the seat to act, or -1
func (t *Table) Acting() int { return t.acting }

// HandID returns the current or most recent hand ID
func (t *Table) HandID() string { return t.handID }

// Halted returns the error that stopped the table, if any
func (t *Table) Halted() error { return t.halted }

// LastSettlement returns the most recent settled hand
func (t *Table) LastSettlement() *Settlement { return t.last }

// Occupied returns the number of taken seats
func (t *Table) Occupied() int {
	n := 0
	for _, s := range t.seats {
		if s != nil {
			n++
		}
	}
	return n
}

// Funded returns the number of seats that can be dealt into a hand
func (t *Table) Funded() int {
	n := 0
	for _, s := range t.seats {
		if s != nil && s.Chips > 0 && !s.Leaving {
			n++
		}
	}
	return n
}

// InHand reports whether a hand is being played
func (t *Table) InHand() bool {
	return t.phase.Betting() || t.phase == Showdown
}

func (t *Table) checkHalted() error {
	if t.halted != nil {
		return fmt.Errorf("%w: %v", ErrTableHalted, t.halted)
	}
	return nil
}

func (t *Table) halt(err error) {
	t.halted = err
	t.acting = -1
	t.logger.Error().Err(err).Str("hand_id", t.handID).Msg("table halted")
}

func (t *Table) seat(id int) (*Seat, error) {
	if id < 0 || id >= len(t.seats) || t.seats[id] == nil {
		return nil, invalid(CodeUnknownSeat, "no player in seat %d", id)
	}
	return t.seats[id], nil
}

// Sit places a player in the first empty seat. A player joining during a
// hand is dealt in from the next hand. Tournament entries are charged the
// table buy-in plus fee.
func (t *Table) Sit(identity string, chips int64, opts ...SeatOption) (int, error) {
	if err := t.checkHalted(); err != nil {
		return -1, err
	}
	if identity == "" {
		return -1, invalid(CodeInvalidAction, "identity is required")
	}
	if chips <= 0 {
		return -1, invalid(CodeInvalidAmount, "buy-in must be positive, got %d", chips)
	}
	free := -1
	for i, s := range t.seats {
		if s == nil {
			if free < 0 {
				free = i
			}
			continue
		}
		if s.Identity == identity {
			return -1, invalid(CodeDuplicateIdentity, "%s is already seated", identity)
		}
	}
	if free < 0 {
		return -1, &CapacityError{Resource: "seats", Err: ErrTableFull}
	}

	s := &Seat{ID: free, Identity: identity, Chips: chips, startChips: chips}
	for _, opt := range opts {
		opt(s)
	}
	t.seats[free] = s

	log := t.logger.Info().Int("seat", free).Str("identity", identity).Int64("chips", chips)
	if t.Kind == Tournament && !s.reseated {
		fee := rake.TournamentFee(t.rakeCfg, t.buyIn)
		t.buyIns = append(t.buyIns, t.buyIn)
		log = log.Float64("buy_in", fee.BuyIn).Float64("fee", fee.Fee)
	}
	log.Msg("player seated")
	return free, nil
}

// Leave removes a player. Between hands the seat is freed at once. During a
// hand the seat folds immediately if it is acting; otherwise it stays
// committed, folds on its next turn and is freed at settlement.
func (t *Table) Leave(seatID int) (*Settlement, error) {
	s, err := t.seat(seatID)
	if err != nil {
		return nil, err
	}
	if !t.InHand() || !s.InHand || t.halted != nil {
		t.seats[seatID] = nil
		t.logger.Info().Int("seat", seatID).Str("identity", s.Identity).Msg("player left")
		return nil, nil
	}

	s.Leaving = true
	t.logger.Info().Int("seat", seatID).Str("identity", s.Identity).Msg("player leaving after hand")
	if seatID != t.acting {
		return nil, nil
	}
	s.Folded = true
	s.Acted = true
	t.record(s, Fold)
	return t.progress(seatID)
}

// SetAway marks a seat as away so the automation layer acts for it
func (t *Table) SetAway(seatID int, away bool) error {
	s, err := t.seat(seatID)
	if err != nil {
		return err
	}
	s.Away = away
	return nil
}

// Entries returns the number of tournament entries charged so far
func (t *Table) Entries() int { return len(t.buyIns) }

// TournamentSummary totals the entries of a tournament table
func (t *Table) TournamentSummary() (rake.TournamentSummary, error) {
	if t.Kind != Tournament {
		return rake.TournamentSummary{}, fmt.Errorf("%w: %s", ErrNotTournament, t.ID)
	}
	return rake.SummarizeTournament(t.rakeCfg, t.buyIns), nil
}

// StartHand deals a new hand: moves the button, posts blinds, deals hole
// cards and hands the action to the seat after the big blind. The hand is
// settled at once, and the settlement returned, when the blinds leave nobody
// with a decision to make.
func (t *Table) StartHand() (*Settlement, error) {
	if err := t.checkHalted(); err != nil {
		return nil, err
	}
	if t.InHand() {
		return nil, invalid(CodeHandInProgress, "hand %s is in progress", t.handID)
	}
	if t.Funded() < 2 {
		t.phase = Waiting
		return nil, ErrNotEnoughPlayers
	}

	for _, s := range t.seats {
		if s == nil {
			continue
		}
		s.resetForHand()
		s.InHand = s.Chips > 0 && !s.Leaving
	}
	t.board = nil
	t.currentBet = 0
	t.minRaise = t.Blinds.Big
	t.flopSeen = false
	t.actions = nil
	t.handNumber++
	t.handID = t.newHandID()
	t.dealer = t.nextSeat(t.dealer, (*Seat).inHand)

	if t.deckSource != nil {
		t.deck = t.deckSource()
	} else {
		t.deck = deck.New(t.rng)
	}
	if err := t.dealHoleCards(); err != nil {
		t.halt(err)
		return nil, err
	}

	sb := t.nextSeat(t.dealer, (*Seat).inHand)
	if t.countSeats((*Seat).inHand) == 2 {
		// Heads-up: the button posts the small blind and acts first preflop
		sb = t.dealer
	}
	bb := t.nextSeat(sb, (*Seat).inHand)
	t.seats[sb].commit(min(t.Blinds.Small, t.seats[sb].Chips))
	t.seats[bb].commit(min(t.Blinds.Big, t.seats[bb].Chips))
	t.currentBet = t.Blinds.Big
	t.phase = Preflop
	t.acting = -1

	t.logger.Debug().
		Str("hand_id", t.handID).
		Int("hand", t.handNumber).
		Int("dealer", t.dealer).
		Int("small_blind", sb).
		Int("big_blind", bb).
		Msg("hand started")

	// Blinds can put every player all-in before anyone acts
	return t.progress(bb)
}

func (t *Table) dealHoleCards() error {
	for round := 0; round < 2; round++ {
		seat := t.dealer
		for i := 0; i < t.countSeats((*Seat).inHand); i++ {
			seat = t.nextSeat(seat, (*Seat).inHand)
			c, err := t.deck.Draw()
			if err != nil {
				return &CapacityError{Resource: "deck", Err: err}
			}
			t.seats[seat].HoleCards = append(t.seats[seat].HoleCards, c)
		}
	}
	return nil
}

func (s *Seat) inHand() bool { return s.InHand }

// nextSeat returns the first occupied seat after from, clockwise, that
// matches pred. It wraps around to from itself and returns -1 when no seat
// matches.
func (t *Table) nextSeat(from int, pred func(*Seat) bool) int {
	n := len(t.seats)
	for i := 1; i <= n; i++ {
		idx := ((from+i)%n + n) % n
		if s := t.seats[idx]; s != nil && pred(s) {
			return idx
		}
	}
	return -1
}

func (t *Table) countSeats(pred func(*Seat) bool) int {
	n := 0
	for _, s := range t.seats {
		if s != nil && pred(s) {
			n++
		}
	}
	return n
}
