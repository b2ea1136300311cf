package server

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/lox/cardroom/internal/events"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/gameid"
	"github.com/lox/cardroom/internal/ledger"
	"github.com/lox/cardroom/internal/rake"
	"github.com/lox/cardroom/internal/randutil"
	"github.com/lox/cardroom/internal/store"
	"github.com/rs/zerolog"
)

var (
	ErrTableNotFound  = errors.New("table not found")
	ErrTableExists    = errors.New("table already exists")
	ErrRegistryClosed = errors.New("registry closed")
	ErrInvalidTable   = errors.New("invalid table")
)

// Config holds the timings and house schedule shared by every table
type Config struct {
	// NextHandDelay separates a settled hand from the next deal
	NextHandDelay time.Duration
	// CPUDelay is how long a CPU seat waits before acting
	CPUDelay time.Duration
	// AwayDelay is how long the house waits before acting for an away seat
	AwayDelay time.Duration
	// ActionTimeout marks a human seat away when it has not acted in time.
	// Zero waits forever.
	ActionTimeout time.Duration

	Rake rake.Config
	// Seed makes shuffles reproducible when set
	Seed *int64
}

// DefaultConfig returns the standard timings
func DefaultConfig() Config {
	return Config{
		NextHandDelay: 2 * time.Second,
		CPUDelay:      500 * time.Millisecond,
		AwayDelay:     time.Second,
		ActionTimeout: 30 * time.Second,
		Rake:          rake.DefaultConfig(),
	}
}

// TableSpec describes a table to create. An empty ID is generated.
type TableSpec struct {
	ID       string      `json:"id"`
	Kind     game.Kind   `json:"kind"`
	Blinds   game.Blinds `json:"blinds"`
	MaxSeats int         `json:"max_seats"`
	BuyIn    float64     `json:"buy_in,omitempty"` // Tournament entry, in currency
	Entries  int         `json:"entries,omitempty"` // Entries already charged, when restoring
}

// SeatOptions configures a seat when a player sits
type SeatOptions struct {
	CPU      bool
	Strategy string
	// Reseated skips the tournament entry charge for a restored player
	Reseated bool
}

// TableSummary is a table's lobby line
type TableSummary struct {
	ID         string      `json:"id"`
	Kind       game.Kind   `json:"kind"`
	Blinds     game.Blinds `json:"blinds"`
	MaxSeats   int         `json:"max_seats"`
	Occupied   int         `json:"occupied"`
	Phase      game.Phase  `json:"phase"`
	HandNumber int         `json:"hand_number"`
}

// Registry owns every live table. Each table runs on its own goroutine and
// applies intents and timer callbacks one at a time; tables run in
// parallel. Settlements are dispatched to the ledger, the store, the
// publisher and subscribers after the table has moved on.
type Registry struct {
	cfg       Config
	clock     quartz.Clock
	logger    zerolog.Logger
	ledger    *ledger.Ledger
	store     store.Store
	publisher events.Publisher
	dispatch  *dispatcher

	mu     sync.RWMutex
	tables map[string]*tableRunner
	rng    *rand.Rand
	closed bool

	subsMu  sync.RWMutex
	settled []func(game.Settlement)
	changed []func(game.Snapshot)
}

// Option configures a Registry
type Option func(*Registry)

func WithClock(clock quartz.Clock) Option {
	return func(r *Registry) { r.clock = clock }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithLedger records every settled hand in l
func WithLedger(l *ledger.Ledger) Option {
	return func(r *Registry) { r.ledger = l }
}

// WithStore persists tables and settlements in s
func WithStore(s store.Store) Option {
	return func(r *Registry) { r.store = s }
}

// WithPublisher publishes settlements and state changes
func WithPublisher(p events.Publisher) Option {
	return func(r *Registry) { r.publisher = p }
}

// NewRegistry returns an empty registry
func NewRegistry(cfg Config, opts ...Option) (*Registry, error) {
	if err := cfg.Rake.Validate(); err != nil {
		return nil, err
	}
	r := &Registry{
		cfg:    cfg,
		clock:  quartz.NewReal(),
		logger: zerolog.Nop(),
		tables: make(map[string]*tableRunner),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "registry").Logger()
	r.rng, _ = randutil.Seeded(cfg.Seed)
	r.dispatch = newDispatcher(r.logger)
	return r, nil
}

// Ledger returns the revenue ledger, or nil
func (r *Registry) Ledger() *ledger.Ledger { return r.ledger }

// OnHandSettled registers fn to receive every settlement. Callbacks run on
// the dispatcher goroutine in settlement order and must not block.
func (r *Registry) OnHandSettled(fn func(game.Settlement)) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	r.settled = append(r.settled, fn)
}

// OnStateChange registers fn to receive the full state after every change
// to a table. Callbacks run on the dispatcher goroutine.
func (r *Registry) OnStateChange(fn func(game.Snapshot)) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	r.changed = append(r.changed, fn)
}

// CreateTable creates and starts a table and returns its ID
func (r *Registry) CreateTable(ctx context.Context, spec TableSpec) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if spec.ID == "" {
		spec.ID = gameid.Typed("table")
	}
	if spec.MaxSeats == 0 {
		spec.MaxSeats = game.DefaultMaxSeats
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrRegistryClosed
	}
	if _, ok := r.tables[spec.ID]; ok {
		return "", fmt.Errorf("%w: %s", ErrTableExists, spec.ID)
	}

	logger := r.logger.With().Str("table_id", spec.ID).Logger()
	table, err := game.NewTable(spec.ID, spec.Kind, spec.Blinds,
		game.WithMaxSeats(spec.MaxSeats),
		game.WithRNG(randutil.Child(r.rng)),
		game.WithRakeConfig(r.cfg.Rake),
		game.WithClock(r.clock),
		game.WithLogger(r.logger.With().Str("component", "table").Logger()),
		game.WithBuyIn(spec.BuyIn),
		game.WithEntries(spec.Entries),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}

	runner := newTableRunner(r, spec, table, randutil.Child(r.rng), logger)
	r.tables[spec.ID] = runner
	go runner.run()

	logger.Info().
		Str("kind", spec.Kind.String()).
		Int64("small_blind", spec.Blinds.Small).
		Int64("big_blind", spec.Blinds.Big).
		Int("max_seats", spec.MaxSeats).
		Msg("table created")
	return spec.ID, nil
}

func (r *Registry) runner(tableID string) (*tableRunner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	t, ok := r.tables[tableID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, tableID)
	}
	return t, nil
}

// remove unregisters a runner that has shut itself down
func (r *Registry) remove(t *tableRunner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tables[t.id] == t {
		delete(r.tables, t.id)
	}
}

// SeatPlayer seats a player with chips and returns the seat ID. CPU seats
// are played by the named strategy.
func (r *Registry) SeatPlayer(ctx context.Context, tableID, identity string, chips int64, opts SeatOptions) (int, error) {
	t, err := r.runner(tableID)
	if err != nil {
		return -1, err
	}
	var seat int
	err = t.do(ctx, func() (e error) {
		seat, e = t.seat(identity, chips, opts)
		return e
	})
	return seat, err
}

// SubmitAction applies a seat's decision and returns the state as that
// seat sees it. A validation error leaves the table untouched.
func (r *Registry) SubmitAction(ctx context.Context, tableID string, seatID int, action game.Action, amount int64) (game.Snapshot, error) {
	t, err := r.runner(tableID)
	if err != nil {
		return game.Snapshot{}, err
	}
	var snap game.Snapshot
	err = t.do(ctx, func() (e error) {
		snap, e = t.act(seatID, action, amount)
		return e
	})
	return snap, err
}

// GetState returns the full state of a table, every hole card included
func (r *Registry) GetState(ctx context.Context, tableID string) (game.Snapshot, error) {
	return r.GetStateFor(ctx, tableID, game.AllSeats)
}

// GetStateFor returns the state as seen from a seat; pass game.Spectator
// for a view without hidden cards
func (r *Registry) GetStateFor(ctx context.Context, tableID string, viewer int) (game.Snapshot, error) {
	t, err := r.runner(tableID)
	if err != nil {
		return game.Snapshot{}, err
	}
	var snap game.Snapshot
	err = t.do(ctx, func() error {
		snap = t.table.SnapshotFor(viewer)
		return nil
	})
	return snap, err
}

// Leave removes a player. A player in a live hand folds and is removed at
// settlement.
func (r *Registry) Leave(ctx context.Context, tableID string, seatID int) error {
	t, err := r.runner(tableID)
	if err != nil {
		return err
	}
	return t.do(ctx, func() error { return t.leave(seatID) })
}

// Disconnect is called when a seat's transport goes away
func (r *Registry) Disconnect(ctx context.Context, tableID string, seatID int) error {
	r.logger.Info().Str("table_id", tableID).Int("seat", seatID).Msg("seat disconnected")
	return r.Leave(ctx, tableID, seatID)
}

// SetAway marks a seat away, so the house checks or folds for it, or back
func (r *Registry) SetAway(ctx context.Context, tableID string, seatID int, away bool) error {
	t, err := r.runner(tableID)
	if err != nil {
		return err
	}
	return t.do(ctx, func() error { return t.setAway(seatID, away) })
}

// TournamentSummary totals a tournament table's entries
func (r *Registry) TournamentSummary(ctx context.Context, tableID string) (rake.TournamentSummary, error) {
	t, err := r.runner(tableID)
	if err != nil {
		return rake.TournamentSummary{}, err
	}
	var summary rake.TournamentSummary
	err = t.do(ctx, func() (e error) {
		summary, e = t.table.TournamentSummary()
		return e
	})
	return summary, err
}

// Tables returns the IDs of the live tables, sorted
func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.tables))
	for id := range r.tables {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Summaries returns the lobby line of every live table
func (r *Registry) Summaries(ctx context.Context) ([]TableSummary, error) {
	var out []TableSummary
	for _, id := range r.Tables() {
		snap, err := r.GetStateFor(ctx, id, game.Spectator)
		if errors.Is(err, ErrTableNotFound) {
			continue
		} else if err != nil {
			return nil, err
		}
		out = append(out, TableSummary{
			ID:         snap.TableID,
			Kind:       snap.Kind,
			Blinds:     snap.Blinds,
			MaxSeats:   snap.MaxSeats,
			Occupied:   len(snap.Seats),
			Phase:      snap.Phase,
			HandNumber: snap.HandNumber,
		})
	}
	return out, nil
}

// Restore replays every stored settlement into the ledger, closed tables
// included, then recreates the tables held in the store and reseats their
// players with their saved stacks
func (r *Registry) Restore(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	if r.ledger != nil {
		settled, err := r.store.SettlementTables(ctx)
		if err != nil {
			return fmt.Errorf("list settled tables: %w", err)
		}
		for _, id := range settled {
			if err := r.restoreLedger(ctx, id); err != nil {
				return err
			}
		}
	}

	ids, err := r.store.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	for _, id := range ids {
		rec, err := r.store.LoadTable(ctx, id)
		if err != nil {
			return fmt.Errorf("load table %s: %w", id, err)
		}
		if len(rec.Seats) == 0 {
			continue
		}
		if _, err := r.CreateTable(ctx, TableSpec{
			ID:       rec.ID,
			Kind:     rec.Kind,
			Blinds:   rec.Blinds,
			MaxSeats: rec.MaxSeats,
			BuyIn:    rec.BuyIn,
			Entries:  rec.Entries,
		}); err != nil {
			return fmt.Errorf("restore table %s: %w", id, err)
		}
		for _, s := range rec.Seats {
			if s.Chips <= 0 {
				continue
			}
			if _, err := r.SeatPlayer(ctx, rec.ID, s.Identity, s.Chips, SeatOptions{CPU: s.CPU, Strategy: s.Strategy, Reseated: true}); err != nil {
				return fmt.Errorf("restore %s at %s: %w", s.Identity, id, err)
			}
		}
		r.logger.Info().Str("table_id", id).Int("seats", len(rec.Seats)).Msg("table restored")
	}
	return nil
}

func (r *Registry) restoreLedger(ctx context.Context, tableID string) error {
	if r.ledger == nil {
		return nil
	}
	settlements, err := r.store.Settlements(ctx, tableID)
	if err != nil {
		return fmt.Errorf("load settlements for %s: %w", tableID, err)
	}
	for i := range settlements {
		rec := ledger.RecordFromSettlement(&settlements[i])
		if err := r.ledger.Append(rec); err != nil && !errors.Is(err, ledger.ErrDuplicateHand) {
			r.logger.Warn().Err(err).Str("table_id", tableID).Str("hand_id", rec.HandID).Msg("skipping stored settlement")
		}
	}
	return nil
}

// Flush waits until the side effects of every change so far have run
func (r *Registry) Flush() {
	r.dispatch.flush()
}

// Close stops every table and waits for pending side effects
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	runners := make([]*tableRunner, 0, len(r.tables))
	for _, t := range r.tables {
		runners = append(runners, t)
	}
	r.tables = make(map[string]*tableRunner)
	r.mu.Unlock()

	for _, t := range runners {
		t.shutdown()
	}
	r.dispatch.close()
	r.logger.Info().Int("tables", len(runners)).Msg("registry closed")
	return nil
}

// settle fans a settlement out to the ledger, the store, the publisher and
// subscribers. Called on the dispatcher goroutine.
func (r *Registry) settle(s game.Settlement, rec *store.TableRecord) {
	logger := r.logger.With().Str("table_id", s.TableID).Str("hand_id", s.HandID).Logger()
	if r.ledger != nil {
		if err := r.ledger.Append(ledger.RecordFromSettlement(&s)); err != nil {
			logger.Error().Err(err).Msg("ledger append failed")
		}
	}
	if r.store != nil {
		ctx := context.Background()
		if err := r.store.AppendSettlement(ctx, &s); err != nil {
			logger.Error().Err(err).Msg("store settlement failed")
		}
		if rec != nil {
			if err := r.store.SaveTable(ctx, *rec); err != nil {
				logger.Error().Err(err).Msg("store table failed")
			}
		}
	}
	if r.publisher != nil {
		if err := r.publisher.PublishSettlement(&s); err != nil {
			logger.Warn().Err(err).Msg("publish settlement failed")
		}
	}

	r.subsMu.RLock()
	subs := r.settled
	r.subsMu.RUnlock()
	for _, fn := range subs {
		fn(s)
	}
}

// stateChanged runs on the dispatcher goroutine
func (r *Registry) stateChanged(snap game.Snapshot) {
	if r.publisher != nil {
		if err := r.publisher.PublishState(snap); err != nil {
			r.logger.Warn().Err(err).Str("table_id", snap.TableID).Msg("publish state failed")
		}
	}
	r.subsMu.RLock()
	subs := r.changed
	r.subsMu.RUnlock()
	for _, fn := range subs {
		fn(snap)
	}
}

func (r *Registry) saveTable(rec store.TableRecord) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveTable(context.Background(), rec); err != nil {
		r.logger.Error().Err(err).Str("table_id", rec.ID).Msg("store table failed")
	}
}

func (r *Registry) deleteTable(id string) {
	if r.store == nil {
		return
	}
	if err := r.store.DeleteTable(context.Background(), id); err != nil {
		r.logger.Error().Err(err).Str("table_id", id).Msg("delete stored table failed")
	}
}
