package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/ledger"
	"github.com/lox/cardroom/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRegistry struct {
	*Registry
	clock  *quartz.Mock
	ledger *ledger.Ledger
}

func newTestRegistry(t *testing.T, opts ...Option) *testRegistry {
	t.Helper()
	cfg := DefaultConfig()
	seed := int64(42)
	cfg.Seed = &seed

	clock := quartz.NewMock(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	clock.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)).MustWait(ctx)

	l := ledger.New()
	r, err := NewRegistry(cfg, append([]Option{WithClock(clock), WithLedger(l)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return &testRegistry{Registry: r, clock: clock, ledger: l}
}

// advance fires the next timer and waits until its table has handled it
func (r *testRegistry) advance(t *testing.T, tableID string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, w := r.clock.AdvanceNext()
	w.MustWait(ctx)
	_, err := r.GetState(ctx, tableID)
	require.NoError(t, err)
	r.Flush()
}

func headsUp(t *testing.T, r *testRegistry, id string, cpu bool) {
	t.Helper()
	ctx := context.Background()
	_, err := r.CreateTable(ctx, TableSpec{ID: id, Kind: game.Cash, Blinds: game.Blinds{Small: 1, Big: 2}, MaxSeats: 6})
	require.NoError(t, err)
	for i, name := range []string{"alice", "bob"} {
		seat, err := r.SeatPlayer(ctx, id, name, 200, SeatOptions{CPU: cpu})
		require.NoError(t, err)
		assert.Equal(t, i, seat)
	}
}

func TestRegistryCreateTable(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)
	ctx := context.Background()

	id, err := r.CreateTable(ctx, TableSpec{Kind: game.Cash, Blinds: game.Blinds{Small: 1, Big: 2}})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	snap, err := r.GetState(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, game.DefaultMaxSeats, snap.MaxSeats)
	assert.Equal(t, game.Waiting, snap.Phase)

	_, err = r.CreateTable(ctx, TableSpec{ID: id, Kind: game.Cash, Blinds: game.Blinds{Small: 1, Big: 2}})
	assert.ErrorIs(t, err, ErrTableExists)

	_, err = r.CreateTable(ctx, TableSpec{ID: "bad", Kind: game.Cash, Blinds: game.Blinds{Small: 2, Big: 1}})
	assert.ErrorIs(t, err, ErrInvalidTable)
	assert.Equal(t, "invalid_table", errorCode(err))

	assert.Equal(t, []string{id}, r.Tables())
}

func TestRegistryUnknownTable(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.GetState(ctx, "nope")
	assert.ErrorIs(t, err, ErrTableNotFound)
	_, err = r.SeatPlayer(ctx, "nope", "alice", 100, SeatOptions{})
	assert.ErrorIs(t, err, ErrTableNotFound)
	_, err = r.SubmitAction(ctx, "nope", 0, game.Check, 0)
	assert.ErrorIs(t, err, ErrTableNotFound)
	assert.ErrorIs(t, r.Leave(ctx, "nope", 0), ErrTableNotFound)
	assert.Equal(t, "table_not_found", errorCode(err))
}

func TestRegistrySeatPlayer(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.CreateTable(ctx, TableSpec{ID: "small", Kind: game.Cash, Blinds: game.Blinds{Small: 1, Big: 2}, MaxSeats: 2})
	require.NoError(t, err)

	_, err = r.SeatPlayer(ctx, "small", "alice", 100, SeatOptions{CPU: true, Strategy: "bluffer"})
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	seat, err := r.SeatPlayer(ctx, "small", "alice", 100, SeatOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, seat)

	_, err = r.SeatPlayer(ctx, "small", "alice", 100, SeatOptions{})
	var verr *game.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, game.CodeDuplicateIdentity, verr.Code)

	seat, err = r.SeatPlayer(ctx, "small", "cpu-1", 100, SeatOptions{CPU: true, Strategy: "aggro"})
	require.NoError(t, err)
	assert.Equal(t, 1, seat)

	_, err = r.SeatPlayer(ctx, "small", "carol", 100, SeatOptions{})
	assert.ErrorIs(t, err, game.ErrTableFull)
	assert.Equal(t, "table_full", errorCode(err))

	snap, err := r.GetState(ctx, "small")
	require.NoError(t, err)
	v, ok := snap.Seat(1)
	require.True(t, ok)
	assert.True(t, v.CPU)
}

func TestRegistryCPUTablePlaysHands(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)
	ctx := context.Background()

	var mu sync.Mutex
	var settled []game.Settlement
	r.OnHandSettled(func(s game.Settlement) {
		mu.Lock()
		defer mu.Unlock()
		settled = append(settled, s)
	})

	headsUp(t, r, "cpu", true)
	for i := 0; i < 200 && r.ledger.Len() < 3; i++ {
		r.advance(t, "cpu")
	}
	require.GreaterOrEqual(t, r.ledger.Len(), 3)

	mu.Lock()
	hands := append([]game.Settlement(nil), settled...)
	mu.Unlock()
	require.Len(t, hands, r.ledger.Len())

	var rake int64
	for i, s := range hands {
		assert.Equal(t, i+1, s.HandNumber)
		assert.Equal(t, "cpu", s.TableID)
		rake += s.Rake
	}
	assert.Equal(t, rake, r.ledger.Totals(ledger.Filter{}).Rake)

	snap, err := r.GetState(ctx, "cpu")
	require.NoError(t, err)
	assert.Equal(t, int64(400), snap.TotalChips()+rake)
}

func TestRegistrySubmitAction(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)
	ctx := context.Background()

	headsUp(t, r, "humans", false)
	r.advance(t, "humans")

	before, err := r.GetState(ctx, "humans")
	require.NoError(t, err)
	require.Equal(t, game.Preflop, before.Phase)
	acting := before.Acting
	require.GreaterOrEqual(t, acting, 0)
	other := 1 - acting

	t.Run("out of turn is rejected without changes", func(t *testing.T) {
		_, err := r.SubmitAction(ctx, "humans", other, game.Call, 0)
		assert.ErrorIs(t, err, game.ErrNotYourTurn)
		assert.Equal(t, "not_your_turn", errorCode(err))

		after, err := r.GetState(ctx, "humans")
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("check facing a bet is rejected", func(t *testing.T) {
		_, err := r.SubmitAction(ctx, "humans", acting, game.Check, 0)
		assert.ErrorIs(t, err, game.ErrInvalidAction)
	})

	t.Run("call moves the action", func(t *testing.T) {
		snap, err := r.SubmitAction(ctx, "humans", acting, game.Call, 0)
		require.NoError(t, err)
		assert.Equal(t, other, snap.Acting)

		v, ok := snap.Seat(other)
		require.True(t, ok)
		assert.Empty(t, v.HoleCards, "other seat's cards are hidden")
		mine, ok := snap.Seat(acting)
		require.True(t, ok)
		assert.Len(t, mine.HoleCards, 2)
	})
}

func TestRegistryActionTimeoutMarksAway(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)
	ctx := context.Background()

	headsUp(t, r, "slow", false)
	r.advance(t, "slow")

	snap, err := r.GetState(ctx, "slow")
	require.NoError(t, err)
	acting := snap.Acting
	require.GreaterOrEqual(t, acting, 0)

	// The acting seat faces the big blind and is folded for
	r.advance(t, "slow")
	require.Equal(t, 1, r.ledger.Len())

	snap, err = r.GetState(ctx, "slow")
	require.NoError(t, err)
	v, ok := snap.Seat(acting)
	require.True(t, ok)
	assert.True(t, v.Away)
	assert.Equal(t, int64(199), v.Chips)

	other, ok := snap.Seat(1 - acting)
	require.True(t, ok)
	assert.False(t, other.Away)
	assert.Equal(t, int64(201), other.Chips)

	require.NoError(t, r.SetAway(ctx, "slow", acting, false))
	snap, err = r.GetState(ctx, "slow")
	require.NoError(t, err)
	v, _ = snap.Seat(acting)
	assert.False(t, v.Away)
}

func TestRegistryLastLeaveClosesTable(t *testing.T) {
	t.Parallel()
	s := store.NewMemory()
	r := newTestRegistry(t, WithStore(s))
	ctx := context.Background()

	_, err := r.CreateTable(ctx, TableSpec{ID: "lonely", Kind: game.Cash, Blinds: game.Blinds{Small: 1, Big: 2}})
	require.NoError(t, err)
	seat, err := r.SeatPlayer(ctx, "lonely", "alice", 100, SeatOptions{})
	require.NoError(t, err)
	r.Flush()

	_, err = s.LoadTable(ctx, "lonely")
	require.NoError(t, err)

	require.NoError(t, r.Leave(ctx, "lonely", seat))
	assert.Eventually(t, func() bool {
		_, err := r.GetState(ctx, "lonely")
		return errors.Is(err, ErrTableNotFound)
	}, 5*time.Second, 10*time.Millisecond)

	r.Flush()
	_, err = s.LoadTable(ctx, "lonely")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, r.Tables())
}

func TestRegistryRestore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := store.NewMemory()

	require.NoError(t, s.SaveTable(ctx, store.TableRecord{
		ID:       "restored",
		Kind:     game.Cash,
		Blinds:   game.Blinds{Small: 1, Big: 2},
		MaxSeats: 6,
		Seats: []store.SeatRecord{
			{Seat: 0, Identity: "alice", Chips: 150},
			{Seat: 2, Identity: "busted", Chips: 0},
			{Seat: 4, Identity: "cpu-1", Chips: 250, CPU: true, Strategy: "fold"},
		},
	}))
	require.NoError(t, s.SaveTable(ctx, store.TableRecord{ID: "empty", Kind: game.Cash, Blinds: game.Blinds{Small: 1, Big: 2}, MaxSeats: 6}))
	require.NoError(t, s.AppendSettlement(ctx, &game.Settlement{
		TableID:   "restored",
		HandID:    "hand-1",
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Blinds:    game.Blinds{Small: 1, Big: 2},
		PotTotal:  20,
		Rake:      1,
		Seats: []game.SeatResult{
			{Seat: 0, Identity: "alice", Committed: 10, Won: 19, RakePaid: 1},
			{Seat: 4, Identity: "cpu-1", Committed: 10},
		},
	}))

	r := newTestRegistry(t, WithStore(s))
	require.NoError(t, r.Restore(ctx))

	assert.Equal(t, []string{"restored"}, r.Tables())
	assert.Equal(t, 1, r.ledger.Len())

	snap, err := r.GetState(ctx, "restored")
	require.NoError(t, err)
	require.Len(t, snap.Seats, 2)
	assert.Equal(t, "alice", snap.Seats[0].Identity)
	assert.Equal(t, int64(150), snap.Seats[0].Chips)
	assert.Equal(t, "cpu-1", snap.Seats[1].Identity)
	assert.Equal(t, int64(250), snap.Seats[1].Chips)
	assert.True(t, snap.Seats[1].CPU)

	// Replaying twice leaves the ledger alone
	require.NoError(t, r.restoreLedger(ctx, "restored"))
	assert.Equal(t, 1, r.ledger.Len())
}

func TestRegistryRestoreIncludesClosedTables(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := store.NewMemory()

	r := newTestRegistry(t, WithStore(s))
	headsUp(t, r, "gone", false)
	r.advance(t, "gone")
	r.advance(t, "gone")
	require.Equal(t, 1, r.ledger.Len())

	require.NoError(t, r.Leave(ctx, "gone", 0))
	require.NoError(t, r.Leave(ctx, "gone", 1))
	assert.Eventually(t, func() bool {
		_, err := r.GetState(ctx, "gone")
		return errors.Is(err, ErrTableNotFound)
	}, 5*time.Second, 10*time.Millisecond)
	r.Flush()

	ids, err := s.ListTables(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	restarted := newTestRegistry(t, WithStore(s))
	require.NoError(t, restarted.Restore(ctx))
	assert.Empty(t, restarted.Tables())
	assert.Equal(t, 1, restarted.ledger.Len())
	assert.Equal(t, r.ledger.Totals(ledger.Filter{}), restarted.ledger.Totals(ledger.Filter{}))
}

func TestRegistryHumanActionCancelsAwayAction(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)
	ctx := context.Background()

	var mu sync.Mutex
	var settled []game.Settlement
	r.OnHandSettled(func(s game.Settlement) {
		mu.Lock()
		defer mu.Unlock()
		settled = append(settled, s)
	})

	headsUp(t, r, "back", false)
	r.advance(t, "back")

	snap, err := r.GetState(ctx, "back")
	require.NoError(t, err)
	acting := snap.Acting
	require.GreaterOrEqual(t, acting, 0)
	other := 1 - acting

	require.NoError(t, r.SetAway(ctx, "back", acting, true))
	_, err = r.SubmitAction(ctx, "back", acting, game.Call, 0)
	require.NoError(t, err)

	// The away delay passes without an automated action
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	r.clock.Advance(DefaultConfig().AwayDelay).MustWait(waitCtx)
	r.Flush()

	snap, err = r.GetState(ctx, "back")
	require.NoError(t, err)
	assert.Equal(t, game.Preflop, snap.Phase)
	assert.Equal(t, other, snap.Acting)
	v, ok := snap.Seat(acting)
	require.True(t, ok)
	assert.False(t, v.Away)
	assert.Zero(t, r.ledger.Len())

	_, err = r.SubmitAction(ctx, "back", other, game.Fold, 0)
	require.NoError(t, err)
	r.Flush()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, settled, 1)
	actions := settled[0].Actions
	require.Len(t, actions, 2)
	assert.Equal(t, acting, actions[0].Seat)
	assert.Equal(t, game.Call, actions[0].Action)
	assert.Equal(t, other, actions[1].Seat)
	assert.Equal(t, game.Fold, actions[1].Action)
}

func TestRegistryTournamentSummary(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.CreateTable(ctx, TableSpec{ID: "sng", Kind: game.Tournament, Blinds: game.Blinds{Small: 10, Big: 20}, BuyIn: 100})
	require.NoError(t, err)
	for _, name := range []string{"alice", "bob", "carol"} {
		_, err := r.SeatPlayer(ctx, "sng", name, 1500, SeatOptions{})
		require.NoError(t, err)
	}
	summary, err := r.TournamentSummary(ctx, "sng")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Entries)

	headsUp(t, r, "cash", false)
	_, err = r.TournamentSummary(ctx, "cash")
	assert.ErrorIs(t, err, game.ErrNotTournament)
}

func TestRegistryRestoreKeepsTournamentEntries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := store.NewMemory()

	r := newTestRegistry(t, WithStore(s))
	_, err := r.CreateTable(ctx, TableSpec{ID: "sng", Kind: game.Tournament, Blinds: game.Blinds{Small: 10, Big: 20}, BuyIn: 100})
	require.NoError(t, err)
	for _, name := range []string{"alice", "bob", "carol"} {
		_, err := r.SeatPlayer(ctx, "sng", name, 1500, SeatOptions{})
		require.NoError(t, err)
	}
	require.NoError(t, r.Leave(ctx, "sng", 2))
	r.Flush()

	rec, err := s.LoadTable(ctx, "sng")
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Entries)
	require.Len(t, rec.Seats, 2)

	restarted := newTestRegistry(t, WithStore(s))
	require.NoError(t, restarted.Restore(ctx))
	summary, err := restarted.TournamentSummary(ctx, "sng")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Entries)
	assert.InDelta(t, 300, summary.PrizePool, 1e-9)
	assert.InDelta(t, 30, summary.HouseRevenue, 1e-9)
}

func TestRegistrySummaries(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)
	ctx := context.Background()

	headsUp(t, r, "b-table", false)
	_, err := r.CreateTable(ctx, TableSpec{ID: "a-table", Kind: game.Cash, Blinds: game.Blinds{Small: 5, Big: 10}, MaxSeats: 9})
	require.NoError(t, err)

	summaries, err := r.Summaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "a-table", summaries[0].ID)
	assert.Equal(t, 0, summaries[0].Occupied)
	assert.Equal(t, "b-table", summaries[1].ID)
	assert.Equal(t, 2, summaries[1].Occupied)
}

func TestRegistryClose(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)
	ctx := context.Background()

	headsUp(t, r, "closing", false)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err := r.GetState(ctx, "closing")
	assert.ErrorIs(t, err, ErrRegistryClosed)
	_, err = r.CreateTable(ctx, TableSpec{Kind: game.Cash, Blinds: game.Blinds{Small: 1, Big: 2}})
	assert.ErrorIs(t, err, ErrRegistryClosed)
}
