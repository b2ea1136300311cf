package server

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sync"

	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/store"
	"github.com/rs/zerolog"
)

// requestBuffer bounds the intents and timer callbacks queued for a table
const requestBuffer = 128

// turnKey identifies one decision: a seat to act at a point in a hand
type turnKey struct {
	hand string
	seat int
	seq  int
}

// tableRunner serializes everything that touches one table. All fields
// below requests are owned by the run goroutine.
type tableRunner struct {
	id     string
	reg    *Registry
	logger zerolog.Logger

	requests chan func()
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	spec       TableSpec
	table      *game.Table
	rng        *rand.Rand
	timers     *timers
	strategies map[int]Strategy
	seated     bool
	closing    bool
	actions    int
	turn       turnKey
}

func newTableRunner(reg *Registry, spec TableSpec, table *game.Table, rng *rand.Rand, logger zerolog.Logger) *tableRunner {
	t := &tableRunner{
		id:         spec.ID,
		reg:        reg,
		logger:     logger,
		requests:   make(chan func(), requestBuffer),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		spec:       spec,
		table:      table,
		rng:        rng,
		strategies: make(map[int]Strategy),
	}
	t.timers = newTimers(reg.clock, spec.ID, t.post)
	return t
}

func (t *tableRunner) run() {
	defer close(t.done)
	for {
		select {
		case fn := <-t.requests:
			fn()
			if t.closing {
				t.finish()
				return
			}
		case <-t.stop:
			t.timers.stopAll()
			t.persist()
			return
		}
	}
}

// do runs fn on the runner and waits for it. Once queued, fn runs even if
// ctx is cancelled.
func (t *tableRunner) do(ctx context.Context, fn func() error) error {
	var err error
	finished := make(chan struct{})
	req := func() {
		defer close(finished)
		err = fn()
	}

	select {
	case t.requests <- req:
	case <-t.stop:
		return fmt.Errorf("%w: %s", ErrTableNotFound, t.id)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return err
	case <-t.done:
		select {
		case <-finished:
			return err
		default:
			return fmt.Errorf("%w: %s", ErrTableNotFound, t.id)
		}
	}
}

// post queues fn without waiting; used by timer callbacks
func (t *tableRunner) post(fn func()) {
	select {
	case t.requests <- fn:
	case <-t.stop:
	}
}

// shutdown stops the runner and waits for it to exit
func (t *tableRunner) shutdown() {
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.done
}

// finish tears the table down after its last player left
func (t *tableRunner) finish() {
	t.timers.stopAll()
	t.stopOnce.Do(func() { close(t.stop) })
	t.reg.remove(t)
	reg, id := t.reg, t.id
	reg.dispatch.submit(func() { reg.deleteTable(id) })
	t.logger.Info().Msg("table closed, last player left")
}

func (t *tableRunner) seat(identity string, chips int64, opts SeatOptions) (int, error) {
	var strategy Strategy
	var seatOpts []game.SeatOption
	if opts.CPU {
		s, err := ResolveStrategy(opts.Strategy)
		if err != nil {
			return -1, err
		}
		strategy = s
		seatOpts = append(seatOpts, game.AsCPU())
	}
	if opts.Reseated {
		seatOpts = append(seatOpts, game.Reseated())
	}

	id, err := t.table.Sit(identity, chips, seatOpts...)
	if err != nil {
		return -1, err
	}
	if strategy != nil {
		t.strategies[id] = strategy
	}
	t.seated = true
	t.persist()
	t.afterChange(nil)
	return id, nil
}

func (t *tableRunner) act(seatID int, action game.Action, amount int64) (game.Snapshot, error) {
	_, settlement, err := t.table.Act(seatID, action, amount)
	if err != nil {
		if t.table.Halted() != nil {
			t.afterChange(nil)
		}
		return t.table.SnapshotFor(seatID), err
	}

	t.timers.cancel(timerKey{autoActionTimer, seatID})
	if v, ok := t.table.Snapshot().Seat(seatID); ok && v.Away {
		_ = t.table.SetAway(seatID, false)
	}
	t.actions++
	t.afterChange(settlement)
	return t.table.SnapshotFor(seatID), nil
}

func (t *tableRunner) leave(seatID int) error {
	settlement, err := t.table.Leave(seatID)
	if err != nil {
		return err
	}
	t.timers.cancel(timerKey{autoActionTimer, seatID})
	delete(t.strategies, seatID)
	t.actions++
	t.persist()
	t.afterChange(settlement)
	return nil
}

func (t *tableRunner) setAway(seatID int, away bool) error {
	if err := t.table.SetAway(seatID, away); err != nil {
		return err
	}
	// The acting seat's timer depends on whether it is away
	t.turn = turnKey{}
	t.afterChange(nil)
	return nil
}

// afterChange runs after every mutation: it dispatches the settlement,
// schedules the next hand or the acting seat's automated action, and
// publishes the new state.
func (t *tableRunner) afterChange(settlement *game.Settlement) {
	reg := t.reg
	snap := t.table.Snapshot()

	if settlement != nil {
		s := *settlement
		var rec *store.TableRecord
		if reg.store != nil {
			r := t.record(snap)
			rec = &r
		}
		reg.dispatch.submit(func() { reg.settle(s, rec) })
	}

	switch {
	case t.table.Halted() != nil:
		t.timers.stopAll()
	case !t.table.InHand():
		t.timers.cancelKind(autoActionTimer)
		t.turn = turnKey{}
		next := timerKey{kind: nextHandTimer}
		if t.table.Funded() < 2 {
			t.timers.cancel(next)
		} else if !t.timers.has(next) {
			t.timers.schedule(next, reg.cfg.NextHandDelay, t.startHand)
		}
	default:
		t.scheduleTurn(snap)
	}

	reg.dispatch.submit(func() { reg.stateChanged(snap) })

	if t.seated && t.table.Occupied() == 0 {
		t.closing = true
	}
}

// scheduleTurn arms the automated action for the acting seat: CPU seats
// play their strategy, away seats check or fold, and humans that run out
// of time are marked away.
func (t *tableRunner) scheduleTurn(snap game.Snapshot) {
	seat := t.table.Acting()
	if seat < 0 {
		t.timers.cancelKind(autoActionTimer)
		t.turn = turnKey{}
		return
	}
	key := turnKey{hand: t.table.HandID(), seat: seat, seq: t.actions}
	if key == t.turn {
		return
	}
	t.timers.cancelKind(autoActionTimer)
	t.turn = key

	v, ok := snap.Seat(seat)
	if !ok {
		return
	}
	cfg := t.reg.cfg
	delay := cfg.ActionTimeout
	switch {
	case v.CPU:
		delay = cfg.CPUDelay
	case v.Away:
		delay = cfg.AwayDelay
	case delay <= 0:
		return
	}
	t.timers.schedule(timerKey{autoActionTimer, seat}, delay, func() { t.autoAct(seat, key) })
}

func (t *tableRunner) autoAct(seat int, key turnKey) {
	if t.table.Acting() != seat || t.turn != key {
		return
	}
	snap := t.table.Snapshot()
	v, ok := snap.Seat(seat)
	if !ok {
		return
	}
	opts := t.table.ValidActions(seat)

	var action game.Action
	var amount int64
	if v.CPU {
		strategy, ok := t.strategies[seat]
		if !ok {
			strategy = callingStrategy{}
		}
		action, amount = strategy.Decide(Situation{
			Options:  opts,
			Chips:    v.Chips,
			Pot:      snap.Pot,
			BigBlind: snap.Blinds.Big,
		}, t.rng)
	} else {
		if !v.Away {
			_ = t.table.SetAway(seat, true)
			t.logger.Info().Int("seat", seat).Str("identity", v.Identity).Msg("seat timed out, marked away")
		}
		action, amount = awayAction(opts)
	}

	_, settlement, err := t.table.Act(seat, action, amount)
	if err != nil && t.table.Halted() == nil {
		t.logger.Warn().Err(err).Int("seat", seat).Str("action", action.String()).Msg("automated action rejected")
		action, amount = awayAction(opts)
		_, settlement, err = t.table.Act(seat, action, amount)
	}
	if err != nil {
		t.logger.Error().Err(err).Int("seat", seat).Msg("automated action failed")
		t.turn = turnKey{}
	}
	t.actions++
	t.afterChange(settlement)
}

func (t *tableRunner) startHand() {
	if t.table.InHand() {
		return
	}
	settlement, err := t.table.StartHand()
	switch {
	case errors.Is(err, game.ErrNotEnoughPlayers):
		return
	case err != nil:
		t.logger.Error().Err(err).Msg("start hand failed")
	}
	t.afterChange(settlement)
}

func (t *tableRunner) strategyNames() map[int]string {
	names := make(map[int]string, len(t.strategies))
	for seat, s := range t.strategies {
		names[seat] = s.Name()
	}
	return names
}

func (t *tableRunner) record(snap game.Snapshot) store.TableRecord {
	return store.RecordFromSnapshot(snap, t.spec.BuyIn, t.strategyNames(), t.reg.clock.Now())
}

// persist saves the table's seats and stacks
func (t *tableRunner) persist() {
	reg := t.reg
	if reg.store == nil || !t.seated {
		return
	}
	rec := t.record(t.table.Snapshot())
	reg.dispatch.submit(func() { reg.saveTable(rec) })
}
