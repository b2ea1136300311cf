package server

import (
	"fmt"
	"time"

	"github.com/coder/quartz"
)

type timerKind int

const (
	nextHandTimer timerKind = iota
	autoActionTimer
)

func (k timerKind) String() string {
	if k == nextHandTimer {
		return "next-hand"
	}
	return "auto-action"
}

type timerKey struct {
	kind timerKind
	seat int
}

func (k timerKey) String() string {
	if k.kind == nextHandTimer {
		return k.kind.String()
	}
	return fmt.Sprintf("%s-%d", k.kind, k.seat)
}

type pendingTimer struct {
	timer *quartz.Timer
	gen   uint64
}

// timers tracks one table's pending callbacks. Fired callbacks are posted
// to the table's runner and dropped there if the timer was cancelled or
// replaced in the meantime. Only the runner goroutine touches timers.
type timers struct {
	clock   quartz.Clock
	tableID string
	post    func(func())
	gen     uint64
	pending map[timerKey]*pendingTimer
}

func newTimers(clock quartz.Clock, tableID string, post func(func())) *timers {
	return &timers{
		clock:   clock,
		tableID: tableID,
		post:    post,
		pending: make(map[timerKey]*pendingTimer),
	}
}

func (t *timers) schedule(key timerKey, d time.Duration, fn func()) {
	t.cancel(key)
	t.gen++
	gen := t.gen
	p := &pendingTimer{gen: gen}
	p.timer = t.clock.AfterFunc(d, func() {
		t.post(func() {
			if cur, ok := t.pending[key]; !ok || cur.gen != gen {
				return
			}
			delete(t.pending, key)
			fn()
		})
	}, "table", t.tableID, key.String())
	t.pending[key] = p
}

func (t *timers) has(key timerKey) bool {
	_, ok := t.pending[key]
	return ok
}

func (t *timers) cancel(key timerKey) {
	if p, ok := t.pending[key]; ok {
		p.timer.Stop()
		delete(t.pending, key)
	}
}

// cancelKind stops every timer of a kind
func (t *timers) cancelKind(kind timerKind) {
	for key := range t.pending {
		if key.kind == kind {
			t.cancel(key)
		}
	}
}

func (t *timers) stopAll() {
	for key := range t.pending {
		t.cancel(key)
	}
}
