package server

import (
	"sync"

	"github.com/rs/zerolog"
)

// dispatcher runs side effects of table changes (ledger appends, storage,
// event publishing and subscriber callbacks) in submission order on its own
// goroutine, so that a slow store never holds up a table. The queue is
// unbounded: runners never block on it.
type dispatcher struct {
	logger zerolog.Logger

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newDispatcher(logger zerolog.Logger) *dispatcher {
	d := &dispatcher{
		logger: logger.With().Str("component", "dispatcher").Logger(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// submit queues job. It reports false once the dispatcher is closed.
func (d *dispatcher) submit(job func()) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, job)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return true
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		<-d.wake
		for {
			d.mu.Lock()
			jobs := d.queue
			d.queue = nil
			closed := d.closed
			d.mu.Unlock()

			for _, job := range jobs {
				d.runJob(job)
			}
			if len(jobs) == 0 {
				if closed {
					return
				}
				break
			}
		}
	}
}

func (d *dispatcher) runJob(job func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Interface("panic", r).Msg("dispatch job panicked")
		}
	}()
	job()
}

// close stops accepting jobs and waits for the queued ones to finish
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	<-d.done
}

// flush waits until every job submitted before the call has run
func (d *dispatcher) flush() {
	ch := make(chan struct{})
	if !d.submit(func() { close(ch) }) {
		return
	}
	<-ch
}
