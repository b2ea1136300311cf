// Package ledger keeps the house's revenue log: one immutable record per
// settled hand. Every report is derived by scanning the log, so there are no
// running counters to drift from it.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lox/cardroom/internal/game"
)

var (
	ErrIncompleteRecord = errors.New("incomplete revenue record")
	ErrDuplicateHand    = errors.New("hand already recorded")
)

// Contributor is one seat's part in a recorded hand
type Contributor struct {
	Identity  string `json:"identity"`
	Committed int64  `json:"committed"`
	RakePaid  int64  `json:"rake_paid"`
}

// Record is the revenue entry for one settled hand. Amounts are chips.
type Record struct {
	TableID      string        `json:"table_id"`
	HandID       string        `json:"hand_id"`
	Timestamp    time.Time     `json:"timestamp"`
	PotSize      int64         `json:"pot_size"`
	Rake         int64         `json:"rake"`
	Contributors []Contributor `json:"contributors"`
}

// Validate checks that a record is complete and internally consistent
func (r Record) Validate() error {
	switch {
	case r.TableID == "":
		return fmt.Errorf("%w: table id is required", ErrIncompleteRecord)
	case r.HandID == "":
		return fmt.Errorf("%w: hand id is required", ErrIncompleteRecord)
	case r.Timestamp.IsZero():
		return fmt.Errorf("%w: timestamp is required", ErrIncompleteRecord)
	case r.PotSize < 0 || r.Rake < 0:
		return fmt.Errorf("%w: negative amounts", ErrIncompleteRecord)
	case r.Rake > r.PotSize:
		return fmt.Errorf("%w: rake %d exceeds pot %d", ErrIncompleteRecord, r.Rake, r.PotSize)
	case len(r.Contributors) == 0:
		return fmt.Errorf("%w: no contributors", ErrIncompleteRecord)
	}
	var paid int64
	for _, c := range r.Contributors {
		if c.Identity == "" {
			return fmt.Errorf("%w: contributor without identity", ErrIncompleteRecord)
		}
		paid += c.RakePaid
	}
	if paid != r.Rake {
		return fmt.Errorf("%w: contributors paid %d of %d rake", ErrIncompleteRecord, paid, r.Rake)
	}
	return nil
}

// RecordFromSettlement converts a settled hand into a revenue record. Seats
// that put nothing in the pot are not contributors.
func RecordFromSettlement(s *game.Settlement) Record {
	r := Record{
		TableID:   s.TableID,
		HandID:    s.HandID,
		Timestamp: s.Timestamp,
		PotSize:   s.PotTotal,
		Rake:      s.Rake,
	}
	for _, seat := range s.Seats {
		if seat.Committed == 0 {
			continue
		}
		r.Contributors = append(r.Contributors, Contributor{
			Identity:  seat.Identity,
			Committed: seat.Committed - seat.Refunded,
			RakePaid:  seat.RakePaid,
		})
	}
	return r
}

// Ledger is an append-only, goroutine-safe log of revenue records
type Ledger struct {
	mu      sync.RWMutex
	records []Record
	hands   map[string]struct{}
}

// New returns an empty ledger
func New() *Ledger {
	return &Ledger{hands: make(map[string]struct{})}
}

// Append adds a record. Incomplete records and hands already in the log are
// rejected.
func (l *Ledger) Append(r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	key := r.TableID + "/" + r.HandID

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.hands[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateHand, key)
	}
	r.Contributors = append([]Contributor(nil), r.Contributors...)
	l.records = append(l.records, r)
	l.hands[key] = struct{}{}
	return nil
}

// Len returns the number of records
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Records returns copies of the records matching f in append order
func (l *Ledger) Records(f Filter) []Record {
	var out []Record
	l.scan(f, func(r Record) {
		r.Contributors = append([]Contributor(nil), r.Contributors...)
		out = append(out, r)
	})
	return out
}

// scan calls fn for each matching record under the read lock
func (l *Ledger) scan(f Filter, fn func(Record)) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, r := range l.records {
		if f.match(r) {
			fn(r)
		}
	}
}

// Filter selects records. Zero fields match everything; From is inclusive
// and To exclusive.
type Filter struct {
	TableID string
	From    time.Time
	To      time.Time
}

func (f Filter) match(r Record) bool {
	if f.TableID != "" && r.TableID != f.TableID {
		return false
	}
	if !f.From.IsZero() && r.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !r.Timestamp.Before(f.To) {
		return false
	}
	return true
}
