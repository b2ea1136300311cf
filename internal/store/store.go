// Package store persists what must survive a restart: each table's
// configuration and chip stacks, and the immutable log of settled hands.
package store

import (
	"context"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/lox/cardroom/internal/game"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateHand = errors.New("settlement already stored")
)

// TableRecord is a table's durable state between hands
type TableRecord struct {
	ID         string       `json:"id"`
	Kind       game.Kind    `json:"kind"`
	Blinds     game.Blinds  `json:"blinds"`
	MaxSeats   int          `json:"max_seats"`
	BuyIn      float64      `json:"buy_in,omitempty"`
	Entries    int          `json:"entries,omitempty"` // Tournament entries charged
	HandNumber int          `json:"hand_number"`
	Seats      []SeatRecord `json:"seats"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// SeatRecord is one occupied seat
type SeatRecord struct {
	Seat     int    `json:"seat"`
	Identity string `json:"identity"`
	Chips    int64  `json:"chips"`
	CPU      bool   `json:"cpu,omitempty"`
	Strategy string `json:"strategy,omitempty"`
}

// Store is implemented by every backend. Settlements are append-only and a
// hand can be stored once.
type Store interface {
	SaveTable(ctx context.Context, rec TableRecord) error
	LoadTable(ctx context.Context, id string) (TableRecord, error)
	DeleteTable(ctx context.Context, id string) error
	ListTables(ctx context.Context) ([]string, error)

	AppendSettlement(ctx context.Context, s *game.Settlement) error
	Settlements(ctx context.Context, tableID string) ([]game.Settlement, error)
	// SettlementTables lists every table with a stored settlement, including
	// tables whose record has since been deleted.
	SettlementTables(ctx context.Context) ([]string, error)

	Close() error
}

// RecordFromSnapshot captures the durable part of a table's state. Seats
// that are leaving are dropped.
func RecordFromSnapshot(snap game.Snapshot, buyIn float64, strategies map[int]string, at time.Time) TableRecord {
	rec := TableRecord{
		ID:         snap.TableID,
		Kind:       snap.Kind,
		Blinds:     snap.Blinds,
		MaxSeats:   snap.MaxSeats,
		BuyIn:      buyIn,
		Entries:    snap.Entries,
		HandNumber: snap.HandNumber,
		UpdatedAt:  at,
	}
	for _, s := range snap.Seats {
		if s.Leaving {
			continue
		}
		chips := s.Chips
		if snap.Phase.Betting() || snap.Phase == game.Showdown {
			// A hand in flight is persisted as if it never started
			chips += s.Committed
		}
		rec.Seats = append(rec.Seats, SeatRecord{
			Seat:     s.ID,
			Identity: s.Identity,
			Chips:    chips,
			CPU:      s.CPU,
			Strategy: strategies[s.ID],
		})
	}
	return rec
}
