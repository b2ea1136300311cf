package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lox/cardroom/internal/game"
)

// Memory keeps everything in process. It is the default backend and the
// reference the other backends are tested against.
type Memory struct {
	mu          sync.RWMutex
	tables      map[string]TableRecord
	settlements map[string][]game.Settlement
	hands       map[string]struct{}
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		tables:      make(map[string]TableRecord),
		settlements: make(map[string][]game.Settlement),
		hands:       make(map[string]struct{}),
	}
}

func (m *Memory) SaveTable(_ context.Context, rec TableRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Seats = append([]SeatRecord(nil), rec.Seats...)
	m.tables[rec.ID] = rec
	return nil
}

func (m *Memory) LoadTable(_ context.Context, id string) (TableRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.tables[id]
	if !ok {
		return TableRecord{}, fmt.Errorf("table %s: %w", id, ErrNotFound)
	}
	rec.Seats = append([]SeatRecord(nil), rec.Seats...)
	return rec, nil
}

func (m *Memory) DeleteTable(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables, id)
	return nil
}

func (m *Memory) ListTables(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.tables))
	for id := range m.tables {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) AppendSettlement(_ context.Context, s *game.Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := s.TableID + "/" + s.HandID
	if _, ok := m.hands[key]; ok {
		return fmt.Errorf("%s: %w", key, ErrDuplicateHand)
	}
	m.hands[key] = struct{}{}
	m.settlements[s.TableID] = append(m.settlements[s.TableID], *s)
	return nil
}

func (m *Memory) Settlements(_ context.Context, tableID string) ([]game.Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]game.Settlement(nil), m.settlements[tableID]...), nil
}

func (m *Memory) SettlementTables(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.settlements))
	for id := range m.settlements {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) Close() error { return nil }
