package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// Cached fronts a remote Store with an LRU of table records. Writes go
// through to the backend before the cache is updated; settlements are not
// cached.
type Cached struct {
	Store
	tables *lru.Cache
}

// NewCached caches up to size table records in front of s
func NewCached(s Store, size int) (*Cached, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "unable to initialize table cache")
	}
	return &Cached{Store: s, tables: c}, nil
}

func (c *Cached) SaveTable(ctx context.Context, rec TableRecord) error {
	if err := c.Store.SaveTable(ctx, rec); err != nil {
		c.tables.Remove(rec.ID)
		return err
	}
	rec.Seats = append([]SeatRecord(nil), rec.Seats...)
	c.tables.Add(rec.ID, rec)
	return nil
}

func (c *Cached) LoadTable(ctx context.Context, id string) (TableRecord, error) {
	if v, ok := c.tables.Get(id); ok {
		rec := v.(TableRecord)
		rec.Seats = append([]SeatRecord(nil), rec.Seats...)
		return rec, nil
	}
	rec, err := c.Store.LoadTable(ctx, id)
	if err != nil {
		return TableRecord{}, err
	}
	cached := rec
	cached.Seats = append([]SeatRecord(nil), rec.Seats...)
	c.tables.Add(id, cached)
	return rec, nil
}

func (c *Cached) DeleteTable(ctx context.Context, id string) error {
	c.tables.Remove(id)
	return c.Store.DeleteTable(ctx, id)
}
