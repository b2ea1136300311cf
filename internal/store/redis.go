package store

import (
	"context"
	"sort"

	"github.com/go-redis/redis/v8"
	"github.com/lox/cardroom/internal/game"
	"github.com/pkg/errors"
)

// RedisOptions configures the Redis backend
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // Key prefix, default "cardroom:"
}

// Redis keeps tables as JSON strings and settlements as lists:
//
//	<prefix>tables              set of table IDs
//	<prefix>table:<id>          table record
//	<prefix>hands:<id>          hash of stored hand IDs
//	<prefix>settlements:<id>    list of settlements, oldest first
//	<prefix>settled-tables      set of table IDs with settlements
type Redis struct {
	client *redis.Client
	prefix string
}

var _ Store = (*Redis)(nil)

func NewRedis(opts RedisOptions) *Redis {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "cardroom:"
	}
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		prefix: prefix,
	}
}

// Ping checks the connection
func (r *Redis) Ping(ctx context.Context) error {
	return errors.Wrap(r.client.Ping(ctx).Err(), "redis ping")
}

func (r *Redis) key(parts ...string) string {
	k := r.prefix
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += p
	}
	return k
}

func (r *Redis) SaveTable(ctx context.Context, rec TableRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.key("table", rec.ID), data, 0)
		p.SAdd(ctx, r.key("tables"), rec.ID)
		return nil
	})
	return errors.Wrapf(err, "save table %s", rec.ID)
}

func (r *Redis) LoadTable(ctx context.Context, id string) (TableRecord, error) {
	data, err := r.client.Get(ctx, r.key("table", id)).Bytes()
	if err == redis.Nil {
		return TableRecord{}, errors.Wrapf(ErrNotFound, "table %s", id)
	} else if err != nil {
		return TableRecord{}, errors.Wrapf(err, "load table %s", id)
	}
	var rec TableRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return TableRecord{}, errors.Wrapf(err, "decode table %s", id)
	}
	return rec, nil
}

func (r *Redis) DeleteTable(ctx context.Context, id string) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.key("table", id))
		p.SRem(ctx, r.key("tables"), id)
		return nil
	})
	return errors.Wrapf(err, "delete table %s", id)
}

func (r *Redis) ListTables(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.key("tables")).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list tables")
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *Redis) AppendSettlement(ctx context.Context, s *game.Settlement) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	added, err := r.client.HSetNX(ctx, r.key("hands", s.TableID), s.HandID, s.HandNumber).Result()
	if err != nil {
		return errors.Wrapf(err, "record hand %s", s.HandID)
	}
	if !added {
		return errors.Wrapf(ErrDuplicateHand, "%s/%s", s.TableID, s.HandID)
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, r.key("settlements", s.TableID), data)
		p.SAdd(ctx, r.key("settled-tables"), s.TableID)
		return nil
	})
	return errors.Wrapf(err, "append settlement %s", s.HandID)
}

func (r *Redis) Settlements(ctx context.Context, tableID string) ([]game.Settlement, error) {
	rows, err := r.client.LRange(ctx, r.key("settlements", tableID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "read settlements for %s", tableID)
	}
	out := make([]game.Settlement, 0, len(rows))
	for _, row := range rows {
		var s game.Settlement
		if err := json.Unmarshal([]byte(row), &s); err != nil {
			return nil, errors.Wrapf(err, "decode settlement for %s", tableID)
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *Redis) SettlementTables(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.key("settled-tables")).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list settled tables")
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
