package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // file:// migrations
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/lox/cardroom/internal/game"
	"github.com/pkg/errors"
)

// Postgres stores table records and settlements as JSONB rows. The schema
// lives in the migrations directory and is applied with Migrate.
type Postgres struct {
	db *sqlx.DB
}

var _ Store = (*Postgres)(nil)

// NewPostgres connects to dsn, e.g.
// postgres://postgres@localhost:5432/cardroom?sslmode=disable
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect to postgres")
	}
	return &Postgres{db: db}, nil
}

// Migrate applies the migrations in dir
func (p *Postgres) Migrate(dir string) error {
	driver, err := postgres.WithInstance(p.db.DB, &postgres.Config{})
	if err != nil {
		return errors.Wrap(err, "migration driver")
	}
	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", dir), "postgres", driver)
	if err != nil {
		return errors.Wrap(err, "load migrations")
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, "apply migrations")
	}
	return nil
}

func (p *Postgres) SaveTable(ctx context.Context, rec TableRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO cardroom_tables (id, record, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET record = EXCLUDED.record, updated_at = EXCLUDED.updated_at`,
		rec.ID, string(body), rec.UpdatedAt)
	return errors.Wrapf(err, "save table %s", rec.ID)
}

func (p *Postgres) LoadTable(ctx context.Context, id string) (TableRecord, error) {
	var body []byte
	err := p.db.GetContext(ctx, &body, `SELECT record FROM cardroom_tables WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return TableRecord{}, errors.Wrapf(ErrNotFound, "table %s", id)
	} else if err != nil {
		return TableRecord{}, errors.Wrapf(err, "load table %s", id)
	}
	var rec TableRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return TableRecord{}, errors.Wrapf(err, "decode table %s", id)
	}
	return rec, nil
}

func (p *Postgres) DeleteTable(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM cardroom_tables WHERE id = $1`, id)
	return errors.Wrapf(err, "delete table %s", id)
}

func (p *Postgres) ListTables(ctx context.Context) ([]string, error) {
	var ids []string
	err := p.db.SelectContext(ctx, &ids, `SELECT id FROM cardroom_tables ORDER BY id`)
	return ids, errors.Wrap(err, "list tables")
}

type settlementRow struct {
	TableID    string    `db:"table_id"`
	HandID     string    `db:"hand_id"`
	HandNumber int       `db:"hand_number"`
	SettledAt  time.Time `db:"settled_at"`
	Pot        int64     `db:"pot"`
	Rake       int64     `db:"rake"`
	Body       string    `db:"body"`
}

func (p *Postgres) AppendSettlement(ctx context.Context, s *game.Settlement) error {
	body, err := json.Marshal(s)
	if err != nil {
		return err
	}
	row := settlementRow{
		TableID:    s.TableID,
		HandID:     s.HandID,
		HandNumber: s.HandNumber,
		SettledAt:  s.Timestamp,
		Pot:        s.PotTotal,
		Rake:       s.Rake,
		Body:       string(body),
	}
	res, err := p.db.NamedExecContext(ctx, `
		INSERT INTO cardroom_settlements (table_id, hand_id, hand_number, settled_at, pot, rake, body)
		VALUES (:table_id, :hand_id, :hand_number, :settled_at, :pot, :rake, :body)
		ON CONFLICT (table_id, hand_id) DO NOTHING`, row)
	if err != nil {
		return errors.Wrapf(err, "append settlement %s", s.HandID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(ErrDuplicateHand, "%s/%s", s.TableID, s.HandID)
	}
	return nil
}

func (p *Postgres) Settlements(ctx context.Context, tableID string) ([]game.Settlement, error) {
	var bodies [][]byte
	err := p.db.SelectContext(ctx, &bodies,
		`SELECT body FROM cardroom_settlements WHERE table_id = $1 ORDER BY seq`, tableID)
	if err != nil {
		return nil, errors.Wrapf(err, "read settlements for %s", tableID)
	}
	out := make([]game.Settlement, 0, len(bodies))
	for _, body := range bodies {
		var s game.Settlement
		if err := json.Unmarshal(body, &s); err != nil {
			return nil, errors.Wrapf(err, "decode settlement for %s", tableID)
		}
		out = append(out, s)
	}
	return out, nil
}

func (p *Postgres) SettlementTables(ctx context.Context) ([]string, error) {
	var ids []string
	err := p.db.SelectContext(ctx, &ids, `SELECT DISTINCT table_id FROM cardroom_settlements ORDER BY table_id`)
	return ids, errors.Wrap(err, "list settled tables")
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
