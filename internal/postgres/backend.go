package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/stockroom/internal/codec"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

var (
	_ types.Persistence = (*Backend)(nil)
	_ types.ChangeSink  = (*Backend)(nil)
	_ types.Closer      = (*Backend)(nil)
)

// migrations create the tables on first use. They are idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS stockroom_characteristics (
    name TEXT PRIMARY KEY,
    doc JSONB NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS stockroom_groups (
    name TEXT PRIMARY KEY,
    doc JSONB NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS stockroom_records (
    id TEXT PRIMARY KEY,
    group_name TEXT NOT NULL,
    created_at TEXT NOT NULL,
    doc JSONB NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS stockroom_records_created ON stockroom_records (created_at, id)`,
	`CREATE TABLE IF NOT EXISTS stockroom_changes (
    seq BIGINT PRIMARY KEY,
    record_id TEXT NOT NULL,
    doc JSONB NOT NULL
)`,
}

// Backend implements types.Persistence and types.ChangeSink over a pgx
// pool.
type Backend struct {
	pool *pgxpool.Pool
	own  bool
}

// Open connects to cfg.Postgres.DSN and creates the tables if needed. The
// returned backend owns the pool and closes it on Close.
func Open(ctx context.Context, cfg types.Config, logger *zap.Logger) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pool, err := NewPool(ctx, cfg.Postgres.DSN, logger)
	if err != nil {
		return nil, err
	}
	b := &Backend{pool: pool, own: true}
	if err := b.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

// NewBackend wraps an existing pool. Close leaves the pool open.
func NewBackend(pool *pgxpool.Pool) *Backend {
	return &Backend{pool: pool}
}

// Migrate creates the tables that do not exist yet.
func (b *Backend) Migrate(ctx context.Context) error {
	for _, ddl := range migrations {
		if _, err := b.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("postgres: migrating: %w", err)
		}
	}
	return nil
}

// Close releases the pool if the backend opened it.
func (b *Backend) Close() error {
	if b.own {
		b.pool.Close()
	}
	return nil
}

// LoadSchema returns the characteristics sorted by name.
func (b *Backend) LoadSchema(ctx context.Context) ([]types.Characteristic, error) {
	return loadDocs(ctx, b.pool, "SELECT doc FROM stockroom_characteristics ORDER BY name",
		func(d codec.CharacteristicDoc) (types.Characteristic, error) { return d.Characteristic() })
}

// LoadGroups returns the groups sorted by name.
func (b *Backend) LoadGroups(ctx context.Context) ([]types.Group, error) {
	return loadDocs(ctx, b.pool, "SELECT doc FROM stockroom_groups ORDER BY name",
		func(d codec.GroupDoc) (types.Group, error) { return d.Group() })
}

// LoadRecords returns the records ordered by creation time, then id.
func (b *Backend) LoadRecords(ctx context.Context) ([]types.Record, error) {
	return loadDocs(ctx, b.pool, "SELECT doc FROM stockroom_records ORDER BY created_at COLLATE \"C\", id COLLATE \"C\"",
		func(d codec.RecordDoc) (types.Record, error) { return d.Record() })
}

// LoadChanges returns the change log ordered by sequence number.
func (b *Backend) LoadChanges(ctx context.Context) ([]types.Change, error) {
	return loadDocs(ctx, b.pool, "SELECT doc FROM stockroom_changes ORDER BY seq",
		func(d codec.ChangeDoc) (types.Change, error) { return d.Change() })
}

// SaveSchema inserts or replaces a characteristic.
func (b *Backend) SaveSchema(ctx context.Context, c types.Characteristic) error {
	doc, err := json.Marshal(codec.EncodeCharacteristic(c))
	if err != nil {
		return fmt.Errorf("encoding characteristic %s: %w", c.Name, err)
	}
	return b.exec(ctx, "save characteristic",
		`INSERT INTO stockroom_characteristics (name, doc) VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET doc = EXCLUDED.doc`, c.Name, doc)
}

// SaveGroup inserts or replaces a group and its snapshot.
func (b *Backend) SaveGroup(ctx context.Context, g types.Group) error {
	doc, err := json.Marshal(codec.EncodeGroup(g))
	if err != nil {
		return fmt.Errorf("encoding group %s: %w", g.Name, err)
	}
	return b.exec(ctx, "save group",
		`INSERT INTO stockroom_groups (name, doc) VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET doc = EXCLUDED.doc`, g.Name, doc)
}

// SaveRecord inserts or replaces a record.
func (b *Backend) SaveRecord(ctx context.Context, r types.Record) error {
	d := codec.EncodeRecord(r)
	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", r.ID, err)
	}
	return b.exec(ctx, "save record",
		`INSERT INTO stockroom_records (id, group_name, created_at, doc) VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET group_name = EXCLUDED.group_name, doc = EXCLUDED.doc`,
		d.ID, d.Group, d.CreatedAt, doc)
}

// DeleteSchema removes a characteristic.
func (b *Backend) DeleteSchema(ctx context.Context, name string) error {
	return b.exec(ctx, "delete characteristic", "DELETE FROM stockroom_characteristics WHERE name = $1", name)
}

// DeleteGroup removes a group.
func (b *Backend) DeleteGroup(ctx context.Context, name string) error {
	return b.exec(ctx, "delete group", "DELETE FROM stockroom_groups WHERE name = $1", name)
}

// DeleteRecord removes a record.
func (b *Backend) DeleteRecord(ctx context.Context, id string) error {
	return b.exec(ctx, "delete record", "DELETE FROM stockroom_records WHERE id = $1", id)
}

// AppendChange appends c to the change log.
func (b *Backend) AppendChange(ctx context.Context, c types.Change) error {
	doc, err := json.Marshal(codec.EncodeChange(c))
	if err != nil {
		return fmt.Errorf("encoding change %d: %w", c.Seq, err)
	}
	return b.exec(ctx, "append change",
		"INSERT INTO stockroom_changes (seq, record_id, doc) VALUES ($1, $2, $3)", c.Seq, c.RecordID, doc)
}

// Truncate empties every table. Tests use it to start clean.
func (b *Backend) Truncate(ctx context.Context) error {
	return b.exec(ctx, "truncate",
		"TRUNCATE stockroom_characteristics, stockroom_groups, stockroom_records, stockroom_changes")
}

func (b *Backend) exec(ctx context.Context, op, sql string, args ...any) error {
	if _, err := b.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("postgres: %s: %w", op, err)
	}
	return nil
}

// loadDocs runs query, decodes the doc column of each row into D and
// converts it with hydrate.
func loadDocs[D, T any](ctx context.Context, pool *pgxpool.Pool, query string, hydrate func(D) (T, error)) ([]T, error) {
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	raws, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan: %w", err)
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var d D
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("postgres: decoding document: %w", err)
		}
		v, err := hydrate(d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
