package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mesh-intelligence/stockroom/internal/codec"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

var (
	_ types.Persistence = (*Backend)(nil)
	_ types.ChangeSink  = (*Backend)(nil)
	_ types.Closer      = (*Backend)(nil)
)

const characteristicColumns = "name, data_type, nullable, options, min, max, created_at"

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanCharacteristic reads the characteristicColumns of one row.
func scanCharacteristic(s scanner, extra ...any) (characteristicJSON, error) {
	var (
		c       characteristicJSON
		options sql.NullString
		lo, hi  sql.NullFloat64
	)
	dest := append(extra, &c.Name, &c.DataType, &c.Nullable, &options, &lo, &hi, &c.CreatedAt)
	if err := s.Scan(dest...); err != nil {
		return characteristicJSON{}, err
	}
	if options.Valid && options.String != "" {
		if err := json.Unmarshal([]byte(options.String), &c.Options); err != nil {
			return characteristicJSON{}, fmt.Errorf("decoding options of %s: %w", c.Name, err)
		}
	}
	if lo.Valid {
		c.Min = &lo.Float64
	}
	if hi.Valid {
		c.Max = &hi.Float64
	}
	return c, nil
}

func (c characteristicJSON) doc() codec.CharacteristicDoc {
	return codec.CharacteristicDoc{
		Name: c.Name, DataType: c.DataType, Nullable: c.Nullable,
		Options: c.Options, Min: c.Min, Max: c.Max, CreatedAt: c.CreatedAt,
	}
}

func characteristicArgs(c types.Characteristic) ([]any, error) {
	d := codec.EncodeCharacteristic(c)
	var options any
	if len(d.Options) > 0 {
		b, err := json.Marshal(d.Options)
		if err != nil {
			return nil, fmt.Errorf("encoding options of %s: %w", d.Name, err)
		}
		options = string(b)
	}
	var lo, hi any
	if d.Min != nil {
		lo = *d.Min
	}
	if d.Max != nil {
		hi = *d.Max
	}
	return []any{d.Name, d.DataType, d.Nullable, options, lo, hi, d.CreatedAt}, nil
}

// LoadSchema returns the characteristics sorted by name.
func (b *Backend) LoadSchema(ctx context.Context) ([]types.Characteristic, error) {
	var out []types.Characteristic
	err := b.read(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, "SELECT "+characteristicColumns+" FROM characteristics ORDER BY name")
		if err != nil {
			return fmt.Errorf("querying characteristics: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			cj, err := scanCharacteristic(rows)
			if err != nil {
				return fmt.Errorf("scanning characteristic: %w", err)
			}
			c, err := cj.doc().Characteristic()
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

// LoadGroups returns the groups sorted by name, each with its snapshot in
// group order.
func (b *Backend) LoadGroups(ctx context.Context) ([]types.Group, error) {
	var out []types.Group
	err := b.read(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, "SELECT name, created_at FROM item_groups ORDER BY name")
		if err != nil {
			return fmt.Errorf("querying groups: %w", err)
		}
		var docs []codec.GroupDoc
		index := make(map[string]int)
		for rows.Next() {
			var d codec.GroupDoc
			if err := rows.Scan(&d.Name, &d.CreatedAt); err != nil {
				rows.Close()
				return fmt.Errorf("scanning group: %w", err)
			}
			index[d.Name] = len(docs)
			docs = append(docs, d)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		rows, err = db.QueryContext(ctx,
			"SELECT group_name, "+characteristicColumns+" FROM group_characteristics ORDER BY group_name, ordinal")
		if err != nil {
			return fmt.Errorf("querying group characteristics: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var group string
			cj, err := scanCharacteristic(rows, &group)
			if err != nil {
				return fmt.Errorf("scanning group characteristic: %w", err)
			}
			if i, ok := index[group]; ok {
				docs[i].Characteristics = append(docs[i].Characteristics, cj.doc())
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, d := range docs {
			g, err := d.Group()
			if err != nil {
				return err
			}
			out = append(out, g)
		}
		return nil
	})
	return out, err
}

// LoadRecords returns the records ordered by creation time, then id.
func (b *Backend) LoadRecords(ctx context.Context) ([]types.Record, error) {
	var out []types.Record
	err := b.read(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			"SELECT record_id, group_name, created_at, updated_at FROM records ORDER BY created_at, record_id")
		if err != nil {
			return fmt.Errorf("querying records: %w", err)
		}
		var docs []codec.RecordDoc
		index := make(map[string]int)
		for rows.Next() {
			d := codec.RecordDoc{Values: make(map[string]codec.ValueDoc)}
			if err := rows.Scan(&d.ID, &d.Group, &d.CreatedAt, &d.UpdatedAt); err != nil {
				rows.Close()
				return fmt.Errorf("scanning record: %w", err)
			}
			index[d.ID] = len(docs)
			docs = append(docs, d)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		rows, err = db.QueryContext(ctx, "SELECT record_id, name, data_type, value FROM record_values")
		if err != nil {
			return fmt.Errorf("querying record values: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				id, name string
				vd       codec.ValueDoc
				value    sql.NullString
			)
			if err := rows.Scan(&id, &name, &vd.DataType, &value); err != nil {
				return fmt.Errorf("scanning record value: %w", err)
			}
			if value.Valid {
				vd.Value = &value.String
			}
			if i, ok := index[id]; ok {
				docs[i].Values[name] = vd
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, d := range docs {
			r, err := d.Record()
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// SaveSchema inserts or replaces a characteristic.
func (b *Backend) SaveSchema(ctx context.Context, c types.Characteristic) error {
	return b.write(ctx, []string{characteristicsTable}, func(tx *sql.Tx) error {
		args, err := characteristicArgs(c)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO characteristics ("+characteristicColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
			args...)
		if err != nil {
			return fmt.Errorf("saving characteristic %s: %w", c.Name, err)
		}
		return nil
	})
}

// SaveGroup inserts or replaces a group and its snapshot.
func (b *Backend) SaveGroup(ctx context.Context, g types.Group) error {
	return b.write(ctx, []string{groupsTable, groupCharacteristicsTable}, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO item_groups (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET created_at = excluded.created_at",
			g.Name, codec.EncodeTime(g.CreatedAt)); err != nil {
			return fmt.Errorf("saving group %s: %w", g.Name, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM group_characteristics WHERE group_name = ?", g.Name); err != nil {
			return fmt.Errorf("clearing group %s: %w", g.Name, err)
		}
		for i, c := range g.Characteristics {
			cargs, err := characteristicArgs(c)
			if err != nil {
				return err
			}
			args := append([]any{g.Name, i}, cargs...)
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO group_characteristics (group_name, ordinal, "+characteristicColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
				args...); err != nil {
				return fmt.Errorf("saving group %s characteristic %s: %w", g.Name, c.Name, err)
			}
		}
		return nil
	})
}

// SaveRecord inserts or replaces a record and all of its values.
func (b *Backend) SaveRecord(ctx context.Context, r types.Record) error {
	d := codec.EncodeRecord(r)
	return b.write(ctx, []string{recordsTable, recordValuesTable}, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO records (record_id, group_name, created_at, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(record_id) DO UPDATE SET group_name = excluded.group_name, updated_at = excluded.updated_at`,
			d.ID, d.Group, d.CreatedAt, d.UpdatedAt); err != nil {
			return fmt.Errorf("saving record %s: %w", d.ID, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM record_values WHERE record_id = ?", d.ID); err != nil {
			return fmt.Errorf("clearing values of %s: %w", d.ID, err)
		}
		for name, v := range d.Values {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO record_values (record_id, name, data_type, value) VALUES (?, ?, ?, ?)",
				d.ID, name, v.DataType, v.Value); err != nil {
				return fmt.Errorf("saving value %s of %s: %w", name, d.ID, err)
			}
		}
		return nil
	})
}

// DeleteSchema removes a characteristic.
func (b *Backend) DeleteSchema(ctx context.Context, name string) error {
	return b.write(ctx, []string{characteristicsTable}, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM characteristics WHERE name = ?", name); err != nil {
			return fmt.Errorf("deleting characteristic %s: %w", name, err)
		}
		return nil
	})
}

// DeleteGroup removes a group and its snapshot.
func (b *Backend) DeleteGroup(ctx context.Context, name string) error {
	return b.write(ctx, []string{groupsTable, groupCharacteristicsTable}, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM group_characteristics WHERE group_name = ?", name); err != nil {
			return fmt.Errorf("deleting group %s characteristics: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM item_groups WHERE name = ?", name); err != nil {
			return fmt.Errorf("deleting group %s: %w", name, err)
		}
		return nil
	})
}

// DeleteRecord removes a record and its values.
func (b *Backend) DeleteRecord(ctx context.Context, id string) error {
	return b.write(ctx, []string{recordsTable, recordValuesTable}, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM record_values WHERE record_id = ?", id); err != nil {
			return fmt.Errorf("deleting values of %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE record_id = ?", id); err != nil {
			return fmt.Errorf("deleting record %s: %w", id, err)
		}
		return nil
	})
}

// AppendChange appends c to the change log.
func (b *Backend) AppendChange(ctx context.Context, c types.Change) error {
	d := codec.EncodeChange(c)
	before, err := marshalDoc(d.Before)
	if err != nil {
		return err
	}
	after, err := marshalDoc(d.After)
	if err != nil {
		return err
	}
	return b.write(ctx, []string{changesTable}, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO changes (seq, kind, record_id, group_name, before_record, after_record, reverts, at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			d.Seq, d.Kind, d.RecordID, d.Group, before, after, d.Reverts, d.At); err != nil {
			return fmt.Errorf("appending change %d: %w", d.Seq, err)
		}
		return nil
	})
}

// LoadChanges returns the change log ordered by sequence number.
func (b *Backend) LoadChanges(ctx context.Context) ([]types.Change, error) {
	var out []types.Change
	err := b.read(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			"SELECT seq, kind, record_id, group_name, before_record, after_record, reverts, at FROM changes ORDER BY seq")
		if err != nil {
			return fmt.Errorf("querying changes: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			cj, err := scanChange(rows)
			if err != nil {
				return err
			}
			c, err := cj.doc().Change()
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

func scanChange(s scanner) (changeJSON, error) {
	var (
		c             changeJSON
		before, after sql.NullString
	)
	if err := s.Scan(&c.Seq, &c.Kind, &c.RecordID, &c.GroupName, &before, &after, &c.Reverts, &c.At); err != nil {
		return changeJSON{}, fmt.Errorf("scanning change: %w", err)
	}
	var err error
	if c.Before, err = unmarshalDoc(before); err != nil {
		return changeJSON{}, fmt.Errorf("change %d before: %w", c.Seq, err)
	}
	if c.After, err = unmarshalDoc(after); err != nil {
		return changeJSON{}, fmt.Errorf("change %d after: %w", c.Seq, err)
	}
	return c, nil
}

func (c changeJSON) doc() codec.ChangeDoc {
	return codec.ChangeDoc{
		Seq: c.Seq, Kind: c.Kind, RecordID: c.RecordID, Group: c.GroupName,
		Before: c.Before, After: c.After, Reverts: c.Reverts, At: c.At,
	}
}

func marshalDoc(d *codec.RecordDoc) (any, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encoding record %s: %w", d.ID, err)
	}
	return string(b), nil
}

func unmarshalDoc(s sql.NullString) (*codec.RecordDoc, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var d codec.RecordDoc
	if err := json.Unmarshal([]byte(s.String), &d); err != nil {
		return nil, err
	}
	return &d, nil
}
