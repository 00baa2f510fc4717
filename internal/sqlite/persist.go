package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
)

// SQLite table names, also the keys stageTable accepts.
const (
	characteristicsTable      = "characteristics"
	groupsTable               = "item_groups"
	groupCharacteristicsTable = "group_characteristics"
	recordsTable              = "records"
	recordValuesTable         = "record_values"
	changesTable              = "changes"
)

// stageTable stages the JSONL file of table in batch from the rows visible
// in tx.
func stageTable(ctx context.Context, tx *sql.Tx, batch *jsonlBatch, dataDir, table string) error {
	var (
		file    string
		records []json.RawMessage
		err     error
	)
	switch table {
	case characteristicsTable:
		file = characteristicsJSONL
		records, err = dumpRows(ctx, tx, "SELECT "+characteristicColumns+" FROM characteristics ORDER BY name",
			func(rows *sql.Rows) (any, error) { return scanCharacteristic(rows) })
	case groupsTable:
		file = groupsJSONL
		records, err = dumpRows(ctx, tx, "SELECT name, created_at FROM item_groups ORDER BY name",
			func(rows *sql.Rows) (any, error) {
				var g groupJSON
				err := rows.Scan(&g.Name, &g.CreatedAt)
				return g, err
			})
	case groupCharacteristicsTable:
		file = groupCharacteristicsJSONL
		records, err = dumpRows(ctx, tx,
			"SELECT group_name, ordinal, "+characteristicColumns+" FROM group_characteristics ORDER BY group_name, ordinal",
			func(rows *sql.Rows) (any, error) {
				var gc groupCharacteristicJSON
				c, err := scanCharacteristic(rows, &gc.GroupName, &gc.Ordinal)
				gc.characteristicJSON = c
				return gc, err
			})
	case recordsTable:
		file = recordsJSONL
		records, err = dumpRows(ctx, tx,
			"SELECT record_id, group_name, created_at, updated_at FROM records ORDER BY created_at, record_id",
			func(rows *sql.Rows) (any, error) {
				var r recordJSON
				err := rows.Scan(&r.RecordID, &r.GroupName, &r.CreatedAt, &r.UpdatedAt)
				return r, err
			})
	case recordValuesTable:
		file = recordValuesJSONL
		records, err = dumpRows(ctx, tx,
			"SELECT record_id, name, data_type, value FROM record_values ORDER BY record_id, name",
			func(rows *sql.Rows) (any, error) {
				var (
					v     recordValueJSON
					value sql.NullString
				)
				if err := rows.Scan(&v.RecordID, &v.Name, &v.DataType, &value); err != nil {
					return nil, err
				}
				if value.Valid {
					v.Value = &value.String
				}
				return v, nil
			})
	case changesTable:
		file = changesJSONL
		records, err = dumpRows(ctx, tx,
			"SELECT seq, kind, record_id, group_name, before_record, after_record, reverts, at FROM changes ORDER BY seq",
			func(rows *sql.Rows) (any, error) { return scanChange(rows) })
	default:
		return fmt.Errorf("persisting unknown table %q", table)
	}
	if err != nil {
		return fmt.Errorf("reading %s for JSONL: %w", table, err)
	}
	return batch.stage(filepath.Join(dataDir, file), records)
}

// dumpRows runs query and marshals each scanned row to one JSONL line.
func dumpRows(ctx context.Context, tx *sql.Tx, query string, scan func(*sql.Rows) (any, error)) ([]json.RawMessage, error) {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		records = append(records, b)
	}
	return records, rows.Err()
}
