package sqlite

import "github.com/mesh-intelligence/stockroom/internal/codec"

// JSON record structures that mirror the JSONL file format. Field names
// match the SQLite column names so the loader can insert them directly.

// characteristicJSON represents a characteristic in characteristics.jsonl.
type characteristicJSON struct {
	Name      string   `json:"name"`
	DataType  string   `json:"data_type"`
	Nullable  bool     `json:"nullable"`
	Options   []string `json:"options"`
	Min       *float64 `json:"min"`
	Max       *float64 `json:"max"`
	CreatedAt string   `json:"created_at"`
}

// groupJSON represents a group in groups.jsonl.
type groupJSON struct {
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// groupCharacteristicJSON represents one snapshot entry of a group in
// group_characteristics.jsonl.
type groupCharacteristicJSON struct {
	GroupName string `json:"group_name"`
	Ordinal   int    `json:"ordinal"`
	characteristicJSON
}

// recordJSON represents a record in records.jsonl.
type recordJSON struct {
	RecordID  string `json:"record_id"`
	GroupName string `json:"group_name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// recordValueJSON represents one value of a record in record_values.jsonl.
// Value is the canonical text form, null for a typed null.
type recordValueJSON struct {
	RecordID string  `json:"record_id"`
	Name     string  `json:"name"`
	DataType string  `json:"data_type"`
	Value    *string `json:"value"`
}

// changeJSON represents a change log entry in changes.jsonl. Before and
// After hold the record as a JSON object.
type changeJSON struct {
	Seq       int64            `json:"seq"`
	Kind      string           `json:"kind"`
	RecordID  string           `json:"record_id"`
	GroupName string           `json:"group_name"`
	Before    *codec.RecordDoc `json:"before_record"`
	After     *codec.RecordDoc `json:"after_record"`
	Reverts   int64            `json:"reverts"`
	At        string           `json:"at"`
}
