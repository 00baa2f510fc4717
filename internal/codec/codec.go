// Package codec defines the storage form shared by the persistence
// adapters: fixed-width timestamps, typed canonical values, and JSON
// documents for records and changes.
package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mesh-intelligence/stockroom/internal/coerce"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

// TimeLayout always writes nine fractional digits in UTC, so encoded
// timestamps sort lexically in time order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// EncodeTime formats t in UTC with TimeLayout.
func EncodeTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// DecodeTime parses any RFC 3339 timestamp and returns it in UTC.
func DecodeTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// ValueDoc is the storage form of one value: its type and canonical text,
// nil for a typed null.
type ValueDoc struct {
	DataType string  `json:"data_type"`
	Value    *string `json:"value"`
}

// EncodeValue returns the storage form of v.
func EncodeValue(v types.Value) ValueDoc {
	return ValueDoc{DataType: v.Type.String(), Value: v.Encode()}
}

// DecodeValue hydrates a stored value.
func DecodeValue(d ValueDoc) (types.Value, error) {
	dt := types.DataType(d.DataType)
	if !dt.Valid() {
		return types.Value{}, fmt.Errorf("decoding value: %w: %q", types.ErrInvalidDataType, d.DataType)
	}
	return coerce.Decode(dt, d.Value)
}

// RecordDoc is the storage form of a record.
type RecordDoc struct {
	ID        string              `json:"id"`
	Group     string              `json:"group"`
	Values    map[string]ValueDoc `json:"values"`
	CreatedAt string              `json:"created_at"`
	UpdatedAt string              `json:"updated_at"`
}

// EncodeRecord returns the storage form of r.
func EncodeRecord(r types.Record) RecordDoc {
	d := RecordDoc{
		ID:        r.ID,
		Group:     r.GroupName,
		Values:    make(map[string]ValueDoc, len(r.Values)),
		CreatedAt: EncodeTime(r.CreatedAt),
		UpdatedAt: EncodeTime(r.UpdatedAt),
	}
	for name, v := range r.Values {
		d.Values[name] = EncodeValue(v)
	}
	return d
}

// Record hydrates d.
func (d RecordDoc) Record() (types.Record, error) {
	r := types.Record{ID: d.ID, GroupName: d.Group, Values: make(map[string]types.Value, len(d.Values))}
	var err error
	if r.CreatedAt, err = DecodeTime(d.CreatedAt); err != nil {
		return types.Record{}, fmt.Errorf("record %s: %w", d.ID, err)
	}
	if r.UpdatedAt, err = DecodeTime(d.UpdatedAt); err != nil {
		return types.Record{}, fmt.Errorf("record %s: %w", d.ID, err)
	}
	for name, vd := range d.Values {
		v, err := DecodeValue(vd)
		if err != nil {
			return types.Record{}, fmt.Errorf("record %s field %s: %w", d.ID, name, err)
		}
		r.Values[name] = v
	}
	return r, nil
}

// CharacteristicDoc is the storage form of a characteristic definition.
type CharacteristicDoc struct {
	Name      string   `json:"name"`
	DataType  string   `json:"data_type"`
	Nullable  bool     `json:"nullable"`
	Options   []string `json:"options,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	CreatedAt string   `json:"created_at"`
}

// EncodeCharacteristic returns the storage form of c.
func EncodeCharacteristic(c types.Characteristic) CharacteristicDoc {
	c = c.Clone()
	return CharacteristicDoc{
		Name:      c.Name,
		DataType:  c.DataType.String(),
		Nullable:  c.Nullable,
		Options:   c.Options,
		Min:       c.Min,
		Max:       c.Max,
		CreatedAt: EncodeTime(c.CreatedAt),
	}
}

// Characteristic hydrates d. The definition is not re-validated here;
// the schema registry does that on load.
func (d CharacteristicDoc) Characteristic() (types.Characteristic, error) {
	created, err := DecodeTime(d.CreatedAt)
	if err != nil {
		return types.Characteristic{}, fmt.Errorf("characteristic %s: %w", d.Name, err)
	}
	return types.Characteristic{
		Name:      d.Name,
		DataType:  types.DataType(d.DataType),
		Nullable:  d.Nullable,
		Options:   d.Options,
		Min:       d.Min,
		Max:       d.Max,
		CreatedAt: created,
	}.Clone(), nil
}

// GroupDoc is the storage form of a group and its snapshot.
type GroupDoc struct {
	Name            string              `json:"name"`
	Characteristics []CharacteristicDoc `json:"characteristics"`
	CreatedAt       string              `json:"created_at"`
}

// EncodeGroup returns the storage form of g.
func EncodeGroup(g types.Group) GroupDoc {
	d := GroupDoc{
		Name:            g.Name,
		Characteristics: make([]CharacteristicDoc, len(g.Characteristics)),
		CreatedAt:       EncodeTime(g.CreatedAt),
	}
	for i, c := range g.Characteristics {
		d.Characteristics[i] = EncodeCharacteristic(c)
	}
	return d
}

// Group hydrates d.
func (d GroupDoc) Group() (types.Group, error) {
	created, err := DecodeTime(d.CreatedAt)
	if err != nil {
		return types.Group{}, fmt.Errorf("group %s: %w", d.Name, err)
	}
	g := types.Group{Name: d.Name, Characteristics: make([]types.Characteristic, len(d.Characteristics)), CreatedAt: created}
	for i, cd := range d.Characteristics {
		if g.Characteristics[i], err = cd.Characteristic(); err != nil {
			return types.Group{}, fmt.Errorf("group %s: %w", d.Name, err)
		}
	}
	return g, nil
}

// ChangeDoc is the storage form of a change log entry.
type ChangeDoc struct {
	Seq      int64      `json:"seq"`
	Kind     string     `json:"kind"`
	RecordID string     `json:"record_id"`
	Group    string     `json:"group"`
	Before   *RecordDoc `json:"before,omitempty"`
	After    *RecordDoc `json:"after,omitempty"`
	Reverts  int64      `json:"reverts,omitempty"`
	At       string     `json:"at"`
}

// EncodeChange returns the storage form of c.
func EncodeChange(c types.Change) ChangeDoc {
	d := ChangeDoc{
		Seq:      c.Seq,
		Kind:     string(c.Kind),
		RecordID: c.RecordID,
		Group:    c.Group,
		Reverts:  c.Reverts,
		At:       EncodeTime(c.At),
	}
	if c.Before != nil {
		b := EncodeRecord(*c.Before)
		d.Before = &b
	}
	if c.After != nil {
		a := EncodeRecord(*c.After)
		d.After = &a
	}
	return d
}

// Change hydrates d.
func (d ChangeDoc) Change() (types.Change, error) {
	at, err := DecodeTime(d.At)
	if err != nil {
		return types.Change{}, fmt.Errorf("change %d: %w", d.Seq, err)
	}
	c := types.Change{
		Seq:      d.Seq,
		Kind:     types.ChangeKind(d.Kind),
		RecordID: d.RecordID,
		Group:    d.Group,
		Reverts:  d.Reverts,
		At:       at,
	}
	if d.Before != nil {
		r, err := d.Before.Record()
		if err != nil {
			return types.Change{}, fmt.Errorf("change %d: %w", d.Seq, err)
		}
		c.Before = &r
	}
	if d.After != nil {
		r, err := d.After.Record()
		if err != nil {
			return types.Change{}, fmt.Errorf("change %d: %w", d.Seq, err)
		}
		c.After = &r
	}
	return c, nil
}

// MarshalRecord encodes r as a JSON document.
func MarshalRecord(r types.Record) ([]byte, error) {
	b, err := json.Marshal(EncodeRecord(r))
	if err != nil {
		return nil, fmt.Errorf("encoding record %s: %w", r.ID, err)
	}
	return b, nil
}

// UnmarshalRecord decodes a JSON document written by MarshalRecord.
func UnmarshalRecord(b []byte) (types.Record, error) {
	var d RecordDoc
	if err := json.Unmarshal(b, &d); err != nil {
		return types.Record{}, fmt.Errorf("decoding record: %w", err)
	}
	return d.Record()
}
