package types

import (
	"maps"
	"slices"
	"time"
)

// Record is an inventory item: a concrete instance of a group carrying one
// coerced value per characteristic.
type Record struct {
	ID        string           `json:"id"`         // UUID v7, generated on creation, immutable.
	GroupName string           `json:"group"`      // Group the record is validated against.
	Values    map[string]Value `json:"values"`     // Keyed by characteristic name.
	CreatedAt time.Time        `json:"created_at"` // Set once at creation.
	UpdatedAt time.Time        `json:"updated_at"` // Advances on every update.
}

// Clone returns a deep copy of r. Values are plain structs, so copying
// the map is enough.
func (r Record) Clone() Record {
	out := r
	out.Values = maps.Clone(r.Values)
	if out.Values == nil {
		out.Values = map[string]Value{}
	}
	return out
}

// Value returns the value stored for the named characteristic.
func (r Record) Value(name string) (Value, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// Names returns the characteristic names present on r, sorted.
func (r Record) Names() []string {
	return slices.Sorted(maps.Keys(r.Values))
}
