// Package query provides read-only projections over the record store and
// the schema registry. Everything it returns is a copy.
package query

import (
	"fmt"
	"slices"

	"github.com/mesh-intelligence/stockroom/internal/store"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

// Facade answers read queries for presentation layers.
type Facade struct {
	store *store.Store
}

// New creates a facade over s.
func New(s *store.Store) *Facade {
	return &Facade{store: s}
}

// FilterByGroup returns the records of the named group in insertion
// order.
func (f *Facade) FilterByGroup(name string) ([]types.Record, error) {
	if _, err := f.store.Group(name); err != nil {
		return nil, err
	}
	return slices.Collect(f.store.ListRecords(name)), nil
}

// FilterByCharacteristic returns the records carrying the named
// characteristic whose value satisfies pred, in insertion order.
func (f *Facade) FilterByCharacteristic(name string, pred Predicate) []types.Record {
	var out []types.Record
	for r := range f.store.ListRecords("") {
		v, ok := r.Value(name)
		if !ok {
			continue
		}
		if pred == nil || pred(v) {
			out = append(out, r)
		}
	}
	return out
}

// Where parses expr with ParsePredicate and filters by the characteristic
// it names.
func (f *Facade) Where(expr string) ([]types.Record, error) {
	name, pred, err := ParsePredicate(expr)
	if err != nil {
		return nil, err
	}
	return f.FilterByCharacteristic(name, pred), nil
}

// ListGroups returns every group sorted by name.
func (f *Facade) ListGroups() []types.Group {
	return f.store.Groups()
}

// ListCharacteristics returns the characteristic snapshot of the named
// group in group order.
func (f *Facade) ListCharacteristics(groupName string) ([]types.Characteristic, error) {
	g, err := f.store.Group(groupName)
	if err != nil {
		return nil, err
	}
	return g.Characteristics, nil
}

// ListSchema returns the global characteristic pool sorted by name.
func (f *Facade) ListSchema() []types.Characteristic {
	return f.store.Schema().List()
}

// Summary counts records per group.
type Summary struct {
	Group   string `json:"group"`
	Records int    `json:"records"`
}

// Summarize returns a record count for every group, sorted by group name.
func (f *Facade) Summarize() []Summary {
	counts := make(map[string]int)
	for r := range f.store.ListRecords("") {
		counts[r.GroupName]++
	}
	groups := f.store.Groups()
	out := make([]Summary, len(groups))
	for i, g := range groups {
		out[i] = Summary{Group: g.Name, Records: counts[g.Name]}
	}
	return out
}

func (s Summary) String() string {
	return fmt.Sprintf("%s: %d", s.Group, s.Records)
}
