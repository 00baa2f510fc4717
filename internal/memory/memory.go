// Package memory implements types.Persistence and types.ChangeSink in
// process memory. It backs the "memory" backend and the unit tests of the
// core packages.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/mesh-intelligence/stockroom/pkg/types"
)

// Backend keeps copies of everything it is given.
type Backend struct {
	mu      sync.RWMutex
	schema  map[string]types.Characteristic
	groups  map[string]types.Group
	records map[string]types.Record
	changes []types.Change
}

// NewBackend creates an empty backend.
func NewBackend() *Backend {
	return &Backend{
		schema:  make(map[string]types.Characteristic),
		groups:  make(map[string]types.Group),
		records: make(map[string]types.Record),
	}
}

// LoadSchema returns the characteristics sorted by name.
func (b *Backend) LoadSchema(ctx context.Context) ([]types.Characteristic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]types.Characteristic, 0, len(b.schema))
	for _, name := range slices.Sorted(maps.Keys(b.schema)) {
		out = append(out, b.schema[name].Clone())
	}
	return out, nil
}

// LoadGroups returns the groups sorted by name.
func (b *Backend) LoadGroups(ctx context.Context) ([]types.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]types.Group, 0, len(b.groups))
	for _, name := range slices.Sorted(maps.Keys(b.groups)) {
		out = append(out, b.groups[name].Clone())
	}
	return out, nil
}

// LoadRecords returns the records ordered by creation time, then id.
func (b *Backend) LoadRecords(ctx context.Context) ([]types.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]types.Record, 0, len(b.records))
	for _, r := range b.records {
		out = append(out, r.Clone())
	}
	slices.SortFunc(out, func(a, b types.Record) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), strings.Compare(a.ID, b.ID))
	})
	return out, nil
}

// SaveSchema inserts or replaces a characteristic.
func (b *Backend) SaveSchema(ctx context.Context, c types.Characteristic) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.schema[c.Name] = c.Clone()
	return nil
}

// SaveGroup inserts or replaces a group.
func (b *Backend) SaveGroup(ctx context.Context, g types.Group) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.groups[g.Name] = g.Clone()
	return nil
}

// SaveRecord inserts or replaces a record.
func (b *Backend) SaveRecord(ctx context.Context, r types.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[r.ID] = r.Clone()
	return nil
}

// DeleteSchema removes a characteristic. Deleting a missing entry is not
// an error.
func (b *Backend) DeleteSchema(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.schema, name)
	return nil
}

// DeleteGroup removes a group.
func (b *Backend) DeleteGroup(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.groups, name)
	return nil
}

// DeleteRecord removes a record.
func (b *Backend) DeleteRecord(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.records, id)
	return nil
}

// AppendChange appends c to the change log.
func (b *Backend) AppendChange(ctx context.Context, c types.Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.changes = append(b.changes, cloneChange(c))
	return nil
}

// LoadChanges returns the change log in append order.
func (b *Backend) LoadChanges(ctx context.Context) ([]types.Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]types.Change, len(b.changes))
	for i, c := range b.changes {
		out[i] = cloneChange(c)
	}
	return out, nil
}

func cloneChange(c types.Change) types.Change {
	if c.Before != nil {
		r := c.Before.Clone()
		c.Before = &r
	}
	if c.After != nil {
		r := c.After.Clone()
		c.After = &r
	}
	return c
}
