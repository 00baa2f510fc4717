package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/stockroom/internal/metrics"
	"github.com/mesh-intelligence/stockroom/internal/schema"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

// DefineGroup creates a group holding a snapshot of the named
// characteristics, in the given order. Later changes to the registry do
// not affect the group. Every unknown name is reported in one
// types.ErrUnknownCharacteristic error and no group is created.
func (s *Store) DefineGroup(ctx context.Context, name string, characteristics []string) (g types.Group, err error) {
	defer func(start time.Time) { metrics.ObserveMutation("define_group", start, err) }(time.Now())

	name = schema.NormalizeName(name)
	if name == "" {
		return types.Group{}, fmt.Errorf("%w: group name is empty", types.ErrInvalidName)
	}

	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()

	s.mu.RLock()
	_, exists := s.groups[name]
	s.mu.RUnlock()
	if exists {
		return types.Group{}, fmt.Errorf("%w: %q", types.ErrDuplicateGroup, name)
	}

	seen := make(map[string]bool, len(characteristics))
	var unknown []string
	defs := make([]types.Characteristic, 0, len(characteristics))
	for _, raw := range characteristics {
		cn := schema.NormalizeName(raw)
		if seen[cn] {
			return types.Group{}, fmt.Errorf("%w: characteristic %q listed twice", types.ErrInvalidDefinition, cn)
		}
		seen[cn] = true
		def, err := s.schema.Get(cn)
		if err != nil {
			unknown = append(unknown, fmt.Sprintf("%q", cn))
			continue
		}
		defs = append(defs, def)
	}
	if len(unknown) > 0 {
		return types.Group{}, fmt.Errorf("%w: %s", types.ErrUnknownCharacteristic, strings.Join(unknown, ", "))
	}

	g = types.Group{Name: name, Characteristics: defs, CreatedAt: s.now().UTC()}
	if s.port != nil {
		if err := s.port.SaveGroup(ctx, g); err != nil {
			s.logger.Warn("saving group failed", zap.String("group", name), zap.Error(err))
			return types.Group{}, types.PersistenceError("save group", err)
		}
	}

	s.mu.Lock()
	s.groups[name] = g
	s.mu.Unlock()

	s.logger.Debug("group defined", zap.String("group", name), zap.Strings("characteristics", g.Names()))
	return g.Clone(), nil
}

// Group returns the named group.
func (s *Store) Group(name string) (types.Group, error) {
	name = schema.NormalizeName(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[name]
	if !ok {
		return types.Group{}, fmt.Errorf("%w: %q", types.ErrUnknownGroup, name)
	}
	return g.Clone(), nil
}

// Groups returns every group sorted by name.
func (s *Store) Groups() []types.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Group, 0, len(s.groups))
	for _, name := range slices.Sorted(maps.Keys(s.groups)) {
		out = append(out, s.groups[name].Clone())
	}
	return out
}

// DeleteGroup removes a group. If records still belong to it the call
// fails with types.ErrInUse, unless cascade is set, in which case the
// records are deleted first. It returns the number of records deleted.
func (s *Store) DeleteGroup(ctx context.Context, name string, cascade bool) (deleted int, err error) {
	defer func(start time.Time) { metrics.ObserveMutation("delete_group", start, err) }(time.Now())

	name = schema.NormalizeName(name)
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()

	s.mu.RLock()
	_, ok := s.groups[name]
	dependents := s.recordsOf(name)
	s.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %q", types.ErrUnknownGroup, name)
	}
	if len(dependents) > 0 && !cascade {
		return 0, fmt.Errorf("group %q has %d records: %w", name, len(dependents), types.ErrInUse)
	}

	for _, r := range dependents {
		if err := s.removeRecord(ctx, r); err != nil {
			return deleted, err
		}
		deleted++
	}

	if s.port != nil {
		if err := s.port.DeleteGroup(ctx, name); err != nil {
			s.logger.Warn("deleting group failed", zap.String("group", name), zap.Error(err))
			return deleted, types.PersistenceError("delete group", err)
		}
	}
	s.mu.Lock()
	delete(s.groups, name)
	s.mu.Unlock()

	s.logger.Debug("group deleted", zap.String("group", name), zap.Int("records", deleted))
	return deleted, nil
}

// DeleteCharacteristic removes a characteristic from the registry. If a
// group still carries it the call fails with types.ErrInUse, unless
// cascade is set, in which case it is first removed from every such group
// and the matching values are dropped from their records. It returns the
// names of the groups that were changed.
func (s *Store) DeleteCharacteristic(ctx context.Context, name string, cascade bool) (changed []string, err error) {
	defer func(start time.Time) { metrics.ObserveMutation("delete_characteristic", start, err) }(time.Now())

	name = schema.NormalizeName(name)
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()

	if _, err := s.schema.Get(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var users []types.Group
	for _, gn := range slices.Sorted(maps.Keys(s.groups)) {
		if _, ok := s.groups[gn].Lookup(name); ok {
			users = append(users, s.groups[gn])
		}
	}
	s.mu.RUnlock()

	if len(users) > 0 && !cascade {
		names := make([]string, len(users))
		for i, g := range users {
			names[i] = g.Name
		}
		return nil, fmt.Errorf("characteristic %q is used by groups %s: %w", name, strings.Join(names, ", "), types.ErrInUse)
	}

	for _, g := range users {
		if err := s.stripCharacteristic(ctx, g, name); err != nil {
			return changed, err
		}
		changed = append(changed, g.Name)
	}

	if err := s.schema.Remove(ctx, name); err != nil {
		return changed, err
	}
	s.logger.Debug("characteristic deleted", zap.String("name", name), zap.Strings("groups", changed))
	return changed, nil
}

// stripCharacteristic removes name from g and from the values of g's
// records. Callers hold s.schemaMu for writing.
func (s *Store) stripCharacteristic(ctx context.Context, g types.Group, name string) error {
	s.mu.RLock()
	dependents := s.recordsOf(g.Name)
	s.mu.RUnlock()

	for _, cur := range dependents {
		if _, ok := cur.Values[name]; !ok {
			continue
		}
		next := cur.Clone()
		delete(next.Values, name)
		next.UpdatedAt = s.stamp(cur.UpdatedAt)
		if s.port != nil {
			if err := s.port.SaveRecord(ctx, next); err != nil {
				s.logger.Warn("saving record failed", zap.String("id", cur.ID), zap.Error(err))
				return types.PersistenceError("save record", err)
			}
		}
		s.mu.Lock()
		s.putRecord(next)
		s.mu.Unlock()
		s.appendChange(ctx, types.ChangeUpdated, &cur, &next, 0)
	}

	ng := g.Without(name)
	if s.port != nil {
		if err := s.port.SaveGroup(ctx, ng); err != nil {
			s.logger.Warn("saving group failed", zap.String("group", g.Name), zap.Error(err))
			return types.PersistenceError("save group", err)
		}
	}
	s.mu.Lock()
	s.groups[g.Name] = ng
	s.mu.Unlock()
	return nil
}

// recordsOf returns the records of group in insertion order. Callers hold
// s.mu.
func (s *Store) recordsOf(group string) []types.Record {
	var out []types.Record
	for _, id := range s.order {
		if r := s.records[id]; r.GroupName == group {
			out = append(out, r)
		}
	}
	return out
}
