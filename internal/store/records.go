package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/stockroom/internal/coerce"
	"github.com/mesh-intelligence/stockroom/internal/metrics"
	"github.com/mesh-intelligence/stockroom/internal/schema"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

// CreateRecord validates raw against the group and stores a new record.
// Validation is all-or-nothing: every failing field is reported in one
// *types.ValidationErrors and nothing is stored. Nullable characteristics
// missing from raw are stored as typed nulls.
func (s *Store) CreateRecord(ctx context.Context, group string, raw map[string]string) (rec types.Record, err error) {
	defer func(start time.Time) { metrics.ObserveMutation("create_record", start, err) }(time.Now())

	s.schemaMu.RLock()
	defer s.schemaMu.RUnlock()

	g, err := s.Group(group)
	if err != nil {
		return types.Record{}, err
	}
	values, err := coerceValues(g, raw, true)
	if err != nil {
		return types.Record{}, err
	}

	id, err := s.newID()
	if err != nil {
		return types.Record{}, err
	}
	now := s.now().UTC()
	rec = types.Record{ID: id, GroupName: g.Name, Values: values, CreatedAt: now, UpdatedAt: now}

	unlock := s.locks.Lock(id)
	defer unlock()

	if s.port != nil {
		if err := s.port.SaveRecord(ctx, rec); err != nil {
			s.logger.Warn("saving record failed", zap.String("id", id), zap.Error(err))
			return types.Record{}, types.PersistenceError("save record", err)
		}
	}
	s.mu.Lock()
	s.putRecord(rec)
	s.mu.Unlock()
	s.appendChange(ctx, types.ChangeCreated, nil, &rec, 0)

	s.logger.Debug("record created", zap.String("id", id), zap.String("group", g.Name))
	return rec.Clone(), nil
}

// UpdateRecord applies a partial patch: only characteristics named in raw
// change. UpdatedAt advances even when raw is empty.
func (s *Store) UpdateRecord(ctx context.Context, id string, raw map[string]string) (rec types.Record, err error) {
	defer func(start time.Time) { metrics.ObserveMutation("update_record", start, err) }(time.Now())

	s.schemaMu.RLock()
	defer s.schemaMu.RUnlock()
	unlock := s.locks.Lock(id)
	defer unlock()

	cur, err := s.GetRecord(id)
	if err != nil {
		return types.Record{}, err
	}
	g, err := s.Group(cur.GroupName)
	if err != nil {
		return types.Record{}, err
	}
	patch, err := coerceValues(g, raw, false)
	if err != nil {
		return types.Record{}, err
	}

	next := cur.Clone()
	for name, v := range patch {
		next.Values[name] = v
	}
	next.UpdatedAt = s.stamp(cur.UpdatedAt)

	if s.port != nil {
		if err := s.port.SaveRecord(ctx, next); err != nil {
			s.logger.Warn("saving record failed", zap.String("id", id), zap.Error(err))
			return types.Record{}, types.PersistenceError("save record", err)
		}
	}
	s.mu.Lock()
	s.putRecord(next)
	s.mu.Unlock()
	s.appendChange(ctx, types.ChangeUpdated, &cur, &next, 0)

	s.logger.Debug("record updated", zap.String("id", id), zap.Int("fields", len(patch)))
	return next.Clone(), nil
}

// DeleteRecord removes a record permanently.
func (s *Store) DeleteRecord(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { metrics.ObserveMutation("delete_record", start, err) }(time.Now())

	s.schemaMu.RLock()
	defer s.schemaMu.RUnlock()
	unlock := s.locks.Lock(id)
	defer unlock()

	cur, err := s.GetRecord(id)
	if err != nil {
		return err
	}
	if err := s.removeRecord(ctx, cur); err != nil {
		return err
	}
	s.logger.Debug("record deleted", zap.String("id", id))
	return nil
}

// removeRecord deletes cur through the port, then from memory, and logs
// the change.
func (s *Store) removeRecord(ctx context.Context, cur types.Record) error {
	if s.port != nil {
		if err := s.port.DeleteRecord(ctx, cur.ID); err != nil {
			s.logger.Warn("deleting record failed", zap.String("id", cur.ID), zap.Error(err))
			return types.PersistenceError("delete record", err)
		}
	}
	s.mu.Lock()
	s.dropRecord(cur.ID)
	s.mu.Unlock()
	s.appendChange(ctx, types.ChangeDeleted, &cur, nil, 0)
	return nil
}

// GetRecord returns a copy of the record with the given id.
func (s *Store) GetRecord(id string) (types.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return types.Record{}, fmt.Errorf("record %q: %w", id, types.ErrNotFound)
	}
	return r.Clone(), nil
}

// ListRecords yields copies of the records in insertion order. An empty
// groupFilter yields every record. The set of records is fixed when
// iteration starts; mutations made while iterating are not observed.
func (s *Store) ListRecords(groupFilter string) iter.Seq[types.Record] {
	groupFilter = schema.NormalizeName(groupFilter)
	return func(yield func(types.Record) bool) {
		for _, r := range s.snapshot(groupFilter) {
			if !yield(r.Clone()) {
				return
			}
		}
	}
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *Store) snapshot(group string) []types.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if group != "" {
		return s.recordsOf(group)
	}
	out := make([]types.Record, len(s.order))
	for i, id := range s.order {
		out[i] = s.records[id]
	}
	return out
}

// coerceValues coerces every raw value against g. With requireAll set,
// characteristics missing from raw become typed nulls when nullable and
// field errors otherwise. Keys outside g are reported with reason
// types.ErrUnknownCharacteristic.
func coerceValues(g types.Group, raw map[string]string, requireAll bool) (map[string]types.Value, error) {
	var fields []*types.FieldError

	given := make(map[string]string, len(raw))
	for key, v := range raw {
		name := schema.NormalizeName(key)
		if _, ok := g.Lookup(name); !ok {
			fields = append(fields, &types.FieldError{
				Field:  name,
				Reason: types.ErrUnknownCharacteristic,
				Detail: fmt.Sprintf("not part of group %q", g.Name),
			})
			continue
		}
		if _, dup := given[name]; dup {
			fields = append(fields, &types.FieldError{
				Field:  name,
				Reason: types.ErrInvalidFormat,
				Detail: "supplied more than once",
			})
			continue
		}
		given[name] = v
	}

	values := make(map[string]types.Value, len(g.Characteristics))
	for _, def := range g.Characteristics {
		s, ok := given[def.Name]
		if !ok {
			if !requireAll {
				continue
			}
			if def.Nullable {
				values[def.Name] = types.NullValue(def.DataType)
				continue
			}
			fields = append(fields, &types.FieldError{Field: def.Name, Reason: types.ErrRequiredFieldMissing})
			continue
		}
		v, err := coerce.Coerce(def, s)
		if err != nil {
			var fe *types.FieldError
			if !errors.As(err, &fe) {
				fe = &types.FieldError{Field: def.Name, Reason: types.ErrInvalidFormat, Detail: err.Error()}
			}
			fields = append(fields, fe)
			continue
		}
		values[def.Name] = v
	}

	if ve := types.NewValidationErrors(fields); ve != nil {
		return nil, ve
	}
	return values, nil
}
