package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/stockroom/internal/metrics"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

// Undo reverts the most recent change that has not been undone yet and
// returns the change that records the revert. A creation is undone by
// deleting the record, an update by restoring the previous values and a
// deletion by recreating the record with its original id and timestamps.
// Values for characteristics the group no longer carries are dropped.
func (s *Store) Undo(ctx context.Context) (c types.Change, err error) {
	defer func(start time.Time) { metrics.ObserveMutation("undo", start, err) }(time.Now())

	s.undoMu.Lock()
	defer s.undoMu.Unlock()

	target, ok := s.log.Undoable()
	if !ok {
		return types.Change{}, types.ErrNothingToUndo
	}

	s.schemaMu.RLock()
	defer s.schemaMu.RUnlock()
	unlock := s.locks.Lock(target.RecordID)
	defer unlock()

	switch target.Kind {
	case types.ChangeCreated:
		c, err = s.undoCreate(ctx, target)
	case types.ChangeUpdated:
		c, err = s.undoUpdate(ctx, target)
	case types.ChangeDeleted:
		c, err = s.undoDelete(ctx, target)
	default:
		err = fmt.Errorf("undo change %d: unknown kind %q", target.Seq, target.Kind)
	}
	if err != nil {
		return types.Change{}, err
	}
	s.logger.Debug("change undone", zap.Int64("seq", target.Seq), zap.String("record", target.RecordID))
	return c, nil
}

func (s *Store) undoCreate(ctx context.Context, target types.Change) (types.Change, error) {
	cur, err := s.GetRecord(target.RecordID)
	if err != nil {
		return types.Change{}, fmt.Errorf("undo change %d: %w", target.Seq, err)
	}
	if s.port != nil {
		if err := s.port.DeleteRecord(ctx, cur.ID); err != nil {
			return types.Change{}, types.PersistenceError("delete record", err)
		}
	}
	s.mu.Lock()
	s.dropRecord(cur.ID)
	s.mu.Unlock()
	return s.appendChange(ctx, types.ChangeDeleted, &cur, nil, target.Seq), nil
}

func (s *Store) undoUpdate(ctx context.Context, target types.Change) (types.Change, error) {
	if target.Before == nil {
		return types.Change{}, fmt.Errorf("undo change %d: no previous state recorded", target.Seq)
	}
	cur, err := s.GetRecord(target.RecordID)
	if err != nil {
		return types.Change{}, fmt.Errorf("undo change %d: %w", target.Seq, err)
	}
	g, err := s.Group(cur.GroupName)
	if err != nil {
		return types.Change{}, fmt.Errorf("undo change %d: %w", target.Seq, err)
	}

	next := cur.Clone()
	next.Values = restrict(target.Before.Clone(), g).Values
	next.UpdatedAt = s.stamp(cur.UpdatedAt)

	if s.port != nil {
		if err := s.port.SaveRecord(ctx, next); err != nil {
			return types.Change{}, types.PersistenceError("save record", err)
		}
	}
	s.mu.Lock()
	s.putRecord(next)
	s.mu.Unlock()
	return s.appendChange(ctx, types.ChangeUpdated, &cur, &next, target.Seq), nil
}

func (s *Store) undoDelete(ctx context.Context, target types.Change) (types.Change, error) {
	if target.Before == nil {
		return types.Change{}, fmt.Errorf("undo change %d: no previous state recorded", target.Seq)
	}
	if _, err := s.GetRecord(target.RecordID); err == nil {
		return types.Change{}, fmt.Errorf("undo change %d: record %q exists", target.Seq, target.RecordID)
	}
	g, err := s.Group(target.Before.GroupName)
	if err != nil {
		return types.Change{}, fmt.Errorf("undo change %d: %w", target.Seq, err)
	}

	restored := restrict(target.Before.Clone(), g)
	if s.port != nil {
		if err := s.port.SaveRecord(ctx, restored); err != nil {
			return types.Change{}, types.PersistenceError("save record", err)
		}
	}
	s.mu.Lock()
	s.restoreRecord(restored)
	s.mu.Unlock()
	return s.appendChange(ctx, types.ChangeCreated, nil, &restored, target.Seq), nil
}
