// Package store validates records against their group and keeps groups,
// records and the change log consistent with the persistence port.
//
// Every mutation follows the same order: validate, write the port, apply
// to memory, append to the change log. A failed port call returns an error
// wrapping types.ErrPersistence and leaves memory as it was.
package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/stockroom/internal/changelog"
	"github.com/mesh-intelligence/stockroom/internal/metrics"
	"github.com/mesh-intelligence/stockroom/internal/schema"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

// Store owns groups and records for one process. It is safe for concurrent
// use: mutations of different records run in parallel, mutations of the
// same record are serialized, and schema changes exclude all record
// mutations.
type Store struct {
	schema *schema.Registry
	port   types.Persistence
	sink   types.ChangeSink
	log    *changelog.Log
	logger *zap.Logger
	now    func() time.Time
	newID  func() (string, error)

	// schemaMu is held for writing while groups or characteristics are
	// defined, removed or reloaded, and for reading by record mutations.
	// Lock order is undoMu, schemaMu, locks, then mu.
	schemaMu sync.RWMutex
	locks    keyedMutex
	changeMu sync.Mutex
	undoMu   sync.Mutex

	mu      sync.RWMutex
	groups  map[string]types.Group
	records map[string]types.Record // Stored records are never mutated in place.
	order   []string                // Record ids in insertion order.
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock replaces time.Now for record and change timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces UUID v7 record ids.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(s *Store) { s.newID = gen }
}

// New creates an empty store over reg. port may be nil for a purely
// in-memory store; if it also implements types.ChangeSink the change log
// is persisted through it. Call Load to hydrate from the port.
func New(reg *schema.Registry, port types.Persistence, opts ...Option) *Store {
	s := &Store{
		schema:  reg,
		port:    port,
		logger:  zap.NewNop(),
		now:     time.Now,
		newID:   newUUID,
		groups:  make(map[string]types.Group),
		records: make(map[string]types.Record),
	}
	if sink, ok := port.(types.ChangeSink); ok {
		s.sink = sink
	}
	for _, o := range opts {
		o(s)
	}
	s.log = changelog.New(s.now)
	return s
}

func newUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating record id: %w", err)
	}
	return id.String(), nil
}

// Schema returns the registry the store validates group definitions
// against.
func (s *Store) Schema() *schema.Registry { return s.schema }

// Load replaces the store contents with the port's schema, groups,
// records and change log. Records whose group is missing are skipped and
// logged.
func (s *Store) Load(ctx context.Context) error {
	if s.port == nil {
		return nil
	}
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()

	if err := s.schema.Load(ctx); err != nil {
		return err
	}
	groups, err := s.port.LoadGroups(ctx)
	if err != nil {
		return types.PersistenceError("load groups", err)
	}
	records, err := s.port.LoadRecords(ctx)
	if err != nil {
		return types.PersistenceError("load records", err)
	}
	var changes []types.Change
	if s.sink != nil {
		if changes, err = s.sink.LoadChanges(ctx); err != nil {
			return types.PersistenceError("load changes", err)
		}
	}

	groupMap := make(map[string]types.Group, len(groups))
	for _, g := range groups {
		groupMap[g.Name] = g.Clone()
	}

	slices.SortStableFunc(records, compareRecords)
	recordMap := make(map[string]types.Record, len(records))
	order := make([]string, 0, len(records))
	for _, r := range records {
		g, ok := groupMap[r.GroupName]
		if !ok {
			s.logger.Warn("skipping record of unknown group", zap.String("id", r.ID), zap.String("group", r.GroupName))
			continue
		}
		if _, dup := recordMap[r.ID]; dup {
			s.logger.Warn("skipping duplicate record", zap.String("id", r.ID))
			continue
		}
		recordMap[r.ID] = restrict(r.Clone(), g)
		order = append(order, r.ID)
	}

	s.mu.Lock()
	s.groups, s.records, s.order = groupMap, recordMap, order
	s.mu.Unlock()
	s.log.Replace(changes)
	metrics.StoreRecords.Set(float64(len(order)))

	s.logger.Info("store loaded",
		zap.Int("characteristics", s.schema.Len()),
		zap.Int("groups", len(groupMap)),
		zap.Int("records", len(order)),
		zap.Int("changes", len(changes)))
	return nil
}

// Reload discards in-memory state and loads it again from the port. It
// picks up writes made by other processes sharing the same backend.
func (s *Store) Reload(ctx context.Context) (err error) {
	defer func(start time.Time) { metrics.ObserveMutation("reload", start, err) }(time.Now())
	return s.Load(ctx)
}

// Changes returns the change log in append order.
func (s *Store) Changes() []types.Change {
	return s.log.Entries()
}

// History returns the changes that touched record id.
func (s *Store) History(id string) []types.Change {
	return s.log.ForRecord(id)
}

// appendChange records a committed mutation. The record is already
// persisted, so a sink failure is logged rather than returned.
func (s *Store) appendChange(ctx context.Context, kind types.ChangeKind, before, after *types.Record, reverts int64) types.Change {
	s.changeMu.Lock()
	defer s.changeMu.Unlock()

	c := s.log.Next(kind, before, after, reverts)
	if s.sink != nil {
		if err := s.sink.AppendChange(ctx, c); err != nil {
			s.logger.Warn("appending change failed",
				zap.Int64("seq", c.Seq), zap.String("record", c.RecordID), zap.Error(err))
		}
	}
	s.log.Append(c)
	return c
}

// stamp returns a timestamp strictly after prev.
func (s *Store) stamp(prev time.Time) time.Time {
	t := s.now().UTC()
	if !t.After(prev) {
		t = prev.Add(time.Nanosecond)
	}
	return t
}

// putRecord inserts or replaces r. New records go to the end of the
// insertion order. Callers hold s.mu.
func (s *Store) putRecord(r types.Record) {
	if _, ok := s.records[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	s.records[r.ID] = r
	metrics.StoreRecords.Set(float64(len(s.order)))
}

// restoreRecord reinserts a deleted record at the position its creation
// time gives it. Callers hold s.mu.
func (s *Store) restoreRecord(r types.Record) {
	i := slices.IndexFunc(s.order, func(id string) bool {
		return compareRecords(s.records[id], r) > 0
	})
	if i < 0 {
		i = len(s.order)
	}
	s.order = slices.Insert(s.order, i, r.ID)
	s.records[r.ID] = r
	metrics.StoreRecords.Set(float64(len(s.order)))
}

// dropRecord removes id. Callers hold s.mu.
func (s *Store) dropRecord(id string) {
	delete(s.records, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	metrics.StoreRecords.Set(float64(len(s.order)))
}

func compareRecords(a, b types.Record) int {
	return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), strings.Compare(a.ID, b.ID))
}

// restrict drops values for characteristics g no longer carries.
func restrict(r types.Record, g types.Group) types.Record {
	for name := range r.Values {
		if _, ok := g.Lookup(name); !ok {
			delete(r.Values, name)
		}
	}
	return r
}
