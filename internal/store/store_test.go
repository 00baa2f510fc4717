package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/stockroom/internal/memory"
	"github.com/mesh-intelligence/stockroom/internal/schema"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

var errDiskFull = errors.New("disk full")

// flakyBackend fails the write operations whose flag is set.
type flakyBackend struct {
	*memory.Backend
	failSave   atomic.Bool
	failDelete atomic.Bool
	failGroup  atomic.Bool
}

func newFlaky() *flakyBackend { return &flakyBackend{Backend: memory.NewBackend()} }

func (f *flakyBackend) SaveRecord(ctx context.Context, r types.Record) error {
	if f.failSave.Load() {
		return errDiskFull
	}
	return f.Backend.SaveRecord(ctx, r)
}

func (f *flakyBackend) DeleteRecord(ctx context.Context, id string) error {
	if f.failDelete.Load() {
		return errDiskFull
	}
	return f.Backend.DeleteRecord(ctx, id)
}

func (f *flakyBackend) SaveGroup(ctx context.Context, g types.Group) error {
	if f.failGroup.Load() {
		return errDiskFull
	}
	return f.Backend.SaveGroup(ctx, g)
}

func (f *flakyBackend) DeleteGroup(ctx context.Context, name string) error {
	if f.failGroup.Load() {
		return errDiskFull
	}
	return f.Backend.DeleteGroup(ctx, name)
}

// fixedClock returns the same instant on every call.
func fixedClock() func() time.Time {
	t := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time { return t }
}

// sequentialIDs returns rec-001, rec-002, ...
func sequentialIDs() func() (string, error) {
	var n atomic.Int64
	return func() (string, error) { return fmt.Sprintf("rec-%03d", n.Add(1)), nil }
}

func ptr(f float64) *float64 { return &f }

func define(t *testing.T, reg *schema.Registry, name string, dt types.DataType, nullable bool, extra types.Constraints) {
	t.Helper()
	_, err := reg.Define(context.Background(), name, dt, nullable, extra)
	require.NoError(t, err)
}

// newWidgets returns a store with a Widgets group carrying Color (enum),
// Price (price, required, >= 0) and Note (text, nullable).
func newWidgets(t *testing.T, port types.Persistence, opts ...Option) *Store {
	t.Helper()
	reg := schema.NewRegistry(port)
	define(t, reg, "Color", types.DataTypeEnum, false, types.Constraints{Options: []string{"red", "green", "blue"}})
	define(t, reg, "Price", types.DataTypePrice, false, types.Constraints{Min: ptr(0)})
	define(t, reg, "Note", types.DataTypeText, true, types.Constraints{})
	s := New(reg, port, opts...)
	_, err := s.DefineGroup(context.Background(), "Widgets", []string{"Color", "Price", "Note"})
	require.NoError(t, err)
	return s
}

func collect(s *Store, group string) []types.Record {
	return slices.Collect(s.ListRecords(group))
}

func TestEnumScenario(t *testing.T) {
	ctx := context.Background()
	reg := schema.NewRegistry(nil)
	define(t, reg, "Color", types.DataTypeEnum, false, types.Constraints{Options: []string{"red", "green", "blue"}})
	s := New(reg, nil)
	_, err := s.DefineGroup(ctx, "Widgets", []string{"Color"})
	require.NoError(t, err)

	rec, err := s.CreateRecord(ctx, "Widgets", map[string]string{"Color": "green"})
	require.NoError(t, err)
	assert.Equal(t, map[string]types.Value{"Color": types.EnumValue("green")}, rec.Values)
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)

	_, err = s.CreateRecord(ctx, "Widgets", map[string]string{"Color": "purple"})
	require.ErrorIs(t, err, types.ErrValidation)
	assert.ErrorIs(t, err, types.ErrNotInOptions)
	assert.Equal(t, 1, s.Len())
}

func TestCreateRecord_MissingRequiredField(t *testing.T) {
	ctx := context.Background()
	reg := schema.NewRegistry(nil)
	define(t, reg, "price", types.DataTypeNumber, false, types.Constraints{})
	s := New(reg, nil)
	_, err := s.DefineGroup(ctx, "Parts", []string{"price"})
	require.NoError(t, err)

	_, err = s.CreateRecord(ctx, "Parts", map[string]string{})
	ve, ok := types.AsValidation(err)
	require.True(t, ok)
	require.Len(t, ve.Fields, 1)
	assert.Equal(t, "price", ve.Fields[0].Field)
	assert.ErrorIs(t, ve.Fields[0], types.ErrRequiredFieldMissing)
	assert.Zero(t, s.Len())
}

func TestCreateRecord_ReportsEveryField(t *testing.T) {
	s := newWidgets(t, nil)
	_, err := s.CreateRecord(context.Background(), "Widgets", map[string]string{
		"Color":  "purple",
		"Price":  "-1",
		"Weight": "3",
	})
	ve, ok := types.AsValidation(err)
	require.True(t, ok)
	require.Len(t, ve.Fields, 3)
	assert.ErrorIs(t, ve.Field("Color"), types.ErrNotInOptions)
	assert.ErrorIs(t, ve.Field("Price"), types.ErrOutOfRange)
	assert.ErrorIs(t, ve.Field("Weight"), types.ErrUnknownCharacteristic)
	assert.Equal(t, []string{"Color", "Price", "Weight"},
		[]string{ve.Fields[0].Field, ve.Fields[1].Field, ve.Fields[2].Field})
	assert.Zero(t, s.Len())
}

func TestCreateRecord_NullableMissingStoredAsNull(t *testing.T) {
	s := newWidgets(t, nil)
	rec, err := s.CreateRecord(context.Background(), "Widgets", map[string]string{"Color": "red", "Price": "$4.50"})
	require.NoError(t, err)
	assert.Equal(t, types.NullValue(types.DataTypeText), rec.Values["Note"])
	assert.Equal(t, 4.5, rec.Values["Price"].Number)
	assert.Len(t, rec.Values, 3)
}

func TestCreateRecord_UnknownGroup(t *testing.T) {
	s := New(schema.NewRegistry(nil), nil)
	_, err := s.CreateRecord(context.Background(), "Nope", nil)
	assert.ErrorIs(t, err, types.ErrUnknownGroup)
}

func TestCreateRecord_UUIDv7(t *testing.T) {
	s := newWidgets(t, nil)
	rec, err := s.CreateRecord(context.Background(), "Widgets", map[string]string{"Color": "red", "Price": "1"})
	require.NoError(t, err)
	assert.Len(t, rec.ID, 36)
	assert.Equal(t, byte('7'), rec.ID[14], "version nibble")
}

func TestRoundTripThroughList(t *testing.T) {
	s := newWidgets(t, nil)
	ctx := context.Background()
	var created []types.Record
	for _, c := range []string{"red", "green", "blue"} {
		rec, err := s.CreateRecord(ctx, "Widgets", map[string]string{"Color": c, "Price": "2", "Note": c + " widget"})
		require.NoError(t, err)
		created = append(created, rec)
	}
	assert.Equal(t, created, collect(s, ""))
	assert.Equal(t, created, collect(s, "Widgets"))

	got, err := s.GetRecord(created[1].ID)
	require.NoError(t, err)
	assert.Equal(t, created[1], got)
}

func TestListRecords(t *testing.T) {
	ctx := context.Background()
	var n atomic.Int64
	descending := func() (string, error) { return fmt.Sprintf("rec-%03d", 999-n.Add(1)), nil }
	s := newWidgets(t, nil, WithClock(fixedClock()), WithIDGenerator(descending))
	_, err := s.Schema().Define(ctx, "Size", types.DataTypeNumber, true, types.Constraints{})
	require.NoError(t, err)
	_, err = s.DefineGroup(ctx, "Boxes", []string{"Size"})
	require.NoError(t, err)

	var want []string
	for i := range 12 {
		group, raw := "Widgets", map[string]string{"Color": "red", "Price": "1"}
		if i%3 == 0 {
			group, raw = "Boxes", map[string]string{"Size": fmt.Sprint(i)}
		}
		rec, err := s.CreateRecord(ctx, group, raw)
		require.NoError(t, err)
		want = append(want, rec.ID)
	}

	var ids []string
	for r := range s.ListRecords("") {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, want, ids, "insertion order, not id order")

	boxes := collect(s, "Boxes")
	assert.Len(t, boxes, 4)
	assert.Empty(t, collect(s, "Unknown"))

	visited := 0
	for range s.ListRecords("") {
		visited++
		if visited == 2 {
			break
		}
	}
	assert.Equal(t, 2, visited)
}

func TestListRecords_ReturnsCopies(t *testing.T) {
	s := newWidgets(t, nil)
	rec, err := s.CreateRecord(context.Background(), "Widgets", map[string]string{"Color": "red", "Price": "1"})
	require.NoError(t, err)

	for r := range s.ListRecords("") {
		r.Values["Color"] = types.EnumValue("blue")
	}
	rec.Values["Color"] = types.EnumValue("blue")

	got, err := s.GetRecord(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "red", got.Values["Color"].Text)
}

func TestListRecords_SnapshotAtIterationStart(t *testing.T) {
	ctx := context.Background()
	s := newWidgets(t, nil)
	_, err := s.CreateRecord(ctx, "Widgets", map[string]string{"Color": "red", "Price": "1"})
	require.NoError(t, err)

	seen := 0
	for range s.ListRecords("") {
		seen++
		_, err := s.CreateRecord(ctx, "Widgets", map[string]string{"Color": "blue", "Price": "1"})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, seen)
	assert.Equal(t, 2, s.Len())
}

func TestUpdateRecord(t *testing.T) {
	ctx := context.Background()
	s := newWidgets(t, nil)
	rec, err := s.CreateRecord(ctx, "Widgets", map[string]string{"Color": "red", "Price": "1"})
	require.NoError(t, err)

	upd, err := s.UpdateRecord(ctx, rec.ID, map[string]string{"Price": "2.25", "Note": "restocked"})
	require.NoError(t, err)
	assert.Equal(t, "red", upd.Values["Color"].Text, "untouched fields keep their value")
	assert.Equal(t, 2.25, upd.Values["Price"].Number)
	assert.Equal(t, "restocked", upd.Values["Note"].Text)
	assert.Equal(t, rec.CreatedAt, upd.CreatedAt)
	assert.True(t, upd.UpdatedAt.After(rec.UpdatedAt))

	cleared, err := s.UpdateRecord(ctx, rec.ID, map[string]string{"Note": ""})
	require.NoError(t, err)
	assert.True(t, cleared.Values["Note"].Null)
}

func TestUpdateRecord_EmptyPatchAdvancesUpdatedAt(t *testing.T) {
	ctx := context.Background()
	s := newWidgets(t, nil, WithClock(fixedClock()))
	rec, err := s.CreateRecord(ctx, "Widgets", map[string]string{"Color": "red", "Price": "1"})
	require.NoError(t, err)

	upd, err := s.UpdateRecord(ctx, rec.ID, map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, rec.Values, upd.Values)
	assert.True(t, upd.UpdatedAt.After(rec.UpdatedAt), "advances even when the clock does not")

	again, err := s.UpdateRecord(ctx, rec.ID, nil)
	require.NoError(t, err)
	assert.True(t, again.UpdatedAt.After(upd.UpdatedAt))
}

func TestUpdateRecord_ValidationIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := newWidgets(t, nil)
	rec, err := s.CreateRecord(ctx, "Widgets", map[string]string{"Color": "red", "Price": "1"})
	require.NoError(t, err)

	_, err = s.UpdateRecord(ctx, rec.ID, map[string]string{"Price": "5", "Color": ""})
	ve, ok := types.AsValidation(err)
	require.True(t, ok)
	assert.ErrorIs(t, ve.Field("Color"), types.ErrRequiredFieldMissing)

	got, err := s.GetRecord(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestUpdateAndDelete_NotFound(t *testing.T) {
	s := newWidgets(t, nil)
	_, err := s.UpdateRecord(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.ErrorIs(t, s.DeleteRecord(context.Background(), "missing"), types.ErrNotFound)
}

func TestDeleteRecord(t *testing.T) {
	ctx := context.Background()
	s := newWidgets(t, nil)
	a, err := s.CreateRecord(ctx, "Widgets", map[string]string{"Color": "red", "Price": "1"})
	require.NoError(t, err)
	b, err := s.CreateRecord(ctx, "Widgets", map[string]string{"Color": "blue", "Price": "1"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteRecord(ctx, a.ID))
	assert.Equal(t, []types.Record{b}, collect(s, ""))
	_, err = s.GetRecord(a.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestPersistenceFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	port := newFlaky()
	s := newWidgets(t, port)
	rec, err := s.CreateRecord(ctx, "Widgets", map[string]string{"Color": "red", "Price": "1"})
	require.NoError(t, err)
	changes := len(s.Changes())

	port.failSave.Store(true)
	_, err = s.CreateRecord(ctx, "Widgets", map[string]string{"Color": "blue", "Price": "1"})
	assert.ErrorIs(t, err, types.ErrPersistence)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, 1, s.Len())

	_, err = s.UpdateRecord(ctx, rec.ID, map[string]string{"Color": "blue"})
	assert.ErrorIs(t, err, types.ErrPersistence)
	got, err := s.GetRecord(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	port.failDelete.Store(true)
	assert.ErrorIs(t, s.DeleteRecord(ctx, rec.ID), types.ErrPersistence)
	_, err = s.GetRecord(rec.ID)
	assert.NoError(t, err)

	port.failGroup.Store(true)
	_, err = s.DefineGroup(ctx, "Gadgets", []string{"Color"})
	assert.ErrorIs(t, err, types.ErrPersistence)
	_, err = s.Group("Gadgets")
	assert.ErrorIs(t, err, types.ErrUnknownGroup)

	assert.Len(t, s.Changes(), changes, "failed mutations are not logged")
}

func TestWritesReachThePort(t *testing.T) {
	ctx := context.Background()
	port := memory.NewBackend()
	s := newWidgets(t, port)
	rec, err := s.CreateRecord(ctx, "Widgets", map[string]string{"Color": "red", "Price": "1"})
	require.NoError(t, err)

	stored, err := port.LoadRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Record{rec}, stored)

	changes, err := port.LoadChanges(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, types.ChangeCreated, changes[0].Kind)
}
