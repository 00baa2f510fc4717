package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/stockroom/internal/schema"
	"github.com/mesh-intelligence/stockroom/internal/store"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

func attach(t *testing.T, dir string) *Backend {
	t.Helper()
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	t.Cleanup(func() { _ = b.Detach() })
	return b
}

func TestAttachCreatesFiles(t *testing.T) {
	dir := t.TempDir()
	attach(t, dir)

	for _, name := range append(slices.Clone(allJSONL), dbFile) {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	info, err := os.Stat(filepath.Join(dir, recordsJSONL))
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestAttachLifecycle(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()

	_, err := b.LoadRecords(ctx)
	assert.ErrorIs(t, err, ErrDetached)
	assert.ErrorIs(t, b.SaveRecord(ctx, types.Record{ID: "x"}), ErrDetached)

	assert.Error(t, b.Attach(types.Config{}), "invalid config")

	cfg := types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}
	require.NoError(t, b.Attach(cfg))
	assert.ErrorIs(t, b.Attach(cfg), ErrAlreadyAttached)

	require.NoError(t, b.Close())
	require.NoError(t, b.Detach(), "detach is idempotent")
	_, err = b.LoadSchema(ctx)
	assert.ErrorIs(t, err, ErrDetached)
}

func TestSchemaAndGroups(t *testing.T) {
	ctx := context.Background()
	b := attach(t, t.TempDir())
	lo, hi := 0.0, 100.0
	created := time.Date(2025, 4, 1, 9, 0, 0, 123, time.UTC)

	color := types.Characteristic{Name: "Color", DataType: types.DataTypeEnum, Options: []string{"red", "green"}, CreatedAt: created}
	pct := types.Characteristic{Name: "Discount", DataType: types.DataTypePercentage, Nullable: true, Min: &lo, Max: &hi, CreatedAt: created}
	require.NoError(t, b.SaveSchema(ctx, pct))
	require.NoError(t, b.SaveSchema(ctx, color))

	got, err := b.LoadSchema(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Characteristic{color, pct}, got)

	g := types.Group{Name: "Widgets", Characteristics: []types.Characteristic{pct, color}, CreatedAt: created}
	require.NoError(t, b.SaveGroup(ctx, g))
	groups, err := b.LoadGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Group{g}, groups)

	g2 := g.Without("Discount")
	require.NoError(t, b.SaveGroup(ctx, g2))
	groups, err = b.LoadGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Group{g2}, groups)

	require.NoError(t, b.DeleteGroup(ctx, "Widgets"))
	require.NoError(t, b.DeleteSchema(ctx, "Color"))
	groups, err = b.LoadGroups(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups)
	got, err = b.LoadSchema(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Characteristic{pct}, got)
}

func TestCharacteristicArgsEncodesOptions(t *testing.T) {
	hi := 9.5
	args, err := characteristicArgs(types.Characteristic{
		Name: "Color", DataType: types.DataTypeEnum, Options: []string{"red", "green"}, Max: &hi,
	})
	require.NoError(t, err)
	require.Len(t, args, 7)
	assert.Equal(t, `["red","green"]`, args[3])
	assert.Nil(t, args[4])
	assert.Equal(t, 9.5, args[5])
}

func TestFailedWriteLeavesEveryJSONLUntouched(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := attach(t, dir)
	created := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	name := types.Characteristic{Name: "Name", DataType: types.DataTypeText, CreatedAt: created}
	shelf := types.Group{Name: "Shelf", Characteristics: []types.Characteristic{name}, CreatedAt: created}
	require.NoError(t, b.SaveGroup(ctx, shelf))
	before, err := os.ReadFile(filepath.Join(dir, groupsJSONL))
	require.NoError(t, err)

	// The groups file stages cleanly; the second table cannot be staged.
	err = b.write(ctx, []string{groupsTable, "bogus"}, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO item_groups (name, created_at) VALUES (?, ?)", "Bin", "2025-04-02")
		return err
	})
	require.Error(t, err)

	after, err := os.ReadFile(filepath.Join(dir, groupsJSONL))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temp file %s left behind", e.Name())
	}

	groups, err := b.LoadGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Group{shelf}, groups, "database rolled back")
}

// newStore wires a store over b the way the CLI does.
func newStore(t *testing.T, b *Backend) *store.Store {
	t.Helper()
	s := store.New(schema.NewRegistry(b), b)
	require.NoError(t, s.Load(context.Background()))
	return s
}

func TestStoreSurvivesReattach(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := attach(t, dir)
	s := newStore(t, b)

	_, err := s.Schema().Define(ctx, "Name", types.DataTypeText, false, types.Constraints{})
	require.NoError(t, err)
	_, err = s.Schema().Define(ctx, "Price", types.DataTypePrice, true, types.Constraints{})
	require.NoError(t, err)
	_, err = s.Schema().Define(ctx, "Added", types.DataTypeDate, true, types.Constraints{})
	require.NoError(t, err)
	_, err = s.DefineGroup(ctx, "Tools", []string{"Name", "Price", "Added"})
	require.NoError(t, err)

	hammer, err := s.CreateRecord(ctx, "Tools", map[string]string{"Name": "Hammer", "Price": "12.5", "Added": "2024-02-29T10:11:12.5+01:00"})
	require.NoError(t, err)
	saw, err := s.CreateRecord(ctx, "Tools", map[string]string{"Name": "Saw"})
	require.NoError(t, err)
	hammer, err = s.UpdateRecord(ctx, hammer.ID, map[string]string{"Price": "13"})
	require.NoError(t, err)
	level, err := s.CreateRecord(ctx, "Tools", map[string]string{"Name": "Level"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteRecord(ctx, level.ID))

	require.NoError(t, b.Detach())
	b2 := attach(t, dir)
	s2 := newStore(t, b2)

	assert.Equal(t, []types.Record{hammer, saw}, slices.Collect(s2.ListRecords("")))
	assert.Equal(t, s.Changes(), s2.Changes())
	assert.Equal(t, s.Groups(), s2.Groups())
	assert.Equal(t, s.Schema().List(), s2.Schema().List())

	c, err := s2.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, level.ID, c.RecordID)
	_, err = s2.GetRecord(level.ID)
	assert.NoError(t, err)
}

func TestJSONLIsTheSourceOfTruth(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := attach(t, dir)
	r := types.Record{
		ID:        "rec-1",
		GroupName: "Tools",
		Values:    map[string]types.Value{"Name": types.TextValue("Hammer"), "Price": types.NullValue(types.DataTypePrice)},
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, b.SaveRecord(ctx, r))

	data, err := os.ReadFile(filepath.Join(dir, recordValuesJSONL))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, []string{
		`{"record_id":"rec-1","name":"Name","data_type":"text","value":"Hammer"}`,
		`{"record_id":"rec-1","name":"Price","data_type":"price","value":null}`,
	}, lines)

	// The database file is rebuilt from JSONL, so deleting it loses nothing.
	require.NoError(t, b.Detach())
	require.NoError(t, os.Remove(filepath.Join(dir, dbFile)))
	b2 := attach(t, dir)
	recs, err := b2.LoadRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Record{r}, recs)

	require.NoError(t, b2.DeleteRecord(ctx, "rec-1"))
	data, err = os.ReadFile(filepath.Join(dir, recordValuesJSONL))
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestCancelledContextWritesNothing(t *testing.T) {
	dir := t.TempDir()
	b := attach(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, b.SaveRecord(ctx, types.Record{ID: "x", CreatedAt: time.Now(), UpdatedAt: time.Now()}))
	recs, err := b.LoadRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}
