package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/stockroom/pkg/types"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadFromHandWrittenJSONL(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, characteristicsJSONL,
		`{"name":"Color","data_type":"enum","nullable":false,"options":["red","blue"],"min":null,"max":null,"created_at":"2025-01-01T00:00:00Z","added_later":true}`+"\n"+
			"garbage line\n"+
			`{"name":"Price","data_type":"price","nullable":true,"options":null,"min":0,"max":null,"created_at":"2025-01-01T00:00:00Z"}`+"\n")
	writeFile(t, dir, groupsJSONL, `{"name":"Paint","created_at":"2025-01-02T00:00:00Z"}`+"\n")
	writeFile(t, dir, groupCharacteristicsJSONL,
		`{"group_name":"Paint","ordinal":1,"name":"Price","data_type":"price","nullable":true,"options":null,"min":0,"max":null,"created_at":"2025-01-01T00:00:00Z"}`+"\n"+
			`{"group_name":"Paint","ordinal":0,"name":"Color","data_type":"enum","nullable":false,"options":["red","blue"],"min":null,"max":null,"created_at":"2025-01-01T00:00:00Z"}`+"\n"+
			`{"group_name":"Ghost","ordinal":0,"name":"Color","data_type":"enum","nullable":false,"options":["red"],"min":null,"max":null,"created_at":"2025-01-01T00:00:00Z"}`+"\n")
	writeFile(t, dir, recordsJSONL,
		`{"record_id":"r2","group_name":"Paint","created_at":"2025-01-03T00:00:00Z","updated_at":"2025-01-03T00:00:00Z"}`+"\n"+
			`{"record_id":"r1","group_name":"Paint","created_at":"2025-01-03T00:00:00Z","updated_at":"2025-01-04T00:00:00Z"}`+"\n")
	writeFile(t, dir, recordValuesJSONL,
		`{"record_id":"r1","name":"Color","data_type":"enum","value":"blue"}`+"\n"+
			`{"record_id":"r1","name":"Price","data_type":"price","value":"4.5"}`+"\n"+
			`{"record_id":"r2","name":"Color","data_type":"enum","value":"red"}`+"\n"+
			`{"record_id":"r2","name":"Price","data_type":"price","value":null}`+"\n"+
			`{"record_id":"orphan","name":"Color","data_type":"enum","value":"red"}`+"\n")
	writeFile(t, dir, changesJSONL,
		`{"seq":1,"kind":"created","record_id":"r1","group_name":"Paint","before_record":null,"after_record":{"id":"r1","group":"Paint","values":{},"created_at":"2025-01-03T00:00:00Z","updated_at":"2025-01-03T00:00:00Z"},"reverts":0,"at":"2025-01-03T00:00:00Z"}`+"\n")

	b := attach(t, dir)
	ctx := context.Background()

	schema, err := b.LoadSchema(ctx)
	require.NoError(t, err)
	require.Len(t, schema, 2)
	assert.Equal(t, []string{"red", "blue"}, schema[0].Options)
	require.NotNil(t, schema[1].Min)
	assert.Nil(t, schema[1].Max)

	groups, err := b.LoadGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1, "snapshot rows of a missing group are dropped")
	assert.Equal(t, []string{"Color", "Price"}, groups[0].Names())

	recs, err := b.LoadRecords(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "r1", recs[0].ID, "ties on created_at break on id")
	assert.Equal(t, types.EnumValue("blue"), recs[0].Values["Color"])
	assert.Equal(t, types.NumberValue(types.DataTypePrice, 4.5), recs[0].Values["Price"])
	assert.Equal(t, types.NullValue(types.DataTypePrice), recs[1].Values["Price"])

	changes, err := b.LoadChanges(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, types.ChangeCreated, changes[0].Kind)
	require.NotNil(t, changes[0].After)
	assert.Nil(t, changes[0].Before)
	assert.Equal(t, "r1", changes[0].After.ID)
}

func TestLoadSkipsDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, groupsJSONL,
		`{"name":"Paint","created_at":"2025-01-02T00:00:00Z"}`+"\n"+
			`{"name":"Paint","created_at":"2025-02-02T00:00:00Z"}`+"\n")

	b := attach(t, dir)
	groups, err := b.LoadGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 1, int(groups[0].CreatedAt.Month()), "first line wins")
}
