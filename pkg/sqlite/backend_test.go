package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/stockroom/internal/schema"
	"github.com/mesh-intelligence/stockroom/internal/store"
	"github.com/mesh-intelligence/stockroom/pkg/sqlite"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

func TestEmbeddedStore(t *testing.T) {
	ctx := context.Background()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}

	b := sqlite.NewBackend()
	require.NoError(t, b.Attach(cfg))
	s := store.New(schema.NewRegistry(b), b)
	require.NoError(t, s.Load(ctx))
	_, err := s.Schema().Define(ctx, "Name", types.DataTypeText, false, types.Constraints{})
	require.NoError(t, err)
	_, err = s.DefineGroup(ctx, "Tools", []string{"Name"})
	require.NoError(t, err)
	rec, err := s.CreateRecord(ctx, "Tools", map[string]string{"Name": "hammer"})
	require.NoError(t, err)
	require.NoError(t, b.Detach())

	b = sqlite.NewBackend()
	require.NoError(t, b.Attach(cfg))
	defer b.Close()
	s = store.New(schema.NewRegistry(b), b)
	require.NoError(t, s.Load(ctx))
	got, err := s.GetRecord(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "hammer", got.Values["Name"].Text)
	assert.Len(t, s.Changes(), 1)
}
