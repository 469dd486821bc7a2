package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezachrisen/dyneval"
	"github.com/ezachrisen/dyneval/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "scripts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	require.NoError(t, s.Put(ctx, "id-1", "greeter", "package scripts"))
	sc, err := s.Get(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "greeter", sc.Name)
	assert.Equal(t, "package scripts", sc.Source)
	assert.False(t, sc.Updated.IsZero())
	assert.True(t, sc.Compiled.IsZero())
	assert.Empty(t, sc.Diagnostics)
}

func TestGetMissing(t *testing.T) {
	_, err := openStore(t).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecordCompile(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.Put(ctx, "id-1", "broken", "package scripts\nfunc {"))

	diags := dyneval.Diagnostics{
		{Severity: dyneval.Error, Message: "expected '('", Line: 2, Column: 6, Source: "parse"},
		{Severity: dyneval.Warning, Message: "duplicate reference", Source: "refs"},
	}
	require.NoError(t, s.RecordCompile(ctx, "id-1", false, diags))

	sc, err := s.Get(ctx, "id-1")
	require.NoError(t, err)
	assert.False(t, sc.OK)
	assert.False(t, sc.Compiled.IsZero())
	assert.Equal(t, diags, sc.Diagnostics)

	// new source clears the report
	require.NoError(t, s.Put(ctx, "id-1", "broken", "package scripts"))
	sc, err = s.Get(ctx, "id-1")
	require.NoError(t, err)
	assert.True(t, sc.Compiled.IsZero())
	assert.Empty(t, sc.Diagnostics)

	assert.ErrorIs(t, s.RecordCompile(ctx, "missing", true, nil), store.ErrNotFound)
}

func TestListDelete(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.Put(ctx, "2", "b", "src"))
	require.NoError(t, s.Put(ctx, "1", "a", "src"))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, "b", list[1].Name)

	ok, err := s.Delete(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Delete(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)

	list, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
