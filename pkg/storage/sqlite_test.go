package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visiora/visiora-agent/pkg/storage"
)

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.db")

	s, err := storage.NewSQLite(path, "local")
	require.NoError(t, err)
	require.NoError(t, s.SetItem("visitor", "abc"))
	require.NoError(t, s.Close())

	reopened, err := storage.NewSQLite(path, "local")
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err := reopened.GetItem("visitor")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
}

func TestSQLite_ScopesAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")

	a, err := storage.NewSQLite(path, "site-a")
	require.NoError(t, err)
	defer a.Close()
	b, err := storage.NewSQLite(path, "site-b")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.SetItem("k", "a"))
	require.NoError(t, b.SetItem("k", "b"))
	require.NoError(t, a.Clear())

	_, ok, err := a.GetItem("k")
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := b.GetItem("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestSQLite_UpsertAndRemove(t *testing.T) {
	s, err := storage.NewSQLite(":memory:", "local")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetItem("k", "1"))
	require.NoError(t, s.SetItem("k", "2"))
	v, _, err := s.GetItem("k")
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	require.NoError(t, s.RemoveItem("k"))
	_, ok, err := s.GetItem("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLite_Closed(t *testing.T) {
	s, err := storage.NewSQLite(":memory:", "local")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, _, err = s.GetItem("k")
	assert.ErrorIs(t, err, storage.ErrClosed)
	assert.ErrorIs(t, s.SetItem("k", "v"), storage.ErrClosed)
}
