package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visiora/visiora-agent/pkg/storage"
)

func TestMemory_SetGetRemove(t *testing.T) {
	m := storage.NewMemory()

	_, ok, err := m.GetItem("k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.SetItem("k", "v1"))
	require.NoError(t, m.SetItem("k", "v2"))
	v, ok, err := m.GetItem("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.RemoveItem("k"))
	require.NoError(t, m.RemoveItem("missing"))
	assert.Equal(t, 0, m.Len())
}

func TestMemory_Quota(t *testing.T) {
	m := storage.NewMemoryWithQuota(10)

	require.NoError(t, m.SetItem("abc", "defg"))
	// replacing an existing key only counts the new value
	require.NoError(t, m.SetItem("abc", "1234567"))
	assert.ErrorIs(t, m.SetItem("x", "overflow"), storage.ErrQuotaExceeded)

	v, _, _ := m.GetItem("abc")
	assert.Equal(t, "1234567", v)
}

func TestMemory_Clear(t *testing.T) {
	m := storage.NewMemory()
	require.NoError(t, m.SetItem("a", "1"))
	require.NoError(t, m.SetItem("b", "2"))
	require.NoError(t, m.Clear())
	assert.Equal(t, 0, m.Len())
}

func TestDisabled(t *testing.T) {
	var s storage.Storage = storage.Disabled{}

	_, _, err := s.GetItem("k")
	assert.ErrorIs(t, err, storage.ErrUnavailable)
	assert.ErrorIs(t, s.SetItem("k", "v"), storage.ErrUnavailable)
	assert.ErrorIs(t, s.RemoveItem("k"), storage.ErrUnavailable)
	assert.ErrorIs(t, s.Clear(), storage.ErrUnavailable)
}
