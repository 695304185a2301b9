package identity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visiora/visiora-agent/pkg/storage"
)

func newTestStore(long, tab storage.Storage) (*Store, clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return New(long, tab, 0, clock, nil), clock
}

func TestVisitorID_StableWithinScope(t *testing.T) {
	long := storage.NewMemory()
	s, _ := newTestStore(long, storage.NewMemory())

	first := s.VisitorID()
	require.NotEmpty(t, first)
	assert.Equal(t, first, s.VisitorID())

	// a second store over the same scope sees the same visitor
	other, _ := newTestStore(long, storage.NewMemory())
	assert.Equal(t, first, other.VisitorID())

	stored, ok, err := long.GetItem(VisitorKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, first, stored)
}

func TestVisitorID_RegeneratedAfterClear(t *testing.T) {
	long := storage.NewMemory()
	s, _ := newTestStore(long, storage.NewMemory())

	first := s.VisitorID()
	require.NoError(t, long.Clear())
	second := s.VisitorID()

	assert.NotEqual(t, first, second)
}

func TestVisitorID_StorageDisabled(t *testing.T) {
	s, _ := newTestStore(storage.Disabled{}, storage.NewMemory())

	first := s.VisitorID()
	require.NotEmpty(t, first)
	// ephemeral id is stable for the page load
	assert.Equal(t, first, s.VisitorID())
}

func TestVisitorID_QuotaExceeded(t *testing.T) {
	s, _ := newTestStore(storage.NewMemoryWithQuota(1), storage.NewMemory())

	first := s.VisitorID()
	require.NotEmpty(t, first)
	assert.Equal(t, first, s.VisitorID())
}

func TestSessionID_ExtendedWithinTimeout(t *testing.T) {
	tab := storage.NewMemory()
	s, clock := newTestStore(storage.NewMemory(), tab)

	first := s.SessionID()
	clock.Advance(29 * time.Minute)
	assert.Equal(t, first, s.SessionID())

	// the read above extended lastActivity, so another 29 minutes is still fine
	clock.Advance(29 * time.Minute)
	assert.Equal(t, first, s.SessionID())

	raw, _, _ := tab.GetItem(SessionKey)
	var sess Session
	require.NoError(t, json.Unmarshal([]byte(raw), &sess))
	assert.Equal(t, first, sess.SessionID)
	assert.Equal(t, clock.Now().UnixMilli(), sess.LastActivity)
}

func TestSessionID_RenewedAfterTimeout(t *testing.T) {
	s, clock := newTestStore(storage.NewMemory(), storage.NewMemory())

	first := s.SessionID()
	start := s.SessionStart()
	clock.Advance(31 * time.Minute)
	second := s.SessionID()

	assert.NotEqual(t, first, second)
	assert.True(t, s.SessionStart().After(start))
	assert.Equal(t, clock.Now().UnixMilli(), s.SessionStart().UnixMilli())
}

func TestSessionID_ExactlyAtTimeoutExpires(t *testing.T) {
	s, clock := newTestStore(storage.NewMemory(), storage.NewMemory())

	first := s.SessionID()
	clock.Advance(DefaultSessionTimeout)
	assert.NotEqual(t, first, s.SessionID())
}

func TestSessionID_CorruptRecord(t *testing.T) {
	tab := storage.NewMemory()
	require.NoError(t, tab.SetItem(SessionKey, "{not json"))
	s, _ := newTestStore(storage.NewMemory(), tab)

	id := s.SessionID()
	require.NotEmpty(t, id)

	raw, _, _ := tab.GetItem(SessionKey)
	var sess Session
	require.NoError(t, json.Unmarshal([]byte(raw), &sess))
	assert.Equal(t, id, sess.SessionID)
}

func TestSessionID_StorageDisabled(t *testing.T) {
	s, clock := newTestStore(storage.NewMemory(), storage.Disabled{})

	first := s.SessionID()
	require.NotEmpty(t, first)
	clock.Advance(10 * time.Minute)
	assert.Equal(t, first, s.SessionID())

	// the ephemeral session still expires
	clock.Advance(DefaultSessionTimeout + time.Minute)
	assert.NotEqual(t, first, s.SessionID())
}

func TestSessionID_ResumesPersistedSession(t *testing.T) {
	tab := storage.NewMemory()
	s, clock := newTestStore(storage.NewMemory(), tab)
	first := s.SessionID()

	// a reload within the timeout picks the stored session up again
	clock.Advance(5 * time.Minute)
	reloaded := New(storage.NewMemory(), tab, 0, clock, nil)
	assert.Equal(t, first, reloaded.SessionID())
}
