// Package identity keeps the visitor and session identifiers.
//
// The visitor id lives in the long-lived scope and never expires. The session
// lives in the tab scope and is valid while now - lastActivity is below the
// timeout; every read of a valid session extends it.
//
// Storage failures never escape. They are logged at debug level and the
// store keeps an ephemeral identity in memory for the rest of the page load.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/visiora/visiora-agent/pkg/storage"
)

// Storage keys.
const (
	VisitorKey = "visiora_visitor_id"
	SessionKey = "visiora_session"
)

// DefaultSessionTimeout is the idle period after which a session expires.
const DefaultSessionTimeout = 30 * time.Minute

// Session is the persisted session record. Times are epoch milliseconds.
type Session struct {
	SessionID    string `json:"sessionId"`
	StartTime    int64  `json:"startTime"`
	LastActivity int64  `json:"lastActivity"`
}

// Store hands out visitor and session identifiers.
// It is not safe for concurrent use; the tracker confines it to its loop.
type Store struct {
	long    storage.Storage
	tab     storage.Storage
	timeout time.Duration
	clock   clockwork.Clock
	logger  *slog.Logger

	// ephemeral fallbacks used once a scope has failed
	visitor string
	session *Session
}

// New creates a Store over the long-lived and tab-scoped storage.
// A zero timeout means DefaultSessionTimeout.
func New(long, tab storage.Storage, timeout time.Duration, clock clockwork.Clock, logger *slog.Logger) *Store {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{long: long, tab: tab, timeout: timeout, clock: clock, logger: logger}
}

// VisitorID returns the durable visitor id, creating and persisting one on
// first access.
func (s *Store) VisitorID() string {
	if s.visitor != "" {
		return s.visitor
	}

	id, ok, err := s.long.GetItem(VisitorKey)
	if err != nil {
		s.logger.Debug("visitor id read failed, using ephemeral id", slog.String("error", err.Error()))
		s.visitor = newID()
		return s.visitor
	}
	if ok && id != "" {
		return id
	}

	id = newID()
	if err := s.long.SetItem(VisitorKey, id); err != nil {
		s.logger.Debug("visitor id write failed, using ephemeral id", slog.String("error", err.Error()))
		s.visitor = id
	}
	return id
}

// SessionID returns the current session id, renewing the session when it
// has been idle for longer than the timeout.
func (s *Store) SessionID() string {
	return s.current().SessionID
}

// SessionStart returns when the current session began.
func (s *Store) SessionStart() time.Time {
	return time.UnixMilli(s.current().StartTime)
}

func (s *Store) current() Session {
	now := s.clock.Now()

	if s.session != nil {
		s.session = s.refresh(s.session, now)
		return *s.session
	}

	stored, err := s.loadSession()
	if err != nil {
		if errors.Is(err, errCorrupt) {
			s.logger.Debug("discarding corrupt session", slog.String("error", err.Error()))
		} else {
			s.logger.Debug("session read failed, using ephemeral session", slog.String("error", err.Error()))
			s.session = s.refresh(nil, now)
			return *s.session
		}
	}

	sess := s.refresh(stored, now)
	if err := s.saveSession(sess); err != nil {
		s.logger.Debug("session write failed, using ephemeral session", slog.String("error", err.Error()))
		s.session = sess
	}
	return *sess
}

// refresh extends sess when still valid or mints a new one.
func (s *Store) refresh(sess *Session, now time.Time) *Session {
	nowMs := now.UnixMilli()
	if sess != nil && sess.SessionID != "" && nowMs-sess.LastActivity < s.timeout.Milliseconds() {
		next := *sess
		next.LastActivity = nowMs
		return &next
	}
	return &Session{SessionID: newID(), StartTime: nowMs, LastActivity: nowMs}
}

var errCorrupt = errors.New("corrupt session record")

func (s *Store) loadSession() (*Session, error) {
	raw, ok, err := s.tab.GetItem(SessionKey)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	return &sess, nil
}

func (s *Store) saveSession(sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.tab.SetItem(SessionKey, string(data))
}

var fallbackSeq atomic.Uint64

// newID returns a random UUID v4, falling back to a time-seeded token when
// the system entropy source fails.
func newID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%x-%x", time.Now().UnixNano(), fallbackSeq.Add(1))
	}
	return id.String()
}
