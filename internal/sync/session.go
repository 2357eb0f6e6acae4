package sync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"notebuddy/internal/domain"
	"notebuddy/internal/localcache"
)

// Notifier pushes synchronization lifecycle events toward the UI. All calls
// are fire-and-forget; delivery failures never affect persistence.
type Notifier interface {
	SaveStatusChanged(userID, noteID string, status domain.SaveStatus)
	NoteUpdated(userID string, note *domain.Note)
	NoteDeleted(userID, noteID string)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) SaveStatusChanged(string, string, domain.SaveStatus) {}
func (NopNotifier) NoteUpdated(string, *domain.Note)                   {}
func (NopNotifier) NoteDeleted(string, string)                         {}

// Session is one active editing context for one (user, note). Every edit is
// written to the local cache immediately and to the remote store behind the
// trailing-edge debounce, so a burst of edits collapses into a single remote
// write carrying the latest state. There is at most one writer per session;
// cross-device races are caught by the detector at the next open, not here.
type Session struct {
	userID   string
	noteID   string
	cache    localcache.Cache
	remote   RemoteStore
	notifier Notifier
	debounce *Debouncer
	settings domain.SessionSettings
	log      *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	note   *domain.Note
	status domain.SaveStatus
	closed bool
}

func NewSession(
	note *domain.Note,
	isNew bool,
	settings domain.SessionSettings,
	cache localcache.Cache,
	remote RemoteStore,
	notifier Notifier,
	debounceInterval time.Duration,
	log *zap.Logger,
) *Session {
	status := domain.SaveStatusSaved
	if isNew {
		status = domain.SaveStatusNew
	}

	return &Session{
		userID:   note.UserID,
		noteID:   note.ID,
		cache:    cache,
		remote:   remote,
		notifier: notifier,
		debounce: NewDebouncer(debounceInterval),
		settings: settings,
		log:      log,
		now:      time.Now,
		note:     note.Clone(),
		status:   status,
	}
}

func (s *Session) NoteID() string { return s.noteID }

func (s *Session) Settings() domain.SessionSettings { return s.settings }

func (s *Session) Status() domain.SaveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Note() *domain.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.note.Clone()
}

// Edit applies a content change: local persistence is immediate, the remote
// write is deferred behind the debounce window.
func (s *Session) Edit(ctx context.Context, title, content string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if title != "" {
		s.note.Title = title
	}
	s.note.Content = content
	s.note.UpdatedAt = s.now()
	local := s.note.Clone()
	s.setStatusLocked(domain.SaveStatusUnsaved)
	s.mu.Unlock()

	if s.cache.Available(ctx) {
		s.cache.Save(ctx, local)
	}

	s.debounce.Arm(s.flushRemote)
}

// Flush forces the pending remote write now, bypassing the debounce window.
// A no-op when nothing is waiting.
func (s *Session) Flush() {
	s.debounce.Cancel()

	s.mu.Lock()
	pending := !s.closed && s.status == domain.SaveStatusUnsaved
	s.mu.Unlock()

	if pending {
		s.flushRemote()
	}
}

func (s *Session) flushRemote() {
	s.mu.Lock()
	if s.closed {
		// The view is gone; whatever state the timer captured is stale.
		s.mu.Unlock()
		return
	}
	snapshot := s.note.Clone()
	s.setStatusLocked(domain.SaveStatusSaving)
	s.mu.Unlock()

	_, err := s.remote.Save(context.Background(), snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if err != nil {
		// Local copy stands; the edit is not lost, only not yet remote.
		s.log.Warn("debounced remote save failed",
			zap.String("note_id", s.noteID), zap.Error(err))
		s.setStatusLocked(domain.SaveStatusUnsaved)
		return
	}
	s.setStatusLocked(domain.SaveStatusSaved)
	s.notifier.NoteUpdated(s.userID, snapshot)
}

// Close tears the session down, cancelling any pending debounced save. An
// in-flight save completes and its result is ignored.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.debounce.Cancel()
}

func (s *Session) setStatusLocked(status domain.SaveStatus) {
	if s.status == status {
		return
	}
	s.status = status
	s.notifier.SaveStatusChanged(s.userID, s.noteID, status)
}
