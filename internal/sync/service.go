package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"notebuddy/internal/domain"
	"notebuddy/internal/localcache"
)

// ConflictEscalation crosses the service boundary when opening a note whose
// copies diverged; the handler turns it into a 409 carrying both versions.
type ConflictEscalation struct {
	Report *domain.ConflictReport
}

func (e *ConflictEscalation) Error() string {
	return "conflict detected between local and remote versions"
}

// ResolveResult is the outcome of a manual resolution commit. RemoteSaved is
// false when the remote write failed: the local write stands and the UI says
// "saved locally only".
type ResolveResult struct {
	Note        *domain.Note `json:"note"`
	RemoteSaved bool         `json:"remote_saved"`
}

// Service orchestrates the synchronization layer: conflict detection on open,
// manual resolution, CRUD against both stores, and editing sessions.
type Service struct {
	cache            localcache.Cache
	remote           RemoteStore
	detector         *Detector
	policy           *Policy
	notifier         Notifier
	debounceInterval time.Duration
	log              *zap.Logger
	now              func() time.Time

	sessionMu sync.Mutex
	sessions  map[string]*Session
}

func NewService(
	cache localcache.Cache,
	remote RemoteStore,
	detector *Detector,
	notifier Notifier,
	debounceInterval time.Duration,
	log *zap.Logger,
) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		cache:            cache,
		remote:           remote,
		detector:         detector,
		policy:           NewPolicy(),
		notifier:         notifier,
		debounceInterval: debounceInterval,
		log:              log,
		now:              time.Now,
		sessions:         make(map[string]*Session),
	}
}

func (s *Service) Create(ctx context.Context, userID string, req *domain.CreateNoteRequest) (*domain.Note, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	title := req.Title
	if title == "" {
		title = domain.DefaultTitle
	}

	now := s.now()
	note := &domain.Note{
		ID:         uuid.New().String(),
		Title:      title,
		Content:    req.Content,
		UserID:     userID,
		CreatedAt:  now,
		UpdatedAt:  now,
		IsFavorite: false,
	}

	if _, err := s.remote.Save(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	if s.cache.Available(ctx) {
		s.cache.Save(ctx, note)
	}

	s.seedSession(ctx, note)
	return note, nil
}

// Open runs conflict detection once and applies the reconciliation policy.
// Divergence comes back as a *ConflictEscalation; otherwise the surviving copy
// is returned and refreshed into the local cache.
func (s *Service) Open(ctx context.Context, userID, noteID string) (*domain.Note, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	report := s.detector.Check(ctx, userID, noteID)

	outcome, err := s.policy.Reconcile(report)
	if err != nil {
		return nil, err
	}
	if outcome.Escalate {
		return nil, &ConflictEscalation{Report: outcome.Report}
	}

	if s.cache.Available(ctx) {
		s.cache.Save(ctx, outcome.Note)
	}

	return outcome.Note, nil
}

// Resolve drives the manual resolution workflow for a diverged note and writes
// the resolved version to both stores. When the two copies no longer diverge
// by the time the user answers the dialog, the surviving copy wins without a
// second dialog.
func (s *Service) Resolve(ctx context.Context, userID, noteID string, req *domain.ResolveConflictRequest) (*ResolveResult, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	report := s.detector.Check(ctx, userID, noteID)
	if report.LocalNote == nil && report.RemoteNote == nil {
		return nil, domain.ErrNotFound
	}

	var resolved *domain.Note
	if report.LocalNote == nil || report.RemoteNote == nil {
		if resolved = report.LocalNote; resolved == nil {
			resolved = report.RemoteNote
		}
	} else {
		workflow := NewResolution()
		workflow.now = s.now
		if err := workflow.Present(report.LocalNote, report.RemoteNote); err != nil {
			return nil, err
		}

		var err error
		switch req.Choice {
		case domain.ResolutionUseLocal:
			resolved, err = workflow.UseLocal()
		case domain.ResolutionUseRemote:
			resolved, err = workflow.UseRemote()
		case domain.ResolutionMerge:
			if _, err = workflow.StartMerge(); err != nil {
				return nil, err
			}
			if req.MergedContent != "" {
				if err = workflow.SetMergedContent(req.MergedContent); err != nil {
					return nil, err
				}
			}
			resolved, err = workflow.CommitMerge()
		default:
			return nil, fmt.Errorf("unknown resolution choice: %s", req.Choice)
		}
		if err != nil {
			return nil, err
		}
	}

	if s.cache.Available(ctx) {
		s.cache.Save(ctx, resolved)
	}

	result := &ResolveResult{Note: resolved, RemoteSaved: true}
	if _, err := s.remote.Save(ctx, resolved); err != nil {
		// No automatic retry here; the debounced save path owns that.
		s.log.Warn("remote write failed during resolution commit",
			zap.String("note_id", noteID), zap.Error(err))
		result.RemoteSaved = false
	}

	s.notifier.NoteUpdated(userID, resolved)
	return result, nil
}

// Update is the explicit, non-debounced save path.
func (s *Service) Update(ctx context.Context, userID, noteID string, req *domain.UpdateNoteRequest) (*domain.Note, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	note, err := s.loadExisting(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		note.Title = *req.Title
		if note.Title == "" {
			note.Title = domain.DefaultTitle
		}
	}
	if req.Content != nil {
		note.Content = *req.Content
	}
	note.UpdatedAt = s.now()

	if _, err := s.remote.Save(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}

	if s.cache.Available(ctx) {
		s.cache.Save(ctx, note)
	}

	s.notifier.NoteUpdated(userID, note)
	return note, nil
}

func (s *Service) ToggleFavorite(ctx context.Context, userID, noteID string) (*domain.Note, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	note, err := s.loadExisting(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}

	note.IsFavorite = !note.IsFavorite

	if _, err := s.remote.Save(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to toggle favorite: %w", err)
	}

	if s.cache.Available(ctx) {
		s.cache.Save(ctx, note)
	}

	return note, nil
}

// MarkFileContext flags that at least one extracted-file context is attached.
func (s *Service) MarkFileContext(ctx context.Context, userID, noteID string, has bool) error {
	note, err := s.loadExisting(ctx, userID, noteID)
	if err != nil {
		return err
	}

	note.HasFileContext = has
	if _, err := s.remote.Save(ctx, note); err != nil {
		return fmt.Errorf("failed to update file context flag: %w", err)
	}
	if s.cache.Available(ctx) {
		s.cache.Save(ctx, note)
	}
	return nil
}

func (s *Service) List(ctx context.Context, userID string) ([]*domain.Note, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.remote.ListForUser(ctx, userID)
}

// Delete removes both copies. Local deletion always succeeds (or the medium is
// unavailable and there is nothing to remove); a remote failure is reported to
// the caller but does not resurrect the local copy.
func (s *Service) Delete(ctx context.Context, userID, noteID string) (bool, error) {
	if userID == "" {
		return false, domain.ErrUnauthorized
	}

	s.closeSession(userID, noteID)

	if s.cache.Available(ctx) {
		s.cache.Delete(ctx, userID, noteID)
	}

	deleted, err := s.remote.Delete(ctx, userID, noteID)
	if err != nil {
		s.log.Warn("remote delete failed; local copy already removed",
			zap.String("note_id", noteID), zap.Error(err))
		return false, fmt.Errorf("remote delete failed: %w", err)
	}

	s.notifier.NoteDeleted(userID, noteID)
	return deleted, nil
}

// Edit routes a content-change event into the note's editing session, creating
// the session on first touch.
func (s *Service) Edit(ctx context.Context, userID, noteID, title, content string) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}

	session, err := s.session(ctx, userID, noteID)
	if err != nil {
		return err
	}

	session.Edit(ctx, title, content)
	return nil
}

// CloseSession flushes any pending debounced save and tears down the note's
// editing session.
func (s *Service) CloseSession(userID, noteID string) {
	key := userID + ":" + noteID

	s.sessionMu.Lock()
	session, ok := s.sessions[key]
	if ok {
		delete(s.sessions, key)
	}
	s.sessionMu.Unlock()

	if ok {
		session.Flush()
		session.Close()
	}
}

// CloseSessions tears down every editing session the user has open. Pending
// debounced saves are flushed first so a disconnect never drops an edit.
func (s *Service) CloseSessions(userID string) {
	s.sessionMu.Lock()
	prefix := userID + ":"
	var closing []*Session
	for key, session := range s.sessions {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			closing = append(closing, session)
			delete(s.sessions, key)
		}
	}
	s.sessionMu.Unlock()

	for _, session := range closing {
		session.Flush()
		session.Close()
	}
}

func (s *Service) Settings(ctx context.Context, userID string) (domain.SessionSettings, error) {
	if userID == "" {
		return domain.SessionSettings{}, domain.ErrUnauthorized
	}
	if !s.cache.Available(ctx) {
		return domain.DefaultSessionSettings(), nil
	}
	return s.cache.LoadSettings(ctx, userID), nil
}

func (s *Service) SaveSettings(ctx context.Context, userID string, settings domain.SessionSettings) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}
	if !s.cache.Available(ctx) {
		return domain.ErrStoreUnavailable
	}
	s.cache.SaveSettings(ctx, userID, settings)
	return nil
}

func (s *Service) session(ctx context.Context, userID, noteID string) (*Session, error) {
	key := userID + ":" + noteID

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if session, ok := s.sessions[key]; ok {
		return session, nil
	}

	note, err := s.loadExisting(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}

	settings := domain.DefaultSessionSettings()
	if s.cache.Available(ctx) {
		settings = s.cache.LoadSettings(ctx, userID)
	}

	session := NewSession(note, false, settings, s.cache, s.remote, s.notifier, s.debounceInterval, s.log)
	s.sessions[key] = session
	return session, nil
}

// seedSession opens the editing session for a freshly created note so its
// first status broadcast reports "new" rather than "saved".
func (s *Service) seedSession(ctx context.Context, note *domain.Note) {
	settings := domain.DefaultSessionSettings()
	if s.cache.Available(ctx) {
		settings = s.cache.LoadSettings(ctx, note.UserID)
	}

	session := NewSession(note, true, settings, s.cache, s.remote, s.notifier, s.debounceInterval, s.log)

	s.sessionMu.Lock()
	s.sessions[note.UserID+":"+note.ID] = session
	s.sessionMu.Unlock()
}

func (s *Service) closeSession(userID, noteID string) {
	key := userID + ":" + noteID

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if session, ok := s.sessions[key]; ok {
		session.Close()
		delete(s.sessions, key)
	}
}

// loadExisting prefers the local copy during an active session and falls back
// to the remote store.
func (s *Service) loadExisting(ctx context.Context, userID, noteID string) (*domain.Note, error) {
	if s.cache.Available(ctx) {
		if note := s.cache.Load(ctx, userID, noteID); note != nil {
			if note.UserID != userID {
				return nil, domain.ErrUnauthorized
			}
			return note, nil
		}
	}

	note, err := s.remote.Load(ctx, userID, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to load note: %w", err)
	}
	if note == nil {
		return nil, domain.ErrNotFound
	}

	return note, nil
}
