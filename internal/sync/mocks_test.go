package sync

import (
	"context"
	"errors"
	"sync"
	"time"

	"notebuddy/internal/domain"
)

// mockCache is an in-memory stand-in for the device-scoped cache. Setting
// available to false simulates the storage medium being down.
type mockCache struct {
	mu        sync.Mutex
	notes     map[string]*domain.Note
	edited    map[string]time.Time
	settings  map[string]domain.SessionSettings
	available bool

	saveCount int
}

func newMockCache() *mockCache {
	return &mockCache{
		notes:     make(map[string]*domain.Note),
		edited:    make(map[string]time.Time),
		settings:  make(map[string]domain.SessionSettings),
		available: true,
	}
}

func cacheKey(userID, noteID string) string {
	return userID + ":" + noteID
}

func (m *mockCache) Save(ctx context.Context, note *domain.Note) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[cacheKey(note.UserID, note.ID)] = note.Clone()
	m.edited[cacheKey(note.UserID, note.ID)] = time.Now()
	m.saveCount++
}

func (m *mockCache) Load(ctx context.Context, userID, noteID string) *domain.Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	if note, ok := m.notes[cacheKey(userID, noteID)]; ok {
		return note.Clone()
	}
	return nil
}

func (m *mockCache) LastEdited(ctx context.Context, userID, noteID string) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.edited[cacheKey(userID, noteID)]
}

func (m *mockCache) Delete(ctx context.Context, userID, noteID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.notes, cacheKey(userID, noteID))
	delete(m.edited, cacheKey(userID, noteID))
}

func (m *mockCache) Available(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

func (m *mockCache) SaveSettings(ctx context.Context, userID string, settings domain.SessionSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[userID] = settings
}

func (m *mockCache) LoadSettings(ctx context.Context, userID string) domain.SessionSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	if settings, ok := m.settings[userID]; ok {
		return settings
	}
	return domain.DefaultSessionSettings()
}

func (m *mockCache) setAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

// mockRemote is an in-memory remote store keyed by userID/noteID.
type mockRemote struct {
	mu    sync.Mutex
	notes map[string]*domain.Note

	saveErr      error
	loadErr      error
	saveCount    int
	saveAttempts int
}

func newMockRemote() *mockRemote {
	return &mockRemote{
		notes: make(map[string]*domain.Note),
	}
}

func remoteKey(userID, noteID string) string {
	return userID + "/" + noteID
}

func (m *mockRemote) Save(ctx context.Context, note *domain.Note) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveAttempts++
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.notes[remoteKey(note.UserID, note.ID)] = note.Clone()
	m.saveCount++
	return "mock://" + remoteKey(note.UserID, note.ID), nil
}

func (m *mockRemote) Load(ctx context.Context, userID, noteID string) (*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if note, ok := m.notes[remoteKey(userID, noteID)]; ok {
		return note.Clone(), nil
	}
	return nil, nil
}

func (m *mockRemote) ListForUser(ctx context.Context, userID string) ([]*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var notes []*domain.Note
	for key, note := range m.notes {
		if len(key) > len(userID) && key[:len(userID)+1] == userID+"/" {
			notes = append(notes, note.Clone())
		}
	}
	return notes, nil
}

func (m *mockRemote) Delete(ctx context.Context, userID, noteID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := remoteKey(userID, noteID)
	if _, ok := m.notes[key]; !ok {
		return false, nil
	}
	delete(m.notes, key)
	return true, nil
}

func (m *mockRemote) get(userID, noteID string) *domain.Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	if note, ok := m.notes[remoteKey(userID, noteID)]; ok {
		return note.Clone()
	}
	return nil
}

func (m *mockRemote) attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveAttempts
}

func (m *mockRemote) setSaveErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

var errRemoteDown = errors.New("remote store unreachable")

// recordingNotifier captures sync events for assertions.
type recordingNotifier struct {
	mu       sync.Mutex
	statuses []domain.SaveStatus
	updated  []string
	deleted  []string
}

func (n *recordingNotifier) SaveStatusChanged(userID, noteID string, status domain.SaveStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, status)
}

func (n *recordingNotifier) NoteUpdated(userID string, note *domain.Note) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updated = append(n.updated, note.ID)
}

func (n *recordingNotifier) NoteDeleted(userID, noteID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deleted = append(n.deleted, noteID)
}

func (n *recordingNotifier) lastStatus() domain.SaveStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.statuses) == 0 {
		return ""
	}
	return n.statuses[len(n.statuses)-1]
}

func noteAt(id, userID, content string, updatedAt time.Time) *domain.Note {
	return &domain.Note{
		ID:        id,
		Title:     "Note " + id,
		Content:   content,
		UserID:    userID,
		CreatedAt: updatedAt.Add(-time.Hour),
		UpdatedAt: updatedAt,
	}
}
