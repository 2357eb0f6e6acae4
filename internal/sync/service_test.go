package sync

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"notebuddy/internal/domain"
)

func newTestService(cache *mockCache, remote *mockRemote, notifier Notifier) *Service {
	detector := NewDetector(cache, remote, DefaultConflictTolerance, zap.NewNop())
	return NewService(cache, remote, detector, notifier, 20*time.Millisecond, zap.NewNop())
}

func TestService_CreateWritesBothStores(t *testing.T) {
	cache := newMockCache()
	remote := newMockRemote()
	svc := newTestService(cache, remote, nil)
	ctx := context.Background()

	note, err := svc.Create(ctx, "u1", &domain.CreateNoteRequest{Title: "first", Content: "hello"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if note.ID == "" {
		t.Fatal("expected a generated note ID")
	}

	if remote.get("u1", note.ID) == nil {
		t.Error("expected the note in the remote store")
	}
	if cache.Load(ctx, "u1", note.ID) == nil {
		t.Error("expected the note in the local cache")
	}
}

func TestService_CreateDefaultsTitle(t *testing.T) {
	svc := newTestService(newMockCache(), newMockRemote(), nil)

	note, err := svc.Create(context.Background(), "u1", &domain.CreateNoteRequest{Content: "untitled body"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if note.Title != domain.DefaultTitle {
		t.Errorf("title = %q, want %q", note.Title, domain.DefaultTitle)
	}
}

func TestService_CreateFailsWhenRemoteFails(t *testing.T) {
	cache := newMockCache()
	remote := newMockRemote()
	remote.setSaveErr(errRemoteDown)
	svc := newTestService(cache, remote, nil)

	if _, err := svc.Create(context.Background(), "u1", &domain.CreateNoteRequest{Title: "t"}); err == nil {
		t.Fatal("expected create to fail without the authoritative write")
	}
}

func TestService_CreateSeedsSessionWithNewStatus(t *testing.T) {
	cache := newMockCache()
	remote := newMockRemote()
	svc := newTestService(cache, remote, nil)
	ctx := context.Background()

	note, err := svc.Create(ctx, "u1", &domain.CreateNoteRequest{Title: "fresh"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	svc.sessionMu.Lock()
	session := svc.sessions["u1:"+note.ID]
	svc.sessionMu.Unlock()
	if session == nil {
		t.Fatal("expected an editing session right after create")
	}
	if session.Status() != domain.SaveStatusNew {
		t.Errorf("status = %q, want new before the first edit", session.Status())
	}

	if err := svc.Edit(ctx, "u1", note.ID, "", "first body"); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	waitForStatus(t, session, domain.SaveStatusSaved)
}

func TestService_OpenCleanNote(t *testing.T) {
	cache := newMockCache()
	remote := newMockRemote()
	svc := newTestService(cache, remote, nil)
	ctx := context.Background()

	remote.Save(ctx, noteAt("n1", "u1", "published", baseTime))

	note, err := svc.Open(ctx, "u1", "n1")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if note.Content != "published" {
		t.Errorf("content = %q, want the remote copy", note.Content)
	}
	if cache.Load(ctx, "u1", "n1") == nil {
		t.Error("open should refresh the local cache")
	}
}

func TestService_OpenEscalatesDivergence(t *testing.T) {
	cache := newMockCache()
	remote := newMockRemote()
	svc := newTestService(cache, remote, nil)
	ctx := context.Background()

	cache.Save(ctx, noteAt("n1", "u1", "local edit", baseTime.Add(10*time.Second)))
	remote.Save(ctx, noteAt("n1", "u1", "remote edit", baseTime))

	_, err := svc.Open(ctx, "u1", "n1")

	var escalation *ConflictEscalation
	if !errors.As(err, &escalation) {
		t.Fatalf("expected a ConflictEscalation, got %v", err)
	}
	if escalation.Report.LocalNote == nil || escalation.Report.RemoteNote == nil {
		t.Error("the escalation must carry both versions")
	}
	if escalation.Report.NewerVersion != domain.NewerLocal {
		t.Errorf("newer = %q, want local", escalation.Report.NewerVersion)
	}
}

// A cache shared by many users must never serve one user's copy to another:
// the wrong-user lookup behaves exactly like an absent note.
func TestService_OpenScopedToOwningUser(t *testing.T) {
	cache := newMockCache()
	remote := newMockRemote()
	svc := newTestService(cache, remote, nil)
	ctx := context.Background()

	cache.Save(ctx, noteAt("shared-id", "userA", "private draft", baseTime))

	if _, err := svc.Open(ctx, "userB", "shared-id"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("open: expected ErrNotFound for another user's note, got %v", err)
	}

	if _, err := svc.Resolve(ctx, "userB", "shared-id", &domain.ResolveConflictRequest{
		Choice: domain.ResolutionUseLocal,
	}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("resolve: expected ErrNotFound for another user's note, got %v", err)
	}

	if got, err := svc.Open(ctx, "userA", "shared-id"); err != nil || got.Content != "private draft" {
		t.Errorf("owner open = %v, %v; want the cached draft", got, err)
	}
}

func TestService_OpenMissingNote(t *testing.T) {
	svc := newTestService(newMockCache(), newMockRemote(), nil)

	if _, err := svc.Open(context.Background(), "u1", "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func divergedFixture(t *testing.T) (*mockCache, *mockRemote, *Service) {
	t.Helper()
	cache := newMockCache()
	remote := newMockRemote()
	svc := newTestService(cache, remote, nil)
	ctx := context.Background()

	cache.Save(ctx, noteAt("n1", "u1", "local edit", baseTime.Add(10*time.Second)))
	remote.Save(ctx, noteAt("n1", "u1", "remote edit", baseTime))
	return cache, remote, svc
}

func TestService_ResolveUseLocal(t *testing.T) {
	cache, remote, svc := divergedFixture(t)
	ctx := context.Background()

	result, err := svc.Resolve(ctx, "u1", "n1", &domain.ResolveConflictRequest{
		Choice: domain.ResolutionUseLocal,
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if result.Note.Content != "local edit" {
		t.Errorf("content = %q, want the local version", result.Note.Content)
	}
	if !result.RemoteSaved {
		t.Error("expected the remote write to succeed")
	}

	// Both stores hold the resolved version afterwards.
	if got := remote.get("u1", "n1"); got == nil || got.Content != "local edit" {
		t.Error("remote store does not hold the resolved version")
	}
	if got := cache.Load(ctx, "u1", "n1"); got == nil || got.Content != "local edit" {
		t.Error("local cache does not hold the resolved version")
	}
}

func TestService_ResolveUseRemote(t *testing.T) {
	_, _, svc := divergedFixture(t)

	result, err := svc.Resolve(context.Background(), "u1", "n1", &domain.ResolveConflictRequest{
		Choice: domain.ResolutionUseRemote,
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if result.Note.Content != "remote edit" {
		t.Errorf("content = %q, want the remote version", result.Note.Content)
	}
	if !result.Note.UpdatedAt.Equal(baseTime) {
		t.Errorf("updatedAt = %v, want the remote version's own timestamp", result.Note.UpdatedAt)
	}
}

func TestService_ResolveMerge(t *testing.T) {
	cache, remote, svc := divergedFixture(t)
	ctx := context.Background()

	result, err := svc.Resolve(ctx, "u1", "n1", &domain.ResolveConflictRequest{
		Choice:        domain.ResolutionMerge,
		MergedContent: "combined by hand",
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if result.Note.Content != "combined by hand" {
		t.Errorf("content = %q, want the merged buffer", result.Note.Content)
	}
	if !result.Note.UpdatedAt.After(baseTime.Add(10 * time.Second)) {
		t.Error("a committed merge must carry a fresh updatedAt")
	}
	if got := remote.get("u1", "n1"); got == nil || got.Content != "combined by hand" {
		t.Error("remote store does not hold the merged version")
	}
	if got := cache.Load(ctx, "u1", "n1"); got == nil || got.Content != "combined by hand" {
		t.Error("local cache does not hold the merged version")
	}
}

func TestService_ResolveMergeWithoutContentUsesSeed(t *testing.T) {
	_, _, svc := divergedFixture(t)

	// Committing the untouched seed keeps both labeled versions.
	result, err := svc.Resolve(context.Background(), "u1", "n1", &domain.ResolveConflictRequest{
		Choice: domain.ResolutionMerge,
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	for _, want := range []string{"Local Version", "Remote Version", "local edit", "remote edit"} {
		if !strings.Contains(result.Note.Content, want) {
			t.Errorf("merged content missing %q", want)
		}
	}
}

func TestService_ResolveRemoteFailureSavesLocallyOnly(t *testing.T) {
	cache, remote, svc := divergedFixture(t)
	remote.setSaveErr(errRemoteDown)
	ctx := context.Background()

	result, err := svc.Resolve(ctx, "u1", "n1", &domain.ResolveConflictRequest{
		Choice: domain.ResolutionUseLocal,
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if result.RemoteSaved {
		t.Error("expected RemoteSaved false when the remote write fails")
	}
	if got := cache.Load(ctx, "u1", "n1"); got == nil || got.Content != "local edit" {
		t.Error("the local write must stand despite the remote failure")
	}
}

func TestService_ResolveAfterOneSideVanished(t *testing.T) {
	cache := newMockCache()
	remote := newMockRemote()
	svc := newTestService(cache, remote, nil)
	ctx := context.Background()

	// Only the remote copy remains by the time the user answers the dialog.
	remote.Save(ctx, noteAt("n1", "u1", "survivor", baseTime))

	result, err := svc.Resolve(ctx, "u1", "n1", &domain.ResolveConflictRequest{
		Choice: domain.ResolutionUseLocal,
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if result.Note.Content != "survivor" {
		t.Errorf("content = %q, want the surviving copy regardless of choice", result.Note.Content)
	}
}

func TestService_UpdateExplicitSave(t *testing.T) {
	cache := newMockCache()
	remote := newMockRemote()
	notifier := &recordingNotifier{}
	svc := newTestService(cache, remote, notifier)
	ctx := context.Background()

	remote.Save(ctx, noteAt("n1", "u1", "old", baseTime))

	title := "renamed"
	content := "new body"
	note, err := svc.Update(ctx, "u1", "n1", &domain.UpdateNoteRequest{Title: &title, Content: &content})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if note.Title != "renamed" || note.Content != "new body" {
		t.Errorf("got %q/%q after update", note.Title, note.Content)
	}
	if !note.UpdatedAt.After(baseTime) {
		t.Error("update must advance updatedAt")
	}
	if len(notifier.updated) != 1 || notifier.updated[0] != "n1" {
		t.Error("expected a note_update broadcast")
	}
}

func TestService_UpdateMissingNote(t *testing.T) {
	svc := newTestService(newMockCache(), newMockRemote(), nil)

	content := "x"
	_, err := svc.Update(context.Background(), "u1", "ghost", &domain.UpdateNoteRequest{Content: &content})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_ToggleFavorite(t *testing.T) {
	cache := newMockCache()
	remote := newMockRemote()
	svc := newTestService(cache, remote, nil)
	ctx := context.Background()

	remote.Save(ctx, noteAt("n1", "u1", "body", baseTime))

	note, err := svc.ToggleFavorite(ctx, "u1", "n1")
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if !note.IsFavorite {
		t.Error("expected favorite on after first toggle")
	}

	note, err = svc.ToggleFavorite(ctx, "u1", "n1")
	if err != nil {
		t.Fatalf("second toggle failed: %v", err)
	}
	if note.IsFavorite {
		t.Error("expected favorite off after second toggle")
	}
}

func TestService_DeleteRemovesBothCopies(t *testing.T) {
	cache := newMockCache()
	remote := newMockRemote()
	notifier := &recordingNotifier{}
	svc := newTestService(cache, remote, notifier)
	ctx := context.Background()

	cache.Save(ctx, noteAt("n1", "u1", "body", baseTime))
	remote.Save(ctx, noteAt("n1", "u1", "body", baseTime))

	deleted, err := svc.Delete(ctx, "u1", "n1")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if !deleted {
		t.Error("expected delete to report an existing note")
	}
	if cache.Load(ctx, "u1", "n1") != nil {
		t.Error("local copy survived delete")
	}
	if remote.get("u1", "n1") != nil {
		t.Error("remote copy survived delete")
	}
	if len(notifier.deleted) != 1 {
		t.Error("expected a note_delete broadcast")
	}
}

func TestService_DeleteIdempotent(t *testing.T) {
	svc := newTestService(newMockCache(), newMockRemote(), nil)

	deleted, err := svc.Delete(context.Background(), "u1", "never-existed")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if deleted {
		t.Error("deleting an absent note should report absence, not fail")
	}
}

func TestService_EditRunsThroughSession(t *testing.T) {
	cache := newMockCache()
	remote := newMockRemote()
	svc := newTestService(cache, remote, nil)
	ctx := context.Background()

	remote.Save(ctx, noteAt("n1", "u1", "original", baseTime))

	for _, content := range []string{"a", "ab", "abc"} {
		if err := svc.Edit(ctx, "u1", "n1", "", content); err != nil {
			t.Fatalf("edit failed: %v", err)
		}
	}

	if got := cache.Load(ctx, "u1", "n1"); got == nil || got.Content != "abc" {
		t.Fatal("expected the latest edit in the local cache immediately")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := remote.get("u1", "n1"); got != nil && got.Content == "abc" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := remote.get("u1", "n1"); got == nil || got.Content != "abc" {
		t.Fatal("expected the debounced remote write to land")
	}
}

func TestService_CloseSessionFlushesPendingEdit(t *testing.T) {
	cache := newMockCache()
	remote := newMockRemote()
	svc := newTestService(cache, remote, nil)
	ctx := context.Background()

	remote.Save(ctx, noteAt("n1", "u1", "original", baseTime))

	if err := svc.Edit(ctx, "u1", "n1", "", "pending edit"); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	svc.CloseSession("u1", "n1")

	if got := remote.get("u1", "n1"); got == nil || got.Content != "pending edit" {
		t.Error("closing a session must flush its pending write")
	}
}

func TestService_CloseSessionsFlushesAllForUser(t *testing.T) {
	cache := newMockCache()
	remote := newMockRemote()
	svc := newTestService(cache, remote, nil)
	ctx := context.Background()

	remote.Save(ctx, noteAt("n1", "u1", "one", baseTime))
	remote.Save(ctx, noteAt("n2", "u1", "two", baseTime))

	if err := svc.Edit(ctx, "u1", "n1", "", "edit one"); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if err := svc.Edit(ctx, "u1", "n2", "", "edit two"); err != nil {
		t.Fatalf("edit failed: %v", err)
	}

	svc.CloseSessions("u1")

	if got := remote.get("u1", "n1"); got == nil || got.Content != "edit one" {
		t.Error("first session's pending write lost on disconnect")
	}
	if got := remote.get("u1", "n2"); got == nil || got.Content != "edit two" {
		t.Error("second session's pending write lost on disconnect")
	}
}

// End to end: a burst of edits collapses into one remote write, a second
// device's later write triggers the conflict dialog at reopen, and choosing
// the server version lands it in both stores.
func TestService_SecondDeviceConflictLifecycle(t *testing.T) {
	cache := newMockCache()
	remote := newMockRemote()
	svc := newTestService(cache, remote, nil)
	ctx := context.Background()

	note, err := svc.Create(ctx, "u1", &domain.CreateNoteRequest{Title: "Test", Content: "A"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	writesAfterCreate := remote.attempts()

	if err := svc.Edit(ctx, "u1", note.ID, "", "B"); err != nil {
		t.Fatalf("edit failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for remote.attempts() == writesAfterCreate && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := remote.attempts() - writesAfterCreate; got != 1 {
		t.Fatalf("remote writes for the edit burst = %d, want 1", got)
	}
	if saved := remote.get("u1", note.ID); saved == nil || saved.Content != "B" {
		t.Fatalf("remote holds %+v, want content B", saved)
	}

	// A second device writes a later version straight to the remote store.
	secondDevice := remote.get("u1", note.ID)
	secondDevice.Content = "C"
	secondDevice.UpdatedAt = secondDevice.UpdatedAt.Add(10 * time.Second)
	if _, err := remote.Save(ctx, secondDevice); err != nil {
		t.Fatalf("second device save failed: %v", err)
	}

	_, err = svc.Open(ctx, "u1", note.ID)
	var escalation *ConflictEscalation
	if !errors.As(err, &escalation) {
		t.Fatalf("expected a ConflictEscalation at reopen, got %v", err)
	}
	if escalation.Report.NewerVersion != domain.NewerRemote {
		t.Errorf("newer = %q, want remote", escalation.Report.NewerVersion)
	}

	result, err := svc.Resolve(ctx, "u1", note.ID, &domain.ResolveConflictRequest{
		Choice: domain.ResolutionUseRemote,
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if result.Note.Content != "C" {
		t.Errorf("resolved content = %q, want C", result.Note.Content)
	}
	if got := cache.Load(ctx, "u1", note.ID); got == nil || got.Content != "C" {
		t.Error("local cache does not hold the server version after resolution")
	}
	if got := remote.get("u1", note.ID); got == nil || got.Content != "C" {
		t.Error("remote store does not hold the server version after resolution")
	}
}

func TestService_SettingsFallBackWhenCacheDown(t *testing.T) {
	cache := newMockCache()
	cache.setAvailable(false)
	svc := newTestService(cache, newMockRemote(), nil)

	settings, err := svc.Settings(context.Background(), "u1")
	if err != nil {
		t.Fatalf("settings failed: %v", err)
	}
	if !settings.PredictiveTypingEnabled || !settings.SummaryEnabled {
		t.Error("expected defaults while the cache is down")
	}

	err = svc.SaveSettings(context.Background(), "u1", domain.SessionSettings{})
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestService_UnauthorizedWithoutUser(t *testing.T) {
	svc := newTestService(newMockCache(), newMockRemote(), nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "", &domain.CreateNoteRequest{}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("create: expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.Open(ctx, "", "n1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("open: expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.List(ctx, ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("list: expected ErrUnauthorized, got %v", err)
	}
}
