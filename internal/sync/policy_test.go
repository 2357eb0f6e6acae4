package sync

import (
	"errors"
	"testing"
	"time"

	"notebuddy/internal/domain"
)

func TestPolicy_EscalatesRealDivergence(t *testing.T) {
	local := noteAt("n1", "u1", "local", baseTime.Add(10*time.Second))
	remote := noteAt("n1", "u1", "remote", baseTime)

	outcome, err := NewPolicy().Reconcile(&domain.ConflictReport{
		HasConflict:  true,
		LocalNote:    local,
		RemoteNote:   remote,
		NewerVersion: domain.NewerLocal,
	})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	if !outcome.Escalate {
		t.Fatal("divergent content must escalate, never auto-resolve by timestamp")
	}
	if outcome.Note != nil {
		t.Error("an escalated outcome must not pick a note")
	}
	if outcome.Report == nil || outcome.Report.LocalNote != local || outcome.Report.RemoteNote != remote {
		t.Error("the escalation must carry both versions")
	}
}

func TestPolicy_NoConflictUsesLocal(t *testing.T) {
	local := noteAt("n1", "u1", "same", baseTime)
	remote := noteAt("n1", "u1", "same", baseTime)

	outcome, err := NewPolicy().Reconcile(&domain.ConflictReport{
		LocalNote:  local,
		RemoteNote: remote,
	})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	if outcome.Escalate {
		t.Fatal("a clean report must not escalate")
	}
	if outcome.Note != local {
		t.Error("expected the local copy when both sides agree")
	}
}

func TestPolicy_OneSidedUsesSurvivor(t *testing.T) {
	remote := noteAt("n1", "u1", "published", baseTime)

	outcome, err := NewPolicy().Reconcile(&domain.ConflictReport{RemoteNote: remote})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if outcome.Note != remote {
		t.Error("expected the remote copy when it is the only one")
	}
}

func TestPolicy_NeitherSideIsNotFound(t *testing.T) {
	_, err := NewPolicy().Reconcile(&domain.ConflictReport{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
