package sync

import (
	"notebuddy/internal/domain"
)

// Outcome is the reconciliation decision for one opened note.
type Outcome struct {
	// Note is set when the open can proceed without user mediation.
	Note *domain.Note
	// Escalate is set when both copies diverged and a human must choose;
	// Report then carries both versions for the dialog.
	Escalate bool
	Report   *domain.ConflictReport
}

// Policy decides whether a ConflictReport can be resolved automatically.
// Divergent content is never auto-resolved by timestamp: silently discarding
// one side is a data-loss risk, so any real divergence escalates.
type Policy struct{}

func NewPolicy() *Policy {
	return &Policy{}
}

func (p *Policy) Reconcile(report *domain.ConflictReport) (*Outcome, error) {
	if report.HasConflict {
		return &Outcome{Escalate: true, Report: report}, nil
	}

	note := report.LocalNote
	if note == nil {
		note = report.RemoteNote
	}
	if note == nil {
		return nil, domain.ErrNotFound
	}

	return &Outcome{Note: note}, nil
}
