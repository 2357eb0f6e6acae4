package sync

import (
	"errors"
	"fmt"
	"time"

	"notebuddy/internal/domain"
)

type ResolutionState string

const (
	StateIdle       ResolutionState = "idle"
	StatePresenting ResolutionState = "presenting"
	StateMerging    ResolutionState = "merging"
	StateResolved   ResolutionState = "resolved"
	StateCancelled  ResolutionState = "cancelled"
)

var (
	ErrResolutionState    = errors.New("operation not valid in current resolution state")
	ErrMissingVersions    = errors.New("both versions are required to present a conflict")
	ErrEmptyMergedContent = errors.New("merged content is empty")
)

// Resolution is the manual conflict-resolution workflow:
//
//	Idle -> Presenting -> {UsingLocal | UsingRemote | Merging} -> Resolved | Cancelled
//
// UseLocal and UseRemote adopt the chosen version verbatim, keeping its
// updatedAt since it was already the chosen source of truth. A committed merge
// takes the edited buffer as content, the local title, and a fresh updatedAt.
type Resolution struct {
	state  ResolutionState
	local  *domain.Note
	remote *domain.Note
	merged string
	now    func() time.Time
}

func NewResolution() *Resolution {
	return &Resolution{
		state: StateIdle,
		now:   time.Now,
	}
}

func (r *Resolution) State() ResolutionState {
	return r.state
}

func (r *Resolution) Present(local, remote *domain.Note) error {
	if r.state != StateIdle {
		return fmt.Errorf("%w: %s", ErrResolutionState, r.state)
	}
	if local == nil || remote == nil {
		return ErrMissingVersions
	}

	r.local = local
	r.remote = remote
	r.state = StatePresenting
	return nil
}

func (r *Resolution) UseLocal() (*domain.Note, error) {
	if r.state != StatePresenting {
		return nil, fmt.Errorf("%w: %s", ErrResolutionState, r.state)
	}

	r.state = StateResolved
	return r.local.Clone(), nil
}

func (r *Resolution) UseRemote() (*domain.Note, error) {
	if r.state != StatePresenting {
		return nil, fmt.Errorf("%w: %s", ErrResolutionState, r.state)
	}

	r.state = StateResolved
	return r.remote.Clone(), nil
}

// StartMerge seeds an editable buffer with both versions under labeled headers
// and returns it.
func (r *Resolution) StartMerge() (string, error) {
	if r.state != StatePresenting {
		return "", fmt.Errorf("%w: %s", ErrResolutionState, r.state)
	}

	r.merged = fmt.Sprintf("# %s\n\n## Local Version (%s)\n%s\n\n## Remote Version (%s)\n%s\n",
		r.local.Title,
		r.local.UpdatedAt.Format(time.RFC3339),
		r.local.Content,
		r.remote.UpdatedAt.Format(time.RFC3339),
		r.remote.Content,
	)
	r.state = StateMerging
	return r.merged, nil
}

func (r *Resolution) SetMergedContent(content string) error {
	if r.state != StateMerging {
		return fmt.Errorf("%w: %s", ErrResolutionState, r.state)
	}
	r.merged = content
	return nil
}

func (r *Resolution) CommitMerge() (*domain.Note, error) {
	if r.state != StateMerging {
		return nil, fmt.Errorf("%w: %s", ErrResolutionState, r.state)
	}
	if r.merged == "" {
		return nil, ErrEmptyMergedContent
	}

	resolved := r.local.Clone()
	resolved.Content = r.merged
	resolved.UpdatedAt = r.now()

	r.state = StateResolved
	return resolved, nil
}

func (r *Resolution) Cancel() error {
	switch r.state {
	case StateResolved, StateCancelled:
		return fmt.Errorf("%w: %s", ErrResolutionState, r.state)
	}
	r.state = StateCancelled
	return nil
}
