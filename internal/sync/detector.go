package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"notebuddy/internal/domain"
	"notebuddy/internal/localcache"
)

// DefaultConflictTolerance absorbs clock skew between writers and debounce
// latency. A timestamp gap inside the window is never a conflict; the boundary
// itself (exactly the tolerance) is inside.
const DefaultConflictTolerance = 5 * time.Second

// RemoteStore is the slice of the remote note store the sync layer depends on.
type RemoteStore interface {
	Save(ctx context.Context, note *domain.Note) (string, error)
	Load(ctx context.Context, userID, noteID string) (*domain.Note, error)
	ListForUser(ctx context.Context, userID string) ([]*domain.Note, error)
	Delete(ctx context.Context, userID, noteID string) (bool, error)
}

// Detector classifies the relationship between the local cache entry and the
// remote document for a note. It reads each store exactly once per invocation
// and never mutates either.
type Detector struct {
	cache     localcache.Cache
	remote    RemoteStore
	tolerance time.Duration
	log       *zap.Logger
}

func NewDetector(cache localcache.Cache, remote RemoteStore, tolerance time.Duration, log *zap.Logger) *Detector {
	if tolerance <= 0 {
		tolerance = DefaultConflictTolerance
	}
	return &Detector{
		cache:     cache,
		remote:    remote,
		tolerance: tolerance,
		log:       log,
	}
}

// Check produces a ConflictReport for the note. Read errors fail open: the
// erroring side is treated as absent so whichever copy is reachable remains
// usable.
func (d *Detector) Check(ctx context.Context, userID, noteID string) *domain.ConflictReport {
	var localNote *domain.Note
	if d.cache.Available(ctx) {
		localNote = d.cache.Load(ctx, userID, noteID)
	}

	remoteNote, err := d.remote.Load(ctx, userID, noteID)
	if err != nil {
		d.log.Warn("remote read failed during conflict check, treating as absent",
			zap.String("note_id", noteID), zap.Error(err))
		remoteNote = nil
	}

	if localNote == nil || remoteNote == nil {
		report := &domain.ConflictReport{
			HasConflict: false,
			LocalNote:   localNote,
			RemoteNote:  remoteNote,
		}
		switch {
		case localNote != nil:
			report.NewerVersion = domain.NewerLocal
		case remoteNote != nil:
			report.NewerVersion = domain.NewerRemote
		}
		return report
	}

	diff := localNote.UpdatedAt.Sub(remoteNote.UpdatedAt)
	if diff < 0 {
		diff = -diff
	}

	// Identical content never conflicts, no matter the skew: redundant saves
	// must not trip the dialog.
	hasConflict := diff > d.tolerance && localNote.Content != remoteNote.Content

	newer := domain.NewerRemote
	if localNote.UpdatedAt.After(remoteNote.UpdatedAt) {
		newer = domain.NewerLocal
	}

	return &domain.ConflictReport{
		HasConflict:  hasConflict,
		LocalNote:    localNote,
		RemoteNote:   remoteNote,
		NewerVersion: newer,
	}
}
