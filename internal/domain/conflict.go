package domain

// NewerSide names which copy of a note carries the greater updated-at
// timestamp in a ConflictReport.
type NewerSide string

const (
	NewerLocal  NewerSide = "local"
	NewerRemote NewerSide = "remote"
)

// ConflictReport is the ephemeral result of comparing the local cache entry
// against the remote document for one note. It is produced by the detector,
// consumed immediately by the reconciliation policy, and never persisted.
type ConflictReport struct {
	HasConflict  bool      `json:"has_conflict"`
	LocalNote    *Note     `json:"local_note"`
	RemoteNote   *Note     `json:"remote_note"`
	NewerVersion NewerSide `json:"newer_version,omitempty"`
}

// ResolutionChoice is what the user picked in the conflict dialog.
type ResolutionChoice string

const (
	ResolutionUseLocal  ResolutionChoice = "local"
	ResolutionUseRemote ResolutionChoice = "remote"
	ResolutionMerge     ResolutionChoice = "merge"
)

type ResolveConflictRequest struct {
	Choice        ResolutionChoice `json:"choice" validate:"required,oneof=local remote merge"`
	MergedContent string           `json:"merged_content,omitempty"`
}
