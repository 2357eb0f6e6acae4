package domain

import "time"

const DefaultTitle = "Untitled"

// Note is the central entity. Content is an opaque rich-text markup string;
// the synchronization layer never inspects its structure.
type Note struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	UserID         string    `json:"user_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	IsFavorite     bool      `json:"is_favorite"`
	HasFileContext bool      `json:"has_file_context,omitempty"`
}

// Clone returns a copy so callers can mutate a note without aliasing the
// version another store still holds.
func (n *Note) Clone() *Note {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}

type CreateNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type UpdateNoteRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// SaveStatus is the user-visible lifecycle of an editing session.
type SaveStatus string

const (
	SaveStatusNew     SaveStatus = "new"
	SaveStatusUnsaved SaveStatus = "unsaved"
	SaveStatusSaving  SaveStatus = "saving"
	SaveStatusSaved   SaveStatus = "saved"
)
