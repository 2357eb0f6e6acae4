package domain

import "time"

// FileMetadata describes an uploaded attachment.
type FileMetadata struct {
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	UserID      string    `json:"user_id"`
	NoteID      string    `json:"note_id,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// FileContext is extracted text from an attachment, stored alongside the note
// and fed into AI prompts.
type FileContext struct {
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
	Content  string `json:"content"`
	AddedAt  string `json:"added_at"`
}
