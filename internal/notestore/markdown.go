package notestore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"notebuddy/internal/domain"
)

var (
	ErrMissingFrontmatter  = errors.New("invalid markdown format: missing frontmatter")
	ErrUnclosedFrontmatter = errors.New("invalid markdown format: unclosed frontmatter")
)

// EncodeNote renders a note as a markdown document with a frontmatter header.
// The content follows the header verbatim.
func EncodeNote(note *domain.Note) string {
	createdAt := validTime(note.CreatedAt)
	updatedAt := validTime(note.UpdatedAt)

	lines := []string{
		"---",
		"id: " + note.ID,
		"title: " + note.Title,
		"userId: " + note.UserID,
		"createdAt: " + createdAt.Format(time.RFC3339),
		"updatedAt: " + updatedAt.Format(time.RFC3339),
		fmt.Sprintf("isFavorite: %t", note.IsFavorite),
	}
	if note.HasFileContext {
		lines = append(lines, "hasFileContext: true")
	}
	lines = append(lines, "---", "", note.Content)

	return strings.Join(lines, "\n")
}

// DecodeNote parses a markdown document back into a note. A missing leading
// delimiter or an unclosed header is a hard failure; individual malformed
// header lines are skipped. Missing fields fall back to defaults, and
// unparseable dates fall back to the current time (logged, since that policy
// can mask corrupted documents).
func DecodeNote(raw string) (*domain.Note, error) {
	if !strings.HasPrefix(raw, "---") {
		return nil, ErrMissingFrontmatter
	}

	end := strings.Index(raw[3:], "---")
	if end == -1 {
		return nil, ErrUnclosedFrontmatter
	}
	end += 3

	header := strings.TrimSpace(raw[3:end])
	content := strings.TrimSpace(raw[end+3:])

	metadata := make(map[string]string)
	for _, line := range strings.Split(header, "\n") {
		colon := strings.Index(line, ":")
		if colon <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		if key == "" || value == "" {
			continue
		}
		metadata[key] = value
	}

	note := &domain.Note{
		ID:             metadata["id"],
		Title:          metadata["title"],
		Content:        content,
		UserID:         metadata["userId"],
		CreatedAt:      parseTimeOrNow(metadata["id"], "createdAt", metadata["createdAt"]),
		UpdatedAt:      parseTimeOrNow(metadata["id"], "updatedAt", metadata["updatedAt"]),
		IsFavorite:     metadata["isFavorite"] == "true",
		HasFileContext: metadata["hasFileContext"] == "true",
	}
	if note.Title == "" {
		note.Title = domain.DefaultTitle
	}

	return note, nil
}

func parseTimeOrNow(noteID, field, value string) time.Time {
	if value == "" {
		return time.Now()
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		zap.L().Warn("unparseable date in note frontmatter, substituting current time",
			zap.String("note_id", noteID),
			zap.String("field", field),
			zap.String("value", value))
		return time.Now()
	}
	return t
}

func validTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
