package notestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"notebuddy/internal/blob"
	"notebuddy/internal/domain"
)

const notesPath = "notes"

// RemoteStore is the authoritative persistence layer. Notes live as markdown
// documents at notes/<userID>/<noteID>.md; document-level metadata mirrors the
// timestamps because the storage medium's own upload time reflects write time,
// not logical update time.
type RemoteStore struct {
	store   blob.Store
	log     *zap.Logger
	timeout time.Duration
}

func NewRemoteStore(store blob.Store, log *zap.Logger, timeout time.Duration) *RemoteStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteStore{
		store:   store,
		log:     log,
		timeout: timeout,
	}
}

func notePathname(userID, noteID string) string {
	return fmt.Sprintf("%s/%s/%s.md", notesPath, userID, noteID)
}

// Save encodes and overwrites the note's document, returning the object URL.
func (s *RemoteStore) Save(ctx context.Context, note *domain.Note) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body := EncodeNote(note)

	obj, err := s.store.Put(ctx, notePathname(note.UserID, note.ID), []byte(body), blob.PutOptions{
		ContentType: "text/markdown",
		Metadata: map[string]string{
			"createdAt":  validTime(note.CreatedAt).Format(time.RFC3339),
			"updatedAt":  validTime(note.UpdatedAt).Format(time.RFC3339),
			"userId":     note.UserID,
			"isFavorite": fmt.Sprintf("%t", note.IsFavorite),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to save note %s: %w", note.ID, err)
	}

	return obj.URL, nil
}

// Load fetches and decodes the note's document. A nil note with a nil error
// means no document exists at the derived path; callers must not treat that as
// proof of non-existence when they hold other evidence, such as a local copy.
func (s *RemoteStore) Load(ctx context.Context, userID, noteID string) (*domain.Note, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	objects, err := s.store.List(ctx, notePathname(userID, noteID))
	if err != nil {
		return nil, fmt.Errorf("failed to locate note %s: %w", noteID, err)
	}
	if len(objects) == 0 {
		return nil, nil
	}

	note, err := s.loadObject(ctx, objects[0])
	if err != nil {
		s.log.Warn("failed to load note document",
			zap.String("note_id", noteID),
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, err
	}

	return note, nil
}

// ListForUser returns every decodable note document under the user's prefix,
// newest first. Documents that fail to decode are skipped.
func (s *RemoteStore) ListForUser(ctx context.Context, userID string) ([]*domain.Note, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	objects, err := s.store.List(ctx, fmt.Sprintf("%s/%s/", notesPath, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list notes for user %s: %w", userID, err)
	}

	var notes []*domain.Note
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Pathname, ".md") {
			continue
		}
		note, err := s.loadObject(ctx, obj)
		if err != nil {
			s.log.Warn("skipping undecodable note document",
				zap.String("pathname", obj.Pathname),
				zap.Error(err))
			continue
		}
		notes = append(notes, note)
	}

	sort.Slice(notes, func(i, j int) bool {
		return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
	})

	return notes, nil
}

// Delete removes the note's document. Returns true when a document existed.
func (s *RemoteStore) Delete(ctx context.Context, userID, noteID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	objects, err := s.store.List(ctx, notePathname(userID, noteID))
	if err != nil {
		return false, fmt.Errorf("failed to locate note %s for delete: %w", noteID, err)
	}
	if len(objects) == 0 {
		return false, nil
	}

	if err := s.store.Delete(ctx, objects[0].URL); err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete note %s: %w", noteID, err)
	}

	return true, nil
}

func (s *RemoteStore) loadObject(ctx context.Context, obj *blob.Object) (*domain.Note, error) {
	body, err := s.store.Fetch(ctx, obj.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", obj.Pathname, err)
	}

	note, err := DecodeNote(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrDecodeFailure, obj.Pathname, err)
	}

	// Object metadata wins over the frontmatter header; a stale or malformed
	// header must not reorder conflict detection. Upload time is the last
	// resort.
	if len(obj.Metadata) > 0 {
		if t, err := time.Parse(time.RFC3339, obj.Metadata["createdAt"]); err == nil {
			note.CreatedAt = t
		}
		if t, err := time.Parse(time.RFC3339, obj.Metadata["updatedAt"]); err == nil {
			note.UpdatedAt = t
		}
	} else if !obj.UploadedAt.IsZero() {
		if note.CreatedAt.IsZero() {
			note.CreatedAt = obj.UploadedAt
		}
		if note.UpdatedAt.IsZero() {
			note.UpdatedAt = obj.UploadedAt
		}
	}

	return note, nil
}
