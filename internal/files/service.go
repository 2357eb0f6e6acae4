package files

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"notebuddy/internal/blob"
	"notebuddy/internal/domain"
)

const (
	filesPath   = "files"
	contextPath = "context"
)

var (
	ErrUnsupportedFileType = errors.New("file type not allowed")
	ErrNotOwned            = errors.New("file belongs to another user")
)

var allowedExtensions = []string{".pdf", ".txt", ".jpg", ".jpeg", ".png", ".docx"}

var allowedContentTypes = []string{
	"application/pdf",
	"text/plain",
	"image/jpeg",
	"image/png",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// NoteFlagger lets the file layer flip a note's file-context flag without
// owning note persistence.
type NoteFlagger interface {
	MarkFileContext(ctx context.Context, userID, noteID string, has bool) error
}

// Service stores note attachments and the text context extracted from them.
type Service struct {
	store blob.Store
	notes NoteFlagger
	log   *zap.Logger
}

func NewService(store blob.Store, notes NoteFlagger, log *zap.Logger) *Service {
	return &Service{
		store: store,
		notes: notes,
		log:   log,
	}
}

func ExtensionAllowed(fileName string) bool {
	ext := strings.ToLower(path.Ext(fileName))
	for _, allowed := range allowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func ContentTypeAllowed(contentType string) bool {
	for _, allowed := range allowedContentTypes {
		if contentType == allowed {
			return true
		}
	}
	return false
}

// Upload stores an attachment under the note's file prefix.
func (s *Service) Upload(ctx context.Context, userID, noteID, fileName, contentType string, body []byte) (*domain.FileMetadata, error) {
	if !ExtensionAllowed(fileName) && !ContentTypeAllowed(contentType) {
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFileType, fileName, contentType)
	}

	pathname := fmt.Sprintf("%s/%s/%s/%s", filesPath, userID, noteID, fileName)
	obj, err := s.store.Put(ctx, pathname, body, blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"userId": userID,
			"noteId": noteID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	return &domain.FileMetadata{
		Name:        fileName,
		URL:         obj.URL,
		Size:        int64(len(body)),
		ContentType: contentType,
		UserID:      userID,
		NoteID:      noteID,
		UploadedAt:  obj.UploadedAt,
	}, nil
}

// List returns the attachments stored for a note.
func (s *Service) List(ctx context.Context, userID, noteID string) ([]*domain.FileMetadata, error) {
	prefix := fmt.Sprintf("%s/%s/%s/", filesPath, userID, noteID)
	objects, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	files := make([]*domain.FileMetadata, 0, len(objects))
	for _, obj := range objects {
		files = append(files, &domain.FileMetadata{
			Name:       path.Base(obj.Pathname),
			URL:        obj.URL,
			UserID:     userID,
			NoteID:     noteID,
			UploadedAt: obj.UploadedAt,
		})
	}

	return files, nil
}

// Delete removes a stored attachment by its URL. The URL is caller-supplied,
// so the object's ownership is verified before anything is removed: only
// blobs the user uploaded under the attachment or context prefixes qualify.
func (s *Service) Delete(ctx context.Context, userID, url string) error {
	obj, err := s.store.Stat(ctx, url)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to look up file: %w", err)
	}

	if !ownedBy(obj, userID) {
		return ErrNotOwned
	}

	if err := s.store.Delete(ctx, url); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func ownedBy(obj *blob.Object, userID string) bool {
	if userID == "" {
		return false
	}
	if obj.Metadata["userId"] == userID {
		return true
	}
	return strings.HasPrefix(obj.Pathname, filesPath+"/"+userID+"/") ||
		strings.HasPrefix(obj.Pathname, contextPath+"/"+userID+"/")
}

var unsafeNamePattern = regexp.MustCompile(`[^a-zA-Z0-9.]`)

// AttachContext stores extracted file text as context for a note and flags the
// note. The flag update is best-effort: stored context without the flag only
// costs a lookup, losing the context would cost the user their extraction.
func (s *Service) AttachContext(ctx context.Context, userID, noteID, fileName, fileURL, content string) error {
	fileContext := domain.FileContext{
		FileName: fileName,
		FileURL:  fileURL,
		Content:  content,
		AddedAt:  time.Now().Format(time.RFC3339),
	}

	data, err := json.Marshal(fileContext)
	if err != nil {
		return fmt.Errorf("failed to serialize file context: %w", err)
	}

	safeName := unsafeNamePattern.ReplaceAllString(fileName, "_")
	pathname := fmt.Sprintf("%s/%s/%s/%s.json", contextPath, userID, noteID, safeName)
	if _, err := s.store.Put(ctx, pathname, data, blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"userId": userID,
			"noteId": noteID,
		},
	}); err != nil {
		return fmt.Errorf("failed to store file context: %w", err)
	}

	if err := s.notes.MarkFileContext(ctx, userID, noteID, true); err != nil {
		s.log.Warn("failed to flag note file context",
			zap.String("note_id", noteID), zap.Error(err))
	}

	return nil
}

// CombinedContext concatenates every stored context for a note, oldest first,
// for use in AI prompts. Undecodable entries are skipped.
func (s *Service) CombinedContext(ctx context.Context, userID, noteID string) (string, error) {
	prefix := fmt.Sprintf("%s/%s/%s/", contextPath, userID, noteID)
	objects, err := s.store.List(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to list file contexts: %w", err)
	}

	var parts []string
	for _, obj := range objects {
		body, err := s.store.Fetch(ctx, obj.URL)
		if err != nil {
			s.log.Warn("failed to fetch file context",
				zap.String("pathname", obj.Pathname), zap.Error(err))
			continue
		}

		var fileContext domain.FileContext
		if err := json.Unmarshal(body, &fileContext); err != nil {
			s.log.Warn("skipping corrupt file context",
				zap.String("pathname", obj.Pathname), zap.Error(err))
			continue
		}

		parts = append(parts, fmt.Sprintf("### %s\n%s", fileContext.FileName, fileContext.Content))
	}

	return strings.Join(parts, "\n\n"), nil
}
