package blob

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("blob not found")

// Object describes a stored document. URL is an opaque handle understood by
// the store that produced it; Pathname is the logical path the object was
// written under.
type Object struct {
	URL        string            `json:"url"`
	Pathname   string            `json:"pathname"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	UploadedAt time.Time         `json:"uploaded_at"`
}

type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Store is the narrow blob-storage surface everything above is built on:
// overwrite-on-put, prefix listing, no transactional guarantees.
type Store interface {
	Put(ctx context.Context, pathname string, body []byte, opts PutOptions) (*Object, error)
	List(ctx context.Context, prefix string) ([]*Object, error)
	Fetch(ctx context.Context, url string) ([]byte, error)
	Stat(ctx context.Context, url string) (*Object, error)
	Delete(ctx context.Context, url string) error
}
