package blob

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests and local development. The
// error fields let tests simulate a failing storage medium per operation.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry

	PutErr    error
	ListErr   error
	FetchErr  error
	DeleteErr error
}

type memoryEntry struct {
	body       []byte
	metadata   map[string]string
	uploadedAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
	}
}

func (s *MemoryStore) Put(ctx context.Context, pathname string, body []byte, opts PutOptions) (*Object, error) {
	if s.PutErr != nil {
		return nil, s.PutErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &memoryEntry{
		body:       append([]byte(nil), body...),
		metadata:   opts.Metadata,
		uploadedAt: time.Now(),
	}
	s.entries[pathname] = entry

	return &Object{
		URL:        "mem://" + pathname,
		Pathname:   pathname,
		Metadata:   opts.Metadata,
		UploadedAt: entry.uploadedAt,
	}, nil
}

func (s *MemoryStore) List(ctx context.Context, prefix string) ([]*Object, error) {
	if s.ListErr != nil {
		return nil, s.ListErr
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var objects []*Object
	for pathname, entry := range s.entries {
		if strings.HasPrefix(pathname, prefix) {
			objects = append(objects, &Object{
				URL:        "mem://" + pathname,
				Pathname:   pathname,
				Metadata:   entry.metadata,
				UploadedAt: entry.uploadedAt,
			})
		}
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Pathname < objects[j].Pathname
	})

	return objects, nil
}

func (s *MemoryStore) Fetch(ctx context.Context, url string) ([]byte, error) {
	if s.FetchErr != nil {
		return nil, s.FetchErr
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[strings.TrimPrefix(url, "mem://")]
	if !ok {
		return nil, ErrNotFound
	}

	return append([]byte(nil), entry.body...), nil
}

func (s *MemoryStore) Stat(ctx context.Context, url string) (*Object, error) {
	if s.FetchErr != nil {
		return nil, s.FetchErr
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	pathname := strings.TrimPrefix(url, "mem://")
	entry, ok := s.entries[pathname]
	if !ok {
		return nil, ErrNotFound
	}

	return &Object{
		URL:        url,
		Pathname:   pathname,
		Metadata:   entry.metadata,
		UploadedAt: entry.uploadedAt,
	}, nil
}

func (s *MemoryStore) Delete(ctx context.Context, url string) error {
	if s.DeleteErr != nil {
		return s.DeleteErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pathname := strings.TrimPrefix(url, "mem://")
	if _, ok := s.entries[pathname]; !ok {
		return ErrNotFound
	}

	delete(s.entries, pathname)
	return nil
}
