package blob

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-kivik/kivik/v4"
)

const docPrefix = "blob:"

// CouchStore keeps each blob as a CouchDB document keyed by its pathname. The
// document holds the body (base64), the caller-supplied metadata, and the
// upload time; last-writer-wins on overwrite.
type CouchStore struct {
	client *kivik.Client
	dbName string
}

func NewCouchStore(client *kivik.Client, dbName string) *CouchStore {
	return &CouchStore{
		client: client,
		dbName: dbName,
	}
}

type blobDoc struct {
	ID          string            `json:"_id"`
	Rev         string            `json:"_rev,omitempty"`
	Pathname    string            `json:"pathname"`
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Body        string            `json:"body"`
	UploadedAt  time.Time         `json:"uploaded_at"`
}

func (s *CouchStore) Put(ctx context.Context, pathname string, body []byte, opts PutOptions) (*Object, error) {
	db := s.client.DB(s.dbName)

	docID := docPrefix + pathname
	doc := blobDoc{
		ID:          docID,
		Pathname:    pathname,
		ContentType: opts.ContentType,
		Metadata:    opts.Metadata,
		Body:        base64.StdEncoding.EncodeToString(body),
		UploadedAt:  time.Now(),
	}

	// Overwrite semantics: pick up the current revision if the document
	// already exists.
	var existing blobDoc
	if err := db.Get(ctx, docID).ScanDoc(&existing); err == nil {
		doc.Rev = existing.Rev
	}

	if _, err := db.Put(ctx, docID, doc); err != nil {
		return nil, fmt.Errorf("failed to put blob %s: %w", pathname, err)
	}

	return &Object{
		URL:        docID,
		Pathname:   pathname,
		Metadata:   opts.Metadata,
		UploadedAt: doc.UploadedAt,
	}, nil
}

func (s *CouchStore) List(ctx context.Context, prefix string) ([]*Object, error) {
	db := s.client.DB(s.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"pathname": map[string]interface{}{
				"$gte": prefix,
				"$lt":  prefix + "￰",
			},
		},
	}

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list blobs under %s: %w", prefix, err)
	}
	defer rows.Close()

	var objects []*Object
	for rows.Next() {
		var doc blobDoc
		if err := rows.ScanDoc(&doc); err != nil {
			continue
		}
		if !strings.HasPrefix(doc.Pathname, prefix) {
			continue
		}
		objects = append(objects, &Object{
			URL:        doc.ID,
			Pathname:   doc.Pathname,
			Metadata:   doc.Metadata,
			UploadedAt: doc.UploadedAt,
		})
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Pathname < objects[j].Pathname
	})

	return objects, nil
}

func (s *CouchStore) Fetch(ctx context.Context, url string) ([]byte, error) {
	db := s.client.DB(s.dbName)

	var doc blobDoc
	if err := db.Get(ctx, url).ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == 404 {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch blob %s: %w", url, err)
	}

	body, err := base64.StdEncoding.DecodeString(doc.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode blob body %s: %w", url, err)
	}

	return body, nil
}

func (s *CouchStore) Stat(ctx context.Context, url string) (*Object, error) {
	db := s.client.DB(s.dbName)

	var doc blobDoc
	if err := db.Get(ctx, url).ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == 404 {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to stat blob %s: %w", url, err)
	}

	return &Object{
		URL:        doc.ID,
		Pathname:   doc.Pathname,
		Metadata:   doc.Metadata,
		UploadedAt: doc.UploadedAt,
	}, nil
}

func (s *CouchStore) Delete(ctx context.Context, url string) error {
	db := s.client.DB(s.dbName)

	var doc blobDoc
	if err := db.Get(ctx, url).ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == 404 {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load blob %s for delete: %w", url, err)
	}

	if _, err := db.Delete(ctx, url, doc.Rev); err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", url, err)
	}

	return nil
}
