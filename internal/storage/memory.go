package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"
)

// MemoryStore keeps objects in a map. Its URLs use the memory:// scheme and are
// only meaningful inside the process.
type MemoryStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string][]byte
	now     func() time.Time
}

func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{bucket: bucket, objects: make(map[string][]byte), now: time.Now}
}

func (s *MemoryStore) Put(ctx context.Context, objectName string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectName] = data
	return ctx.Err()
}

func (s *MemoryStore) Remove(ctx context.Context, objectName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectName)
	return ctx.Err()
}

func (s *MemoryStore) PresignedURL(ctx context.Context, objectName string, ttl time.Duration, attachmentName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	_, ok := s.objects[objectName]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("object %s not found", objectName)
	}

	q := url.Values{}
	q.Set("expires", s.now().Add(ttl).UTC().Format(time.RFC3339))
	if attachmentName != "" {
		q.Set("attachment", attachmentName)
	}
	u := url.URL{Scheme: "memory", Host: s.bucket, Path: "/" + objectName, RawQuery: q.Encode()}
	return u.String(), nil
}

// Has reports whether objectName is stored.
func (s *MemoryStore) Has(objectName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[objectName]
	return ok
}
