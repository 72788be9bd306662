package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"pfascert/pkg/integrity"
	"pfascert/pkg/platform/sentinel"
)

const memoryScheme = "mem://"

type memoryObject struct {
	data []byte
	info ObjectInfo
}

// InMemoryStore enforces write-once semantics over a map. It exposes no
// delete operation at all, so retention cannot be violated through it; the
// lock metadata is still recorded and returned by Head so callers can assert
// on it.
type InMemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject

	// Corrupt forces Get to return altered bytes for the given URI. Test
	// hook for integrity-failure paths; never set outside tests.
	Corrupt map[string]bool
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		objects: make(map[string]memoryObject),
		Corrupt: make(map[string]bool),
	}
}

func (s *InMemoryStore) Put(_ context.Context, key string, data []byte, contentType string, metadata map[string]string, lockMode LockMode, retainUntil time.Time) (PutResult, error) {
	if key == "" {
		return PutResult{}, fmt.Errorf("put: key is required")
	}
	if lockMode != LockGovernance && lockMode != LockCompliance {
		return PutResult{}, fmt.Errorf("put: unsupported lock mode %q", lockMode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	uri := memoryScheme + key
	if existing, exists := s.objects[uri]; exists {
		// A retained object refuses the overwrite as a lock violation;
		// write-once still holds after retention lapses, as a plain conflict.
		if time.Now().UTC().Before(existing.info.LockUntil) {
			return PutResult{}, fmt.Errorf("put %s: %w", key, sentinel.ErrLocked)
		}
		return PutResult{}, fmt.Errorf("put %s: %w", key, sentinel.ErrConflict)
	}

	copied := append([]byte(nil), data...)
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	etag := integrity.Digest(copied)
	s.objects[uri] = memoryObject{
		data: copied,
		info: ObjectInfo{
			ContentType:  contentType,
			Length:       int64(len(copied)),
			ETag:         etag,
			LastModified: time.Now().UTC(),
			Metadata:     meta,
			LockMode:     lockMode,
			LockUntil:    retainUntil,
		},
	}
	return PutResult{URI: uri, ETag: etag}, nil
}

func (s *InMemoryStore) Get(_ context.Context, uri string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[uri]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", uri, sentinel.ErrNotFound)
	}
	data := append([]byte(nil), obj.data...)
	if s.Corrupt[uri] && len(data) > 0 {
		data[0] ^= 0xff
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *InMemoryStore) Head(_ context.Context, uri string) (ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[uri]
	if !ok {
		return ObjectInfo{}, fmt.Errorf("head %s: %w", uri, sentinel.ErrNotFound)
	}
	return obj.info, nil
}

// Key extracts the storage key from a memory URI.
func Key(uri string) string {
	return strings.TrimPrefix(uri, memoryScheme)
}
