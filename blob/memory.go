package blob

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore implements the Store interface using memory storage.
// It's primarily intended for testing purposes.
type MemoryStore struct {
	mu           sync.RWMutex
	objects      map[Location][]byte
	contentTypes map[Location]string
	writes       int
}

// NewMemoryStore creates a new MemoryStore instance
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:      make(map[Location][]byte),
		contentTypes: make(map[Location]string),
	}
}

// Read returns a copy of the stored object
func (s *MemoryStore) Read(ctx context.Context, bucket, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[Location{Bucket: bucket, Key: key}]
	if !ok {
		return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, bucket, key)
	}
	return append([]byte(nil), data...), nil
}

// Write stores a copy of body, replacing any existing object
func (s *MemoryStore) Write(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc := Location{Bucket: bucket, Key: key}
	s.objects[loc] = append([]byte(nil), body...)
	s.contentTypes[loc] = contentType
	s.writes++
	return nil
}

// Keys lists the stored keys of a bucket
func (s *MemoryStore) Keys(bucket string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for loc := range s.objects {
		if loc.Bucket == bucket {
			keys = append(keys, loc.Key)
		}
	}
	return keys
}

// ContentType returns the content type recorded for an object
func (s *MemoryStore) ContentType(bucket, key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contentTypes[Location{Bucket: bucket, Key: key}]
}

// Writes returns the number of Write calls
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
