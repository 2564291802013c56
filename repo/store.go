package repo

import (
	"context"
	"path"
	"slices"
	"sync"
	"time"
)

// Entry is the stored form of a file or directory.
type Entry struct {
	Mtime  time.Time `json:"mtime"`
	Ctime  time.Time `json:"ctime"`
	Path   string    `json:"path"`
	Parent string    `json:"parent"`
	Data   []byte    `json:"data,omitempty"`
	IsDir  bool      `json:"dir"`
}

// Store persists entries keyed by (namespace, path).
type Store interface {
	Load(ctx context.Context, namespace, name string) (Entry, error)
	Save(ctx context.Context, namespace string, e Entry) error
	// Children returns the names of the direct children of dir.
	Children(ctx context.Context, namespace, dir string) ([]string, error)
	Close() error
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	spaces map[string]map[string]Entry
	mu     sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{spaces: make(map[string]map[string]Entry)}
}

func (s *MemoryStore) Load(_ context.Context, namespace, name string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.spaces[namespace][name]
	if !ok {
		return Entry{}, ErrNotFound
	}
	e.Data = slices.Clone(e.Data)
	return e, nil
}

func (s *MemoryStore) Save(_ context.Context, namespace string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	space, ok := s.spaces[namespace]
	if !ok {
		space = make(map[string]Entry)
		s.spaces[namespace] = space
	}
	e.Data = slices.Clone(e.Data)
	space[e.Path] = e
	return nil
}

func (s *MemoryStore) Children(_ context.Context, namespace, dir string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for _, e := range s.spaces[namespace] {
		if e.Parent == dir && e.Path != "" {
			names = append(names, path.Base(e.Path))
		}
	}
	slices.Sort(names)
	return names, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spaces = make(map[string]map[string]Entry)
	return nil
}
