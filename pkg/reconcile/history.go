package reconcile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store records which (pageID, status) pairs have already been announced
// to the user, so repeated polls of the same terminal state never re-alert.
type Store interface {
	// Seen reports whether the pair was already announced.
	Seen(pageID string, status Status) bool
	// MarkSeen records the pair. Idempotent.
	MarkSeen(pageID string, status Status) error
}

func historyKey(pageID string, status Status) string {
	return pageID + ":" + string(status)
}

// MemoryStore is an in-memory Store for tests and throwaway sessions.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewMemoryStore creates an empty in-memory notification history.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]bool)}
}

func (s *MemoryStore) Seen(pageID string, status Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[historyKey(pageID, status)]
}

func (s *MemoryStore) MarkSeen(pageID string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[historyKey(pageID, status)] = true
	return nil
}

// FileStore persists the notification history as a JSON file so dedup
// survives a full client restart mid-scrape.
type FileStore struct {
	path string
	mu   sync.Mutex
	seen map[string]bool
}

// NewFileStore loads (or initializes) the history at path.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path: path,
		seen: make(map[string]bool),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read notification history: %w", err)
	}

	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("failed to parse notification history: %w", err)
	}
	for _, k := range keys {
		s.seen[k] = true
	}

	return s, nil
}

func (s *FileStore) Seen(pageID string, status Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[historyKey(pageID, status)]
}

func (s *FileStore) MarkSeen(pageID string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := historyKey(pageID, status)
	if s.seen[key] {
		return nil
	}
	s.seen[key] = true
	return s.flush()
}

// flush writes the full key set. Write-then-rename keeps a crash from
// truncating the history. Caller holds the lock.
func (s *FileStore) flush() error {
	keys := make([]string, 0, len(s.seen))
	for k := range s.seen {
		keys = append(keys, k)
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("failed to encode notification history: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write notification history: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace notification history: %w", err)
	}

	return nil
}
