package orchestrator

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Persisted task-set layout. A version mismatch discards the whole document;
// there is no migration.
const (
	StoreVersion   = 1
	MaxStoredTasks = 100
	MaxTaskAge     = 24 * time.Hour
)

type storedDocument struct {
	Version int    `json:"version"`
	Tasks   []Task `json:"tasks"`
}

// TaskStore persists the full task set after every mutation. Implementations
// must tolerate concurrent calls from the orchestrator's single writer only.
type TaskStore interface {
	Save(tasks []Task) error
	Load() ([]Task, error)
	Clear() error
}

// pruneForStorage applies the age and count cutoffs. Entries violating
// either are dropped silently.
func pruneForStorage(tasks []Task, now time.Time) []Task {
	kept := make([]Task, 0, len(tasks))
	cutoff := now.Add(-MaxTaskAge).UnixMilli()
	for _, task := range tasks {
		if task.CreatedAt < cutoff {
			continue
		}
		kept = append(kept, task)
		if len(kept) >= MaxStoredTasks {
			break
		}
	}
	return kept
}

func encodeDocument(tasks []Task) ([]byte, error) {
	return json.Marshal(storedDocument{Version: StoreVersion, Tasks: tasks})
}

func decodeDocument(raw []byte) []Task {
	var doc storedDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	if doc.Version != StoreVersion {
		return nil
	}
	return doc.Tasks
}

// FileTaskStore keeps the task set as a JSON document on disk, the durable
// local storage analog for a single-node deployment.
type FileTaskStore struct {
	path string
}

func NewFileTaskStore(path string) *FileTaskStore {
	return &FileTaskStore{path: path}
}

func (s *FileTaskStore) Save(tasks []Task) error {
	raw, err := encodeDocument(pruneForStorage(tasks, time.Now()))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileTaskStore) Load() ([]Task, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return decodeDocument(raw), nil
}

func (s *FileTaskStore) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// MemoryTaskStore holds the document in memory; used in tests and when no
// persistence backend is configured.
type MemoryTaskStore struct {
	mu  sync.Mutex
	raw []byte
}

func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{}
}

func (s *MemoryTaskStore) Save(tasks []Task) error {
	raw, err := encodeDocument(pruneForStorage(tasks, time.Now()))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.raw = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryTaskStore) Load() ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raw == nil {
		return nil, nil
	}
	return decodeDocument(s.raw), nil
}

func (s *MemoryTaskStore) Clear() error {
	s.mu.Lock()
	s.raw = nil
	s.mu.Unlock()
	return nil
}
