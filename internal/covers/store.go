package covers

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Store holds downloaded cover files.
type Store interface {
	// Find returns the path of a stored file whose name starts with prefix.
	Find(prefix string) (string, bool, error)
	// Create stores data under name and returns its path. An existing file
	// with that name is kept as is and its path returned.
	Create(name string, data []byte) (string, error)
}

// DirStore keeps covers as files in a directory.
type DirStore struct {
	dir string
}

// NewDirStore creates a DirStore rooted at dir. The directory is created on first write.
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// Dir returns the store's directory.
func (s *DirStore) Dir() string {
	return s.dir
}

func (s *DirStore) Find(prefix string) (string, bool, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to list covers directory: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			return filepath.Join(s.dir, e.Name()), true, nil
		}
	}
	return "", false, nil
}

func (s *DirStore) Create(name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create covers directory: %w", err)
	}
	p := filepath.Join(s.dir, name)

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if os.IsExist(err) {
		return p, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to create cover file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return "", fmt.Errorf("failed to write cover file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(p)
		return "", fmt.Errorf("failed to write cover file: %w", err)
	}
	return p, nil
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu    sync.Mutex
	dir   string
	files map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore whose paths are reported under dir.
func NewMemoryStore(dir string) *MemoryStore {
	return &MemoryStore{dir: dir, files: map[string][]byte{}}
}

func (s *MemoryStore) Find(prefix string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			return path.Join(s.dir, name), true, nil
		}
	}
	return "", false, nil
}

func (s *MemoryStore) Create(name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[name]; !ok {
		s.files[name] = slices.Clone(data)
	}
	return path.Join(s.dir, name), nil
}

// Put stores a file directly.
func (s *MemoryStore) Put(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = slices.Clone(data)
}

// Get returns a stored file's contents.
func (s *MemoryStore) Get(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	return data, ok
}

// Len reports how many files are stored.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}
