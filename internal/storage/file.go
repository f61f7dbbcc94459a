package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileStore writes one YAML document per scope into a directory. Values are
// stored as strings so the files stay readable.
type FileStore struct {
	dir string

	mu     sync.Mutex
	closed bool
}

var _ Store = (*FileStore)(nil)

// NewFileStore uses dir, creating it on first write.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("file store directory is empty")
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory holding the scope files.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Get(_ context.Context, scope, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	doc, err := s.load(scope)
	if err != nil {
		return nil, false, err
	}
	value, ok := doc[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(value), true, nil
}

func (s *FileStore) Put(_ context.Context, scope, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	doc, err := s.load(scope)
	if err != nil {
		return err
	}
	doc[key] = string(value)

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", scope, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	// Write through a temp file so a crash never leaves a truncated document.
	tmp, err := os.CreateTemp(s.dir, "."+scope+"-*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", scope, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", scope, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", scope, err)
	}
	if err := os.Rename(tmp.Name(), s.path(scope)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", scope, err)
	}
	return nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *FileStore) path(scope string) string {
	return filepath.Join(s.dir, scope+".yaml")
}

func (s *FileStore) load(scope string) (map[string]string, error) {
	doc := map[string]string{}
	data, err := os.ReadFile(s.path(scope))
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", scope, err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path(scope), err)
	}
	if doc == nil {
		doc = map[string]string{}
	}
	return doc, nil
}
