package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultPath is where quotes live relative to the working directory.
const DefaultPath = "data/cotizaciones.json"

// FileStore keeps every quote in one JSON array. Writes rewrite the whole
// file; the mutex serialises writers inside this process only.
type FileStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultPath
	}
	return &FileStore{path: path, now: time.Now}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Append(ctx context.Context, r Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.read()
	if err != nil {
		return Record{}, err
	}
	ids := make(map[int64]bool, len(list))
	for _, it := range list {
		ids[it.ID] = true
	}
	r = stamp(r, s.now(), func(id int64) bool { return ids[id] })
	list = append(list, r)
	if err := s.write(list); err != nil {
		return Record{}, err
	}
	return r, nil
}

func (s *FileStore) Update(ctx context.Context, id int64, patch map[string]any) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.read()
	if err != nil {
		return Record{}, err
	}
	for i := range list {
		if list[i].ID != id {
			continue
		}
		updated, err := list[i].Merge(patch)
		if err != nil {
			return Record{}, err
		}
		list[i] = updated
		if err := s.write(list); err != nil {
			return Record{}, err
		}
		return updated, nil
	}
	return Record{}, ErrNotFound
}

func (s *FileStore) Get(ctx context.Context, id int64) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.read()
	if err != nil {
		return Record{}, err
	}
	for _, r := range list {
		if r.ID == id {
			return r, nil
		}
	}
	return Record{}, ErrNotFound
}

func (s *FileStore) List(ctx context.Context, q string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.read()
	if err != nil {
		return nil, err
	}
	return filter(list, q), nil
}

func (s *FileStore) read() ([]Record, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read quotes: %w", err)
	}
	var list []Record
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("decode quotes %s: %w", s.path, err)
	}
	return list, nil
}

// write replaces the file through a temp file so a crash never leaves a
// truncated array behind.
func (s *FileStore) write(list []Record) error {
	b, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write quotes: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".cotizaciones-*.json")
	if err != nil {
		return fmt.Errorf("write quotes: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write quotes: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write quotes: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write quotes: %w", err)
	}
	return nil
}
