package db

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/airenas/chapter-transcriber/internal/domain"
	"github.com/airenas/go-app/pkg/goapp"
)

// FileStore keeps all states in one indented JSON document, one entry per
// cache key, so the record stays human-diffable.
type FileStore struct {
	path string
	lock sync.Mutex
}

// NewFileStore creates a store at path, making parent directories as needed.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("no state file path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	goapp.Log.Info().Str("file", path).Msg("state store")
	return &FileStore{path: path}, nil
}

// Save rewrites the document with the entry for key replaced.
func (s *FileStore) Save(ctx context.Context, key string, state *domain.TranscriptionState) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	doc := s.readDoc()
	bs, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	doc[key] = bs
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state doc: %w", err)
	}
	if err := os.WriteFile(s.path, out, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// LoadAll returns the raw entry per key. A missing file is an empty store.
func (s *FileStore) LoadAll(ctx context.Context) (map[string][]byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	bs, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]byte{}, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(bs, &doc); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	res := make(map[string][]byte, len(doc))
	for k, v := range doc {
		res[k] = v
	}
	return res, nil
}

func (s *FileStore) readDoc() map[string]json.RawMessage {
	doc := map[string]json.RawMessage{}
	bs, err := os.ReadFile(s.path)
	if err != nil {
		return doc
	}
	if err := json.Unmarshal(bs, &doc); err != nil {
		goapp.Log.Warn().Err(err).Str("file", s.path).Msg("state file unreadable, starting fresh")
		return map[string]json.RawMessage{}
	}
	return doc
}
