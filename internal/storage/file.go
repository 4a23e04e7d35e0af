package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// FileStore persists documents as a single JSON object file, one file per
// store. A corrupt or missing file is treated as an empty store rather than
// a fatal error so the bot keeps running after partial writes or manual
// edits.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// NewFileStore creates a file-backed store at the given path, creating the
// parent directory if needed.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	return &FileStore{
		path:   path,
		logger: logger.Named("filestore"),
	}, nil
}

// Get unmarshals the document stored under key into dest.
func (s *FileStore) Get(_ context.Context, key string, dest any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load()

	raw, ok := data[key]
	if !ok {
		return false, nil
	}

	if err := sonic.Unmarshal(raw, dest); err != nil {
		return false, err
	}

	return true, nil
}

// Set stores value under key and flushes the file synchronously. The write
// goes through a temp file and rename so a crash mid-write cannot corrupt
// the existing store.
func (s *FileStore) Set(_ context.Context, key string, value any) error {
	raw, err := sonic.Marshal(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load()
	data[key] = raw

	return s.save(data)
}

// Delete removes the document under key.
func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load()
	if _, ok := data[key]; !ok {
		return nil
	}

	delete(data, key)

	return s.save(data)
}

// Keys returns all keys currently present in the store.
func (s *FileStore) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load()

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}

	return keys, nil
}

// load reads the backing file into a key → raw document map. Any read or
// parse failure logs and yields an empty map.
func (s *FileStore) load() map[string]json.RawMessage {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to read store file, treating as empty",
				zap.String("path", s.path),
				zap.Error(err))
		}

		return make(map[string]json.RawMessage)
	}

	var data map[string]json.RawMessage
	if err := sonic.Unmarshal(raw, &data); err != nil {
		s.logger.Warn("Store file is corrupt, treating as empty",
			zap.String("path", s.path),
			zap.Error(err))

		return make(map[string]json.RawMessage)
	}

	if data == nil {
		data = make(map[string]json.RawMessage)
	}

	return data
}

// save writes the full document map back to disk atomically.
func (s *FileStore) save(data map[string]json.RawMessage) error {
	raw, err := sonic.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}

	return nil
}
