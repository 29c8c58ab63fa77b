package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps one JSON file per device under a state directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the state directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(deviceID string) string {
	return filepath.Join(s.dir, deviceID+".json")
}

// Load reads the device's state file. A missing file is not an error.
func (s *FileStore) Load(ctx context.Context, deviceID string) (map[string]string, error) {
	data, err := os.ReadFile(s.path(deviceID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var fields map[string]string
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}
	return fields, nil
}

// Publish atomically replaces the device's state file via a temp file
// and rename, so a crash mid-write never leaves a torn file behind.
func (s *FileStore) Publish(ctx context.Context, deviceID string, fields map[string]string) error {
	data, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return err
	}

	path := s.path(deviceID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error {
	return nil
}
