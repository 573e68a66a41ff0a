package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// fileBackend keeps the whole state record in one JSON file. Every save
// rewrites the file through a tmp+rename so a crash mid-write never leaves
// a truncated record behind.
type fileBackend struct {
	path string
}

func openFile(cfg Config) (Backend, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for the file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileBackend{path: path}, nil
}

func (b *fileBackend) Load() (*State, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (b *fileBackend) Save(st *State) error {
	return writeStateFile(b.path, st)
}

func (b *fileBackend) Close() error { return nil }

func writeStateFile(path string, st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Backup writes a snapshot of the current state to path. Used by the
// scheduled backup job; safe to call while the bot is serving.
func (s *Store) Backup(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("backup path is empty")
	}
	return writeStateFile(path, s.Snapshot())
}
