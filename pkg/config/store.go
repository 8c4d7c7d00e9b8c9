package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"
)

const configVersion = "1.0"

// Store persists section data.
type Store interface {
	Load() error
	Save() error
	GetSection(sectionID string) (map[string]any, error)
	SetSection(sectionID string, data map[string]any) error
	GetAll() (map[string]map[string]any, error)
	SetAll(data map[string]map[string]any) error
}

// fileFormat is the on-disk layout of a FileStore.
type fileFormat struct {
	Version  string                    `json:"version"`
	Sections map[string]map[string]any `json:"sections"`
}

// FileStore keeps configuration in a JSON file.
type FileStore struct {
	path     string
	data     map[string]map[string]any
	mu       sync.RWMutex
	version  string
	modified bool
}

// DefaultPath returns ~/.forge/memory/config.json.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".forge", "memory", "config.json"), nil
}

// NewFileStore opens the configuration at path, or DefaultPath when path is
// empty. A missing file is not an error; it is created on the first Save.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	store := &FileStore{
		path:    path,
		data:    make(map[string]map[string]any),
		version: configVersion,
	}
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return store, nil
}

// Load replaces the in-memory data with the file contents.
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.data = make(map[string]map[string]any)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg fileFormat
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("failed to decode config file: %w", err)
	}

	if cfg.Version != "" {
		s.version = cfg.Version
	}
	s.data = cfg.Sections
	if s.data == nil {
		s.data = make(map[string]map[string]any)
	}
	s.modified = false
	return nil
}

// Save writes the data to a temp file and renames it over the config file.
func (s *FileStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	raw, err := json.MarshalIndent(fileFormat{Version: s.version, Sections: s.data}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write temp config file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	s.modified = false
	return nil
}

// GetSection returns a copy of a section's data, empty if it was never set.
func (s *FileStore) GetSection(sectionID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if data, ok := s.data[sectionID]; ok {
		return maps.Clone(data), nil
	}
	return make(map[string]any), nil
}

// SetSection stores a copy of data under sectionID.
func (s *FileStore) SetSection(sectionID string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[sectionID] = maps.Clone(data)
	s.modified = true
	return nil
}

// GetAll returns a copy of every section.
func (s *FileStore) GetAll() (map[string]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSections(s.data), nil
}

// SetAll replaces every section with a copy of data.
func (s *FileStore) SetAll(data map[string]map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = cloneSections(data)
	s.modified = true
	return nil
}

// IsModified reports unsaved changes.
func (s *FileStore) IsModified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modified
}

// Path returns the config file path.
func (s *FileStore) Path() string {
	return s.path
}

func cloneSections(data map[string]map[string]any) map[string]map[string]any {
	out := make(map[string]map[string]any, len(data))
	for id, section := range data {
		out[id] = maps.Clone(section)
	}
	return out
}
