package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	stateFile = "state.json"

	// Keys held in the state file.
	KeyActiveEnvironment = "activeEnvironmentId"
	KeyPreferences       = "preferences"
)

// JSONStorage is the scalar key-value layer: a single JSON object on disk
// mapping fixed keys to arbitrary JSON values. Absent keys are not errors.
type JSONStorage struct {
	mu   sync.Mutex
	path string
}

// OpenJSON returns the key-value store backed by state.json in dataDir.
func OpenJSON(dataDir string) (*JSONStorage, error) {
	if err := os.MkdirAll(dataDir, secureDirMode); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &JSONStorage{path: filepath.Join(dataDir, stateFile)}, nil
}

// Path returns the location of the state file.
func (s *JSONStorage) Path() string {
	return s.path
}

func (s *JSONStorage) load() (map[string]json.RawMessage, error) {
	values := make(map[string]json.RawMessage)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return values, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return values, nil
	}

	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", stateFile, err)
	}
	return values, nil
}

// save writes values to a temp file and renames it over the state file.
func (s *JSONStorage) save(values map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), stateFile+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(secureFileMode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

// Get decodes the value stored under key into dst. It reports false when
// the key is absent, leaving dst untouched.
func (s *JSONStorage) Get(key string, dst any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return false, err
	}
	raw, ok := values[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return true, nil
}

// Set stores value under key.
func (s *JSONStorage) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = raw
	return s.save(values)
}

// Reset replaces the state file with an empty object without reading it,
// so it also recovers a file that no longer parses.
func (s *JSONStorage) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(map[string]json.RawMessage{})
}

// Delete removes keys in a single write. Missing keys are ignored.
func (s *JSONStorage) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	for _, key := range keys {
		delete(values, key)
	}
	return s.save(values)
}
