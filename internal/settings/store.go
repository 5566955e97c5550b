package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bruwbird/codex/internal/atomicfile"
)

// StateDirName is the workspace directory holding the settings file and its
// lock.
const StateDirName = ".codex"

const settingsFileName = "settings.json"

// Store is a workspace-scoped key/value store. It performs no validation;
// callers go through Apply for user input.
type Store interface {
	Lookup(key Key) (json.RawMessage, bool, error)
	Set(key Key, value any) error
}

// FileStore persists settings as a JSON object under the workspace directory.
// Every lookup reads the file so that writes by other processes are observed.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(workspace string) *FileStore {
	return &FileStore{path: filepath.Join(workspace, StateDirName, settingsFileName)}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Lookup(key Key) (json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.readLocked()
	if err != nil {
		return nil, false, err
	}
	raw, ok := values[string(key)]
	return raw, ok, nil
}

func (s *FileStore) Set(key Key, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return atomicfile.WithLock(s.path+".lock", func() error {
		values, readErr := s.readLocked()
		if readErr != nil {
			return readErr
		}
		values[string(key)] = raw

		b, marshalErr := json.MarshalIndent(values, "", "  ")
		if marshalErr != nil {
			return marshalErr
		}
		return atomicfile.Write(s.path, b, 0o600)
	})
}

func (s *FileStore) readLocked() (map[string]json.RawMessage, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]json.RawMessage), nil
		}
		return nil, err
	}

	values := make(map[string]json.RawMessage)
	if len(b) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(b, &values); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", s.path, err)
	}
	return values, nil
}

// Memory is an in-process Store.
type Memory struct {
	mu     sync.RWMutex
	values map[Key]json.RawMessage
}

func NewMemory() *Memory {
	return &Memory{values: make(map[Key]json.RawMessage)}
}

func (m *Memory) Lookup(key Key) (json.RawMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.values[key]
	return raw, ok, nil
}

func (m *Memory) Set(key Key, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = raw
	return nil
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*Memory)(nil)
)
