package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound indicates the key has no persisted value.
var ErrNotFound = errors.New("key not found")

// Store is a durable string key-value store. Both operations are fallible;
// callers treat failures as non-fatal and keep operating in memory.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

const stateFileName = "state.json"

// FileStore keeps all records in a single JSON document, rewritten
// atomically on every Set. Writes are last-writer-wins.
type FileStore struct {
	mu      sync.Mutex
	path    string
	records map[string]string
}

// OpenFile opens the state store under the user config directory for
// appName. A corrupt state file is replaced by an empty store and the parse
// failure is reported so the caller can log it.
func OpenFile(appName string) (*FileStore, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user config dir: %w", err)
	}
	return OpenFileAt(filepath.Join(configDir, appName, stateFileName))
}

// OpenFileAt opens the state store at an explicit path.
func OpenFileAt(path string) (*FileStore, error) {
	store := &FileStore{
		path:    path,
		records: make(map[string]string),
	}

	rawData, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return store, nil
		}
		return store, fmt.Errorf("read state file: %w", err)
	}

	if err := json.Unmarshal(rawData, &store.records); err != nil {
		store.records = make(map[string]string)
		return store, fmt.Errorf("parse state file: %w", err)
	}
	return store, nil
}

func (store *FileStore) Get(key string) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	value, ok := store.records[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (store *FileStore) Set(key, value string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.records[key] = value
	return store.flushLocked()
}

func (store *FileStore) flushLocked() error {
	serialized, err := json.MarshalIndent(store.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(store.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmpPath := store.path + ".tmp"
	if err := os.WriteFile(tmpPath, serialized, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmpPath, store.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// MemoryStore is an in-memory Store used as the persistence-free fallback
// and in tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]string
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[string]string)}
}

func (store *MemoryStore) Get(key string) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	value, ok := store.records[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (store *MemoryStore) Set(key, value string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.records[key] = value
	return nil
}
