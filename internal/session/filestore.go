// ABOUTME: Durable token persistence in the XDG config directory
// ABOUTME: Writes the token file atomically with owner-only permissions

package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const appDir = "technoshield"

// DefaultConfigDir returns the config directory following XDG_CONFIG_HOME.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appDir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appDir)
}

// DefaultTokenPath returns the token file location inside DefaultConfigDir.
func DefaultTokenPath() string {
	return filepath.Join(DefaultConfigDir(), "token.json")
}

type tokenFile struct {
	Token   string    `json:"token"`
	SavedAt time.Time `json:"saved_at"`
}

// FileStore persists the token as a small JSON document.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the token file location.
func (f *FileStore) Path() string {
	return f.path
}

// Load returns the saved token, or "" if none is saved.
func (f *FileStore) Load() (string, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	var saved tokenFile
	if err := json.Unmarshal(data, &saved); err != nil {
		// Corrupt file, treat as logged out
		return "", nil
	}
	return saved.Token, nil
}

// Save writes the token atomically: temp file in the same dir, then rename.
func (f *FileStore) Save(token string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(tokenFile{Token: token, SavedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".token-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path)
}

// Clear removes the token file. A missing file is not an error.
func (f *FileStore) Clear() error {
	err := os.Remove(f.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// MemoryStore is an in-process Persister for tests and ephemeral sessions.
type MemoryStore struct {
	mu    sync.Mutex
	token string
	saves int
}

// NewMemoryStore creates a MemoryStore preloaded with token.
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

func (m *MemoryStore) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryStore) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.saves++
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

// Saves returns how many times Save was called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
