package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dvcrn/modelgate-admin-client/internal/env"
	"github.com/dvcrn/modelgate-admin-client/internal/logger"
)

// FileStore keeps all keys in a single JSON object file.
type FileStore struct {
	mu       sync.Mutex
	filePath string

	// overlay is used instead of the file when credentials came from
	// MODELGATE_CREDS; writes then only live for the process lifetime.
	overlay map[string]string
}

// NewFileStore creates a file-based store. An empty path selects
// MODELGATE_CREDS_PATH or ~/.modelgate/credentials.json.
func NewFileStore(path string) (*FileStore, error) {
	store := &FileStore{filePath: path}
	if store.filePath == "" {
		if err := store.determineFilePath(); err != nil {
			return nil, err
		}
	}

	if _, err := os.Stat(store.filePath); os.IsNotExist(err) {
		if credsJSON, ok := env.Get("MODELGATE_CREDS"); ok {
			values := map[string]string{}
			if err := json.Unmarshal([]byte(credsJSON), &values); err != nil {
				return nil, fmt.Errorf("failed to parse MODELGATE_CREDS: %w", err)
			}
			logger.Get().Warn().Msg("Using credentials from MODELGATE_CREDS; refreshed tokens will not be persisted")
			store.overlay = values
		}
	}

	return store, nil
}

// determineFilePath sets the file path based on environment variables or defaults
func (f *FileStore) determineFilePath() error {
	if credsPath, ok := env.Get("MODELGATE_CREDS_PATH"); ok {
		f.filePath = credsPath
		return nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	f.filePath = filepath.Join(homeDir, ".modelgate", "credentials.json")
	return nil
}

// Get returns the value stored under key.
func (f *FileStore) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return "", err
	}
	return values[key], nil
}

// Set stores value under key and rewrites the file.
func (f *FileStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return err
	}
	values[key] = value
	return f.save(values)
}

// Remove deletes key. Removing a missing key is not an error.
func (f *FileStore) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return f.save(values)
}

// Name returns the store name
func (f *FileStore) Name() string {
	if f.overlay != nil {
		return "FileStore(env)"
	}
	return fmt.Sprintf("FileStore(%s)", f.filePath)
}

func (f *FileStore) load() (map[string]string, error) {
	if f.overlay != nil {
		return f.overlay, nil
	}

	data, err := os.ReadFile(f.filePath)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	values := map[string]string{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse credentials from file: %w", err)
	}
	return values, nil
}

func (f *FileStore) save(values map[string]string) error {
	if f.overlay != nil {
		f.overlay = values
		return nil
	}

	dir := filepath.Dir(f.filePath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	// Readers only ever see a complete file: write a sibling temp file, then rename.
	tmp, err := os.CreateTemp(dir, ".credentials-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credentials to %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.filePath); err != nil {
		return fmt.Errorf("failed to write credentials to %s: %w", f.filePath, err)
	}

	logger.Get().Debug().Str("path", f.filePath).Msg("Saved credentials")
	return nil
}
