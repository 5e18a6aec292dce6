package vault

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileBackend is a local-filesystem Backend. Each key_id is stored as two
// sibling files under baseDir: "<key_id>.key" (the opaque wrapped bytes,
// mode 0600) and "<key_id>.meta.json" (the metadata map, mode 0600).
// baseDir itself is created with mode 0700.
//
// Grounded on the Python LocalKeyVault's on-disk layout (key material file
// plus a side metadata record), adapted to plain files instead of an
// embedded sqlite catalogue: sqlite in this module is reserved for backup
// source dumps (C4), not vault bookkeeping.
type FileBackend struct {
	baseDir string
	locks   sync.Map // key_id -> *sync.Mutex, synchronizes writes per key_id
}

// NewFileBackend creates a FileBackend rooted at baseDir, creating the
// directory (mode 0700) if it does not exist.
func NewFileBackend(baseDir string) (*FileBackend, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("vault: failed to create base directory: %w", err)
	}
	return &FileBackend{baseDir: baseDir}, nil
}

func (f *FileBackend) lockFor(keyID string) *sync.Mutex {
	actual, _ := f.locks.LoadOrStore(keyID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

func (f *FileBackend) keyPath(keyID string) string {
	return filepath.Join(f.baseDir, keyID+".key")
}

func (f *FileBackend) metaPath(keyID string) string {
	return filepath.Join(f.baseDir, keyID+".meta.json")
}

// Put stores bytes and metadata under keyID, replacing any prior entry.
func (f *FileBackend) Put(_ context.Context, keyID string, data []byte, metadata Metadata) error {
	mu := f.lockFor(keyID)
	mu.Lock()
	defer mu.Unlock()

	if err := os.WriteFile(f.keyPath(keyID), data, 0600); err != nil {
		return fmt.Errorf("vault: failed to write key bytes: %w", err)
	}

	metaBytes, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("vault: failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(f.metaPath(keyID), metaBytes, 0600); err != nil {
		return fmt.Errorf("vault: failed to write metadata: %w", err)
	}

	return nil
}

// Get retrieves the bytes and metadata stored under keyID.
func (f *FileBackend) Get(_ context.Context, keyID string) ([]byte, Metadata, error) {
	mu := f.lockFor(keyID)
	mu.Lock()
	defer mu.Unlock()

	data, err := os.ReadFile(f.keyPath(keyID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrKeyNotFound
		}
		return nil, nil, fmt.Errorf("vault: failed to read key bytes: %w", err)
	}

	metaBytes, err := os.ReadFile(f.metaPath(keyID))
	if err != nil {
		if os.IsNotExist(err) {
			return data, Metadata{}, nil
		}
		return nil, nil, fmt.Errorf("vault: failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(metaBytes, &metadata); err != nil {
		return nil, nil, fmt.Errorf("vault: failed to unmarshal metadata: %w", err)
	}

	return data, metadata, nil
}

// Delete overwrites the key file with CSPRNG-sourced random bytes before
// unlinking it, then removes the metadata sidecar. Deleting a missing key
// is not an error.
func (f *FileBackend) Delete(_ context.Context, keyID string) error {
	mu := f.lockFor(keyID)
	mu.Lock()
	defer mu.Unlock()

	keyPath := f.keyPath(keyID)
	if info, err := os.Stat(keyPath); err == nil {
		randomized := make([]byte, info.Size())
		if _, err := rand.Read(randomized); err != nil {
			return fmt.Errorf("vault: failed to generate overwrite material: %w", err)
		}
		if err := os.WriteFile(keyPath, randomized, 0600); err != nil {
			return fmt.Errorf("vault: failed to overwrite key bytes before delete: %w", err)
		}
		if err := os.Remove(keyPath); err != nil {
			return fmt.Errorf("vault: failed to remove key file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("vault: failed to stat key file: %w", err)
	}

	if err := os.Remove(f.metaPath(keyID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("vault: failed to remove metadata file: %w", err)
	}

	return nil
}

// List returns every key_id in the vault, optionally filtered by
// metadata["key_type"].
func (f *FileBackend) List(ctx context.Context, typeFilter string) ([]string, error) {
	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to read base directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".key") {
			continue
		}
		keyID := strings.TrimSuffix(name, ".key")

		if typeFilter == "" {
			ids = append(ids, keyID)
			continue
		}

		_, metadata, err := f.Get(ctx, keyID)
		if err != nil {
			continue
		}
		if metadata["key_type"] == typeFilter {
			ids = append(ids, keyID)
		}
	}

	return ids, nil
}
