package backup

import (
	"context"
	"os"
	"path/filepath"
)

// FileStorage persists backup containers and metadata sidecars as local
// files, mode 0600 in a 0700 directory (§6.2), mirroring vault.FileBackend's
// layout convention.
type FileStorage struct {
	baseDir string
}

// NewFileStorage creates a FileStorage rooted at baseDir.
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, err
	}
	return &FileStorage{baseDir: baseDir}, nil
}

func (s *FileStorage) containerPath(backupID string) string {
	return filepath.Join(s.baseDir, backupID+".backup")
}

func (s *FileStorage) metadataPath(backupID string) string {
	return filepath.Join(s.baseDir, backupID+".meta.json")
}

func (s *FileStorage) PutContainer(_ context.Context, backupID string, data []byte) error {
	return os.WriteFile(s.containerPath(backupID), data, 0o600)
}

func (s *FileStorage) GetContainer(_ context.Context, backupID string) ([]byte, error) {
	return os.ReadFile(s.containerPath(backupID))
}

func (s *FileStorage) PutMetadata(_ context.Context, backupID string, data []byte) error {
	return os.WriteFile(s.metadataPath(backupID), data, 0o600)
}

func (s *FileStorage) GetMetadata(_ context.Context, backupID string) ([]byte, error) {
	return os.ReadFile(s.metadataPath(backupID))
}
