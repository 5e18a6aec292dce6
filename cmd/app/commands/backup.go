package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/allisson/legalvault/internal/backup"
	"github.com/allisson/legalvault/internal/facade"
)

// parseBackupType converts a backup type string to backup.Type.
func parseBackupType(backupType string) (backup.Type, error) {
	switch backupType {
	case "database":
		return backup.TypeDatabase, nil
	case "documents":
		return backup.TypeDocuments, nil
	case "full-system":
		return backup.TypeFullSystem, nil
	default:
		return "", fmt.Errorf("invalid backup type: %s (valid options: database, documents, full-system)", backupType)
	}
}

// RunCreateBackup implements create_encrypted_backup (§4.7).
func RunCreateBackup(
	ctx context.Context,
	f *facade.Facade,
	logger *slog.Logger,
	writer io.Writer,
	backupTypeStr, sourceLocator string,
) error {
	backupType, err := parseBackupType(backupTypeStr)
	if err != nil {
		return err
	}

	meta, err := f.CreateEncryptedBackup(ctx, backupType, sourceLocator)
	if err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	logger.Info("backup created",
		slog.String("backup_id", meta.BackupID),
		slog.String("verification_status", meta.VerificationStatus),
	)
	_, _ = fmt.Fprintf(writer, "backup_id=%s verification_status=%s\n", meta.BackupID, meta.VerificationStatus)
	return nil
}
