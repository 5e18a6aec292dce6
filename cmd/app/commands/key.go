package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/allisson/legalvault/internal/facade"
	"github.com/allisson/legalvault/internal/kms"
)

// RunListDueForRotation implements list_due_for_rotation (§4.2.1).
func RunListDueForRotation(ctx context.Context, store *kms.Store, writer io.Writer) error {
	infos, err := store.ListDueForRotation(ctx)
	if err != nil {
		return fmt.Errorf("failed to list keys due for rotation: %w", err)
	}

	for _, info := range infos {
		status := "ok"
		if info.Overdue {
			status = "OVERDUE"
		}
		_, _ = fmt.Fprintf(writer, "%s\t%s\tage=%dd\tdue_in=%dd\t%s\n",
			info.KeyID, info.KeyType, info.AgeDays, info.DaysUntilRotation, status)
	}
	return nil
}

// RunRotateClientMatterKey implements rotate_keys_for_client_matter (§4.7).
func RunRotateClientMatterKey(
	ctx context.Context,
	f *facade.Facade,
	logger *slog.Logger,
	writer io.Writer,
	clientID, matterID string,
	force bool,
) error {
	newKeyID, err := f.RotateKeysForClientMatter(ctx, clientID, matterID, force)
	if err != nil {
		return fmt.Errorf("failed to rotate key: %w", err)
	}

	logger.Info("client matter key rotated", slog.String("new_key_id", newKeyID))
	_, _ = fmt.Fprintf(writer, "new_key_id=%s\n", newKeyID)
	return nil
}

// RunRevokeKey implements key revocation (§4.2.5 REVOKED transition).
func RunRevokeKey(ctx context.Context, store *kms.Store, logger *slog.Logger, keyID, reason string) error {
	if err := store.Revoke(ctx, keyID, reason); err != nil {
		return fmt.Errorf("failed to revoke key: %w", err)
	}
	logger.Info("key revoked", slog.String("key_id", keyID), slog.String("reason", reason))
	return nil
}
