package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/allisson/legalvault/internal/facade"
)

// RunEncryptDocument implements encrypt_client_document (§4.7): reads path
// and prints the resulting container reference and key id.
func RunEncryptDocument(
	ctx context.Context,
	f *facade.Facade,
	logger *slog.Logger,
	writer io.Writer,
	path, clientID, matterID, complianceLevel string,
) error {
	result, err := f.EncryptClientDocument(ctx, path, clientID, matterID, complianceLevel)
	if err != nil {
		return fmt.Errorf("failed to encrypt document: %w", err)
	}

	logger.Info("document encrypted",
		slog.String("document_id", result.DocumentID),
		slog.String("key_id", result.KeyID),
	)
	_, _ = fmt.Fprintf(writer, "document_id=%s key_id=%s\n", result.DocumentID, result.KeyID)
	return nil
}

// RunDecryptDocument implements decrypt_client_document (§4.7): writes the
// recovered plaintext to outPath.
func RunDecryptDocument(
	ctx context.Context,
	f *facade.Facade,
	logger *slog.Logger,
	documentID, clientID, matterID, userID, outPath string,
) error {
	plaintext, err := f.DecryptClientDocument(ctx, documentID, clientID, matterID, userID)
	if err != nil {
		return fmt.Errorf("failed to decrypt document: %w", err)
	}

	if err := os.WriteFile(outPath, plaintext, 0600); err != nil {
		return fmt.Errorf("failed to write decrypted document: %w", err)
	}

	logger.Info("document decrypted", slog.String("document_id", documentID), slog.String("out", outPath))
	return nil
}

// RunBatchEncrypt implements §4.3.3's directory encryption: encrypts every
// allowed file under sourceDir for one tenant and reports per-file outcomes.
func RunBatchEncrypt(
	ctx context.Context,
	f *facade.Facade,
	logger *slog.Logger,
	writer io.Writer,
	sourceDir, clientID, matterID, complianceLevel string,
	allowedExtensions []string,
	workers int,
) error {
	result, err := f.EncryptClientDocumentDirectory(ctx, sourceDir, clientID, matterID, complianceLevel, allowedExtensions, workers)
	if err != nil {
		return fmt.Errorf("failed to batch encrypt: %w", err)
	}

	succeeded := result.Succeeded()
	failed := result.Failed()

	for _, fr := range succeeded {
		_, _ = fmt.Fprintf(writer, "OK   %s -> %s\n", fr.RelativePath, fr.DocumentID)
	}
	for _, fr := range failed {
		_, _ = fmt.Fprintf(writer, "FAIL %s: %v\n", fr.RelativePath, fr.Err)
	}

	logger.Info("batch encrypt completed",
		slog.Int("succeeded", len(succeeded)),
		slog.Int("failed", len(failed)),
	)

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d files failed to encrypt", len(failed), len(result.Results))
	}
	return nil
}
