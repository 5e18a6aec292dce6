// Package facade implements the Integration Facade (C7): the single
// entry point that composes the Key Management Store, Document Encryptor,
// Backup Encryptor, Audit Ledger, and Verification Monitor into the
// higher-level flows the rest of the platform calls (§4.7).
package facade

import (
	"context"
	"fmt"
	"os"
	"time"

	validation "github.com/jellydator/validation"

	"github.com/allisson/legalvault/internal/audit"
	auditDomain "github.com/allisson/legalvault/internal/audit/domain"
	"github.com/allisson/legalvault/internal/backup"
	cryptoDomain "github.com/allisson/legalvault/internal/crypto/domain"
	"github.com/allisson/legalvault/internal/crypto/service"
	"github.com/allisson/legalvault/internal/document"
	"github.com/allisson/legalvault/internal/kms"
	"github.com/allisson/legalvault/internal/metrics"
	appValidation "github.com/allisson/legalvault/internal/validation"
	"github.com/allisson/legalvault/internal/verify"
	vdomain "github.com/allisson/legalvault/internal/verify/domain"
)

// Facade composes C2-C6 into the platform's public operations (§4.7).
// It owns sub-components that are built before New is called; New itself
// constructs nothing. The construction order in §9 (MASTER key -> KMS ->
// audit ledger -> verification monitor) lives in the code that builds
// them, such as internal/app's Container.Facade.
type Facade struct {
	kms       *kms.Store
	documents *document.Encryptor
	backups   *backup.Encryptor
	ledger    *audit.Ledger
	monitor   *verify.Monitor
	tenants   *verify.MemoryTenantIndex
	metrics   metrics.BusinessMetrics
}

// New wires a Facade from its already-constructed sub-components. Callers
// (the cmd/app DI container) are responsible for the construction order
// itself; New only assembles the result.
func New(
	kmsStore *kms.Store,
	documents *document.Encryptor,
	backups *backup.Encryptor,
	ledger *audit.Ledger,
	monitor *verify.Monitor,
	tenants *verify.MemoryTenantIndex,
	businessMetrics metrics.BusinessMetrics,
) *Facade {
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	return &Facade{
		kms:       kmsStore,
		documents: documents,
		backups:   backups,
		ledger:    ledger,
		monitor:   monitor,
		tenants:   tenants,
		metrics:   businessMetrics,
	}
}

func (f *Facade) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	f.metrics.RecordOperation(ctx, "facade", operation, status)
	f.metrics.RecordDuration(ctx, "facade", operation, time.Since(start), status)
}

// encryptDocumentRequest validates encrypt_client_document's input (§4.7).
type encryptDocumentRequest struct {
	Path            string
	ClientID        string
	MatterID        string
	ComplianceLevel string
}

func (r *encryptDocumentRequest) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Path, validation.Required.Error("path is required"), appValidation.NotBlank),
		validation.Field(&r.ClientID, validation.Required.Error("client_id is required"), appValidation.NotBlank),
		validation.Field(&r.MatterID, validation.Required.Error("matter_id is required"), appValidation.NotBlank),
	)
	return appValidation.WrapValidationError(err)
}

// EncryptClientDocument implements §4.7's encrypt_client_document: ensure
// the tenant key exists (create-or-get), record KEY_ACCESSED, encrypt via
// C3, enqueue the document for verification sweeps, and audit the outcome.
func (f *Facade) EncryptClientDocument(
	ctx context.Context,
	path, clientID, matterID, complianceLevel string,
) (*document.EncryptionResult, error) {
	start := time.Now()
	req := &encryptDocumentRequest{Path: path, ClientID: clientID, MatterID: matterID, ComplianceLevel: complianceLevel}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	createResult, err := f.kms.CreateClientMatterKey(ctx, clientID, matterID, complianceLevel)
	if err != nil {
		f.record(ctx, "encrypt_client_document", start, err)
		return nil, err
	}

	_ = f.ledger.RecordKeyAccess(ctx, audit.KeyAccessRecord{
		KeyID: createResult.KeyID, AccessType: "create_or_get", ClientID: clientID, MatterID: matterID,
		AccessedAt: time.Now().UTC(), Granted: true,
	})

	data, err := os.ReadFile(path)
	if err != nil {
		_ = f.ledger.RecordFailedOperation(ctx, audit.FailedOperationRecord{
			OpType: "encrypt", FailureReason: err.Error(), FailedAt: time.Now().UTC(),
		})
		f.record(ctx, "encrypt_client_document", start, err)
		return nil, fmt.Errorf("%w: %v", document.ErrStorageFailure, err)
	}

	documentID := documentIDFor(path, clientID, matterID)
	tenant := document.Tenant{ClientID: clientID, MatterID: matterID}

	result, err := f.documents.Encrypt(ctx, data, documentID, complianceLevel, tenant, path)
	if err != nil {
		_ = f.ledger.RecordFailedOperation(ctx, audit.FailedOperationRecord{
			OpType: "encrypt", DocumentID: documentID, KeyID: createResult.KeyID,
			FailureReason: err.Error(), FailedAt: time.Now().UTC(),
		})
		_, _ = f.ledger.LogEvent(ctx, auditDomain.EventEncryptionFailed, map[string]any{
			"failure_reason": err.Error(),
		}, audit.LogEventParams{ClientID: clientID, MatterID: matterID, DocumentID: documentID, KeyID: createResult.KeyID})
		f.record(ctx, "encrypt_client_document", start, err)
		return nil, err
	}

	if f.tenants != nil {
		f.tenants.Record(documentID, tenant)
	}

	_, _ = f.ledger.LogEvent(ctx, auditDomain.EventDocumentEncrypted, map[string]any{
		"compliance_level": complianceLevel,
	}, audit.LogEventParams{ClientID: clientID, MatterID: matterID, DocumentID: documentID, KeyID: result.KeyID})

	if f.monitor != nil {
		go func() {
			f.monitor.VerifyDocument(context.Background(), documentID, vdomain.LevelBasic)
		}()
	}

	f.record(ctx, "encrypt_client_document", start, nil)
	return result, nil
}

// DecryptClientDocument implements §4.7's decrypt_client_document: resolve
// the tenant key (audited as a key access), decrypt via C3, then check the
// decryption-attempt burst window for this document before returning
// plaintext. Plaintext is never logged.
func (f *Facade) DecryptClientDocument(
	ctx context.Context,
	documentID, clientID, matterID, userID string,
) ([]byte, error) {
	start := time.Now()
	if documentID == "" || clientID == "" || matterID == "" {
		err := document.ErrInvalidInput
		f.record(ctx, "decrypt_client_document", start, err)
		return nil, err
	}

	tenant := document.Tenant{ClientID: clientID, MatterID: matterID}
	plaintext, err := f.documents.Decrypt(ctx, documentID, tenant)

	granted := err == nil
	failureReason := ""
	if err != nil {
		failureReason = err.Error()
	}
	_ = f.ledger.RecordKeyAccess(ctx, audit.KeyAccessRecord{
		AccessType: "decrypt", AccessedBy: userID, ClientID: clientID, MatterID: matterID,
		AccessedAt: time.Now().UTC(), Granted: granted, FailureReason: failureReason,
	})

	if err != nil {
		_ = f.ledger.RecordFailedOperation(ctx, audit.FailedOperationRecord{
			OpType: "decrypt", DocumentID: documentID, FailureReason: err.Error(), FailedAt: time.Now().UTC(),
		})
		_, _ = f.ledger.LogEvent(ctx, auditDomain.EventDecryptionFailed, map[string]any{
			"failure_reason": err.Error(),
		}, audit.LogEventParams{ClientID: clientID, MatterID: matterID, DocumentID: documentID, UserID: userID})
		f.record(ctx, "decrypt_client_document", start, err)
		return nil, err
	}

	_, _ = f.ledger.LogEvent(ctx, auditDomain.EventDocumentDecrypted, nil,
		audit.LogEventParams{ClientID: clientID, MatterID: matterID, DocumentID: documentID, UserID: userID})

	if _, trackErr := f.ledger.TrackDecryptionAttempts(ctx, documentID, time.Hour); trackErr != nil {
		f.record(ctx, "decrypt_client_document", start, trackErr)
		return plaintext, nil
	}

	f.record(ctx, "decrypt_client_document", start, nil)
	return plaintext, nil
}

// CreateEncryptedBackup implements §4.7's create_encrypted_backup: run C4's
// create-then-self-test sequence and audit both outcomes.
func (f *Facade) CreateEncryptedBackup(
	ctx context.Context,
	backupType backup.Type,
	sourceLocator string,
) (*backup.Metadata, error) {
	start := time.Now()
	meta, err := f.backups.CreateBackup(ctx, backupType, sourceLocator)
	if err != nil && meta == nil {
		_, _ = f.ledger.LogEvent(ctx, auditDomain.EventEncryptionFailed, map[string]any{
			"failure_reason": err.Error(), "backup_type": string(backupType),
		}, audit.LogEventParams{})
		f.record(ctx, "create_encrypted_backup", start, err)
		return nil, err
	}

	_, _ = f.ledger.LogEvent(ctx, auditDomain.EventBackupEncrypted, map[string]any{
		"backup_type": string(backupType), "backup_id": meta.BackupID,
	}, audit.LogEventParams{})

	selfTestEvent := auditDomain.EventBackupVerified
	details := map[string]any{"backup_id": meta.BackupID, "verification_status": meta.VerificationStatus}
	if err != nil {
		selfTestEvent = auditDomain.EventVerificationFailure
		details["failure_reason"] = err.Error()
	}
	_, _ = f.ledger.LogEvent(ctx, selfTestEvent, details, audit.LogEventParams{})

	f.record(ctx, "create_encrypted_backup", start, err)
	return meta, err
}

// RotateKeysForClientMatter implements §4.7's rotate_keys_for_client_matter:
// resolve the tenant's current ACTIVE key, call C2.Rotate, and audit.
func (f *Facade) RotateKeysForClientMatter(ctx context.Context, clientID, matterID string, force bool) (string, error) {
	start := time.Now()
	keyBytes, keyID, err := f.kms.GetClientMatterKey(ctx, clientID, matterID)
	if err != nil {
		f.record(ctx, "rotate_keys_for_client_matter", start, err)
		return "", err
	}
	cryptoDomain.Zero(keyBytes)

	newKeyID, err := f.kms.Rotate(ctx, keyID, force)
	if err != nil {
		_, _ = f.ledger.LogEvent(ctx, auditDomain.EventEncryptionFailed, map[string]any{
			"failure_reason": err.Error(),
		}, audit.LogEventParams{ClientID: clientID, MatterID: matterID, KeyID: keyID})
		f.record(ctx, "rotate_keys_for_client_matter", start, err)
		return "", err
	}

	_, _ = f.ledger.LogEvent(ctx, auditDomain.EventKeyRotated, map[string]any{
		"previous_key_id": keyID,
	}, audit.LogEventParams{ClientID: clientID, MatterID: matterID, KeyID: newKeyID})

	f.record(ctx, "rotate_keys_for_client_matter", start, nil)
	return newKeyID, nil
}

// SystemStatus implements §4.7's system_status: aggregates key rotation
// backlog, recent audit event volume, and the number of recent
// ENCRYPTION_FAILED/DECRYPTION_FAILED audit events. The verification
// monitor is not consulted.
type SystemStatus struct {
	KeysDueForRotation int
	OverdueKeys        int
	RecentEventCount   int
	RecentFailureCount int
}

func (f *Facade) SystemStatus(ctx context.Context) (*SystemStatus, error) {
	due, err := f.kms.ListDueForRotation(ctx)
	if err != nil {
		return nil, err
	}
	overdue := 0
	for _, d := range due {
		if d.Overdue {
			overdue++
		}
	}

	now := time.Now().UTC()
	report, err := f.ledger.GenerateComplianceReport(ctx, "status", now.Add(-24*time.Hour), now, "", "")
	if err != nil {
		return nil, err
	}

	failureCount := 0
	for _, count := range report.FailureTypeBreakdown {
		failureCount += count
	}

	return &SystemStatus{
		KeysDueForRotation: len(due),
		OverdueKeys:        overdue,
		RecentEventCount:   report.TotalEvents,
		RecentFailureCount: failureCount,
	}, nil
}

// PerformComprehensiveAudit runs an immediate COMPREHENSIVE verification
// sweep and a compliance report over the given window, for on-demand audit
// requests outside the regular scheduler cadence.
func (f *Facade) PerformComprehensiveAudit(ctx context.Context, start, end time.Time) (*verify.SweepResult, *audit.ComplianceReport, error) {
	sweep, err := f.monitor.Sweep(ctx, vdomain.LevelComprehensive)
	if err != nil {
		return nil, nil, err
	}
	report, err := f.ledger.GenerateComplianceReport(ctx, "comprehensive", start, end, "", "")
	if err != nil {
		return sweep, nil, err
	}
	return sweep, report, nil
}

// EncryptClientDocumentDirectory batch-encrypts every allowed file under
// sourceDir for one tenant (§4.3.3), reusing the same create-or-get key,
// verification-enqueue, and audit behavior EncryptClientDocument applies
// to a single file. One file's failure does not stop the others; each
// outcome is audited individually.
func (f *Facade) EncryptClientDocumentDirectory(
	ctx context.Context,
	sourceDir, clientID, matterID, complianceLevel string,
	allowedExtensions []string,
	workers int,
) (*document.BatchResult, error) {
	start := time.Now()

	createResult, err := f.kms.CreateClientMatterKey(ctx, clientID, matterID, complianceLevel)
	if err != nil {
		f.record(ctx, "encrypt_client_document_directory", start, err)
		return nil, err
	}
	_ = f.ledger.RecordKeyAccess(ctx, audit.KeyAccessRecord{
		KeyID: createResult.KeyID, AccessType: "create_or_get", ClientID: clientID, MatterID: matterID,
		AccessedAt: time.Now().UTC(), Granted: true,
	})

	tenant := document.Tenant{ClientID: clientID, MatterID: matterID}
	result, err := document.BatchEncrypt(ctx, f.documents, sourceDir, tenant, complianceLevel, allowedExtensions, workers)
	if err != nil {
		f.record(ctx, "encrypt_client_document_directory", start, err)
		return nil, err
	}

	for _, fr := range result.Results {
		if fr.Err != nil {
			_ = f.ledger.RecordFailedOperation(ctx, audit.FailedOperationRecord{
				OpType: "encrypt", DocumentID: fr.DocumentID, KeyID: createResult.KeyID,
				FailureReason: fr.Err.Error(), FailedAt: time.Now().UTC(),
			})
			_, _ = f.ledger.LogEvent(ctx, auditDomain.EventEncryptionFailed, map[string]any{
				"failure_reason": fr.Err.Error(), "relative_path": fr.RelativePath,
			}, audit.LogEventParams{ClientID: clientID, MatterID: matterID, DocumentID: fr.DocumentID, KeyID: createResult.KeyID})
			continue
		}

		if f.tenants != nil {
			f.tenants.Record(fr.DocumentID, tenant)
		}
		_, _ = f.ledger.LogEvent(ctx, auditDomain.EventDocumentEncrypted, map[string]any{
			"compliance_level": complianceLevel, "relative_path": fr.RelativePath,
		}, audit.LogEventParams{ClientID: clientID, MatterID: matterID, DocumentID: fr.DocumentID, KeyID: createResult.KeyID})

		if f.monitor != nil {
			documentID := fr.DocumentID
			go func() {
				f.monitor.VerifyDocument(context.Background(), documentID, vdomain.LevelBasic)
			}()
		}
	}

	f.record(ctx, "encrypt_client_document_directory", start, nil)
	return result, nil
}

// documentIDFor derives a stable document_id from a tenant-scoped path, so
// re-encrypting the same file for the same tenant addresses the same
// container (mirrors document.documentIDForPath's per-path hashing).
func documentIDFor(path, clientID, matterID string) string {
	sum := service.SHA256([]byte(clientID + "/" + matterID + "/" + path))
	return fmt.Sprintf("%x", sum)
}

