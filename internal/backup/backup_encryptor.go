package backup

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/legalvault/internal/crypto/domain"
	"github.com/allisson/legalvault/internal/crypto/service"
)

// KeyResolver resolves the ACTIVE BACKUP-typed key for a given backup
// subtype (database/documents/system). Implemented by kms.Store.
type KeyResolver interface {
	GetOrCreateBackupKey(ctx context.Context, subtype string) ([]byte, string, error)
}

// Storage persists the backup container and its metadata sidecar (§6.2).
type Storage interface {
	PutContainer(ctx context.Context, backupID string, data []byte) error
	GetContainer(ctx context.Context, backupID string) ([]byte, error)
	PutMetadata(ctx context.Context, backupID string, data []byte) error
	GetMetadata(ctx context.Context, backupID string) ([]byte, error)
}

// Encryptor implements the Backup Encryptor (C4).
type Encryptor struct {
	keyResolver        KeyResolver
	storage            Storage
	aeadManager        service.AEADManager
	tempDir            string
	pgDumpPath         string
	pgDumpTimeout      time.Duration
	compressionEnabled bool
	retentionDays      int
}

// NewEncryptor creates a backup Encryptor.
func NewEncryptor(
	keyResolver KeyResolver,
	storage Storage,
	aeadManager service.AEADManager,
	tempDir, pgDumpPath string,
	pgDumpTimeout time.Duration,
	compressionEnabled bool,
	retentionDays int,
) *Encryptor {
	return &Encryptor{
		keyResolver:        keyResolver,
		storage:            storage,
		aeadManager:        aeadManager,
		tempDir:            tempDir,
		pgDumpPath:         pgDumpPath,
		pgDumpTimeout:      pgDumpTimeout,
		compressionEnabled: compressionEnabled,
		retentionDays:      retentionDays,
	}
}

func subtypeFor(backupType Type) string {
	switch backupType {
	case TypeDatabase:
		return "database"
	case TypeDocuments:
		return "documents"
	case TypeFullSystem:
		return "system"
	default:
		return "database"
	}
}

func (e *Encryptor) produceDump(ctx context.Context, sourceLocator string) ([]byte, error) {
	switch {
	case strings.HasPrefix(sourceLocator, "file://"):
		path := strings.TrimPrefix(sourceLocator, "file://")
		if !strings.HasSuffix(path, ".db") {
			return nil, ErrUnsupportedSource
		}
		return DumpSQLite(ctx, path)
	case strings.HasPrefix(sourceLocator, "postgresql://"), strings.HasPrefix(sourceLocator, "postgres://"):
		return DumpPostgres(ctx, e.pgDumpPath, sourceLocator, e.pgDumpTimeout)
	default:
		return nil, ErrUnsupportedSource
	}
}

// CreateBackup implements §4.4.1: dump, optionally compress, encrypt, and
// persist a backup container plus its metadata sidecar, followed by the
// mandatory restoration self-test (§4.4.2). Every temp file opened during
// this operation is removed on every exit path.
func (e *Encryptor) CreateBackup(ctx context.Context, backupType Type, sourceLocator string) (*Metadata, error) {
	backupID := uuid.Must(uuid.NewV7()).String()

	dump, err := e.produceDump(ctx, sourceLocator)
	if err != nil {
		return nil, err
	}

	tmpDumpPath := filepath.Join(e.tempDir, backupID+".dump")
	if err := os.WriteFile(tmpDumpPath, dump, 0o600); err == nil {
		defer os.Remove(tmpDumpPath)
	}

	var payload []byte
	compressionAlg := CompressionNone
	if e.compressionEnabled {
		compressed, err := compressGzip(dump)
		if err != nil {
			return nil, err
		}
		payload = compressed
		compressionAlg = CompressionGzip

		tmpCompressedPath := filepath.Join(e.tempDir, backupID+".dump.gz")
		if err := os.WriteFile(tmpCompressedPath, compressed, 0o600); err == nil {
			defer os.Remove(tmpCompressedPath)
		}
	} else {
		payload = dump
	}

	sum := sha256.Sum256(payload)
	plaintextHash := sum[:]
	createdAt := time.Now().UTC()

	subtype := subtypeFor(backupType)
	keyBytes, _, err := e.keyResolver.GetOrCreateBackupKey(ctx, subtype)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(keyBytes)

	cipher, err := e.aeadManager.CreateCipher(keyBytes, cryptoDomain.ChaCha20)
	if err != nil {
		return nil, err
	}

	aad := BuildAAD(backupID, backupType, createdAt, plaintextHash)
	ciphertext, nonce, err := cipher.Encrypt(payload, aad)
	if err != nil {
		return nil, err
	}

	keySum := sha256.Sum256(keyBytes)
	keyIDDigest := keySum[:16]

	c := &Container{
		Version:              ContainerVersion,
		Algorithm:            cryptoDomain.ChaCha20,
		BackupID:             backupID,
		BackupType:           backupType,
		CompressionAlgorithm: compressionAlg,
		OriginalSize:         int64(len(dump)),
		CompressedSize:       int64(len(payload)),
		Nonce:                nonce,
		Ciphertext:           ciphertext,
		PlaintextHash:        plaintextHash,
		CreatedAt:            createdAt,
		KeyIDDigest:          keyIDDigest,
	}

	data, err := c.Marshal()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if err := e.storage.PutContainer(ctx, backupID, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	meta := &Metadata{
		BackupID:             backupID,
		BackupType:           backupType,
		CreatedAt:            createdAt,
		OriginalSize:         c.OriginalSize,
		CompressedSize:       c.CompressedSize,
		PlaintextHash:        plaintextHash,
		KeyIDDigest:          keyIDDigest,
		Algorithm:            cryptoDomain.ChaCha20,
		CompressionAlgorithm: compressionAlg,
		RetentionUntil:       createdAt.AddDate(0, 0, e.retentionDays),
		VerificationStatus:   "pending",
	}

	selfTestErr := e.restorationSelfTest(ctx, c, keyBytes)
	if selfTestErr != nil {
		meta.VerificationStatus = "failed"
	} else {
		meta.VerificationStatus = "verified"
	}

	metaData, err := meta.MarshalMetadata()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if err := e.storage.PutMetadata(ctx, backupID, metaData); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	if selfTestErr != nil {
		return meta, selfTestErr
	}

	return meta, nil
}

// restorationSelfTest implements §4.4.2: decrypt the container, recompute
// and verify the plaintext hash, and confirm the decompressed bytes parse
// as the declared source format.
func (e *Encryptor) restorationSelfTest(ctx context.Context, c *Container, keyBytes []byte) error {
	plaintext, err := e.decrypt(c, keyBytes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRestorationSelfTestFailed, err)
	}

	if c.BackupType == TypeDatabase {
		if !bytes.Contains(plaintext, []byte("CREATE TABLE")) && !bytes.Contains(plaintext, []byte("INSERT INTO")) {
			return fmt.Errorf("%w: decompressed bytes do not look like a SQL dump", ErrRestorationSelfTestFailed)
		}
	}

	return nil
}

func (e *Encryptor) decrypt(c *Container, keyBytes []byte) ([]byte, error) {
	cipher, err := e.aeadManager.CreateCipher(keyBytes, c.Algorithm)
	if err != nil {
		return nil, err
	}

	aad := BuildAAD(c.BackupID, c.BackupType, c.CreatedAt, c.PlaintextHash)
	payload, err := cipher.Decrypt(c.Ciphertext, c.Nonce, aad)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	sum := sha256.Sum256(payload)
	if subtle.ConstantTimeCompare(sum[:], c.PlaintextHash) != 1 {
		return nil, cryptoDomain.ErrIntegrityFailure
	}

	if c.CompressionAlgorithm == CompressionGzip {
		return decompressGzip(payload)
	}
	return payload, nil
}

// RestoreBackup decrypts and decompresses a stored backup container,
// returning the original dump bytes.
func (e *Encryptor) RestoreBackup(ctx context.Context, backupID string) ([]byte, error) {
	data, err := e.storage.GetContainer(ctx, backupID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	c, err := UnmarshalContainer(data)
	if err != nil {
		return nil, err
	}

	subtype := subtypeFor(c.BackupType)
	keyBytes, _, err := e.keyResolver.GetOrCreateBackupKey(ctx, subtype)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(keyBytes)

	return e.decrypt(c, keyBytes)
}
