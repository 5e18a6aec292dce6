// Package backup implements the Backup Encryptor (C4): dump, optional
// compression, and AEAD encryption of database/document/system backups,
// with a mandatory post-backup restoration self-test (§4.4.1, §4.4.2).
// Backup keys are drawn from a namespace disjoint from document keys
// (§4.4.3), resolved through kms.Store.GetOrCreateBackupKey.
package backup

import (
	"encoding/json"
	"time"

	"github.com/allisson/legalvault/internal/container"
	cryptoDomain "github.com/allisson/legalvault/internal/crypto/domain"
)

// ContainerVersion is the current on-disk backup container schema version.
const ContainerVersion = 1

// Type identifies what a backup contains (§3.3).
type Type string

const (
	TypeDatabase   Type = "DATABASE"
	TypeDocuments  Type = "DOCUMENTS"
	TypeFullSystem Type = "FULL_SYSTEM"
)

// CompressionAlgorithm identifies how the dump was compressed before
// encryption, or "none" if it was encrypted as produced.
type CompressionAlgorithm string

const (
	CompressionNone CompressionAlgorithm = "none"
	CompressionGzip CompressionAlgorithm = "gzip"
)

// Container is the encrypted backup container (§3.3): extends the document
// container's shape with backup-specific fields.
type Container struct {
	Version              int                   `json:"version"`
	Algorithm            cryptoDomain.Algorithm `json:"algorithm"`
	BackupID             string                `json:"backup_id"`
	BackupType           Type                  `json:"backup_type"`
	CompressionAlgorithm CompressionAlgorithm  `json:"compression_algorithm"`
	OriginalSize         int64                 `json:"original_size"`
	CompressedSize       int64                 `json:"compressed_size"`
	Salt                 []byte                `json:"salt,omitempty"`
	Nonce                []byte                `json:"nonce"`
	Ciphertext           []byte                `json:"ciphertext"`
	PlaintextHash        []byte                `json:"plaintext_hash"`
	CreatedAt            time.Time             `json:"created_at"`
	KeyIDDigest          []byte                `json:"key_id_digest"`
}

// Metadata is the sibling metadata record persisted alongside the container
// (§6.2): {backup_id, backup_type, created_at, sizes, hash, key_id_digest,
// algorithm, compression, retention_until, verification_status}.
type Metadata struct {
	BackupID             string                `json:"backup_id"`
	BackupType           Type                  `json:"backup_type"`
	CreatedAt            time.Time             `json:"created_at"`
	OriginalSize         int64                 `json:"original_size"`
	CompressedSize       int64                 `json:"compressed_size"`
	PlaintextHash        []byte                `json:"plaintext_hash"`
	KeyIDDigest          []byte                `json:"key_id_digest"`
	Algorithm            cryptoDomain.Algorithm `json:"algorithm"`
	CompressionAlgorithm CompressionAlgorithm  `json:"compression_algorithm"`
	RetentionUntil       time.Time             `json:"retention_until"`
	VerificationStatus   string                `json:"verification_status"`
}

// BuildAAD returns the deterministic AAD bytes covering backup_id,
// backup_type, created_at, and plaintext_hash (§4.4.1 step 5).
func BuildAAD(backupID string, backupType Type, createdAt time.Time, plaintextHash []byte) []byte {
	var buf []byte
	buf = container.AppendLengthPrefixed(buf, []byte(backupID))
	buf = container.AppendLengthPrefixed(buf, []byte(backupType))
	buf = container.AppendUint64(buf, uint64(createdAt.UTC().UnixNano()))
	buf = container.AppendLengthPrefixed(buf, plaintextHash)
	return buf
}

// Marshal serializes the container to its on-disk JSON form.
func (c *Container) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalContainer parses the on-disk container form, rejecting any
// version other than ContainerVersion.
func UnmarshalContainer(data []byte) (*Container, error) {
	var c Container
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, ErrMalformedContainer
	}
	if c.Version != ContainerVersion {
		return nil, ErrUnsupportedContainer
	}
	if c.BackupID == "" || len(c.Nonce) == 0 || len(c.Ciphertext) == 0 {
		return nil, ErrMalformedContainer
	}
	return &c, nil
}

// MarshalMetadata serializes the metadata sidecar to JSON.
func (m *Metadata) MarshalMetadata() ([]byte, error) {
	return json.Marshal(m)
}
