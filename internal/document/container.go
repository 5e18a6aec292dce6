// Package document implements the Document Encryptor (C3): per-document
// AEAD encryption bound to a tenant key, with integrity-tagged containers
// (§3.2) and batch/directory encryption (§4.3.3).
package document

import (
	"encoding/json"
	"time"

	cryptoDomain "github.com/allisson/legalvault/internal/crypto/domain"
	"github.com/allisson/legalvault/internal/container"
)

// ContainerVersion is the current on-disk container schema version (§6.1).
// Unknown versions encountered on read cause UnsupportedContainer.
const ContainerVersion = 1

// Container is the encrypted document container (§3.2): a single
// self-describing record with a deterministic AAD portion.
type Container struct {
	Version               int                    `json:"version"`
	Algorithm              cryptoDomain.Algorithm `json:"algorithm"`
	DocumentID             string                 `json:"document_id"`
	ComplianceLevel        string                 `json:"compliance_level"`
	OriginalFilename       string                 `json:"original_filename,omitempty"`
	Salt                   []byte                 `json:"salt"`
	Nonce                  []byte                 `json:"nonce"`
	Ciphertext             []byte                 `json:"ciphertext"`
	OriginalPlaintextHash  []byte                 `json:"original_plaintext_hash"`
	CreatedAt              time.Time              `json:"created_at"`
	KeyIDDigest            []byte                 `json:"key_id_digest"`
}

// BuildAAD returns the deterministic AAD bytes covering document_id,
// compliance_level, created_at, and the original filename if present
// (§4.3.1 step 5). Any mutation of these fields invalidates the AEAD tag.
func BuildAAD(documentID, complianceLevel string, createdAt time.Time, originalFilename string) []byte {
	var buf []byte
	buf = container.AppendLengthPrefixed(buf, []byte(documentID))
	buf = container.AppendLengthPrefixed(buf, []byte(complianceLevel))
	buf = container.AppendUint64(buf, uint64(createdAt.UTC().UnixNano()))
	buf = container.AppendLengthPrefixed(buf, []byte(originalFilename))
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
	if c.DocumentID == "" || len(c.Nonce) == 0 || len(c.Ciphertext) == 0 {
		return nil, ErrMalformedContainer
	}
	return &c, nil
}
