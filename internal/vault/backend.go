// Package vault defines the opaque persistent key-value store the key
// management store (C2) uses to hold wrapped key bytes and their metadata.
// Grounded on the Python KeyVaultInterface/LocalKeyVault pair in
// original_source's key_management_system.py: a minimal store/retrieve/
// delete/list contract, kept backend-agnostic so KMS never depends on how
// bytes are actually persisted.
package vault

import (
	"context"

	"github.com/allisson/legalvault/internal/errors"
)

// ErrKeyNotFound indicates no vault entry exists for the requested key_id.
var ErrKeyNotFound = errors.Wrap(errors.ErrNotFound, "vault: key not found")

// Metadata is the opaque string-keyed side-record a vault entry carries
// alongside its wrapped key bytes. The KMS layer is the only caller that
// assigns meaning to these keys; the vault itself never inspects them.
type Metadata map[string]string

// Backend is the vault contract (§4.2.6): four fallible operations over
// opaque key material. Implementations MUST be safe for concurrent use and,
// if backed by local storage, MUST synchronize writes per key_id and MUST
// overwrite bytes with CSPRNG-sourced random before unlinking on Delete.
type Backend interface {
	// Put stores bytes and metadata under keyID, replacing any prior entry.
	Put(ctx context.Context, keyID string, bytes []byte, metadata Metadata) error

	// Get retrieves the bytes and metadata stored under keyID.
	// Returns ErrKeyNotFound if no entry exists.
	Get(ctx context.Context, keyID string) ([]byte, Metadata, error)

	// Delete securely erases the entry stored under keyID. Deleting a
	// missing key is not an error.
	Delete(ctx context.Context, keyID string) error

	// List returns every key_id in the vault, optionally filtered to those
	// whose metadata["key_type"] equals typeFilter when typeFilter != "".
	List(ctx context.Context, typeFilter string) ([]string, error)
}
