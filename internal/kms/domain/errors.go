package domain

import "github.com/allisson/legalvault/internal/errors"

// Key-lifecycle errors (§7 "Key lifecycle" kind).
var (
	// ErrKeyNotFound indicates no key exists with the requested key_id.
	ErrKeyNotFound = errors.Wrap(errors.ErrNotFound, "key not found")

	// ErrNoActiveKey indicates no ACTIVE key exists for the requested tenant/type.
	ErrNoActiveKey = errors.Wrap(errors.ErrNotFound, "no active key for tenant")

	// ErrKeyAlreadyExists indicates an ACTIVE key already exists for this
	// (key_type, tenant) pair. create_client_matter_key returns the
	// existing key_id instead of this error, and no Store method
	// returns it.
	ErrKeyAlreadyExists = errors.Wrap(errors.ErrConflict, "active key already exists for tenant")

	// ErrKeyRevoked indicates the key is REVOKED and cannot be used.
	ErrKeyRevoked = errors.Wrap(errors.ErrForbidden, "key revoked")

	// ErrKeyCompromised indicates the key is COMPROMISED and cannot be used.
	ErrKeyCompromised = errors.Wrap(errors.ErrForbidden, "key compromised")

	// ErrRotationNotDue indicates rotate was called with force=false before rotation_due_at.
	ErrRotationNotDue = errors.Wrap(errors.ErrConflict, "rotation not due")

	// ErrApprovalRequired indicates the key type's rotation policy demands manual approval.
	ErrApprovalRequired = errors.Wrap(errors.ErrForbidden, "rotation approval required")

	// ErrInvalidTransition indicates an illegal key lifecycle state transition was requested.
	ErrInvalidTransition = errors.Wrap(errors.ErrConflict, "invalid key lifecycle transition")

	// ErrWrongKeyType indicates a key of the wrong type was supplied to an
	// operation that requires a specific type (e.g. a BACKUP key presented
	// where a document-tenant key is required, or vice versa).
	ErrWrongKeyType = errors.Wrap(errors.ErrInvalidInput, "wrong key type for this operation")

	// ErrTenantRequired indicates a CLIENT_MATTER key was requested without
	// a (client_id, matter_id) tenant scope.
	ErrTenantRequired = errors.Wrap(errors.ErrInvalidInput, "tenant scope required for this key type")
)
