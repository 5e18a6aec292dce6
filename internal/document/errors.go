package document

import "github.com/allisson/legalvault/internal/errors"

// Document encryptor errors (§4.3.1, §4.3.2, §7 "Storage" kind).
var (
	// ErrMissingKey indicates the document's tenant key could not be resolved.
	ErrMissingKey = errors.Wrap(errors.ErrNotFound, "document: missing key")

	// ErrUnsupportedContainer indicates a container version this build does not understand.
	ErrUnsupportedContainer = errors.Wrap(errors.ErrInvalidInput, "document: unsupported container version")

	// ErrMalformedContainer indicates a container missing required fields.
	ErrMalformedContainer = errors.Wrap(errors.ErrInvalidInput, "document: malformed container")

	// ErrStorageFailure indicates the storage sink failed to persist or load a container.
	ErrStorageFailure = errors.Wrap(errors.ErrInvalidInput, "document: storage failure")

	// ErrInvalidInput indicates invalid encrypt/decrypt input (e.g. empty document_id).
	ErrInvalidInput = errors.Wrap(errors.ErrInvalidInput, "document: invalid input")

	// ErrWrongKeyType indicates a BACKUP-typed key was presented for a document operation.
	ErrWrongKeyType = errors.Wrap(errors.ErrInvalidInput, "document: wrong key type")
)
