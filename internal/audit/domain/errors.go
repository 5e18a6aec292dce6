package domain

import "github.com/allisson/legalvault/internal/errors"

// Audit ledger errors.
var (
	// ErrSignatureInvalid indicates a signed event's HMAC does not match its contents.
	ErrSignatureInvalid = errors.Wrap(errors.ErrInvalidInput, "audit: signature invalid")

	// ErrStoreUnavailable indicates the indexed store could not be reached for a flush or query.
	ErrStoreUnavailable = errors.Wrap(errors.ErrInvalidInput, "audit: store unavailable")

	// ErrInvalidCriteria indicates a malformed search criteria.
	ErrInvalidCriteria = errors.Wrap(errors.ErrInvalidInput, "audit: invalid search criteria")
)
