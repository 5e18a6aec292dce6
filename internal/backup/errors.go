package backup

import "github.com/allisson/legalvault/internal/errors"

// Backup encryptor errors (§4.4, §7 "Source"/"Storage" kinds).
var (
	// ErrUnsupportedSource indicates a source_locator this build cannot dump.
	ErrUnsupportedSource = errors.Wrap(errors.ErrInvalidInput, "backup: unsupported source locator")

	// ErrDumpFailed indicates the dump step (sqlite or pg_dump) failed.
	ErrDumpFailed = errors.Wrap(errors.ErrInvalidInput, "backup: dump failed")

	// ErrRestorationSelfTestFailed indicates the post-backup read-back
	// verification (§4.4.2) did not validate.
	ErrRestorationSelfTestFailed = errors.Wrap(errors.ErrInvalidInput, "backup: restoration self-test failed")

	// ErrStorageFailure indicates the storage sink failed to persist or load a backup.
	ErrStorageFailure = errors.Wrap(errors.ErrInvalidInput, "backup: storage failure")

	// ErrMalformedContainer indicates a backup container missing required fields.
	ErrMalformedContainer = errors.Wrap(errors.ErrInvalidInput, "backup: malformed container")

	// ErrUnsupportedContainer indicates a container version this build does not understand.
	ErrUnsupportedContainer = errors.Wrap(errors.ErrInvalidInput, "backup: unsupported container version")
)
