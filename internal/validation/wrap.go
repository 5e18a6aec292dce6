package validation

import "github.com/allisson/legalvault/internal/errors"

// WrapValidationError wraps a jellydator/validation error as the
// platform's generic ErrInvalidInput domain error.
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(errors.ErrInvalidInput, err.Error())
}
