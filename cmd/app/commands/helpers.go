// Package commands contains CLI command implementations for the application.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
)

// IO bundles the streams commands write to, so tests can substitute buffers.
type IO struct {
	Writer io.Writer
}

// DefaultIO returns the IO commands use outside of tests: stdout.
func DefaultIO() IO {
	return IO{Writer: os.Stdout}
}

// closeMigrate closes the migration instance and logs any errors.
func closeMigrate(migrate *migrate.Migrate, logger *slog.Logger) {
	sourceError, databaseError := migrate.Close()
	if sourceError != nil || databaseError != nil {
		logger.Error(
			"failed to close the migrate",
			slog.Any("source_error", sourceError),
			slog.Any("database_error", databaseError),
		)
	}
}
