package commands

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/allisson/legalvault/internal/app"
	"github.com/allisson/legalvault/internal/config"
)

// RunWorker's signal-wait loop needs a live audit database to exercise past
// Facade construction; this test covers the construction-error return path,
// which needs no database.
func TestRunWorkerPropagatesFacadeConstructionError(t *testing.T) {
	cfg := &config.Config{
		LogLevel:      "info",
		DBDriver:      "invalid_driver",
		VaultBackend:  "file",
		VaultFilePath: filepath.Join(t.TempDir(), "vault"),
	}
	container := app.NewContainer(cfg)

	err := RunWorker(context.Background(), container, "test")
	require.Error(t, err)
}
