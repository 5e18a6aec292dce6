package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "load default configuration",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, "postgres", cfg.DBDriver)
				assert.Equal(t, 25, cfg.DBMaxOpenConnections)
				assert.Equal(t, 5, cfg.DBMaxIdleConnections)
				assert.Equal(t, 5*time.Minute, cfg.DBConnMaxLifetime)
				assert.Equal(t, "", cfg.KMSProvider)
				assert.Equal(t, "", cfg.KMSKeyURI)
				assert.Equal(t, "file", cfg.VaultBackend)
				assert.Equal(t, 100000, cfg.DocumentKDFIterations)
				assert.Equal(t, 150000, cfg.BackupKDFIterations)
				assert.Equal(t, 100, cfg.AuditBufferSize)
				assert.Equal(t, 5*time.Second, cfg.AuditFlushInterval)
				assert.Equal(t, 2555, cfg.AuditRetentionDays)
				assert.Equal(t, 300*time.Second, cfg.VerificationInterval)
				assert.Equal(t, 3, cfg.VerificationMaxRemediation)
				assert.Equal(t, true, cfg.MetricsEnabled)
				assert.Equal(t, "legalvault", cfg.MetricsNamespace)
				assert.Equal(t, true, cfg.BackupCompressionEnabled)
				assert.Equal(t, 365, cfg.BackupRetentionDays)
			},
		},
		{
			name: "load custom database configuration",
			envVars: map[string]string{
				"DB_DRIVER":               "mysql",
				"DB_CONNECTION_STRING":    "user:password@tcp(localhost:3306)/testdb",
				"DB_MAX_OPEN_CONNECTIONS": "50",
				"DB_MAX_IDLE_CONNECTIONS": "10",
				"DB_CONN_MAX_LIFETIME":    "10",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "mysql", cfg.DBDriver)
				assert.Equal(t, "user:password@tcp(localhost:3306)/testdb", cfg.DBConnectionString)
				assert.Equal(t, 50, cfg.DBMaxOpenConnections)
				assert.Equal(t, 10, cfg.DBMaxIdleConnections)
				assert.Equal(t, 10*time.Minute, cfg.DBConnMaxLifetime)
			},
		},
		{
			name: "load custom KMS configuration",
			envVars: map[string]string{
				"KMS_PROVIDER": "google",
				"KMS_KEY_URI":  "gcpkms://projects/my-project/locations/global/keyRings/my-keyring/cryptoKeys/my-key",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "google", cfg.KMSProvider)
				assert.Equal(
					t,
					"gcpkms://projects/my-project/locations/global/keyRings/my-keyring/cryptoKeys/my-key",
					cfg.KMSKeyURI,
				)
			},
		},
		{
			name: "load custom vault configuration",
			envVars: map[string]string{
				"VAULT_BACKEND":   "file",
				"VAULT_FILE_PATH": "/tmp/vault-test",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "file", cfg.VaultBackend)
				assert.Equal(t, "/tmp/vault-test", cfg.VaultFilePath)
			},
		},
		{
			name: "load custom audit configuration",
			envVars: map[string]string{
				"AUDIT_BUFFER_SIZE":    "250",
				"AUDIT_FLUSH_INTERVAL": "30",
				"AUDIT_RETENTION_DAYS": "365",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 250, cfg.AuditBufferSize)
				assert.Equal(t, 30*time.Second, cfg.AuditFlushInterval)
				assert.Equal(t, 365, cfg.AuditRetentionDays)
			},
		},
		{
			name: "load custom verification configuration",
			envVars: map[string]string{
				"VERIFICATION_INTERVAL":         "2",
				"VERIFICATION_SWEEP_BATCH_SIZE": "100",
				"VERIFICATION_MAX_REMEDIATION":  "5",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 2*time.Second, cfg.VerificationInterval)
				assert.Equal(t, 100, cfg.VerificationSweepBatchSize)
				assert.Equal(t, 5, cfg.VerificationMaxRemediation)
			},
		},
		{
			name: "load custom metrics configuration",
			envVars: map[string]string{
				"METRICS_ENABLED":   "false",
				"METRICS_NAMESPACE": "custom",
				"METRICS_PORT":      "9091",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, false, cfg.MetricsEnabled)
				assert.Equal(t, "custom", cfg.MetricsNamespace)
				assert.Equal(t, 9091, cfg.MetricsPort)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()

			for key, value := range tt.envVars {
				err := os.Setenv(key, value)
				require.NoError(t, err)
			}

			cfg := Load()

			tt.validate(t, cfg)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config_test")
	require.NoError(t, err)
	defer func() {
		_ = os.RemoveAll(tmpDir)
	}()

	err = os.WriteFile(filepath.Join(tmpDir, ".env"), []byte("TEST_ENV_VAR=found"), 0600)
	require.NoError(t, err)

	childDir := filepath.Join(tmpDir, "child", "grandchild")
	err = os.MkdirAll(childDir, 0700)
	require.NoError(t, err)

	oldCwd, err := os.Getwd()
	require.NoError(t, err)
	defer func() {
		_ = os.Chdir(oldCwd)
	}()

	err = os.Chdir(childDir)
	require.NoError(t, err)

	loadDotEnv()

	assert.Equal(t, "found", os.Getenv("TEST_ENV_VAR"))
	err = os.Unsetenv("TEST_ENV_VAR")
	require.NoError(t, err)
}
