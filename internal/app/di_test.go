package app

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/secrets"

	"github.com/allisson/legalvault/internal/config"
	cryptoService "github.com/allisson/legalvault/internal/crypto/service"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		LogLevel:             "info",
		DBDriver:             "invalid_driver",
		DBConnectionString:   "",
		VaultBackend:         "file",
		VaultFilePath:        filepath.Join(t.TempDir(), "vault"),
		ClientMatterKeyTTL:   5 * time.Minute,
		AuditBufferSize:      100,
		AuditFlushInterval:   time.Second,
		VerificationInterval: time.Hour,
		MetricsNamespace:     "legalvault",
	}
}

func TestNewContainer(t *testing.T) {
	cfg := testConfig(t)
	container := NewContainer(cfg)
	require.NotNil(t, container)
	assert.Same(t, cfg, container.Config())
}

func TestContainerLoggerIsSingleton(t *testing.T) {
	container := NewContainer(testConfig(t))
	logger := container.Logger()
	require.NotNil(t, logger)
	assert.Same(t, logger, container.Logger())
}

func TestContainerLoggerDefaultsToInfoOnInvalidLevel(t *testing.T) {
	cfg := testConfig(t)
	cfg.LogLevel = "bogus"
	container := NewContainer(cfg)
	logger := container.Logger()
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestContainerDBErrorIsCached(t *testing.T) {
	container := NewContainer(testConfig(t))
	_, err := container.DB()
	require.Error(t, err)
	_, err2 := container.DB()
	require.Error(t, err2)
	assert.Equal(t, err.Error(), err2.Error())
}

func TestContainerLazyInitialization(t *testing.T) {
	container := NewContainer(testConfig(t))
	assert.Nil(t, container.logger)
	container.Logger()
	assert.NotNil(t, container.logger)
}

func TestContainerShutdownWithNothingInitialized(t *testing.T) {
	container := NewContainer(testConfig(t))
	assert.NoError(t, container.Shutdown(context.Background()))
}

func TestContainerAEADManagerIsSingleton(t *testing.T) {
	container := NewContainer(testConfig(t))
	manager := container.AEADManager()
	require.NotNil(t, manager)
	assert.Same(t, manager, container.AEADManager())
}

func TestContainerKDFIsSingleton(t *testing.T) {
	container := NewContainer(testConfig(t))
	kdf := container.KDF()
	require.NotNil(t, kdf)
	assert.Same(t, kdf, container.KDF())
}

func TestContainerVaultBackendRejectsUnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.VaultBackend = "nonexistent"
	container := NewContainer(cfg)
	_, err := container.VaultBackend()
	require.Error(t, err)
	_, err2 := container.VaultBackend()
	require.Error(t, err2)
}

func TestContainerAuditStoreErrorsWithoutDB(t *testing.T) {
	container := NewContainer(testConfig(t))
	_, err := container.AuditStore()
	require.Error(t, err)
	_, err2 := container.AuditStore()
	require.Error(t, err2)
}

func localKMSFixture(t *testing.T) (kmsKeyURI string, encryptedKey string) {
	t.Helper()
	ctx := context.Background()

	kmsKey := make([]byte, 32)
	_, err := rand.Read(kmsKey)
	require.NoError(t, err)
	kmsKeyURI = "base64key://" + base64.URLEncoding.EncodeToString(kmsKey)

	masterKeyBytes := []byte("12345678901234567890123456789012")

	kmsService := cryptoService.NewKMSService()
	keeperInterface, err := kmsService.OpenKeeper(ctx, kmsKeyURI)
	require.NoError(t, err)
	defer func() { _ = keeperInterface.Close() }()

	keeper, ok := keeperInterface.(*secrets.Keeper)
	require.True(t, ok, "keeper should be *secrets.Keeper")

	ciphertext, err := keeper.Encrypt(ctx, masterKeyBytes)
	require.NoError(t, err)
	encryptedKey = base64.StdEncoding.EncodeToString(ciphertext)
	return kmsKeyURI, encryptedKey
}

func TestContainerMasterKeyChain(t *testing.T) {
	kmsKeyURI, encryptedKey := localKMSFixture(t)

	t.Setenv("MASTER_KEYS", "test-key-1:"+encryptedKey)
	t.Setenv("ACTIVE_MASTER_KEY_ID", "test-key-1")

	cfg := testConfig(t)
	cfg.KMSProvider = "localsecrets"
	cfg.KMSKeyURI = kmsKeyURI
	container := NewContainer(cfg)

	chain, err := container.MasterKeyChain()
	require.NoError(t, err)
	require.NotNil(t, chain)
	assert.Equal(t, "test-key-1", chain.ActiveMasterKeyID())

	chain2, err := container.MasterKeyChain()
	require.NoError(t, err)
	assert.Same(t, chain, chain2)
}

func TestContainerMasterKeyChainErrorsWithoutEnv(t *testing.T) {
	originalKeys := os.Getenv("MASTER_KEYS")
	originalActive := os.Getenv("ACTIVE_MASTER_KEY_ID")
	t.Cleanup(func() {
		_ = os.Setenv("MASTER_KEYS", originalKeys)
		_ = os.Setenv("ACTIVE_MASTER_KEY_ID", originalActive)
	})
	require.NoError(t, os.Unsetenv("MASTER_KEYS"))
	require.NoError(t, os.Unsetenv("ACTIVE_MASTER_KEY_ID"))

	container := NewContainer(testConfig(t))
	_, err := container.MasterKeyChain()
	require.Error(t, err)
	_, err2 := container.MasterKeyChain()
	require.Error(t, err2)
}

func TestContainerKMSStoreAndDocumentsWireThroughMasterKeyChain(t *testing.T) {
	kmsKeyURI, encryptedKey := localKMSFixture(t)
	t.Setenv("MASTER_KEYS", "test-key-1:"+encryptedKey)
	t.Setenv("ACTIVE_MASTER_KEY_ID", "test-key-1")

	cfg := testConfig(t)
	cfg.KMSProvider = "localsecrets"
	cfg.KMSKeyURI = kmsKeyURI
	container := NewContainer(cfg)

	store, err := container.KMSStore()
	require.NoError(t, err)
	require.NotNil(t, store)

	store2, err := container.KMSStore()
	require.NoError(t, err)
	assert.Same(t, store, store2)

	documents, err := container.Documents()
	require.NoError(t, err)
	require.NotNil(t, documents)

	backups, err := container.Backups()
	require.NoError(t, err)
	require.NotNil(t, backups)
}

func TestContainerShutdownClosesMasterKeyChain(t *testing.T) {
	kmsKeyURI, encryptedKey := localKMSFixture(t)
	t.Setenv("MASTER_KEYS", "test-key-1:"+encryptedKey)
	t.Setenv("ACTIVE_MASTER_KEY_ID", "test-key-1")

	cfg := testConfig(t)
	cfg.KMSProvider = "localsecrets"
	cfg.KMSKeyURI = kmsKeyURI
	container := NewContainer(cfg)

	_, err := container.MasterKeyChain()
	require.NoError(t, err)
	assert.NoError(t, container.Shutdown(context.Background()))
}
