// Package app provides the dependency injection container that assembles
// the platform from its configuration: vault backend, master key chain,
// Key Management Store, Document/Backup encryptors, Audit Ledger, and
// Verification Monitor, in the construction order spec §9 requires.
//
// Grounded on the teacher's internal/app/di_*.go lazy-sync.Once container
// shape (one accessor + one init method per component, an initErrors map
// keyed by component name), generalized from the teacher's KEK/DEK-shaped
// dependency graph to this module's KMS/document/backup/audit/verify graph.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/allisson/legalvault/internal/audit"
	"github.com/allisson/legalvault/internal/backup"
	"github.com/allisson/legalvault/internal/config"
	cryptoDomain "github.com/allisson/legalvault/internal/crypto/domain"
	cryptoService "github.com/allisson/legalvault/internal/crypto/service"
	"github.com/allisson/legalvault/internal/database"
	"github.com/allisson/legalvault/internal/document"
	"github.com/allisson/legalvault/internal/facade"
	"github.com/allisson/legalvault/internal/kms"
	"github.com/allisson/legalvault/internal/metrics"
	"github.com/allisson/legalvault/internal/vault"
	"github.com/allisson/legalvault/internal/verify"
)

// Container holds every application dependency and builds them lazily, on
// first access, the way the teacher's Container does.
type Container struct {
	config *config.Config

	logger *slog.Logger
	db     *sql.DB

	vaultBackend   vault.Backend
	masterKeyChain *cryptoDomain.MasterKeyChain
	aeadManager    cryptoService.AEADManager
	kdf            cryptoService.KDF
	kmsService     cryptoService.KMSService

	kmsStore *kms.Store

	documentStorage *document.FileStorage
	documents       *document.Encryptor

	backupStorage *backup.FileStorage
	backups       *backup.Encryptor

	auditStore   audit.QueryStore
	auditSigner  *audit.Signer
	ledger       *audit.Ledger

	tenants *verify.MemoryTenantIndex
	monitor *verify.Monitor

	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	facade *facade.Facade

	loggerInit          sync.Once
	dbInit              sync.Once
	vaultInit           sync.Once
	masterKeyChainInit  sync.Once
	aeadManagerInit     sync.Once
	kdfInit             sync.Once
	kmsServiceInit      sync.Once
	kmsStoreInit        sync.Once
	documentStorageInit sync.Once
	documentsInit       sync.Once
	backupStorageInit   sync.Once
	backupsInit         sync.Once
	auditStoreInit      sync.Once
	auditSignerInit     sync.Once
	ledgerInit          sync.Once
	tenantsInit         sync.Once
	monitorInit         sync.Once
	metricsProviderInit sync.Once
	businessMetricsInit sync.Once
	facadeInit          sync.Once

	mu         sync.Mutex
	initErrors map[string]error
}

// NewContainer creates a Container bound to cfg. Nothing is constructed
// until first accessed.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

func (c *Container) setErr(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initErrors[name] = err
}

func (c *Container) getErr(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initErrors[name]
}

// Config returns the loaded application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the structured JSON logger configured by LOG_LEVEL.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

func (c *Container) initLogger() *slog.Logger {
	var level slog.Level
	switch c.config.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// DB returns the audit ledger's indexed-store database connection.
func (c *Container) DB() (*sql.DB, error) {
	c.dbInit.Do(func() {
		db, err := database.Connect(database.Config{
			Driver:             c.config.DBDriver,
			ConnectionString:   c.config.DBConnectionString,
			MaxOpenConnections: c.config.DBMaxOpenConnections,
			MaxIdleConnections: c.config.DBMaxIdleConnections,
			ConnMaxLifetime:    c.config.DBConnMaxLifetime,
		})
		if err != nil {
			c.setErr("db", fmt.Errorf("failed to connect to database: %w", err))
			return
		}
		c.db = db
	})
	if err := c.getErr("db"); err != nil {
		return nil, err
	}
	return c.db, nil
}

// VaultBackend returns the C1 vault backend (currently file-based only;
// a cloud-KMS-backed Backend is a documented future extension point).
func (c *Container) VaultBackend() (vault.Backend, error) {
	c.vaultInit.Do(func() {
		switch c.config.VaultBackend {
		case "file", "":
			backend, err := vault.NewFileBackend(c.config.VaultFilePath)
			if err != nil {
				c.setErr("vault", fmt.Errorf("failed to create file vault backend: %w", err))
				return
			}
			c.vaultBackend = backend
		default:
			c.setErr("vault", fmt.Errorf("unsupported vault backend: %s", c.config.VaultBackend))
		}
	})
	if err := c.getErr("vault"); err != nil {
		return nil, err
	}
	return c.vaultBackend, nil
}

// KMSService returns the gocloud.dev/secrets keeper factory used to unwrap
// a KMS-protected MASTER_KEYS bundle.
func (c *Container) KMSService() cryptoService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = cryptoService.NewKMSService()
	})
	return c.kmsService
}

// MasterKeyChain returns the root key chain (§9 construction step 1),
// auto-detecting plaintext-env vs KMS-wrapped mode per config.
func (c *Container) MasterKeyChain() (*cryptoDomain.MasterKeyChain, error) {
	c.masterKeyChainInit.Do(func() {
		chain, err := cryptoDomain.LoadMasterKeyChain(
			context.Background(),
			cryptoDomain.MasterKeyConfig{KMSProvider: c.config.KMSProvider, KMSKeyURI: c.config.KMSKeyURI},
			c.KMSService(),
			c.Logger(),
		)
		if err != nil {
			c.setErr("masterKeyChain", fmt.Errorf("failed to load master key chain: %w", err))
			return
		}
		c.masterKeyChain = chain
	})
	if err := c.getErr("masterKeyChain"); err != nil {
		return nil, err
	}
	return c.masterKeyChain, nil
}

// AEADManager returns the AEAD cipher factory (AES-256-GCM / ChaCha20-Poly1305).
func (c *Container) AEADManager() cryptoService.AEADManager {
	c.aeadManagerInit.Do(func() {
		c.aeadManager = cryptoService.NewAEADManager()
	})
	return c.aeadManager
}

// KDF returns the PBKDF2-HMAC-SHA256 key derivation service.
func (c *Container) KDF() cryptoService.KDF {
	c.kdfInit.Do(func() {
		c.kdf = cryptoService.NewPBKDF2Service()
	})
	return c.kdf
}

// KMSStore returns the Key Management Store (§9 construction step 2).
func (c *Container) KMSStore() (*kms.Store, error) {
	c.kmsStoreInit.Do(func() {
		backend, err := c.VaultBackend()
		if err != nil {
			c.setErr("kmsStore", err)
			return
		}
		chain, err := c.MasterKeyChain()
		if err != nil {
			c.setErr("kmsStore", err)
			return
		}
		store := kms.NewStore(backend, c.AEADManager(), chain, c.config.ClientMatterKeyTTL, c.Logger())
		if err := store.Hydrate(context.Background()); err != nil {
			c.setErr("kmsStore", fmt.Errorf("failed to hydrate kms store: %w", err))
			return
		}
		if _, err := store.EnsureMaster(context.Background()); err != nil {
			c.setErr("kmsStore", fmt.Errorf("failed to ensure master key: %w", err))
			return
		}
		c.kmsStore = store
	})
	if err := c.getErr("kmsStore"); err != nil {
		return nil, err
	}
	return c.kmsStore, nil
}

// DocumentStorage returns the on-disk container store for C3.
func (c *Container) DocumentStorage() (*document.FileStorage, error) {
	c.documentStorageInit.Do(func() {
		storage, err := document.NewFileStorage(c.config.VaultFilePath + "/documents")
		if err != nil {
			c.setErr("documentStorage", err)
			return
		}
		c.documentStorage = storage
	})
	if err := c.getErr("documentStorage"); err != nil {
		return nil, err
	}
	return c.documentStorage, nil
}

// Documents returns the Document Encryptor (C3).
func (c *Container) Documents() (*document.Encryptor, error) {
	c.documentsInit.Do(func() {
		store, err := c.KMSStore()
		if err != nil {
			c.setErr("documents", err)
			return
		}
		storage, err := c.DocumentStorage()
		if err != nil {
			c.setErr("documents", err)
			return
		}
		c.documents = document.NewEncryptor(store, storage, c.AEADManager(), c.KDF(), c.config.DocumentKDFIterations)
	})
	if err := c.getErr("documents"); err != nil {
		return nil, err
	}
	return c.documents, nil
}

// BackupStorage returns the on-disk container+metadata store for C4.
func (c *Container) BackupStorage() (*backup.FileStorage, error) {
	c.backupStorageInit.Do(func() {
		storage, err := backup.NewFileStorage(c.config.VaultFilePath + "/backups")
		if err != nil {
			c.setErr("backupStorage", err)
			return
		}
		c.backupStorage = storage
	})
	if err := c.getErr("backupStorage"); err != nil {
		return nil, err
	}
	return c.backupStorage, nil
}

// Backups returns the Backup Encryptor (C4).
func (c *Container) Backups() (*backup.Encryptor, error) {
	c.backupsInit.Do(func() {
		store, err := c.KMSStore()
		if err != nil {
			c.setErr("backups", err)
			return
		}
		storage, err := c.BackupStorage()
		if err != nil {
			c.setErr("backups", err)
			return
		}
		c.backups = backup.NewEncryptor(
			store, storage, c.AEADManager(),
			c.config.BackupTempDir, c.config.BackupPgDumpPath, c.config.BackupPgDumpTimeout,
			c.config.BackupCompressionEnabled, c.config.BackupRetentionDays,
		)
	})
	if err := c.getErr("backups"); err != nil {
		return nil, err
	}
	return c.backups, nil
}

// AuditStore returns the indexed audit store backed by DBDriver.
func (c *Container) AuditStore() (audit.QueryStore, error) {
	c.auditStoreInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.setErr("auditStore", err)
			return
		}
		switch c.config.DBDriver {
		case "postgres", "postgresql":
			c.auditStore = audit.NewPostgreSQLStore(db)
		case "mysql":
			c.auditStore = audit.NewMySQLStore(db)
		default:
			c.setErr("auditStore", fmt.Errorf("unsupported database driver: %s", c.config.DBDriver))
		}
	})
	if err := c.getErr("auditStore"); err != nil {
		return nil, err
	}
	return c.auditStore, nil
}

// AuditSigner returns the HMAC event signer, keyed from a SYSTEM-typed KMS key.
func (c *Container) AuditSigner() (*audit.Signer, error) {
	c.auditSignerInit.Do(func() {
		store, err := c.KMSStore()
		if err != nil {
			c.setErr("auditSigner", err)
			return
		}
		purpose := c.config.AuditSigningKeyID
		if purpose == "" {
			purpose = "audit-ledger"
		}
		systemKey, _, err := store.GetOrCreateSystemKey(context.Background(), purpose)
		if err != nil {
			c.setErr("auditSigner", fmt.Errorf("failed to provision audit signing key: %w", err))
			return
		}
		defer cryptoDomain.Zero(systemKey)
		signer, err := audit.NewSigner(systemKey)
		if err != nil {
			c.setErr("auditSigner", err)
			return
		}
		c.auditSigner = signer
	})
	if err := c.getErr("auditSigner"); err != nil {
		return nil, err
	}
	return c.auditSigner, nil
}

// Ledger returns the Audit Ledger (§9 construction step 3).
func (c *Container) Ledger() (*audit.Ledger, error) {
	c.ledgerInit.Do(func() {
		store, err := c.AuditStore()
		if err != nil {
			c.setErr("ledger", err)
			return
		}
		signer, err := c.AuditSigner()
		if err != nil {
			c.setErr("ledger", err)
			return
		}
		c.ledger = audit.NewLedger(store, audit.BufferConfig{
			MaxSize:       c.config.AuditBufferSize,
			FlushInterval: c.config.AuditFlushInterval,
		}, signer, c.Logger())
	})
	if err := c.getErr("ledger"); err != nil {
		return nil, err
	}
	return c.ledger, nil
}

// Tenants returns the in-memory document_id -> tenant index the monitor
// consults to re-derive keys during a sweep.
func (c *Container) Tenants() *verify.MemoryTenantIndex {
	c.tenantsInit.Do(func() {
		c.tenants = verify.NewMemoryTenantIndex()
	})
	return c.tenants
}

// Monitor returns the Verification Monitor (§9 construction step 4).
func (c *Container) Monitor() (*verify.Monitor, error) {
	c.monitorInit.Do(func() {
		store, err := c.KMSStore()
		if err != nil {
			c.setErr("monitor", err)
			return
		}
		storage, err := c.DocumentStorage()
		if err != nil {
			c.setErr("monitor", err)
			return
		}
		documents, err := c.Documents()
		if err != nil {
			c.setErr("monitor", err)
			return
		}
		ledger, err := c.Ledger()
		if err != nil {
			c.setErr("monitor", err)
			return
		}
		c.monitor = verify.NewMonitor(
			store, storage, documents, c.Tenants(), ledger,
			verify.RemediationHooks{},
			verify.Config{
				SweepInterval:              c.config.VerificationInterval,
				ComprehensiveCheckInterval: c.config.ComprehensiveCheckInterval,
				Workers:                    c.config.VerificationSweepBatchSize,
				AutoRemediationEnabled:     c.config.AutoRemediationEnabled,
				MaxRemediationAttempts:     c.config.VerificationMaxRemediation,
				RemediationWindow:          c.config.RemediationWindow,
				AlertThresholdFailureRate:  c.config.AlertThresholdFailureRate,
			},
			c.Logger(),
		)
	})
	if err := c.getErr("monitor"); err != nil {
		return nil, err
	}
	return c.monitor, nil
}

// MetricsProvider returns the OpenTelemetry/Prometheus metrics provider.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	c.metricsProviderInit.Do(func() {
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.setErr("metricsProvider", err)
			return
		}
		c.metricsProvider = provider
	})
	if err := c.getErr("metricsProvider"); err != nil {
		return nil, err
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business-operation metrics recorder, or a
// no-op implementation when METRICS_ENABLED=false.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	c.businessMetricsInit.Do(func() {
		if !c.config.MetricsEnabled {
			c.businessMetrics = metrics.NewNoOpBusinessMetrics()
			return
		}
		provider, err := c.MetricsProvider()
		if err != nil {
			c.setErr("businessMetrics", err)
			return
		}
		bm, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			c.setErr("businessMetrics", err)
			return
		}
		c.businessMetrics = bm
	})
	if err := c.getErr("businessMetrics"); err != nil {
		return nil, err
	}
	return c.businessMetrics, nil
}

// Facade returns the fully wired Integration Facade (C7), constructed
// eagerly in the order spec §9 names: MASTER key -> KMS -> audit ledger ->
// verification monitor.
func (c *Container) Facade() (*facade.Facade, error) {
	c.facadeInit.Do(func() {
		if _, err := c.MasterKeyChain(); err != nil {
			c.setErr("facade", err)
			return
		}
		store, err := c.KMSStore()
		if err != nil {
			c.setErr("facade", err)
			return
		}
		documents, err := c.Documents()
		if err != nil {
			c.setErr("facade", err)
			return
		}
		backups, err := c.Backups()
		if err != nil {
			c.setErr("facade", err)
			return
		}
		ledger, err := c.Ledger()
		if err != nil {
			c.setErr("facade", err)
			return
		}
		monitor, err := c.Monitor()
		if err != nil {
			c.setErr("facade", err)
			return
		}
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			c.setErr("facade", err)
			return
		}
		c.facade = facade.New(store, documents, backups, ledger, monitor, c.Tenants(), businessMetrics)
	})
	if err := c.getErr("facade"); err != nil {
		return nil, err
	}
	return c.facade, nil
}

// Run starts the Audit Ledger's flush loop and the Verification Monitor's
// sweep scheduler as background goroutines, returning once both are
// launched. Callers (cmd/app) stop them by cancelling ctx.
func (c *Container) Run(ctx context.Context) error {
	ledger, err := c.Ledger()
	if err != nil {
		return err
	}
	monitor, err := c.Monitor()
	if err != nil {
		return err
	}

	go ledger.Run(ctx)
	go func() {
		if err := monitor.Run(ctx); err != nil && ctx.Err() == nil {
			c.Logger().Error("verification monitor stopped", slog.Any("error", err))
		}
	}()

	return nil
}

// Shutdown flushes any buffered audit events, zeroes the master key chain,
// and closes the database connection. Safe to call even if some components
// were never initialized.
func (c *Container) Shutdown(ctx context.Context) error {
	var shutdownErrors []error

	if c.ledger != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := c.ledger.Flush(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("audit ledger flush: %w", err))
		}
		cancel()
	}

	if c.masterKeyChain != nil {
		c.masterKeyChain.Close()
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}
	return nil
}
