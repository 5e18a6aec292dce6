package domain

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// MasterKey is the root of the key hierarchy: it wraps every typed key the
// key management store creates (CLIENT_MATTER, DOCUMENT, BACKUP, ARCHIVE,
// SYSTEM). It must be exactly 32 bytes and is never used to encrypt
// document or backup data directly.
type MasterKey struct {
	ID  string
	Key []byte
}

// MasterKeyChain holds every configured master key with one designated
// active for wrapping new keys. Rotation keeps prior master keys resident
// so previously wrapped keys can still be unwrapped.
type MasterKeyChain struct {
	activeID string
	keys     sync.Map
}

// ActiveMasterKeyID returns the ID of the master key used to wrap new keys.
func (m *MasterKeyChain) ActiveMasterKeyID() string {
	return m.activeID
}

// Get retrieves a master key from the chain by ID.
func (m *MasterKeyChain) Get(id string) (*MasterKey, bool) {
	if masterKey, ok := m.keys.Load(id); ok {
		return masterKey.(*MasterKey), ok
	}
	return nil, false
}

// Close zeros every master key in memory and resets the chain.
func (m *MasterKeyChain) Close() {
	m.keys.Range(func(_, value interface{}) bool {
		if masterKey, ok := value.(*MasterKey); ok {
			Zero(masterKey.Key)
		}
		return true
	})
	m.activeID = ""
	m.keys.Clear()
}

// LoadMasterKeyChainFromEnv loads master keys from MASTER_KEYS and
// ACTIVE_MASTER_KEY_ID. Keys must be "id:base64key" pairs, comma-separated,
// and exactly 32 bytes once decoded.
func LoadMasterKeyChainFromEnv() (*MasterKeyChain, error) {
	raw := os.Getenv("MASTER_KEYS")
	if raw == "" {
		return nil, ErrMasterKeysNotSet
	}

	active := os.Getenv("ACTIVE_MASTER_KEY_ID")
	if active == "" {
		return nil, ErrActiveMasterKeyIDNotSet
	}

	mkc := &MasterKeyChain{activeID: active}

	parts := strings.SplitSeq(raw, ",")
	for part := range parts {
		p := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(p) != 2 {
			mkc.Close()
			return nil, fmt.Errorf("%w: %q", ErrInvalidMasterKeysFormat, part)
		}
		id := p[0]
		key, err := base64.StdEncoding.DecodeString(p[1])
		if err != nil {
			mkc.Close()
			return nil, fmt.Errorf("%w for %s: %v", ErrInvalidMasterKeyBase64, id, err)
		}
		if len(key) != 32 {
			Zero(key)
			mkc.Close()
			return nil, fmt.Errorf("%w: master key %s must be 32 bytes, got %d", ErrInvalidKeySize, id, len(key))
		}
		keyCopy := make([]byte, len(key))
		copy(keyCopy, key)
		mkc.keys.Store(id, &MasterKey{ID: id, Key: keyCopy})
		Zero(key)
	}

	if _, ok := mkc.Get(active); !ok {
		mkc.Close()
		return nil, fmt.Errorf("%w: ACTIVE_MASTER_KEY_ID=%s", ErrActiveMasterKeyNotFound, active)
	}

	return mkc, nil
}

// KMSService opens the configured KMS keeper used to unwrap KMS-encrypted
// master key material. Implemented by crypto/service.KMSService.
type KMSService interface {
	OpenKeeper(ctx context.Context, keyURI string) (KMSKeeper, error)
}

// KMSKeeper decrypts ciphertext using a remote or local KMS key.
type KMSKeeper interface {
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// maskKeyURI masks sensitive components of a KMS key URI for logging.
func maskKeyURI(uri string) string {
	if uri == "" {
		return ""
	}

	parts := strings.SplitN(uri, "://", 2)
	if len(parts) != 2 {
		return "***"
	}

	scheme := parts[0]
	remainder := parts[1]

	if scheme == "base64key" {
		return scheme + "://***"
	}

	switch scheme {
	case "gcpkms":
		pathParts := strings.Split(remainder, "/")
		for i := range pathParts {
			if i%2 == 1 {
				pathParts[i] = "***"
			}
		}
		return scheme + "://" + strings.Join(pathParts, "/")
	case "awskms":
		queryParts := strings.SplitN(remainder, "?", 2)
		masked := scheme + "://***"
		if len(queryParts) == 2 {
			masked += "?" + queryParts[1]
		}
		return masked
	case "azurekeyvault", "hashivault":
		return scheme + "://***"
	default:
		return scheme + "://***"
	}
}

// MasterKeyConfig carries the subset of configuration LoadMasterKeyChain needs.
type MasterKeyConfig struct {
	KMSProvider string
	KMSKeyURI   string
}

// loadMasterKeyChainFromKMS decrypts MASTER_KEYS ciphertexts via the configured KMS provider.
func loadMasterKeyChainFromKMS(
	ctx context.Context,
	cfg MasterKeyConfig,
	kmsService KMSService,
	logger *slog.Logger,
) (*MasterKeyChain, error) {
	raw := os.Getenv("MASTER_KEYS")
	if raw == "" {
		return nil, ErrMasterKeysNotSet
	}

	active := os.Getenv("ACTIVE_MASTER_KEY_ID")
	if active == "" {
		return nil, ErrActiveMasterKeyIDNotSet
	}

	maskedURI := maskKeyURI(cfg.KMSKeyURI)
	logger.Info("opening KMS keeper",
		slog.String("kms_provider", cfg.KMSProvider),
		slog.String("kms_key_uri", maskedURI),
	)

	keeper, err := kmsService.OpenKeeper(ctx, cfg.KMSKeyURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKMSOpenKeeperFailed, err)
	}
	defer func() {
		if closeErr := keeper.Close(); closeErr != nil {
			logger.Error("failed to close KMS keeper", slog.Any("error", closeErr))
		}
	}()

	mkc := &MasterKeyChain{activeID: active}

	parts := strings.SplitSeq(raw, ",")
	for part := range parts {
		p := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(p) != 2 {
			mkc.Close()
			return nil, fmt.Errorf("%w: %q", ErrInvalidMasterKeysFormat, part)
		}
		id := p[0]

		ciphertext, err := base64.StdEncoding.DecodeString(p[1])
		if err != nil {
			mkc.Close()
			return nil, fmt.Errorf("%w for %s: %v", ErrInvalidMasterKeyBase64, id, err)
		}

		key, err := keeper.Decrypt(ctx, ciphertext)
		Zero(ciphertext)
		if err != nil {
			mkc.Close()
			return nil, fmt.Errorf("%w for master key %s: %v", ErrKMSDecryptionFailed, id, err)
		}

		if len(key) != 32 {
			Zero(key)
			mkc.Close()
			return nil, fmt.Errorf("%w: master key %s must be 32 bytes, got %d", ErrInvalidKeySize, id, len(key))
		}

		mkc.keys.Store(id, &MasterKey{ID: id, Key: key})
	}

	if _, ok := mkc.Get(active); !ok {
		mkc.Close()
		return nil, fmt.Errorf("%w: ACTIVE_MASTER_KEY_ID=%s", ErrActiveMasterKeyNotFound, active)
	}

	logger.Info("master key chain loaded from KMS", slog.String("active_master_key_id", active))

	return mkc, nil
}

// LoadMasterKeyChain loads master keys, auto-detecting KMS mode (both
// KMSProvider and KMSKeyURI set) versus legacy plaintext env mode (neither set).
func LoadMasterKeyChain(
	ctx context.Context,
	cfg MasterKeyConfig,
	kmsService KMSService,
	logger *slog.Logger,
) (*MasterKeyChain, error) {
	if cfg.KMSProvider != "" && cfg.KMSKeyURI == "" {
		return nil, ErrKMSKeyURINotSet
	}
	if cfg.KMSKeyURI != "" && cfg.KMSProvider == "" {
		return nil, ErrKMSProviderNotSet
	}

	if cfg.KMSProvider != "" {
		logger.Info("loading master key chain in KMS mode", slog.String("kms_provider", cfg.KMSProvider))
		return loadMasterKeyChainFromKMS(ctx, cfg, kmsService, logger)
	}

	logger.Info("loading master key chain in legacy mode (plaintext)")
	return LoadMasterKeyChainFromEnv()
}
