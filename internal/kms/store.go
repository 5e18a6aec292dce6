// Package kms implements the Key Management Store (C2): typed key
// lifecycle, tenant-scoped derivation, rotation policy enforcement, and an
// in-memory TTL cache, all backed by a pluggable vault.Backend. Grounded on
// the teacher's KekChain/MasterKeyChain (sync.Map-backed key chains with a
// single active pointer) generalized from the Master -> KEK -> DEK
// hierarchy to Master -> typed keys (§3.1).
package kms

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/legalvault/internal/crypto/domain"
	"github.com/allisson/legalvault/internal/crypto/service"
	"github.com/allisson/legalvault/internal/kms/domain"
	"github.com/allisson/legalvault/internal/vault"
)

// Store implements the Key Management Store public contract (§4.2.1). All
// create/get/rotate/revoke operations acquire a single mutex; see internal
// unlocked helpers used to avoid re-entrant locking from within Get's
// auto-rotation path.
type Store struct {
	mu sync.Mutex

	vault       vault.Backend
	aeadManager service.AEADManager
	masterChain *cryptoDomain.MasterKeyChain
	logger      *slog.Logger

	cacheTTL time.Duration

	keysByID    map[string]*domain.Key
	activeIndex map[string]string // tenantKey(type, tenant) -> active key_id
	cache       map[string]cacheEntry
}

// NewStore creates a Store backed by the given vault and master key chain.
func NewStore(
	v vault.Backend,
	aeadManager service.AEADManager,
	masterChain *cryptoDomain.MasterKeyChain,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *Store {
	return &Store{
		vault:       v,
		aeadManager: aeadManager,
		masterChain: masterChain,
		cacheTTL:    cacheTTL,
		logger:      logger,
		keysByID:    make(map[string]*domain.Key),
		activeIndex: make(map[string]string),
		cache:       make(map[string]cacheEntry),
	}
}

// Hydrate reloads key metadata from the vault into memory. Call once at
// startup before serving requests.
func (s *Store) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.vault.List(ctx, "")
	if err != nil {
		return fmt.Errorf("kms: failed to list vault entries: %w", err)
	}

	for _, id := range ids {
		_, metadata, err := s.vault.Get(ctx, id)
		if err != nil {
			continue
		}
		key, err := metadataToKey(metadata)
		if err != nil {
			continue
		}
		s.keysByID[key.KeyID] = key
		if key.Status == domain.KeyStatusActive {
			s.activeIndex[tenantKey(key.KeyType, key.Tenant)] = key.KeyID
		}
	}

	return nil
}

func (s *Store) masterKey() (*cryptoDomain.MasterKey, error) {
	mk, ok := s.masterChain.Get(s.masterChain.ActiveMasterKeyID())
	if !ok {
		return nil, cryptoDomain.ErrActiveMasterKeyNotFound
	}
	return mk, nil
}

func (s *Store) wrap(raw []byte, alg cryptoDomain.Algorithm, aad []byte) ([]byte, error) {
	mk, err := s.masterKey()
	if err != nil {
		return nil, err
	}
	cipher, err := s.aeadManager.CreateCipher(mk.Key, alg)
	if err != nil {
		return nil, err
	}
	ciphertext, nonce, err := cipher.Encrypt(raw, aad)
	if err != nil {
		return nil, err
	}
	wrapped := make([]byte, 0, len(nonce)+len(ciphertext))
	wrapped = append(wrapped, nonce...)
	wrapped = append(wrapped, ciphertext...)
	return wrapped, nil
}

func (s *Store) unwrap(wrapped []byte, alg cryptoDomain.Algorithm, aad []byte) ([]byte, error) {
	mk, err := s.masterKey()
	if err != nil {
		return nil, err
	}
	cipher, err := s.aeadManager.CreateCipher(mk.Key, alg)
	if err != nil {
		return nil, err
	}
	nonceSize := cipher.NonceSize()
	if len(wrapped) < nonceSize {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	nonce, ciphertext := wrapped[:nonceSize], wrapped[nonceSize:]
	return cipher.Decrypt(ciphertext, nonce, aad)
}

// EnsureMaster registers the active master key from the chain as the
// MASTER-typed key record, idempotently. The MASTER key's raw bytes never
// touch the vault: they are already held by the external MasterKeyChain.
func (s *Store) EnsureMaster(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.masterChain.ActiveMasterKeyID()
	if existing, ok := s.keysByID[id]; ok && existing.KeyType == domain.KeyTypeMaster {
		return id, nil
	}

	now := time.Now().UTC()
	policy := domain.PolicyFor(domain.KeyTypeMaster)
	key := &domain.Key{
		KeyID:         id,
		KeyType:       domain.KeyTypeMaster,
		Status:        domain.KeyStatusActive,
		Algorithm:     cryptoDomain.ChaCha20,
		CreatedAt:     now,
		LastUsedAt:    now,
		RotationDueAt: now.Add(policy.Interval),
	}

	if err := s.vault.Put(ctx, id, []byte{}, keyToMetadata(key)); err != nil {
		return "", fmt.Errorf("kms: failed to register master key: %w", err)
	}

	s.keysByID[id] = key
	s.activeIndex[tenantKey(domain.KeyTypeMaster, domain.Tenant{})] = id

	return id, nil
}

// CreateClientMatterKeyResult reports the outcome of CreateClientMatterKey.
type CreateClientMatterKeyResult struct {
	KeyID         string
	AlreadyExists bool
}

// CreateClientMatterKey creates (or returns the existing) ACTIVE
// CLIENT_MATTER key for the given tenant (§4.2.1).
func (s *Store) CreateClientMatterKey(
	ctx context.Context,
	clientID, matterID, complianceLevel string,
) (CreateClientMatterKeyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenant := domain.Tenant{ClientID: clientID, MatterID: matterID}
	idxKey := tenantKey(domain.KeyTypeClientMatter, tenant)

	if existingID, ok := s.activeIndex[idxKey]; ok {
		return CreateClientMatterKeyResult{KeyID: existingID, AlreadyExists: true}, nil
	}

	raw, err := service.GenerateKey(32)
	if err != nil {
		return CreateClientMatterKeyResult{}, err
	}
	defer cryptoDomain.Zero(raw)

	keyID := uuid.Must(uuid.NewV7()).String()
	wrapped, err := s.wrap(raw, cryptoDomain.AESGCM, []byte(keyID))
	if err != nil {
		return CreateClientMatterKeyResult{}, err
	}

	now := time.Now().UTC()
	policy := domain.PolicyFor(domain.KeyTypeClientMatter)
	key := &domain.Key{
		KeyID:           keyID,
		KeyType:         domain.KeyTypeClientMatter,
		Status:          domain.KeyStatusActive,
		Algorithm:       cryptoDomain.AESGCM,
		Tenant:          tenant,
		CreatedAt:       now,
		LastUsedAt:      now,
		RotationDueAt:   now.Add(policy.Interval),
		ComplianceLevel: complianceLevel,
	}

	if err := s.vault.Put(ctx, keyID, wrapped, keyToMetadata(key)); err != nil {
		return CreateClientMatterKeyResult{}, fmt.Errorf("kms: failed to persist client matter key: %w", err)
	}

	s.keysByID[keyID] = key
	s.activeIndex[idxKey] = keyID

	return CreateClientMatterKeyResult{KeyID: keyID}, nil
}

// GetClientMatterKey resolves the decrypted ACTIVE CLIENT_MATTER key bytes
// for a tenant, serving from cache when fresh and auto-rotating when due.
// The caller owns the returned slice and should zero it after use.
func (s *Store) GetClientMatterKey(ctx context.Context, clientID, matterID string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenant := domain.Tenant{ClientID: clientID, MatterID: matterID}
	idxKey := tenantKey(domain.KeyTypeClientMatter, tenant)

	keyID, ok := s.activeIndex[idxKey]
	if !ok {
		return nil, "", domain.ErrNoActiveKey
	}

	key := s.keysByID[keyID]
	now := time.Now().UTC()

	if domain.DueForRotation(key, now) {
		newID, err := s.rotateLocked(ctx, keyID, false)
		if err == nil {
			keyID = newID
			key = s.keysByID[keyID]
		}
		// RotationNotDue/ApprovalRequired here just means auto-rotation
		// didn't fire this time; continue serving the current key.
	}

	if entry, ok := s.cache[idxKey]; ok && entry.keyID == keyID && !entry.expired(s.cacheTTL, now) {
		out := make([]byte, len(entry.keyBytes))
		copy(out, entry.keyBytes)
		s.recordAccess(ctx, key, now)
		return out, keyID, nil
	}

	wrapped, _, err := s.vault.Get(ctx, keyID)
	if err != nil {
		return nil, "", fmt.Errorf("kms: failed to load wrapped key: %w", err)
	}
	raw, err := s.unwrap(wrapped, key.Algorithm, []byte(keyID))
	if err != nil {
		return nil, "", cryptoDomain.ErrDecryptionFailed
	}

	s.cache[idxKey] = cacheEntry{keyBytes: raw, keyID: keyID, fetchedAt: now}
	s.recordAccess(ctx, key, now)

	out := make([]byte, len(raw))
	copy(out, raw)
	return out, keyID, nil
}

// GetOrCreateBackupKey resolves the ACTIVE BACKUP-typed key for the given
// subtype (database/documents/system/archive), creating it if none exists.
// BACKUP keys live in a namespace disjoint from CLIENT_MATTER keys (§4.4.3,
// §9 Open Question): subtype is encoded as the tenant's matter_id with an
// empty client_id, which combined with KeyTypeBackup can never collide with
// a CLIENT_MATTER tenantKey.
func (s *Store) GetOrCreateBackupKey(ctx context.Context, subtype string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateAuxKeyLocked(ctx, domain.KeyTypeBackup, subtype, cryptoDomain.ChaCha20)
}

// GetOrCreateSystemKey resolves the ACTIVE SYSTEM-typed key for the given
// purpose (e.g. "audit-signing"), creating it if none exists. Like BACKUP
// keys, SYSTEM keys are indexed under their own (KeyTypeSystem, purpose)
// namespace, disjoint from both CLIENT_MATTER and BACKUP keys.
func (s *Store) GetOrCreateSystemKey(ctx context.Context, purpose string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateAuxKeyLocked(ctx, domain.KeyTypeSystem, purpose, cryptoDomain.AESGCM)
}

// getOrCreateAuxKeyLocked resolves (creating if absent) an ACTIVE key of
// keyType indexed by a single-field tenant (matter_id = name), used for the
// BACKUP and SYSTEM namespaces that have no (client_id, matter_id) pair of
// their own. Assumes s.mu is already held.
func (s *Store) getOrCreateAuxKeyLocked(ctx context.Context, keyType domain.KeyType, name string, alg cryptoDomain.Algorithm) ([]byte, string, error) {
	tenant := domain.Tenant{MatterID: name}
	idxKey := tenantKey(keyType, tenant)

	keyID, ok := s.activeIndex[idxKey]
	if !ok {
		raw, err := service.GenerateKey(32)
		if err != nil {
			return nil, "", err
		}
		defer cryptoDomain.Zero(raw)

		keyID = uuid.Must(uuid.NewV7()).String()
		wrapped, err := s.wrap(raw, alg, []byte(keyID))
		if err != nil {
			return nil, "", err
		}

		now := time.Now().UTC()
		policy := domain.PolicyFor(keyType)
		key := &domain.Key{
			KeyID:         keyID,
			KeyType:       keyType,
			Status:        domain.KeyStatusActive,
			Algorithm:     alg,
			Tenant:        tenant,
			CreatedAt:     now,
			LastUsedAt:    now,
			RotationDueAt: now.Add(policy.Interval),
		}

		if err := s.vault.Put(ctx, keyID, wrapped, keyToMetadata(key)); err != nil {
			return nil, "", fmt.Errorf("kms: failed to persist %s key: %w", keyType, err)
		}

		s.keysByID[keyID] = key
		s.activeIndex[idxKey] = keyID
	}

	key := s.keysByID[keyID]
	if key.KeyType != keyType {
		return nil, "", domain.ErrWrongKeyType
	}

	now := time.Now().UTC()
	if entry, ok := s.cache[idxKey]; ok && entry.keyID == keyID && !entry.expired(s.cacheTTL, now) {
		out := make([]byte, len(entry.keyBytes))
		copy(out, entry.keyBytes)
		s.recordAccess(ctx, key, now)
		return out, keyID, nil
	}

	wrapped, _, err := s.vault.Get(ctx, keyID)
	if err != nil {
		return nil, "", fmt.Errorf("kms: failed to load wrapped key: %w", err)
	}
	raw, err := s.unwrap(wrapped, key.Algorithm, []byte(keyID))
	if err != nil {
		return nil, "", cryptoDomain.ErrDecryptionFailed
	}

	s.cache[idxKey] = cacheEntry{keyBytes: raw, keyID: keyID, fetchedAt: now}
	s.recordAccess(ctx, key, now)

	out := make([]byte, len(raw))
	copy(out, raw)
	return out, keyID, nil
}

func (s *Store) recordAccess(ctx context.Context, key *domain.Key, now time.Time) {
	key.LastUsedAt = now
	key.AccessCount++
	wrapped, metadata, err := s.vault.Get(ctx, key.KeyID)
	if err != nil {
		return
	}
	_ = s.vault.Put(ctx, key.KeyID, wrapped, mergeMetadata(metadata, keyToMetadata(key)))
}

func mergeMetadata(_ vault.Metadata, updated vault.Metadata) vault.Metadata {
	return updated
}

// Rotate generates a new key of the same type/tenant, transitions the old
// key ACTIVE -> DEPRECATED, and records derived_from (§4.2.1, §4.2.5).
func (s *Store) Rotate(ctx context.Context, keyID string, force bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotateLocked(ctx, keyID, force)
}

// rotateLocked assumes s.mu is already held.
func (s *Store) rotateLocked(ctx context.Context, keyID string, force bool) (string, error) {
	key, ok := s.keysByID[keyID]
	if !ok {
		return "", domain.ErrKeyNotFound
	}

	if !force {
		now := time.Now().UTC()
		if now.Before(key.RotationDueAt) {
			return "", domain.ErrRotationNotDue
		}
		if domain.PolicyFor(key.KeyType).ApprovalRequired {
			return "", domain.ErrApprovalRequired
		}
	}

	if !key.CanTransitionTo(domain.KeyStatusDeprecated) {
		return "", domain.ErrInvalidTransition
	}

	raw, err := service.GenerateKey(32)
	if err != nil {
		return "", err
	}
	defer cryptoDomain.Zero(raw)

	newID := uuid.Must(uuid.NewV7()).String()
	wrapped, err := s.wrap(raw, key.Algorithm, []byte(newID))
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	policy := domain.PolicyFor(key.KeyType)
	newKey := &domain.Key{
		KeyID:           newID,
		KeyType:         key.KeyType,
		Status:          domain.KeyStatusActive,
		Algorithm:       key.Algorithm,
		Tenant:          key.Tenant,
		CreatedAt:       now,
		LastUsedAt:      now,
		RotationDueAt:   now.Add(policy.Interval),
		DerivedFrom:     keyID,
		ComplianceLevel: key.ComplianceLevel,
	}

	if err := s.vault.Put(ctx, newID, wrapped, keyToMetadata(newKey)); err != nil {
		return "", fmt.Errorf("kms: failed to persist rotated key: %w", err)
	}

	key.Status = domain.KeyStatusDeprecated
	if oldWrapped, oldMeta, err := s.vault.Get(ctx, keyID); err == nil {
		_ = s.vault.Put(ctx, keyID, oldWrapped, mergeMetadata(oldMeta, keyToMetadata(key)))
	}

	s.keysByID[newID] = newKey
	idxKey := tenantKey(key.KeyType, key.Tenant)
	s.activeIndex[idxKey] = newID
	delete(s.cache, idxKey)

	if s.logger != nil {
		s.logger.Info("key rotated",
			slog.String("old_key_id", keyID),
			slog.String("new_key_id", newID),
			slog.String("key_type", string(key.KeyType)),
		)
	}

	return newID, nil
}

// Revoke transitions a key to REVOKED and invalidates any cache entry for
// its tenant.
func (s *Store) Revoke(ctx context.Context, keyID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keysByID[keyID]
	if !ok {
		return domain.ErrKeyNotFound
	}
	if !key.CanTransitionTo(domain.KeyStatusRevoked) {
		return domain.ErrInvalidTransition
	}

	key.Status = domain.KeyStatusRevoked

	wrapped, metadata, err := s.vault.Get(ctx, keyID)
	if err == nil {
		_ = s.vault.Put(ctx, keyID, wrapped, mergeMetadata(metadata, keyToMetadata(key)))
	}

	idxKey := tenantKey(key.KeyType, key.Tenant)
	if s.activeIndex[idxKey] == keyID {
		delete(s.activeIndex, idxKey)
	}
	delete(s.cache, idxKey)

	if s.logger != nil {
		s.logger.Warn("key revoked", slog.String("key_id", keyID), slog.String("reason", reason))
	}

	return nil
}

// ListDueForRotation returns rotation-due information for every currently
// tracked key (§4.2.1 list_due_for_rotation).
func (s *Store) ListDueForRotation(_ context.Context) ([]domain.RotationDueInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	infos := make([]domain.RotationDueInfo, 0, len(s.keysByID))
	for _, key := range s.keysByID {
		if key.Status != domain.KeyStatusActive {
			continue
		}
		infos = append(infos, domain.DueInfoFor(key, now))
	}
	return infos, nil
}

// Get returns the metadata record for keyID, or ErrKeyNotFound.
func (s *Store) Get(keyID string) (*domain.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keysByID[keyID]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	copied := *key
	return &copied, nil
}
