package document

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	cryptoDomain "github.com/allisson/legalvault/internal/crypto/domain"
	"github.com/allisson/legalvault/internal/crypto/service"
)

// KeyResolver resolves the current ACTIVE CLIENT_MATTER key for a tenant.
// Implemented by kms.Store.
type KeyResolver interface {
	GetClientMatterKey(ctx context.Context, clientID, matterID string) ([]byte, string, error)
}

// Storage persists and loads serialized containers by document_id. Success
// MUST be atomic: implementations must not leave a partially written
// container visible (e.g. write to a temp path then rename).
type Storage interface {
	Put(ctx context.Context, documentID string, data []byte) error
	Get(ctx context.Context, documentID string) ([]byte, error)
}

// Tenant scopes a document operation to a (client_id, matter_id) pair.
type Tenant struct {
	ClientID string
	MatterID string
}

// EncryptionResult is the C3 encrypt contract's return value (§4.3.1 step 8).
type EncryptionResult struct {
	DocumentID   string
	ContainerRef string
	KeyID        string
}

// Encryptor implements the Document Encryptor (C3).
type Encryptor struct {
	resolver    KeyResolver
	storage     Storage
	aeadManager service.AEADManager
	kdf         service.KDF
	iterations  int
}

// NewEncryptor creates an Encryptor. iterations is the PBKDF2 round count
// for document-key derivation (default 100,000 per §4.1).
func NewEncryptor(resolver KeyResolver, storage Storage, aeadManager service.AEADManager, kdf service.KDF, iterations int) *Encryptor {
	return &Encryptor{
		resolver:    resolver,
		storage:     storage,
		aeadManager: aeadManager,
		kdf:         kdf,
		iterations:  iterations,
	}
}

func (e *Encryptor) deriveDocumentKey(masterKeyBytes []byte, documentID string, salt []byte) ([]byte, error) {
	ikm := append(append([]byte{}, masterKeyBytes...), []byte(documentID)...)
	defer cryptoDomain.Zero(ikm)
	return e.kdf.Derive(ikm, salt, e.iterations, 32)
}

// Encrypt implements §4.3.1: resolve tenant key, derive a per-document DEK,
// AEAD-encrypt, and persist the resulting container.
func (e *Encryptor) Encrypt(
	ctx context.Context,
	plaintext []byte,
	documentID, complianceLevel string,
	tenant Tenant,
	originalFilename string,
) (*EncryptionResult, error) {
	if documentID == "" {
		return nil, ErrInvalidInput
	}

	masterKeyBytes, keyID, err := e.resolver.GetClientMatterKey(ctx, tenant.ClientID, tenant.MatterID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingKey, err)
	}
	defer cryptoDomain.Zero(masterKeyBytes)

	salt, err := service.GenerateKey(16)
	if err != nil {
		return nil, err
	}

	dek, err := e.deriveDocumentKey(masterKeyBytes, documentID, salt)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(dek)

	plaintextHash := service.SHA256(plaintext)
	createdAt := time.Now().UTC()
	aad := BuildAAD(documentID, complianceLevel, createdAt, originalFilename)

	cipher, err := e.aeadManager.CreateCipher(dek, cryptoDomain.AESGCM)
	if err != nil {
		return nil, err
	}

	ciphertext, nonce, err := cipher.Encrypt(plaintext, aad)
	if err != nil {
		return nil, err
	}

	keyIDDigest := service.SHA256(dek)[:16]

	c := &Container{
		Version:               ContainerVersion,
		Algorithm:             cryptoDomain.AESGCM,
		DocumentID:            documentID,
		ComplianceLevel:       complianceLevel,
		OriginalFilename:      originalFilename,
		Salt:                  salt,
		Nonce:                 nonce,
		Ciphertext:            ciphertext,
		OriginalPlaintextHash: plaintextHash,
		CreatedAt:             createdAt,
		KeyIDDigest:           keyIDDigest,
	}

	data, err := c.Marshal()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	if err := e.storage.Put(ctx, documentID, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	return &EncryptionResult{DocumentID: documentID, ContainerRef: documentID, KeyID: keyID}, nil
}

// Decrypt implements §4.3.2: load the container, re-derive the document
// key from the stored salt and the tenant's current master key, decrypt,
// and verify the plaintext hash as a defense-in-depth check independent of
// the AEAD tag.
func (e *Encryptor) Decrypt(ctx context.Context, documentID string, tenant Tenant) ([]byte, error) {
	data, err := e.storage.Get(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	c, err := UnmarshalContainer(data)
	if err != nil {
		return nil, err
	}

	masterKeyBytes, _, err := e.resolver.GetClientMatterKey(ctx, tenant.ClientID, tenant.MatterID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingKey, err)
	}
	defer cryptoDomain.Zero(masterKeyBytes)

	dek, err := e.deriveDocumentKey(masterKeyBytes, c.DocumentID, c.Salt)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(dek)

	cipher, err := e.aeadManager.CreateCipher(dek, c.Algorithm)
	if err != nil {
		return nil, err
	}

	aad := BuildAAD(c.DocumentID, c.ComplianceLevel, c.CreatedAt, c.OriginalFilename)
	plaintext, err := cipher.Decrypt(c.Ciphertext, c.Nonce, aad)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	actualHash := service.SHA256(plaintext)
	if subtle.ConstantTimeCompare(actualHash, c.OriginalPlaintextHash) != 1 {
		return nil, cryptoDomain.ErrIntegrityFailure
	}

	return plaintext, nil
}
