// Package service provides the cryptographic primitives the rest of the
// platform builds on: AEAD cipher construction, password-based key
// derivation, and the KMS keeper used to unwrap the master key bundle.
//
// # Services Overview
//
// AEADManagerService is a factory for AEAD cipher instances, supporting
// AES-256-GCM and ChaCha20-Poly1305.
//
// PBKDF2Service derives per-document and per-backup keys from a master
// or client-matter key plus a random salt.
//
// KMSService opens a gocloud.dev/secrets keeper used to unwrap the
// MASTER key bundle when KMS mode is configured.
//
// # Thread Safety
//
// All service implementations are stateless and safe for concurrent use.
package service

import (
	cryptoDomain "github.com/allisson/legalvault/internal/crypto/domain"
)

// AEAD defines authenticated encryption with associated data. Implementations
// must ensure any tampering with ciphertext or AAD is detected on Decrypt.
type AEAD interface {
	// Encrypt encrypts plaintext with optional AAD, generating a fresh
	// CSPRNG nonce for this call. The nonce must be stored alongside the
	// ciphertext for decryption.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt decrypts ciphertext using the nonce and AAD used at encryption
	// time. Returns ErrDecryptionFailed-wrapping errors on tag mismatch.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)

	// NonceSize returns the nonce length this cipher expects.
	NonceSize() int
}

// AEADManager creates AEAD cipher instances for a given algorithm and key.
type AEADManager interface {
	// CreateCipher creates an AEAD cipher instance for the specified
	// algorithm. The key must be exactly 32 bytes for both supported
	// algorithms.
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// KDF derives a key from an input key and a random salt using a
// password-based key derivation function. Used to derive per-document and
// per-backup keys from a KMS-managed key without persisting the derived
// key itself.
type KDF interface {
	// Derive returns a derivedKeyLen-byte key derived from ikm and salt
	// using iterations rounds of the underlying PRF. The same ikm, salt,
	// and iterations always yield the same output.
	Derive(ikm, salt []byte, iterations, derivedKeyLen int) ([]byte, error)
}
