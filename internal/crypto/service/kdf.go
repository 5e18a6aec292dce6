package service

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"

	cryptoDomain "github.com/allisson/legalvault/internal/crypto/domain"
)

// MinKDFSalt is the minimum accepted salt length for Derive, in bytes.
const MinKDFSalt = 16

// MinKDFIterations is the minimum accepted iteration count for Derive.
const MinKDFIterations = 10000

// PBKDF2Service derives keys using PBKDF2-HMAC-SHA256.
type PBKDF2Service struct{}

// NewPBKDF2Service creates a new PBKDF2Service instance.
func NewPBKDF2Service() *PBKDF2Service {
	return &PBKDF2Service{}
}

// Derive runs PBKDF2-HMAC-SHA256 over ikm with salt, returning derivedKeyLen
// bytes of key material. iterations below MinKDFIterations or a salt shorter
// than MinKDFSalt are rejected.
func (p *PBKDF2Service) Derive(ikm, salt []byte, iterations, derivedKeyLen int) ([]byte, error) {
	if len(salt) < MinKDFSalt {
		return nil, cryptoDomain.ErrInvalidKDFParams
	}
	if iterations < MinKDFIterations {
		return nil, cryptoDomain.ErrInvalidKDFParams
	}
	if derivedKeyLen <= 0 {
		return nil, cryptoDomain.ErrInvalidKDFParams
	}

	return pbkdf2.Key(sha256.New, string(ikm), salt, iterations, derivedKeyLen), nil
}
