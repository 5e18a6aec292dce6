package service

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
)

// GenerateKey returns size cryptographically random bytes suitable for use
// as an AEAD key or KDF salt.
func GenerateKey(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random key material: %w", err)
	}
	return b, nil
}

// SHA256 returns the SHA-256 digest of data, used for content-integrity
// checksums on document and backup containers.
func SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
