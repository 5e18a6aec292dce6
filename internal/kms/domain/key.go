// Package domain defines the typed key material the key management store
// manages: lifecycle state, tenant scoping, and rotation policy.
package domain

import (
	"time"

	cryptoDomain "github.com/allisson/legalvault/internal/crypto/domain"
)

// KeyType identifies the role of a key in the hierarchy anchored at MASTER.
type KeyType string

const (
	KeyTypeMaster       KeyType = "MASTER"
	KeyTypeClientMatter KeyType = "CLIENT_MATTER"
	KeyTypeDocument     KeyType = "DOCUMENT"
	KeyTypeBackup       KeyType = "BACKUP"
	KeyTypeArchive      KeyType = "ARCHIVE"
	KeyTypeSystem       KeyType = "SYSTEM"
)

// KeyStatus is the lifecycle state of a key.
type KeyStatus string

const (
	KeyStatusActive      KeyStatus = "ACTIVE"
	KeyStatusRotating    KeyStatus = "ROTATING"
	KeyStatusDeprecated  KeyStatus = "DEPRECATED"
	KeyStatusRevoked     KeyStatus = "REVOKED"
	KeyStatusCompromised KeyStatus = "COMPROMISED"
)

// Tenant scopes a key to a client/matter pair. Required for CLIENT_MATTER
// keys, forbidden for MASTER.
type Tenant struct {
	ClientID string
	MatterID string
}

// IsZero reports whether t carries no tenant scope.
func (t Tenant) IsZero() bool {
	return t.ClientID == "" && t.MatterID == ""
}

// Key is the typed key metadata record the vault's metadata map persists
// alongside the opaque wrapped key bytes. Key material itself never lives
// on this struct outside of the short-lived decrypted-in-cache path.
type Key struct {
	KeyID           string
	KeyType         KeyType
	Status          KeyStatus
	Algorithm       cryptoDomain.Algorithm
	Tenant          Tenant
	CreatedAt       time.Time
	LastUsedAt      time.Time
	RotationDueAt   time.Time
	AccessCount     int64
	DerivedFrom     string
	ComplianceLevel string
}

// CanTransitionTo reports whether moving from k's current status to next is
// a legal lifecycle transition. ACTIVE may move to ROTATING, DEPRECATED,
// REVOKED, or COMPROMISED. Any non-terminal state may move to REVOKED or
// COMPROMISED. Terminal states (DEPRECATED, REVOKED, COMPROMISED) never
// transition.
func (k *Key) CanTransitionTo(next KeyStatus) bool {
	switch k.Status {
	case KeyStatusDeprecated, KeyStatusRevoked, KeyStatusCompromised:
		return false
	case KeyStatusActive:
		switch next {
		case KeyStatusRotating, KeyStatusDeprecated, KeyStatusRevoked, KeyStatusCompromised:
			return true
		}
		return false
	case KeyStatusRotating:
		switch next {
		case KeyStatusDeprecated, KeyStatusActive, KeyStatusRevoked, KeyStatusCompromised:
			return true
		}
		return false
	}
	return false
}

// UsableForEncryption reports whether this key may encrypt new data.
func (k *Key) UsableForEncryption() bool {
	return k.Status == KeyStatusActive
}

// UsableForDecryption reports whether this key may decrypt existing data.
// DEPRECATED keys remain decryptable; REVOKED/COMPROMISED do not.
func (k *Key) UsableForDecryption() bool {
	return k.Status == KeyStatusActive || k.Status == KeyStatusDeprecated
}
