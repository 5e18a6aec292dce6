package kms

import (
	"fmt"
	"strconv"
	"time"

	cryptoDomain "github.com/allisson/legalvault/internal/crypto/domain"
	"github.com/allisson/legalvault/internal/kms/domain"
	"github.com/allisson/legalvault/internal/vault"
)

const timeLayout = time.RFC3339Nano

func keyToMetadata(k *domain.Key) vault.Metadata {
	return vault.Metadata{
		"key_id":           k.KeyID,
		"key_type":         string(k.KeyType),
		"status":           string(k.Status),
		"algorithm":        string(k.Algorithm),
		"client_id":        k.Tenant.ClientID,
		"matter_id":        k.Tenant.MatterID,
		"created_at":       k.CreatedAt.UTC().Format(timeLayout),
		"last_used_at":     k.LastUsedAt.UTC().Format(timeLayout),
		"rotation_due_at":  k.RotationDueAt.UTC().Format(timeLayout),
		"access_count":     strconv.FormatInt(k.AccessCount, 10),
		"derived_from":     k.DerivedFrom,
		"compliance_level": k.ComplianceLevel,
	}
}

func metadataToKey(m vault.Metadata) (*domain.Key, error) {
	createdAt, err := time.Parse(timeLayout, m["created_at"])
	if err != nil {
		return nil, fmt.Errorf("kms: invalid created_at in metadata: %w", err)
	}
	lastUsedAt, _ := time.Parse(timeLayout, m["last_used_at"])
	rotationDueAt, _ := time.Parse(timeLayout, m["rotation_due_at"])
	accessCount, _ := strconv.ParseInt(m["access_count"], 10, 64)

	return &domain.Key{
		KeyID:     m["key_id"],
		KeyType:   domain.KeyType(m["key_type"]),
		Status:    domain.KeyStatus(m["status"]),
		Algorithm: cryptoDomain.Algorithm(m["algorithm"]),
		Tenant: domain.Tenant{
			ClientID: m["client_id"],
			MatterID: m["matter_id"],
		},
		CreatedAt:       createdAt,
		LastUsedAt:      lastUsedAt,
		RotationDueAt:   rotationDueAt,
		AccessCount:     accessCount,
		DerivedFrom:     m["derived_from"],
		ComplianceLevel: m["compliance_level"],
	}, nil
}

func tenantKey(kt domain.KeyType, t domain.Tenant) string {
	return string(kt) + "|" + t.ClientID + "|" + t.MatterID
}
