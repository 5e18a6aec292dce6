package domain

import "time"

// RotationPolicy defines how a key type is rotated automatically per §4.2.4.
type RotationPolicy struct {
	Interval        time.Duration
	MaxAge          time.Duration
	Auto            bool
	WarningWindow   time.Duration
	MaxUses         int64 // 0 means unlimited
	ApprovalRequired bool
}

// RotationPolicies is the fixed per-key-type rotation table.
var RotationPolicies = map[KeyType]RotationPolicy{
	KeyTypeMaster: {
		Interval:         365 * 24 * time.Hour,
		MaxAge:           400 * 24 * time.Hour,
		Auto:             false,
		WarningWindow:    30 * 24 * time.Hour,
		MaxUses:          0,
		ApprovalRequired: true,
	},
	KeyTypeClientMatter: {
		Interval:         90 * 24 * time.Hour,
		MaxAge:           120 * 24 * time.Hour,
		Auto:             true,
		WarningWindow:    14 * 24 * time.Hour,
		MaxUses:          10000,
		ApprovalRequired: false,
	},
	KeyTypeDocument: {
		Interval:         30 * 24 * time.Hour,
		MaxAge:           45 * 24 * time.Hour,
		Auto:             true,
		WarningWindow:    7 * 24 * time.Hour,
		MaxUses:          1000,
		ApprovalRequired: false,
	},
	KeyTypeBackup: {
		Interval:         90 * 24 * time.Hour,
		MaxAge:           120 * 24 * time.Hour,
		Auto:             true,
		WarningWindow:    14 * 24 * time.Hour,
		MaxUses:          0,
		ApprovalRequired: false,
	},
}

// PolicyFor returns the rotation policy for a key type, falling back to the
// CLIENT_MATTER policy for key types without an explicit entry (ARCHIVE,
// SYSTEM), since neither appears in the §4.2.4 table.
func PolicyFor(kt KeyType) RotationPolicy {
	if p, ok := RotationPolicies[kt]; ok {
		return p
	}
	return RotationPolicies[KeyTypeClientMatter]
}

// DueForRotation reports whether key k should be auto-rotated right now.
func DueForRotation(k *Key, now time.Time) bool {
	policy := PolicyFor(k.KeyType)
	return k.Status == KeyStatusActive && policy.Auto && now.After(k.RotationDueAt)
}

// RotationDueInfo is one row of list_due_for_rotation (§4.2.1).
type RotationDueInfo struct {
	KeyID              string
	KeyType            KeyType
	AgeDays            int
	DaysUntilRotation  int
	Overdue            bool
}

// DueInfoFor builds the rotation-due summary row for key k at time now.
func DueInfoFor(k *Key, now time.Time) RotationDueInfo {
	ageDays := int(now.Sub(k.CreatedAt).Hours() / 24)
	daysUntil := int(k.RotationDueAt.Sub(now).Hours() / 24)
	return RotationDueInfo{
		KeyID:             k.KeyID,
		KeyType:           k.KeyType,
		AgeDays:           ageDays,
		DaysUntilRotation: daysUntil,
		Overdue:           now.After(k.RotationDueAt),
	}
}
