// Package domain defines the Verification Monitor's output record types:
// the per-document verification outcome (§3.5) and the per-document
// failure-tracking entry (§3.6) C6 maintains across sweeps.
package domain

import "time"

// Level is a verification tier of increasing cost (§4.6.1).
type Level string

const (
	LevelBasic         Level = "BASIC"
	LevelStandard      Level = "STANDARD"
	LevelComprehensive Level = "COMPREHENSIVE"
	LevelForensic      Level = "FORENSIC"
)

// Status is a single document's verification outcome (§3.5).
type Status string

const (
	StatusEncrypted          Status = "ENCRYPTED"
	StatusUnencrypted        Status = "UNENCRYPTED"
	StatusVerificationFailed Status = "VERIFICATION_FAILED"
	StatusKeyMissing         Status = "KEY_MISSING"
	StatusCorrupted          Status = "CORRUPTED"
	StatusPendingEncryption  Status = "PENDING_ENCRYPTION"
)

// Record is a single document's verification result (§3.5).
type Record struct {
	DocumentID           string
	FilePath             string
	Status               Status
	Level                Level
	VerifiedAt           time.Time
	Duration             time.Duration
	Issues               []string
	MetadataValid        bool
	DecryptionSuccessful bool
	IntegrityVerified    bool
}

// Failed reports whether Status represents anything other than a clean pass.
func (r *Record) Failed() bool {
	return r.Status != StatusEncrypted
}

// FailureEntry tracks a document's cumulative verification failure history
// across sweeps (§3.6).
type FailureEntry struct {
	DocumentID          string
	FailureCount        int
	FirstFailureAt      time.Time
	LastFailureAt       time.Time
	LastSuccessAt       time.Time
	RemediationAttempts int
}

// RecordFailure updates the entry for a new failing verification at t.
func (f *FailureEntry) RecordFailure(t time.Time) {
	if f.FailureCount == 0 {
		f.FirstFailureAt = t
	}
	f.FailureCount++
	f.LastFailureAt = t
}

// RecordSuccess records a clean verification at t. Prior
// failure_count history is kept (the spec's failure-tracking entry is
// cumulative, not a streak counter), only last_success_at advances.
func (f *FailureEntry) RecordSuccess(t time.Time) {
	f.LastSuccessAt = t
}
