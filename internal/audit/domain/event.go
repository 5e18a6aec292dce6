// Package domain defines the Audit Ledger's event schema: the closed
// EventType enum (§6.3), retention-period derivation (§4.5.1), and
// compliance-flag predicates. Grounded on the teacher's
// auth/domain/audit_log.go struct shape (request/client identity,
// structured metadata, HMAC signature fields), generalized from a single
// authorization-decision record to the spec's broader event schema.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType is the closed set of audit event kinds (§6.3).
type EventType string

const (
	EventDocumentEncrypted        EventType = "DOCUMENT_ENCRYPTED"
	EventDocumentDecrypted        EventType = "DOCUMENT_DECRYPTED"
	EventEncryptionFailed         EventType = "ENCRYPTION_FAILED"
	EventDecryptionFailed         EventType = "DECRYPTION_FAILED"
	EventKeyCreated                EventType = "KEY_CREATED"
	EventKeyAccessed               EventType = "KEY_ACCESSED"
	EventKeyRotated                EventType = "KEY_ROTATED"
	EventKeyDeprecated             EventType = "KEY_DEPRECATED"
	EventKeyRevoked                EventType = "KEY_REVOKED"
	EventBackupEncrypted           EventType = "BACKUP_ENCRYPTED"
	EventBackupDecrypted           EventType = "BACKUP_DECRYPTED"
	EventBackupVerified            EventType = "BACKUP_VERIFIED"
	EventUnauthorizedAccessAttempt EventType = "UNAUTHORIZED_ACCESS_ATTEMPT"
	EventKeyCompromiseSuspected    EventType = "KEY_COMPROMISE_SUSPECTED"
	EventVerificationFailure       EventType = "VERIFICATION_FAILURE"
	EventSecurityAlert             EventType = "SECURITY_ALERT"
	EventComplianceCheck           EventType = "COMPLIANCE_CHECK"
	EventRetentionPolicyApplied    EventType = "RETENTION_POLICY_APPLIED"
	EventDataExportRequest         EventType = "DATA_EXPORT_REQUEST"
	EventSystemStartup             EventType = "SYSTEM_STARTUP"
	EventSystemShutdown            EventType = "SYSTEM_SHUTDOWN"
	EventConfigurationChange       EventType = "CONFIGURATION_CHANGE"
)

// Level is the severity of an audit event.
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
	LevelSecurity Level = "SECURITY"
)

// Compliance flags (§4.5.1 step 3).
const (
	FlagAttorneyClientPrivilege = "ATTORNEY_CLIENT_PRIVILEGE"
	FlagPersonalData            = "PERSONAL_DATA"
	FlagDocumentRetention       = "DOCUMENT_RETENTION"
	FlagSecurityIncident        = "SECURITY_INCIDENT"
)

// SecurityContext captures the process/thread/host an event originated
// from, for forensic reconstruction.
type SecurityContext struct {
	Process string `json:"process"`
	Thread  string `json:"thread"`
	Host    string `json:"host"`
}

// Event is a single audit record (§3.4). Once flushed from the buffer to
// the ledger store it is immutable.
type Event struct {
	EventID         string
	EventType       EventType
	EventLevel      Level
	Timestamp       time.Time
	UserID          string
	ClientID        string
	MatterID        string
	DocumentID      string
	KeyID           string
	SourceService   string
	SourceFunction  string
	Details         map[string]any
	SecurityContext SecurityContext
	ComplianceFlags []string
	RetentionUntil  time.Time
	Signature       []byte
}

// securitySet is the set of event types that always carry SECURITY-grade
// retention regardless of declared level.
var securitySet = map[EventType]bool{
	EventKeyCompromiseSuspected:    true,
	EventUnauthorizedAccessAttempt: true,
	EventSecurityAlert:             true,
}

var keyLifecycleSet = map[EventType]bool{
	EventKeyCreated: true,
	EventKeyRotated: true,
	EventKeyRevoked: true,
}

var documentOpsSet = map[EventType]bool{
	EventDocumentEncrypted: true,
	EventDocumentDecrypted: true,
}

var complianceSet = map[EventType]bool{
	EventComplianceCheck:    true,
	EventDataExportRequest: true,
}

// RetentionFor derives retention_until from (event_type, level), deriving
// deterministically per §4.5.1 step 2.
func RetentionFor(eventType EventType, level Level, now time.Time) time.Time {
	switch {
	case level == LevelSecurity || securitySet[eventType]:
		return now.AddDate(10, 0, 0)
	case keyLifecycleSet[eventType]:
		return now.AddDate(7, 0, 0)
	case documentOpsSet[eventType]:
		return now.AddDate(7, 0, 0)
	case complianceSet[eventType]:
		return now.AddDate(10, 0, 0)
	default:
		return now.AddDate(3, 0, 0)
	}
}

// ComplianceFlags derives the compliance-flag multiset for an event from
// its type and details (§4.5.1 step 3). piiMarkerKeys names the detail keys
// this deployment treats as personal-data indicators (configurable, since
// the spec leaves the PII marker set implementation-defined).
func ComplianceFlags(eventType EventType, level Level, details map[string]any, piiMarkerKeys []string) []string {
	var flags []string

	if v, ok := details["compliance_level"]; ok {
		if s, ok := v.(string); ok && s == "attorney_client" {
			flags = append(flags, FlagAttorneyClientPrivilege)
		}
	}

	for _, key := range piiMarkerKeys {
		if _, ok := details[key]; ok {
			flags = append(flags, FlagPersonalData)
			break
		}
	}

	if documentOpsSet[eventType] {
		flags = append(flags, FlagDocumentRetention)
	}

	if securitySet[eventType] || level == LevelSecurity {
		flags = append(flags, FlagSecurityIncident)
	}

	return flags
}

// NewEventID returns a fresh unique event identifier.
func NewEventID() string {
	return uuid.Must(uuid.NewV7()).String()
}
