package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"golang.org/x/crypto/hkdf"

	"github.com/allisson/legalvault/internal/audit/domain"
	containerenc "github.com/allisson/legalvault/internal/container"
	cryptoDomain "github.com/allisson/legalvault/internal/crypto/domain"
)

// Signer produces and verifies tamper-evident HMAC-SHA256 signatures over
// audit events. Adapted in technique (not verbatim) from the teacher's
// auth/service/audit_signer.go: HKDF-derive a dedicated signing key from a
// SYSTEM-typed KMS key (instead of a KEK), then canonicalize-then-HMAC.
type Signer struct {
	signingKey []byte
}

// NewSigner derives a dedicated signing key from systemKey via
// HKDF-SHA256 and returns a Signer bound to it. The caller retains
// ownership of systemKey; NewSigner does not zero it.
func NewSigner(systemKey []byte) (*Signer, error) {
	info := []byte("audit-event-signing-v1")
	h := hkdf.New(sha256.New, systemKey, nil, info)

	signingKey := make([]byte, 32)
	if _, err := io.ReadFull(h, signingKey); err != nil {
		return nil, fmt.Errorf("audit: failed to derive signing key: %w", err)
	}

	return &Signer{signingKey: signingKey}, nil
}

// canonicalize converts an event to a deterministic byte string for
// signing: length-prefixed fields in fixed order, details/compliance_flags
// serialized via sorted-key JSON for reproducibility.
func (s *Signer) canonicalize(e *domain.Event) ([]byte, error) {
	buf := make([]byte, 0, 512)

	buf = containerenc.AppendLengthPrefixed(buf, []byte(e.EventID))
	buf = containerenc.AppendLengthPrefixed(buf, []byte(e.EventType))
	buf = containerenc.AppendLengthPrefixed(buf, []byte(e.EventLevel))
	buf = containerenc.AppendUint64(buf, uint64(e.Timestamp.UTC().UnixNano()))
	buf = containerenc.AppendLengthPrefixed(buf, []byte(e.UserID))
	buf = containerenc.AppendLengthPrefixed(buf, []byte(e.ClientID))
	buf = containerenc.AppendLengthPrefixed(buf, []byte(e.MatterID))
	buf = containerenc.AppendLengthPrefixed(buf, []byte(e.DocumentID))
	buf = containerenc.AppendLengthPrefixed(buf, []byte(e.KeyID))
	buf = containerenc.AppendLengthPrefixed(buf, []byte(e.SourceService))
	buf = containerenc.AppendLengthPrefixed(buf, []byte(e.SourceFunction))

	detailsJSON, err := marshalSorted(e.Details)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to marshal details: %w", err)
	}
	buf = containerenc.AppendLengthPrefixed(buf, detailsJSON)

	flags := append([]string{}, e.ComplianceFlags...)
	sort.Strings(flags)
	flagsJSON, err := json.Marshal(flags)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to marshal compliance flags: %w", err)
	}
	buf = containerenc.AppendLengthPrefixed(buf, flagsJSON)

	return buf, nil
}

// marshalSorted returns a deterministic JSON encoding of a map regardless
// of Go's randomized map iteration order.
func marshalSorted(m map[string]any) ([]byte, error) {
	if m == nil {
		return json.Marshal(map[string]any{})
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf []byte
	buf = append(buf, '{')
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		valJSON, err := json.Marshal(m[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		buf = append(buf, valJSON...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// Sign computes and sets e.Signature.
func (s *Signer) Sign(e *domain.Event) error {
	canonical, err := s.canonicalize(e)
	if err != nil {
		return err
	}
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write(canonical)
	e.Signature = mac.Sum(nil)
	return nil
}

// Verify reports whether e's signature matches its current contents.
func (s *Signer) Verify(e *domain.Event) error {
	canonical, err := s.canonicalize(e)
	if err != nil {
		return err
	}
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write(canonical)
	expected := mac.Sum(nil)

	if !hmac.Equal(e.Signature, expected) {
		return domain.ErrSignatureInvalid
	}
	return nil
}

// Close zeroes the derived signing key.
func (s *Signer) Close() {
	cryptoDomain.Zero(s.signingKey)
}
