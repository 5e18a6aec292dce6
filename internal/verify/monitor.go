// Package verify implements the Verification Monitor (C6): a background
// scheduler that periodically re-checks every encrypted document at an
// increasing tier of cost, tracks per-document failure history, and
// dispatches bounded auto-remediation and alerting.
package verify

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/allisson/legalvault/internal/audit"
	"github.com/allisson/legalvault/internal/audit/domain"
	cryptoDomain "github.com/allisson/legalvault/internal/crypto/domain"
	"github.com/allisson/legalvault/internal/document"
	vdomain "github.com/allisson/legalvault/internal/verify/domain"
)

// ContainerSource enumerates and loads stored document containers. Satisfied
// by document.FileStorage.
type ContainerSource interface {
	List(ctx context.Context) ([]string, error)
	Get(ctx context.Context, documentID string) ([]byte, error)
}

// TenantIndex resolves the (client_id, matter_id) tenant a document_id was
// encrypted under, so the sweep can re-derive its key without a caller
// supplying tenant scope for every document on every tick.
type TenantIndex interface {
	TenantFor(documentID string) (document.Tenant, bool)
}

// MemoryTenantIndex is a concurrency-safe in-memory TenantIndex. The
// Integration Facade records an entry here after every successful
// encrypt_client_document call.
type MemoryTenantIndex struct {
	mu   sync.RWMutex
	data map[string]document.Tenant
}

// NewMemoryTenantIndex creates an empty MemoryTenantIndex.
func NewMemoryTenantIndex() *MemoryTenantIndex {
	return &MemoryTenantIndex{data: make(map[string]document.Tenant)}
}

// Record associates documentID with tenant for future sweeps.
func (m *MemoryTenantIndex) Record(documentID string, tenant document.Tenant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[documentID] = tenant
}

// TenantFor implements TenantIndex.
func (m *MemoryTenantIndex) TenantFor(documentID string) (document.Tenant, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.data[documentID]
	return t, ok
}

// RemediationHooks are the external collaborators C6 invokes when
// auto-remediating a failure class (§4.6.3). Any nil hook is skipped.
type RemediationHooks struct {
	// RecoverKey attempts to restore access to a document's tenant key.
	RecoverKey func(ctx context.Context, documentID string, tenant document.Tenant) error
	// RestoreFromBackup attempts to recover a corrupted container from the
	// latest verified backup.
	RestoreFromBackup func(ctx context.Context, documentID string) error
}

// Config tunes the monitor's scheduling, remediation bounds, and alerting.
type Config struct {
	SweepInterval              time.Duration
	ComprehensiveCheckInterval time.Duration
	Workers                    int
	AutoRemediationEnabled     bool
	MaxRemediationAttempts     int
	RemediationWindow          time.Duration
	AlertThresholdFailureRate  float64
}

// Monitor implements the Verification Monitor (C6).
type Monitor struct {
	resolver  document.KeyResolver
	source    ContainerSource
	encryptor *document.Encryptor
	tenants   TenantIndex
	ledger    *audit.Ledger
	hooks     RemediationHooks
	cfg       Config
	logger    *slog.Logger

	mu                sync.Mutex
	failures          map[string]*vdomain.FailureEntry
	lastComprehensive time.Time

	remediationLimiters sync.Map // documentID -> *rate.Limiter

	onFailure []func(*vdomain.Record)
	onAlert   []func(alertType string, details map[string]any)
}

// NewMonitor constructs a Monitor. encryptor supplies Decrypt for
// COMPREHENSIVE/FORENSIC tiers; resolver and source back BASIC/STANDARD
// checks directly.
func NewMonitor(
	resolver document.KeyResolver,
	source ContainerSource,
	encryptor *document.Encryptor,
	tenants TenantIndex,
	ledger *audit.Ledger,
	hooks RemediationHooks,
	cfg Config,
	logger *slog.Logger,
) *Monitor {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		resolver:  resolver,
		source:    source,
		encryptor: encryptor,
		tenants:   tenants,
		ledger:    ledger,
		hooks:     hooks,
		cfg:       cfg,
		logger:    logger,
		failures:  make(map[string]*vdomain.FailureEntry),
	}
}

// OnFailure registers a callback invoked synchronously for every
// non-ENCRYPTED verification outcome (§4.6.3).
func (m *Monitor) OnFailure(fn func(*vdomain.Record)) {
	m.onFailure = append(m.onFailure, fn)
}

// OnAlert registers a callback invoked when the sliding-window failure rate
// crosses AlertThresholdFailureRate (§4.6.4).
func (m *Monitor) OnAlert(fn func(alertType string, details map[string]any)) {
	m.onAlert = append(m.onAlert, fn)
}

// Run drives the scheduler until ctx is cancelled: a STANDARD sweep every
// SweepInterval, promoted to COMPREHENSIVE once per ComprehensiveCheckInterval
// (§4.6.2). Mirrors the ticker-based loop in audit.Buffer.Run.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			level := vdomain.LevelStandard
			if time.Since(m.lastComprehensive) >= m.cfg.ComprehensiveCheckInterval {
				level = vdomain.LevelComprehensive
				m.lastComprehensive = time.Now()
			}
			if _, err := m.Sweep(ctx, level); err != nil && ctx.Err() == nil {
				m.logger.Error("verification sweep failed", slog.Any("error", err))
			}
		}
	}
}

// SweepResult aggregates a sweep's per-document outcomes.
type SweepResult struct {
	Records []*vdomain.Record
}

// FailureRate returns the fraction of records that did not come back
// ENCRYPTED.
func (r *SweepResult) FailureRate() float64 {
	if len(r.Records) == 0 {
		return 0
	}
	failed := 0
	for _, rec := range r.Records {
		if rec.Failed() {
			failed++
		}
	}
	return float64(failed) / float64(len(r.Records))
}

// Sweep verifies every known document at level, bounded by cfg.Workers
// concurrent verifications (mirrors document.BatchEncrypt's errgroup
// fan-out). A single document's failure never aborts the sweep.
func (m *Monitor) Sweep(ctx context.Context, level vdomain.Level) (*SweepResult, error) {
	ids, err := m.source.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	records := make([]*vdomain.Record, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			records[i] = m.VerifyDocument(gctx, id, level)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return &SweepResult{Records: records}, err
	}

	result := &SweepResult{Records: records}
	m.handleOutcomes(ctx, result)
	return result, nil
}

// VerifyDocument runs a single document through level (and every tier below
// it, per §4.6.1's "builds on the prior" ordering).
func (m *Monitor) VerifyDocument(ctx context.Context, documentID string, level vdomain.Level) *vdomain.Record {
	start := time.Now()
	rec := &vdomain.Record{
		DocumentID: documentID,
		FilePath:   documentID,
		Level:      level,
		VerifiedAt: start,
	}

	raw, err := m.source.Get(ctx, documentID)
	if err != nil {
		rec.Status = vdomain.StatusUnencrypted
		rec.Issues = append(rec.Issues, "container not found")
		rec.Duration = time.Since(start)
		return rec
	}

	tenant, ok := m.tenants.TenantFor(documentID)
	if !ok {
		rec.Status = vdomain.StatusVerificationFailed
		rec.Issues = append(rec.Issues, "no tenant recorded for document")
		rec.Duration = time.Since(start)
		return rec
	}

	// BASIC: container bytes exist and the tenant's key still resolves.
	keyBytes, _, err := m.resolver.GetClientMatterKey(ctx, tenant.ClientID, tenant.MatterID)
	if err != nil {
		rec.Status = vdomain.StatusKeyMissing
		rec.Issues = append(rec.Issues, "tenant key unavailable: "+err.Error())
		rec.Duration = time.Since(start)
		return rec
	}
	cryptoDomain.Zero(keyBytes)

	if level == vdomain.LevelBasic {
		rec.Status = vdomain.StatusEncrypted
		rec.MetadataValid = true
		rec.Duration = time.Since(start)
		return rec
	}

	// STANDARD: container schema is well-formed.
	if _, err := document.UnmarshalContainer(raw); err != nil {
		rec.Status = vdomain.StatusCorrupted
		rec.Issues = append(rec.Issues, "malformed container: "+err.Error())
		rec.Duration = time.Since(start)
		return rec
	}
	rec.MetadataValid = true

	if level == vdomain.LevelStandard {
		rec.Status = vdomain.StatusEncrypted
		rec.Duration = time.Since(start)
		return rec
	}

	// COMPREHENSIVE and FORENSIC: Encryptor.Decrypt performs a full AEAD
	// decrypt followed by a plaintext-hash recomputation (defense in depth
	// against tampering that still validates the AEAD tag), so both tiers
	// share the same check here; FORENSIC only promotes the label.
	plaintext, err := m.encryptor.Decrypt(ctx, documentID, tenant)
	if err != nil {
		rec.Status = vdomain.StatusVerificationFailed
		rec.Issues = append(rec.Issues, "decrypt failed: "+err.Error())
		rec.Duration = time.Since(start)
		return rec
	}
	cryptoDomain.Zero(plaintext)
	rec.DecryptionSuccessful = true
	rec.IntegrityVerified = true
	rec.Status = vdomain.StatusEncrypted
	rec.Duration = time.Since(start)
	return rec
}

func (m *Monitor) handleOutcomes(ctx context.Context, result *SweepResult) {
	for _, rec := range result.Records {
		if rec == nil {
			continue
		}
		if rec.Failed() {
			m.trackFailure(ctx, rec)
		} else {
			m.trackSuccess(rec)
		}
	}

	failureRate := result.FailureRate()
	if failureRate > m.cfg.AlertThresholdFailureRate {
		m.raiseAlert(ctx, "PATTERN_HIGH_FAILURE_RATE", map[string]any{
			"alert_type":   "PATTERN_HIGH_FAILURE_RATE",
			"failure_rate": failureRate,
			"documents":    len(result.Records),
			"threshold":    m.cfg.AlertThresholdFailureRate,
		})
	}
}

func (m *Monitor) trackFailure(ctx context.Context, rec *vdomain.Record) {
	m.mu.Lock()
	entry, ok := m.failures[rec.DocumentID]
	if !ok {
		entry = &vdomain.FailureEntry{DocumentID: rec.DocumentID}
		m.failures[rec.DocumentID] = entry
	}
	entry.RecordFailure(rec.VerifiedAt)
	attempts := entry.RemediationAttempts
	m.mu.Unlock()

	for _, fn := range m.onFailure {
		fn(rec)
	}

	if m.ledger != nil {
		_, _ = m.ledger.LogEvent(ctx, domain.EventVerificationFailure, map[string]any{
			"status": string(rec.Status),
			"issues": rec.Issues,
		}, audit.LogEventParams{DocumentID: rec.DocumentID})
	}

	if !m.cfg.AutoRemediationEnabled {
		return
	}
	if !m.allowRemediation(rec.DocumentID) {
		m.logger.Warn("remediation attempts bounded for document", slog.String("document_id", rec.DocumentID))
		return
	}

	m.mu.Lock()
	entry.RemediationAttempts = attempts + 1
	m.mu.Unlock()

	m.remediate(ctx, rec)
}

func (m *Monitor) trackSuccess(rec *vdomain.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.failures[rec.DocumentID]
	if !ok {
		return
	}
	entry.RecordSuccess(rec.VerifiedAt)
}

// allowRemediation enforces a per-document, per-window bound on
// remediation attempts (§4.6.3) via a token-bucket limiter keyed by
// document_id, the same idiom the teacher uses for per-IP token issuance
// rate limiting.
func (m *Monitor) allowRemediation(documentID string) bool {
	maxAttempts := m.cfg.MaxRemediationAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	window := m.cfg.RemediationWindow
	if window <= 0 {
		window = time.Hour
	}

	val, _ := m.remediationLimiters.LoadOrStore(documentID, rate.NewLimiter(
		rate.Every(window/time.Duration(maxAttempts)), maxAttempts,
	))
	limiter := val.(*rate.Limiter)
	return limiter.Allow()
}

func (m *Monitor) remediate(ctx context.Context, rec *vdomain.Record) {
	tenant, _ := m.tenants.TenantFor(rec.DocumentID)

	var err error
	switch rec.Status {
	case vdomain.StatusKeyMissing:
		if m.hooks.RecoverKey != nil {
			err = m.hooks.RecoverKey(ctx, rec.DocumentID, tenant)
		}
	case vdomain.StatusCorrupted:
		if m.hooks.RestoreFromBackup != nil {
			err = m.hooks.RestoreFromBackup(ctx, rec.DocumentID)
		}
	case vdomain.StatusVerificationFailed:
		// Re-verify once; a second consecutive failure is left for the
		// next scheduled sweep rather than retried indefinitely here.
		m.VerifyDocument(ctx, rec.DocumentID, rec.Level)
		return
	default:
		return
	}

	if err != nil {
		m.logger.Warn("remediation attempt failed",
			slog.String("document_id", rec.DocumentID),
			slog.String("status", string(rec.Status)),
			slog.Any("error", err))
	}
}

func (m *Monitor) raiseAlert(ctx context.Context, alertType string, details map[string]any) {
	for _, fn := range m.onAlert {
		fn(alertType, details)
	}
	if m.ledger != nil {
		_, _ = m.ledger.LogEvent(ctx, domain.EventSecurityAlert, details, audit.LogEventParams{})
	}
}
