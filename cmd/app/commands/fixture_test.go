package commands

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/allisson/legalvault/internal/audit"
	auditDomain "github.com/allisson/legalvault/internal/audit/domain"
	"github.com/allisson/legalvault/internal/backup"
	"github.com/allisson/legalvault/internal/crypto/service"
	"github.com/allisson/legalvault/internal/document"
	"github.com/allisson/legalvault/internal/facade"
	"github.com/allisson/legalvault/internal/verify"
)

// fakeQueryStore is an in-memory audit.QueryStore, mirroring the one used
// by the facade package's own tests.
type fakeQueryStore struct {
	events    []*auditDomain.Event
	failedOps []*audit.FailedOperationRecord
}

func (f *fakeQueryStore) AppendBatch(_ context.Context, events []*auditDomain.Event) error {
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeQueryStore) Search(_ context.Context, criteria audit.SearchCriteria, limit int) ([]*auditDomain.Event, error) {
	var out []*auditDomain.Event
	for i := len(f.events) - 1; i >= 0; i-- {
		e := f.events[i]
		if criteria.DocumentID != "" && e.DocumentID != criteria.DocumentID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeQueryStore) RecordKeyAccess(_ context.Context, rec *audit.KeyAccessRecord) error {
	return nil
}

func (f *fakeQueryStore) RecordFailedOperation(_ context.Context, rec *audit.FailedOperationRecord) error {
	f.failedOps = append(f.failedOps, rec)
	return nil
}

func (f *fakeQueryStore) FailedOperationsInRange(_ context.Context, start, end time.Time) ([]*audit.FailedOperationRecord, error) {
	var out []*audit.FailedOperationRecord
	for _, r := range f.failedOps {
		if !r.FailedAt.Before(start) && !r.FailedAt.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestFacade(t *testing.T) *facade.Facade {
	t.Helper()
	f, _ := newTestFacadeAndLedger(t)
	return f
}

func newTestFacadeAndLedger(t *testing.T) (*facade.Facade, *audit.Ledger) {
	t.Helper()
	kmsStore := newTestKMSStore(t)

	storage, err := document.NewFileStorage(filepath.Join(t.TempDir(), "documents"))
	require.NoError(t, err)
	encryptor := document.NewEncryptor(kmsStore, storage, service.NewAEADManager(), service.NewPBKDF2Service(), service.MinKDFIterations)

	backupStorage, err := backup.NewFileStorage(filepath.Join(t.TempDir(), "backups"))
	require.NoError(t, err)
	backupEncryptor := backup.NewEncryptor(
		kmsStore, backupStorage, service.NewAEADManager(),
		t.TempDir(), "pg_dump", time.Minute, false, 365,
	)

	store := &fakeQueryStore{}
	signingKey := make([]byte, 32)
	signer, err := audit.NewSigner(signingKey)
	require.NoError(t, err)
	ledger := audit.NewLedger(store, audit.BufferConfig{MaxSize: 1000, FlushInterval: time.Hour}, signer, nil)

	tenants := verify.NewMemoryTenantIndex()
	monitor := verify.NewMonitor(kmsStore, storage, encryptor, tenants, ledger, verify.RemediationHooks{}, verify.Config{
		SweepInterval:              time.Hour,
		ComprehensiveCheckInterval: time.Hour,
		Workers:                    2,
		AutoRemediationEnabled:     false,
		MaxRemediationAttempts:     1,
		RemediationWindow:          time.Minute,
		AlertThresholdFailureRate:  0.05,
	}, nil)

	return facade.New(kmsStore, encryptor, backupEncryptor, ledger, monitor, tenants, nil), ledger
}
