package verify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/legalvault/internal/crypto/service"
	"github.com/allisson/legalvault/internal/document"
	vdomain "github.com/allisson/legalvault/internal/verify/domain"
)

type fakeResolver struct {
	mu      sync.Mutex
	keys    map[string][]byte
	revoked map[string]bool
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{keys: make(map[string][]byte), revoked: make(map[string]bool)}
}

func (f *fakeResolver) tenantKey(clientID, matterID string) string { return clientID + "/" + matterID }

func (f *fakeResolver) ensure(clientID, matterID string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	tk := f.tenantKey(clientID, matterID)
	k, ok := f.keys[tk]
	if !ok {
		k = make([]byte, 32)
		for i := range k {
			k[i] = byte(i + 1)
		}
		f.keys[tk] = k
	}
	return k
}

func (f *fakeResolver) revoke(clientID, matterID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[f.tenantKey(clientID, matterID)] = true
}

func (f *fakeResolver) GetClientMatterKey(_ context.Context, clientID, matterID string) ([]byte, string, error) {
	f.mu.Lock()
	tk := f.tenantKey(clientID, matterID)
	if f.revoked[tk] {
		f.mu.Unlock()
		return nil, "", document.ErrMissingKey
	}
	k, ok := f.keys[tk]
	f.mu.Unlock()
	if !ok {
		return nil, "", document.ErrMissingKey
	}
	out := make([]byte, len(k))
	copy(out, k)
	return out, "key-" + tk, nil
}

type fakeContainerSource struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeContainerSource() *fakeContainerSource {
	return &fakeContainerSource{data: make(map[string][]byte)}
}

func (s *fakeContainerSource) Put(_ context.Context, documentID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[documentID] = data
	return nil
}

func (s *fakeContainerSource) Get(_ context.Context, documentID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[documentID]
	if !ok {
		return nil, document.ErrStorageFailure
	}
	return d, nil
}

func (s *fakeContainerSource) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func newTestMonitor(t *testing.T) (*Monitor, *fakeResolver, *fakeContainerSource, *document.Encryptor, *MemoryTenantIndex) {
	t.Helper()
	resolver := newFakeResolver()
	storage := newFakeContainerSource()
	enc := document.NewEncryptor(resolver, storage, service.NewAEADManager(), service.NewPBKDF2Service(), service.MinKDFIterations)
	tenants := NewMemoryTenantIndex()
	cfg := Config{
		SweepInterval:              time.Hour,
		ComprehensiveCheckInterval: time.Hour,
		Workers:                    4,
		AutoRemediationEnabled:     true,
		MaxRemediationAttempts:     2,
		RemediationWindow:          time.Minute,
		AlertThresholdFailureRate:  0.05,
	}
	mon := NewMonitor(resolver, storage, enc, tenants, nil, RemediationHooks{}, cfg, nil)
	return mon, resolver, storage, enc, tenants
}

func TestVerifyDocumentComprehensiveSucceeds(t *testing.T) {
	mon, resolver, _, enc, tenants := newTestMonitor(t)
	ctx := context.Background()
	resolver.ensure("c1", "m1")
	tenants.Record("doc-1", document.Tenant{ClientID: "c1", MatterID: "m1"})

	_, err := enc.Encrypt(ctx, []byte("hello"), "doc-1", "attorney_client", document.Tenant{ClientID: "c1", MatterID: "m1"}, "")
	require.NoError(t, err)

	rec := mon.VerifyDocument(ctx, "doc-1", vdomain.LevelComprehensive)
	assert.Equal(t, vdomain.StatusEncrypted, rec.Status)
	assert.True(t, rec.DecryptionSuccessful)
	assert.True(t, rec.IntegrityVerified)
}

func TestVerifyDocumentMissingContainerIsUnencrypted(t *testing.T) {
	mon, _, _, _, tenants := newTestMonitor(t)
	ctx := context.Background()
	tenants.Record("doc-missing", document.Tenant{ClientID: "c1", MatterID: "m1"})

	rec := mon.VerifyDocument(ctx, "doc-missing", vdomain.LevelBasic)
	assert.Equal(t, vdomain.StatusUnencrypted, rec.Status)
}

func TestVerifyDocumentRevokedKeyIsKeyMissing(t *testing.T) {
	mon, resolver, _, enc, tenants := newTestMonitor(t)
	ctx := context.Background()
	resolver.ensure("c1", "m1")
	tenants.Record("doc-2", document.Tenant{ClientID: "c1", MatterID: "m1"})

	_, err := enc.Encrypt(ctx, []byte("hello"), "doc-2", "", document.Tenant{ClientID: "c1", MatterID: "m1"}, "")
	require.NoError(t, err)

	resolver.revoke("c1", "m1")

	rec := mon.VerifyDocument(ctx, "doc-2", vdomain.LevelBasic)
	assert.Equal(t, vdomain.StatusKeyMissing, rec.Status)
}

func TestVerifyDocumentCorruptedContainerFailsAtStandard(t *testing.T) {
	mon, resolver, storage, enc, tenants := newTestMonitor(t)
	ctx := context.Background()
	resolver.ensure("c1", "m1")
	tenants.Record("doc-3", document.Tenant{ClientID: "c1", MatterID: "m1"})

	_, err := enc.Encrypt(ctx, []byte("hello"), "doc-3", "", document.Tenant{ClientID: "c1", MatterID: "m1"}, "")
	require.NoError(t, err)

	require.NoError(t, storage.Put(ctx, "doc-3", []byte("not json")))

	rec := mon.VerifyDocument(ctx, "doc-3", vdomain.LevelStandard)
	assert.Equal(t, vdomain.StatusCorrupted, rec.Status)
}

func TestSweepTracksFailuresAndRaisesAlertOnHighFailureRate(t *testing.T) {
	mon, resolver, _, enc, tenants := newTestMonitor(t)
	ctx := context.Background()
	resolver.ensure("c1", "m1")

	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		tenants.Record(id, document.Tenant{ClientID: "c1", MatterID: "m1"})
		_, err := enc.Encrypt(ctx, []byte("hello"), id, "", document.Tenant{ClientID: "c1", MatterID: "m1"}, "")
		require.NoError(t, err)
	}
	resolver.revoke("c1", "m1")

	var alerts []string
	mon.OnAlert(func(alertType string, _ map[string]any) { alerts = append(alerts, alertType) })

	var failedCount int
	var mu sync.Mutex
	mon.OnFailure(func(rec *vdomain.Record) {
		mu.Lock()
		failedCount++
		mu.Unlock()
	})

	result, err := mon.Sweep(ctx, vdomain.LevelBasic)
	require.NoError(t, err)
	assert.Equal(t, 5, failedCount)
	assert.Equal(t, 1.0, result.FailureRate())
	assert.Contains(t, alerts, "PATTERN_HIGH_FAILURE_RATE")
}

func TestRemediationAttemptsAreBoundedPerWindow(t *testing.T) {
	mon, resolver, _, enc, tenants := newTestMonitor(t)
	ctx := context.Background()
	resolver.ensure("c1", "m1")
	tenants.Record("doc-4", document.Tenant{ClientID: "c1", MatterID: "m1"})
	_, err := enc.Encrypt(ctx, []byte("hello"), "doc-4", "", document.Tenant{ClientID: "c1", MatterID: "m1"}, "")
	require.NoError(t, err)
	resolver.revoke("c1", "m1")

	var recoverCalls int
	var mu sync.Mutex
	mon.hooks.RecoverKey = func(_ context.Context, _ string, _ document.Tenant) error {
		mu.Lock()
		recoverCalls++
		mu.Unlock()
		return nil
	}

	for i := 0; i < 5; i++ {
		_, err := mon.Sweep(ctx, vdomain.LevelBasic)
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, recoverCalls, mon.cfg.MaxRemediationAttempts)
}
