package document

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/legalvault/internal/crypto/domain"
	"github.com/allisson/legalvault/internal/crypto/service"
)

type fakeResolver struct {
	keyBytes []byte
	keyID    string
	err      error
}

func (f *fakeResolver) GetClientMatterKey(_ context.Context, _, _ string) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	out := make([]byte, len(f.keyBytes))
	copy(out, f.keyBytes)
	return out, f.keyID, nil
}

type memStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{data: make(map[string][]byte)}
}

func (m *memStorage) Put(_ context.Context, documentID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[documentID] = cp
	return nil
}

func (m *memStorage) Get(_ context.Context, documentID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[documentID]
	if !ok {
		return nil, ErrStorageFailure
	}
	return data, nil
}

func newTestEncryptor() (*Encryptor, *memStorage) {
	resolver := &fakeResolver{keyBytes: make([]byte, 32), keyID: "key-1"}
	for i := range resolver.keyBytes {
		resolver.keyBytes[i] = byte(i + 1)
	}
	storage := newMemStorage()
	enc := NewEncryptor(resolver, storage, service.NewAEADManager(), service.NewPBKDF2Service(), service.MinKDFIterations)
	return enc, storage
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, _ := newTestEncryptor()
	ctx := context.Background()
	plaintext := []byte("privileged communication between counsel and client")

	result, err := enc.Encrypt(ctx, plaintext, "doc-1", "attorney_client", Tenant{ClientID: "c1", MatterID: "m1"}, "letter.txt")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", result.DocumentID)

	out, err := enc.Decrypt(ctx, "doc-1", Tenant{ClientID: "c1", MatterID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, plaintext, out)
}

func TestDecryptDetectsCiphertextTampering(t *testing.T) {
	enc, storage := newTestEncryptor()
	ctx := context.Background()

	_, err := enc.Encrypt(ctx, []byte("hello"), "doc-2", "", Tenant{ClientID: "c1", MatterID: "m1"}, "")
	require.NoError(t, err)

	data, err := storage.Get(ctx, "doc-2")
	require.NoError(t, err)
	c, err := UnmarshalContainer(data)
	require.NoError(t, err)
	c.Ciphertext[len(c.Ciphertext)-1] ^= 0xFF
	tampered, err := c.Marshal()
	require.NoError(t, err)
	require.NoError(t, storage.Put(ctx, "doc-2", tampered))

	_, err = enc.Decrypt(ctx, "doc-2", Tenant{ClientID: "c1", MatterID: "m1"})
	assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
}

func TestDecryptDetectsPlaintextHashMismatch(t *testing.T) {
	enc, storage := newTestEncryptor()
	ctx := context.Background()

	_, err := enc.Encrypt(ctx, []byte("hello"), "doc-3", "", Tenant{ClientID: "c1", MatterID: "m1"}, "")
	require.NoError(t, err)

	data, err := storage.Get(ctx, "doc-3")
	require.NoError(t, err)
	c, err := UnmarshalContainer(data)
	require.NoError(t, err)
	c.OriginalPlaintextHash[0] ^= 0xFF
	marshaled, err := c.Marshal()
	require.NoError(t, err)
	require.NoError(t, storage.Put(ctx, "doc-3", marshaled))

	_, err = enc.Decrypt(ctx, "doc-3", Tenant{ClientID: "c1", MatterID: "m1"})
	assert.ErrorIs(t, err, cryptoDomain.ErrIntegrityFailure)
}

func TestEncryptRequiresDocumentID(t *testing.T) {
	enc, _ := newTestEncryptor()
	_, err := enc.Encrypt(context.Background(), []byte("x"), "", "", Tenant{}, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
