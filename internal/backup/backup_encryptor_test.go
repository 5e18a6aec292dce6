package backup

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	"github.com/allisson/legalvault/internal/crypto/service"
)

type fakeKeyResolver struct {
	key []byte
}

func newFakeKeyResolver() *fakeKeyResolver {
	k := make([]byte, 32)
	for i := range k {
		k[i] = byte(i + 7)
	}
	return &fakeKeyResolver{key: k}
}

func (f *fakeKeyResolver) GetOrCreateBackupKey(_ context.Context, _ string) ([]byte, string, error) {
	out := make([]byte, len(f.key))
	copy(out, f.key)
	return out, "backup-key-1", nil
}

func newTestSQLiteDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE matters (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO matters (id, name) VALUES (1, 'Smith v. Jones')`)
	require.NoError(t, err)

	return path
}

func newTestEncryptor(t *testing.T) (*Encryptor, *FileStorage) {
	t.Helper()
	storage, err := NewFileStorage(filepath.Join(t.TempDir(), "backups"))
	require.NoError(t, err)

	enc := NewEncryptor(
		newFakeKeyResolver(),
		storage,
		service.NewAEADManager(),
		t.TempDir(),
		"",
		5*time.Second,
		true,
		365,
	)
	return enc, storage
}

func TestCreateBackupDatabaseSourceRoundTrips(t *testing.T) {
	enc, _ := newTestEncryptor(t)
	dbPath := newTestSQLiteDB(t)

	meta, err := enc.CreateBackup(context.Background(), TypeDatabase, "file://"+dbPath)
	require.NoError(t, err)
	assert.Equal(t, "verified", meta.VerificationStatus)
	assert.Equal(t, CompressionGzip, meta.CompressionAlgorithm)

	restored, err := enc.RestoreBackup(context.Background(), meta.BackupID)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(restored, []byte("CREATE TABLE")))
	assert.True(t, bytes.Contains(restored, []byte("Smith v. Jones")))
}

func TestCreateBackupRejectsUnsupportedSource(t *testing.T) {
	enc, _ := newTestEncryptor(t)
	_, err := enc.CreateBackup(context.Background(), TypeDatabase, "ftp://nope")
	assert.ErrorIs(t, err, ErrUnsupportedSource)
}

func TestRestoreBackupDetectsTampering(t *testing.T) {
	enc, storage := newTestEncryptor(t)
	dbPath := newTestSQLiteDB(t)

	meta, err := enc.CreateBackup(context.Background(), TypeDatabase, "file://"+dbPath)
	require.NoError(t, err)

	data, err := storage.GetContainer(context.Background(), meta.BackupID)
	require.NoError(t, err)
	tampered := make([]byte, len(data))
	copy(tampered, data)
	tampered[len(tampered)-2] ^= 0xFF
	require.NoError(t, storage.PutContainer(context.Background(), meta.BackupID, tampered))

	_, err = enc.RestoreBackup(context.Background(), meta.BackupID)
	assert.Error(t, err)
}
