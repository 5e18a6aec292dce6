package vault

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) *FileBackend {
	t.Helper()
	dir := t.TempDir()
	b, err := NewFileBackend(filepath.Join(dir, "vault"))
	require.NoError(t, err)
	return b
}

func TestFileBackendPutGet(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	err := b.Put(ctx, "key-1", []byte("wrapped-bytes"), Metadata{"key_type": "MASTER"})
	require.NoError(t, err)

	data, metadata, err := b.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("wrapped-bytes"), data)
	assert.Equal(t, "MASTER", metadata["key_type"])
}

func TestFileBackendGetMissing(t *testing.T) {
	b := newTestBackend(t)
	_, _, err := b.Get(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestFileBackendDeleteOverwritesBeforeUnlink(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "key-1", []byte("secret-material"), Metadata{}))
	keyPath := b.keyPath("key-1")

	require.NoError(t, b.Delete(ctx, "key-1"))

	_, err := os.Stat(keyPath)
	assert.True(t, os.IsNotExist(err))

	_, _, err = b.Get(ctx, "key-1")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestFileBackendDeleteMissingIsNotError(t *testing.T) {
	b := newTestBackend(t)
	err := b.Delete(context.Background(), "never-existed")
	assert.NoError(t, err)
}

func TestFileBackendListFiltersByType(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "master-1", []byte("a"), Metadata{"key_type": "MASTER"}))
	require.NoError(t, b.Put(ctx, "cm-1", []byte("b"), Metadata{"key_type": "CLIENT_MATTER"}))
	require.NoError(t, b.Put(ctx, "cm-2", []byte("c"), Metadata{"key_type": "CLIENT_MATTER"}))

	all, err := b.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	clientMatter, err := b.List(ctx, "CLIENT_MATTER")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cm-1", "cm-2"}, clientMatter)
}
