package commands

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/legalvault/internal/crypto/domain"
	"github.com/allisson/legalvault/internal/crypto/service"
	"github.com/allisson/legalvault/internal/kms"
	"github.com/allisson/legalvault/internal/vault"
)

func newTestKMSStore(t *testing.T) *kms.Store {
	t.Helper()

	rawMaster := make([]byte, 32)
	for i := range rawMaster {
		rawMaster[i] = byte(i)
	}
	require.NoError(t, os.Setenv("MASTER_KEYS", "m1:"+base64.StdEncoding.EncodeToString(rawMaster)))
	require.NoError(t, os.Setenv("ACTIVE_MASTER_KEY_ID", "m1"))
	t.Cleanup(func() {
		_ = os.Unsetenv("MASTER_KEYS")
		_ = os.Unsetenv("ACTIVE_MASTER_KEY_ID")
	})

	chain, err := cryptoDomain.LoadMasterKeyChainFromEnv()
	require.NoError(t, err)
	t.Cleanup(chain.Close)

	v, err := vault.NewFileBackend(filepath.Join(t.TempDir(), "vault"))
	require.NoError(t, err)

	store := kms.NewStore(v, service.NewAEADManager(), chain, 5*time.Minute, nil)
	_, err = store.EnsureMaster(context.Background())
	require.NoError(t, err)
	return store
}

func TestRunListDueForRotation(t *testing.T) {
	store := newTestKMSStore(t)
	ctx := context.Background()

	_, err := store.CreateClientMatterKey(ctx, "client-1", "matter-1", "standard")
	require.NoError(t, err)

	var out bytes.Buffer
	err = RunListDueForRotation(ctx, store, &out)
	require.NoError(t, err)
	require.Contains(t, out.String(), "CLIENT_MATTER")
}

func TestRunRevokeKey(t *testing.T) {
	store := newTestKMSStore(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	result, err := store.CreateClientMatterKey(ctx, "client-1", "matter-1", "standard")
	require.NoError(t, err)
	keyID := result.KeyID

	err = RunRevokeKey(ctx, store, logger, keyID, "suspected compromise")
	require.NoError(t, err)

	key, err := store.Get(keyID)
	require.NoError(t, err)
	require.Equal(t, "REVOKED", string(key.Status))
}
