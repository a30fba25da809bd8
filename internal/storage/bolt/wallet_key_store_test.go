package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"currency-ledger/internal/keys"
	"currency-ledger/internal/storage"
)

func openTestDB(t *testing.T, path string) *DB {
	t.Helper()

	db, err := Open(path)
	require.NoError(t, err, "failed to open wallet file")
	return db
}

func TestWalletKeyStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "wallets", "default.wallet")

	owner := keys.FromPhrase("owner_key")
	active := keys.FromPhrase("active_key")

	db := openTestDB(t, path)
	store := NewWalletKeyStore(db)
	require.NoError(t, store.Insert(ctx, &storage.KeyRecord{Wallet: "default", PublicKey: owner.Public, PrivateKey: owner.Private, CreatedAt: 1}))
	require.NoError(t, store.Insert(ctx, &storage.KeyRecord{Wallet: "default", PublicKey: active.Public, PrivateKey: active.Private, CreatedAt: 2}))
	require.NoError(t, db.Close())

	db = openTestDB(t, path)
	defer db.Close()
	store = NewWalletKeyStore(db)

	got, err := store.GetByWallet(ctx, "default")
	require.NoError(t, err)
	require.Len(t, got, 2)

	byKey := map[keys.PublicKey]*storage.KeyRecord{}
	for _, r := range got {
		byKey[r.PublicKey] = r
	}
	assert.Equal(t, owner.Private, byKey[owner.Public].PrivateKey)
	assert.Equal(t, active.Private, byKey[active.Public].PrivateKey)
	assert.Equal(t, int64(2), byKey[active.Public].CreatedAt)
	assert.Negative(t, got[0].PublicKey.Compare(got[1].PublicKey))
}

func TestWalletKeyStore_Duplicate(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, filepath.Join(t.TempDir(), "w.db"))
	defer db.Close()
	store := NewWalletKeyStore(db)

	pair := keys.FromPhrase("eosio")
	rec := &storage.KeyRecord{Wallet: "default", PublicKey: pair.Public, PrivateKey: pair.Private}

	require.NoError(t, store.Insert(ctx, rec))
	assert.ErrorIs(t, store.Insert(ctx, rec), storage.ErrDuplicateKey)

	// Same key in another wallet is fine.
	rec.Wallet = "other"
	require.NoError(t, store.Insert(ctx, rec))
}

func TestWalletKeyStore_MissingWalletAndClosed(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, filepath.Join(t.TempDir(), "w.db"))
	store := NewWalletKeyStore(db)

	got, err := store.GetByWallet(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)

	require.NoError(t, db.Close())
	pair := keys.FromPhrase("eosio")
	err = store.Insert(ctx, &storage.KeyRecord{Wallet: "default", PublicKey: pair.Public, PrivateKey: pair.Private})
	assert.ErrorIs(t, err, storage.ErrClosed)
}
