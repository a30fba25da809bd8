package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"currency-ledger/internal/keys"
	"currency-ledger/internal/storage"
)

// WalletKeyStore implements storage.WalletKeyStore on a bbolt file.
type WalletKeyStore struct {
	db *DB
}

// NewWalletKeyStore creates a new WalletKeyStore.
func NewWalletKeyStore(db *DB) *WalletKeyStore {
	return &WalletKeyStore{db: db}
}

// Compile-time interface check.
var _ storage.WalletKeyStore = (*WalletKeyStore)(nil)

// keyValue is the stored value; the bucket key is the raw public key.
type keyValue struct {
	PrivateKey keys.PrivateKey `json:"private_key"`
	CreatedAt  int64           `json:"created_at"`
}

func bucketName(wallet string) []byte {
	return []byte("wallet/" + wallet)
}

// Insert adds a key. Returns ErrDuplicateKey if (wallet, public_key) exists.
func (s *WalletKeyStore) Insert(_ context.Context, r *storage.KeyRecord) error {
	if r == nil || r.Wallet == "" || r.PublicKey.IsZero() {
		return storage.ErrInvalidInput
	}

	value, err := json.Marshal(keyValue{PrivateKey: r.PrivateKey, CreatedAt: r.CreatedAt})
	if err != nil {
		return fmt.Errorf("encode wallet key: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName(r.Wallet))
		if err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		if b.Get(r.PublicKey[:]) != nil {
			return storage.ErrDuplicateKey
		}
		return b.Put(r.PublicKey[:], value)
	})
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return storage.ErrClosed
	}
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("insert wallet key: %w", err)
	}
	return err
}

// GetByWallet retrieves all keys of a wallet ordered by public key.
// bbolt iterates keys in byte order.
func (s *WalletKeyStore) GetByWallet(_ context.Context, wallet string) ([]*storage.KeyRecord, error) {
	var result []*storage.KeyRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName(wallet))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var kv keyValue
			if err := json.Unmarshal(v, &kv); err != nil {
				return fmt.Errorf("decode wallet key: %w", err)
			}
			rec := &storage.KeyRecord{
				Wallet:     wallet,
				PrivateKey: kv.PrivateKey,
				CreatedAt:  kv.CreatedAt,
			}
			copy(rec.PublicKey[:], k)
			result = append(result, rec)
			return nil
		})
	})
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return nil, storage.ErrClosed
	}
	if err != nil {
		return nil, fmt.Errorf("list wallet keys: %w", err)
	}
	return result, nil
}
