package memory

import (
	"context"
	"sort"
	"sync"

	"currency-ledger/internal/keys"
	"currency-ledger/internal/storage"
)

// WalletKeyStore is an in-memory implementation of storage.WalletKeyStore.
type WalletKeyStore struct {
	mu      sync.RWMutex
	wallets map[string]map[keys.PublicKey]*storage.KeyRecord // wallet -> public key -> record
}

// NewWalletKeyStore creates a new in-memory wallet key store.
func NewWalletKeyStore() *WalletKeyStore {
	return &WalletKeyStore{
		wallets: make(map[string]map[keys.PublicKey]*storage.KeyRecord),
	}
}

// Insert adds a key. Returns ErrDuplicateKey if (wallet, public_key) exists.
func (s *WalletKeyStore) Insert(_ context.Context, r *storage.KeyRecord) error {
	if r == nil || r.Wallet == "" || r.PublicKey.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[r.Wallet]
	if !ok {
		w = make(map[keys.PublicKey]*storage.KeyRecord)
		s.wallets[r.Wallet] = w
	}
	if _, exists := w[r.PublicKey]; exists {
		return storage.ErrDuplicateKey
	}

	rec := *r
	w[r.PublicKey] = &rec
	return nil
}

// GetByWallet retrieves all keys of a wallet ordered by public key.
func (s *WalletKeyStore) GetByWallet(_ context.Context, wallet string) ([]*storage.KeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.KeyRecord, 0, len(s.wallets[wallet]))
	for _, r := range s.wallets[wallet] {
		rec := *r
		result = append(result, &rec)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].PublicKey.Compare(result[j].PublicKey) < 0
	})
	return result, nil
}

var _ storage.WalletKeyStore = (*WalletKeyStore)(nil)
