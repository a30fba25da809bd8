// Package wallet holds imported private keys and signs with them.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"currency-ledger/internal/domain"
	"currency-ledger/internal/keys"
	"currency-ledger/internal/storage"
	"currency-ledger/internal/storage/memory"
)

// DefaultName is the wallet opened when none is named.
const DefaultName = "default"

// KeyStore is a named wallet. Keys are cached in memory and persisted to
// the backend on import.
type KeyStore struct {
	// importMu serializes imports; mu guards keys and is never held
	// across backend I/O.
	importMu sync.Mutex
	mu       sync.RWMutex
	name     string
	backend  storage.WalletKeyStore
	keys     map[keys.PublicKey]keys.PrivateKey
}

// Open loads the keys of the named wallet from backend.
func Open(ctx context.Context, name string, backend storage.WalletKeyStore) (*KeyStore, error) {
	if name == "" {
		name = DefaultName
	}

	records, err := backend.GetByWallet(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load wallet %s: %w", name, err)
	}

	ks := &KeyStore{
		name:    name,
		backend: backend,
		keys:    make(map[keys.PublicKey]keys.PrivateKey, len(records)),
	}
	for _, r := range records {
		if r.PrivateKey.Public() != r.PublicKey {
			return nil, fmt.Errorf("load wallet %s: key %s: %w: private key does not match", name, r.PublicKey, domain.ErrInvalidKey)
		}
		ks.keys[r.PublicKey] = r.PrivateKey
	}
	return ks, nil
}

// NewEphemeral returns an empty wallet that is never written to disk.
func NewEphemeral(name string) *KeyStore {
	ks, _ := Open(context.Background(), name, memory.NewWalletKeyStore())
	return ks
}

// Name returns the wallet name.
func (k *KeyStore) Name() string {
	return k.name
}

// Import registers a private key and persists it. Returns the public key.
// Fails with domain.ErrDuplicateKey if the key is already held.
func (k *KeyStore) Import(ctx context.Context, priv keys.PrivateKey) (keys.PublicKey, error) {
	pub := priv.Public()

	k.importMu.Lock()
	defer k.importMu.Unlock()

	if k.HasAuthority(pub) {
		return pub, fmt.Errorf("import %s: %w", pub, domain.ErrDuplicateKey)
	}

	err := k.backend.Insert(ctx, &storage.KeyRecord{
		Wallet:     k.name,
		PublicKey:  pub,
		PrivateKey: priv,
		CreatedAt:  time.Now().UnixMilli(),
	})
	if errors.Is(err, storage.ErrDuplicateKey) {
		return pub, fmt.Errorf("import %s: %w", pub, domain.ErrDuplicateKey)
	}
	if err != nil {
		return keys.PublicKey{}, fmt.Errorf("persist key %s: %w", pub, err)
	}

	k.mu.Lock()
	k.keys[pub] = priv
	k.mu.Unlock()
	return pub, nil
}

// HasAuthority reports whether the wallet holds the private key of pub.
func (k *KeyStore) HasAuthority(pub keys.PublicKey) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()

	_, ok := k.keys[pub]
	return ok
}

// Sign signs payload with the private key of pub.
// Fails with domain.ErrUnknownKey if the key is not held.
func (k *KeyStore) Sign(payload []byte, pub keys.PublicKey) (keys.Signature, error) {
	k.mu.RLock()
	priv, ok := k.keys[pub]
	k.mu.RUnlock()

	if !ok {
		return keys.Signature{}, fmt.Errorf("sign with %s: %w", pub, domain.ErrUnknownKey)
	}
	return priv.Sign(payload), nil
}

// PublicKeys lists the held keys in ascending order.
func (k *KeyStore) PublicKeys() []keys.PublicKey {
	k.mu.RLock()
	defer k.mu.RUnlock()

	result := make([]keys.PublicKey, 0, len(k.keys))
	for pub := range k.keys {
		result = append(result, pub)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Compare(result[j]) < 0
	})
	return result
}
