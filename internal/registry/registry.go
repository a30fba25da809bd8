// Package registry maps account names to their authorities.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"currency-ledger/internal/domain"
	"currency-ledger/internal/keys"
)

// KeyHolder reports whether a private key is available for signing.
// Satisfied by *wallet.KeyStore.
type KeyHolder interface {
	HasAuthority(pub keys.PublicKey) bool
}

// Registry is the account table of a chain.
type Registry struct {
	mu       sync.RWMutex
	wallet   KeyHolder
	accounts map[domain.Name]domain.Account
	now      func() time.Time
}

// New returns a registry seeded with the system account, whose owner and
// active authorities are both genesis.
func New(wallet KeyHolder, genesis keys.PublicKey) *Registry {
	r := &Registry{
		wallet:   wallet,
		accounts: make(map[domain.Name]domain.Account),
		now:      time.Now,
	}
	r.accounts[domain.SystemAccount] = domain.Account{
		Name:      domain.SystemAccount,
		OwnerKey:  genesis,
		ActiveKey: genesis,
		CreatedAt: r.now().UnixMilli(),
	}
	return r
}

// CreateAccount creates name on behalf of creator. The wallet must hold the
// creator's active key.
func (r *Registry) CreateAccount(creator, name domain.Name, owner, active keys.PublicKey) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.checkCreate(creator, name, owner, active); err != nil {
		return domain.Account{}, err
	}

	acc := domain.Account{
		Name:      name,
		OwnerKey:  owner,
		ActiveKey: active,
		Creator:   creator,
		CreatedAt: r.now().UnixMilli(),
	}
	r.accounts[name] = acc
	return acc, nil
}

// CheckCreate runs the checks of CreateAccount without creating anything
// and returns the creator's active key.
func (r *Registry) CheckCreate(creator, name domain.Name, owner, active keys.PublicKey) (keys.PublicKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.checkCreate(creator, name, owner, active)
}

func (r *Registry) checkCreate(creator, name domain.Name, owner, active keys.PublicKey) (keys.PublicKey, error) {
	if err := name.Validate(); err != nil {
		return keys.PublicKey{}, err
	}
	if owner.IsZero() || active.IsZero() {
		return keys.PublicKey{}, fmt.Errorf("create %s: %w: empty authority", name, domain.ErrInvalidKey)
	}

	c, ok := r.accounts[creator]
	if !ok {
		return keys.PublicKey{}, fmt.Errorf("creator %q: %w", creator, domain.ErrUnknownAccount)
	}
	if !r.wallet.HasAuthority(c.ActiveKey) {
		return keys.PublicKey{}, fmt.Errorf("create %s: %w of %s", name, domain.ErrAuthorization, domain.Active(creator))
	}
	if _, exists := r.accounts[name]; exists {
		return keys.PublicKey{}, fmt.Errorf("create %s: %w", name, domain.ErrDuplicateAccount)
	}
	return c.ActiveKey, nil
}

// Resolve returns the named account.
func (r *Registry) Resolve(name domain.Name) (domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.accounts[name]
	if !ok {
		return domain.Account{}, fmt.Errorf("account %q: %w", name, domain.ErrUnknownAccount)
	}
	return acc, nil
}

// AuthorityKey returns the key required by the account at level.
func (r *Registry) AuthorityKey(name domain.Name, level domain.Level) (keys.PublicKey, error) {
	acc, err := r.Resolve(name)
	if err != nil {
		return keys.PublicKey{}, err
	}
	return acc.AuthorityKey(level)
}

// Accounts lists every account ordered by name.
func (r *Registry) Accounts() []domain.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Account, 0, len(r.accounts))
	for _, acc := range r.accounts {
		result = append(result, acc)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}
