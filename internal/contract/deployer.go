// Package contract stores deployed code and ABI per account.
package contract

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"currency-ledger/internal/domain"
	"currency-ledger/internal/keys"
)

// Hash is a SHA256 content digest.
type Hash [sha256.Size]byte

// String returns the lowercase hex form.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HashOf returns the digest of b.
func HashOf(b []byte) Hash {
	return sha256.Sum256(b)
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// Accounts resolves the keys of an account.
type Accounts interface {
	AuthorityKey(name domain.Name, level domain.Level) (keys.PublicKey, error)
}

// KeyHolder reports whether a private key is available for signing.
type KeyHolder interface {
	HasAuthority(pub keys.PublicKey) bool
}

// Deployment is the code installed on an account.
type Deployment struct {
	Account    domain.Name `json:"account_name"`
	Code       []byte      `json:"code"`
	ABI        []byte      `json:"abi"`
	CodeHash   Hash        `json:"code_hash"`
	ABIHash    Hash        `json:"abi_hash"`
	DeployedAt int64       `json:"deployed_at"` // Unix timestamp in milliseconds
}

// Deployer keeps at most one deployment per account.
type Deployer struct {
	mu          sync.RWMutex
	accounts    Accounts
	wallet      KeyHolder
	deployments map[domain.Name]Deployment
}

// NewDeployer creates a Deployer.
func NewDeployer(accounts Accounts, wallet KeyHolder) *Deployer {
	return &Deployer{
		accounts:    accounts,
		wallet:      wallet,
		deployments: make(map[domain.Name]Deployment),
	}
}

// Deploy installs code and abi on account, replacing any prior deployment.
// The wallet must hold the account's active key.
func (d *Deployer) Deploy(account domain.Name, code, abi []byte) (Deployment, error) {
	if _, err := d.Authorize(account); err != nil {
		return Deployment{}, err
	}

	dep := Deployment{
		Account:    account,
		Code:       append([]byte(nil), code...),
		ABI:        append([]byte(nil), abi...),
		CodeHash:   HashOf(code),
		ABIHash:    HashOf(abi),
		DeployedAt: time.Now().UnixMilli(),
	}

	d.mu.Lock()
	d.deployments[account] = dep
	d.mu.Unlock()

	return dep, nil
}

// Authorize returns the active key of account if the wallet holds it.
func (d *Deployer) Authorize(account domain.Name) (keys.PublicKey, error) {
	key, err := d.accounts.AuthorityKey(account, domain.LevelActive)
	if err != nil {
		return keys.PublicKey{}, fmt.Errorf("deploy to %s: %w", account, err)
	}
	if !d.wallet.HasAuthority(key) {
		return keys.PublicKey{}, fmt.Errorf("deploy to %s: %w of %s", account, domain.ErrAuthorization, domain.Active(account))
	}
	return key, nil
}

// CodeHash returns the hash of the code on account. ok is false before any
// deployment.
func (d *Deployer) CodeHash(account domain.Name) (hash Hash, ok bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	dep, ok := d.deployments[account]
	return dep.CodeHash, ok
}

// Deployment returns a copy of the deployment on account.
func (d *Deployer) Deployment(account domain.Name) (Deployment, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	dep, ok := d.deployments[account]
	if !ok {
		return Deployment{}, false
	}
	dep.Code = append([]byte(nil), dep.Code...)
	dep.ABI = append([]byte(nil), dep.ABI...)
	return dep, true
}

// Contracts lists the accounts with deployed code.
func (d *Deployer) Contracts() []domain.Name {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]domain.Name, 0, len(d.deployments))
	for name := range d.deployments {
		result = append(result, name)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
