package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"currency-ledger/internal/contract"
	"currency-ledger/internal/domain"
	"currency-ledger/internal/keys"
)

// MaxMemoLength is the maximum memo size in bytes.
const MaxMemoLength = 256

// Accounts resolves accounts and their authorities.
// Satisfied by *registry.Registry.
type Accounts interface {
	Resolve(name domain.Name) (domain.Account, error)
	AuthorityKey(name domain.Name, level domain.Level) (keys.PublicKey, error)
}

// KeyHolder reports whether a private key is available for signing.
// Satisfied by *wallet.KeyStore.
type KeyHolder interface {
	HasAuthority(pub keys.PublicKey) bool
}

// Contracts reports deployed code. Satisfied by *contract.Deployer.
type Contracts interface {
	CodeHash(account domain.Name) (contract.Hash, bool)
}

// Machine applies issue and transfer actions. Every check runs before any
// table is touched, so a rejected action leaves no trace.
type Machine struct {
	mu        sync.RWMutex
	accounts  Accounts
	wallet    KeyHolder
	contracts Contracts
	tables    map[domain.Name]*Table
}

// NewMachine creates a Machine with no tables.
func NewMachine(accounts Accounts, wallet KeyHolder, contracts Contracts) *Machine {
	return &Machine{
		accounts:  accounts,
		wallet:    wallet,
		contracts: contracts,
		tables:    make(map[domain.Name]*Table),
	}
}

// Issue mints quantity to the account to. It requires the active key of the
// contract, named by perm. The first issue fixes the table symbol.
func (m *Machine) Issue(contractAccount, to domain.Name, quantity domain.Asset, memo string, perm domain.Permission) error {
	if _, err := m.requireActive("issue", contractAccount, contractAccount, perm); err != nil {
		return err
	}
	if err := checkQuantity(quantity); err != nil {
		return fmt.Errorf("issue: %w", err)
	}
	if len(memo) > MaxMemoLength {
		return fmt.Errorf("issue: %w: memo has more than %d bytes", domain.ErrInvalidPayload, MaxMemoLength)
	}
	if _, err := m.accounts.Resolve(to); err != nil {
		return fmt.Errorf("issue to: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, exists := m.tables[contractAccount]
	if !exists {
		var err error
		if t, err = NewTable(contractAccount, quantity.Symbol); err != nil {
			return fmt.Errorf("issue: %w", err)
		}
	}
	if err := t.issue(to, quantity); err != nil {
		return fmt.Errorf("issue: %w", err)
	}
	if !exists {
		m.tables[contractAccount] = t
	}
	return nil
}

// Transfer moves quantity from one account to another. It requires the
// active key of from, named by perm.
func (m *Machine) Transfer(contractAccount, from, to domain.Name, quantity domain.Asset, memo string, perm domain.Permission) error {
	if _, err := m.requireActive("transfer", contractAccount, from, perm); err != nil {
		return err
	}
	if err := checkQuantity(quantity); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if len(memo) > MaxMemoLength {
		return fmt.Errorf("transfer: %w: memo has more than %d bytes", domain.ErrInvalidPayload, MaxMemoLength)
	}
	if _, err := m.accounts.Resolve(to); err != nil {
		return fmt.Errorf("transfer to: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[contractAccount]
	if !ok {
		return fmt.Errorf("transfer: %w: %s has no %s balance", domain.ErrInsufficientBalance, from, quantity.Symbol)
	}
	if err := t.move(from, to, quantity); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	return nil
}

// Apply decodes the action data and dispatches by action name.
func (m *Machine) Apply(act domain.Action) error {
	switch act.Name {
	case domain.ActionIssue:
		var p domain.IssuePayload
		if err := decodePayload(act, &p); err != nil {
			return err
		}
		return m.Issue(act.Contract, p.To, p.Quantity, p.Memo, act.Authorization)
	case domain.ActionTransfer:
		var p domain.TransferPayload
		if err := decodePayload(act, &p); err != nil {
			return err
		}
		return m.Transfer(act.Contract, p.From, p.To, p.Quantity, p.Memo, act.Authorization)
	default:
		return fmt.Errorf("%s: %w", act, domain.ErrUnknownAction)
	}
}

// Signer returns the key that authorizes act without applying it: the active
// key of the contract for issue and of the sender for transfer. It fails the
// way Apply would up to and including the authorization checks.
func (m *Machine) Signer(act domain.Action) (keys.PublicKey, error) {
	switch act.Name {
	case domain.ActionIssue:
		var p domain.IssuePayload
		if err := decodePayload(act, &p); err != nil {
			return keys.PublicKey{}, err
		}
		return m.requireActive("issue", act.Contract, act.Contract, act.Authorization)
	case domain.ActionTransfer:
		var p domain.TransferPayload
		if err := decodePayload(act, &p); err != nil {
			return keys.PublicKey{}, err
		}
		return m.requireActive("transfer", act.Contract, p.From, act.Authorization)
	default:
		return keys.PublicKey{}, fmt.Errorf("%s: %w", act, domain.ErrUnknownAction)
	}
}

// Table returns the balance table of a contract, if any issue created one.
func (m *Machine) Table(contractAccount domain.Name) (*Table, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[contractAccount]
	return t, ok
}

// Tables lists all tables ordered by contract.
func (m *Machine) Tables() []*Table {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Table, 0, len(m.tables))
	for _, t := range m.tables {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].contract < result[j].contract
	})
	return result
}

func (m *Machine) checkContract(account domain.Name) error {
	if _, ok := m.contracts.CodeHash(account); !ok {
		return fmt.Errorf("%s: %w", account, domain.ErrUnknownContract)
	}
	return nil
}

// requireActive checks that contractAccount has code, that perm is the
// active permission of actor and that the wallet holds actor's active key,
// which it returns.
func (m *Machine) requireActive(op string, contractAccount, actor domain.Name, perm domain.Permission) (keys.PublicKey, error) {
	if err := m.checkContract(contractAccount); err != nil {
		return keys.PublicKey{}, err
	}
	if perm.Actor != actor {
		return keys.PublicKey{}, fmt.Errorf("%s: %w: %s cannot act for %s", op, domain.ErrAuthorization, perm, actor)
	}
	if perm.Level != domain.LevelActive {
		return keys.PublicKey{}, fmt.Errorf("%s: %w: %s is not an active permission", op, domain.ErrAuthorization, perm)
	}
	key, err := m.accounts.AuthorityKey(actor, domain.LevelActive)
	if err != nil {
		return keys.PublicKey{}, fmt.Errorf("%s: %w", op, err)
	}
	if !m.wallet.HasAuthority(key) {
		return keys.PublicKey{}, fmt.Errorf("%s: %w of %s", op, domain.ErrAuthorization, domain.Active(actor))
	}
	return key, nil
}

func checkQuantity(q domain.Asset) error {
	if q.Amount == 0 {
		return fmt.Errorf("%w: %s must be positive", domain.ErrInvalidQuantity, q)
	}
	return domain.ValidateSymbol(q.Symbol)
}

// decodePayload rejects unknown fields so misspelled keys never default to zero.
func decodePayload(act domain.Action, v any) error {
	dec := json.NewDecoder(bytes.NewReader(act.Data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%s: %w: %w", act, domain.ErrInvalidPayload, err)
	}
	return nil
}
