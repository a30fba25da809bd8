// Package ledger implements per-contract balance tables and the issue and
// transfer state machine that mutates them.
package ledger

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"currency-ledger/internal/domain"
)

// Table is the balance table of one contract for one symbol.
// Invariant: the sum of all balances equals the issued supply.
type Table struct {
	mu       sync.RWMutex
	contract domain.Name
	symbol   string
	balances map[domain.Name]uint64
	supply   uint64
}

// NewTable creates an empty table with a fixed symbol.
func NewTable(contract domain.Name, symbol string) (*Table, error) {
	if err := domain.ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	return &Table{
		contract: contract,
		symbol:   symbol,
		balances: make(map[domain.Name]uint64),
	}, nil
}

// Contract returns the owning contract account.
func (t *Table) Contract() domain.Name {
	return t.contract
}

// Symbol returns the table symbol.
func (t *Table) Symbol() string {
	return t.symbol
}

// Balance returns the balance of account, zero if it has no row.
func (t *Table) Balance(account domain.Name) domain.Asset {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return domain.NewAsset(t.balances[account], t.symbol)
}

// Supply returns the total issued supply.
func (t *Table) Supply() domain.Asset {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return domain.NewAsset(t.supply, t.symbol)
}

// Rows returns a consistent snapshot of all rows ordered by account.
func (t *Table) Rows() []domain.BalanceRow {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rows := make([]domain.BalanceRow, 0, len(t.balances))
	for account, amount := range t.balances {
		rows = append(rows, domain.BalanceRow{Account: account, Balance: domain.NewAsset(amount, t.symbol)})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Account < rows[j].Account
	})
	return rows
}

// CheckConservation verifies that balances sum to the issued supply.
func (t *Table) CheckConservation() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var sum uint64
	for account, amount := range t.balances {
		if sum > math.MaxUint64-amount {
			return fmt.Errorf("%s table: balances overflow at %s", t.contract, account)
		}
		sum += amount
	}
	if sum != t.supply {
		return fmt.Errorf("%s table: balances %s != supply %s",
			t.contract, domain.NewAsset(sum, t.symbol), domain.NewAsset(t.supply, t.symbol))
	}
	return nil
}

// issue credits to and raises the supply as one unit.
func (t *Table) issue(to domain.Name, quantity domain.Asset) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkSymbol(quantity); err != nil {
		return err
	}
	if t.supply > math.MaxUint64-quantity.Amount {
		return fmt.Errorf("%w: supply %s + %s overflows",
			domain.ErrInvalidQuantity, domain.NewAsset(t.supply, t.symbol), quantity)
	}
	// Balances never exceed supply, so the credit cannot overflow either.
	t.credit(to, quantity.Amount)
	t.supply += quantity.Amount
	return nil
}

// move debits from and credits to as one unit. from == to only checks the
// balance.
func (t *Table) move(from, to domain.Name, quantity domain.Asset) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkSymbol(quantity); err != nil {
		return err
	}
	if from == to {
		if t.balances[from] < quantity.Amount {
			return t.insufficient(from, quantity)
		}
		return nil
	}
	if err := t.debit(from, quantity.Amount); err != nil {
		return err
	}
	t.credit(to, quantity.Amount)
	return nil
}

func (t *Table) checkSymbol(quantity domain.Asset) error {
	if quantity.Symbol != t.symbol {
		return fmt.Errorf("%w: %s table holds %s, got %s", domain.ErrSymbolMismatch, t.contract, t.symbol, quantity.Symbol)
	}
	return nil
}

// credit adds amount to account, creating the row. Caller holds t.mu.
func (t *Table) credit(account domain.Name, amount uint64) {
	t.balances[account] += amount
}

// debit subtracts amount from account. Caller holds t.mu.
func (t *Table) debit(account domain.Name, amount uint64) error {
	balance := t.balances[account]
	if balance < amount {
		return t.insufficient(account, domain.NewAsset(amount, t.symbol))
	}
	t.balances[account] = balance - amount
	return nil
}

func (t *Table) insufficient(account domain.Name, quantity domain.Asset) error {
	return fmt.Errorf("%w: %s has %s, needs %s",
		domain.ErrInsufficientBalance, account, domain.NewAsset(t.balances[account], t.symbol), quantity)
}
