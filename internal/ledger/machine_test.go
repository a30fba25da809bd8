package ledger

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"currency-ledger/internal/contract"
	"currency-ledger/internal/domain"
	"currency-ledger/internal/keys"
	"currency-ledger/internal/registry"
	"currency-ledger/internal/wallet"
)

const currency domain.Name = "currency"

type fixture struct {
	machine *Machine
	wallet  *wallet.KeyStore
	reg     *registry.Registry
}

// newFixture builds a fresh chain state: the system account, a "currency"
// account with deployed code whose active key is in the wallet, and "alice"
// whose keys are not.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	ks := wallet.NewEphemeral("default")
	genesis := keys.FromPhrase("genesis")
	_, err := ks.Import(ctx, genesis.Private)
	require.NoError(t, err)

	reg := registry.New(ks, genesis.Public)

	active := keys.FromPhrase("currency active")
	_, err = ks.Import(ctx, active.Private)
	require.NoError(t, err)
	_, err = reg.CreateAccount(domain.SystemAccount, currency, keys.FromPhrase("currency owner").Public, active.Public)
	require.NoError(t, err)

	alice := keys.FromPhrase("alice")
	_, err = reg.CreateAccount(domain.SystemAccount, "alice", alice.Public, alice.Public)
	require.NoError(t, err)

	deployer := contract.NewDeployer(reg, ks)
	_, err = deployer.Deploy(currency, []byte("currency.wasm"), []byte(`{"actions":["issue","transfer"]}`))
	require.NoError(t, err)

	return &fixture{machine: NewMachine(reg, ks, deployer), wallet: ks, reg: reg}
}

func (f *fixture) balance(account domain.Name) string {
	t, ok := f.machine.Table(currency)
	if !ok {
		return "none"
	}
	return t.Balance(account).String()
}

func (f *fixture) issue(t *testing.T, to domain.Name, qty string) {
	t.Helper()
	require.NoError(t, f.machine.Issue(currency, to, domain.MustParseAsset(qty), "", domain.Active(currency)))
}

func TestMachine_IssueAndTransferScenario(t *testing.T) {
	f := newFixture(t)

	f.issue(t, currency, "1000.0000 CUR")
	assert.Equal(t, "1000.0000 CUR", f.balance(currency))

	err := f.machine.Transfer(currency, currency, domain.SystemAccount, domain.MustParseAsset("20.0000 CUR"), "my first transfer", domain.Active(currency))
	require.NoError(t, err)

	assert.Equal(t, "20.0000 CUR", f.balance(domain.SystemAccount))
	assert.Equal(t, "980.0000 CUR", f.balance(currency))

	table, ok := f.machine.Table(currency)
	require.True(t, ok)
	assert.Equal(t, "1000.0000 CUR", table.Supply().String())
	require.NoError(t, table.CheckConservation())

	assert.Equal(t, []domain.BalanceRow{
		{Account: currency, Balance: domain.MustParseAsset("980.0000 CUR")},
		{Account: domain.SystemAccount, Balance: domain.MustParseAsset("20.0000 CUR")},
	}, table.Rows())
}

func TestMachine_ConservationOverRandomSequence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Give alice a held key so she can spend too.
	alice := keys.FromPhrase("alice")
	_, err := f.wallet.Import(ctx, alice.Private)
	require.NoError(t, err)

	holders := []domain.Name{currency, domain.SystemAccount, "alice"}
	rng := rand.New(rand.NewSource(42))

	var issued uint64
	for i := 0; i < 500; i++ {
		if i == 0 || rng.Intn(4) == 0 {
			amount := uint64(rng.Intn(1_000_000) + 1)
			to := holders[rng.Intn(len(holders))]
			require.NoError(t, f.machine.Issue(currency, to, domain.NewAsset(amount, "CUR"), "", domain.Active(currency)))
			issued += amount
		} else {
			from := holders[rng.Intn(len(holders))]
			to := holders[rng.Intn(len(holders))]
			amount := uint64(rng.Intn(500_000) + 1)
			err := f.machine.Transfer(currency, from, to, domain.NewAsset(amount, "CUR"), "", domain.Active(from))
			if err != nil {
				require.ErrorIs(t, err, domain.ErrInsufficientBalance)
			}
		}

		table, ok := f.machine.Table(currency)
		require.True(t, ok)
		require.NoError(t, table.CheckConservation(), "step %d", i)
		require.Equal(t, issued, table.Supply().Amount, "step %d", i)
	}
}

func TestMachine_SelfTransfer(t *testing.T) {
	f := newFixture(t)
	f.issue(t, currency, "100.0000 CUR")
	f.issue(t, "alice", "5.0000 CUR")

	err := f.machine.Transfer(currency, currency, currency, domain.MustParseAsset("40.0000 CUR"), "", domain.Active(currency))
	require.NoError(t, err)
	assert.Equal(t, "100.0000 CUR", f.balance(currency))

	// Still needs a sufficient balance.
	err = f.machine.Transfer(currency, currency, currency, domain.MustParseAsset("100.0001 CUR"), "", domain.Active(currency))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// Still needs authorization: alice's key is not in the wallet.
	err = f.machine.Transfer(currency, "alice", "alice", domain.MustParseAsset("1.0000 CUR"), "", domain.Active("alice"))
	assert.ErrorIs(t, err, domain.ErrAuthorization)
	assert.Equal(t, "5.0000 CUR", f.balance("alice"))

	_, err = f.wallet.Import(context.Background(), keys.FromPhrase("alice").Private)
	require.NoError(t, err)
	err = f.machine.Transfer(currency, "alice", "alice", domain.MustParseAsset("1.0000 CUR"), "", domain.Active("alice"))
	require.NoError(t, err)
	assert.Equal(t, "5.0000 CUR", f.balance("alice"))
}

func TestMachine_NonPositiveQuantity(t *testing.T) {
	f := newFixture(t)
	f.issue(t, currency, "10.0000 CUR")

	err := f.machine.Transfer(currency, currency, domain.SystemAccount, domain.MustParseAsset("0.0000 CUR"), "", domain.Active(currency))
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	err = f.machine.Transfer(currency, currency, domain.SystemAccount, domain.Asset{}, "", domain.Active(currency))
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	err = f.machine.Issue(currency, currency, domain.MustParseAsset("0.0000 CUR"), "", domain.Active(currency))
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	// Negative quantities never parse, so they fail at the payload boundary.
	negative, err := domain.NewAction(currency, domain.ActionTransfer, domain.Active(currency), map[string]string{
		"from": "currency", "to": "eosio", "quantity": "-1.0000 CUR", "memo": "",
	})
	require.NoError(t, err)
	assert.ErrorIs(t, f.machine.Apply(negative), domain.ErrInvalidQuantity)

	assert.Equal(t, "10.0000 CUR", f.balance(currency))
	assert.Equal(t, "0.0000 CUR", f.balance(domain.SystemAccount))
}

func TestMachine_InsufficientBalanceIsAtomic(t *testing.T) {
	f := newFixture(t)
	f.issue(t, currency, "10.0000 CUR")
	f.issue(t, domain.SystemAccount, "1.0000 CUR")

	err := f.machine.Transfer(currency, currency, domain.SystemAccount, domain.MustParseAsset("10.0001 CUR"), "", domain.Active(currency))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	assert.Equal(t, "10.0000 CUR", f.balance(currency))
	assert.Equal(t, "1.0000 CUR", f.balance(domain.SystemAccount))
}

func TestMachine_AuthorizationBeforeMutation(t *testing.T) {
	f := newFixture(t)
	f.issue(t, currency, "10.0000 CUR")
	f.issue(t, "alice", "10.0000 CUR")

	tests := []struct {
		name string
		call func() error
	}{
		{"issue signed by another actor", func() error {
			return f.machine.Issue(currency, "alice", domain.MustParseAsset("1.0000 CUR"), "", domain.Active(domain.SystemAccount))
		}},
		{"issue under the owner permission", func() error {
			return f.machine.Issue(currency, "alice", domain.MustParseAsset("1.0000 CUR"), "", domain.Owner(currency))
		}},
		{"transfer from key not held", func() error {
			return f.machine.Transfer(currency, "alice", currency, domain.MustParseAsset("1.0000 CUR"), "", domain.Active("alice"))
		}},
		{"transfer permission of another account", func() error {
			return f.machine.Transfer(currency, "alice", currency, domain.MustParseAsset("1.0000 CUR"), "", domain.Active(currency))
		}},
		{"authorization checked before quantity", func() error {
			return f.machine.Transfer(currency, "alice", currency, domain.MustParseAsset("0.0000 CUR"), "", domain.Active("alice"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), domain.ErrAuthorization)
			assert.Equal(t, "10.0000 CUR", f.balance(currency))
			assert.Equal(t, "10.0000 CUR", f.balance("alice"))
		})
	}

	table, _ := f.machine.Table(currency)
	assert.Equal(t, "20.0000 CUR", table.Supply().String())
}

func TestMachine_OwnerKeyAloneCannotAuthorize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.issue(t, currency, "10.0000 CUR")

	ownerOnly := wallet.NewEphemeral("owner-only")
	_, err := ownerOnly.Import(ctx, keys.FromPhrase("currency owner").Private)
	require.NoError(t, err)
	m := NewMachine(f.reg, ownerOnly, f.machine.contracts)
	m.tables = f.machine.tables

	tests := []struct {
		name string
		call func() error
	}{
		{"issue as owner", func() error {
			return m.Issue(currency, currency, domain.MustParseAsset("10.0000 CUR"), "", domain.Owner(currency))
		}},
		{"issue as active", func() error {
			return m.Issue(currency, currency, domain.MustParseAsset("10.0000 CUR"), "", domain.Active(currency))
		}},
		{"transfer as owner", func() error {
			return m.Transfer(currency, currency, domain.SystemAccount, domain.MustParseAsset("1.0000 CUR"), "", domain.Owner(currency))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), domain.ErrAuthorization)
			assert.Equal(t, "10.0000 CUR", f.balance(currency))
			assert.Equal(t, "0.0000 CUR", f.balance(domain.SystemAccount))
		})
	}
}

func TestMachine_Signer(t *testing.T) {
	f := newFixture(t)
	f.issue(t, "alice", "5.0000 CUR")
	active := keys.FromPhrase("currency active").Public

	issue := domain.Action{
		Contract:      currency,
		Name:          domain.ActionIssue,
		Authorization: domain.Active(currency),
		Data:          json.RawMessage(`{"to":"alice","quantity":"1.0000 CUR","memo":""}`),
	}
	signer, err := f.machine.Signer(issue)
	require.NoError(t, err)
	assert.Equal(t, active, signer)
	assert.Equal(t, "5.0000 CUR", f.balance("alice"), "signer resolution applies nothing")

	issue.Authorization = domain.Owner(currency)
	_, err = f.machine.Signer(issue)
	assert.ErrorIs(t, err, domain.ErrAuthorization)

	transfer := domain.Action{
		Contract:      currency,
		Name:          domain.ActionTransfer,
		Authorization: domain.Active("alice"),
		Data:          json.RawMessage(`{"from":"alice","to":"currency","quantity":"1.0000 CUR","memo":""}`),
	}
	_, err = f.machine.Signer(transfer)
	assert.ErrorIs(t, err, domain.ErrAuthorization, "alice's key is not in the wallet")

	transfer.Data = json.RawMessage(`{"from":`)
	_, err = f.machine.Signer(transfer)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	_, err = f.machine.Signer(domain.Action{Contract: currency, Name: "burn", Authorization: domain.Active(currency)})
	assert.ErrorIs(t, err, domain.ErrUnknownAction)
}

func TestMachine_EffectsRepeat(t *testing.T) {
	f := newFixture(t)

	f.issue(t, currency, "1000.0000 CUR")
	f.issue(t, currency, "1000.0000 CUR")
	assert.Equal(t, "2000.0000 CUR", f.balance(currency))

	for i := 0; i < 2; i++ {
		err := f.machine.Transfer(currency, currency, domain.SystemAccount, domain.MustParseAsset("20.0000 CUR"), "", domain.Active(currency))
		require.NoError(t, err)
	}
	assert.Equal(t, "40.0000 CUR", f.balance(domain.SystemAccount))
	assert.Equal(t, "1960.0000 CUR", f.balance(currency))
}

func TestMachine_Rejections(t *testing.T) {
	f := newFixture(t)

	// Transfer before any issue.
	err := f.machine.Transfer(currency, currency, domain.SystemAccount, domain.MustParseAsset("1.0000 CUR"), "", domain.Active(currency))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	f.issue(t, currency, "10.0000 CUR")

	err = f.machine.Issue(currency, currency, domain.MustParseAsset("1.0000 SYS"), "", domain.Active(currency))
	assert.ErrorIs(t, err, domain.ErrSymbolMismatch)

	err = f.machine.Transfer(currency, currency, domain.SystemAccount, domain.MustParseAsset("1.0000 SYS"), "", domain.Active(currency))
	assert.ErrorIs(t, err, domain.ErrSymbolMismatch)

	err = f.machine.Issue(currency, "nobody", domain.MustParseAsset("1.0000 CUR"), "", domain.Active(currency))
	assert.ErrorIs(t, err, domain.ErrUnknownAccount)

	err = f.machine.Transfer(currency, currency, "nobody", domain.MustParseAsset("1.0000 CUR"), "", domain.Active(currency))
	assert.ErrorIs(t, err, domain.ErrUnknownAccount)

	err = f.machine.Issue("alice", "alice", domain.MustParseAsset("1.0000 CUR"), "", domain.Active("alice"))
	assert.ErrorIs(t, err, domain.ErrUnknownContract)

	err = f.machine.Transfer(currency, currency, domain.SystemAccount, domain.MustParseAsset("1.0000 CUR"), strings.Repeat("m", MaxMemoLength+1), domain.Active(currency))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	assert.Equal(t, "10.0000 CUR", f.balance(currency))
	assert.Len(t, f.machine.Tables(), 1)
}

func TestMachine_IssueOverflow(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.machine.Issue(currency, currency, domain.NewAsset(math.MaxUint64, "CUR"), "", domain.Active(currency)))

	err := f.machine.Issue(currency, domain.SystemAccount, domain.NewAsset(1, "CUR"), "", domain.Active(currency))
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	table, _ := f.machine.Table(currency)
	assert.Equal(t, uint64(math.MaxUint64), table.Supply().Amount)
	assert.True(t, table.Balance(domain.SystemAccount).IsZero())
	require.NoError(t, table.CheckConservation())
}

func TestMachine_Apply(t *testing.T) {
	f := newFixture(t)

	issue := domain.Action{
		Contract:      currency,
		Name:          domain.ActionIssue,
		Authorization: domain.Active(currency),
		Data:          json.RawMessage(`{"to":"currency","quantity":"1000.0000 CUR","memo":""}`),
	}
	require.NoError(t, f.machine.Apply(issue))

	transfer, err := domain.NewAction(currency, domain.ActionTransfer, domain.Active(currency), domain.TransferPayload{
		From: currency, To: domain.SystemAccount, Quantity: domain.MustParseAsset("20.0000 CUR"), Memo: "my first transfer",
	})
	require.NoError(t, err)
	require.NoError(t, f.machine.Apply(transfer))
	assert.Equal(t, "20.0000 CUR", f.balance(domain.SystemAccount))

	unknown := issue
	unknown.Name = "burn"
	assert.ErrorIs(t, f.machine.Apply(unknown), domain.ErrUnknownAction)

	typo := issue
	typo.Data = json.RawMessage(`{"too":"currency","quantity":"1.0000 CUR","memo":""}`)
	assert.ErrorIs(t, f.machine.Apply(typo), domain.ErrInvalidPayload)

	garbage := issue
	garbage.Data = json.RawMessage(`{`)
	assert.ErrorIs(t, f.machine.Apply(garbage), domain.ErrInvalidPayload)

	assert.Equal(t, "980.0000 CUR", f.balance(currency))
}

func TestMachine_ConcurrentTransfers(t *testing.T) {
	f := newFixture(t)
	f.issue(t, currency, "1000.0000 CUR")

	table, _ := f.machine.Table(currency)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = f.machine.Transfer(currency, currency, domain.SystemAccount, domain.MustParseAsset("0.0100 CUR"), "", domain.Active(currency))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.NoError(t, table.CheckConservation())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, "8.0000 CUR", f.balance(domain.SystemAccount))
	assert.Equal(t, "992.0000 CUR", f.balance(currency))
}
