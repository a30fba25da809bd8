package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"currency-ledger/internal/api"
	"currency-ledger/internal/domain"
	"currency-ledger/internal/keys"
)

const (
	contractAccount domain.Name = "currency"
	issueQuantity               = "1000.0000 CUR"
	transferQty                 = "20.0000 CUR"
	transferMemo                = "my first transfer"
)

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	noteColor    = color.New(color.FgYellow)
	okColor      = color.New(color.FgGreen, color.Bold)
)

// walkthrough drives the sample currency contract through a node, printing
// every request and response.
type walkthrough struct {
	out    io.Writer
	client *api.Client
	// eosioKey is the private key of the system account.
	eosioKey keys.PrivateKey
	// state describes the node before the run, if known.
	state string
	// entropy seeds the owner and active keys.
	entropy io.Reader
}

func (w *walkthrough) section(title string) {
	fmt.Fprintln(w.out)
	headingColor.Fprintln(w.out, "## "+title)
}

func (w *walkthrough) note(format string, args ...any) {
	noteColor.Fprintf(w.out, format+"\n", args...)
}

func (w *walkthrough) show(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w.out, string(b))
	return nil
}

// importKey adds priv to the node wallet. A key imported by an earlier run
// is not an error.
func (w *walkthrough) importKey(ctx context.Context, label string, priv keys.PrivateKey) error {
	pub, err := w.client.ImportKey(ctx, priv)
	switch {
	case errors.Is(err, domain.ErrDuplicateKey):
		w.note("%s %s already imported", label, priv.Public())
		return nil
	case err != nil:
		return fmt.Errorf("import %s: %w", label, err)
	}
	w.note("imported %s %s", label, pub)
	return nil
}

func (w *walkthrough) run(ctx context.Context) error {
	entropy := w.entropy
	if entropy == nil {
		entropy = rand.Reader
	}

	w.section("Start a clean node")
	info, err := w.client.Reset(ctx)
	if err != nil {
		return fmt.Errorf("reset node: %w", err)
	}
	if w.state != "" {
		fmt.Fprintln(w.out, w.state)
	}
	if err := w.show(info); err != nil {
		return err
	}

	w.section("Import the eosio key into the wallet")
	if err := w.importKey(ctx, "eosio key", w.eosioKey); err != nil {
		return err
	}

	w.section("Create owner and active keys")
	owner, err := keys.Generate(entropy)
	if err != nil {
		return fmt.Errorf("create owner key: %w", err)
	}
	active, err := keys.Generate(entropy)
	if err != nil {
		return fmt.Errorf("create active key: %w", err)
	}
	w.note("owner key:  %s", owner.Public)
	w.note("active key: %s", active.Public)

	w.section("Create the currency account")
	created, err := w.client.CreateAccount(ctx, api.CreateAccountRequest{
		Creator: domain.SystemAccount,
		Name:    contractAccount,
		Owner:   owner.Public,
		Active:  active.Public,
	})
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	if err := w.show(created); err != nil {
		return err
	}

	w.section("Import the active key")
	if err := w.importKey(ctx, "active key", active.Private); err != nil {
		return err
	}
	wallet, err := w.client.ListKeys(ctx)
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}
	if err := w.show(wallet); err != nil {
		return err
	}

	w.section("Verify there is no contract yet")
	code, err := w.client.GetCode(ctx, contractAccount)
	if err != nil {
		return fmt.Errorf("get code: %w", err)
	}
	if err := w.show(code); err != nil {
		return err
	}
	if code.CodeHash != nil {
		return fmt.Errorf("code hash of %s is %s before deployment", contractAccount, *code.CodeHash)
	}

	w.section("Upload the currency contract")
	deployed, err := w.client.SetContract(ctx, contractAccount, currencyWast, currencyABI)
	if err != nil {
		return fmt.Errorf("set contract: %w", err)
	}
	if err := w.show(deployed); err != nil {
		return err
	}

	code, err = w.client.GetCode(ctx, contractAccount)
	if err != nil {
		return fmt.Errorf("get code: %w", err)
	}
	if code.CodeHash == nil {
		return fmt.Errorf("code hash of %s is null after deployment", contractAccount)
	}
	w.note("code hash: %s", *code.CodeHash)

	w.section("Issue the currency")
	receipt, err := w.client.Issue(ctx, contractAccount, domain.IssuePayload{
		To:       contractAccount,
		Quantity: domain.MustParseAsset(issueQuantity),
	})
	if err != nil {
		return fmt.Errorf("issue: %w", err)
	}
	if err := w.show(receipt); err != nil {
		return err
	}
	if err := w.showTable(ctx); err != nil {
		return err
	}

	w.section("Transfer funds")
	receipt, err = w.client.Transfer(ctx, contractAccount, domain.TransferPayload{
		From:     contractAccount,
		To:       domain.SystemAccount,
		Quantity: domain.MustParseAsset(transferQty),
		Memo:     transferMemo,
	})
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if err := w.show(receipt); err != nil {
		return err
	}
	if err := w.showTable(ctx); err != nil {
		return err
	}

	return w.verify(ctx)
}

func (w *walkthrough) showTable(ctx context.Context) error {
	rows, err := w.client.GetTableRows(ctx, contractAccount, 0)
	if err != nil {
		return fmt.Errorf("get table: %w", err)
	}
	return w.show(rows)
}

// verify checks the final balances.
func (w *walkthrough) verify(ctx context.Context) error {
	issued := domain.MustParseAsset(issueQuantity)
	moved := domain.MustParseAsset(transferQty)
	kept, err := issued.Sub(moved)
	if err != nil {
		return err
	}

	want := map[domain.Name]domain.Asset{
		contractAccount:      kept,
		domain.SystemAccount: moved,
	}
	for account, balance := range want {
		got, err := w.client.GetCurrencyBalance(ctx, contractAccount, account)
		if err != nil {
			return fmt.Errorf("balance of %s: %w", account, err)
		}
		if len(got) != 1 || got[0] != balance {
			return fmt.Errorf("balance of %s is %v, want %s", account, got, balance)
		}
	}

	fmt.Fprintln(w.out)
	okColor.Fprintf(w.out, "%s holds %s, %s holds %s\n", contractAccount, kept, domain.SystemAccount, moved)
	return nil
}
