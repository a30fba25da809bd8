package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"currency-ledger/internal/chain"
	"currency-ledger/internal/domain"
	"currency-ledger/internal/keys"
	"currency-ledger/internal/storage"
	"currency-ledger/internal/wallet"
)

type testNode struct {
	chain  *chain.Chain
	wallet *wallet.KeyStore
	server *httptest.Server
	client *Client
}

func newTestNode(t *testing.T) *testNode {
	t.Helper()

	ks := wallet.NewEphemeral(wallet.DefaultName)
	_, err := ks.Import(context.Background(), chain.DevGenesisKey().Private)
	require.NoError(t, err)

	c, err := chain.New(chain.Config{Wallet: ks})
	require.NoError(t, err)

	srv, err := NewServer(ServerConfig{Chain: c, Wallet: ks})
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	// Registered last so feed handlers return before the server closes.
	t.Cleanup(c.Close)

	return &testNode{
		chain:  c,
		wallet: ks,
		server: ts,
		client: NewClient(ts.URL, WithRetryDelay(time.Millisecond)),
	}
}

// deployCurrency imports the currency key, creates the account and deploys
// code to it.
func (n *testNode) deployCurrency(t *testing.T) keys.PublicKey {
	t.Helper()
	ctx := context.Background()

	pub, err := n.client.ImportKey(ctx, keys.FromPhrase("currency").Private)
	require.NoError(t, err)

	_, err = n.client.CreateAccount(ctx, CreateAccountRequest{
		Creator: domain.SystemAccount, Name: "currency", Owner: pub, Active: pub,
	})
	require.NoError(t, err)

	_, err = n.client.SetContract(ctx, "currency", []byte("currency.wasm"), []byte(`{"actions":["issue","transfer"]}`))
	require.NoError(t, err)
	return pub
}

func (n *testNode) post(t *testing.T, path, body string) (int, string) {
	t.Helper()

	resp, err := http.Post(n.server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestNewServer_RequiresCollaborators(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)

	c, err := chain.New(chain.Config{Wallet: wallet.NewEphemeral("")})
	require.NoError(t, err)
	_, err = NewServer(ServerConfig{Chain: c})
	assert.Error(t, err)
}

func TestServer_Walkthrough(t *testing.T) {
	n := newTestNode(t)
	ctx := context.Background()

	pub, err := n.client.ImportKey(ctx, keys.FromPhrase("currency").Private)
	require.NoError(t, err)

	created, err := n.client.CreateAccount(ctx, CreateAccountRequest{
		Creator: domain.SystemAccount, Name: "currency", Owner: pub, Active: pub,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Name("currency"), created.Account.Name)
	assert.Equal(t, uint64(1), created.Receipt.BlockNum)

	code, err := n.client.GetCode(ctx, "currency")
	require.NoError(t, err)
	assert.Nil(t, code.CodeHash)

	status, body := n.post(t, PathGetCode, `{"account_name":"currency"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"account_name":"currency","code_hash":null}`, body)

	deployed, err := n.client.SetContract(ctx, "currency", []byte("currency.wasm"), []byte(`{}`))
	require.NoError(t, err)
	assert.Len(t, deployed.CodeHash, 64)

	code, err = n.client.GetCode(ctx, "currency")
	require.NoError(t, err)
	require.NotNil(t, code.CodeHash)
	assert.Equal(t, deployed.CodeHash, *code.CodeHash)

	issued, err := n.client.Issue(ctx, "currency", domain.IssuePayload{To: "currency", Quantity: domain.MustParseAsset("1000.0000 CUR")})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExecuted, issued.Status)

	moved, err := n.client.Transfer(ctx, "currency", domain.TransferPayload{
		From: "currency", To: domain.SystemAccount, Quantity: domain.MustParseAsset("20.0000 CUR"), Memo: "my first transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), moved.BlockNum)

	status, body = n.post(t, PathGetTableRows, `{"code":"currency"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"rows":[{"account":"currency","balance":"980.0000 CUR"},{"account":"eosio","balance":"20.0000 CUR"}],"more":false}`, body)

	balance, err := n.client.GetCurrencyBalance(ctx, "currency", domain.SystemAccount)
	require.NoError(t, err)
	assert.Equal(t, []domain.Asset{domain.MustParseAsset("20.0000 CUR")}, balance)

	info, err := n.client.GetInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), info.HeadBlockNum)
	assert.Equal(t, 2, info.Accounts)
	assert.Equal(t, 1, info.Contracts)

	tx, err := n.client.GetTransaction(ctx, moved.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), tx.BlockNum)
	assert.Equal(t, domain.ActionTransfer, tx.Action.Name)
	assert.Equal(t, pub, tx.Signer)

	actions, err := n.client.GetActions(ctx, "currency")
	require.NoError(t, err)
	assert.Len(t, actions, 3) // setcode, issue, transfer

	transfers, err := n.client.GetTransfers(ctx, "currency", "currency")
	require.NoError(t, err)
	require.Len(t, transfers, 2)
	assert.Equal(t, domain.ActionIssue, transfers[0].Action)
	assert.Empty(t, transfers[0].From)
	assert.Equal(t, "my first transfer", transfers[1].Memo)

	volume, err := n.client.GetVolume(ctx, "currency")
	require.NoError(t, err)
	require.Len(t, volume, 1)
	assert.Equal(t, "1000.0000 CUR", volume[0].Issued.String())
	assert.Equal(t, "20.0000 CUR", volume[0].Moved.String())
	assert.Equal(t, uint64(2), volume[0].Count)
}

func TestServer_ErrorKinds(t *testing.T) {
	n := newTestNode(t)
	ctx := context.Background()
	n.deployCurrency(t)

	_, err := n.client.Issue(ctx, "currency", domain.IssuePayload{To: "currency", Quantity: domain.MustParseAsset("10.0000 CUR")})
	require.NoError(t, err)

	tests := []struct {
		name   string
		call   func() error
		target error
		status int
		kind   string
	}{
		{
			name: "insufficient balance",
			call: func() error {
				_, err := n.client.Transfer(ctx, "currency", domain.TransferPayload{
					From: "currency", To: domain.SystemAccount, Quantity: domain.MustParseAsset("11.0000 CUR"),
				})
				return err
			},
			target: domain.ErrInsufficientBalance, status: http.StatusBadRequest, kind: "insufficient_balance",
		},
		{
			name: "empty sender",
			call: func() error {
				_, err := n.client.Transfer(ctx, "currency", domain.TransferPayload{
					From: domain.SystemAccount, To: "currency", Quantity: domain.MustParseAsset("1.0000 CUR"),
				})
				return err
			},
			target: domain.ErrInsufficientBalance, status: http.StatusBadRequest, kind: "insufficient_balance",
		},
		{
			name: "invalid quantity",
			call: func() error {
				_, err := n.client.Issue(ctx, "currency", domain.IssuePayload{To: "currency", Quantity: domain.MustParseAsset("0.0000 CUR")})
				return err
			},
			target: domain.ErrInvalidQuantity, status: http.StatusBadRequest, kind: "invalid_quantity",
		},
		{
			name: "unknown account",
			call: func() error {
				_, err := n.client.GetAccount(ctx, "nobody")
				return err
			},
			target: domain.ErrUnknownAccount, status: http.StatusNotFound, kind: "unknown_account",
		},
		{
			name: "duplicate account",
			call: func() error {
				pub := keys.FromPhrase("currency").Public
				_, err := n.client.CreateAccount(ctx, CreateAccountRequest{Creator: domain.SystemAccount, Name: "currency", Owner: pub, Active: pub})
				return err
			},
			target: domain.ErrDuplicateAccount, status: http.StatusConflict, kind: "duplicate_account",
		},
		{
			name: "duplicate key",
			call: func() error {
				_, err := n.client.ImportKey(ctx, keys.FromPhrase("currency").Private)
				return err
			},
			target: domain.ErrDuplicateKey, status: http.StatusConflict, kind: "duplicate_key",
		},
		{
			name: "creator without authority",
			call: func() error {
				pub := keys.FromPhrase("bob").Public
				if _, err := n.client.CreateAccount(ctx, CreateAccountRequest{Creator: domain.SystemAccount, Name: "bob", Owner: pub, Active: pub}); err != nil {
					return err
				}
				_, err := n.client.CreateAccount(ctx, CreateAccountRequest{Creator: "bob", Name: "carol", Owner: pub, Active: pub})
				return err
			},
			target: domain.ErrAuthorization, status: http.StatusUnauthorized, kind: "authorization",
		},
		{
			name: "unknown transaction",
			call: func() error {
				_, err := n.client.GetTransaction(ctx, strings.Repeat("0", 64))
				return err
			},
			target: storage.ErrNotFound, status: http.StatusNotFound, kind: KindNotFound,
		},
		{
			name: "unknown contract",
			call: func() error {
				_, err := n.client.GetTableRows(ctx, "eosio", 0)
				return err
			},
			target: domain.ErrUnknownContract, status: http.StatusNotFound, kind: "unknown_contract",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)

			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.kind, apiErr.Kind)
		})
	}

	info, err := n.client.GetInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), info.HeadBlockNum, "only the bob account was applied")
}

func TestServer_ErrorBody(t *testing.T) {
	n := newTestNode(t)

	status, body := n.post(t, PathGetAccount, `{"account_name":"nobody"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.JSONEq(t, `{"code":404,"error":{"name":"unknown_account","what":"account \"nobody\": unknown account"}}`, body)

	status, body = n.post(t, PathPushAction, `{not json`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, `"name":"bad_request"`)

	status, body = n.post(t, PathGetAccount, `{"account_name":"eosio","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, `"name":"bad_request"`)

	status, body = n.post(t, PathPushAction, `{"account":"currency","name":"issue","authorization":"currency@root","data":{}}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, `"name":"bad_request"`)
}

func TestServer_Wallet(t *testing.T) {
	n := newTestNode(t)
	ctx := context.Background()

	pub, err := n.client.CreateKey(ctx)
	require.NoError(t, err)
	assert.True(t, n.wallet.HasAuthority(pub))

	listed, err := n.client.ListKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, wallet.DefaultName, listed.Wallet)
	assert.ElementsMatch(t, []keys.PublicKey{pub, chain.DevGenesisKey().Public}, listed.Keys)

	status, body := n.post(t, PathImportKey, `{"private_key":"garbage"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, `"name":"bad_request"`)
}

func TestServer_Reset(t *testing.T) {
	n := newTestNode(t)
	ctx := context.Background()
	n.deployCurrency(t)

	info, err := n.client.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), info.HeadBlockNum)
	assert.Equal(t, 1, info.Accounts)

	_, err = n.client.GetAccount(ctx, "currency")
	assert.ErrorIs(t, err, domain.ErrUnknownAccount)

	resp, err := http.Get(n.server.URL + PathReset)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	n := newTestNode(t)
	ctx := context.Background()

	require.NoError(t, n.client.Health(ctx))
	_, err := n.client.GetInfo(ctx)
	require.NoError(t, err)

	resp, err := http.Get(n.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "currency_ledger_api_requests_total")
}

func TestServer_MethodNotAllowed(t *testing.T) {
	n := newTestNode(t)

	req, err := http.NewRequest(http.MethodDelete, n.server.URL+PathGetInfo, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

// brokenWriter accepts headers but fails every body write.
type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (w brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func TestServer_LogsWriteFailures(t *testing.T) {
	ks := wallet.NewEphemeral(wallet.DefaultName)
	_, err := ks.Import(context.Background(), chain.DevGenesisKey().Private)
	require.NoError(t, err)
	c, err := chain.New(chain.Config{Wallet: ks})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	var logs bytes.Buffer
	logger := zerolog.New(&logs)
	srv, err := NewServer(ServerConfig{Chain: c, Wallet: ks, Logger: &logger})
	require.NoError(t, err)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, PathHealth, nil),
		httptest.NewRequest(http.MethodPost, PathGetInfo, strings.NewReader("{}")),
	} {
		w := brokenWriter{httptest.NewRecorder()}
		srv.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, 2, strings.Count(logs.String(), `"message":"response write failed"`))
	assert.Contains(t, logs.String(), "connection reset by peer")
	assert.Contains(t, logs.String(), `"path":"/v1/chain/get_info"`)
}
