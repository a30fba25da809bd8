package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"currency-ledger/internal/chain"
	"currency-ledger/internal/domain"
	"currency-ledger/internal/keys"
	"currency-ledger/internal/observability"
)

// Default client configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 200 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultBackoffMult = 2.0
)

// Client calls a node's HTTP JSON API.
type Client struct {
	baseURL     string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a client for the node at baseURL, e.g. "http://127.0.0.1:8888".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the node address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// call posts req to path and decodes the response into result. Transport
// failures and 5xx responses are retried with exponential backoff; any
// other error response is returned as *Error at once.
func (c *Client) call(ctx context.Context, path string, req, result any) error {
	started := time.Now()
	defer func() { observability.RecordClientCall(path, time.Since(started)) }()

	body := []byte("{}")
	if req != nil {
		var err error
		if body, err = json.Marshal(req); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			observability.RecordClientRetry(path)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			lastErr = decodeError(resp.StatusCode, respBody)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			// Domain errors are not retried
			return decodeError(resp.StatusCode, respBody)
		}

		if result != nil {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func decodeError(status int, body []byte) *Error {
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Error.Name == "" {
		return &Error{StatusCode: status, Kind: KindInternal, Message: strings.TrimSpace(string(body))}
	}
	return &Error{StatusCode: status, Kind: resp.Error.Name, Message: resp.Error.What}
}

// PushAction applies a contract action.
func (c *Client) PushAction(ctx context.Context, act domain.Action) (domain.Receipt, error) {
	var receipt domain.Receipt
	err := c.call(ctx, PathPushAction, act, &receipt)
	return receipt, err
}

// Issue pushes an issue action authorized by the contract's active permission.
func (c *Client) Issue(ctx context.Context, contract domain.Name, p domain.IssuePayload) (domain.Receipt, error) {
	act, err := domain.NewAction(contract, domain.ActionIssue, domain.Active(contract), p)
	if err != nil {
		return domain.Receipt{}, err
	}
	return c.PushAction(ctx, act)
}

// Transfer pushes a transfer action authorized by the sender's active permission.
func (c *Client) Transfer(ctx context.Context, contract domain.Name, p domain.TransferPayload) (domain.Receipt, error) {
	act, err := domain.NewAction(contract, domain.ActionTransfer, domain.Active(p.From), p)
	if err != nil {
		return domain.Receipt{}, err
	}
	return c.PushAction(ctx, act)
}

// CreateAccount creates an account on behalf of creator.
func (c *Client) CreateAccount(ctx context.Context, req CreateAccountRequest) (*CreateAccountResponse, error) {
	var resp CreateAccountResponse
	if err := c.call(ctx, PathCreateAccount, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetContract deploys code and abi to account.
func (c *Client) SetContract(ctx context.Context, account domain.Name, code, abi []byte) (*SetContractResponse, error) {
	var resp SetContractResponse
	if err := c.call(ctx, PathSetContract, SetContractRequest{Account: account, Code: code, ABI: abi}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetAccount returns the named account.
func (c *Client) GetAccount(ctx context.Context, name domain.Name) (*domain.Account, error) {
	var acc domain.Account
	if err := c.call(ctx, PathGetAccount, AccountRequest{AccountName: name}, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// GetCode returns the code hash of account; CodeHash is nil before any deployment.
func (c *Client) GetCode(ctx context.Context, name domain.Name) (*GetCodeResponse, error) {
	var resp GetCodeResponse
	if err := c.call(ctx, PathGetCode, AccountRequest{AccountName: name}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTableRows returns the balance table of a contract.
func (c *Client) GetTableRows(ctx context.Context, code domain.Name, limit int) (*domain.TableRows, error) {
	var rows domain.TableRows
	if err := c.call(ctx, PathGetTableRows, TableRowsRequest{Code: code, Limit: limit}, &rows); err != nil {
		return nil, err
	}
	return &rows, nil
}

// GetCurrencyBalance returns the balance of account in a contract.
func (c *Client) GetCurrencyBalance(ctx context.Context, code, account domain.Name) ([]domain.Asset, error) {
	var balance []domain.Asset
	if err := c.call(ctx, PathGetCurrencyBalance, CurrencyBalanceRequest{Code: code, Account: account}, &balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// GetInfo returns the chain summary.
func (c *Client) GetInfo(ctx context.Context) (*chain.Info, error) {
	var info chain.Info
	if err := c.call(ctx, PathGetInfo, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// CreateKey generates a key in the node wallet.
func (c *Client) CreateKey(ctx context.Context) (keys.PublicKey, error) {
	var resp KeyResponse
	err := c.call(ctx, PathCreateKey, nil, &resp)
	return resp.PublicKey, err
}

// ImportKey imports a private key into the node wallet.
func (c *Client) ImportKey(ctx context.Context, priv keys.PrivateKey) (keys.PublicKey, error) {
	var resp KeyResponse
	err := c.call(ctx, PathImportKey, ImportKeyRequest{PrivateKey: priv}, &resp)
	return resp.PublicKey, err
}

// ListKeys lists the public keys of the node wallet.
func (c *Client) ListKeys(ctx context.Context) (*WalletKeys, error) {
	var resp WalletKeys
	if err := c.call(ctx, PathListKeys, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTransaction returns a journaled action by transaction id.
func (c *Client) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	var tx Transaction
	if err := c.call(ctx, PathGetTransaction, TransactionRequest{ID: id}, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetActions returns the journaled actions authorized by account.
func (c *Client) GetActions(ctx context.Context, account domain.Name) ([]Transaction, error) {
	var resp ActionsResponse
	if err := c.call(ctx, PathGetActions, ActionsRequest{Account: account}, &resp); err != nil {
		return nil, err
	}
	return resp.Actions, nil
}

// GetTransfers returns the balance movements of account in a contract.
func (c *Client) GetTransfers(ctx context.Context, code, account domain.Name) ([]Transfer, error) {
	var resp TransfersResponse
	if err := c.call(ctx, PathGetTransfers, TransfersRequest{Code: code, Account: account}, &resp); err != nil {
		return nil, err
	}
	return resp.Transfers, nil
}

// GetVolume returns the per-symbol activity of a contract.
func (c *Client) GetVolume(ctx context.Context, code domain.Name) ([]Volume, error) {
	var resp VolumeResponse
	if err := c.call(ctx, PathGetVolume, VolumeRequest{Code: code}, &resp); err != nil {
		return nil, err
	}
	return resp.Volume, nil
}

// Reset returns the node to genesis.
func (c *Client) Reset(ctx context.Context) (*chain.Info, error) {
	var info chain.Info
	if err := c.call(ctx, PathReset, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Health reports whether the node answers.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PathHealth, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
