// Package api exposes a chain over HTTP JSON, and provides the client and
// the websocket feed subscriber used by the CLI and the walkthrough.
package api

import (
	"currency-ledger/internal/domain"
	"currency-ledger/internal/keys"
)

// Endpoint paths.
const (
	PathPushAction         = "/v1/chain/push_action"
	PathCreateAccount      = "/v1/chain/create_account"
	PathSetContract        = "/v1/chain/set_contract"
	PathGetAccount         = "/v1/chain/get_account"
	PathGetCode            = "/v1/chain/get_code"
	PathGetTableRows       = "/v1/chain/get_table_rows"
	PathGetCurrencyBalance = "/v1/chain/get_currency_balance"
	PathGetInfo            = "/v1/chain/get_info"

	PathCreateKey = "/v1/wallet/create_key"
	PathImportKey = "/v1/wallet/import_key"
	PathListKeys  = "/v1/wallet/keys"

	PathGetTransaction = "/v1/history/get_transaction"
	PathGetActions     = "/v1/history/get_actions"
	PathGetTransfers   = "/v1/history/get_transfers"
	PathGetVolume      = "/v1/history/get_volume"

	PathReset  = "/v1/node/reset"
	PathFeed   = "/v1/feed"
	PathHealth = "/health"
)

// CreateAccountRequest is the body of create_account.
type CreateAccountRequest struct {
	Creator domain.Name    `json:"creator"`
	Name    domain.Name    `json:"name"`
	Owner   keys.PublicKey `json:"owner"`
	Active  keys.PublicKey `json:"active"`
}

// CreateAccountResponse is the result of create_account.
type CreateAccountResponse struct {
	Account domain.Account `json:"account"`
	Receipt domain.Receipt `json:"receipt"`
}

// SetContractRequest is the body of set_contract. Code and ABI travel base64 encoded.
type SetContractRequest struct {
	Account domain.Name `json:"account"`
	Code    []byte      `json:"code"`
	ABI     []byte      `json:"abi"`
}

// SetContractResponse is the result of set_contract.
type SetContractResponse struct {
	Account  domain.Name    `json:"account"`
	CodeHash string         `json:"code_hash"`
	ABIHash  string         `json:"abi_hash"`
	Receipt  domain.Receipt `json:"receipt"`
}

// AccountRequest names an account.
type AccountRequest struct {
	AccountName domain.Name `json:"account_name"`
}

// GetCodeResponse is the result of get_code. CodeHash is null before any deployment.
type GetCodeResponse struct {
	AccountName domain.Name `json:"account_name"`
	CodeHash    *string     `json:"code_hash"`
	ABI         []byte      `json:"abi,omitempty"`
}

// TableRowsRequest is the body of get_table_rows. Limit <= 0 returns every row.
type TableRowsRequest struct {
	Code  domain.Name `json:"code"`
	Limit int         `json:"limit,omitempty"`
}

// CurrencyBalanceRequest is the body of get_currency_balance.
type CurrencyBalanceRequest struct {
	Code    domain.Name `json:"code"`
	Account domain.Name `json:"account"`
}

// ImportKeyRequest is the body of import_key.
type ImportKeyRequest struct {
	PrivateKey keys.PrivateKey `json:"private_key"`
}

// KeyResponse is the result of create_key and import_key.
type KeyResponse struct {
	PublicKey keys.PublicKey `json:"public_key"`
}

// WalletKeys lists the public keys of the node wallet.
type WalletKeys struct {
	Wallet string           `json:"wallet"`
	Keys   []keys.PublicKey `json:"keys"`
}

// TransactionRequest is the body of get_transaction.
type TransactionRequest struct {
	ID string `json:"id"`
}

// Transaction is a journaled action as served by the history endpoints.
type Transaction struct {
	TransactionID string         `json:"transaction_id"`
	BlockNum      uint64         `json:"block_num"`
	Action        domain.Action  `json:"action"`
	Signer        keys.PublicKey `json:"signer"`
	Signature     keys.Signature `json:"signature"`
	Timestamp     int64          `json:"timestamp"`
}

// TransactionFromRecord converts a journal record.
func TransactionFromRecord(r *domain.ActionRecord) Transaction {
	return Transaction{
		TransactionID: r.TransactionID,
		BlockNum:      r.Seq,
		Action:        r.Action,
		Signer:        r.Signer,
		Signature:     r.Signature,
		Timestamp:     r.CreatedAt,
	}
}

// ActionsRequest is the body of get_actions.
type ActionsRequest struct {
	Account domain.Name `json:"account"`
}

// ActionsResponse is the result of get_actions.
type ActionsResponse struct {
	Actions []Transaction `json:"actions"`
}

// TransfersRequest is the body of get_transfers.
type TransfersRequest struct {
	Code    domain.Name `json:"code"`
	Account domain.Name `json:"account"`
}

// Transfer is one balance movement. From is empty for an issue.
type Transfer struct {
	TransactionID string            `json:"transaction_id"`
	BlockNum      uint64            `json:"block_num"`
	Action        domain.ActionName `json:"action"`
	From          domain.Name       `json:"from,omitempty"`
	To            domain.Name       `json:"to"`
	Quantity      domain.Asset      `json:"quantity"`
	Memo          string            `json:"memo"`
	Timestamp     int64             `json:"timestamp"`
}

// TransfersResponse is the result of get_transfers.
type TransfersResponse struct {
	Transfers []Transfer `json:"transfers"`
}

// VolumeRequest is the body of get_volume.
type VolumeRequest struct {
	Code domain.Name `json:"code"`
}

// Volume is the per-symbol activity of a contract.
type Volume struct {
	Symbol string       `json:"symbol"`
	Issued domain.Asset `json:"issued"`
	Moved  domain.Asset `json:"moved"`
	Count  uint64       `json:"count"`
}

// VolumeResponse is the result of get_volume.
type VolumeResponse struct {
	Volume []Volume `json:"volume"`
}
