package storage

import (
	"context"

	"currency-ledger/internal/domain"
	"currency-ledger/internal/keys"
)

// ActionStore provides access to the actions journal.
type ActionStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if transaction_id or seq exists.
	Insert(ctx context.Context, r *domain.ActionRecord) error

	// GetByID retrieves a record by transaction ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, transactionID string) (*domain.ActionRecord, error)

	// GetByActor retrieves records authorized by an account, ordered by seq ASC.
	GetByActor(ctx context.Context, actor domain.Name) ([]*domain.ActionRecord, error)

	// GetBySeqRange retrieves records with seq in [from, to] (inclusive), ordered by seq ASC.
	GetBySeqRange(ctx context.Context, from, to uint64) ([]*domain.ActionRecord, error)

	// Truncate removes all records. Used by node reset.
	Truncate(ctx context.Context) error
}

// TransferEventStore provides access to transfer_events storage.
type TransferEventStore interface {
	// InsertBulk adds multiple events. Fails entire batch on duplicate (transaction_id, seq).
	InsertBulk(ctx context.Context, events []*domain.TransferEvent) error

	// GetByAccount retrieves events of a contract where account is sender or receiver,
	// ordered by seq ASC.
	GetByAccount(ctx context.Context, contract, account domain.Name) ([]*domain.TransferEvent, error)

	// GetVolume aggregates the events of a contract per symbol.
	GetVolume(ctx context.Context, contract domain.Name) ([]*domain.SymbolVolume, error)

	// Truncate removes all events. Used by node reset.
	Truncate(ctx context.Context) error
}

// KeyRecord is a private key persisted by a named wallet.
type KeyRecord struct {
	Wallet     string
	PublicKey  keys.PublicKey
	PrivateKey keys.PrivateKey
	CreatedAt  int64 // Unix timestamp in milliseconds
}

// WalletKeyStore persists wallet keys.
type WalletKeyStore interface {
	// Insert adds a key. Returns ErrDuplicateKey if (wallet, public_key) exists.
	Insert(ctx context.Context, r *KeyRecord) error

	// GetByWallet retrieves all keys of a wallet ordered by public key.
	GetByWallet(ctx context.Context, wallet string) ([]*KeyRecord, error)
}
