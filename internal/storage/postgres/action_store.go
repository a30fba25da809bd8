package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"currency-ledger/internal/domain"
	"currency-ledger/internal/keys"
	"currency-ledger/internal/storage"
)

// ActionStore implements storage.ActionStore using PostgreSQL.
type ActionStore struct {
	pool *Pool
}

// NewActionStore creates a new ActionStore.
func NewActionStore(pool *Pool) *ActionStore {
	return &ActionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ActionStore = (*ActionStore)(nil)

const actionColumns = `transaction_id, seq, contract, action, permission, data, signer, signature, created_at`

// Insert adds a new record. Returns ErrDuplicateKey if transaction_id or seq exists.
func (s *ActionStore) Insert(ctx context.Context, r *domain.ActionRecord) error {
	if r == nil || r.TransactionID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO actions (
			transaction_id, seq, contract, action, actor, permission, data, signer, signature, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		r.TransactionID,
		int64(r.Seq),
		string(r.Action.Contract),
		string(r.Action.Name),
		string(r.Action.Authorization.Actor),
		r.Action.Authorization.String(),
		string(r.Action.Data),
		r.Signer.String(),
		r.Signature.String(),
		r.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

// GetByID retrieves a record by transaction ID. Returns ErrNotFound if not exists.
func (s *ActionStore) GetByID(ctx context.Context, transactionID string) (*domain.ActionRecord, error) {
	query := `SELECT ` + actionColumns + ` FROM actions WHERE transaction_id = $1`

	r, err := scanActionRecord(s.pool.QueryRow(ctx, query, transactionID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get action by id: %w", err)
	}
	return r, nil
}

// GetByActor retrieves records authorized by an account, ordered by seq ASC.
func (s *ActionStore) GetByActor(ctx context.Context, actor domain.Name) ([]*domain.ActionRecord, error) {
	query := `SELECT ` + actionColumns + ` FROM actions WHERE actor = $1 ORDER BY seq ASC`
	return s.query(ctx, "get actions by actor", query, string(actor))
}

// GetBySeqRange retrieves records with seq in [from, to] (inclusive), ordered by seq ASC.
func (s *ActionStore) GetBySeqRange(ctx context.Context, from, to uint64) ([]*domain.ActionRecord, error) {
	query := `SELECT ` + actionColumns + ` FROM actions WHERE seq >= $1 AND seq <= $2 ORDER BY seq ASC`
	return s.query(ctx, "get actions by seq range", query, int64(from), int64(to))
}

// Truncate removes all records.
func (s *ActionStore) Truncate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE actions`); err != nil {
		return fmt.Errorf("truncate actions: %w", err)
	}
	return nil
}

func (s *ActionStore) query(ctx context.Context, op, query string, args ...any) ([]*domain.ActionRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*domain.ActionRecord
	for rows.Next() {
		r, err := scanActionRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// scanActionRecord scans a single row into ActionRecord.
func scanActionRecord(row pgx.Row) (*domain.ActionRecord, error) {
	var (
		r          domain.ActionRecord
		seq        int64
		contract   string
		action     string
		permission string
		data       []byte
		signer     string
		signature  string
	)

	err := row.Scan(
		&r.TransactionID,
		&seq,
		&contract,
		&action,
		&permission,
		&data,
		&signer,
		&signature,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	perm, err := domain.ParsePermission(permission)
	if err != nil {
		return nil, fmt.Errorf("decode permission: %w", err)
	}
	if r.Signer, err = keys.ParsePublicKey(signer); err != nil {
		return nil, fmt.Errorf("decode signer: %w", err)
	}
	if r.Signature, err = keys.ParseSignature(signature); err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}

	r.Seq = uint64(seq)
	r.Action = domain.Action{
		Contract:      domain.Name(contract),
		Name:          domain.ActionName(action),
		Authorization: perm,
		Data:          data,
	}
	return &r, nil
}
