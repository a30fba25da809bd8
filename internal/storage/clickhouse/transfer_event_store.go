package clickhouse

import (
	"context"
	"fmt"

	"currency-ledger/internal/domain"
	"currency-ledger/internal/storage"
)

// TransferEventStore implements storage.TransferEventStore using ClickHouse.
type TransferEventStore struct {
	conn *Conn
}

// NewTransferEventStore creates a new TransferEventStore.
func NewTransferEventStore(conn *Conn) *TransferEventStore {
	return &TransferEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TransferEventStore = (*TransferEventStore)(nil)

const transferEventColumns = `transaction_id, seq, contract, action, from_account, to_account, amount, symbol, memo, timestamp_ms`

// InsertBulk adds multiple events. Fails entire batch on duplicate.
// MergeTree does not enforce uniqueness, so duplicates are checked explicitly.
func (s *TransferEventStore) InsertBulk(ctx context.Context, events []*domain.TransferEvent) error {
	if len(events) == 0 {
		return nil
	}

	type key struct {
		transactionID string
		seq           uint64
	}
	seen := make(map[key]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.TransactionID == "" {
			return storage.ErrInvalidInput
		}
		k := key{e.TransactionID, e.Seq}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, e := range events {
		exists, err := s.exists(ctx, e.TransactionID, e.Seq)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO transfer_events (`+transferEventColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			e.TransactionID, e.Seq, string(e.Contract), string(e.Action),
			string(e.From), string(e.To), e.Amount, e.Symbol, e.Memo, e.TimestampMs,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByAccount retrieves events of a contract where account is sender or receiver.
func (s *TransferEventStore) GetByAccount(ctx context.Context, contract, account domain.Name) ([]*domain.TransferEvent, error) {
	query := `
		SELECT ` + transferEventColumns + `
		FROM transfer_events
		WHERE contract = ? AND (from_account = ? OR to_account = ?)
		ORDER BY seq ASC
	`

	rows, err := s.conn.Query(ctx, query, string(contract), string(account), string(account))
	if err != nil {
		return nil, fmt.Errorf("query by account: %w", err)
	}
	defer rows.Close()

	return scanTransferEvents(rows)
}

// GetVolume aggregates the events of a contract per symbol, ordered by symbol.
func (s *TransferEventStore) GetVolume(ctx context.Context, contract domain.Name) ([]*domain.SymbolVolume, error) {
	query := `
		SELECT
			symbol,
			sumIf(amount, action = ?) AS issued,
			sumIf(amount, action = ?) AS moved,
			count() AS events
		FROM transfer_events
		WHERE contract = ?
		GROUP BY symbol
		ORDER BY symbol ASC
	`

	rows, err := s.conn.Query(ctx, query,
		string(domain.ActionIssue), string(domain.ActionTransfer), string(contract))
	if err != nil {
		return nil, fmt.Errorf("query volume: %w", err)
	}
	defer rows.Close()

	var result []*domain.SymbolVolume
	for rows.Next() {
		v := domain.SymbolVolume{Contract: contract}
		if err := rows.Scan(&v.Symbol, &v.Issued, &v.Moved, &v.Count); err != nil {
			return nil, fmt.Errorf("scan volume row: %w", err)
		}
		result = append(result, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate volume rows: %w", err)
	}
	return result, nil
}

// Truncate removes all events.
func (s *TransferEventStore) Truncate(ctx context.Context) error {
	if err := s.conn.Exec(ctx, `TRUNCATE TABLE IF EXISTS transfer_events`); err != nil {
		return fmt.Errorf("truncate transfer events: %w", err)
	}
	return nil
}

func (s *TransferEventStore) exists(ctx context.Context, transactionID string, seq uint64) (bool, error) {
	query := `SELECT count() FROM transfer_events WHERE transaction_id = ? AND seq = ?`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, transactionID, seq).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanTransferEvents(rows chRows) ([]*domain.TransferEvent, error) {
	var events []*domain.TransferEvent

	for rows.Next() {
		var (
			e                      domain.TransferEvent
			contract, action       string
			fromAccount, toAccount string
		)
		err := rows.Scan(
			&e.TransactionID, &e.Seq, &contract, &action,
			&fromAccount, &toAccount, &e.Amount, &e.Symbol, &e.Memo, &e.TimestampMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transfer event row: %w", err)
		}
		e.Contract = domain.Name(contract)
		e.Action = domain.ActionName(action)
		e.From = domain.Name(fromAccount)
		e.To = domain.Name(toAccount)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer event rows: %w", err)
	}
	return events, nil
}
