package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"currency-ledger/internal/domain"
	"currency-ledger/internal/storage"
)

// TransferEventStore is an in-memory implementation of storage.TransferEventStore.
type TransferEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TransferEvent // keyed by composite key
}

// NewTransferEventStore creates a new in-memory transfer event store.
func NewTransferEventStore() *TransferEventStore {
	return &TransferEventStore{
		data: make(map[string]*domain.TransferEvent),
	}
}

// eventKey generates a unique key for an event.
func eventKey(transactionID string, seq uint64) string {
	return fmt.Sprintf("%s|%d", transactionID, seq)
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *TransferEventStore) InsertBulk(_ context.Context, events []*domain.TransferEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.TransactionID == "" {
			return storage.ErrInvalidInput
		}
		key := eventKey(e.TransactionID, e.Seq)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, e := range events {
		ev := *e
		s.data[eventKey(e.TransactionID, e.Seq)] = &ev
	}
	return nil
}

// GetByAccount retrieves events of a contract where account is sender or receiver.
func (s *TransferEventStore) GetByAccount(_ context.Context, contract, account domain.Name) ([]*domain.TransferEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransferEvent
	for _, e := range s.data {
		if e.Contract == contract && (e.From == account || e.To == account) {
			ev := *e
			result = append(result, &ev)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})
	return result, nil
}

// GetVolume aggregates the events of a contract per symbol, ordered by symbol.
func (s *TransferEventStore) GetVolume(_ context.Context, contract domain.Name) ([]*domain.SymbolVolume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bySymbol := make(map[string]*domain.SymbolVolume)
	for _, e := range s.data {
		if e.Contract != contract {
			continue
		}
		v, ok := bySymbol[e.Symbol]
		if !ok {
			v = &domain.SymbolVolume{Contract: contract, Symbol: e.Symbol}
			bySymbol[e.Symbol] = v
		}
		switch e.Action {
		case domain.ActionIssue:
			v.Issued += e.Amount
		case domain.ActionTransfer:
			v.Moved += e.Amount
		}
		v.Count++
	}

	result := make([]*domain.SymbolVolume, 0, len(bySymbol))
	for _, v := range bySymbol {
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})
	return result, nil
}

// Truncate removes all events.
func (s *TransferEventStore) Truncate(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]*domain.TransferEvent)
	return nil
}

var _ storage.TransferEventStore = (*TransferEventStore)(nil)
