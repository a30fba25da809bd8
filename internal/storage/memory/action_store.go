package memory

import (
	"context"
	"sort"
	"sync"

	"currency-ledger/internal/domain"
	"currency-ledger/internal/storage"
)

// ActionStore is an in-memory implementation of storage.ActionStore.
type ActionStore struct {
	mu    sync.RWMutex
	byID  map[string]*domain.ActionRecord // keyed by transaction_id
	bySeq map[uint64]*domain.ActionRecord // keyed by seq (unique)
}

// NewActionStore creates a new in-memory action journal.
func NewActionStore() *ActionStore {
	return &ActionStore{
		byID:  make(map[string]*domain.ActionRecord),
		bySeq: make(map[uint64]*domain.ActionRecord),
	}
}

// Insert adds a new record. Returns ErrDuplicateKey if transaction_id or seq exists.
func (s *ActionStore) Insert(_ context.Context, r *domain.ActionRecord) error {
	if r == nil || r.TransactionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[r.TransactionID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.bySeq[r.Seq]; exists {
		return storage.ErrDuplicateKey
	}

	rec := copyRecord(r)
	s.byID[r.TransactionID] = rec
	s.bySeq[r.Seq] = rec
	return nil
}

// GetByID retrieves a record by transaction ID. Returns ErrNotFound if not exists.
func (s *ActionStore) GetByID(_ context.Context, transactionID string) (*domain.ActionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.byID[transactionID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRecord(r), nil
}

// GetByActor retrieves records authorized by an account, ordered by seq ASC.
func (s *ActionStore) GetByActor(_ context.Context, actor domain.Name) ([]*domain.ActionRecord, error) {
	return s.collect(func(r *domain.ActionRecord) bool {
		return r.Action.Authorization.Actor == actor
	}), nil
}

// GetBySeqRange retrieves records with seq in [from, to] (inclusive), ordered by seq ASC.
func (s *ActionStore) GetBySeqRange(_ context.Context, from, to uint64) ([]*domain.ActionRecord, error) {
	return s.collect(func(r *domain.ActionRecord) bool {
		return r.Seq >= from && r.Seq <= to
	}), nil
}

// Truncate removes all records.
func (s *ActionStore) Truncate(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID = make(map[string]*domain.ActionRecord)
	s.bySeq = make(map[uint64]*domain.ActionRecord)
	return nil
}

func (s *ActionStore) collect(match func(*domain.ActionRecord) bool) []*domain.ActionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ActionRecord
	for _, r := range s.bySeq {
		if match(r) {
			result = append(result, copyRecord(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})
	return result
}

// copyRecord copies r including its payload bytes.
func copyRecord(r *domain.ActionRecord) *domain.ActionRecord {
	rec := *r
	rec.Action.Data = append([]byte(nil), r.Action.Data...)
	return &rec
}

var _ storage.ActionStore = (*ActionStore)(nil)
