// Package memory provides an in-process implementation of the trade ledger
// store. It mirrors the postgres semantics (staged writes, atomic commit,
// newest-first paging) and counts repository calls so tests can assert on
// cache-aside behaviour.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/tradeledger/internal/domain"
)

// Store is the shared backing state. It implements domain.UnitOfWorkFactory
// and domain.OutboxStore.
type Store struct {
	mu     sync.RWMutex
	trades map[uuid.UUID]domain.Trade
	outbox []domain.OutboxEntry
	nextID int64

	// CommitErr, when set, makes every Commit fail without writing.
	CommitErr error

	getByIDCalls  atomic.Int64
	getPagedCalls atomic.Int64
	commits       atomic.Int64
}

// New creates an empty Store.
func New() *Store {
	return &Store{trades: make(map[uuid.UUID]domain.Trade)}
}

// Seed inserts trades directly, bypassing units of work.
func (s *Store) Seed(trades ...domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range trades {
		s.trades[t.ID] = t
	}
}

// GetByIDCalls reports how many times GetByID hit the store.
func (s *Store) GetByIDCalls() int { return int(s.getByIDCalls.Load()) }

// GetPagedCalls reports how many times GetPaged hit the store.
func (s *Store) GetPagedCalls() int { return int(s.getPagedCalls.Load()) }

// Commits reports how many commits succeeded.
func (s *Store) Commits() int { return int(s.commits.Load()) }

// Len returns the number of committed trades.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trades)
}

// Outbox returns a copy of every outbox entry.
func (s *Store) Outbox() []domain.OutboxEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.OutboxEntry, len(s.outbox))
	copy(out, s.outbox)
	return out
}

// NewUnitOfWork implements domain.UnitOfWorkFactory.
func (s *Store) NewUnitOfWork() domain.UnitOfWork {
	uow := &unitOfWork{store: s}
	uow.trades = &tradeRepo{store: s, uow: uow}
	uow.events = &outboxRepo{uow: uow}
	return uow
}

func (s *Store) getByID(ctx context.Context, id uuid.UUID) (domain.Trade, error) {
	s.getByIDCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return domain.Trade{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trades[id]
	if !ok {
		return domain.Trade{}, domain.ErrNotFound
	}
	return t, nil
}

func (s *Store) getPaged(ctx context.Context, pageNumber, pageSize int) ([]domain.Trade, int, error) {
	s.getPagedCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	all := make([]domain.Trade, 0, len(s.trades))
	for _, t := range s.trades {
		all = append(all, t)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].ExecutedAt.Equal(all[j].ExecutedAt) {
			return all[i].ID.String() < all[j].ID.String()
		}
		return all[i].ExecutedAt.After(all[j].ExecutedAt)
	})

	offset := domain.PageOffset(pageNumber, pageSize)
	if offset >= len(all) {
		return []domain.Trade{}, len(all), nil
	}
	end := offset + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

// ListPending implements domain.OutboxStore.
func (s *Store) ListPending(ctx context.Context, limit int) ([]domain.OutboxEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.OutboxEntry
	for _, e := range s.outbox {
		if e.DispatchedAt != nil {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkDispatched implements domain.OutboxStore.
func (s *Store) MarkDispatched(_ context.Context, id int64, at time.Time) error {
	return s.updateOutbox(id, func(e *domain.OutboxEntry) {
		at := at.UTC()
		e.DispatchedAt = &at
		e.Attempts++
		e.LastError = ""
	})
}

// MarkFailed implements domain.OutboxStore.
func (s *Store) MarkFailed(_ context.Context, id int64, reason string) error {
	return s.updateOutbox(id, func(e *domain.OutboxEntry) {
		e.Attempts++
		e.LastError = reason
	})
}

func (s *Store) updateOutbox(id int64, fn func(*domain.OutboxEntry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].ID == id {
			fn(&s.outbox[i])
			return nil
		}
	}
	return domain.ErrNotFound
}

type unitOfWork struct {
	store   *Store
	trades  *tradeRepo
	events  *outboxRepo
	pending []domain.Trade
	staged  []domain.TradeExecutedEvent
}

func (u *unitOfWork) Trades() domain.TradeRepository  { return u.trades }
func (u *unitOfWork) Outbox() domain.OutboxRepository { return u.events }

var errDuplicateKey = errors.New("memory: duplicate key value violates unique constraint")

func (u *unitOfWork) Commit(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := len(u.pending) + len(u.staged)
	if n == 0 {
		return 0, nil
	}

	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CommitErr != nil {
		return 0, s.CommitErr
	}
	for _, t := range u.pending {
		if _, exists := s.trades[t.ID]; exists {
			return 0, errDuplicateKey
		}
	}
	for _, t := range u.pending {
		s.trades[t.ID] = t
	}
	now := time.Now().UTC()
	for _, evt := range u.staged {
		s.nextID++
		s.outbox = append(s.outbox, domain.OutboxEntry{ID: s.nextID, Event: evt, CreatedAt: now})
	}

	u.pending = nil
	u.staged = nil
	s.commits.Add(1)
	return n, nil
}

type tradeRepo struct {
	store *Store
	uow   *unitOfWork
}

func (r *tradeRepo) Add(ctx context.Context, trade domain.Trade) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.uow.pending = append(r.uow.pending, trade)
	return nil
}

func (r *tradeRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trade, error) {
	return r.store.getByID(ctx, id)
}

func (r *tradeRepo) GetPaged(ctx context.Context, pageNumber, pageSize int) ([]domain.Trade, int, error) {
	return r.store.getPaged(ctx, pageNumber, pageSize)
}

type outboxRepo struct {
	uow *unitOfWork
}

func (r *outboxRepo) Add(ctx context.Context, event domain.TradeExecutedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.uow.staged = append(r.uow.staged, event)
	return nil
}

// Compile-time interface checks.
var (
	_ domain.UnitOfWorkFactory = (*Store)(nil)
	_ domain.OutboxStore       = (*Store)(nil)
)
