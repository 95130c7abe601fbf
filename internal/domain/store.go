package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TradeRepository reads and stages trades. Add only stages the trade; nothing
// is durable until the owning UnitOfWork commits.
type TradeRepository interface {
	Add(ctx context.Context, trade Trade) error
	// GetByID returns ErrNotFound when no row matches and ErrIntegrity when
	// more than one does.
	GetByID(ctx context.Context, id uuid.UUID) (Trade, error)
	// GetPaged returns one page ordered by execution time, most recent first,
	// together with the total number of trades.
	GetPaged(ctx context.Context, pageNumber, pageSize int) ([]Trade, int, error)
}

// OutboxEntry is a trade-executed event waiting to be relayed to the cache and
// the broker.
type OutboxEntry struct {
	ID           int64
	Event        TradeExecutedEvent
	CreatedAt    time.Time
	DispatchedAt *time.Time
	Attempts     int
	LastError    string
}

// OutboxRepository stages events alongside trades so both commit together.
type OutboxRepository interface {
	Add(ctx context.Context, event TradeExecutedEvent) error
}

// UnitOfWork scopes one logical operation. It hands out repositories bound to
// the operation and commits their staged changes atomically.
type UnitOfWork interface {
	Trades() TradeRepository
	Outbox() OutboxRepository
	// Commit writes every staged change in a single transaction and returns
	// the number of rows written.
	Commit(ctx context.Context) (int, error)
}

// UnitOfWorkFactory creates a fresh UnitOfWork per request.
type UnitOfWorkFactory interface {
	NewUnitOfWork() UnitOfWork
}

// OutboxStore is used by the relay to drain the outbox.
type OutboxStore interface {
	ListPending(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkDispatched(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, reason string) error
}
