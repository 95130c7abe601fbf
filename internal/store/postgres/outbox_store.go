package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tradeledger/internal/codec"
	"github.com/alanyoungcy/tradeledger/internal/domain"
)

const insertOutboxSQL = `
	INSERT INTO trade_outbox (event_id, payload)
	VALUES ($1, $2::jsonb)`

// OutboxStore stages trade-executed events inside a unit of work and lets the
// relay drain them afterwards.
type OutboxStore struct {
	pool    *pgxpool.Pool
	pending []domain.TradeExecutedEvent
}

// NewOutboxStore creates an OutboxStore backed by the given connection pool.
func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{pool: pool}
}

// Add stages event so it commits in the same transaction as the trade.
func (s *OutboxStore) Add(ctx context.Context, event domain.TradeExecutedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.pending = append(s.pending, event)
	return nil
}

func (s *OutboxStore) queue(batch *pgx.Batch) (int, error) {
	for _, evt := range s.pending {
		payload, err := codec.Marshal(evt)
		if err != nil {
			return 0, err
		}
		batch.Queue(insertOutboxSQL, evt.ID, string(payload))
	}
	return len(s.pending), nil
}

func (s *OutboxStore) reset() {
	s.pending = nil
}

// ListPending returns up to limit undispatched entries in insertion order.
func (s *OutboxStore) ListPending(ctx context.Context, limit int) ([]domain.OutboxEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, payload::text, created_at, attempts, last_error
		FROM trade_outbox
		WHERE dispatched_at IS NULL
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending outbox: %w", err)
	}
	defer rows.Close()

	var entries []domain.OutboxEntry
	for rows.Next() {
		var (
			e       domain.OutboxEntry
			payload string
		)
		if err := rows.Scan(&e.ID, &payload, &e.CreatedAt, &e.Attempts, &e.LastError); err != nil {
			return nil, fmt.Errorf("postgres: scan outbox: %w", err)
		}
		evt, err := codec.Unmarshal[domain.TradeExecutedEvent]([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("postgres: decode outbox %d: %w", e.ID, err)
		}
		e.Event = evt
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list pending outbox: %w", err)
	}
	return entries, nil
}

// MarkDispatched records a successful relay of entry id.
func (s *OutboxStore) MarkDispatched(ctx context.Context, id int64, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE trade_outbox
		SET dispatched_at = $2, attempts = attempts + 1, last_error = ''
		WHERE id = $1`, id, at.UTC())
	if err != nil {
		return fmt.Errorf("postgres: mark outbox %d dispatched: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: mark outbox %d dispatched: %w", id, domain.ErrNotFound)
	}
	return nil
}

// MarkFailed bumps the attempt counter and keeps the latest failure reason.
func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, reason string) error {
	if _, err := s.pool.Exec(ctx, `
		UPDATE trade_outbox
		SET attempts = attempts + 1, last_error = $2
		WHERE id = $1`, id, reason); err != nil {
		return fmt.Errorf("postgres: mark outbox %d failed: %w", id, err)
	}
	return nil
}

// Compile-time interface checks.
var (
	_ domain.OutboxRepository = (*OutboxStore)(nil)
	_ domain.OutboxStore      = (*OutboxStore)(nil)
)
