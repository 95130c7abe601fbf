package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tradeledger/internal/domain"
)

// UnitOfWork owns the repositories of a single request and writes their
// staged rows in one transaction.
//
// Usage:
//
//	uow := factory.NewUnitOfWork()
//	_ = uow.Trades().Add(ctx, trade)
//	_ = uow.Outbox().Add(ctx, event)
//	n, err := uow.Commit(ctx) // both rows or neither
type UnitOfWork struct {
	pool   *pgxpool.Pool
	trades *TradeStore
	outbox *OutboxStore
	logger *slog.Logger
}

// Trades returns the trade repository bound to this unit of work.
func (u *UnitOfWork) Trades() domain.TradeRepository { return u.trades }

// Outbox returns the outbox repository bound to this unit of work.
func (u *UnitOfWork) Outbox() domain.OutboxRepository { return u.outbox }

// Commit inserts every staged trade and outbox event inside one transaction.
// Nothing staged means nothing to do. On failure the transaction is rolled
// back and the staged rows are kept so the caller may inspect them.
func (u *UnitOfWork) Commit(ctx context.Context) (n int, err error) {
	batch := &pgx.Batch{}
	n = u.trades.queue(batch)
	events, err := u.outbox.queue(batch)
	if err != nil {
		return 0, fmt.Errorf("postgres: stage outbox: %w", err)
	}
	n += events
	if n == 0 {
		return 0, nil
	}

	tx, err := u.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("postgres: begin unit of work: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.Background())
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(context.Background()); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				u.logger.Error("postgres: rollback failed",
					slog.String("error", rbErr.Error()),
					slog.String("cause", err.Error()),
				)
			}
		}
	}()

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < n; i++ {
		if _, execErr := br.Exec(); execErr != nil {
			_ = br.Close()
			return 0, fmt.Errorf("postgres: unit of work statement %d: %w", i, execErr)
		}
	}
	if err = br.Close(); err != nil {
		return 0, fmt.Errorf("postgres: close batch: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit unit of work: %w", err)
	}

	u.trades.reset()
	u.outbox.reset()
	return n, nil
}

// UnitOfWorkFactory hands out a fresh UnitOfWork per request.
type UnitOfWorkFactory struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewUnitOfWorkFactory creates a factory bound to the client's pool.
func NewUnitOfWorkFactory(c *Client) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{pool: c.pool, logger: c.logger}
}

// NewUnitOfWork implements domain.UnitOfWorkFactory.
func (f *UnitOfWorkFactory) NewUnitOfWork() domain.UnitOfWork {
	return &UnitOfWork{
		pool:   f.pool,
		trades: NewTradeStore(f.pool),
		outbox: NewOutboxStore(f.pool),
		logger: f.logger,
	}
}

// Compile-time interface checks.
var (
	_ domain.UnitOfWork        = (*UnitOfWork)(nil)
	_ domain.UnitOfWorkFactory = (*UnitOfWorkFactory)(nil)
)
