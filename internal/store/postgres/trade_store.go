package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tradeledger/internal/domain"
)

// TradeStore implements domain.TradeRepository for one unit of work. Reads go
// straight to the pool; Add stages rows that the owning UnitOfWork writes on
// Commit.
type TradeStore struct {
	pool    *pgxpool.Pool
	pending []domain.Trade
}

// NewTradeStore creates a TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Numerics are selected as text and parsed with shopspring/decimal so no
// value ever passes through a float.
const tradeSelectCols = `id, side, quantity, price::text, total_amount::text, executed_at`

const insertTradeSQL = `
	INSERT INTO trades (id, side, quantity, price, total_amount, executed_at)
	VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6)`

func scanTrade(row pgx.Row) (domain.Trade, error) {
	var (
		t            domain.Trade
		side         string
		price, total string
	)
	if err := row.Scan(&t.ID, &side, &t.Quantity, &price, &total, &t.ExecutedAt); err != nil {
		return domain.Trade{}, err
	}

	var err error
	t.Side = domain.Side(side)
	if t.Price, err = decimal.NewFromString(price); err != nil {
		return domain.Trade{}, fmt.Errorf("parse price %q: %w", price, err)
	}
	if t.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return domain.Trade{}, fmt.Errorf("parse total_amount %q: %w", total, err)
	}
	t.ExecutedAt = t.ExecutedAt.UTC()
	return t, nil
}

// Add stages trade for insertion on the next Commit.
func (s *TradeStore) Add(ctx context.Context, trade domain.Trade) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.pending = append(s.pending, trade)
	return nil
}

// GetByID fetches a trade by primary key. It reads at most two rows so a
// duplicate id surfaces as domain.ErrIntegrity instead of being hidden.
func (s *TradeStore) GetByID(ctx context.Context, id uuid.UUID) (domain.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trades WHERE id = $1 LIMIT 2`, id)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("postgres: get trade %s: %w", id, err)
	}
	defer rows.Close()

	var found []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return domain.Trade{}, fmt.Errorf("postgres: scan trade %s: %w", id, err)
		}
		found = append(found, t)
	}
	if err := rows.Err(); err != nil {
		return domain.Trade{}, fmt.Errorf("postgres: get trade %s: %w", id, err)
	}

	switch len(found) {
	case 0:
		return domain.Trade{}, domain.ErrNotFound
	case 1:
		return found[0], nil
	default:
		return domain.Trade{}, fmt.Errorf("postgres: trade %s: %w", id, domain.ErrIntegrity)
	}
}

// GetPaged returns one page of trades, most recent first, and the total row
// count.
func (s *TradeStore) GetPaged(ctx context.Context, pageNumber, pageSize int) ([]domain.Trade, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trades`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count trades: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trades
		 ORDER BY executed_at DESC, id
		 LIMIT $1 OFFSET $2`,
		pageSize, domain.PageOffset(pageNumber, pageSize))
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	trades := make([]domain.Trade, 0, pageSize)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres: scan trades: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres: list trades: %w", err)
	}
	return trades, total, nil
}

// queue appends the staged inserts to batch and returns how many it added.
func (s *TradeStore) queue(batch *pgx.Batch) int {
	for _, t := range s.pending {
		batch.Queue(insertTradeSQL,
			t.ID, string(t.Side), t.Quantity,
			t.Price.String(), t.TotalAmount.String(), t.ExecutedAt,
		)
	}
	return len(s.pending)
}

func (s *TradeStore) reset() {
	s.pending = nil
}

// Compile-time interface check.
var _ domain.TradeRepository = (*TradeStore)(nil)
