// Package service holds the trade ledger's command and query handlers and the
// middleware every request passes through.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tradeledger/internal/cache"
	"github.com/alanyoungcy/tradeledger/internal/domain"
	"github.com/alanyoungcy/tradeledger/internal/retry"
)

// TradeServiceConfig tunes the handlers.
type TradeServiceConfig struct {
	Policy   SideEffectPolicy
	CacheTTL time.Duration
	Retry    retry.Config
	// Now overrides the execution clock. Nil means time.Now.
	Now func() time.Time
}

// TradeService is the entry point for trade commands and queries. The
// middleware chains are composed once at construction.
type TradeService struct {
	execute  HandlerFunc[ExecuteTradeCommand, domain.TradeDto]
	getByID  HandlerFunc[GetTradeByIDQuery, domain.TradeDto]
	getPaged HandlerFunc[GetPagedTradesQuery, domain.PaginatedResult[domain.TradeDto]]
	effects  *SideEffects
}

// NewTradeService wires the handlers behind tracing, logging and validation.
func NewTradeService(
	uow domain.UnitOfWorkFactory,
	kv domain.KVStore,
	publisher domain.TradeExecutedPublisher,
	cfg TradeServiceConfig,
	logger *slog.Logger,
) *TradeService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "trade-service"))
	if cfg.Policy == "" {
		cfg.Policy = PolicyStrict
	}

	tradeCache := cache.NewTyped[domain.TradeDto](kv, cfg.CacheTTL)
	effects := NewSideEffects(tradeCache, publisher, logger)

	execute := NewExecuteTradeHandler(uow, effects, cfg.Policy, cfg.Retry, cfg.Now, logger)
	getByID := NewGetTradeByIDHandler(uow, tradeCache, cfg.Policy == PolicyStrict, logger)
	getPaged := NewGetPagedTradesHandler(uow)

	return &TradeService{
		execute: Chain(execute.Handle,
			Tracing[ExecuteTradeCommand, domain.TradeDto]("ExecuteTrade"),
			Logging[ExecuteTradeCommand, domain.TradeDto](logger, "ExecuteTrade"),
			Validation[ExecuteTradeCommand, domain.TradeDto](),
		),
		getByID: Chain(getByID.Handle,
			Tracing[GetTradeByIDQuery, domain.TradeDto]("GetTradeByID"),
			Logging[GetTradeByIDQuery, domain.TradeDto](logger, "GetTradeByID"),
			Validation[GetTradeByIDQuery, domain.TradeDto](),
		),
		getPaged: Chain(getPaged.Handle,
			Tracing[GetPagedTradesQuery, domain.PaginatedResult[domain.TradeDto]]("GetPagedTrades"),
			Logging[GetPagedTradesQuery, domain.PaginatedResult[domain.TradeDto]](logger, "GetPagedTrades"),
			Validation[GetPagedTradesQuery, domain.PaginatedResult[domain.TradeDto]](),
		),
		effects: effects,
	}
}

// Execute records a trade.
func (s *TradeService) Execute(ctx context.Context, cmd ExecuteTradeCommand) Result[domain.TradeDto] {
	return s.execute(ctx, cmd)
}

// GetByID returns one trade.
func (s *TradeService) GetByID(ctx context.Context, q GetTradeByIDQuery) Result[domain.TradeDto] {
	return s.getByID(ctx, q)
}

// GetPaged returns one page of trades, newest first.
func (s *TradeService) GetPaged(ctx context.Context, q GetPagedTradesQuery) Result[domain.PaginatedResult[domain.TradeDto]] {
	return s.getPaged(ctx, q)
}

// SideEffects exposes the dispatcher shared with the outbox relay.
func (s *TradeService) SideEffects() *SideEffects {
	return s.effects
}
