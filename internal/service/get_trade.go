package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/tradeledger/internal/cache"
	"github.com/alanyoungcy/tradeledger/internal/domain"
)

// GetTradeByIDHandler serves single-trade reads cache-aside: cache first,
// store on a miss, then populate the cache.
type GetTradeByIDHandler struct {
	uow    domain.UnitOfWorkFactory
	cache  *cache.Typed[domain.TradeDto]
	strict bool
	logger *slog.Logger
}

// NewGetTradeByIDHandler creates a GetTradeByIDHandler. With strict unset,
// cache failures are logged and the store answers instead.
func NewGetTradeByIDHandler(uow domain.UnitOfWorkFactory, c *cache.Typed[domain.TradeDto], strict bool, logger *slog.Logger) *GetTradeByIDHandler {
	return &GetTradeByIDHandler{uow: uow, cache: c, strict: strict, logger: logger}
}

// Handle looks up q.ID.
func (h *GetTradeByIDHandler) Handle(ctx context.Context, q GetTradeByIDQuery) Result[domain.TradeDto] {
	key := TradeCacheKey(q.ID)

	dto, found, err := h.cache.Get(ctx, key)
	switch {
	case err != nil && h.strict:
		return Infra[domain.TradeDto](err)
	case err != nil:
		h.logger.WarnContext(ctx, "service: cache read failed, using store",
			slog.String("key", key), slog.String("error", err.Error()))
	case found:
		return OK(dto)
	}

	trade, err := h.uow.NewUnitOfWork().Trades().GetByID(ctx, q.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return NotFound[domain.TradeDto](q.ID.String())
		}
		return Infra[domain.TradeDto](fmt.Errorf("service: get trade %s: %w", q.ID, err))
	}

	dto = ToDto(trade)
	if err := h.cache.Set(ctx, key, dto); err != nil {
		if h.strict {
			return Infra[domain.TradeDto](err)
		}
		h.logger.WarnContext(ctx, "service: cache write failed",
			slog.String("key", key), slog.String("error", err.Error()))
	}
	return OK(dto)
}
