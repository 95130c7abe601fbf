package service

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/tradeledger/internal/domain"
)

// GetPagedTradesHandler serves paged reads straight from the store.
type GetPagedTradesHandler struct {
	uow domain.UnitOfWorkFactory
}

// NewGetPagedTradesHandler creates a GetPagedTradesHandler.
func NewGetPagedTradesHandler(uow domain.UnitOfWorkFactory) *GetPagedTradesHandler {
	return &GetPagedTradesHandler{uow: uow}
}

// Handle returns page q.PageNumber. A page past the end is empty, not an error.
func (h *GetPagedTradesHandler) Handle(ctx context.Context, q GetPagedTradesQuery) Result[domain.PaginatedResult[domain.TradeDto]] {
	trades, total, err := h.uow.NewUnitOfWork().Trades().GetPaged(ctx, q.PageNumber, q.PageSize)
	if err != nil {
		return Infra[domain.PaginatedResult[domain.TradeDto]](fmt.Errorf("service: list trades: %w", err))
	}
	return OK(domain.NewPaginatedResult(ToDtos(trades), total, q.PageNumber, q.PageSize))
}
