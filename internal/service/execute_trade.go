package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tradeledger/internal/domain"
	"github.com/alanyoungcy/tradeledger/internal/retry"
)

// ExecuteTradeHandler records one trade, then caches and publishes it
// according to the configured SideEffectPolicy. The store write is never
// compensated: once Commit returns the trade exists.
type ExecuteTradeHandler struct {
	uow     domain.UnitOfWorkFactory
	effects *SideEffects
	policy  SideEffectPolicy
	retry   retry.Config
	now     func() time.Time
	logger  *slog.Logger
}

// NewExecuteTradeHandler creates an ExecuteTradeHandler. A nil clock means
// time.Now.
func NewExecuteTradeHandler(
	uow domain.UnitOfWorkFactory,
	effects *SideEffects,
	policy SideEffectPolicy,
	retryCfg retry.Config,
	now func() time.Time,
	logger *slog.Logger,
) *ExecuteTradeHandler {
	if now == nil {
		now = time.Now
	}
	if policy == "" {
		policy = PolicyStrict
	}
	return &ExecuteTradeHandler{
		uow:     uow,
		effects: effects,
		policy:  policy,
		retry:   retryCfg,
		now:     now,
		logger:  logger,
	}
}

// Handle executes cmd. It assumes cmd already passed validation.
func (h *ExecuteTradeHandler) Handle(ctx context.Context, cmd ExecuteTradeCommand) Result[domain.TradeDto] {
	trade, err := domain.NewTrade(cmd.Side, cmd.Quantity, cmd.Price, h.now())
	if err != nil {
		return Invalid[domain.TradeDto](Violation{Field: "trade", Message: err.Error()})
	}
	dto, evt := ToDto(trade), ToEvent(trade)

	uow := h.uow.NewUnitOfWork()
	if err := uow.Trades().Add(ctx, trade); err != nil {
		return Infra[domain.TradeDto](fmt.Errorf("service: stage trade: %w", err))
	}
	if h.policy == PolicyOutbox {
		if err := uow.Outbox().Add(ctx, evt); err != nil {
			return Infra[domain.TradeDto](fmt.Errorf("service: stage outbox event: %w", err))
		}
	}
	if _, err := uow.Commit(ctx); err != nil {
		return Infra[domain.TradeDto](fmt.Errorf("service: commit trade %s: %w", trade.ID, err))
	}

	h.logger.InfoContext(ctx, "service: trade recorded",
		slog.String("trade_id", trade.ID.String()),
		slog.String("side", string(trade.Side)),
		slog.Int("quantity", trade.Quantity),
		slog.String("price", trade.Price.StringFixed(domain.MoneyScale)),
		slog.String("policy", string(h.policy)),
	)

	switch h.policy {
	case PolicyOutbox:
		return OK(dto)
	case PolicyBestEffort:
		if err := h.effects.Dispatch(ctx, dto, evt, h.retry); err != nil {
			h.logger.ErrorContext(ctx, "service: side effects abandoned",
				slog.String("trade_id", trade.ID.String()),
				slog.String("error", err.Error()),
			)
		}
		return OK(dto)
	default:
		if err := h.effects.Dispatch(ctx, dto, evt, retry.Config{}); err != nil {
			return Infra[domain.TradeDto](err)
		}
		return OK(dto)
	}
}
