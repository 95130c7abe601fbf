package service

import (
	"github.com/google/uuid"

	"github.com/alanyoungcy/tradeledger/internal/domain"
)

// TradeCacheKey is the cache key of one trade.
func TradeCacheKey(id uuid.UUID) string {
	return "trade:" + id.String()
}

// ToDto maps a trade onto its external representation.
func ToDto(t domain.Trade) domain.TradeDto {
	return domain.TradeDto{
		ID:          t.ID,
		Side:        t.Side,
		Quantity:    t.Quantity,
		Price:       domain.NewMoney(t.Price),
		TotalAmount: domain.NewMoney(t.TotalAmount),
		ExecutedAt:  t.ExecutedAt,
	}
}

// ToDtos maps a slice of trades. The result is never nil.
func ToDtos(trades []domain.Trade) []domain.TradeDto {
	out := make([]domain.TradeDto, 0, len(trades))
	for _, t := range trades {
		out = append(out, ToDto(t))
	}
	return out
}

// ToEvent maps a trade onto the event mirrored to the broker.
func ToEvent(t domain.Trade) domain.TradeExecutedEvent {
	return domain.TradeExecutedEvent{
		ID:          t.ID,
		Side:        t.Side,
		Quantity:    t.Quantity,
		Price:       domain.NewMoney(t.Price),
		TotalAmount: domain.NewMoney(t.TotalAmount),
		ExecutedAt:  t.ExecutedAt,
	}
}

// EventToDto recovers the DTO from a relayed event.
func EventToDto(e domain.TradeExecutedEvent) domain.TradeDto {
	return domain.TradeDto(e)
}
