package domain

import "context"

// TradeExecutedPublisher mirrors executed trades onto the event stream.
type TradeExecutedPublisher interface {
	Publish(ctx context.Context, event TradeExecutedEvent) error
}

// TradeExecutedHandler is invoked by the consumer for every decoded event.
type TradeExecutedHandler interface {
	HandleTradeExecuted(ctx context.Context, event TradeExecutedEvent) error
}
