package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tradeledger/internal/domain"
)

type memKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *memKV) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

type fakePublisher struct {
	mu       sync.Mutex
	events   []domain.TradeExecutedEvent
	attempts int
	// failFirst makes that many attempts fail before succeeding; negative
	// means fail forever.
	failFirst int
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, evt domain.TradeExecutedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.failFirst < 0 || p.attempts <= p.failFirst {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *fakePublisher) published() []domain.TradeExecutedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.TradeExecutedEvent(nil), p.events...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seededTrades() []domain.Trade {
	mk := func(id string, at time.Time, side domain.Side, qty int, price string) domain.Trade {
		p := decimal.RequireFromString(price)
		return domain.Trade{
			ID:          uuid.MustParse(id),
			Side:        side,
			Quantity:    qty,
			Price:       p,
			TotalAmount: p.Mul(decimal.NewFromInt(int64(qty))),
			ExecutedAt:  at,
		}
	}
	return []domain.Trade{
		mk("866bee10-bb20-4d6b-aab2-0df998d52b4f", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), domain.SideBuy, 100, "50.00"),
		mk("c4ae962b-1cf5-498e-92ed-2db397b883c0", time.Date(2025, 3, 2, 14, 30, 0, 0, time.UTC), domain.SideSell, 50, "75.00"),
		mk("1570b546-7456-4358-bcc3-38b08b428bde", time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC), domain.SideBuy, 200, "25.00"),
	}
}
