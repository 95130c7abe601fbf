package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradeledger/internal/domain"
	"github.com/alanyoungcy/tradeledger/internal/retry"
	"github.com/alanyoungcy/tradeledger/internal/store/memory"
)

type fixture struct {
	store *memory.Store
	kv    *memKV
	pub   *fakePublisher
	svc   *TradeService
}

func newFixture(t *testing.T, policy SideEffectPolicy) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.New(),
		kv:    newMemKV(),
		pub:   &fakePublisher{err: errors.New("broker down")},
	}
	f.svc = NewTradeService(f.store, f.kv, f.pub, TradeServiceConfig{
		Policy: policy,
		Retry: retry.Config{
			MaxRetries:     2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
		},
	}, discardLogger())
	return f
}

func buy(qty int, price string) ExecuteTradeCommand {
	return ExecuteTradeCommand{Side: domain.SideBuy, Quantity: qty, Price: decimal.RequireFromString(price)}
}

func TestExecute_RecordsCachesAndPublishes(t *testing.T) {
	f := newFixture(t, PolicyStrict)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	res := f.svc.Execute(ctx, buy(100, "50.00"))
	after := time.Now().UTC().Add(time.Second)

	require.Equal(t, KindOK, res.Kind, res.Reason())
	dto := res.Value
	assert.NotEqual(t, uuid.Nil, dto.ID)
	assert.Equal(t, domain.SideBuy, dto.Side)
	assert.Equal(t, "5000.00", dto.TotalAmount.StringFixed(2))
	assert.Equal(t, time.UTC, dto.ExecutedAt.Location())
	assert.True(t, dto.ExecutedAt.After(before) && dto.ExecutedAt.Before(after))

	assert.Equal(t, 1, f.store.Len())
	assert.True(t, f.kv.has(TradeCacheKey(dto.ID)))

	events := f.pub.published()
	require.Len(t, events, 1)
	assert.Equal(t, dto.ID, events[0].ID)
	assert.True(t, dto.Price.Equal(events[0].Price))
}

func TestExecute_UniqueIDs(t *testing.T) {
	f := newFixture(t, PolicyStrict)
	seen := make(map[uuid.UUID]bool)
	for i := 0; i < 20; i++ {
		res := f.svc.Execute(context.Background(), buy(1, "1.00"))
		require.True(t, res.IsOK())
		assert.False(t, seen[res.Value.ID])
		seen[res.Value.ID] = true
	}
}

func TestExecute_ThenGetByIDServedFromCache(t *testing.T) {
	f := newFixture(t, PolicyStrict)
	ctx := context.Background()

	created := f.svc.Execute(ctx, buy(3, "10.25"))
	require.True(t, created.IsOK())

	got := f.svc.GetByID(ctx, GetTradeByIDQuery{ID: created.Value.ID})
	require.True(t, got.IsOK(), got.Reason())
	assert.Equal(t, created.Value.ID, got.Value.ID)
	assert.Equal(t, created.Value.Side, got.Value.Side)
	assert.Equal(t, created.Value.Quantity, got.Value.Quantity)
	assert.True(t, created.Value.Price.Equal(got.Value.Price))
	assert.True(t, created.Value.TotalAmount.Equal(got.Value.TotalAmount))
	assert.True(t, created.Value.ExecutedAt.Equal(got.Value.ExecutedAt))
	assert.Equal(t, 0, f.store.GetByIDCalls())
}

func TestExecute_Validation(t *testing.T) {
	cases := map[string]ExecuteTradeCommand{
		"lowercase side":  {Side: "buy", Quantity: 1, Price: decimal.NewFromInt(1)},
		"empty side":      {Quantity: 1, Price: decimal.NewFromInt(1)},
		"zero quantity":   buy(0, "1.00"),
		"negative qty":    buy(-5, "1.00"),
		"zero price":      buy(1, "0"),
		"negative price":  buy(1, "-2.00"),
		"three decimals":  buy(1, "1.234"),
		"total overflows": buy(1000000, "10.00"),
	}
	for name, cmd := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, PolicyStrict)
			res := f.svc.Execute(context.Background(), cmd)
			assert.Equal(t, KindValidation, res.Kind)
			assert.NotEmpty(t, res.Violations)
			assert.Equal(t, 0, f.store.Len())
			assert.Empty(t, f.pub.published())
		})
	}
}

func TestExecute_TrailingZerosAccepted(t *testing.T) {
	f := newFixture(t, PolicyStrict)
	res := f.svc.Execute(context.Background(), buy(2, "12.500"))
	require.True(t, res.IsOK(), res.Reason())
	assert.Equal(t, "25.00", res.Value.TotalAmount.StringFixed(2))
}

func TestExecute_StrictPublishFailureIsInfraButCommitted(t *testing.T) {
	f := newFixture(t, PolicyStrict)
	f.pub.failFirst = -1

	res := f.svc.Execute(context.Background(), buy(1, "5.00"))
	assert.Equal(t, KindInfra, res.Kind)
	assert.Equal(t, 1, f.store.Len())
	assert.Equal(t, 1, f.pub.attempts)
}

func TestExecute_StrictCacheFailureSkipsPublish(t *testing.T) {
	f := newFixture(t, PolicyStrict)
	f.kv.setErr = errors.New("redis down")

	res := f.svc.Execute(context.Background(), buy(1, "5.00"))
	assert.Equal(t, KindInfra, res.Kind)
	assert.Equal(t, 1, f.store.Len())
	assert.Equal(t, 0, f.pub.attempts)
}

func TestExecute_CommitFailureIsInfra(t *testing.T) {
	f := newFixture(t, PolicyStrict)
	f.store.CommitErr = errors.New("connection reset")

	res := f.svc.Execute(context.Background(), buy(1, "5.00"))
	assert.Equal(t, KindInfra, res.Kind)
	assert.ErrorIs(t, res.Err, f.store.CommitErr)
	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, 0, f.pub.attempts)
}

func TestExecute_BestEffortRetriesPublish(t *testing.T) {
	f := newFixture(t, PolicyBestEffort)
	f.pub.failFirst = 2

	res := f.svc.Execute(context.Background(), buy(1, "5.00"))
	require.True(t, res.IsOK())
	assert.Equal(t, 3, f.pub.attempts)
	assert.Len(t, f.pub.published(), 1)
}

func TestExecute_BestEffortSwallowsFinalFailure(t *testing.T) {
	f := newFixture(t, PolicyBestEffort)
	f.pub.failFirst = -1

	res := f.svc.Execute(context.Background(), buy(1, "5.00"))
	require.True(t, res.IsOK())
	assert.Equal(t, 3, f.pub.attempts)
	assert.Equal(t, 1, f.store.Len())
}

func TestExecute_OutboxStagesEvent(t *testing.T) {
	f := newFixture(t, PolicyOutbox)

	res := f.svc.Execute(context.Background(), buy(4, "2.50"))
	require.True(t, res.IsOK())
	assert.Equal(t, 0, f.pub.attempts)
	assert.False(t, f.kv.has(TradeCacheKey(res.Value.ID)))

	entries := f.store.Outbox()
	require.Len(t, entries, 1)
	assert.Equal(t, res.Value.ID, entries[0].Event.ID)
	assert.Nil(t, entries[0].DispatchedAt)
	assert.Equal(t, 1, f.store.Commits())
}

func TestGetByID_SecondReadHitsCache(t *testing.T) {
	f := newFixture(t, PolicyStrict)
	f.store.Seed(seededTrades()...)
	id := seededTrades()[1].ID

	first := f.svc.GetByID(context.Background(), GetTradeByIDQuery{ID: id})
	require.True(t, first.IsOK())
	second := f.svc.GetByID(context.Background(), GetTradeByIDQuery{ID: id})
	require.True(t, second.IsOK())

	assert.Equal(t, first.Value.ID, second.Value.ID)
	assert.Equal(t, 1, f.store.GetByIDCalls())
	assert.Equal(t, "3750.00", second.Value.TotalAmount.StringFixed(2))
}

func TestGetByID_NotFound(t *testing.T) {
	f := newFixture(t, PolicyStrict)
	id := uuid.New()

	res := f.svc.GetByID(context.Background(), GetTradeByIDQuery{ID: id})
	assert.Equal(t, KindNotFound, res.Kind)
	assert.Equal(t, id.String(), res.MissingID)
	assert.ErrorIs(t, res.Err, domain.ErrNotFound)
	assert.Equal(t, 1, f.store.GetByIDCalls())
}

func TestGetByID_NilIDRejected(t *testing.T) {
	f := newFixture(t, PolicyStrict)
	res := f.svc.GetByID(context.Background(), GetTradeByIDQuery{})
	assert.Equal(t, KindValidation, res.Kind)
	assert.Equal(t, 0, f.store.GetByIDCalls())
}

func TestGetByID_CacheFailure(t *testing.T) {
	f := newFixture(t, PolicyStrict)
	f.store.Seed(seededTrades()...)
	f.kv.getErr = errors.New("redis down")
	id := seededTrades()[0].ID

	res := f.svc.GetByID(context.Background(), GetTradeByIDQuery{ID: id})
	assert.Equal(t, KindInfra, res.Kind)

	lenient := newFixture(t, PolicyBestEffort)
	lenient.store.Seed(seededTrades()...)
	lenient.kv.getErr = errors.New("redis down")

	res = lenient.svc.GetByID(context.Background(), GetTradeByIDQuery{ID: id})
	require.True(t, res.IsOK())
	assert.Equal(t, id, res.Value.ID)
}

func TestGetPaged_EmptyStore(t *testing.T) {
	f := newFixture(t, PolicyStrict)

	res := f.svc.GetPaged(context.Background(), GetPagedTradesQuery{PageNumber: 1, PageSize: 10})
	require.True(t, res.IsOK())
	page := res.Value
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.TotalCount)
	assert.Equal(t, 1, page.PageNumber)
	assert.Equal(t, 10, page.PageSize)
	assert.False(t, page.HasNextPage)
	assert.False(t, page.HasPreviousPage)
}

func TestGetPaged_SeededNewestFirst(t *testing.T) {
	f := newFixture(t, PolicyStrict)
	f.store.Seed(seededTrades()...)

	res := f.svc.GetPaged(context.Background(), GetPagedTradesQuery{PageNumber: 1, PageSize: 10})
	require.True(t, res.IsOK())
	page := res.Value
	require.Len(t, page.Items, 3)
	assert.Equal(t, "1570b546-7456-4358-bcc3-38b08b428bde", page.Items[0].ID.String())
	assert.Equal(t, "c4ae962b-1cf5-498e-92ed-2db397b883c0", page.Items[1].ID.String())
	assert.Equal(t, "866bee10-bb20-4d6b-aab2-0df998d52b4f", page.Items[2].ID.String())
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 1, page.TotalPages)
}

func TestGetPaged_SecondPage(t *testing.T) {
	f := newFixture(t, PolicyStrict)
	f.store.Seed(seededTrades()...)

	res := f.svc.GetPaged(context.Background(), GetPagedTradesQuery{PageNumber: 2, PageSize: 2})
	require.True(t, res.IsOK())
	page := res.Value
	require.Len(t, page.Items, 1)
	assert.Equal(t, "866bee10-bb20-4d6b-aab2-0df998d52b4f", page.Items[0].ID.String())
	assert.Equal(t, 2, page.TotalPages)
	assert.True(t, page.HasPreviousPage)
	assert.False(t, page.HasNextPage)
}

func TestGetPaged_HugePageNumberIsEmpty(t *testing.T) {
	f := newFixture(t, PolicyStrict)
	f.store.Seed(seededTrades()...)

	res := f.svc.GetPaged(context.Background(), GetPagedTradesQuery{PageNumber: math.MaxInt, PageSize: 10})
	require.True(t, res.IsOK(), res.Reason())
	page := res.Value
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 1, page.TotalPages)
	assert.True(t, page.HasPreviousPage)
	assert.False(t, page.HasNextPage)
}

func TestGetPaged_InvalidInput(t *testing.T) {
	cases := []GetPagedTradesQuery{
		{PageNumber: 1, PageSize: -1},
		{PageNumber: 1, PageSize: 0},
		{PageNumber: 1, PageSize: 51},
		{PageNumber: 0, PageSize: 10},
		{PageNumber: -3, PageSize: 10},
	}
	f := newFixture(t, PolicyStrict)
	for _, q := range cases {
		res := f.svc.GetPaged(context.Background(), q)
		assert.Equal(t, KindValidation, res.Kind, "%+v", q)
	}
	assert.Equal(t, 0, f.store.GetPagedCalls())
}

func TestGetPaged_MaxPageSizeAccepted(t *testing.T) {
	f := newFixture(t, PolicyStrict)
	res := f.svc.GetPaged(context.Background(), GetPagedTradesQuery{PageNumber: 1, PageSize: domain.MaxPageSize})
	assert.True(t, res.IsOK())
}
