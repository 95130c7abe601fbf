package server_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rediscache "github.com/alanyoungcy/tradeledger/internal/cache/redis"
	"github.com/alanyoungcy/tradeledger/internal/codec"
	"github.com/alanyoungcy/tradeledger/internal/domain"
	"github.com/alanyoungcy/tradeledger/internal/server"
	"github.com/alanyoungcy/tradeledger/internal/server/handler"
	"github.com/alanyoungcy/tradeledger/internal/service"
	"github.com/alanyoungcy/tradeledger/internal/store/memory"
)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.TradeExecutedEvent) error { return nil }

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testEnv struct {
	router http.Handler
	store  *memory.Store
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, apiKey string) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	kv := rediscache.NewKVStore(rediscache.NewFromUniversal(rdb, "test"), quietLogger())

	store := memory.New()
	svc := service.NewTradeService(store, kv, nopPublisher{}, service.TradeServiceConfig{
		Policy:   service.PolicyStrict,
		CacheTTL: time.Minute,
	}, quietLogger())

	return &testEnv{
		router: routerFor(svc, apiKey, nil),
		store:  store,
	}
}

func routerFor(svc handler.TradeService, apiKey string, deps map[string]handler.Pinger) http.Handler {
	return server.NewRouter(server.Config{APIKey: apiKey}, server.Handlers{
		Health: handler.NewHealthHandler(deps, quietLogger()),
		Trades: handler.NewTradeHandler(svc, server.TradesPath, quietLogger()),
	}, quietLogger())
}

func (env *testEnv) do(t *testing.T, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

type errorResponse struct {
	Error      string              `json:"error"`
	ID         string              `json:"id"`
	Violations []service.Violation `json:"violations"`
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	v, err := codec.Unmarshal[T](rr.Body.Bytes())
	require.NoError(t, err, "body: %s", rr.Body.String())
	return v
}

func fields(vs []service.Violation) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Field)
	}
	return out
}

func TestExecute_CreatedWithLocation(t *testing.T) {
	env := newTestEnv(t, "")

	rr := env.do(t, http.MethodPost, server.TradesPath, `{"side":"Buy","quantity":100,"price":50.00}`, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	dto := decode[domain.TradeDto](t, rr)
	assert.NotEqual(t, uuid.Nil, dto.ID)
	assert.Equal(t, domain.SideBuy, dto.Side)
	assert.Equal(t, 100, dto.Quantity)
	assert.True(t, dto.TotalAmount.Equal(domain.MustMoney("5000.00")))
	assert.Equal(t, server.TradesPath+"/"+dto.ID.String(), rr.Header().Get("Location"))
	assert.Contains(t, rr.Body.String(), `"totalAmount":5000.00`)
	assert.Equal(t, 1, env.store.Len())

	got := env.do(t, http.MethodGet, rr.Header().Get("Location"), "", nil)
	require.Equal(t, http.StatusOK, got.Code)
	again := decode[domain.TradeDto](t, got)
	assert.Equal(t, dto.ID, again.ID)
	assert.True(t, dto.Price.Equal(again.Price))
	assert.Equal(t, 0, env.store.GetByIDCalls(), "served from cache")
}

func TestExecute_ValidationFailure(t *testing.T) {
	env := newTestEnv(t, "")

	rr := env.do(t, http.MethodPost, server.TradesPath, `{"side":"Hold","quantity":0,"price":1.005}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	body := decode[errorResponse](t, rr)
	assert.Equal(t, "validation_failed", body.Error)
	assert.Contains(t, fields(body.Violations), "side")
	assert.Contains(t, fields(body.Violations), "quantity")
	assert.Contains(t, fields(body.Violations), "price")
	assert.Equal(t, 0, env.store.Len())
}

func TestExecute_MalformedBody(t *testing.T) {
	env := newTestEnv(t, "")

	rr := env.do(t, http.MethodPost, server.TradesPath, `{"side":`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_request", decode[errorResponse](t, rr).Error)

	req := httptest.NewRequest(http.MethodPost, server.TradesPath, bytes.NewBufferString(`side=Buy`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	form := httptest.NewRecorder()
	env.router.ServeHTTP(form, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, form.Code)
}

func TestGet_NotFoundCarriesID(t *testing.T) {
	env := newTestEnv(t, "")
	id := uuid.New()

	rr := env.do(t, http.MethodGet, server.TradesPath+"/"+id.String(), "", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	body := decode[errorResponse](t, rr)
	assert.Equal(t, "not_found", body.Error)
	assert.Equal(t, id.String(), body.ID)
	assert.Equal(t, 1, env.store.GetByIDCalls())
}

func TestGet_RejectsBadIDs(t *testing.T) {
	env := newTestEnv(t, "")

	for _, raw := range []string{"not-a-uuid", uuid.Nil.String()} {
		rr := env.do(t, http.MethodGet, server.TradesPath+"/"+raw, "", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, raw)
		assert.Equal(t, []string{"id"}, fields(decode[errorResponse](t, rr).Violations), raw)
	}
	assert.Equal(t, 0, env.store.GetByIDCalls())
}

func TestList_DefaultsAndOrder(t *testing.T) {
	env := newTestEnv(t, "")
	env.store.Seed(
		domain.Trade{ID: uuid.MustParse("866bee10-bb20-4d6b-aab2-0df998d52b4f"), Side: domain.SideBuy, Quantity: 100,
			Price: decimal.RequireFromString("50.00"), TotalAmount: decimal.RequireFromString("5000.00"),
			ExecutedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		domain.Trade{ID: uuid.MustParse("c4ae962b-1cf5-498e-92ed-2db397b883c0"), Side: domain.SideSell, Quantity: 50,
			Price: decimal.RequireFromString("75.00"), TotalAmount: decimal.RequireFromString("3750.00"),
			ExecutedAt: time.Date(2025, 3, 2, 14, 30, 0, 0, time.UTC)},
		domain.Trade{ID: uuid.MustParse("1570b546-7456-4358-bcc3-38b08b428bde"), Side: domain.SideBuy, Quantity: 200,
			Price: decimal.RequireFromString("25.00"), TotalAmount: decimal.RequireFromString("5000.00"),
			ExecutedAt: time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)},
	)

	rr := env.do(t, http.MethodGet, server.TradesPath, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	page := decode[domain.PaginatedResult[domain.TradeDto]](t, rr)
	assert.Equal(t, 1, page.PageNumber)
	assert.Equal(t, 10, page.PageSize)
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "1570b546-7456-4358-bcc3-38b08b428bde", page.Items[0].ID.String())
	assert.Equal(t, "c4ae962b-1cf5-498e-92ed-2db397b883c0", page.Items[1].ID.String())
	assert.Equal(t, "866bee10-bb20-4d6b-aab2-0df998d52b4f", page.Items[2].ID.String())
}

func TestList_EmptyStore(t *testing.T) {
	env := newTestEnv(t, "")

	rr := env.do(t, http.MethodGet, server.TradesPath+"?pageNumber=2&pageSize=5", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"items":[]`)

	page := decode[domain.PaginatedResult[domain.TradeDto]](t, rr)
	assert.Equal(t, 2, page.PageNumber)
	assert.Equal(t, 5, page.PageSize)
	assert.Equal(t, 0, page.TotalCount)
}

func TestList_HugePageNumber(t *testing.T) {
	env := newTestEnv(t, "")

	rr := env.do(t, http.MethodGet, server.TradesPath+"?pageNumber=9223372036854775807&pageSize=10", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"items":[]`)
}

func TestList_RejectsBadPaging(t *testing.T) {
	env := newTestEnv(t, "")

	cases := map[string]string{
		"?pageSize=0":    "pageSize",
		"?pageSize=-1":   "pageSize",
		"?pageSize=51":   "pageSize",
		"?pageSize=ten":  "pageSize",
		"?pageNumber=0":  "pageNumber",
		"?pageNumber=-3": "pageNumber",
	}
	for query, field := range cases {
		rr := env.do(t, http.MethodGet, server.TradesPath+query, "", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, query)
		assert.Contains(t, fields(decode[errorResponse](t, rr).Violations), field, query)
	}
	assert.Equal(t, 0, env.store.GetPagedCalls())
}

type brokenService struct{}

func (brokenService) Execute(context.Context, service.ExecuteTradeCommand) service.Result[domain.TradeDto] {
	return service.Infra[domain.TradeDto](errors.New("dial tcp 10.0.0.7:5432: connection refused"))
}

func (brokenService) GetByID(context.Context, service.GetTradeByIDQuery) service.Result[domain.TradeDto] {
	return service.Infra[domain.TradeDto](errors.New("redis: i/o timeout"))
}

func (brokenService) GetPaged(context.Context, service.GetPagedTradesQuery) service.Result[domain.PaginatedResult[domain.TradeDto]] {
	return service.Infra[domain.PaginatedResult[domain.TradeDto]](errors.New("boom"))
}

func TestInfraFailureIsOpaque(t *testing.T) {
	env := &testEnv{router: routerFor(brokenService{}, "", nil)}

	rr := env.do(t, http.MethodPost, server.TradesPath, `{"side":"Sell","quantity":1,"price":1}`, nil)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "internal_error", decode[errorResponse](t, rr).Error)
	assert.NotContains(t, rr.Body.String(), "10.0.0.7")

	rr = env.do(t, http.MethodGet, server.TradesPath+"/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "redis")
}

func TestAPIKey(t *testing.T) {
	env := newTestEnv(t, "s3cret")

	rr := env.do(t, http.MethodGet, server.TradesPath, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodGet, server.TradesPath, "", http.Header{"X-Api-Key": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodGet, server.TradesPath, "", http.Header{"Authorization": {"Bearer s3cret"}})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code, "health stays public")
}

func TestHealth(t *testing.T) {
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	ok := &testEnv{router: routerFor(brokenService{}, "", map[string]handler.Pinger{"postgres": up, "redis": up})}
	rr := ok.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)

	bad := &testEnv{router: routerFor(brokenService{}, "", map[string]handler.Pinger{"postgres": up, "redis": down})}
	rr = bad.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"redis":"unavailable"`)
	assert.Contains(t, rr.Body.String(), `"postgres":"ok"`)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, "")

	req := httptest.NewRequest(http.MethodOptions, server.TradesPath, nil)
	req.Header.Set("Origin", "https://desk.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://desk.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}

type denyAfter struct {
	n     int
	calls int
	err   error
}

func (d *denyAfter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	d.calls++
	if d.err != nil {
		return false, d.err
	}
	return d.calls <= d.n, nil
}

func TestRateLimit(t *testing.T) {
	limiter := &denyAfter{n: 1}
	env := &testEnv{router: server.NewRouter(server.Config{
		RateLimit:       1,
		RateLimitWindow: time.Minute,
		Limiter:         limiter,
	}, server.Handlers{
		Health: handler.NewHealthHandler(nil, quietLogger()),
		Trades: handler.NewTradeHandler(brokenService{}, server.TradesPath, quietLogger()),
	}, quietLogger())}

	rr := env.do(t, http.MethodGet, server.TradesPath+"/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code, "first request reaches the handler")

	rr = env.do(t, http.MethodGet, server.TradesPath+"/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	rr = env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code, "health is not rate limited")

	limiter.err = errors.New("redis down")
	rr = env.do(t, http.MethodGet, server.TradesPath+"/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code, "limiter failure lets the request through")
}
