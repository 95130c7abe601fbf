package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tradeledger/internal/domain"
	"github.com/alanyoungcy/tradeledger/internal/service"
)

// Paging defaults applied when the query string omits them.
const (
	DefaultPageNumber = 1
	DefaultPageSize   = 10
)

// TradeService is the part of service.TradeService the handlers call.
type TradeService interface {
	Execute(ctx context.Context, cmd service.ExecuteTradeCommand) service.Result[domain.TradeDto]
	GetByID(ctx context.Context, q service.GetTradeByIDQuery) service.Result[domain.TradeDto]
	GetPaged(ctx context.Context, q service.GetPagedTradesQuery) service.Result[domain.PaginatedResult[domain.TradeDto]]
}

// TradeHandler serves /trades.
type TradeHandler struct {
	svc    TradeService
	prefix string
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler. prefix is the mount path used to
// build Location headers, e.g. "/api/v1/trades".
func NewTradeHandler(svc TradeService, prefix string, logger *slog.Logger) *TradeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TradeHandler{
		svc:    svc,
		prefix: prefix,
		logger: logger.With(slog.String("handler", "trades")),
	}
}

// Routes registers the trade endpoints on r.
func (h *TradeHandler) Routes(r chi.Router) {
	r.Post("/", h.Execute)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

type executeTradeRequest struct {
	Side     string          `json:"side"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Execute records a trade.
// POST /api/v1/trades
func (h *TradeHandler) Execute(w http.ResponseWriter, r *http.Request) {
	req, err := readJSON[executeTradeRequest](r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errUnsupportedMedia) {
			status = http.StatusUnsupportedMediaType
		}
		writeError(w, status, "invalid_request", err.Error())
		return
	}

	res := h.svc.Execute(r.Context(), service.ExecuteTradeCommand{
		Side:     domain.Side(req.Side),
		Quantity: req.Quantity,
		Price:    req.Price,
	})
	if !res.IsOK() {
		writeResult(w, r, h.logger, res)
		return
	}

	w.Header().Set("Location", h.prefix+"/"+res.Value.ID.String())
	writeJSON(w, http.StatusCreated, res.Value)
}

// Get returns one trade.
// GET /api/v1/trades/{id}
func (h *TradeHandler) Get(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:      "validation_failed",
			Message:    "one or more fields are invalid",
			Violations: []service.Violation{{Field: "id", Message: "must be a UUID"}},
		})
		return
	}

	res := h.svc.GetByID(r.Context(), service.GetTradeByIDQuery{ID: id})
	if !res.IsOK() {
		writeResult(w, r, h.logger, res)
		return
	}
	writeJSON(w, http.StatusOK, res.Value)
}

// List returns one page of trades, newest first.
// GET /api/v1/trades?pageNumber=1&pageSize=10
func (h *TradeHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var violations []service.Violation

	pageNumber, ok := intParam(q.Get("pageNumber"), DefaultPageNumber)
	if !ok {
		violations = append(violations, service.Violation{Field: "pageNumber", Message: "must be an integer"})
	}
	pageSize, ok := intParam(q.Get("pageSize"), DefaultPageSize)
	if !ok {
		violations = append(violations, service.Violation{Field: "pageSize", Message: "must be an integer"})
	}
	if len(violations) > 0 {
		writeResult(w, r, h.logger, service.Invalid[domain.PaginatedResult[domain.TradeDto]](violations...))
		return
	}

	res := h.svc.GetPaged(r.Context(), service.GetPagedTradesQuery{
		PageNumber: pageNumber,
		PageSize:   pageSize,
	})
	if !res.IsOK() {
		writeResult(w, r, h.logger, res)
		return
	}
	writeJSON(w, http.StatusOK, res.Value)
}

func intParam(v string, def int) (int, bool) {
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
