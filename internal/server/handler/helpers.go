// Package handler translates HTTP requests into trade service calls and
// service results back into HTTP responses.
package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/alanyoungcy/tradeledger/internal/codec"
	"github.com/alanyoungcy/tradeledger/internal/service"
)

// maxBodyBytes bounds request bodies; a trade command is a few dozen bytes.
const maxBodyBytes = 1 << 16

var errUnsupportedMedia = errors.New("content type must be application/json")

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error      string              `json:"error"`
	Message    string              `json:"message,omitempty"`
	ID         string              `json:"id,omitempty"`
	Violations []service.Violation `json:"violations,omitempty"`
}

// writeJSON encodes v with the shared codec. Encoding failures fall back to a
// bare 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := codec.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

// readJSON decodes the request body into a new T.
func readJSON[T any](r *http.Request) (T, error) {
	var zero T
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return zero, errUnsupportedMedia
		}
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return zero, fmt.Errorf("read body: %w", err)
	}
	v, err := codec.Unmarshal[T](data)
	if err != nil {
		return zero, fmt.Errorf("request body must be a JSON object: %w", err)
	}
	return v, nil
}

// writeResult maps a failed service result onto its HTTP status. Infra
// failures are logged here and reported without detail.
func writeResult[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, res service.Result[T]) {
	switch res.Kind {
	case service.KindValidation:
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:      "validation_failed",
			Message:    "one or more fields are invalid",
			Violations: res.Violations,
		})
	case service.KindNotFound:
		writeJSON(w, http.StatusNotFound, errorBody{
			Error:   "not_found",
			Message: "trade not found",
			ID:      res.MissingID,
		})
	default:
		logger.ErrorContext(r.Context(), "handler: request failed",
			slog.String("path", r.URL.Path),
			slog.String("kind", res.Kind.String()),
			slog.String("error", res.Reason()),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "the request could not be completed")
	}
}
