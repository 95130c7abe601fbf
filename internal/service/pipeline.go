package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/alanyoungcy/tradeledger/internal/service"

// HandlerFunc handles one request type.
type HandlerFunc[Req, Res any] func(ctx context.Context, req Req) Result[Res]

// Middleware decorates a handler.
type Middleware[Req, Res any] func(next HandlerFunc[Req, Res]) HandlerFunc[Req, Res]

// Chain wraps h so that mws[0] runs first.
func Chain[Req, Res any](h HandlerFunc[Req, Res], mws ...Middleware[Req, Res]) HandlerFunc[Req, Res] {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Validatable is implemented by every command and query.
type Validatable interface {
	Validate() []Violation
}

// Validation short-circuits with KindValidation when the request breaks any
// rule, before the handler runs.
func Validation[Req Validatable, Res any]() Middleware[Req, Res] {
	return func(next HandlerFunc[Req, Res]) HandlerFunc[Req, Res] {
		return func(ctx context.Context, req Req) Result[Res] {
			if v := req.Validate(); len(v) > 0 {
				return Invalid[Res](v...)
			}
			return next(ctx, req)
		}
	}
}

// Logging records name, outcome and latency of every request.
func Logging[Req, Res any](logger *slog.Logger, name string) Middleware[Req, Res] {
	return func(next HandlerFunc[Req, Res]) HandlerFunc[Req, Res] {
		return func(ctx context.Context, req Req) Result[Res] {
			start := time.Now()
			logger.DebugContext(ctx, "service: handling", slog.String("request", name))

			res := next(ctx, req)

			attrs := []any{
				slog.String("request", name),
				slog.String("outcome", res.Kind.String()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			}
			switch res.Kind {
			case KindInfra:
				logger.ErrorContext(ctx, "service: request failed", append(attrs, slog.String("error", res.Reason()))...)
			case KindValidation:
				logger.WarnContext(ctx, "service: request rejected", append(attrs, slog.Any("violations", res.Violations))...)
			default:
				logger.InfoContext(ctx, "service: handled", attrs...)
			}
			return res
		}
	}
}

// Tracing opens a span per request. Without a configured provider the global
// no-op tracer is used.
func Tracing[Req, Res any](name string) Middleware[Req, Res] {
	tracer := otel.Tracer(tracerName)
	return func(next HandlerFunc[Req, Res]) HandlerFunc[Req, Res] {
		return func(ctx context.Context, req Req) Result[Res] {
			ctx, span := tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
			defer span.End()

			res := next(ctx, req)
			span.SetAttributes(attribute.String("tradeledger.outcome", res.Kind.String()))
			if res.Kind == KindInfra {
				span.RecordError(res.Err)
				span.SetStatus(codes.Error, "infrastructure failure")
			}
			return res
		}
	}
}
