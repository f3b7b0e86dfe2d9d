package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// corsPolicy answers cross-origin requests so a ground station UI served
// from another host can drive the API.
type corsPolicy struct {
	header [][2]string
}

func newCORSPolicy(origin string) *corsPolicy {
	if origin == "" {
		origin = "*"
	}
	methods := []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	allowed := []string{"Content-Type", "Authorization", "Accept", "Origin", requestIDHeader}
	return &corsPolicy{header: [][2]string{
		{"Access-Control-Allow-Origin", origin},
		{"Access-Control-Allow-Methods", strings.Join(methods, ", ")},
		{"Access-Control-Allow-Headers", strings.Join(allowed, ", ")},
		{"Access-Control-Expose-Headers", requestIDHeader},
		{"Access-Control-Max-Age", "86400"},
	}}
}

// middleware decorates responses of registered operations.
func (p *corsPolicy) middleware(ctx huma.Context, next func(huma.Context)) {
	for _, h := range p.header {
		ctx.SetHeader(h[0], h[1])
	}
	next(ctx)
}

// preflight handles OPTIONS on the mux, which huma never routes.
func (p *corsPolicy) preflight(w http.ResponseWriter, _ *http.Request) {
	for _, h := range p.header {
		w.Header().Set(h[0], h[1])
	}
	w.WriteHeader(http.StatusNoContent)
}

// accessLog tags each request with an id and logs its outcome.
func accessLog(logger *slog.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		start := time.Now()

		id := ctx.Header(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		ctx.SetHeader(requestIDHeader, id)

		next(ctx)

		status := ctx.Status()
		attrs := []slog.Attr{
			slog.String("request_id", id),
			slog.String("method", ctx.Method()),
			slog.String("path", ctx.URL().Path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote_addr", ctx.RemoteAddr()),
		}
		if ua := ctx.Header("User-Agent"); ua != "" {
			attrs = append(attrs, slog.String("user_agent", ua))
		}
		logger.LogAttrs(logContext(ctx), levelForStatus(status), "HTTP request completed", attrs...)
	}
}

func logContext(ctx huma.Context) context.Context {
	if c := ctx.Context(); c != nil {
		return c
	}
	return context.Background()
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
