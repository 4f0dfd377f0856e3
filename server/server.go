// Package server exposes the HTTP surface: login/refresh/salt endpoints, the
// websocket upgrade, health, metrics, and the static asset fallback. It
// includes configurable CORS and injects correlation IDs into request
// contexts for consistent logging.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/chat-relay/config"
	"github.com/onnwee/chat-relay/registry"
	"github.com/onnwee/chat-relay/relay"
	"github.com/onnwee/chat-relay/session"
	"github.com/onnwee/chat-relay/telemetry"
)

// Deps carries the constructed core components into the HTTP layer.
type Deps struct {
	Cfg        *config.Config
	Store      *session.Store
	Issuer     *session.Issuer
	Registry   *registry.Registry
	Dispatcher *relay.Dispatcher
}

// NewMux returns the HTTP handler with all routes.
// The provided context bounds the rate limiter cleanup goroutine.
func NewMux(ctx context.Context, deps Deps) http.Handler {
	rateLimiterCfg := loadRateLimiterConfig()
	corsCfg := loadCORSConfig()
	limiter := newIPRateLimiter(ctx, rateLimiterCfg)

	handlers := NewHandlers(deps.Cfg, deps.Store, deps.Issuer)

	mux := http.NewServeMux()

	// Metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Session control plane; credential endpoints sit behind the rate limiter.
	mux.Handle("POST /api/login", rateLimitMiddleware(http.HandlerFunc(handlers.HandleLogin), limiter))
	mux.Handle("POST /api/refresh_token", rateLimitMiddleware(http.HandlerFunc(handlers.HandleRefresh), limiter))
	mux.HandleFunc("GET /api/{user}/salt", handlers.HandleSalt)

	// Websocket endpoint
	mux.Handle("GET /ws", relay.Handler(deps.Issuer, deps.Registry, deps.Dispatcher))

	// Health and readiness endpoints
	mux.HandleFunc("/healthz", handlers.HandleHealthz)
	mux.HandleFunc("/readyz", handlers.HandleReadyz)

	// Everything else serves static assets, including synthesized audio.
	mux.Handle("/", http.FileServer(http.Dir(deps.Cfg.AssetsDir)))

	// Wrap with correlation ID injector and tracing middleware.
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Reuse corr header if provided else generate
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		ctx, span := telemetry.StartSpan(ctx, "http-server", r.Method+" "+r.URL.Path,
			telemetry.HTTPMethodAttr(r.Method),
			telemetry.HTTPRouteAttr(r.URL.Path),
			telemetry.HTTPURLAttr(r.URL.String()),
		)
		defer span.End()

		telemetry.LoggerWithCorr(ctx).Debug("request start", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.String("component", "http"))

		wrappedWriter := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		mux.ServeHTTP(wrappedWriter, r.WithContext(ctx))

		telemetry.SetSpanHTTPStatus(span, wrappedWriter.statusCode)
	})
	return withCORSConfig(handler, corsCfg)
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, deps Deps, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMux(ctx, deps),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No blanket read/write timeouts: /ws connections are long-lived and
		// manage their own deadlines.
	}

	go func() {
		<-ctx.Done()
		// Use WithoutCancel to inherit context values but allow shutdown to complete
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	slog.Info("http server listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("http server error", slog.Any("err", err))
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
