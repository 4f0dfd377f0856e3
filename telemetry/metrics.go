// Package telemetry provides Prometheus metrics, correlation-id aware logging
// helpers, and a supervised goroutine spawner used for fire-and-forget
// delivery and responder tasks.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesInbound   prometheus.Counter
	MessagesDelivered prometheus.Counter
	MessagesDropped   *prometheus.CounterVec // reason: offline|backpressure|malformed
	BotRequests       prometheus.Counter
	BotFailures       prometheus.Counter
	TaskPanics        prometheus.Counter

	// Histograms (seconds)
	DispatchDuration   prometheus.Observer
	BotRequestDuration prometheus.Observer

	// Gauges
	ConnectionsOpen prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesInbound = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_messages_inbound_total", Help: "Messages read from client sockets and queued for dispatch"})
		MessagesDelivered = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_messages_delivered_total", Help: "Messages pushed onto a recipient connection's outbound channel"})
		MessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{Name: "relay_messages_dropped_total", Help: "Messages dropped instead of delivered"}, []string{"reason"})
		BotRequests = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_bot_requests_total", Help: "Requests routed to the system responder"})
		BotFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_bot_failures_total", Help: "System responder requests that ended in an error event"})
		TaskPanics = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_task_panics_total", Help: "Panics recovered in supervised goroutines"})
		DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "relay_dispatch_duration_seconds", Help: "Time to fan out one inbound message", Buckets: prometheus.DefBuckets})
		BotRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "relay_bot_request_duration_seconds", Help: "External generation call duration seconds", Buckets: prometheus.DefBuckets})
		ConnectionsOpen = promauto.NewGauge(prometheus.GaugeOpts{Name: "relay_connections_open", Help: "Currently open websocket connections"})
	})
}

// DropReason labels for MessagesDropped.
const (
	DropOffline      = "offline"
	DropBackpressure = "backpressure"
	DropMalformed    = "malformed"
)

// CountDrop increments the drop counter for a reason, tolerating pre-Init use.
func CountDrop(reason string) {
	if MessagesDropped != nil {
		MessagesDropped.WithLabelValues(reason).Inc()
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Go runs fn in its own goroutine under supervision: a panic is recovered,
// logged with the task name, and counted, instead of taking the process down
// or vanishing silently.
func Go(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				if TaskPanics != nil {
					TaskPanics.Inc()
				}
				slog.Error("task panicked", slog.String("task", name), slog.Any("panic", r))
			}
		}()
		fn()
	}()
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
