package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/leafsii/kvhelper/pkg/kv"
)

type Metrics struct {
	HTTPRequests    metric.Int64Counter
	HTTPDuration    metric.Float64Histogram
	Commands        metric.Int64Counter
	CommandDuration metric.Float64Histogram
	CommandErrors   metric.Int64Counter
	Misses          metric.Int64Counter
}

// Setup registers the exporter with the default Prometheus registry
func Setup(serviceName string) (*Metrics, http.Handler, error) {
	m, err := newMetrics(serviceName, promclient.DefaultRegisterer, true)
	if err != nil {
		return nil, nil, err
	}
	return m, promhttp.Handler(), nil
}

// SetupWithRegistry keeps the exporter on reg and leaves the global meter provider alone
func SetupWithRegistry(serviceName string, reg *promclient.Registry) (*Metrics, http.Handler, error) {
	m, err := newMetrics(serviceName, reg, false)
	if err != nil {
		return nil, nil, err
	}
	return m, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

func newMetrics(serviceName string, reg promclient.Registerer, global bool) (*Metrics, error) {
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	if global {
		otel.SetMeterProvider(provider)
	}

	meter := provider.Meter(serviceName)

	m := &Metrics{}

	m.HTTPRequests, err = meter.Int64Counter(
		"kvh_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"kvh_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, err
	}

	m.Commands, err = meter.Int64Counter(
		"kvh_commands_total",
		metric.WithDescription("Total number of store commands issued"),
	)
	if err != nil {
		return nil, err
	}

	m.CommandDuration, err = meter.Float64Histogram(
		"kvh_command_duration_seconds",
		metric.WithDescription("Store command round-trip duration in seconds"),
	)
	if err != nil {
		return nil, err
	}

	m.CommandErrors, err = meter.Int64Counter(
		"kvh_command_errors_total",
		metric.WithDescription("Total number of failed store commands"),
	)
	if err != nil {
		return nil, err
	}

	m.Misses, err = meter.Int64Counter(
		"kvh_misses_total",
		metric.WithDescription("Total number of lookups that found no value"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

// ObserveCommand implements kv.Observer
func (m *Metrics) ObserveCommand(ctx context.Context, command string, duration time.Duration, err error) {
	labels := metric.WithAttributes(attribute.String("command", command))

	m.Commands.Add(ctx, 1, labels)
	m.CommandDuration.Record(ctx, duration.Seconds(), labels)

	switch {
	case err == nil:
	case errors.Is(err, kv.ErrNotFound):
		m.Misses.Add(ctx, 1, labels)
	default:
		m.CommandErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("command", command),
			attribute.String("kind", errorKind(err)),
		))
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, kv.ErrBackendUnavailable):
		return "unavailable"
	case errors.Is(err, kv.ErrInvalidExpire):
		return "invalid_expire"
	case errors.Is(err, kv.ErrInvalidBound):
		return "invalid_bound"
	case errors.Is(err, kv.ErrUnsupportedCommand):
		return "unsupported"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "context"
	default:
		return "other"
	}
}

var _ kv.Observer = (*Metrics)(nil)
