// Package prometheus exposes OpenTelemetry metrics in the Prometheus format.
package prometheus

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelProm "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/keboola/lockstep-cluster/internal/pkg/log"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/common/servicectx"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

const (
	Endpoint          = "/metrics"
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)

type Config struct {
	Listen string `configKey:"listen" configUsage:"Prometheus scraping metrics listen address, empty value disables the endpoint."`
}

func NewConfig() Config {
	return Config{}
}

// ServeMetrics starts the HTTP endpoint and returns a MeterProvider which exports metrics to it.
// If the listen address is empty, nil MeterProvider is returned.
func ServeMetrics(ctx context.Context, cfg Config, serviceName string, logger log.Logger, proc *servicectx.Process) (metric.MeterProvider, error) {
	if cfg.Listen == "" {
		return nil, nil
	}

	logger = logger.WithComponent("metrics")

	// Create a separate registry, so the endpoint contains only our metrics
	registry := prometheus.NewRegistry()
	exporter, err := otelProm.New(otelProm.WithRegisterer(registry), otelProm.WithoutScopeInfo())
	if err != nil {
		return nil, errors.PrefixError(err, "cannot create prometheus exporter")
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter), sdkmetric.WithResource(res))

	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, errors.PrefixErrorf(err, `cannot listen on "%s"`, cfg.Listen)
	}

	handler := http.NewServeMux()
	handler.Handle(Endpoint, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: readHeaderTimeout}

	proc.Add(func(shutdown servicectx.ShutdownFn) {
		logger.Infof(ctx, `HTTP server listening on "%s%s"`, listener.Addr().String(), Endpoint)
		serverErr := srv.Serve(listener)
		if serverErr != nil && !errors.Is(serverErr, http.ErrServerClosed) {
			shutdown(context.Background(), serverErr)
		}
	})

	proc.OnShutdown(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		logger.Info(ctx, "shutting down HTTP server")
		if err := srv.Shutdown(ctx); err != nil {
			logger.Errorf(ctx, `HTTP server shutdown error: %s`, err)
		}
		if err := provider.Shutdown(ctx); err != nil {
			logger.Errorf(ctx, `cannot shutdown meter provider: %s`, err)
		}
		logger.Info(ctx, "HTTP server shutdown finished")
	})

	return provider, nil
}
