package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"temporal-sa/rsa-oaep-codec/config"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.temporal.io/sdk/client"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type (
	MetricsProvider interface {
		Start() error
		Stop() error
		MetricsHandler() client.MetricsHandler
	}

	httpPromMetricsProvider struct {
		host           string
		port           int
		path           string
		server         *http.Server
		listener       net.Listener
		meterProvider  *metric.MeterProvider
		metricsHandler client.MetricsHandler
		logger         *zap.Logger
	}
)

func newMetricsProvider(lc fx.Lifecycle, configProvider config.ConfigProvider, logger *zap.Logger) (MetricsProvider, error) {
	cfg := configProvider.GetCodecConfig()

	provider := &httpPromMetricsProvider{
		host:   cfg.Server.Host,
		port:   cfg.Metrics.Port,
		path:   DefaultPrometheusPath,
		logger: logger,
	}

	registry := promclient.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	meterProvider, handler, err := InitPrometheus(registry)
	if err != nil {
		return nil, err
	}
	provider.meterProvider = meterProvider
	provider.metricsHandler = NewMetricsHandler(MetricsHandlerOptions{
		Meter: meterProvider.Meter(MeterName),
		OnError: func(err error) {
			logger.Warn("failed to record metric", zap.Error(err))
		},
	})

	mux := http.NewServeMux()
	mux.Handle(provider.path, handler)
	provider.server = &http.Server{
		Addr:              provider.getHostPort(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return provider.Start()
		},
		OnStop: func(ctx context.Context) error {
			return provider.Stop()
		},
	})

	return provider, nil
}

func newMetricsHandlerProvider(provider MetricsProvider) client.MetricsHandler {
	return provider.MetricsHandler()
}

func (h *httpPromMetricsProvider) MetricsHandler() client.MetricsHandler {
	return h.metricsHandler
}

func (h *httpPromMetricsProvider) Start() error {
	lis, err := net.Listen("tcp", h.getHostPort())
	if err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	h.listener = lis

	go func() {
		h.logger.Info("metrics server started", zap.String("endpoint", h.getEndpoint()))
		if err := h.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("metrics server error", zap.Error(err))
		}
	}()

	return nil
}

func (h *httpPromMetricsProvider) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if h.listener != nil {
		if err := h.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop metrics server: %w", err))
		}
	}
	if err := h.meterProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shut down meter provider: %w", err))
	}

	return errors.Join(errs...)
}

func (h *httpPromMetricsProvider) getHostPort() string {
	return net.JoinHostPort(h.host, fmt.Sprint(h.port))
}

// getEndpoint reports the bound address, which differs from the configured one when port is 0
func (h *httpPromMetricsProvider) getEndpoint() string {
	if h.listener != nil {
		return h.listener.Addr().String() + h.path
	}
	return h.getHostPort() + h.path
}
