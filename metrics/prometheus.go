package metrics

import (
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

// InitPrometheus registers an OpenTelemetry Prometheus exporter on registry,
// installs the resulting MeterProvider globally and returns the scrape handler.
func InitPrometheus(registry *promclient.Registry) (*metric.MeterProvider, http.Handler, error) {
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize prometheus exporter: %w", err)
	}

	// RSA operations sit between tens of microseconds (public key) and tens of
	// milliseconds (private key, large moduli); KMS round trips reach seconds.
	histogramView := metric.NewView(
		metric.Instrument{Kind: metric.InstrumentKindHistogram},
		metric.Stream{
			Aggregation: metric.AggregationExplicitBucketHistogram{
				Boundaries: []float64{
					0.00005, // 50 microseconds
					0.0001,  // 100 microseconds
					0.00025, // 250 microseconds
					0.0005,  // 500 microseconds
					0.001,   // 1 millisecond
					0.0025,  // 2.5 milliseconds
					0.005,   // 5 milliseconds
					0.01,    // 10 milliseconds
					0.025,   // 25 milliseconds
					0.05,    // 50 milliseconds
					0.1,     // 100 milliseconds
					0.25,    // 250 milliseconds
					0.5,     // 500 milliseconds
					1.0,     // 1 second
					2.5,     // 2.5 seconds
				},
			},
		},
	)

	provider := metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithView(histogramView),
	)
	otel.SetMeterProvider(provider)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})

	return provider, handler, nil
}
