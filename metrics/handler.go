package metrics

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/contrib/opentelemetry"
)

type MetricsHandlerOptions struct {
	// Meter defaults to the global meter named MeterName
	Meter metric.Meter
	// InitialAttributes are attached to every recorded value
	InitialAttributes attribute.Set
	// OnError is called when an instrument cannot be created
	OnError func(error)
}

// NewMetricsHandler returns a Temporal MetricsHandler that records through OpenTelemetry
func NewMetricsHandler(options MetricsHandlerOptions) client.MetricsHandler {
	meter := options.Meter
	if meter == nil {
		meter = otel.Meter(MeterName)
	}

	return opentelemetry.NewMetricsHandler(opentelemetry.MetricsHandlerOptions{
		Meter:             meter,
		InitialAttributes: options.InitialAttributes,
		OnError:           options.OnError,
	})
}
