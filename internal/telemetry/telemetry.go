// Package telemetry provides OpenTelemetry metrics for the Forge Armory gateway.
package telemetry

import (
	"context"
	"fmt"

	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Config holds the configuration for initializing telemetry providers.
type Config struct {
	ServiceName string
	Enabled     bool
}

// Providers bundles the configured OpenTelemetry providers.
// When telemetry is disabled, Providers is inert and Meter is nil.
type Providers struct {
	serviceName string
	enabled     bool

	MeterProvider *sdkmetric.MeterProvider
	Meter         metric.Meter
}

// Init sets up the metrics pipeline. Metrics are exported in the Prometheus
// format and served by the HTTP server's /metrics endpoint.
func Init(_ context.Context, conf *Config) (*Providers, error) {
	p := &Providers{
		serviceName: conf.ServiceName,
		enabled:     conf.Enabled,
	}
	if !conf.Enabled {
		return p, nil
	}

	exporter, err := otelprom.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	p.MeterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	p.Meter = p.MeterProvider.Meter(conf.ServiceName)
	return p, nil
}

// IsEnabled returns true if telemetry was enabled at init time.
func (p *Providers) IsEnabled() bool {
	return p != nil && p.enabled
}

// ServiceName returns the name the providers were initialized with.
func (p *Providers) ServiceName() string {
	return p.serviceName
}

// Shutdown flushes and stops the providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil || p.MeterProvider == nil {
		return nil
	}
	return p.MeterProvider.Shutdown(ctx)
}
