/*
Copyright 2024 the Unikorn Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package server

import (
	"context"
	"time"

	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.22.0"

	"github.com/unikorn-cloud/console/pkg/constants"
)

// Options allows server options to be overridden.
type Options struct {
	// ListenAddress tells the server what to listen on, you shouldn't
	// need to change this, its already non-privileged and the default
	// should be modified to avoid clashes with other services e.g prometheus.
	ListenAddress string

	// MetricsAddress serves metrics, health checks and profiling, away from
	// the public API.
	MetricsAddress string

	// ReadTimeout defines how long before we give up on the client,
	// this should be fairly short.
	ReadTimeout time.Duration

	// ReadHeaderTimeout defines how long before we give up on the client,
	// this should be fairly short.
	ReadHeaderTimeout time.Duration

	// WriteTimeout defines how long we take to respond before we give up.
	// Ideally we'd like this to be short, but Neutron in particular can be
	// slow when listing everything as an admin.
	WriteTimeout time.Duration

	// RequestTimeout places a hard limit on all requests lengths.
	RequestTimeout time.Duration

	// ShutdownTimeout is how long to wait for requests to drain.
	ShutdownTimeout time.Duration

	// HealthCheckTimeout bounds readiness checks of the identity service.
	HealthCheckTimeout time.Duration
}

func (o *Options) AddFlags(f *pflag.FlagSet) {
	f.StringVar(&o.ListenAddress, "server-listen-address", ":6080", "API listener address.")
	f.StringVar(&o.MetricsAddress, "server-metrics-address", ":6060", "Metrics, health and profiling listener address.")
	f.DurationVar(&o.ReadTimeout, "server-read-timeout", time.Second, "How long to wait for the client to send the request body.")
	f.DurationVar(&o.ReadHeaderTimeout, "server-read-header-timeout", time.Second, "How long to wait for the client to send headers.")
	f.DurationVar(&o.WriteTimeout, "server-write-timeout", time.Minute, "How long to wait for the API to respond to the client.")
	f.DurationVar(&o.RequestTimeout, "server-request-timeout", 50*time.Second, "How long to wait of a request to be serviced.")
	f.DurationVar(&o.ShutdownTimeout, "server-shutdown-timeout", 10*time.Second, "How long to wait for requests to drain on shutdown.")
	f.DurationVar(&o.HealthCheckTimeout, "server-health-check-timeout", 5*time.Second, "How long to wait for the identity service when checking readiness.")
}

// OTelOptions configure tracing.
type OTelOptions struct {
	// OTLPEndpoint, when set, ships spans to an OTLP collector over HTTP.
	OTLPEndpoint string
}

func (o *OTelOptions) AddFlags(f *pflag.FlagSet) {
	f.StringVar(&o.OTLPEndpoint, "otlp-endpoint", "", "An optional OTLP endpoint to ship spans to.")
}

// Setup installs a global tracer provider and propagator.
func (o *OTelOptions) Setup(ctx context.Context, opts ...trace.TracerProviderOption) error {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	attributes := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(constants.Application),
		semconv.ServiceVersion(constants.Version),
	)

	opts = append(opts, trace.WithResource(attributes))

	if o.OTLPEndpoint != "" {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(o.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return err
		}

		opts = append(opts, trace.WithBatcher(exporter))
	}

	otel.SetTracerProvider(trace.NewTracerProvider(opts...))

	return nil
}
