/*
Copyright 2022-2024 EscherCloud.
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
	"flag"
	"net/http"
	"net/http/pprof"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/unikorn-cloud/console/pkg/monitor"
	"github.com/unikorn-cloud/console/pkg/monitor/health"
	"github.com/unikorn-cloud/console/pkg/openapi"
	"github.com/unikorn-cloud/console/pkg/policy"
	"github.com/unikorn-cloud/console/pkg/providers/openstack"
	"github.com/unikorn-cloud/console/pkg/resources"
	"github.com/unikorn-cloud/console/pkg/server/handler"
	"github.com/unikorn-cloud/console/pkg/server/middleware/cors"
	openapimiddleware "github.com/unikorn-cloud/console/pkg/server/middleware/openapi"
	"github.com/unikorn-cloud/console/pkg/server/middleware/opentelemetry"
	"github.com/unikorn-cloud/console/pkg/server/reaper"
	"github.com/unikorn-cloud/console/pkg/session"

	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

type Server struct {
	// Options are server specific options e.g. listener address etc.
	Options Options

	// ZapOptions configure logging.
	ZapOptions zap.Options

	// HandlerOptions sets options for the HTTP handler.
	HandlerOptions handler.Options

	// CORSOptions are for remote resource sharing.
	CORSOptions cors.Options

	// OpenStackOptions locate Keystone and the service catalog.
	OpenStackOptions openstack.Options

	// PolicyOptions override the built in oslo.policy rules.
	PolicyOptions policy.Options

	// SessionOptions bound session lifetime and number.
	SessionOptions session.Options

	// MonitorOptions control polling of lists in transition.
	MonitorOptions monitor.Options

	// ReaperOptions control session reaping.
	ReaperOptions reaper.Options

	// OTelOptions are for tracing.
	OTelOptions OTelOptions
}

func (s *Server) AddFlags(goflags *flag.FlagSet, flags *pflag.FlagSet) {
	s.ZapOptions.BindFlags(goflags)

	s.Options.AddFlags(flags)
	s.HandlerOptions.AddFlags(flags)
	s.CORSOptions.AddFlags(flags)
	s.OpenStackOptions.AddFlags(flags)
	s.PolicyOptions.AddFlags(flags)
	s.SessionOptions.AddFlags(flags)
	s.MonitorOptions.AddFlags(flags)
	s.ReaperOptions.AddFlags(flags)
	s.OTelOptions.AddFlags(flags)
}

func (s *Server) SetupLogging() {
	log.SetLogger(zap.New(zap.UseFlagOptions(&s.ZapOptions)))
}

// SetupOpenTelemetry adds a span processor that will print root spans to the
// logs by default, and optionally ship the spans to an OTLP listener.
func (s *Server) SetupOpenTelemetry(ctx context.Context) error {
	return s.OTelOptions.Setup(ctx, trace.WithSpanProcessor(&opentelemetry.LoggingSpanProcessor{}))
}

// NewSessionManager loads policy and returns a session manager that
// validates tokens against Keystone.
func (s *Server) NewSessionManager() (*session.Manager, error) {
	engine, err := policy.Load(&s.PolicyOptions)
	if err != nil {
		return nil, err
	}

	cloud := resources.CloudOptions{
		AuthURL:   s.OpenStackOptions.Endpoint,
		Region:    s.OpenStackOptions.Region,
		Interface: s.OpenStackOptions.Interface,
	}

	authenticator := session.NewOpenStackAuthenticator(&s.OpenStackOptions)

	return session.NewManager(&s.SessionOptions, engine, authenticator, cloud)
}

// NewHealthChecker returns a checker for the identity service.
func (s *Server) NewHealthChecker() (*health.Checker, error) {
	return health.New(s.OpenStackOptions.Endpoint, s.Options.HealthCheckTimeout)
}

// RunBackground starts the monitor and session reaper, they stop when the
// context is cancelled.
func (s *Server) RunBackground(ctx context.Context, manager *session.Manager, checker *health.Checker) {
	go monitor.Run(ctx, manager, &s.MonitorOptions, checker)
	go reaper.New(manager, &s.ReaperOptions).Run(ctx)
}

// GetMetricsServer serves metrics, health checks and profiling.
func (s *Server) GetMetricsServer(checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if err := checker.Ready(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return &http.Server{
		Addr:              s.Options.MetricsAddress,
		ReadTimeout:       s.Options.ReadTimeout,
		ReadHeaderTimeout: s.Options.ReadHeaderTimeout,
		Handler:           mux,
	}
}

func (s *Server) GetServer(manager *session.Manager) (*http.Server, error) {
	schema, err := openapimiddleware.NewSchema(openapi.GetSwagger)
	if err != nil {
		return nil, err
	}

	// Middleware specified here is applied to all requests pre-routing.
	router := chi.NewRouter()
	router.Use(middleware.Timeout(s.Options.RequestTimeout))
	router.Use(opentelemetry.Middleware())
	router.Use(cors.Middleware(schema, &s.CORSOptions))
	router.NotFound(http.HandlerFunc(handler.NotFound))
	router.MethodNotAllowed(http.HandlerFunc(handler.MethodNotAllowed))

	// Middleware specified here is applied to all requests post-routing.
	// NOTE: these are applied in reverse order!!
	chiServerOptions := openapi.ChiServerOptions{
		BaseRouter:       router,
		ErrorHandlerFunc: handler.HandleError,
		Middlewares: []openapi.MiddlewareFunc{
			openapimiddleware.Middleware(openapimiddleware.NewAuthorizer(), schema),
		},
	}

	handlerInterface, err := handler.New(manager, &s.HandlerOptions)
	if err != nil {
		return nil, err
	}

	server := &http.Server{
		Addr:              s.Options.ListenAddress,
		ReadTimeout:       s.Options.ReadTimeout,
		ReadHeaderTimeout: s.Options.ReadHeaderTimeout,
		WriteTimeout:      s.Options.WriteTimeout,
		Handler:           openapi.HandlerWithOptions(handlerInterface, chiServerOptions),
	}

	return server, nil
}
