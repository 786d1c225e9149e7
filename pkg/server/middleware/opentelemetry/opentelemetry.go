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

package opentelemetry

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.22.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/unikorn-cloud/console/pkg/constants"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

const (
	// unmatchedRoute labels requests that never reached a route.
	unmatchedRoute = "unmatched"

	pageKey   = attribute.Key("console.page")
	actionKey = attribute.Key("console.action")
)

// recordedHeaders are the only headers copied onto spans.  Tokens travel in
// headers and session IDs in paths, so neither is ever recorded.
//
//nolint:gochecknoglobals
var recordedHeaders = []string{
	"Accept",
	"Content-Type",
	"Origin",
}

// statusRecorder remembers what the handler wrote.
type statusRecorder struct {
	http.ResponseWriter

	code  int
	bytes int
}

func (w *statusRecorder) Write(body []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}

	n, err := w.ResponseWriter.Write(body)
	w.bytes += n

	return n, err
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	if w.code == 0 {
		w.code = statusCode
	}

	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) status() int {
	if w.code == 0 {
		return http.StatusOK
	}

	return w.code
}

func spanLogValues(name string, s trace.SpanContext) []interface{} {
	return []interface{}{
		"span.name", name,
		"span.id", s.SpanID().String(),
		"trace.id", s.TraceID().String(),
	}
}

// LoggingSpanProcessor logs finished spans with their attributes and
// duration.  Starts are not logged, the end record carries everything.
type LoggingSpanProcessor struct{}

var _ sdktrace.SpanProcessor = &LoggingSpanProcessor{}

func (*LoggingSpanProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (*LoggingSpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	values := spanLogValues(s.Name(), s.SpanContext())
	values = append(values, "duration", s.EndTime().Sub(s.StartTime()).String())

	for _, kv := range s.Attributes() {
		values = append(values, string(kv.Key), kv.Value.Emit())
	}

	if s.Status().Code == codes.Error {
		log.Log.Info("request failed", values...)
		return
	}

	log.Log.V(1).Info("request served", values...)
}

func (*LoggingSpanProcessor) Shutdown(context.Context) error {
	return nil
}

func (*LoggingSpanProcessor) ForceFlush(context.Context) error {
	return nil
}

func headerAttributes(header http.Header, prefix string) []attribute.KeyValue {
	var attr []attribute.KeyValue

	for _, name := range recordedHeaders {
		if value := header.Get(name); value != "" {
			attr = append(attr, attribute.String(prefix+"."+http.CanonicalHeaderKey(name), value))
		}
	}

	return attr
}

// hostPort splits an address, tolerating a missing port and IPv6 literals.
func hostPort(address string) (string, int, bool) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return address, 0, false
	}

	p, err := strconv.Atoi(port)
	if err != nil {
		return host, 0, false
	}

	return host, p, true
}

func requestAttributes(r *http.Request) []attribute.KeyValue {
	attr := []attribute.KeyValue{
		semconv.ServiceName(constants.Application),
		semconv.ServiceVersion(constants.Version),
		semconv.HTTPRequestMethodKey.String(r.Method),
	}

	if major, minor := r.ProtoMajor, r.ProtoMinor; major != 0 {
		attr = append(attr, semconv.NetworkProtocolVersion(strconv.Itoa(major)+"."+strconv.Itoa(minor)))
	}

	if userAgent := r.UserAgent(); userAgent != "" {
		attr = append(attr, semconv.UserAgentOriginal(userAgent))
	}

	if host, port, ok := hostPort(r.Host); ok {
		attr = append(attr, semconv.ServerAddress(host), semconv.ServerPort(port))
	} else if r.Host != "" {
		attr = append(attr, semconv.ServerAddress(host))
	}

	if host, port, ok := hostPort(r.RemoteAddr); ok {
		attr = append(attr, semconv.ClientAddress(host), semconv.ClientPort(port))
	}

	return append(attr, headerAttributes(r.Header, "http.request.header")...)
}

// routeAttributes are only known once chi has matched the request.  The
// template is used in place of the path, which would leak the session ID.
func routeAttributes(r *http.Request) (string, []attribute.KeyValue) {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.RoutePattern() == "" {
		return unmatchedRoute, nil
	}

	route := rctx.RoutePattern()

	attr := []attribute.KeyValue{
		semconv.HTTPRoute(route),
	}

	if page := rctx.URLParam("page"); page != "" {
		attr = append(attr, pageKey.String(page))
	}

	if action := rctx.URLParam("action"); action != "" {
		attr = append(attr, actionKey.String(action))
	}

	return route, attr
}

func spanStatus(status int) (codes.Code, string) {
	// 4xx are the client's problem and are left unset for server spans.
	if status >= http.StatusInternalServerError {
		return codes.Error, http.StatusText(status)
	}

	return codes.Unset, ""
}

// Middleware opens a server span per request, carries a span scoped logger
// in the context and records request metrics against the matched route.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			tracer := otel.GetTracerProvider().Tracer(constants.Application)

			ctx, span := tracer.Start(ctx, r.Method, trace.WithSpanKind(trace.SpanKindServer), trace.WithAttributes(requestAttributes(r)...))
			defer span.End()

			ctx = log.IntoContext(ctx, log.Log.WithValues(spanLogValues(r.Method, span.SpanContext())...))

			request := r.WithContext(ctx)

			writer := &statusRecorder{
				ResponseWriter: w,
			}

			start := time.Now()

			next.ServeHTTP(writer, request)

			route, attr := routeAttributes(request)

			observe(r.Method, route, writer.status(), time.Since(start))

			span.SetName(r.Method + " " + route)
			span.SetAttributes(attr...)
			span.SetAttributes(
				semconv.HTTPResponseStatusCode(writer.status()),
				semconv.HTTPResponseBodySize(writer.bytes),
			)
			span.SetAttributes(headerAttributes(writer.Header(), "http.response.header")...)
			span.SetStatus(spanStatus(writer.status()))
		})
	}
}
