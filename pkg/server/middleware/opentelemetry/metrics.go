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
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	//nolint:gochecknoglobals
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unikorn_console_http_requests_total",
		Help: "HTTP requests served by route and status code.",
	}, []string{"method", "route", "code"})

	//nolint:gochecknoglobals
	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "unikorn_console_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

//nolint:gochecknoinits
func init() {
	metrics.Registry.MustRegister(requestsTotal, requestDuration)
}

func observe(method, route string, code int, duration time.Duration) {
	requestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
