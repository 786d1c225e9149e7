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

package list

import (
	"github.com/prometheus/client_golang/prometheus"

	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	//nolint:gochecknoglobals
	fetchDurationMetric = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "unikorn_console_list_fetch_duration_seconds",
		Help:    "Time taken to fetch a list page from the backend.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"resource", "mode"})

	//nolint:gochecknoglobals
	fetchErrorsMetric = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unikorn_console_list_fetch_errors_total",
		Help: "Number of list fetches that failed, by error kind.",
	}, []string{"resource", "kind"})

	//nolint:gochecknoglobals
	staleResponsesMetric = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unikorn_console_list_stale_responses_total",
		Help: "Number of list responses discarded because a newer fetch was issued.",
	}, []string{"resource"})
)

//nolint:gochecknoinits
func init() {
	metrics.Registry.MustRegister(fetchDurationMetric, fetchErrorsMetric, staleResponsesMetric)
}
