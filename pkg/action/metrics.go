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

package action

import (
	"github.com/prometheus/client_golang/prometheus"

	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	//nolint:gochecknoglobals
	invocationsMetric = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unikorn_console_action_invocations_total",
		Help: "Number of action invocations by terminal state.",
	}, []string{"resource", "action", "state"})

	//nolint:gochecknoglobals
	rowFailuresMetric = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unikorn_console_action_row_failures_total",
		Help: "Number of rows an action failed on, by error kind.",
	}, []string{"resource", "action", "kind"})

	//nolint:gochecknoglobals
	submitDurationMetric = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "unikorn_console_action_submit_duration_seconds",
		Help:    "Time taken to submit an action to the backend.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"resource", "action"})
)

//nolint:gochecknoinits
func init() {
	metrics.Registry.MustRegister(invocationsMetric, rowFailuresMetric, submitDurationMetric)
}
