/*
Copyright 2022-2024 EscherCloud.
Copyright 2024-2025 the Unikorn Authors.

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

package monitor

import (
	"context"
	"time"

	"github.com/spf13/pflag"

	"github.com/unikorn-cloud/console/pkg/list"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Options allow modification of parameters via the CLI.
type Options struct {
	// pollPeriod defines how often to run.  Only lists with rows in a
	// transitional state are refetched, so it's mostly down to how quickly
	// users want to see things settle.
	pollPeriod time.Duration
}

// AddFlags registers option flags with pflag.
func (o *Options) AddFlags(flags *pflag.FlagSet) {
	flags.DurationVar(&o.pollPeriod, "poll-period", 5*time.Second, "Period to poll lists with transitional rows")
}

// Source provides the lists to monitor.
type Source interface {
	Controllers() []*list.Controller
}

// Checker is an interface that monitors must implement.
type Checker interface {
	// Check does whatever the checker is checking for.
	Check(ctx context.Context) error
}

// transitions refreshes lists that have rows that will change on their own,
// e.g. a volume that is being created.
type transitions struct {
	source Source
}

// Ensure the interface is implemented.
var _ Checker = &transitions{}

func (t *transitions) Check(ctx context.Context) error {
	Poll(ctx, t.source)

	return nil
}

// Poll does a single pass, returning the number of lists refreshed.
func Poll(ctx context.Context, source Source) int {
	log := log.FromContext(ctx)

	var refreshed int

	for _, controller := range source.Controllers() {
		if controller.Closed() || !controller.InTransition() {
			continue
		}

		config := controller.Config()

		log.V(1).Info("refreshing list in transition", "resource", config.Name)

		controller.Fetch(ctx, list.Silent())

		pollRefreshesMetric.WithLabelValues(config.Name).Inc()

		refreshed++
	}

	return refreshed
}

// Run sits in an infinite loop, polling every so often.  Any additional
// checkers are run on the same schedule.
func Run(ctx context.Context, source Source, o *Options, extra ...Checker) {
	log := log.FromContext(ctx)

	ticker := time.NewTicker(o.pollPeriod)
	defer ticker.Stop()

	checkers := append([]Checker{&transitions{source: source}}, extra...)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, checker := range checkers {
				if err := checker.Check(ctx); err != nil {
					log.Error(err, "check failed")
				}
			}
		}
	}
}
