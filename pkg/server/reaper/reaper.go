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

package reaper

import (
	"context"
	"time"

	"github.com/spf13/pflag"

	"k8s.io/apimachinery/pkg/util/wait"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Options configure the reaper.
type Options struct {
	// Period is how often to look for dead sessions.
	Period time.Duration
}

// AddFlags registers option flags with pflag.
func (o *Options) AddFlags(f *pflag.FlagSet) {
	f.DurationVar(&o.Period, "session-reap-period", time.Minute, "Period to look for idle or expired sessions.")
}

// Sessions is anything that can reap its dead sessions.
type Sessions interface {
	Reap(ctx context.Context, now time.Time) int
}

// Seasons don't fear the reaper, nor do wind or the sun or the rain.
// Tears down sessions that are idle or whose token has expired, releasing
// their lists and any fetches in flight.
type Reaper struct {
	sessions Sessions
	options  *Options
}

func New(sessions Sessions, options *Options) *Reaper {
	return &Reaper{
		sessions: sessions,
		options:  options,
	}
}

// Run reaps periodically until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	log := log.FromContext(ctx)

	log.Info("starting session reaper", "period", r.options.Period)

	wait.UntilWithContext(ctx, func(ctx context.Context) {
		if reaped := r.sessions.Reap(ctx, time.Now()); reaped > 0 {
			log.V(1).Info("reaped sessions", "count", reaped)
		}
	}, r.options.Period)
}
