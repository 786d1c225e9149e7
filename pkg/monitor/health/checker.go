/*
Copyright 2025 the Unikorn Authors.

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

package health

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
	"github.com/prometheus/client_golang/prometheus"

	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	// ErrNotChecked is returned before the first check completes.
	ErrNotChecked = errors.New("health not yet checked")
)

//nolint:gochecknoglobals
var backendUpMetric = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Name: "unikorn_console_backend_up",
	Help: "Whether the backend service responded to the last health check.",
}, []string{"service"})

//nolint:gochecknoinits
func init() {
	metrics.Registry.MustRegister(backendUpMetric)
}

// Checker polls Keystone, if it's not there then no sessions can be created
// and the service isn't ready.
type Checker struct {
	// endpoint is the Keystone endpoint.
	endpoint string

	// client is an unauthenticated provider client.
	client *gophercloud.ProviderClient

	// timeout bounds each check.
	timeout time.Duration

	lock sync.Mutex
	err  error
}

// New creates a new checker.
func New(endpoint string, timeout time.Duration) (*Checker, error) {
	client, err := openstack.NewClient(endpoint)
	if err != nil {
		return nil, err
	}

	checker := &Checker{
		endpoint: endpoint,
		client:   client,
		timeout:  timeout,
		err:      ErrNotChecked,
	}

	return checker, nil
}

// Check does the actual check, Keystone returns a version document from its
// endpoint without authentication.
func (c *Checker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := &gophercloud.RequestOpts{
		OkCodes: []int{http.StatusOK, http.StatusMultipleChoices},
	}

	_, err := c.client.Request(ctx, http.MethodGet, c.endpoint, opts)

	c.lock.Lock()
	c.err = err
	c.lock.Unlock()

	up := 1.0
	if err != nil {
		up = 0
	}

	backendUpMetric.WithLabelValues("identity").Set(up)

	return err
}

// Ready returns the result of the last check.
func (c *Checker) Ready() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.err
}
