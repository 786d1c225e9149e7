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

package session

import (
	"context"
	goerrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/pflag"

	"github.com/unikorn-cloud/console/pkg/errors"
	"github.com/unikorn-cloud/console/pkg/list"
	"github.com/unikorn-cloud/console/pkg/policy"
	"github.com/unikorn-cloud/console/pkg/providers/openstack"
	"github.com/unikorn-cloud/console/pkg/resources"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

var (
	// ErrClosed is returned when using a session that has been torn down.
	ErrClosed = goerrors.New("session closed")
)

// Options allow modification of parameters via the CLI.
type Options struct {
	// MaxSessions bounds the number of live sessions, the least recently
	// used is evicted when full.
	MaxSessions int

	// IdleTimeout is how long a session may go unused before it's reaped.
	IdleTimeout time.Duration

	// AdminRole grants access to admin views.
	AdminRole string

	// DetailViews bounds the detail page lists a session keeps, the least
	// recently used is closed when full.
	DetailViews int
}

// defaultDetailViews is used when the detail view bound isn't set.
const defaultDetailViews = 8

// AddFlags registers option flags with pflag.
func (o *Options) AddFlags(f *pflag.FlagSet) {
	f.IntVar(&o.MaxSessions, "max-sessions", 1024, "Maximum number of concurrent sessions.")
	f.DurationVar(&o.IdleTimeout, "session-idle-timeout", 30*time.Minute, "How long before an unused session is removed.")
	f.StringVar(&o.AdminRole, "admin-role", "admin", "Role that grants access to admin views.")
	f.IntVar(&o.DetailViews, "session-detail-views", defaultDetailViews, "Maximum number of detail page lists kept per session.")
}

// Authenticator turns a token into a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

// OpenStackAuthenticator validates tokens with Keystone.
type OpenStackAuthenticator struct {
	options *openstack.Options
}

// Ensure the interface is implemented.
var _ Authenticator = &OpenStackAuthenticator{}

// NewOpenStackAuthenticator returns a new authenticator.
func NewOpenStackAuthenticator(options *openstack.Options) *OpenStackAuthenticator {
	return &OpenStackAuthenticator{
		options: options,
	}
}

func (a *OpenStackAuthenticator) Authenticate(ctx context.Context, token string) (*Principal, error) {
	credentials := openstack.NewTokenProvider(a.options.Endpoint, token)

	details, err := credentials.Details(ctx)
	if err != nil {
		// Keystone reports bad tokens as not found.
		if errors.IsStatus(err, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound) {
			return nil, errors.NotPermitted("token is invalid or has expired")
		}

		return nil, err
	}

	principal := &Principal{
		Details:  details,
		Services: resources.NewServices(openstack.New(credentials, a.options)),
	}

	return principal, nil
}

// Manager owns all sessions.
type Manager struct {
	options       *Options
	engine        *policy.Engine
	authenticator Authenticator
	cloud         resources.CloudOptions
	sessions      *lru.Cache[string, *Session]
}

// NewManager returns a new session manager.
func NewManager(options *Options, engine *policy.Engine, authenticator Authenticator, cloud resources.CloudOptions) (*Manager, error) {
	onEvict := func(_ string, session *Session) {
		session.Close()
	}

	sessions, err := lru.NewWithEvict(options.MaxSessions, onEvict)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		options:       options,
		engine:        engine,
		authenticator: authenticator,
		cloud:         cloud,
		sessions:      sessions,
	}

	return manager, nil
}

func (m *Manager) updateMetrics() {
	activeSessionsMetric.Set(float64(m.sessions.Len()))
}

// Create validates the token and starts a new session.
func (m *Manager) Create(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, errors.NotPermitted("token required")
	}

	principal, err := m.authenticator.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	details := principal.Details

	subject := policy.Subject{
		UserID:    details.UserID,
		DomainID:  details.DomainID,
		ProjectID: details.ProjectID,
		Roles:     details.Roles,
	}

	id := uuid.NewString()

	logger := log.FromContext(ctx).WithValues("session", id, "user", details.UserName, "project", details.ProjectName)

	detailViews := m.options.DetailViews
	if detailViews <= 0 {
		detailViews = defaultDetailViews
	}

	session, err := newSession(id, token, principal, m.engine.Checker(subject, logger), m.cloud, m.options.AdminRole, detailViews)
	if err != nil {
		return nil, err
	}

	if m.sessions.Add(id, session) {
		sessionEvictionsMetric.WithLabelValues("capacity").Inc()
	}

	m.updateMetrics()

	logger.Info("session created")

	return session, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	session, ok := m.sessions.Get(id)
	if !ok || session.Closed() {
		return nil, fmt.Errorf("%w: session %s", errors.ErrNotFound, id)
	}

	session.touch()

	return session, nil
}

// Delete tears down a session.
func (m *Manager) Delete(id string) error {
	defer m.updateMetrics()

	if !m.sessions.Remove(id) {
		return fmt.Errorf("%w: session %s", errors.ErrNotFound, id)
	}

	return nil
}

// Sessions returns all live sessions.
func (m *Manager) Sessions() []*Session {
	return m.sessions.Values()
}

// Controllers returns the list controllers of all live views.
func (m *Manager) Controllers() []*list.Controller {
	var controllers []*list.Controller

	for _, session := range m.Sessions() {
		for _, view := range session.Views() {
			controllers = append(controllers, view.Controller)
		}
	}

	return controllers
}

// Reap removes sessions that are idle or whose token has expired.
func (m *Manager) Reap(ctx context.Context, now time.Time) int {
	log := log.FromContext(ctx)

	var reaped int

	for _, session := range m.Sessions() {
		var reason string

		switch {
		case session.Expired(now):
			reason = "expired"
		case m.options.IdleTimeout > 0 && session.Idle(now) > m.options.IdleTimeout:
			reason = "idle"
		default:
			continue
		}

		if m.sessions.Remove(session.ID()) {
			log.Info("session reaped", "session", session.ID(), "reason", reason)

			sessionEvictionsMetric.WithLabelValues(reason).Inc()

			reaped++
		}
	}

	m.updateMetrics()

	return reaped
}

// Close tears down all sessions.
func (m *Manager) Close() {
	m.sessions.Purge()
	m.updateMetrics()
}
