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
	"cmp"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/unikorn-cloud/console/pkg/action"
	"github.com/unikorn-cloud/console/pkg/errors"
	"github.com/unikorn-cloud/console/pkg/list"
	"github.com/unikorn-cloud/console/pkg/policy"
	"github.com/unikorn-cloud/console/pkg/providers/openstack"
	"github.com/unikorn-cloud/console/pkg/resource"
	"github.com/unikorn-cloud/console/pkg/resources"
)

// Principal is who a session acts on behalf of.
type Principal struct {
	// Details are from token validation.
	Details *openstack.TokenDetails

	// Services are scoped to the token.
	Services resources.Services
}

// View is a live page, its list and the actions that can be run on it.
type View struct {
	Name       string
	Admin      bool
	Controller *list.Controller
	Pipeline   *action.Pipeline
}

// viewKey identifies a view within a session, parent is set for detail
// page lists.
type viewKey struct {
	name   string
	admin  bool
	parent string
}

// Session holds the per-user state of the console.
type Session struct {
	id        string
	tokenHash [sha256.Size]byte
	principal *Principal
	checker   *policy.Checker
	cloud     resources.CloudOptions
	adminRole string

	lock  sync.Mutex
	views map[viewKey]*View
	// details are detail page lists, one per parent resource, so are
	// bounded and closed on eviction.
	details  *lru.Cache[viewKey, *View]
	lastUsed time.Time
	closed   bool
}

func newSession(id, token string, principal *Principal, checker *policy.Checker, cloud resources.CloudOptions, adminRole string, detailViews int) (*Session, error) {
	onEvict := func(_ viewKey, view *View) {
		view.Controller.Close()
	}

	details, err := lru.NewWithEvict(detailViews, onEvict)
	if err != nil {
		return nil, err
	}

	session := &Session{
		id:        id,
		tokenHash: sha256.Sum256([]byte(token)),
		principal: principal,
		checker:   checker,
		cloud:     cloud,
		adminRole: adminRole,
		views:     map[viewKey]*View{},
		details:   details,
		lastUsed:  time.Now(),
	}

	return session, nil
}

// ID is the opaque session identifier.
func (s *Session) ID() string {
	return s.id
}

// Authorize checks the session is being used with the token that created it.
func (s *Session) Authorize(token string) bool {
	hash := sha256.Sum256([]byte(token))

	return subtle.ConstantTimeCompare(hash[:], s.tokenHash[:]) == 1
}

// Details returns the token details.
func (s *Session) Details() *openstack.TokenDetails {
	return s.principal.Details
}

// Admin reports whether the user may use admin views.
func (s *Session) Admin() bool {
	return s.principal.Details.HasRole(s.adminRole)
}

// CheckPolicy implements action.PolicyChecker.
func (s *Session) CheckPolicy(rules []string, every bool) bool {
	return s.checker.CheckPolicy(rules, every)
}

func (s *Session) touch() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.lastUsed = time.Now()
}

// Idle returns how long it's been since the session was last used.
func (s *Session) Idle(now time.Time) time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()

	return now.Sub(s.lastUsed)
}

// Expired reports whether the token has expired.
func (s *Session) Expired(now time.Time) bool {
	expiresAt := s.principal.Details.ExpiresAt

	return !expiresAt.IsZero() && !now.Before(expiresAt)
}

// Environment returns what pages need to know about the session.
func (s *Session) Environment(admin bool) (*resources.Environment, error) {
	if admin && !s.Admin() {
		return nil, errors.NotPermitted("the admin view requires the " + s.adminRole + " role")
	}

	details := s.principal.Details

	env := &resources.Environment{
		UserID:    details.UserID,
		ProjectID: details.ProjectID,
		Admin:     admin,
		AdminRole: s.Admin(),
		Policy:    s.checker,
		Services:  s.principal.Services,
		Cloud:     s.cloud,
	}

	return env, nil
}

// view returns an existing view or creates a new one.
func (s *Session) view(key viewKey, create func(env *resources.Environment) *resources.Page) (*View, error) {
	env, err := s.Environment(key.admin)
	if err != nil {
		return nil, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	s.lastUsed = time.Now()

	if key.parent != "" {
		if view, ok := s.details.Get(key); ok {
			return view, nil
		}
	} else if view, ok := s.views[key]; ok {
		return view, nil
	}

	page := create(env)
	config := page.Adapter.Config()

	if !s.checker.CheckPolicy(config.Policy, true) {
		return nil, errors.NotPermitted("not permitted to view " + config.Name)
	}

	controller := list.New(page.Adapter, &list.Options{
		Scope:   env.Scope(),
		Related: page.Related,
	})

	view := &View{
		Name:       config.Name,
		Admin:      key.admin,
		Controller: controller,
		Pipeline:   action.New(config, s.checker, controller, page.Actions...),
	}

	if key.parent != "" {
		s.details.Add(key, view)
	} else {
		s.views[key] = view
	}

	return view, nil
}

// Page returns the named page, creating it on first use.
func (s *Session) Page(name string, admin bool) (*View, error) {
	definition, err := resources.Lookup(name)
	if err != nil {
		return nil, err
	}

	return s.view(viewKey{name: definition.Name, admin: admin}, definition.New)
}

// ServerFloatingIPs returns the floating IP list of a server's detail page.
func (s *Session) ServerFloatingIPs(serverID string, admin bool) (*View, error) {
	if !s.checker.CheckPolicy([]string{"os_compute_api:servers:show"}, true) {
		return nil, errors.NotPermitted("not permitted to view servers")
	}

	create := func(env *resources.Environment) *resources.Page {
		return resources.NewServerFloatingIPs(env, serverID)
	}

	return s.view(viewKey{name: "server-floatingips", admin: admin, parent: serverID}, create)
}

// SnapshotDetail returns a snapshot and its source volume.
func (s *Session) SnapshotDetail(ctx context.Context, id string) (resource.Row, error) {
	if !s.checker.CheckPolicy([]string{"volume:get_all_snapshots"}, true) {
		return nil, errors.NotPermitted("not permitted to view snapshots")
	}

	env, err := s.Environment(false)
	if err != nil {
		return nil, err
	}

	s.touch()

	return resources.SnapshotDetail(ctx, env, id)
}

// Views returns all live views.
func (s *Session) Views() []*View {
	s.lock.Lock()
	defer s.lock.Unlock()

	views := make([]*View, 0, len(s.views)+s.details.Len())

	for _, view := range s.views {
		views = append(views, view)
	}

	views = append(views, s.details.Values()...)

	slices.SortFunc(views, func(a, b *View) int {
		return cmp.Compare(a.Name, b.Name)
	})

	return views
}

// Close tears down every view, anything in flight is discarded.
func (s *Session) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return
	}

	s.closed = true

	for _, view := range s.views {
		view.Controller.Close()
	}

	s.views = map[viewKey]*View{}

	s.details.Purge()
}

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.closed
}
