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
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/unikorn-cloud/console/pkg/constants"
	"github.com/unikorn-cloud/console/pkg/errors"
	"github.com/unikorn-cloud/console/pkg/resource"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// State is a step in an invocation's life.
type State string

const (
	Idle       State = "Idle"
	Confirming State = "Confirming"
	Submitting State = "Submitting"
	Succeeded  State = "Succeeded"
	Failed     State = "Failed"
	Cancelled  State = "Cancelled"
)

// Kind is whether an action works on rows or on form input.
type Kind string

const (
	KindRow  Kind = "row"
	KindForm Kind = "form"
)

// SubmitFunc performs a row action against the backend.
type SubmitFunc func(ctx context.Context, row resource.Row) error

// FormFunc performs a form action, the result is returned to the caller
// e.g. a generated credential.
type FormFunc func(ctx context.Context, values map[string]any) (any, error)

// Descriptor declares an action.
type Descriptor struct {
	// ID is unique within a page.
	ID string `json:"id"`

	// Title is a human readable name.
	Title string `json:"title"`

	// Policy rules the user must satisfy.
	Policy []string `json:"policy,omitempty"`

	// PolicyAny means any rule is sufficient, rather than all of them.
	PolicyAny bool `json:"policyAny,omitempty"`

	// Danger actions must be confirmed.
	Danger bool `json:"danger,omitempty"`

	// Batch actions can be applied to many rows, each independently.
	Batch bool `json:"batch,omitempty"`

	// Allowed is the row state predicate, nil allows everything.
	Allowed func(row resource.Row) bool `json:"-"`

	// Submit is called for each row of a row action.
	Submit SubmitFunc `json:"-"`

	// SubmitForm is called once for a form action.
	SubmitForm FormFunc `json:"-"`
}

// Kind returns the action kind.
func (d *Descriptor) Kind() Kind {
	if d.SubmitForm != nil {
		return KindForm
	}

	return KindRow
}

func (d *Descriptor) allowed(row resource.Row) bool {
	return d.Allowed == nil || d.Allowed(row)
}

// PolicyChecker evaluates policy rules for the current user.
type PolicyChecker interface {
	CheckPolicy(rules []string, every bool) bool
}

// Refresher is notified once when an invocation finishes, typically the
// list controller of the page.
type Refresher interface {
	Refresh(ctx context.Context)
}

// RowResult is the outcome for one row.
type RowResult struct {
	Key   string       `json:"key"`
	Error *errors.Info `json:"error,omitempty"`
}

// Outcome is the result of an invocation.
type Outcome struct {
	Action      string       `json:"action"`
	State       State        `json:"state"`
	Transitions []State      `json:"transitions"`
	Results     []RowResult  `json:"results,omitempty"`
	Succeeded   int          `json:"succeeded"`
	Failed      int          `json:"failed"`
	Error       *errors.Info `json:"error,omitempty"`
	Data        any          `json:"data,omitempty"`
}

func (o *Outcome) transition(state State) {
	o.State = state
	o.Transitions = append(o.Transitions, state)
}

// ConfirmFunc asks the user to confirm a dangerous action.
type ConfirmFunc func(ctx context.Context, action *Descriptor, rows []resource.Row) bool

type invokeOptions struct {
	confirmed bool
	confirm   ConfirmFunc
	values    map[string]any
}

// InvokeOption modifies an invocation.
type InvokeOption func(*invokeOptions)

// Confirmed records that the user has already confirmed.
func Confirmed(confirmed bool) InvokeOption {
	return func(o *invokeOptions) {
		o.confirmed = confirmed
	}
}

// WithConfirm asks for confirmation interactively.
func WithConfirm(confirm ConfirmFunc) InvokeOption {
	return func(o *invokeOptions) {
		o.confirm = confirm
	}
}

// WithValues passes form input.
func WithValues(values map[string]any) InvokeOption {
	return func(o *invokeOptions) {
		o.values = values
	}
}

// Pipeline runs a page's actions.
type Pipeline struct {
	config    *resource.Config
	policy    PolicyChecker
	refresher Refresher
	actions   []Descriptor
}

// New returns a pipeline, the refresher may be nil.
func New(config *resource.Config, policy PolicyChecker, refresher Refresher, actions ...Descriptor) *Pipeline {
	return &Pipeline{
		config:    config,
		policy:    policy,
		refresher: refresher,
		actions:   actions,
	}
}

// Actions lists the declared actions.
func (p *Pipeline) Actions() []Descriptor {
	return p.actions
}

// Lookup finds an action by ID.
func (p *Pipeline) Lookup(id string) (*Descriptor, bool) {
	for i := range p.actions {
		if p.actions[i].ID == id {
			return &p.actions[i], true
		}
	}

	return nil, false
}

func (p *Pipeline) permitted(action *Descriptor) bool {
	if len(action.Policy) == 0 {
		return true
	}

	if p.policy == nil {
		return false
	}

	return p.policy.CheckPolicy(action.Policy, !action.PolicyAny)
}

// Available returns the IDs of actions that may be invoked on the selection.
// Batch actions need at least one eligible row, others need exactly one row
// and it must be eligible.  Form actions only need policy.
func (p *Pipeline) Available(rows []resource.Row) []string {
	var ids []string

	for i := range p.actions {
		action := &p.actions[i]

		if !p.permitted(action) {
			continue
		}

		if action.Kind() == KindForm {
			ids = append(ids, action.ID)
			continue
		}

		if action.Batch {
			for _, row := range rows {
				if action.allowed(row) {
					ids = append(ids, action.ID)
					break
				}
			}

			continue
		}

		if len(rows) == 1 && action.allowed(rows[0]) {
			ids = append(ids, action.ID)
		}
	}

	return ids
}

// Invoke runs an action to completion.  Only an unknown action is returned as
// an error, everything else is described by the outcome.  Whatever the
// result, the refresher is called exactly once.
func (p *Pipeline) Invoke(ctx context.Context, id string, rows []resource.Row, opts ...InvokeOption) (*Outcome, error) {
	action, ok := p.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: action %s", errors.ErrNotFound, id)
	}

	o := &invokeOptions{}

	for _, opt := range opts {
		opt(o)
	}

	tracer := otel.GetTracerProvider().Tracer(constants.Application)

	ctx, span := tracer.Start(ctx, "action "+p.config.Name+"/"+id, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	span.SetAttributes(attribute.Int("action.rows", len(rows)))

	outcome := &Outcome{
		Action: id,
	}

	outcome.transition(Idle)

	if action.Kind() == KindForm {
		p.invokeForm(ctx, action, o, outcome)
	} else {
		p.invokeRows(ctx, action, rows, o, outcome)
	}

	invocationsMetric.WithLabelValues(p.config.Name, id, string(outcome.State)).Inc()

	log.FromContext(ctx).Info("action complete", "resource", p.config.Name, "action", id, "state", outcome.State, "succeeded", outcome.Succeeded, "failed", outcome.Failed)

	span.SetAttributes(attribute.String("action.state", string(outcome.State)))

	if p.refresher != nil {
		p.refresher.Refresh(ctx)
	}

	return outcome, nil
}

func (p *Pipeline) fail(outcome *Outcome, err error) {
	outcome.Error = errors.NewInfo(err)
	outcome.transition(Failed)
}

// confirm handles the confirmation step of dangerous actions, returning
// false if the invocation was cancelled.
func (p *Pipeline) confirm(ctx context.Context, action *Descriptor, rows []resource.Row, o *invokeOptions, outcome *Outcome) bool {
	if !action.Danger {
		return true
	}

	outcome.transition(Confirming)

	if o.confirmed || (o.confirm != nil && o.confirm(ctx, action, rows)) {
		return true
	}

	outcome.Error = errors.NewInfo(errors.ErrNotConfirmed)
	outcome.transition(Cancelled)

	return false
}

func (p *Pipeline) invokeForm(ctx context.Context, action *Descriptor, o *invokeOptions, outcome *Outcome) {
	if !p.permitted(action) {
		p.fail(outcome, errors.NotPermitted("policy denied"))
		return
	}

	if !p.confirm(ctx, action, nil, o, outcome) {
		return
	}

	outcome.transition(Submitting)

	timer := prometheus.NewTimer(submitDurationMetric.WithLabelValues(p.config.Name, action.ID))
	data, err := action.SubmitForm(ctx, o.values)
	timer.ObserveDuration()

	if err != nil {
		rowFailuresMetric.WithLabelValues(p.config.Name, action.ID, string(errors.Classify(err).Kind)).Inc()

		outcome.Failed = 1
		p.fail(outcome, err)

		return
	}

	outcome.Succeeded = 1
	outcome.Data = data
	outcome.transition(Succeeded)
}

//nolint:cyclop
func (p *Pipeline) invokeRows(ctx context.Context, action *Descriptor, rows []resource.Row, o *invokeOptions, outcome *Outcome) {
	if len(rows) == 0 {
		p.fail(outcome, errors.NotPermitted("no rows selected"))
		return
	}

	if !action.Batch && len(rows) > 1 {
		p.fail(outcome, errors.NotPermitted("action cannot be applied to multiple rows"))
		return
	}

	if !p.permitted(action) {
		for _, row := range rows {
			outcome.Results = append(outcome.Results, RowResult{
				Key:   row.Key(p.config.RowKey),
				Error: errors.NewInfo(errors.NotPermitted("policy denied")),
			})
		}

		outcome.Failed = len(rows)
		p.fail(outcome, errors.NotPermitted("policy denied"))

		return
	}

	eligible := make([]resource.Row, 0, len(rows))

	for _, row := range rows {
		if action.allowed(row) {
			eligible = append(eligible, row)
			continue
		}

		outcome.Results = append(outcome.Results, RowResult{
			Key:   row.Key(p.config.RowKey),
			Error: errors.NewInfo(errors.NotPermitted("not allowed in the current state")),
		})
		outcome.Failed++
	}

	// Non-batch actions are all or nothing, and nothing is sent if the
	// selection isn't eligible.
	if len(eligible) == 0 || (!action.Batch && outcome.Failed > 0) {
		p.fail(outcome, errors.NotPermitted("not allowed in the current state"))
		return
	}

	if !p.confirm(ctx, action, eligible, o, outcome) {
		return
	}

	outcome.transition(Submitting)

	for _, row := range eligible {
		timer := prometheus.NewTimer(submitDurationMetric.WithLabelValues(p.config.Name, action.ID))
		err := action.Submit(ctx, row)
		timer.ObserveDuration()

		result := RowResult{
			Key: row.Key(p.config.RowKey),
		}

		if err != nil {
			result.Error = errors.NewInfo(err)
			outcome.Failed++

			rowFailuresMetric.WithLabelValues(p.config.Name, action.ID, string(result.Error.Kind)).Inc()

			log.FromContext(ctx).Info("action failed on row", "resource", p.config.Name, "action", action.ID, "key", result.Key, "error", err)
		} else {
			outcome.Succeeded++
		}

		outcome.Results = append(outcome.Results, result)
	}

	if outcome.Failed > 0 {
		outcome.transition(Failed)

		if outcome.Succeeded == 0 && len(outcome.Results) == 1 {
			outcome.Error = outcome.Results[0].Error
		}

		return
	}

	outcome.transition(Succeeded)
}
