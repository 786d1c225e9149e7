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

package policy

import (
	_ "embed"
	"fmt"
	"os"

	policy "github.com/databus23/goslo.policy"
	"github.com/go-logr/logr"
	"github.com/spf13/pflag"

	"k8s.io/apimachinery/pkg/util/sets"

	"sigs.k8s.io/yaml"
)

//go:embed default.yaml
var defaultRules []byte

// Options allow policy files to be provided on the CLI.
type Options struct {
	// Files are oslo.policy YAML or JSON files, later files override
	// earlier ones.
	Files []string
}

// AddFlags registers option flags with pflag.
func (o *Options) AddFlags(f *pflag.FlagSet) {
	f.StringSliceVar(&o.Files, "policy-file", nil, "oslo.policy rule file, may be specified more than once.  Built in defaults are used if not set.")
}

// Parse reads rules from YAML or JSON.
func Parse(data []byte) (map[string]string, error) {
	rules := map[string]string{}

	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, err
	}

	return rules, nil
}

// Engine holds compiled rules shared by all sessions.
type Engine struct {
	enforcer *policy.Enforcer
	names    sets.Set[string]
}

// NewEngine compiles a rule set.
func NewEngine(rules map[string]string) (*Engine, error) {
	enforcer, err := policy.NewEnforcer(rules)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		enforcer: enforcer,
		names:    sets.KeySet(rules),
	}

	return engine, nil
}

// Load builds an engine from the configured files.
func Load(options *Options) (*Engine, error) {
	rules, err := Parse(defaultRules)
	if err != nil {
		return nil, err
	}

	for _, path := range options.Files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		fileRules, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		for name, rule := range fileRules {
			rules[name] = rule
		}
	}

	return NewEngine(rules)
}

// Subject is who is being checked.
type Subject struct {
	UserID    string
	DomainID  string
	ProjectID string
	Roles     []string
}

// Checker evaluates rules for a single subject.
type Checker struct {
	engine  *Engine
	context policy.Context
}

// Checker returns a checker for the subject.
func (e *Engine) Checker(subject Subject, logger logr.Logger) *Checker {
	return &Checker{
		engine: e,
		context: policy.Context{
			Roles: subject.Roles,
			Auth: map[string]string{
				"user_id":           subject.UserID,
				"domain_id":         subject.DomainID,
				"user_domain_id":    subject.DomainID,
				"project_id":        subject.ProjectID,
				"tenant_id":         subject.ProjectID,
				"project_domain_id": subject.DomainID,
			},
			// The target is the subject's own project, resource ownership is
			// checked by row predicates.
			Request: map[string]string{
				"project_id": subject.ProjectID,
				"tenant_id":  subject.ProjectID,
				"user_id":    subject.UserID,
			},
			Logger: func(format string, args ...any) {
				logger.V(1).Info(fmt.Sprintf(format, args...))
			},
		},
	}
}

// Check evaluates a single rule, undefined rules are denied.
func (c *Checker) Check(rule string) bool {
	if !c.engine.names.Has(rule) {
		return false
	}

	return c.engine.enforcer.Enforce(rule, c.context)
}

// CheckPolicy evaluates rules, if every is set all must pass, otherwise
// any one is sufficient.  An empty rule set is allowed.
func (c *Checker) CheckPolicy(rules []string, every bool) bool {
	if len(rules) == 0 {
		return true
	}

	for _, rule := range rules {
		ok := c.Check(rule)

		if every && !ok {
			return false
		}

		if !every && ok {
			return true
		}
	}

	return every
}
