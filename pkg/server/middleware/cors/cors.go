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

package cors

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/unikorn-cloud/console/pkg/constants"
	"github.com/unikorn-cloud/console/pkg/server/errors"
	"github.com/unikorn-cloud/console/pkg/server/middleware/openapi"

	"k8s.io/apimachinery/pkg/util/sets"
)

const (
	wildcard = "*"

	defaultMaxAge = 86400
)

// Options configure which browser origins may drive the console API.
type Options struct {
	AllowedOrigins []string
	MaxAge         int
}

func (o *Options) AddFlags(f *pflag.FlagSet) {
	f.StringSliceVar(&o.AllowedOrigins, "cors-allow-origin", []string{wildcard}, "Origins allowed to call the console API, * allows any")
	f.IntVar(&o.MaxAge, "cors-max-age", defaultMaxAge, "Seconds a browser may cache a preflight response")
}

// policy is the parsed form of Options.
type policy struct {
	any     bool
	origins sets.Set[string]
	headers string
	maxAge  string
}

func newPolicy(options *Options) *policy {
	origins := sets.New(options.AllowedOrigins...)

	// Session creation carries the Keystone token, everything else is JSON
	// with optional trace propagation.
	headers := []string{
		"Content-Type",
		constants.SessionHeader,
		"traceparent",
		"tracestate",
	}

	return &policy{
		any:     origins.Has(wildcard),
		origins: origins.Delete(wildcard),
		headers: strings.Join(headers, ", "),
		maxAge:  strconv.Itoa(options.MaxAge),
	}
}

// origin sets the allowed origin on the response, reporting whether the
// request's origin was accepted.
func (p *policy) origin(w http.ResponseWriter, r *http.Request) bool {
	if p.any {
		w.Header().Set("Access-Control-Allow-Origin", wildcard)
		return true
	}

	// The answer depends on the request, caches must key on it.
	w.Header().Add("Vary", "Origin")

	origin := r.Header.Get("Origin")
	if origin == "" || !p.origins.Has(origin) {
		return false
	}

	w.Header().Set("Access-Control-Allow-Origin", origin)

	return true
}

// Middleware adds CORS headers and answers preflight requests.  Allowed
// methods come from the API schema for the requested path.
func Middleware(schema *openapi.Schema, options *Options) func(http.Handler) http.Handler {
	p := newPolicy(options)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed := p.origin(w, r)

			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			method := r.Header.Get("Access-Control-Request-Method")
			if method == "" {
				errors.HandleError(w, r, errors.OAuth2InvalidRequest("preflight missing Access-Control-Request-Method header"))
				return
			}

			request := r.Clone(r.Context())
			request.Method = method

			route, _, err := schema.FindRoute(request)
			if err != nil {
				errors.HandleError(w, r, err)
				return
			}

			// A refused origin gets an empty preflight and the browser
			// blocks the real request.
			if !allowed {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			methods := sets.KeySet(route.PathItem.Operations()).Insert(http.MethodOptions)

			w.Header().Set("Access-Control-Allow-Methods", strings.Join(sets.List(methods), ", "))
			w.Header().Set("Access-Control-Allow-Headers", p.headers)
			w.Header().Set("Access-Control-Max-Age", p.maxAge)
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
