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

package openapi

import (
	"errors"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	servererrors "github.com/unikorn-cloud/console/pkg/server/errors"
)

// SchemaGetter returns the API schema.
type SchemaGetter func() (*openapi3.T, error)

// Schema abstracts schema access and validation.
type Schema struct {
	// spec is the full specification.
	spec *openapi3.T

	// router is a router able to process requests and return the
	// route from the spec.
	router routers.Router
}

// NewSchema extracts the schema and builds a router for it.
func NewSchema(get SchemaGetter) (*Schema, error) {
	spec, err := get()
	if err != nil {
		return nil, err
	}

	router, err := gorillamux.NewRouter(spec)
	if err != nil {
		return nil, err
	}

	schema := &Schema{
		spec:   spec,
		router: router,
	}

	return schema, nil
}

// Spec returns the underlying specification.
func (s *Schema) Spec() *openapi3.T {
	return s.spec
}

// FindRoute looks up the route from the specification.
func (s *Schema) FindRoute(r *http.Request) (*routers.Route, map[string]string, error) {
	route, params, err := s.router.FindRoute(r)
	if err != nil {
		switch {
		case errors.Is(err, routers.ErrPathNotFound):
			return nil, nil, servererrors.HTTPNotFound("route not found").WithError(err)
		case errors.Is(err, routers.ErrMethodNotAllowed):
			return nil, nil, servererrors.HTTPMethodNotAllowed().WithError(err)
		}

		return nil, nil, servererrors.OAuth2ServerError("route lookup failure").WithError(err)
	}

	return route, params, nil
}
