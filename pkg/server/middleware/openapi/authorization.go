/*
Copyright 2022-2024 EscherCloud.
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
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/unikorn-cloud/console/pkg/server/errors"
)

// authorizationContext is passed through the middleware to propagate
// information back to the top level handler.
type authorizationContext struct {
	// err allows us to return a verbose error, unwrapped by whatever
	// the openapi validaiton is doing.
	err error

	// token is the Keystone token that authorized the request.
	token string
}

// Authorizer provides OpenAPI based authorization middleware.  Tokens are
// only checked for presence here, Keystone validates them when a session
// is created and sessions check they are used with the same token.
type Authorizer struct{}

// NewAuthorizer returns a new authorizer.
func NewAuthorizer() *Authorizer {
	return &Authorizer{}
}

// authorizeAPIKey checks APIs that require a token in a header.
func (a *Authorizer) authorizeAPIKey(authContext *authorizationContext, r *http.Request, scheme *openapi3.SecurityScheme) error {
	if scheme.In != openapi3.ParameterInHeader {
		return errors.OAuth2InvalidRequest("api key location unsupported").WithValues("in", scheme.In)
	}

	token := r.Header.Get(scheme.Name)
	if token == "" {
		return errors.OAuth2AccessDenied(scheme.Name + " header missing")
	}

	authContext.token = token

	return nil
}

// authorizeScheme requires the individual scheme to match.
func (a *Authorizer) authorizeScheme(ctx *authorizationContext, r *http.Request, scheme *openapi3.SecurityScheme) error {
	if scheme.Type == "apiKey" {
		return a.authorizeAPIKey(ctx, r, scheme)
	}

	return errors.OAuth2InvalidRequest("authorization scheme unsupported").WithValues("scheme", scheme.Type)
}
