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

package authorization

import (
	"context"
	"net/http"

	"github.com/unikorn-cloud/console/pkg/constants"
	"github.com/unikorn-cloud/console/pkg/server/errors"
)

type contextKey int

const (
	tokenKey contextKey = iota
)

// GetToken returns the Keystone token from the request.
func GetToken(r *http.Request) (string, error) {
	token := r.Header.Get(constants.SessionHeader)
	if token == "" {
		return "", errors.OAuth2AccessDenied(constants.SessionHeader + " header missing")
	}

	return token, nil
}

// NewContextWithToken stashes the token for use by handlers.
func NewContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFromContext returns the token that authorized the request.
func TokenFromContext(ctx context.Context) (string, error) {
	if token, ok := ctx.Value(tokenKey).(string); ok && token != "" {
		return token, nil
	}

	return "", errors.OAuth2AccessDenied("request not authorized")
}
