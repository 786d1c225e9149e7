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

package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	consoleerrors "github.com/unikorn-cloud/console/pkg/errors"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

var (
	// ErrRequest is raised for all handler errors.
	ErrRequest = errors.New("request error")
)

// ErrorType is an OAuth2 style error code.
type ErrorType string

const (
	InvalidRequest       ErrorType = "invalid_request"
	AccessDenied         ErrorType = "access_denied"
	InvalidScope         ErrorType = "invalid_scope"
	NotFound             ErrorType = "not_found"
	MethodNotAllowed     ErrorType = "method_not_allowed"
	Conflict             ErrorType = "conflict"
	BadGateway           ErrorType = "bad_gateway"
	ServerError          ErrorType = "server_error"
	TemporaryUnavailable ErrorType = "temporarily_unavailable"
)

// Response is the JSON error body.
type Response struct {
	Error            ErrorType           `json:"error"`
	ErrorDescription string              `json:"error_description"`
	Detail           *consoleerrors.Info `json:"detail,omitempty"`
}

// Error wraps ErrRequest with more contextual information that is used to
// propagate and create suitable responses.
type Error struct {
	// status is the HTTP error code.
	status int

	// code is the terse error code to return to the client.
	code ErrorType

	// description is a verbose description to log/return to the user.
	description string

	// detail is the classified console error, if any.
	detail *consoleerrors.Info

	// err is set when the originator was an error.  This is only used
	// for logging so as not to leak server internals to the client.
	err error

	// values are arbitrary key value pairs for logging.
	values []interface{}
}

func newError(status int, code ErrorType, description string) *Error {
	return &Error{
		status:      status,
		code:        code,
		description: description,
	}
}

// WithError augments the error with an error from a library.
func (e *Error) WithError(err error) *Error {
	e.err = err

	return e
}

// WithValues augments the error with a set of K/V pairs.
// Values should not use the "error" key as that's implicitly defined
// by WithError and could collide.
func (e *Error) WithValues(values ...interface{}) *Error {
	e.values = values

	return e
}

// Unwrap implements Go 1.13 errors.
func (e *Error) Unwrap() error {
	return ErrRequest
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.description
}

// StatusCode returns the HTTP status code.
func (e *Error) StatusCode() int {
	return e.status
}

// Write returns the error code and description to the client.
func (e *Error) Write(w http.ResponseWriter, r *http.Request) {
	log := log.FromContext(r.Context())

	details := []interface{}{
		"detail", e.description,
	}

	if e.err != nil {
		details = append(details, "error", e.err)
	}

	if e.values != nil {
		details = append(details, e.values...)
	}

	log.Info("error detail", details...)

	w.Header().Add("Cache-Control", "no-cache")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.status)

	response := &Response{
		Error:            e.code,
		ErrorDescription: e.description,
		Detail:           e.detail,
	}

	body, err := json.Marshal(response)
	if err != nil {
		log.Error(err, "failed to marshal error response")

		return
	}

	if _, err := w.Write(body); err != nil {
		log.Error(err, "failed to write error response")
	}
}

// OAuth2InvalidRequest indicates a client error.
func OAuth2InvalidRequest(description string) *Error {
	return newError(http.StatusBadRequest, InvalidRequest, description)
}

// OAuth2AccessDenied tells the client the authentication failed.
func OAuth2AccessDenied(description string) *Error {
	return newError(http.StatusUnauthorized, AccessDenied, description)
}

// OAuth2InvalidScope tells the client it doesn't have the necessary
// permissions.
func OAuth2InvalidScope(description string) *Error {
	return newError(http.StatusForbidden, InvalidScope, description)
}

// OAuth2ServerError tells the client we are at fault, this should never be seen
// in production.  If so then our testing needs to improve.
func OAuth2ServerError(description string) *Error {
	return newError(http.StatusInternalServerError, ServerError, description)
}

// HTTPNotFound is raised when the requested resource doesn't exist.
func HTTPNotFound(description string) *Error {
	return newError(http.StatusNotFound, NotFound, description)
}

// HTTPMethodNotAllowed is raised when the method is not supported.
func HTTPMethodNotAllowed() *Error {
	return newError(http.StatusMethodNotAllowed, MethodNotAllowed, "the requested method was not allowed")
}

// HTTPConflict is raised when a request conflicts with another resource.
func HTTPConflict(description string) *Error {
	return newError(http.StatusConflict, Conflict, description)
}

// HTTPBadGateway is raised when a backend cannot be reached.
func HTTPBadGateway(description string) *Error {
	return newError(http.StatusBadGateway, BadGateway, description)
}

// FromConsoleError maps a classified console error onto a response.
//
//nolint:cyclop
func FromConsoleError(err error) *Error {
	classified := consoleerrors.Classify(err)
	info := consoleerrors.NewInfo(err)
	info.Raw = ""

	var e *Error

	switch classified.Kind {
	case consoleerrors.KindInvalid, consoleerrors.KindNotConfirmed:
		e = OAuth2InvalidRequest(classified.Message)
	case consoleerrors.KindNotPermitted:
		e = OAuth2InvalidScope(classified.Message)
	case consoleerrors.KindNotFound:
		e = HTTPNotFound(classified.Message)
	case consoleerrors.KindBackendRejected:
		switch {
		case classified.StatusCode == http.StatusUnauthorized:
			e = OAuth2AccessDenied(classified.Message)
		case classified.StatusCode == http.StatusForbidden:
			e = OAuth2InvalidScope(classified.Message)
		case classified.StatusCode == http.StatusNotFound:
			e = HTTPNotFound(classified.Message)
		case classified.StatusCode == http.StatusConflict:
			e = HTTPConflict(classified.Message)
		case classified.StatusCode >= http.StatusInternalServerError:
			e = HTTPBadGateway(classified.Message)
		default:
			e = OAuth2InvalidRequest(classified.Message)
		}
	case consoleerrors.KindNetworkError:
		e = HTTPBadGateway(classified.Message)
	case consoleerrors.KindStaleResponseDiscarded:
		e = newError(http.StatusServiceUnavailable, TemporaryUnavailable, classified.Message)
	default:
		e = OAuth2ServerError("unhandled error")
	}

	// Internal errors may leak server internals.
	if classified.Kind != consoleerrors.KindInternal {
		e.detail = info
	}

	return e.WithError(err)
}

// HandleError is the top level error handler that should be called from all
// path handlers on error.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	var httpError *Error

	if errors.As(err, &httpError) {
		httpError.Write(w, r)

		return
	}

	e := FromConsoleError(err)

	if e.status == http.StatusInternalServerError {
		log.FromContext(r.Context()).Error(err, "unhandled error")
	}

	e.Write(w, r)
}
