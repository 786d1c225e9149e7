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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"

	"github.com/gophercloud/gophercloud/v2"
)

var (
	// ErrNotPermitted is raised when a policy rule or row predicate
	// rejects an action before anything is sent to the backend.
	ErrNotPermitted = errors.New("not permitted")

	// ErrNotConfirmed is raised when a dangerous action is submitted
	// without confirmation.
	ErrNotConfirmed = errors.New("confirmation required")

	// ErrStaleResponse describes a fetch result that completed after a
	// newer one was issued, it is logged and never surfaced to a user.
	ErrStaleResponse = errors.New("stale response discarded")

	// ErrNotFound is raised when a page, action or row doesn't exist.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalid is raised when action input fails validation.
	ErrInvalid = errors.New("invalid input")
)

// Kind is the normalized category of a failure.
type Kind string

const (
	KindNotPermitted           Kind = "NotPermitted"
	KindBackendRejected        Kind = "BackendRejected"
	KindNetworkError           Kind = "NetworkError"
	KindNotConfirmed           Kind = "NotConfirmed"
	KindNotFound               Kind = "NotFound"
	KindStaleResponseDiscarded Kind = "StaleResponseDiscarded"
	KindInvalid                Kind = "Invalid"
	KindInternal               Kind = "Internal"
)

// Error is a classified failure.
type Error struct {
	// Kind is the failure category.
	Kind Kind

	// Step names the sub-request of a multi-step action that failed,
	// e.g. create_subnet after the network was created.
	Step string

	// Type is the backend's error type, where it reports one.
	Type string

	// Message is a human readable description.
	Message string

	// StatusCode is the backend HTTP status, or zero.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Ensure the error interface is implemented.
var _ error = &Error{}

func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(string(e.Kind))

	if e.Step != "" {
		b.WriteString(" (" + e.Step + ")")
	}

	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithStep tags a failure with the action step that produced it.
func WithStep(step string, err error) error {
	if err == nil {
		return nil
	}

	classified := Classify(err)

	// Don't mutate a shared error.
	tagged := *classified
	tagged.Step = step

	return &tagged
}

// NotPermitted returns a permission failure with a reason.
func NotPermitted(reason string) error {
	return &Error{
		Kind:    KindNotPermitted,
		Message: reason,
		Err:     ErrNotPermitted,
	}
}

// Invalid returns a validation failure.
func Invalid(format string, args ...any) error {
	return &Error{
		Kind:    KindInvalid,
		Message: fmt.Sprintf(format, args...),
		Err:     ErrInvalid,
	}
}

// unexpectedResponseCode digs out the gophercloud response error from a chain,
// it's returned as a value, but be lenient about pointers.
func unexpectedResponseCode(err error) (*gophercloud.ErrUnexpectedResponseCode, bool) {
	var value gophercloud.ErrUnexpectedResponseCode

	if errors.As(err, &value) {
		return &value, true
	}

	var pointer *gophercloud.ErrUnexpectedResponseCode

	if errors.As(err, &pointer) && pointer != nil {
		return pointer, true
	}

	return nil, false
}

// Classify normalizes any error into the failure taxonomy.
//
//nolint:cyclop
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error

	if errors.As(err, &classified) {
		return classified
	}

	switch {
	case errors.Is(err, ErrNotPermitted):
		return &Error{Kind: KindNotPermitted, Message: err.Error(), Err: err}
	case errors.Is(err, ErrNotConfirmed):
		return &Error{Kind: KindNotConfirmed, Message: err.Error(), Err: err}
	case errors.Is(err, ErrStaleResponse):
		return &Error{Kind: KindStaleResponseDiscarded, Message: err.Error(), Err: err}
	case errors.Is(err, ErrNotFound):
		return &Error{Kind: KindNotFound, Message: err.Error(), Err: err}
	case errors.Is(err, ErrInvalid):
		return &Error{Kind: KindInvalid, Message: err.Error(), Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &Error{Kind: KindNetworkError, Message: err.Error(), Err: err}
	}

	if response, ok := unexpectedResponseCode(err); ok {
		return fromResponse(response, err)
	}

	var netErr net.Error

	if errors.As(err, &netErr) {
		return &Error{Kind: KindNetworkError, Message: err.Error(), Err: err}
	}

	return &Error{Kind: KindInternal, Message: err.Error(), Err: err}
}

func fromResponse(response *gophercloud.ErrUnexpectedResponseCode, err error) *Error {
	errorType, message := parseBody(response.Body)

	if message == "" {
		message = http.StatusText(response.Actual)
	}

	// Whatever the status, the backend made the decision, permission
	// failures decided locally are NotPermitted.
	return &Error{
		Kind:       KindBackendRejected,
		Type:       errorType,
		Message:    message,
		StatusCode: response.Actual,
		Err:        err,
	}
}

// faultBody is the inner object of most OpenStack error responses.
type faultBody struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	FaultString string `json:"faultstring"`
}

func (f *faultBody) text() string {
	if f.Message != "" {
		return f.Message
	}

	return f.FaultString
}

// parseBody understands the various ways services report errors:
// {"NeutronError": {"type", "message"}}, {"badRequest": {"message"}},
// {"error": {"message", "title"}} and ironic's {"error_message": "<json>"}.
func parseBody(body []byte) (string, string) {
	if len(body) == 0 {
		return "", ""
	}

	var envelope map[string]json.RawMessage

	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", strings.TrimSpace(string(body))
	}

	if raw, ok := envelope["error_message"]; ok {
		var nested string

		if err := json.Unmarshal(raw, &nested); err == nil {
			var fault faultBody

			if err := json.Unmarshal([]byte(nested), &fault); err == nil {
				return "", fault.text()
			}

			return "", nested
		}
	}

	for key, raw := range envelope {
		var fault faultBody

		if err := json.Unmarshal(raw, &fault); err != nil || fault.text() == "" {
			continue
		}

		errorType := fault.Type
		if errorType == "" {
			errorType = fault.Title
		}

		if errorType == "" {
			errorType = key
		}

		return errorType, fault.text()
	}

	return "", strings.TrimSpace(string(body))
}

// Info is the rendering friendly form of an error as seen by a list or
// action consumer.
type Info struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Step    string `json:"step,omitempty"`
	Type    string `json:"type,omitempty"`
	Status  int    `json:"status,omitempty"`
	Raw     string `json:"raw,omitempty"`
}

// NewInfo normalizes an error for display, returning nil for nil.
func NewInfo(err error) *Info {
	classified := Classify(err)
	if classified == nil {
		return nil
	}

	info := &Info{
		Kind:    classified.Kind,
		Message: classified.Message,
		Step:    classified.Step,
		Type:    classified.Type,
		Status:  classified.StatusCode,
	}

	if classified.Err != nil {
		info.Raw = classified.Err.Error()
	}

	return info
}

// IsKind tests whether an error classifies as the given kind.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}

	return Classify(err).Kind == kind
}

// IsStatus tests whether the backend rejected a request with any of the
// given HTTP status codes.
func IsStatus(err error, codes ...int) bool {
	if err == nil {
		return false
	}

	classified := Classify(err)

	return classified.Kind == KindBackendRejected && slices.Contains(codes, classified.StatusCode)
}
