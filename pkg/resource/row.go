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

package resource

import (
	"cmp"
	"encoding/json"
	"fmt"
	"strings"
)

// Lookup gets a value from a row, dotted paths descend into objects.
func (r Row) Lookup(path string) any {
	if value, ok := r[path]; ok {
		return value
	}

	var current any = map[string]any(r)

	for _, part := range strings.Split(path, ".") {
		object, ok := current.(map[string]any)
		if !ok {
			return nil
		}

		current = object[part]
	}

	return current
}

// String returns a field as a string, or empty if missing or not a string.
func (r Row) String(path string) string {
	s, _ := r.Lookup(path).(string)

	return s
}

// Bool returns a field as a boolean.
func (r Row) Bool(path string) bool {
	b, _ := r.Lookup(path).(bool)

	return b
}

// Key returns the row's identity given the key field.
func (r Row) Key(field string) string {
	switch t := r.Lookup(field).(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// Clone returns a shallow copy, so derived fields can be added without
// touching the original snapshot.
func (r Row) Clone() Row {
	out := make(Row, len(r)+1)

	for k, v := range r {
		out[k] = v
	}

	return out
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()

		return f, err == nil
	}

	return 0, false
}

// IsNull reports whether a value is absent for sorting purposes.
func IsNull(v any) bool {
	if v == nil {
		return true
	}

	if s, ok := v.(string); ok && s == "" {
		return true
	}

	return false
}

// DefaultCompare orders numbers numerically, booleans false before true,
// and everything else lexically on its string form.  Nulls are handled by
// the caller.
func DefaultCompare(a, b any) int {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			return cmp.Compare(x, y)
		}
	}

	if x, ok := a.(bool); ok {
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
