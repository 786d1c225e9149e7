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
	"fmt"
	"slices"
	"strings"
)

// FilterRows returns rows matching every non-empty filter.  Select filters
// must match exactly, text filters are case insensitive substring matches.
// The input is not modified.
func FilterRows(config *Config, rows []Row, filters map[string]string) []Row {
	if len(filters) == 0 {
		return slices.Clone(rows)
	}

	out := make([]Row, 0, len(rows))

	for _, row := range rows {
		if matches(config, row, filters) {
			out = append(out, row)
		}
	}

	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func matches(config *Config, row Row, filters map[string]string) bool {
	for name, want := range filters {
		if want == "" {
			continue
		}

		var value any

		if column, ok := config.Column(name); ok {
			value = column.Extract(row)
		} else {
			value = row.Lookup(name)
		}

		got := stringify(value)

		if spec, ok := config.Filter(name); ok && spec.Kind == FilterSelect {
			if got != want {
				return false
			}

			continue
		}

		if !strings.Contains(strings.ToLower(got), strings.ToLower(want)) {
			return false
		}
	}

	return true
}

// SortRows returns a stably sorted copy of rows.  Null values always sort
// last whatever the direction.
func SortRows(config *Config, rows []Row, sort Sort) []Row {
	out := slices.Clone(rows)

	if sort.Key == "" {
		return out
	}

	compare := DefaultCompare

	var extract func(Row) any

	if column, ok := config.Column(sort.Key); ok {
		if column.Compare != nil {
			compare = column.Compare
		}

		extract = column.Extract
	} else {
		extract = func(r Row) any { return r.Lookup(sort.Key) }
	}

	slices.SortStableFunc(out, func(a, b Row) int {
		x, y := extract(a), extract(b)

		xNull, yNull := IsNull(x), IsNull(y)

		switch {
		case xNull && yNull:
			return 0
		case xNull:
			return 1
		case yNull:
			return -1
		}

		result := compare(x, y)

		if sort.Direction == Descending {
			result = -result
		}

		return result
	})

	return out
}

// Window returns a page of rows, a size of zero returns everything.
func Window(rows []Row, pageIndex, pageSize int) []Row {
	if pageSize <= 0 {
		return rows
	}

	if pageIndex < 1 {
		pageIndex = 1
	}

	start := (pageIndex - 1) * pageSize
	if start >= len(rows) {
		return []Row{}
	}

	end := min(start+pageSize, len(rows))

	return rows[start:end]
}
