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

package openstack

import (
	"context"
	"net/url"
	"strings"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/pagination"

	"github.com/unikorn-cloud/console/pkg/resource"
)

// rawPage is a page of untyped resources, where the list is keyed by
// resource in the body e.g. {"networks": [...]}.  Services disagree on how
// the next page is advertised, so all the common forms are handled.
type rawPage struct {
	pagination.PageResult

	resource string
}

// rows returns the resources in the page.
func (p rawPage) rows() ([]resource.Row, error) {
	var rows []resource.Row

	if err := p.ExtractIntoSlicePtr(&rows, p.resource); err != nil {
		return nil, err
	}

	return rows, nil
}

// IsEmpty implements pagination.Page.
func (p rawPage) IsEmpty() (bool, error) {
	rows, err := p.rows()
	if err != nil {
		return false, err
	}

	return len(rows) == 0, nil
}

// NextPageURL implements pagination.Page.
func (p rawPage) NextPageURL() (string, error) {
	body, ok := p.Body.(map[string]any)
	if !ok {
		return "", nil
	}

	next := nextFromBody(body, p.resource)
	if next == "" {
		return "", nil
	}

	resolved, err := resolveNext(&p.URL, next)
	if err != nil {
		return "", err
	}

	// Protect against services that link back to themselves.
	if resolved == p.URL.String() {
		return "", nil
	}

	return resolved, nil
}

// GetBody implements pagination.Page.
func (p rawPage) GetBody() any {
	return p.Body
}

// nextFromLinks handles Neutron, Nova and Cinder style link arrays.
func nextFromLinks(value any) string {
	links, ok := value.([]any)
	if !ok {
		return ""
	}

	for _, l := range links {
		m, ok := l.(map[string]any)
		if !ok {
			continue
		}

		if rel, _ := m["rel"].(string); rel == "next" {
			href, _ := m["href"].(string)

			return href
		}
	}

	return ""
}

func nextFromBody(body map[string]any, name string) string {
	if next := nextFromLinks(body[name+"_links"]); next != "" {
		return next
	}

	switch t := body["links"].(type) {
	case []any:
		return nextFromLinks(t)
	case map[string]any:
		// Keystone style.
		next, _ := t["next"].(string)

		return next
	}

	// Glance, Ironic, Trove and Zun style.
	next, _ := body["next"].(string)

	return next
}

// resolveNext makes relative next links absolute.  Glance returns links
// like /v2/images?marker=..., which are relative to the service root, that
// may be mounted under a path prefix.
func resolveNext(current *url.URL, next string) (string, error) {
	u, err := url.Parse(next)
	if err != nil {
		return "", err
	}

	if u.IsAbs() {
		return next, nil
	}

	if strings.HasPrefix(u.Path, "/") {
		if segment, _, ok := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/"); ok {
			if i := strings.Index(current.Path, "/"+segment+"/"); i > 0 {
				u.Path = current.Path[:i] + u.Path
			}
		}
	}

	return current.ResolveReference(u).String(), nil
}

// listRaw reads every page of a collection.  Filtering and sorting are
// expressed by the query, so the result is complete and ordered.  A limit
// in the query asks for that one page only.
func listRaw(ctx context.Context, client *gophercloud.ServiceClient, name string, query url.Values, path ...string) ([]resource.Row, error) {
	initial := client.ServiceURL(path...)

	single := query.Has("limit")

	if len(query) != 0 {
		initial += "?" + query.Encode()
	}

	pager := pagination.NewPager(client, initial, func(r pagination.PageResult) pagination.Page {
		return rawPage{PageResult: r, resource: name}
	})

	var result []resource.Row

	err := pager.EachPage(ctx, func(_ context.Context, page pagination.Page) (bool, error) {
		rows, err := page.(rawPage).rows()
		if err != nil {
			return false, err
		}

		result = append(result, rows...)

		return !single, nil
	})
	if err != nil {
		return nil, err
	}

	if result == nil {
		result = []resource.Row{}
	}

	return result, nil
}

// getRaw reads a single resource, keyed by name in the body.
func getRaw(ctx context.Context, client *gophercloud.ServiceClient, name string, path ...string) (resource.Row, error) {
	var body map[string]resource.Row

	if _, err := client.Get(ctx, client.ServiceURL(path...), &body, nil); err != nil {
		return nil, err
	}

	row, ok := body[name]
	if !ok || row == nil {
		return resource.Row{}, nil
	}

	return row, nil
}

// deleteRaw deletes a resource, for services gophercloud has no typed
// binding for.
func deleteRaw(ctx context.Context, client *gophercloud.ServiceClient, path ...string) error {
	_, err := client.Delete(ctx, client.ServiceURL(path...), &gophercloud.RequestOpts{
		OkCodes: []int{202, 204},
	})

	return err
}
