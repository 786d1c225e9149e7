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

package resources

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/unikorn-cloud/console/pkg/action"
	"github.com/unikorn-cloud/console/pkg/errors"
	"github.com/unikorn-cloud/console/pkg/providers/openstack"
	"github.com/unikorn-cloud/console/pkg/resource"
)

// credentialHidden are fields left out of a credential download.
//
//nolint:gochecknoglobals
var credentialHidden = []string{"links", "roles", "system", "unrestricted", "user_id", "name"}

func roleNames(row resource.Row) any {
	roles, _ := row["roles"].([]any)

	names := make([]string, 0, len(roles))

	for _, role := range roles {
		if r, ok := role.(map[string]any); ok {
			if name, ok := r["name"].(string); ok {
				names = append(names, name)
			}
		}
	}

	return strings.Join(names, ", ")
}

// NewCredentials returns the application credentials page.
func NewCredentials(env *Environment) *Page {
	config := &resource.Config{
		Name:   "credentials",
		Title:  "Application Credentials",
		RowKey: "id",
		Columns: []resource.ColumnSpec{
			{Key: "name", Title: "Name", Sortable: true},
			{Key: "id", Title: "ID", Hidden: true},
			{Key: "description", Title: "Description"},
			{Key: "project_id", Title: "Project", Hidden: true},
			{Key: "roles", Title: "Roles", Value: roleNames},
			{Key: "expires_at", Title: "Expires At", Sortable: true},
		},
		Filters: []resource.FilterSpec{
			{Name: "name", Label: "Name", Kind: resource.FilterText},
		},
		DefaultSort: resource.Sort{Key: "name", Direction: resource.Ascending},
		Policy:      []string{"identity:list_application_credentials"},
	}

	fetch := func(ctx context.Context, _ url.Values) ([]resource.Row, error) {
		identity, err := env.Services.Identity(ctx)
		if err != nil {
			return nil, err
		}

		return identity.ListApplicationCredentials(ctx, env.UserID)
	}

	deleteCredential := func(ctx context.Context, id string) error {
		identity, err := env.Services.Identity(ctx)
		if err != nil {
			return err
		}

		return identity.DeleteApplicationCredential(ctx, env.UserID, id)
	}

	return &Page{
		Adapter: &adapter{config: config, fetch: fetch},
		Actions: []action.Descriptor{
			{
				ID:         "create",
				Title:      "Create Application Credential",
				Policy:     []string{"identity:create_application_credential"},
				SubmitForm: (&credentialCreator{env: env}).submit,
			},
			{
				ID:     "delete",
				Title:  "Delete",
				Policy: []string{"identity:delete_application_credential"},
				Danger: true,
				Batch:  true,
				Submit: byKey(config.RowKey, deleteCredential),
			},
		},
	}
}

type credentialForm struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Roles       []string `json:"roles"`
	// ExpiresAt is a date, the credential expires at the end of that day.
	ExpiresAt string `json:"expires_at"`
}

// endOfDay returns the last second of a date in UTC.
func endOfDay(date string) (*time.Time, error) {
	if date == "" {
		return nil, nil //nolint:nilnil
	}

	day, err := time.Parse(time.DateOnly, date)
	if err != nil {
		// Accept a full timestamp, and take its date.
		t, terr := time.Parse(time.RFC3339, date)
		if terr != nil {
			return nil, errors.Invalid("expiry %q is not a date", date)
		}

		day = t.UTC().Truncate(24 * time.Hour)
	}

	end := day.Add(24*time.Hour - time.Second)

	return &end, nil
}

type credentialCreator struct {
	env *Environment
}

// CredentialDownload is returned on creation, the secret is never
// available again.
type CredentialDownload struct {
	Credential resource.Row `json:"credential"`
	CloudsYAML string       `json:"cloudsYAML"`
	CloudConf  string       `json:"cloudConf"`
}

func (c *credentialCreator) submit(ctx context.Context, values map[string]any) (any, error) {
	form := &credentialForm{}

	if err := decodeValues(values, form); err != nil {
		return nil, err
	}

	if form.Name == "" {
		return nil, errors.Invalid("name is required")
	}

	expiresAt, err := endOfDay(form.ExpiresAt)
	if err != nil {
		return nil, err
	}

	if expiresAt != nil && expiresAt.Before(time.Now()) {
		return nil, errors.Invalid("expiry %s is in the past", form.ExpiresAt)
	}

	identity, err := c.env.Services.Identity(ctx)
	if err != nil {
		return nil, err
	}

	options := &openstack.ApplicationCredentialOptions{
		Name:        form.Name,
		Description: form.Description,
		RoleIDs:     form.Roles,
		ExpiresAt:   expiresAt,
	}

	created, err := identity.CreateApplicationCredential(ctx, c.env.UserID, options)
	if err != nil {
		return nil, err
	}

	credential := &openstack.ApplicationCredential{
		Cloud:     form.Name,
		AuthURL:   c.env.Cloud.AuthURL,
		Region:    c.env.Cloud.Region,
		Interface: c.env.Cloud.Interface,
		ID:        created.String("id"),
		Secret:    created.String("secret"),
	}

	cloudsYAML, err := openstack.GenerateCloudsYAML(credential)
	if err != nil {
		return nil, err
	}

	cloudConf, err := openstack.GenerateCloudConfig(cloudsYAML, credential.Cloud)
	if err != nil {
		return nil, err
	}

	download := created.Clone()

	for _, key := range credentialHidden {
		delete(download, key)
	}

	result := &CredentialDownload{
		Credential: download,
		CloudsYAML: string(cloudsYAML),
		CloudConf:  cloudConf,
	}

	return result, nil
}
