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
	"time"
)

const (
	KeystoneTokenScopes = "keystoneToken.Scopes"
)

// Defines values for SortDirParameter.
const (
	Asc  SortDirParameter = "asc"
	Desc SortDirParameter = "desc"
)

// ActionInvocation defines model for actionInvocation.
type ActionInvocation struct {
	// Confirm Confirms a dangerous action.
	Confirm *bool `json:"confirm,omitempty"`

	// Ids Row keys to act on.
	Ids *[]string `json:"ids,omitempty"`

	// Values Form input.
	Values *map[string]interface{} `json:"values,omitempty"`
}

// Session A session and who it's for.
type Session struct {
	// Admin Whether admin views are available.
	Admin       bool       `json:"admin"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Id          string     `json:"id"`
	ProjectID   string     `json:"projectID"`
	ProjectName *string    `json:"projectName,omitempty"`
	Roles       []string   `json:"roles"`
	UserID      string     `json:"userID"`
	UserName    *string    `json:"userName,omitempty"`
}

// ActionParameter defines model for actionParameter.
type ActionParameter = string

// AdminParameter defines model for adminParameter.
type AdminParameter = bool

// FilterParameter defines model for filterParameter.
type FilterParameter = []string

// PageIndexParameter defines model for pageIndexParameter.
type PageIndexParameter = int

// PageParameter defines model for pageParameter.
type PageParameter = string

// PageSizeParameter defines model for pageSizeParameter.
type PageSizeParameter = int

// RefreshParameter defines model for refreshParameter.
type RefreshParameter = bool

// ServerIDParameter defines model for serverIDParameter.
type ServerIDParameter = string

// SessionIDParameter defines model for sessionIDParameter.
type SessionIDParameter = string

// SnapshotIDParameter defines model for snapshotIDParameter.
type SnapshotIDParameter = string

// SortDirParameter defines model for sortDirParameter.
type SortDirParameter string

// SortKeyParameter defines model for sortKeyParameter.
type SortKeyParameter = string

// GetApiV1SessionsSessionIDPagesPageParams defines parameters for GetApiV1SessionsSessionIDPagesPage.
type GetApiV1SessionsSessionIDPagesPageParams struct {
	// PageIndex The 1-based page to display.
	PageIndex *PageIndexParameter `form:"page_index,omitempty" json:"page_index,omitempty"`

	// PageSize The number of rows per page.
	PageSize *PageSizeParameter `form:"page_size,omitempty" json:"page_size,omitempty"`

	// SortKey The column to sort by.
	SortKey *SortKeyParameter `form:"sort_key,omitempty" json:"sort_key,omitempty"`

	// SortDir The sort direction.
	SortDir *SortDirParameter `form:"sort_dir,omitempty" json:"sort_dir,omitempty"`

	// Filter Filters in the form name:value, an empty value clears the filter.
	Filter *FilterParameter `form:"filter,omitempty" json:"filter,omitempty"`

	// Refresh Refetch from the backend.
	Refresh *RefreshParameter `form:"refresh,omitempty" json:"refresh,omitempty"`

	// Admin Use the admin view, across all projects.
	Admin *AdminParameter `form:"admin,omitempty" json:"admin,omitempty"`
}

// PostApiV1SessionsSessionIDPagesPageActionsActionParams defines parameters for PostApiV1SessionsSessionIDPagesPageActionsAction.
type PostApiV1SessionsSessionIDPagesPageActionsActionParams struct {
	// Admin Use the admin view, across all projects.
	Admin *AdminParameter `form:"admin,omitempty" json:"admin,omitempty"`
}

// GetApiV1SessionsSessionIDServersServerIDFloatingipsParams defines parameters for GetApiV1SessionsSessionIDServersServerIDFloatingips.
type GetApiV1SessionsSessionIDServersServerIDFloatingipsParams struct {
	// PageIndex The 1-based page to display.
	PageIndex *PageIndexParameter `form:"page_index,omitempty" json:"page_index,omitempty"`

	// PageSize The number of rows per page.
	PageSize *PageSizeParameter `form:"page_size,omitempty" json:"page_size,omitempty"`

	// SortKey The column to sort by.
	SortKey *SortKeyParameter `form:"sort_key,omitempty" json:"sort_key,omitempty"`

	// SortDir The sort direction.
	SortDir *SortDirParameter `form:"sort_dir,omitempty" json:"sort_dir,omitempty"`

	// Filter Filters in the form name:value, an empty value clears the filter.
	Filter *FilterParameter `form:"filter,omitempty" json:"filter,omitempty"`

	// Refresh Refetch from the backend.
	Refresh *RefreshParameter `form:"refresh,omitempty" json:"refresh,omitempty"`

	// Admin Use the admin view, across all projects.
	Admin *AdminParameter `form:"admin,omitempty" json:"admin,omitempty"`
}

// PostApiV1SessionsSessionIDPagesPageActionsActionJSONRequestBody defines body for PostApiV1SessionsSessionIDPagesPageActionsAction for application/json ContentType.
type PostApiV1SessionsSessionIDPagesPageActionsActionJSONRequestBody = ActionInvocation
