// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

package identity

import "time"

// Bool returns a pointer to v, for option fields whose default is true.
func Bool(v bool) *bool {
	return &v
}

// RoleP returns a pointer to r, for optional role fields.
func RoleP(r Role) *Role {
	return &r
}

func boolOrTrue(p *bool) bool {
	return p == nil || *p
}

func roleOrUser(p *Role) Role {
	if p == nil {
		return RoleUser
	}
	return *p
}

// CreateOptions are the optional fields of Create. The zero value selects
// every default.
type CreateOptions struct {
	// Role assigned to the new member. Default RoleUser.
	Role *Role
	// Notify controls the completion notice. Default true.
	Notify *bool
	// Mail overrides the notice template.
	Mail MailTemplate
	// PendingExpiry is the age past which an unconfirmed registration stops
	// blocking this name. Zero selects Config.PendingExpiry.
	PendingExpiry time.Duration
	// Hooks run at the engine's extension points.
	Hooks []Hook
}

// LoginOptions are the optional fields of Login.
type LoginOptions struct {
	// MinRole is the role floor the member must meet. Default RoleUser.
	MinRole *Role
	// Notify controls the completion notice. Default true.
	Notify *bool
	// ForceLogout deletes every other session for the member before the new
	// one is issued. Default true.
	ForceLogout *bool
	// Mail overrides the notice template.
	Mail MailTemplate
	// Columns projects the member lookup. Default: the engine's required set.
	Columns []string
	Hooks   []Hook
}

// ChangeEmailOptions are the optional fields of ChangeEmail.
type ChangeEmailOptions struct {
	// Password, when non-empty, is verified against the member's hash unless
	// a hook bypasses the check.
	Password    string
	MinRole     *Role
	Notify      *bool
	ForceLogout *bool
	Mail        MailTemplate
	Columns     []string
	Hooks       []Hook
}

// ChangePasswordOptions are the optional fields of ChangePassword.
type ChangePasswordOptions struct {
	// Password is the current password; verified only when supplied.
	Password    string
	MinRole     *Role
	Notify      *bool
	ForceLogout *bool
	Mail        MailTemplate
	Columns     []string
	Hooks       []Hook
}

// DeleteOptions are the optional fields of Delete.
type DeleteOptions struct {
	Password string
	// Physical removes the member row entirely. Default true; false retires
	// the member logically (status INACTIVE).
	Physical *bool
	// RenameRetired prefixes name and mail with a deletion timestamp during
	// logical retirement, freeing the uniqueness slots. Default true.
	RenameRetired *bool
	MinRole       *Role
	Notify        *bool
	Mail          MailTemplate
	Columns       []string
	Hooks         []Hook
}

// Default member projections per operation.
var (
	loginColumns  = []string{"id", "role", "status", "name", "mail", "password_hash"}
	changeColumns = []string{"id", "custom", "name", "mail", "password_hash", "role", "status", "version"}
)
