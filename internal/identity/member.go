// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

package identity

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role orders member privilege; a higher value grants more.
type Role int16

// Built-in roles. Callers may define intermediate values.
const (
	RoleUser  Role = 0
	RoleStaff Role = 5
	RoleAdmin Role = 9
)

// Status is the member lifecycle state.
type Status int16

const (
	StatusInactive Status = 0
	StatusActive   Status = 1
)

// Member is one persisted identity record.
//
// Version is the optimistic-concurrency guard: it increments on every
// successful mutating write, and a guarded write is accepted only when it
// matches the version last read. Name and Mail are unique among ACTIVE
// members; logical deletion may rename both to free the slots.
type Member struct {
	ID           ulid.ULID
	Name         string
	Mail         string
	PasswordHash string
	Role         Role
	Status       Status
	Custom       map[string]any
	Version      int64
	IP           string
	OTPHash      *string // pending-confirmation hash, nil once confirmed
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewMember creates a validated ACTIVE member ready for insertion.
func NewMember(name, mail, passwordHash, ip string, role Role, custom map[string]any) (*Member, error) {
	if name == "" {
		return nil, oops.Code("IDENTITY_INVALID_MEMBER").Errorf("name cannot be empty")
	}
	if mail == "" {
		return nil, oops.Code("IDENTITY_INVALID_MEMBER").Errorf("mail cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("IDENTITY_INVALID_MEMBER").Errorf("password hash cannot be empty")
	}
	if custom == nil {
		custom = map[string]any{}
	}

	now := time.Now()
	return &Member{
		ID:           ulid.Make(),
		Name:         name,
		Mail:         mail,
		PasswordHash: passwordHash,
		Role:         role,
		Status:       StatusActive,
		Custom:       custom,
		Version:      1,
		IP:           ip,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Member column names accepted for projection.
var memberColumns = map[string]struct{}{
	"id":            {},
	"name":          {},
	"mail":          {},
	"password_hash": {},
	"role":          {},
	"status":        {},
	"custom":        {},
	"version":       {},
	"ip":            {},
	"otp_hash":      {},
	"created_at":    {},
	"updated_at":    {},
}

// Columns the state machine itself reads; always part of a projection.
var requiredColumns = []string{"id", "name", "mail", "password_hash", "role", "status", "version"}

// calibrateColumns validates a caller-supplied projection against the known
// member columns and merges in the columns the engine itself needs. An empty
// request yields the default projection for the operation.
func calibrateColumns(requested, defaults []string) []string {
	if len(requested) == 0 {
		return defaults
	}
	seen := make(map[string]struct{}, len(requested)+len(requiredColumns))
	out := make([]string, 0, len(requested)+len(requiredColumns))
	for _, c := range requiredColumns {
		seen[c] = struct{}{}
		out = append(out, c)
	}
	for _, c := range requested {
		if _, known := memberColumns[c]; !known {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
