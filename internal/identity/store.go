// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

package identity

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors reported by Store implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an insert is blocked by an existing
	// registration that is neither unconfirmed nor expired.
	ErrConflict = errors.New("registration conflict")

	// ErrStale is returned when a guarded write's precondition (matching
	// version, or still-ACTIVE status) no longer holds.
	ErrStale = errors.New("stale write")
)

// Store is the persistence gateway for members and sessions. Reads used
// during identity resolution run outside any transaction; all mutation goes
// through a Tx obtained from Begin.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	// FindMemberByLogin resolves a member matching every supplied identifier
	// (name and/or mail; empty strings are omitted from the predicate).
	// Returns ErrNotFound when no row matches.
	FindMemberByLogin(ctx context.Context, name, mail string, columns []string) (*Member, error)

	// ResolveSession looks up a session by token hash with matching device
	// and ip, created at or after cutoff, joined to its owning member row.
	// Returns ErrNotFound when no such session exists; this is the sole way
	// session tokens are authenticated.
	ResolveSession(ctx context.Context, tokenHash string, cutoff time.Time, device, ip string, columns []string) (*MemberSession, error)
}

// Tx is one open transaction against the gateway. Exactly one Tx is held per
// operation invocation; Commit or Rollback releases it.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// InsertMember inserts a new ACTIVE member. An existing row with the same
	// name is replaced only when it is an unconfirmed registration older than
	// pendingExpiry; any other collision returns ErrConflict.
	InsertMember(ctx context.Context, m *Member, pendingExpiry time.Duration) error

	InsertSession(ctx context.Context, s *Session) error

	// UpsertSession inserts the session, replacing any existing row for the
	// same (member name, device) pair.
	UpsertSession(ctx context.Context, s *Session) error

	// DeleteSessionsByMember removes every session owned by the member.
	// Deleting zero rows is not an error.
	DeleteSessionsByMember(ctx context.Context, memberName string) error

	// UpdateMemberMail sets a new mail guarded by the member's version.
	// Returns ErrStale when the version no longer matches.
	UpdateMemberMail(ctx context.Context, name string, version int64, newMail string) error

	// UpdateMemberPassword sets a new password hash guarded by the member's
	// version. Returns ErrStale when the version no longer matches.
	UpdateMemberPassword(ctx context.Context, name string, version int64, passwordHash string) error

	// DeleteMember physically removes the member row.
	DeleteMember(ctx context.Context, name string) error

	// RetireMember marks the member INACTIVE, guarded on it still being
	// ACTIVE. When rename is true, name and mail are prefixed with the unix
	// millisecond timestamp of at ("<ms>#<original>") so the original values
	// become available for new registrations.
	RetireMember(ctx context.Context, name string, rename bool, at time.Time) error
}
