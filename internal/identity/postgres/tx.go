// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/wardenid/wardenid/internal/identity"
)

// Tx implements identity.Tx on a pgx transaction.
type Tx struct {
	tx pgx.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return oops.Code("STORE_COMMIT_FAILED").Wrap(err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back an already-finished
// transaction is not an error.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return oops.Code("STORE_ROLLBACK_FAILED").Wrap(err)
	}
	return nil
}

// InsertMember persists a new member. A name held by a pending (unconfirmed)
// registration older than pendingExpiry is reclaimed in place; a name or
// mail held by anyone else yields identity.ErrConflict.
func (t *Tx) InsertMember(ctx context.Context, m *identity.Member, pendingExpiry time.Duration) error {
	custom, err := json.Marshal(m.Custom)
	if err != nil {
		return oops.Code("STORE_INVALID_CUSTOM_DATA").
			With("operation", "encode custom column").
			With("name", m.Name).
			Wrap(err)
	}

	var insertedID string
	err = t.tx.QueryRow(ctx, `
		INSERT INTO members (id, name, mail, password_hash, role, status, custom, version, ip, otp_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (name) DO UPDATE SET
			id = EXCLUDED.id,
			mail = EXCLUDED.mail,
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role,
			status = EXCLUDED.status,
			custom = EXCLUDED.custom,
			version = EXCLUDED.version,
			ip = EXCLUDED.ip,
			otp_hash = EXCLUDED.otp_hash,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
		WHERE members.otp_hash IS NOT NULL
		  AND members.created_at < now() - make_interval(secs => $13)
		RETURNING id
	`,
		m.ID.String(),
		m.Name,
		m.Mail,
		m.PasswordHash,
		m.Role,
		m.Status,
		custom,
		m.Version,
		m.IP,
		m.OTPHash,
		m.CreatedAt,
		m.UpdatedAt,
		pendingExpiry.Seconds(),
	).Scan(&insertedID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Name is held by a confirmed member, or by a pending one that has
		// not yet expired.
		return oops.Code("STORE_MEMBER_EXISTS").
			With("name", m.Name).
			Wrap(identity.ErrConflict)
	}
	if isUniqueViolation(err) {
		return oops.Code("STORE_MEMBER_EXISTS").
			With("mail", m.Mail).
			Wrap(identity.ErrConflict)
	}
	if err != nil {
		return oops.Code("STORE_MEMBER_INSERT_FAILED").
			With("operation", "insert member").
			With("name", m.Name).
			Wrap(err)
	}
	return nil
}

// InsertSession stores a fresh session row.
func (t *Tx) InsertSession(ctx context.Context, s *identity.Session) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO sessions (id, member_id, member_name, ip, device, token_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		s.ID.String(),
		s.MemberID.String(),
		s.MemberName,
		s.IP,
		s.Device,
		s.TokenHash,
		s.Role,
		s.CreatedAt,
	)
	if err != nil {
		return oops.Code("STORE_SESSION_INSERT_FAILED").
			With("operation", "insert session").
			With("member_name", s.MemberName).
			Wrap(err)
	}
	return nil
}

// UpsertSession stores a session, replacing any existing one for the same
// member and device. One session per device per member.
func (t *Tx) UpsertSession(ctx context.Context, s *identity.Session) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO sessions (id, member_id, member_name, ip, device, token_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (member_name, device) DO UPDATE SET
			id = EXCLUDED.id,
			member_id = EXCLUDED.member_id,
			ip = EXCLUDED.ip,
			token_hash = EXCLUDED.token_hash,
			role = EXCLUDED.role,
			created_at = EXCLUDED.created_at
	`,
		s.ID.String(),
		s.MemberID.String(),
		s.MemberName,
		s.IP,
		s.Device,
		s.TokenHash,
		s.Role,
		s.CreatedAt,
	)
	if err != nil {
		return oops.Code("STORE_SESSION_UPSERT_FAILED").
			With("operation", "upsert session").
			With("member_name", s.MemberName).
			Wrap(err)
	}
	return nil
}

// DeleteSessionsByMember removes every session for the member. Deleting
// none is a valid state, not an error.
func (t *Tx) DeleteSessionsByMember(ctx context.Context, memberName string) error {
	_, err := t.tx.Exec(ctx, `
		DELETE FROM sessions WHERE member_name = $1
	`, memberName)
	if err != nil {
		return oops.Code("STORE_SESSION_DELETE_FAILED").
			With("operation", "delete sessions by member").
			With("member_name", memberName).
			Wrap(err)
	}
	return nil
}

// UpdateMemberMail replaces the member's mail, guarded by version.
func (t *Tx) UpdateMemberMail(ctx context.Context, name string, version int64, newMail string) error {
	result, err := t.tx.Exec(ctx, `
		UPDATE members SET mail = $3, version = version + 1, updated_at = now()
		WHERE name = $1 AND version = $2
	`, name, version, newMail)
	if isUniqueViolation(err) {
		return oops.Code("STORE_MAIL_TAKEN").
			With("mail", newMail).
			Wrap(identity.ErrConflict)
	}
	if err != nil {
		return oops.Code("STORE_MAIL_UPDATE_FAILED").
			With("operation", "update member mail").
			With("name", name).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("STORE_VERSION_MISMATCH").
			With("name", name).
			With("expected_version", version).
			Wrap(identity.ErrStale)
	}
	return nil
}

// UpdateMemberPassword replaces the member's password hash, guarded by
// version.
func (t *Tx) UpdateMemberPassword(ctx context.Context, name string, version int64, passwordHash string) error {
	result, err := t.tx.Exec(ctx, `
		UPDATE members SET password_hash = $3, version = version + 1, updated_at = now()
		WHERE name = $1 AND version = $2
	`, name, version, passwordHash)
	if err != nil {
		return oops.Code("STORE_PASSWORD_UPDATE_FAILED").
			With("operation", "update member password").
			With("name", name).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("STORE_VERSION_MISMATCH").
			With("name", name).
			With("expected_version", version).
			Wrap(identity.ErrStale)
	}
	return nil
}

// DeleteMember physically removes the member row.
func (t *Tx) DeleteMember(ctx context.Context, name string) error {
	result, err := t.tx.Exec(ctx, `
		DELETE FROM members WHERE name = $1
	`, name)
	if err != nil {
		return oops.Code("STORE_MEMBER_DELETE_FAILED").
			With("operation", "delete member").
			With("name", name).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("STORE_MEMBER_NOT_FOUND").
			With("name", name).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// RetireMember marks the member inactive. With rename, name and mail are
// prefixed with the retirement timestamp in milliseconds ("1712345678901#")
// so the original values become free for reuse.
func (t *Tx) RetireMember(ctx context.Context, name string, rename bool, at time.Time) error {
	prefix := fmt.Sprintf("%d#", at.UnixMilli())
	result, err := t.tx.Exec(ctx, `
		UPDATE members SET
			status = $2,
			version = version + 1,
			updated_at = now(),
			name = CASE WHEN $3 THEN $4 || name ELSE name END,
			mail = CASE WHEN $3 THEN $4 || mail ELSE mail END
		WHERE name = $1 AND status = $5
	`, name, identity.StatusInactive, rename, prefix, identity.StatusActive)
	if err != nil {
		return oops.Code("STORE_MEMBER_RETIRE_FAILED").
			With("operation", "retire member").
			With("name", name).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("STORE_VERSION_MISMATCH").
			With("name", name).
			Wrap(identity.ErrStale)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Compile-time interface check.
var _ identity.Tx = (*Tx)(nil)
