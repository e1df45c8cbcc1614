// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

// Package postgres implements identity.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/wardenid/wardenid/internal/identity"
)

// DB is the subset of pgxpool.Pool the store needs. pgxmock.PgxPoolIface
// satisfies it, which is how the unit tests run without a database.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Connect opens a pgx pool and waits for the database to answer a ping,
// retrying with exponential backoff. Useful at startup when the database
// container is still coming up.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("operation", "create pool").
			Wrap(err)
	}

	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("operation", "ping database").
			Wrap(err)
	}
	return pool, nil
}

// Store implements identity.Store using PostgreSQL.
type Store struct {
	db DB
}

// NewStore creates a Store on the given connection.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.db.Close()
}

// Begin opens a transaction.
func (s *Store) Begin(ctx context.Context) (identity.Tx, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, oops.Code("STORE_BEGIN_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	return &Tx{tx: tx}, nil
}

// FindMemberByLogin looks up a member by name, mail, or both. Empty
// identifiers are not matched against; the caller guarantees at least one
// is set.
func (s *Store) FindMemberByLogin(ctx context.Context, name, mail string, columns []string) (*identity.Member, error) {
	conds := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if name != "" {
		args = append(args, name)
		conds = append(conds, "name = $1")
	}
	if mail != "" {
		args = append(args, mail)
		conds = append(conds, "mail = $"+strconv.Itoa(len(args)))
	}

	query := "SELECT " + strings.Join(columns, ", ") +
		" FROM members WHERE " + strings.Join(conds, " AND ")

	row := s.db.QueryRow(ctx, query, args...)
	m, err := scanMember(row, columns)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("STORE_MEMBER_NOT_FOUND").
			With("name", name).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("STORE_MEMBER_LOOKUP_FAILED").
			With("operation", "find member by login").
			Wrap(err)
	}
	return m, nil
}

// ResolveSession joins a live session row to its member. A session matches
// only on the full (token hash, device, ip) triple and must have been
// issued at or after cutoff.
func (s *Store) ResolveSession(ctx context.Context, tokenHash string, cutoff time.Time, device, ip string, columns []string) (*identity.MemberSession, error) {
	prefixed := make([]string, len(columns))
	for i, c := range columns {
		prefixed[i] = "m." + c
	}
	query := "SELECT s.id, s.created_at, " + strings.Join(prefixed, ", ") +
		" FROM sessions s JOIN members m ON m.name = s.member_name" +
		" WHERE s.token_hash = $1 AND s.device = $2 AND s.ip = $3 AND s.created_at >= $4"

	row := s.db.QueryRow(ctx, query, tokenHash, device, ip, cutoff)

	var (
		sessIDStr     string
		sessCreatedAt time.Time
	)
	holder := newMemberHolder(columns)
	targets := append([]any{&sessIDStr, &sessCreatedAt}, holder.targets...)
	if err := row.Scan(targets...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, oops.Code("STORE_SESSION_NOT_FOUND").Wrap(identity.ErrNotFound)
		}
		return nil, oops.Code("STORE_SESSION_RESOLVE_FAILED").
			With("operation", "resolve session").
			Wrap(err)
	}

	m, err := holder.member()
	if err != nil {
		return nil, err
	}
	sessID, err := ulid.Parse(sessIDStr)
	if err != nil {
		return nil, oops.Code("STORE_INVALID_SESSION_ID").
			With("id", sessIDStr).
			Wrap(err)
	}
	return &identity.MemberSession{
		Member:           *m,
		SessionID:        sessID,
		SessionCreatedAt: sessCreatedAt,
	}, nil
}

// memberHolder collects scan targets for a dynamic column projection and
// converts the scanned values into a Member.
type memberHolder struct {
	columns []string
	targets []any

	idStr   string
	custom  []byte
	otpHash *string
	m       identity.Member
}

func newMemberHolder(columns []string) *memberHolder {
	h := &memberHolder{columns: columns}
	h.targets = make([]any, 0, len(columns))
	for _, c := range columns {
		switch c {
		case "id":
			h.targets = append(h.targets, &h.idStr)
		case "name":
			h.targets = append(h.targets, &h.m.Name)
		case "mail":
			h.targets = append(h.targets, &h.m.Mail)
		case "password_hash":
			h.targets = append(h.targets, &h.m.PasswordHash)
		case "role":
			h.targets = append(h.targets, &h.m.Role)
		case "status":
			h.targets = append(h.targets, &h.m.Status)
		case "custom":
			h.targets = append(h.targets, &h.custom)
		case "version":
			h.targets = append(h.targets, &h.m.Version)
		case "ip":
			h.targets = append(h.targets, &h.m.IP)
		case "otp_hash":
			h.targets = append(h.targets, &h.otpHash)
		case "created_at":
			h.targets = append(h.targets, &h.m.CreatedAt)
		case "updated_at":
			h.targets = append(h.targets, &h.m.UpdatedAt)
		}
	}
	return h
}

func (h *memberHolder) member() (*identity.Member, error) {
	if h.idStr != "" {
		id, err := ulid.Parse(h.idStr)
		if err != nil {
			return nil, oops.Code("STORE_INVALID_MEMBER_ID").
				With("id", h.idStr).
				Wrap(err)
		}
		h.m.ID = id
	}
	if h.custom != nil {
		if err := json.Unmarshal(h.custom, &h.m.Custom); err != nil {
			return nil, oops.Code("STORE_INVALID_CUSTOM_DATA").
				With("operation", "decode custom column").
				Wrap(err)
		}
	}
	h.m.OTPHash = h.otpHash
	return &h.m, nil
}

func scanMember(row pgx.Row, columns []string) (*identity.Member, error) {
	h := newMemberHolder(columns)
	if err := row.Scan(h.targets...); err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("STORE_MEMBER_SCAN_FAILED").
			With("operation", "scan member").
			Wrap(err)
	}
	return h.member()
}

// Compile-time interface check.
var _ identity.Store = (*Store)(nil)
