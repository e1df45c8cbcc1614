// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/wardenid/wardenid/internal/observability"
	"github.com/wardenid/wardenid/pkg/errutil"
)

// Operation names used in logs, metrics and hook contexts.
const (
	opCreate         = "create"
	opLogin          = "login"
	opChangeEmail    = "change_email"
	opChangePassword = "change_password"
	opDelete         = "delete"
)

// Config holds engine-wide defaults.
type Config struct {
	// SessionMaxAge is the validity window of a session token.
	// Default 24h.
	SessionMaxAge time.Duration

	// PendingExpiry is the default age past which an unconfirmed
	// registration stops blocking a name. Default 24h.
	PendingExpiry time.Duration
}

func (c Config) withDefaults() Config {
	if c.SessionMaxAge <= 0 {
		c.SessionMaxAge = DefaultSessionMaxAge
	}
	if c.PendingExpiry <= 0 {
		c.PendingExpiry = 24 * time.Hour
	}
	return c
}

// Service executes the identity-lifecycle operations. Each invocation runs
// independently; concurrency control is pushed entirely to the store's
// transaction and version mechanism.
type Service struct {
	store    Store
	hasher   PasswordHasher
	notifier Notifier
	cfg      Config
	logger   *slog.Logger
}

// NewService creates a Service with the default logger.
func NewService(store Store, hasher PasswordHasher, notifier Notifier, cfg Config) (*Service, error) {
	return NewServiceWithLogger(store, hasher, notifier, cfg, slog.Default())
}

// NewServiceWithLogger creates a Service with an explicit logger.
func NewServiceWithLogger(store Store, hasher PasswordHasher, notifier Notifier, cfg Config, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, oops.Errorf("store is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if notifier == nil {
		return nil, oops.Errorf("notifier is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Service{
		store:    store,
		hasher:   hasher,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}, nil
}

// gateCodes are the diagnostic codes of one operation's pre-transaction
// gates.
type gateCodes struct {
	resolve    int
	role       int
	status     int
	hookBefore int
	password   int
}

// resolveSession authenticates the caller's session token and applies the
// role and status gates. This runs before any transaction opens.
func (s *Service) resolveSession(ctx context.Context, token, device, ip string, minRole Role, columns []string, c gateCodes) (*MemberSession, error) {
	cutoff := time.Now().Add(-s.cfg.SessionMaxAge)
	ms, err := s.store.ResolveSession(ctx, HashSessionToken(token), cutoff, device, ip, columns)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fail(StatusUnauthorized, c.resolve, err)
		}
		return nil, fail(StatusInternal, c.resolve, err)
	}
	if ms.Role < minRole {
		return nil, fail(StatusForbidden, c.role,
			oops.With("role", ms.Role).With("required", minRole).Errorf("insufficient role"))
	}
	if ms.Status != StatusActive {
		return nil, fail(StatusForbidden, c.status, oops.Errorf("member is not active"))
	}
	return ms, nil
}

// gateCredentials dispatches the beforePasswordCheck hook and then verifies
// the password unless the hook bypassed it. An empty password is skipped
// unless required. No transaction is open yet; failures return directly.
func (s *Service) gateCredentials(ctx context.Context, hooks []Hook, hc *HookContext, password, hash string, required bool, c gateCodes) error {
	d, err := dispatch(ctx, hooks, HookBeforePasswordCheck, hc)
	if err != nil {
		return fail(StatusInternal, c.hookBefore, err)
	}
	if d.BypassPasswordCheck {
		return nil
	}
	if password == "" && !required {
		return nil
	}
	ok, err := s.hasher.Verify(password, hash)
	if err != nil || !ok {
		return fail(StatusUnauthorized, c.password, oops.Errorf("passwords do not match"))
	}
	return nil
}

// notice is a rendered notification pending delivery at step 9.
type notice struct {
	to      string
	subject string
	body    string
	meta    NoticeMeta
}

func makeNotice(op, to, name, ip, device string, t MailTemplate) *notice {
	return &notice{
		to:      to,
		subject: renderTemplate(t.Subject, name),
		body:    renderTemplate(t.Body, name),
		meta: NoticeMeta{
			Operation:  op,
			MemberName: name,
			IP:         ip,
			Device:     device,
		},
	}
}

// txCodes are the diagnostic codes of the shared transactional tail.
type txCodes struct {
	hookLast int
	notify   int
}

// runInTx executes the transactional half of an operation: begin, the
// op-specific primary mutation, the onTransactionLast hook, the notification,
// commit. Every failure path rolls back and releases the transaction before
// returning; the notice and the mutation are one atomic unit.
func (s *Service) runInTx(
	ctx context.Context,
	hooks []Hook,
	hc *HookContext,
	c txCodes,
	n *notice,
	mutate func(ctx context.Context, tx Tx) (*Granted, error),
) (*Granted, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fail(StatusInternal, codeTxInternal, err)
	}

	granted, err := mutate(ctx, tx)
	if err != nil {
		s.rollback(ctx, tx, hc.Operation)
		return nil, err
	}

	hc.Tx = tx
	if _, err := dispatch(ctx, hooks, HookOnTransactionLast, hc); err != nil {
		s.rollback(ctx, tx, hc.Operation)
		return nil, fail(StatusInternal, c.hookLast, err)
	}

	if n != nil {
		if err := s.notifier.Send(ctx, n.to, n.subject, n.body, n.meta); err != nil {
			s.rollback(ctx, tx, hc.Operation)
			return nil, fail(StatusInternal, c.notify, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		// Commit released the transaction either way; nothing to roll back.
		return nil, fail(StatusInternal, codeTxInternal, err)
	}
	return granted, nil
}

func (s *Service) rollback(ctx context.Context, tx Tx, op string) {
	if err := tx.Rollback(ctx); err != nil {
		errutil.LogError(ctx, s.logger.With("op", op), "transaction rollback failed", err)
	}
}

// done records the outcome metric and log line for one invocation.
func (s *Service) done(op string, g *Granted, err error) (*Granted, error) {
	if err != nil {
		status := StatusOf(err)
		observability.RecordOperation(op, status)
		s.logger.Debug("operation failed", "op", op, "status", status, "code", CodeOf(err))
		return nil, err
	}
	observability.RecordOperation(op, g.Status)
	s.logger.Debug("operation completed", "op", op, "status", g.Status)
	return g, nil
}
