// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

package identity

import (
	"context"
	"errors"
	"time"
)

// createRequest is the normalized form of a Create call.
type createRequest struct {
	Name          string
	Mail          string
	IP            string
	Device        string
	Custom        map[string]any
	Role          Role
	Notify        bool
	Notice        MailTemplate
	PendingExpiry time.Duration
}

// Create registers a new ACTIVE member and issues its first session.
// There is no authorization gate: creation is anonymous. An existing
// registration with the same name blocks the insert unless it is an
// unconfirmed one older than the pending expiry; a blocked insert is a 409.
func (s *Service) Create(ctx context.Context, name, mail, pass, ip, device string, custom map[string]any, opts CreateOptions) (*Granted, error) {
	req := createRequest{
		Name:          name,
		Mail:          mail,
		IP:            ip,
		Device:        device,
		Custom:        custom,
		Role:          roleOrUser(opts.Role),
		Notify:        boolOrTrue(opts.Notify),
		Notice:        opts.Mail.withDefaults(mailCreateDone),
		PendingExpiry: opts.PendingExpiry,
	}
	if req.PendingExpiry <= 0 {
		req.PendingExpiry = s.cfg.PendingExpiry
	}

	hash, err := s.hasher.Hash(pass)
	if err != nil {
		return s.done(opCreate, nil, fail(StatusBadRequest, codeCreateInsertMember, err))
	}
	member, err := NewMember(name, mail, hash, ip, req.Role, custom)
	if err != nil {
		return s.done(opCreate, nil, fail(StatusBadRequest, codeCreateInsertMember, err))
	}

	hc := &HookContext{Operation: opCreate, Request: &req, Member: member}

	var n *notice
	if req.Notify {
		n = makeNotice(opCreate, mail, name, ip, device, req.Notice)
	}

	mutate := func(ctx context.Context, tx Tx) (*Granted, error) {
		if err := tx.InsertMember(ctx, member, req.PendingExpiry); err != nil {
			if errors.Is(err, ErrConflict) {
				return nil, fail(StatusConflict, codeCreateInsertMember, err)
			}
			return nil, fail(StatusInternal, codeCreateInsertMember, err)
		}

		token, tokenHash, err := GenerateSessionToken()
		if err != nil {
			return nil, fail(StatusInternal, codeCreateInsertSession, err)
		}
		if err := tx.InsertSession(ctx, NewSession(member.ID, member.Name, ip, device, tokenHash, member.Role)); err != nil {
			return nil, fail(StatusInternal, codeCreateInsertSession, err)
		}
		return &Granted{Status: StatusCreated, SessionToken: token}, nil
	}

	g, err := s.runInTx(ctx, opts.Hooks, hc, txCodes{hookLast: codeCreateHookLast, notify: codeCreateNotify}, n, mutate)
	return s.done(opCreate, g, err)
}
