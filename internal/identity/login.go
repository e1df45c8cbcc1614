// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

package identity

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// loginRequest is the normalized form of a Login call.
type loginRequest struct {
	Name        string
	Mail        string
	IP          string
	Device      string
	MinRole     Role
	Notify      bool
	ForceLogout bool
	Notice      MailTemplate
	Columns     []string
}

// Login authenticates a member by name and/or mail plus password and issues
// a session token for the calling device. With ForceLogout (the default)
// every prior session of the member is invalidated first.
func (s *Service) Login(ctx context.Context, name, mail, pass, ip, device string, opts LoginOptions) (*Granted, error) {
	req := loginRequest{
		Name:        name,
		Mail:        mail,
		IP:          ip,
		Device:      device,
		MinRole:     roleOrUser(opts.MinRole),
		Notify:      boolOrTrue(opts.Notify),
		ForceLogout: boolOrTrue(opts.ForceLogout),
		Notice:      opts.Mail.withDefaults(mailLoginDone),
		Columns:     calibrateColumns(opts.Columns, loginColumns),
	}

	if req.Name == "" && req.Mail == "" {
		return s.done(opLogin, nil, fail(StatusBadRequest, codeLoginNoIdentifier,
			oops.Errorf("either name or mail is required")))
	}

	member, err := s.store.FindMemberByLogin(ctx, req.Name, req.Mail, req.Columns)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return s.done(opLogin, nil, fail(StatusNotFound, codeLoginLookup, err))
		}
		return s.done(opLogin, nil, fail(StatusInternal, codeLoginLookup, err))
	}
	if member.Role < req.MinRole {
		return s.done(opLogin, nil, fail(StatusForbidden, codeLoginRole,
			oops.With("role", member.Role).With("required", req.MinRole).Errorf("insufficient role")))
	}
	if member.Status != StatusActive {
		return s.done(opLogin, nil, fail(StatusForbidden, codeLoginStatus, oops.Errorf("member is not active")))
	}

	hc := &HookContext{Operation: opLogin, Request: &req, Member: member}
	if err := s.gateCredentials(ctx, opts.Hooks, hc, pass, member.PasswordHash, true,
		gateCodes{hookBefore: codeLoginHookBefore, password: codeLoginPassword}); err != nil {
		return s.done(opLogin, nil, err)
	}

	var n *notice
	if req.Notify {
		n = makeNotice(opLogin, member.Mail, member.Name, ip, device, req.Notice)
	}

	mutate := func(ctx context.Context, tx Tx) (*Granted, error) {
		if req.ForceLogout {
			if err := tx.DeleteSessionsByMember(ctx, member.Name); err != nil {
				return nil, fail(StatusInternal, codeLoginLogout, err)
			}
		}
		token, tokenHash, err := GenerateSessionToken()
		if err != nil {
			return nil, fail(StatusInternal, codeLoginUpsert, err)
		}
		if err := tx.UpsertSession(ctx, NewSession(member.ID, member.Name, ip, device, tokenHash, member.Role)); err != nil {
			return nil, fail(StatusInternal, codeLoginUpsert, err)
		}
		return &Granted{Status: StatusOK, SessionToken: token}, nil
	}

	g, err := s.runInTx(ctx, opts.Hooks, hc, txCodes{hookLast: codeLoginHookLast, notify: codeLoginNotify}, n, mutate)
	return s.done(opLogin, g, err)
}
