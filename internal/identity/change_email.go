// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

package identity

import (
	"context"

	"github.com/samber/oops"
)

// changeEmailRequest is the normalized form of a ChangeEmail call.
type changeEmailRequest struct {
	NewMail     string
	IP          string
	Device      string
	MinRole     Role
	Notify      bool
	ForceLogout bool
	Notice      MailTemplate
	Columns     []string
}

// ChangeEmail updates the calling member's mail address, guarded by the
// member's version. A no-op change (new mail equals current) is rejected
// before any transaction opens. With ForceLogout (the default) all sessions
// are replaced by one fresh session for the acting caller, returned as a 200
// with a new token; without it the outcome is an empty 204. The completion
// notice goes to the new address.
func (s *Service) ChangeEmail(ctx context.Context, sessionToken, newMail, ip, device string, opts ChangeEmailOptions) (*Granted, error) {
	req := changeEmailRequest{
		NewMail:     newMail,
		IP:          ip,
		Device:      device,
		MinRole:     roleOrUser(opts.MinRole),
		Notify:      boolOrTrue(opts.Notify),
		ForceLogout: boolOrTrue(opts.ForceLogout),
		Notice:      opts.Mail.withDefaults(mailChangeEmailDone),
		Columns:     calibrateColumns(opts.Columns, changeColumns),
	}

	ms, err := s.resolveSession(ctx, sessionToken, device, ip, req.MinRole, req.Columns,
		gateCodes{resolve: codeChangeEmailSession, role: codeChangeEmailRole, status: codeChangeEmailStatus})
	if err != nil {
		return s.done(opChangeEmail, nil, err)
	}
	if req.NewMail == ms.Mail {
		return s.done(opChangeEmail, nil, fail(StatusBadRequest, codeChangeEmailUnchanged,
			oops.Errorf("mail is unchanged")))
	}

	hc := &HookContext{Operation: opChangeEmail, Request: &req, Member: &ms.Member}
	if err := s.gateCredentials(ctx, opts.Hooks, hc, opts.Password, ms.PasswordHash, false,
		gateCodes{hookBefore: codeChangeEmailHookBefore, password: codeChangeEmailPassword}); err != nil {
		return s.done(opChangeEmail, nil, err)
	}

	var n *notice
	if req.Notify {
		n = makeNotice(opChangeEmail, req.NewMail, ms.Name, ip, device, req.Notice)
	}

	mutate := func(ctx context.Context, tx Tx) (*Granted, error) {
		if err := tx.UpdateMemberMail(ctx, ms.Name, ms.Version, req.NewMail); err != nil {
			return nil, fail(StatusInternal, codeChangeEmailUpdate, err)
		}
		if !req.ForceLogout {
			return &Granted{Status: StatusNoContent}, nil
		}
		if err := tx.DeleteSessionsByMember(ctx, ms.Name); err != nil {
			return nil, fail(StatusInternal, codeChangeEmailLogout, err)
		}
		token, tokenHash, err := GenerateSessionToken()
		if err != nil {
			return nil, fail(StatusInternal, codeChangeEmailReissue, err)
		}
		if err := tx.UpsertSession(ctx, NewSession(ms.Member.ID, ms.Name, ip, device, tokenHash, ms.Role)); err != nil {
			return nil, fail(StatusInternal, codeChangeEmailReissue, err)
		}
		return &Granted{Status: StatusOK, SessionToken: token}, nil
	}

	g, err := s.runInTx(ctx, opts.Hooks, hc, txCodes{hookLast: codeChangeEmailHookLast, notify: codeChangeEmailNotify}, n, mutate)
	return s.done(opChangeEmail, g, err)
}
