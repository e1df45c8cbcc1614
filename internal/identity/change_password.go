// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

package identity

import "context"

// changePasswordRequest is the normalized form of a ChangePassword call.
type changePasswordRequest struct {
	IP          string
	Device      string
	MinRole     Role
	Notify      bool
	ForceLogout bool
	Notice      MailTemplate
	Columns     []string
}

// ChangePassword replaces the calling member's password hash, guarded by the
// member's version. The current password is verified only when supplied in
// the options (and not bypassed by a hook). ForceLogout behaves as in
// ChangeEmail: 200 with a fresh token, or 204 when disabled.
func (s *Service) ChangePassword(ctx context.Context, sessionToken, newPass, ip, device string, opts ChangePasswordOptions) (*Granted, error) {
	req := changePasswordRequest{
		IP:          ip,
		Device:      device,
		MinRole:     roleOrUser(opts.MinRole),
		Notify:      boolOrTrue(opts.Notify),
		ForceLogout: boolOrTrue(opts.ForceLogout),
		Notice:      opts.Mail.withDefaults(mailChangePasswordDone),
		Columns:     calibrateColumns(opts.Columns, changeColumns),
	}

	ms, err := s.resolveSession(ctx, sessionToken, device, ip, req.MinRole, req.Columns,
		gateCodes{resolve: codeChangePasswordSession, role: codeChangePasswordRole, status: codeChangePasswordStatus})
	if err != nil {
		return s.done(opChangePassword, nil, err)
	}

	hc := &HookContext{Operation: opChangePassword, Request: &req, Member: &ms.Member}
	if err := s.gateCredentials(ctx, opts.Hooks, hc, opts.Password, ms.PasswordHash, false,
		gateCodes{hookBefore: codeChangePasswordHookBefore, password: codeChangePasswordPassword}); err != nil {
		return s.done(opChangePassword, nil, err)
	}

	newHash, err := s.hasher.Hash(newPass)
	if err != nil {
		return s.done(opChangePassword, nil, fail(StatusBadRequest, codeChangePasswordUpdate, err))
	}

	var n *notice
	if req.Notify {
		n = makeNotice(opChangePassword, ms.Mail, ms.Name, ip, device, req.Notice)
	}

	mutate := func(ctx context.Context, tx Tx) (*Granted, error) {
		if err := tx.UpdateMemberPassword(ctx, ms.Name, ms.Version, newHash); err != nil {
			return nil, fail(StatusInternal, codeChangePasswordUpdate, err)
		}
		if !req.ForceLogout {
			return &Granted{Status: StatusNoContent}, nil
		}
		if err := tx.DeleteSessionsByMember(ctx, ms.Name); err != nil {
			return nil, fail(StatusInternal, codeChangePasswordLogout, err)
		}
		token, tokenHash, err := GenerateSessionToken()
		if err != nil {
			return nil, fail(StatusInternal, codeChangePasswordReissue, err)
		}
		if err := tx.UpsertSession(ctx, NewSession(ms.Member.ID, ms.Name, ip, device, tokenHash, ms.Role)); err != nil {
			return nil, fail(StatusInternal, codeChangePasswordReissue, err)
		}
		return &Granted{Status: StatusOK, SessionToken: token}, nil
	}

	g, err := s.runInTx(ctx, opts.Hooks, hc, txCodes{hookLast: codeChangePasswordHookLast, notify: codeChangePasswordNotify}, n, mutate)
	return s.done(opChangePassword, g, err)
}
