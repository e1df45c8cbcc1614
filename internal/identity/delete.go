// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

package identity

import (
	"context"
	"time"
)

// deleteRequest is the normalized form of a Delete call.
type deleteRequest struct {
	IP            string
	Device        string
	Physical      bool
	RenameRetired bool
	MinRole       Role
	Notify        bool
	Notice        MailTemplate
	Columns       []string
}

// Delete removes the calling member's account. All sessions are invalidated
// unconditionally. With Physical (the default) the member row is removed;
// otherwise the member is retired logically, and with RenameRetired (the
// default) its name and mail gain a deletion-timestamp prefix so the
// originals become available again. The outcome is an empty 204.
func (s *Service) Delete(ctx context.Context, sessionToken, ip, device string, opts DeleteOptions) (*Granted, error) {
	req := deleteRequest{
		IP:            ip,
		Device:        device,
		Physical:      boolOrTrue(opts.Physical),
		RenameRetired: boolOrTrue(opts.RenameRetired),
		MinRole:       roleOrUser(opts.MinRole),
		Notify:        boolOrTrue(opts.Notify),
		Notice:        opts.Mail.withDefaults(mailDeleteDone),
		Columns:       calibrateColumns(opts.Columns, changeColumns),
	}

	ms, err := s.resolveSession(ctx, sessionToken, device, ip, req.MinRole, req.Columns,
		gateCodes{resolve: codeDeleteSession, role: codeDeleteRole, status: codeDeleteStatus})
	if err != nil {
		return s.done(opDelete, nil, err)
	}

	hc := &HookContext{Operation: opDelete, Request: &req, Member: &ms.Member}
	if err := s.gateCredentials(ctx, opts.Hooks, hc, opts.Password, ms.PasswordHash, false,
		gateCodes{hookBefore: codeDeleteHookBefore, password: codeDeletePassword}); err != nil {
		return s.done(opDelete, nil, err)
	}

	// The notice targets the address on file before it is deleted or renamed.
	var n *notice
	if req.Notify {
		n = makeNotice(opDelete, ms.Mail, ms.Name, ip, device, req.Notice)
	}

	mutate := func(ctx context.Context, tx Tx) (*Granted, error) {
		if err := tx.DeleteSessionsByMember(ctx, ms.Name); err != nil {
			return nil, fail(StatusInternal, codeDeleteLogout, err)
		}
		if req.Physical {
			if err := tx.DeleteMember(ctx, ms.Name); err != nil {
				return nil, fail(StatusInternal, codeDeleteMember, err)
			}
		} else {
			if err := tx.RetireMember(ctx, ms.Name, req.RenameRetired, time.Now()); err != nil {
				return nil, fail(StatusInternal, codeDeleteRetire, err)
			}
		}
		return &Granted{Status: StatusNoContent}, nil
	}

	g, err := s.runInTx(ctx, opts.Hooks, hc, txCodes{hookLast: codeDeleteHookLast, notify: codeDeleteNotify}, n, mutate)
	return s.done(opDelete, g, err)
}
