// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

package identity

import "context"

// HookPoint names a fixed extension point in an operation's state machine.
type HookPoint string

const (
	// HookBeforePasswordCheck fires after authorization and before credential
	// verification, outside any transaction. Its Decision may bypass the
	// default password check.
	HookBeforePasswordCheck HookPoint = "beforePasswordCheck"

	// HookOnTransactionLast fires after the primary data mutation and before
	// any notification, inside the open transaction. A failure rolls the
	// transaction back.
	HookOnTransactionLast HookPoint = "onTransactionLast"
)

// Decision is returned by a hook callback and merged into the operation
// state. BypassPasswordCheck asserts that the password was already verified
// by alternate means.
type Decision struct {
	BypassPasswordCheck bool
}

// HookContext carries the operation state visible to a callback.
type HookContext struct {
	Operation string
	Request   any     // the normalized request
	Member    *Member // resolved member; for Create, the member being inserted
	Tx        Tx      // open transaction, set only at HookOnTransactionLast
}

// HookFunc is a caller-supplied callback. Callbacks are not assumed
// idempotent; an operation that dispatches a point twice produces side
// effects twice.
type HookFunc func(ctx context.Context, hc *HookContext) (Decision, error)

// Hook binds a callback to an extension point. Hooks are supplied per call
// and run in the order given.
type Hook struct {
	Point HookPoint
	Fn    HookFunc
}

// dispatch runs the callbacks registered for point in registration order,
// returning on the first failure. Decisions merge by OR, so any one callback
// can grant the bypass. With no matching callbacks it is a no-op success.
func dispatch(ctx context.Context, hooks []Hook, point HookPoint, hc *HookContext) (Decision, error) {
	var merged Decision
	for _, h := range hooks {
		if h.Point != point || h.Fn == nil {
			continue
		}
		d, err := h.Fn(ctx, hc)
		if err != nil {
			return Decision{}, err
		}
		merged.BypassPasswordCheck = merged.BypassPasswordCheck || d.BypassPasswordCheck
	}
	return merged, nil
}
