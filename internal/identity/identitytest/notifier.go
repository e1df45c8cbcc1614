// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

package identitytest

import (
	"context"
	"sync"

	"github.com/wardenid/wardenid/internal/identity"
)

// Notice is one recorded delivery.
type Notice struct {
	To      string
	Subject string
	Body    string
	Meta    identity.NoticeMeta
}

// Notifier records deliveries and can be forced to fail.
type Notifier struct {
	mu   sync.Mutex
	sent []Notice

	Err error
}

// Send implements identity.Notifier.
func (n *Notifier) Send(_ context.Context, to, subject, body string, meta identity.NoticeMeta) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.sent = append(n.sent, Notice{To: to, Subject: subject, Body: body, Meta: meta})
	return nil
}

// Sent returns a copy of the recorded deliveries.
func (n *Notifier) Sent() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notice, len(n.sent))
	copy(out, n.sent)
	return out
}

var _ identity.Notifier = (*Notifier)(nil)
