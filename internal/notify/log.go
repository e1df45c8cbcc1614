// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

package notify

import (
	"context"
	"log/slog"

	"github.com/wardenid/wardenid/internal/identity"
)

// LogNotifier writes notices to the log instead of delivering them.
// Intended for development and test environments without an SMTP relay.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Send logs the notice and always succeeds.
func (n *LogNotifier) Send(ctx context.Context, to, subject, body string, meta identity.NoticeMeta) error {
	n.logger.InfoContext(ctx, "notice",
		"operation", meta.Operation,
		"member_name", meta.MemberName,
		"to", to,
		"subject", subject,
		"body_len", len(body),
	)
	return nil
}

// Compile-time interface check.
var _ identity.Notifier = (*LogNotifier)(nil)
