// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

// Package notify delivers lifecycle notices to members.
package notify

import (
	"context"

	"github.com/samber/oops"
	"github.com/wneessen/go-mail"

	"github.com/wardenid/wardenid/internal/identity"
)

// SMTPConfig holds SMTP delivery settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier implements identity.Notifier over SMTP.
type SMTPNotifier struct {
	client *mail.Client
	from   string
}

// NewSMTPNotifier creates an SMTP notifier. Authentication is enabled only
// when a username is configured.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").Errorf("smtp host cannot be empty")
	}
	if cfg.From == "" {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").Errorf("smtp from address cannot be empty")
	}

	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, oops.Code("NOTIFY_CLIENT_FAILED").
			With("host", cfg.Host).
			Wrap(err)
	}
	return &SMTPNotifier{client: client, from: cfg.From}, nil
}

// Send delivers one notice. A delivery failure is reported to the caller,
// which treats it as grounds to abort the surrounding operation.
func (n *SMTPNotifier) Send(ctx context.Context, to, subject, body string, meta identity.NoticeMeta) error {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return oops.Code("NOTIFY_INVALID_ADDRESS").
			With("from", n.from).
			Wrap(err)
	}
	if err := msg.To(to); err != nil {
		return oops.Code("NOTIFY_INVALID_ADDRESS").
			With("operation", meta.Operation).
			Wrap(err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").
			With("operation", meta.Operation).
			With("member_name", meta.MemberName).
			Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ identity.Notifier = (*SMTPNotifier)(nil)
