// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

package identity

import (
	"context"
	"strings"
)

// Notifier delivers completion notices. A send error causes the surrounding
// transaction to roll back, so implementations should only fail when the
// message truly was not accepted for delivery. Implementations live in
// internal/notify.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string, meta NoticeMeta) error
}

// NoticeMeta carries contextual fields implementations may include alongside
// the rendered message.
type NoticeMeta struct {
	Operation  string
	MemberName string
	IP         string
	Device     string
}

// MailTemplate overrides the default subject and body of one operation's
// completion notice. Empty fields keep the default.
type MailTemplate struct {
	Subject string
	Body    string
}

func (t MailTemplate) withDefaults(def MailTemplate) MailTemplate {
	if t.Subject == "" {
		t.Subject = def.Subject
	}
	if t.Body == "" {
		t.Body = def.Body
	}
	return t
}

// Default notice templates per operation.
var (
	mailCreateDone = MailTemplate{
		Subject: "Your Registration is Complete",
		Body:    "Dear {{name}}.\nThank you for joining us, your account is now active and ready to use.",
	}
	mailLoginDone = MailTemplate{
		Subject: "Login Notification",
		Body:    "Dear {{name}}\nThank you for logging in to our system.",
	}
	mailChangeEmailDone = MailTemplate{
		Subject: "Email Update Notice",
		Body:    "Email update completed.",
	}
	mailChangePasswordDone = MailTemplate{
		Subject: "Password Update Notice",
		Body:    "Password update completed.",
	}
	mailDeleteDone = MailTemplate{
		Subject: "Account Deletion Confirmation",
		Body:    "Dear {{name}}.\nYour account has been deleted. Thank you for being a part of our community.",
	}
)

// renderTemplate substitutes the {{name}} placeholder. No other placeholders
// are supported; anything unresolved is left verbatim.
func renderTemplate(s, name string) string {
	return strings.ReplaceAll(s, "{{name}}", name)
}
