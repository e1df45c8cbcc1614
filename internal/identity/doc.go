// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

// Package identity implements the mutating identity-lifecycle operations:
// account creation, login, email change, password change, and account
// deletion.
//
// # Operations
//
// Each operation on Service is a linear state machine: normalize the request,
// resolve and authorize the caller, run the beforePasswordCheck hook, verify
// credentials, then perform the primary mutation inside a single transaction
// together with the onTransactionLast hook and the completion notice. A
// failure anywhere after the transaction opens rolls the whole unit back,
// including the case where only the notification failed.
//
// # Outcomes
//
// Expected failures are returned as *Fail values carrying an HTTP-style
// status class and a stable numeric diagnostic code unique to the failing
// call site. Collaborator errors underneath are wrapped with samber/oops for
// structured logging.
//
// # Collaborators
//
// The persistence gateway (Store/Tx), the password hasher and the notifier
// are consumed through interfaces. Production implementations live in
// internal/identity/postgres and internal/notify; test doubles live in
// internal/identity/identitytest.
package identity
