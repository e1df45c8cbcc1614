// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

package identity

import (
	"errors"
	"fmt"
)

// Status classes carried by operation outcomes.
const (
	StatusOK        = 200
	StatusCreated   = 201
	StatusNoContent = 204

	StatusBadRequest   = 400
	StatusUnauthorized = 401
	StatusForbidden    = 403
	StatusNotFound     = 404
	StatusConflict     = 409
	StatusInternal     = 500
)

// Fail is the failure half of an operation outcome: an HTTP-style status
// class plus a stable numeric diagnostic code unique to the failing call
// site. The code identifies the site in logs and telemetry independently of
// any human-readable message.
type Fail struct {
	Status int
	Code   int
	Err    error // underlying cause, may be nil
}

// Error implements the error interface.
func (f *Fail) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("identity: %d (code %d): %v", f.Status, f.Code, f.Err)
	}
	return fmt.Sprintf("identity: %d (code %d)", f.Status, f.Code)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (f *Fail) Unwrap() error {
	return f.Err
}

// AsFail extracts a *Fail from an error chain.
func AsFail(err error) (*Fail, bool) {
	var f *Fail
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// StatusOf returns the status class of err, defaulting to 500 for errors
// that are not operation outcomes.
func StatusOf(err error) int {
	if f, ok := AsFail(err); ok {
		return f.Status
	}
	return StatusInternal
}

// CodeOf returns the diagnostic code of err, or 0 for errors that are not
// operation outcomes.
func CodeOf(err error) int {
	if f, ok := AsFail(err); ok {
		return f.Code
	}
	return 0
}

func fail(status, code int, err error) *Fail {
	return &Fail{Status: status, Code: code, Err: err}
}

// Granted is the success payload of an operation. SessionToken is empty for
// outcomes with no body (status 204).
type Granted struct {
	Status       int
	SessionToken string
}
