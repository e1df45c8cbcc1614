// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes    = 32 // 32 bytes = 64 hex chars
	DefaultSessionMaxAge = 24 * time.Hour
)

// Session is one persisted proof-of-login bound to a (member, device) pair.
//
// Only the token hash is stored; the plaintext token is returned to the
// caller exactly once, at issuance. A session resolves only while its hash,
// device and ip all match and it is younger than the configured maximum age.
type Session struct {
	ID         ulid.ULID
	MemberID   ulid.ULID
	MemberName string
	IP         string
	Device     string
	TokenHash  string
	Role       Role // role snapshot at issuance
	CreatedAt  time.Time
}

// NewSession creates a session record for the given member context.
func NewSession(memberID ulid.ULID, memberName, ip, device, tokenHash string, role Role) *Session {
	return &Session{
		ID:         ulid.Make(),
		MemberID:   memberID,
		MemberName: memberName,
		IP:         ip,
		Device:     device,
		TokenHash:  tokenHash,
		Role:       role,
		CreatedAt:  time.Now(),
	}
}

// MemberSession is a resolved session joined to its owning member row.
type MemberSession struct {
	Member
	SessionID        ulid.ULID
	SessionCreatedAt time.Time
}

// GenerateSessionToken creates a secure random token and its storage hash.
// The plaintext goes to the client; only the hash is persisted.
func GenerateSessionToken() (token, hash string, err error) {
	buf := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}
	token = hex.EncodeToString(buf)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA256 storage hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
