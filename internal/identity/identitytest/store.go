// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

// Package identitytest provides in-memory test doubles for the identity
// collaborators.
package identitytest

import (
	"context"
	"fmt"
	"maps"
	"regexp"
	"sync"
	"time"

	"github.com/wardenid/wardenid/internal/identity"
)

// Store is an in-memory identity.Store with transactional snapshot
// semantics: a Tx works on a copy of the data, Commit publishes it and
// Rollback discards it, so tests can observe that failed operations leave
// no trace.
//
// Individual methods can be made to fail by name via FailOn; Begin fails
// when FailBegin is set.
type Store struct {
	mu       sync.Mutex
	members  map[string]*identity.Member // keyed by name
	sessions []*identity.Session

	FailBegin error
	failOn    map[string]error

	Begun      int
	Committed  int
	RolledBack int
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		members: map[string]*identity.Member{},
		failOn:  map[string]error{},
	}
}

// FailOn makes the named Tx method (e.g. "UpsertSession") return err.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[method] = err
}

// Seed inserts a member directly, bypassing the transactional surface.
func (s *Store) Seed(m *identity.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.Name] = copyMember(m)
}

// SeedSession inserts a session directly.
func (s *Store) SeedSession(sess *identity.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, copySession(sess))
}

// Member returns the stored member by name, or nil.
func (s *Store) Member(name string) *identity.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[name]
	if !ok {
		return nil
	}
	return copyMember(m)
}

// MemberMatching returns the first stored member whose name matches re,
// or nil. Useful for locating logically retired rows after a rename.
func (s *Store) MemberMatching(re *regexp.Regexp) *identity.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, m := range s.members {
		if re.MatchString(name) {
			return copyMember(m)
		}
	}
	return nil
}

// Sessions returns every stored session for the member name.
func (s *Store) Sessions(name string) []*identity.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*identity.Session
	for _, sess := range s.sessions {
		if sess.MemberName == name {
			out = append(out, copySession(sess))
		}
	}
	return out
}

// SessionByTokenHash returns the stored session with the hash, or nil.
func (s *Store) SessionByTokenHash(hash string) *identity.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.TokenHash == hash {
			return copySession(sess)
		}
	}
	return nil
}

// Begin implements identity.Store.
func (s *Store) Begin(context.Context) (identity.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailBegin != nil {
		return nil, s.FailBegin
	}
	s.Begun++
	tx := &memTx{store: s, members: map[string]*identity.Member{}}
	for name, m := range s.members {
		tx.members[name] = copyMember(m)
	}
	for _, sess := range s.sessions {
		tx.sessions = append(tx.sessions, copySession(sess))
	}
	return tx, nil
}

// FindMemberByLogin implements identity.Store. Column projection is accepted
// but not applied; the fake always returns full rows.
func (s *Store) FindMemberByLogin(_ context.Context, name, mail string, _ []string) (*identity.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if name != "" && m.Name != name {
			continue
		}
		if mail != "" && m.Mail != mail {
			continue
		}
		return copyMember(m), nil
	}
	return nil, identity.ErrNotFound
}

// ResolveSession implements identity.Store.
func (s *Store) ResolveSession(_ context.Context, tokenHash string, cutoff time.Time, device, ip string, _ []string) (*identity.MemberSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.TokenHash != tokenHash || sess.Device != device || sess.IP != ip {
			continue
		}
		if sess.CreatedAt.Before(cutoff) {
			continue
		}
		m, ok := s.members[sess.MemberName]
		if !ok {
			continue
		}
		return &identity.MemberSession{
			Member:           *copyMember(m),
			SessionID:        sess.ID,
			SessionCreatedAt: sess.CreatedAt,
		}, nil
	}
	return nil, identity.ErrNotFound
}

// memTx is a staged copy of the store's data.
type memTx struct {
	store    *Store
	members  map[string]*identity.Member
	sessions []*identity.Session
	closed   bool
}

func (t *memTx) fail(method string) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.failOn[method]
}

func (t *memTx) Commit(context.Context) error {
	if err := t.fail("Commit"); err != nil {
		return err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.closed {
		return fmt.Errorf("transaction already closed")
	}
	t.closed = true
	t.store.Committed++
	t.store.members = t.members
	t.store.sessions = t.sessions
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.closed {
		return fmt.Errorf("transaction already closed")
	}
	t.closed = true
	t.store.RolledBack++
	return nil
}

func (t *memTx) InsertMember(_ context.Context, m *identity.Member, pendingExpiry time.Duration) error {
	if err := t.fail("InsertMember"); err != nil {
		return err
	}
	if existing, ok := t.members[m.Name]; ok {
		replaceable := existing.OTPHash != nil && existing.CreatedAt.Before(time.Now().Add(-pendingExpiry))
		if !replaceable {
			return identity.ErrConflict
		}
	}
	for _, other := range t.members {
		if other.Name != m.Name && other.Mail == m.Mail {
			return identity.ErrConflict
		}
	}
	t.members[m.Name] = copyMember(m)
	return nil
}

func (t *memTx) InsertSession(_ context.Context, sess *identity.Session) error {
	if err := t.fail("InsertSession"); err != nil {
		return err
	}
	t.sessions = append(t.sessions, copySession(sess))
	return nil
}

func (t *memTx) UpsertSession(_ context.Context, sess *identity.Session) error {
	if err := t.fail("UpsertSession"); err != nil {
		return err
	}
	kept := t.sessions[:0]
	for _, existing := range t.sessions {
		if existing.MemberName == sess.MemberName && existing.Device == sess.Device {
			continue
		}
		kept = append(kept, existing)
	}
	t.sessions = append(kept, copySession(sess))
	return nil
}

func (t *memTx) DeleteSessionsByMember(_ context.Context, memberName string) error {
	if err := t.fail("DeleteSessionsByMember"); err != nil {
		return err
	}
	kept := t.sessions[:0]
	for _, sess := range t.sessions {
		if sess.MemberName == memberName {
			continue
		}
		kept = append(kept, sess)
	}
	t.sessions = kept
	return nil
}

func (t *memTx) UpdateMemberMail(_ context.Context, name string, version int64, newMail string) error {
	if err := t.fail("UpdateMemberMail"); err != nil {
		return err
	}
	m, ok := t.members[name]
	if !ok || m.Version != version {
		return identity.ErrStale
	}
	m.Mail = newMail
	m.Version++
	m.UpdatedAt = time.Now()
	return nil
}

func (t *memTx) UpdateMemberPassword(_ context.Context, name string, version int64, passwordHash string) error {
	if err := t.fail("UpdateMemberPassword"); err != nil {
		return err
	}
	m, ok := t.members[name]
	if !ok || m.Version != version {
		return identity.ErrStale
	}
	m.PasswordHash = passwordHash
	m.Version++
	m.UpdatedAt = time.Now()
	return nil
}

func (t *memTx) DeleteMember(_ context.Context, name string) error {
	if err := t.fail("DeleteMember"); err != nil {
		return err
	}
	if _, ok := t.members[name]; !ok {
		return identity.ErrNotFound
	}
	delete(t.members, name)
	return nil
}

func (t *memTx) RetireMember(_ context.Context, name string, rename bool, at time.Time) error {
	if err := t.fail("RetireMember"); err != nil {
		return err
	}
	m, ok := t.members[name]
	if !ok || m.Status != identity.StatusActive {
		return identity.ErrStale
	}
	m.Status = identity.StatusInactive
	m.Version++
	m.UpdatedAt = time.Now()
	if rename {
		prefix := fmt.Sprintf("%d#", at.UnixMilli())
		delete(t.members, name)
		m.Name = prefix + m.Name
		m.Mail = prefix + m.Mail
		t.members[m.Name] = m
	}
	return nil
}

func copyMember(m *identity.Member) *identity.Member {
	c := *m
	c.Custom = maps.Clone(m.Custom)
	if m.OTPHash != nil {
		h := *m.OTPHash
		c.OTPHash = &h
	}
	return &c
}

func copySession(s *identity.Session) *identity.Session {
	c := *s
	return &c
}

var _ identity.Store = (*Store)(nil)
var _ identity.Tx = (*memTx)(nil)
