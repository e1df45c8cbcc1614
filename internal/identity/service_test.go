// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

package identity_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wardenid/wardenid/internal/identity"
	"github.com/wardenid/wardenid/internal/identity/identitytest"
)

// plainHasher is a trivial PasswordHasher for engine tests; the real
// argon2id implementation is covered in hasher_test.go.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", identity.ErrEmptyPassword
	}
	return "hashed:" + password, nil
}

func (plainHasher) Verify(password, hash string) (bool, error) {
	return "hashed:"+password == hash, nil
}

func newTestService(t *testing.T, store *identitytest.Store, notifier *identitytest.Notifier) *identity.Service {
	t.Helper()
	svc, err := identity.NewService(store, plainHasher{}, notifier, identity.Config{})
	require.NoError(t, err)
	return svc
}

func seedMember(t *testing.T, store *identitytest.Store, name, mail, pass string, role identity.Role) *identity.Member {
	t.Helper()
	m, err := identity.NewMember(name, mail, "hashed:"+pass, "10.0.0.1", role, nil)
	require.NoError(t, err)
	store.Seed(m)
	return m
}

func seedSession(t *testing.T, store *identitytest.Store, m *identity.Member, ip, device string) string {
	t.Helper()
	token, tokenHash, err := identity.GenerateSessionToken()
	require.NoError(t, err)
	store.SeedSession(identity.NewSession(m.ID, m.Name, ip, device, tokenHash, m.Role))
	return token
}

func TestNewService_NilDependencies(t *testing.T) {
	store := identitytest.NewStore()
	notifier := &identitytest.Notifier{}

	tests := []struct {
		name     string
		store    identity.Store
		hasher   identity.PasswordHasher
		notifier identity.Notifier
	}{
		{name: "nil store", hasher: plainHasher{}, notifier: notifier},
		{name: "nil hasher", store: store, notifier: notifier},
		{name: "nil notifier", store: store, hasher: plainHasher{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := identity.NewService(tt.store, tt.hasher, tt.notifier, identity.Config{})
			require.Error(t, err)
		})
	}
}

func TestCreate_Success(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := identitytest.NewStore()
	notifier := &identitytest.Notifier{}
	svc := newTestService(t, store, notifier)

	granted, err := svc.Create(context.Background(), "alice", "alice@example.com", "secret",
		"10.0.0.1", "laptop", map[string]any{"plan": "basic"}, identity.CreateOptions{})
	require.NoError(t, err)

	assert.Equal(t, identity.StatusCreated, granted.Status)
	assert.Len(t, granted.SessionToken, 64)

	m := store.Member("alice")
	require.NotNil(t, m)
	assert.Equal(t, "alice@example.com", m.Mail)
	assert.Equal(t, identity.RoleUser, m.Role)
	assert.Equal(t, identity.StatusActive, m.Status)
	assert.Equal(t, int64(1), m.Version)
	assert.Equal(t, "basic", m.Custom["plan"])

	sess := store.SessionByTokenHash(identity.HashSessionToken(granted.SessionToken))
	require.NotNil(t, sess)
	assert.Equal(t, "alice", sess.MemberName)
	assert.Equal(t, "laptop", sess.Device)

	sent := notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@example.com", sent[0].To)
	assert.Contains(t, sent[0].Body, "alice")
	assert.Equal(t, "create", sent[0].Meta.Operation)
	assert.Equal(t, 1, store.Committed)
}

func TestCreate_NameConflict(t *testing.T) {
	store := identitytest.NewStore()
	notifier := &identitytest.Notifier{}
	svc := newTestService(t, store, notifier)
	seedMember(t, store, "alice", "alice@example.com", "secret", identity.RoleUser)

	_, err := svc.Create(context.Background(), "alice", "other@example.com", "secret",
		"10.0.0.1", "laptop", nil, identity.CreateOptions{})
	require.Error(t, err)

	f, ok := identity.AsFail(err)
	require.True(t, ok)
	assert.Equal(t, identity.StatusConflict, f.Status)
	assert.Equal(t, 2214, f.Code)
	assert.Equal(t, 1, store.RolledBack)
	assert.Empty(t, notifier.Sent())
}

func TestCreate_NotifierFailureRollsBack(t *testing.T) {
	store := identitytest.NewStore()
	notifier := &identitytest.Notifier{Err: errors.New("smtp unreachable")}
	svc := newTestService(t, store, notifier)

	_, err := svc.Create(context.Background(), "alice", "alice@example.com", "secret",
		"10.0.0.1", "laptop", nil, identity.CreateOptions{})
	require.Error(t, err)

	f, ok := identity.AsFail(err)
	require.True(t, ok)
	assert.Equal(t, identity.StatusInternal, f.Status)
	assert.Equal(t, 2217, f.Code)

	// The insert was undone together with the session.
	assert.Nil(t, store.Member("alice"))
	assert.Empty(t, store.Sessions("alice"))
	assert.Equal(t, 1, store.RolledBack)
	assert.Equal(t, 0, store.Committed)
}

func TestCreate_NotifyDisabled(t *testing.T) {
	store := identitytest.NewStore()
	notifier := &identitytest.Notifier{Err: errors.New("must not be called")}
	svc := newTestService(t, store, notifier)

	granted, err := svc.Create(context.Background(), "alice", "alice@example.com", "secret",
		"10.0.0.1", "laptop", nil, identity.CreateOptions{Notify: identity.Bool(false)})
	require.NoError(t, err)
	assert.Equal(t, identity.StatusCreated, granted.Status)
}

func TestLogin(t *testing.T) {
	t.Run("success issues session and clears old ones", func(t *testing.T) {
		store := identitytest.NewStore()
		notifier := &identitytest.Notifier{}
		svc := newTestService(t, store, notifier)
		m := seedMember(t, store, "alice", "alice@example.com", "secret", identity.RoleUser)
		seedSession(t, store, m, "10.0.0.9", "phone")

		granted, err := svc.Login(context.Background(), "alice", "", "secret",
			"10.0.0.1", "laptop", identity.LoginOptions{})
		require.NoError(t, err)

		assert.Equal(t, identity.StatusOK, granted.Status)
		sessions := store.Sessions("alice")
		require.Len(t, sessions, 1)
		assert.Equal(t, "laptop", sessions[0].Device)
		require.Len(t, notifier.Sent(), 1)
		assert.Equal(t, "alice@example.com", notifier.Sent()[0].To)
	})

	t.Run("force logout disabled keeps other sessions", func(t *testing.T) {
		store := identitytest.NewStore()
		svc := newTestService(t, store, &identitytest.Notifier{})
		m := seedMember(t, store, "alice", "alice@example.com", "secret", identity.RoleUser)
		seedSession(t, store, m, "10.0.0.9", "phone")

		_, err := svc.Login(context.Background(), "alice", "", "secret",
			"10.0.0.1", "laptop", identity.LoginOptions{ForceLogout: identity.Bool(false)})
		require.NoError(t, err)
		assert.Len(t, store.Sessions("alice"), 2)
	})

	t.Run("mail works as identifier", func(t *testing.T) {
		store := identitytest.NewStore()
		svc := newTestService(t, store, &identitytest.Notifier{})
		seedMember(t, store, "alice", "alice@example.com", "secret", identity.RoleUser)

		granted, err := svc.Login(context.Background(), "", "alice@example.com", "secret",
			"10.0.0.1", "laptop", identity.LoginOptions{})
		require.NoError(t, err)
		assert.Equal(t, identity.StatusOK, granted.Status)
	})

	t.Run("missing identifier", func(t *testing.T) {
		store := identitytest.NewStore()
		svc := newTestService(t, store, &identitytest.Notifier{})

		_, err := svc.Login(context.Background(), "", "", "secret",
			"10.0.0.1", "laptop", identity.LoginOptions{})
		f, ok := identity.AsFail(err)
		require.True(t, ok)
		assert.Equal(t, identity.StatusBadRequest, f.Status)
		assert.Equal(t, 2253, f.Code)
		assert.Equal(t, 0, store.Begun)
	})

	t.Run("unknown member", func(t *testing.T) {
		store := identitytest.NewStore()
		svc := newTestService(t, store, &identitytest.Notifier{})

		_, err := svc.Login(context.Background(), "nobody", "", "secret",
			"10.0.0.1", "laptop", identity.LoginOptions{})
		f, ok := identity.AsFail(err)
		require.True(t, ok)
		assert.Equal(t, identity.StatusNotFound, f.Status)
		assert.Equal(t, 2230, f.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		store := identitytest.NewStore()
		svc := newTestService(t, store, &identitytest.Notifier{})
		seedMember(t, store, "alice", "alice@example.com", "secret", identity.RoleUser)

		_, err := svc.Login(context.Background(), "alice", "", "wrong",
			"10.0.0.1", "laptop", identity.LoginOptions{})
		f, ok := identity.AsFail(err)
		require.True(t, ok)
		assert.Equal(t, identity.StatusUnauthorized, f.Status)
		assert.Equal(t, 2234, f.Code)
		assert.Equal(t, 0, store.Begun)
	})

	t.Run("role floor", func(t *testing.T) {
		store := identitytest.NewStore()
		svc := newTestService(t, store, &identitytest.Notifier{})
		seedMember(t, store, "alice", "alice@example.com", "secret", identity.RoleUser)

		_, err := svc.Login(context.Background(), "alice", "", "secret",
			"10.0.0.1", "laptop", identity.LoginOptions{MinRole: identity.RoleP(identity.RoleStaff)})
		f, ok := identity.AsFail(err)
		require.True(t, ok)
		assert.Equal(t, identity.StatusForbidden, f.Status)
		assert.Equal(t, 2231, f.Code)
	})

	t.Run("inactive member", func(t *testing.T) {
		store := identitytest.NewStore()
		svc := newTestService(t, store, &identitytest.Notifier{})
		m := seedMember(t, store, "alice", "alice@example.com", "secret", identity.RoleUser)
		m.Status = identity.StatusInactive
		store.Seed(m)

		_, err := svc.Login(context.Background(), "alice", "", "secret",
			"10.0.0.1", "laptop", identity.LoginOptions{})
		f, ok := identity.AsFail(err)
		require.True(t, ok)
		assert.Equal(t, identity.StatusForbidden, f.Status)
		assert.Equal(t, 2232, f.Code)
	})

	t.Run("hook bypasses password check", func(t *testing.T) {
		store := identitytest.NewStore()
		svc := newTestService(t, store, &identitytest.Notifier{})
		seedMember(t, store, "alice", "alice@example.com", "secret", identity.RoleUser)

		bypass := identity.Hook{
			Point: identity.HookBeforePasswordCheck,
			Fn: func(_ context.Context, _ *identity.HookContext) (identity.Decision, error) {
				return identity.Decision{BypassPasswordCheck: true}, nil
			},
		}
		granted, err := svc.Login(context.Background(), "alice", "", "wrong",
			"10.0.0.1", "laptop", identity.LoginOptions{Hooks: []identity.Hook{bypass}})
		require.NoError(t, err)
		assert.Equal(t, identity.StatusOK, granted.Status)
	})
}

func TestHookFailures(t *testing.T) {
	failing := func(point identity.HookPoint) identity.Hook {
		return identity.Hook{
			Point: point,
			Fn: func(_ context.Context, _ *identity.HookContext) (identity.Decision, error) {
				return identity.Decision{}, errors.New("hook rejected")
			},
		}
	}

	t.Run("beforePasswordCheck failure opens no transaction", func(t *testing.T) {
		store := identitytest.NewStore()
		svc := newTestService(t, store, &identitytest.Notifier{})
		seedMember(t, store, "alice", "alice@example.com", "secret", identity.RoleUser)

		_, err := svc.Login(context.Background(), "alice", "", "secret", "10.0.0.1", "laptop",
			identity.LoginOptions{Hooks: []identity.Hook{failing(identity.HookBeforePasswordCheck)}})
		f, ok := identity.AsFail(err)
		require.True(t, ok)
		assert.Equal(t, identity.StatusInternal, f.Status)
		assert.Equal(t, 2233, f.Code)
		assert.Equal(t, 0, store.Begun)
	})

	t.Run("onTransactionLast failure rolls back", func(t *testing.T) {
		store := identitytest.NewStore()
		svc := newTestService(t, store, &identitytest.Notifier{})
		m := seedMember(t, store, "alice", "alice@example.com", "secret", identity.RoleUser)
		seedSession(t, store, m, "10.0.0.9", "phone")

		_, err := svc.Login(context.Background(), "alice", "", "secret", "10.0.0.1", "laptop",
			identity.LoginOptions{Hooks: []identity.Hook{failing(identity.HookOnTransactionLast)}})
		f, ok := identity.AsFail(err)
		require.True(t, ok)
		assert.Equal(t, identity.StatusInternal, f.Status)
		assert.Equal(t, 2237, f.Code)
		assert.Equal(t, 1, store.RolledBack)

		// The pre-existing session survived the aborted force logout.
		sessions := store.Sessions("alice")
		require.Len(t, sessions, 1)
		assert.Equal(t, "phone", sessions[0].Device)
	})

	t.Run("onTransactionLast sees the open transaction", func(t *testing.T) {
		store := identitytest.NewStore()
		svc := newTestService(t, store, &identitytest.Notifier{})
		seedMember(t, store, "alice", "alice@example.com", "secret", identity.RoleUser)

		var sawTx bool
		observe := identity.Hook{
			Point: identity.HookOnTransactionLast,
			Fn: func(_ context.Context, hc *identity.HookContext) (identity.Decision, error) {
				sawTx = hc.Tx != nil
				return identity.Decision{}, nil
			},
		}
		_, err := svc.Login(context.Background(), "alice", "", "secret", "10.0.0.1", "laptop",
			identity.LoginOptions{Hooks: []identity.Hook{observe}})
		require.NoError(t, err)
		assert.True(t, sawTx)
	})
}

func TestChangeEmail(t *testing.T) {
	setup := func(t *testing.T) (*identitytest.Store, *identitytest.Notifier, *identity.Service, string) {
		t.Helper()
		store := identitytest.NewStore()
		notifier := &identitytest.Notifier{}
		svc := newTestService(t, store, notifier)
		m := seedMember(t, store, "alice", "alice@example.com", "secret", identity.RoleUser)
		token := seedSession(t, store, m, "10.0.0.1", "laptop")
		return store, notifier, svc, token
	}

	t.Run("success with force logout reissues", func(t *testing.T) {
		store, notifier, svc, token := setup(t)
		m := store.Member("alice")
		seedSession(t, store, m, "10.0.0.9", "phone")

		granted, err := svc.ChangeEmail(context.Background(), token, "new@example.com",
			"10.0.0.1", "laptop", identity.ChangeEmailOptions{})
		require.NoError(t, err)

		assert.Equal(t, identity.StatusOK, granted.Status)
		assert.NotEmpty(t, granted.SessionToken)

		updated := store.Member("alice")
		assert.Equal(t, "new@example.com", updated.Mail)
		assert.Equal(t, int64(2), updated.Version)

		sessions := store.Sessions("alice")
		require.Len(t, sessions, 1)
		assert.Equal(t, identity.HashSessionToken(granted.SessionToken), sessions[0].TokenHash)

		// Notice goes to the new address.
		require.Len(t, notifier.Sent(), 1)
		assert.Equal(t, "new@example.com", notifier.Sent()[0].To)
	})

	t.Run("without force logout returns 204 and no token", func(t *testing.T) {
		store, _, svc, token := setup(t)

		granted, err := svc.ChangeEmail(context.Background(), token, "new@example.com",
			"10.0.0.1", "laptop", identity.ChangeEmailOptions{ForceLogout: identity.Bool(false)})
		require.NoError(t, err)

		assert.Equal(t, identity.StatusNoContent, granted.Status)
		assert.Empty(t, granted.SessionToken)
		assert.Len(t, store.Sessions("alice"), 1)
	})

	t.Run("unchanged mail rejected before any transaction", func(t *testing.T) {
		store, _, svc, token := setup(t)

		_, err := svc.ChangeEmail(context.Background(), token, "alice@example.com",
			"10.0.0.1", "laptop", identity.ChangeEmailOptions{})
		f, ok := identity.AsFail(err)
		require.True(t, ok)
		assert.Equal(t, identity.StatusBadRequest, f.Status)
		assert.Equal(t, 2203, f.Code)
		assert.Equal(t, 0, store.Begun)
	})

	t.Run("bad session token", func(t *testing.T) {
		_, _, svc, _ := setup(t)

		_, err := svc.ChangeEmail(context.Background(), "bogus", "new@example.com",
			"10.0.0.1", "laptop", identity.ChangeEmailOptions{})
		f, ok := identity.AsFail(err)
		require.True(t, ok)
		assert.Equal(t, identity.StatusUnauthorized, f.Status)
		assert.Equal(t, 2200, f.Code)
	})

	t.Run("device mismatch is unauthorized", func(t *testing.T) {
		_, _, svc, token := setup(t)

		_, err := svc.ChangeEmail(context.Background(), token, "new@example.com",
			"10.0.0.1", "phone", identity.ChangeEmailOptions{})
		f, ok := identity.AsFail(err)
		require.True(t, ok)
		assert.Equal(t, identity.StatusUnauthorized, f.Status)
	})

	t.Run("wrong current password when supplied", func(t *testing.T) {
		_, _, svc, token := setup(t)

		_, err := svc.ChangeEmail(context.Background(), token, "new@example.com",
			"10.0.0.1", "laptop", identity.ChangeEmailOptions{Password: "wrong"})
		f, ok := identity.AsFail(err)
		require.True(t, ok)
		assert.Equal(t, identity.StatusUnauthorized, f.Status)
		assert.Equal(t, 2205, f.Code)
	})

	t.Run("version race fails and rolls back", func(t *testing.T) {
		store, notifier, svc, token := setup(t)

		// A concurrent write bumps the version between the session resolve
		// (snapshot read) and the guarded update. The hook runs after the
		// resolve, so mutating the store here models the race exactly.
		race := identity.Hook{
			Point: identity.HookBeforePasswordCheck,
			Fn: func(_ context.Context, _ *identity.HookContext) (identity.Decision, error) {
				m := store.Member("alice")
				m.Version++
				store.Seed(m)
				return identity.Decision{}, nil
			},
		}

		_, err := svc.ChangeEmail(context.Background(), token, "new@example.com",
			"10.0.0.1", "laptop", identity.ChangeEmailOptions{Hooks: []identity.Hook{race}})
		f, ok := identity.AsFail(err)
		require.True(t, ok)
		assert.Equal(t, identity.StatusInternal, f.Status)
		assert.Equal(t, 2206, f.Code)
		require.ErrorIs(t, err, identity.ErrStale)

		assert.Equal(t, 1, store.RolledBack)
		assert.Equal(t, "alice@example.com", store.Member("alice").Mail)
		assert.Len(t, store.Sessions("alice"), 1)
		assert.Empty(t, notifier.Sent())
	})
}

func TestChangePassword(t *testing.T) {
	setup := func(t *testing.T) (*identitytest.Store, *identity.Service, string) {
		t.Helper()
		store := identitytest.NewStore()
		svc := newTestService(t, store, &identitytest.Notifier{})
		m := seedMember(t, store, "alice", "alice@example.com", "secret", identity.RoleUser)
		token := seedSession(t, store, m, "10.0.0.1", "laptop")
		return store, svc, token
	}

	t.Run("success reissues token and old token dies", func(t *testing.T) {
		store, svc, token := setup(t)

		granted, err := svc.ChangePassword(context.Background(), token, "newsecret",
			"10.0.0.1", "laptop", identity.ChangePasswordOptions{})
		require.NoError(t, err)

		assert.Equal(t, identity.StatusOK, granted.Status)
		assert.NotEqual(t, token, granted.SessionToken)

		m := store.Member("alice")
		assert.Equal(t, "hashed:newsecret", m.PasswordHash)
		assert.Equal(t, int64(2), m.Version)

		assert.Nil(t, store.SessionByTokenHash(identity.HashSessionToken(token)))
		assert.NotNil(t, store.SessionByTokenHash(identity.HashSessionToken(granted.SessionToken)))
	})

	t.Run("current password verified only when supplied", func(t *testing.T) {
		_, svc, token := setup(t)

		// No current password in the options: the check is skipped.
		granted, err := svc.ChangePassword(context.Background(), token, "newsecret",
			"10.0.0.1", "laptop", identity.ChangePasswordOptions{ForceLogout: identity.Bool(false)})
		require.NoError(t, err)
		assert.Equal(t, identity.StatusNoContent, granted.Status)
		assert.Empty(t, granted.SessionToken)
	})

	t.Run("wrong current password", func(t *testing.T) {
		_, svc, token := setup(t)

		_, err := svc.ChangePassword(context.Background(), token, "newsecret",
			"10.0.0.1", "laptop", identity.ChangePasswordOptions{Password: "wrong"})
		f, ok := identity.AsFail(err)
		require.True(t, ok)
		assert.Equal(t, identity.StatusUnauthorized, f.Status)
		assert.Equal(t, 2247, f.Code)
	})

	t.Run("version race fails and rolls back", func(t *testing.T) {
		store, svc, token := setup(t)

		// A concurrent write bumps the version between the session resolve
		// and the guarded hash update.
		race := identity.Hook{
			Point: identity.HookBeforePasswordCheck,
			Fn: func(_ context.Context, _ *identity.HookContext) (identity.Decision, error) {
				m := store.Member("alice")
				m.Version++
				store.Seed(m)
				return identity.Decision{}, nil
			},
		}

		_, err := svc.ChangePassword(context.Background(), token, "newsecret",
			"10.0.0.1", "laptop", identity.ChangePasswordOptions{Hooks: []identity.Hook{race}})
		f, ok := identity.AsFail(err)
		require.True(t, ok)
		assert.Equal(t, identity.StatusInternal, f.Status)
		assert.Equal(t, 2248, f.Code)
		require.ErrorIs(t, err, identity.ErrStale)

		assert.Equal(t, 1, store.RolledBack)
		assert.Equal(t, "hashed:secret", store.Member("alice").PasswordHash)
		assert.Len(t, store.Sessions("alice"), 1)
	})

	t.Run("empty new password rejected before any transaction", func(t *testing.T) {
		store, svc, token := setup(t)

		_, err := svc.ChangePassword(context.Background(), token, "",
			"10.0.0.1", "laptop", identity.ChangePasswordOptions{})
		f, ok := identity.AsFail(err)
		require.True(t, ok)
		assert.Equal(t, identity.StatusBadRequest, f.Status)
		assert.Equal(t, 2248, f.Code)
		assert.Equal(t, 0, store.Begun)
	})
}

func TestDelete(t *testing.T) {
	setup := func(t *testing.T) (*identitytest.Store, *identitytest.Notifier, *identity.Service, string) {
		t.Helper()
		store := identitytest.NewStore()
		notifier := &identitytest.Notifier{}
		svc := newTestService(t, store, notifier)
		m := seedMember(t, store, "alice", "alice@example.com", "secret", identity.RoleUser)
		token := seedSession(t, store, m, "10.0.0.1", "laptop")
		return store, notifier, svc, token
	}

	t.Run("physical delete removes the row", func(t *testing.T) {
		store, notifier, svc, token := setup(t)

		granted, err := svc.Delete(context.Background(), token, "10.0.0.1", "laptop",
			identity.DeleteOptions{})
		require.NoError(t, err)

		assert.Equal(t, identity.StatusNoContent, granted.Status)
		assert.Nil(t, store.Member("alice"))
		assert.Empty(t, store.Sessions("alice"))

		// Notice went to the address on file before the delete.
		require.Len(t, notifier.Sent(), 1)
		assert.Equal(t, "alice@example.com", notifier.Sent()[0].To)
	})

	t.Run("logical retire renames and deactivates", func(t *testing.T) {
		store, _, svc, token := setup(t)

		_, err := svc.Delete(context.Background(), token, "10.0.0.1", "laptop",
			identity.DeleteOptions{Physical: identity.Bool(false)})
		require.NoError(t, err)

		assert.Nil(t, store.Member("alice"))

		// The retired row carries a millisecond-timestamp prefix.
		retired := store.MemberMatching(regexp.MustCompile(`^\d+#alice$`))
		require.NotNil(t, retired)
		assert.Equal(t, identity.StatusInactive, retired.Status)
		assert.Regexp(t, `^\d+#alice@example\.com$`, retired.Mail)
	})

	t.Run("logical retire without rename keeps the name", func(t *testing.T) {
		store, _, svc, token := setup(t)

		_, err := svc.Delete(context.Background(), token, "10.0.0.1", "laptop",
			identity.DeleteOptions{Physical: identity.Bool(false), RenameRetired: identity.Bool(false)})
		require.NoError(t, err)

		m := store.Member("alice")
		require.NotNil(t, m)
		assert.Equal(t, identity.StatusInactive, m.Status)
		assert.Equal(t, "alice@example.com", m.Mail)
	})

	t.Run("retire race fails and rolls back", func(t *testing.T) {
		store, notifier, svc, token := setup(t)

		// A concurrent retire flips the status between the session resolve
		// and the guarded retire write.
		race := identity.Hook{
			Point: identity.HookBeforePasswordCheck,
			Fn: func(_ context.Context, _ *identity.HookContext) (identity.Decision, error) {
				m := store.Member("alice")
				m.Status = identity.StatusInactive
				store.Seed(m)
				return identity.Decision{}, nil
			},
		}

		_, err := svc.Delete(context.Background(), token, "10.0.0.1", "laptop",
			identity.DeleteOptions{Physical: identity.Bool(false), Hooks: []identity.Hook{race}})
		f, ok := identity.AsFail(err)
		require.True(t, ok)
		assert.Equal(t, identity.StatusInternal, f.Status)
		assert.Equal(t, 2225, f.Code)
		require.ErrorIs(t, err, identity.ErrStale)

		assert.Equal(t, 1, store.RolledBack)
		assert.Equal(t, "alice", store.Member("alice").Name)
		assert.Len(t, store.Sessions("alice"), 1)
		assert.Empty(t, notifier.Sent())
	})

	t.Run("notifier failure keeps the account", func(t *testing.T) {
		store, notifier, svc, token := setup(t)
		notifier.Err = errors.New("smtp unreachable")

		_, err := svc.Delete(context.Background(), token, "10.0.0.1", "laptop",
			identity.DeleteOptions{})
		f, ok := identity.AsFail(err)
		require.True(t, ok)
		assert.Equal(t, identity.StatusInternal, f.Status)
		assert.Equal(t, 2227, f.Code)

		assert.NotNil(t, store.Member("alice"))
		assert.Len(t, store.Sessions("alice"), 1)
		assert.Equal(t, 1, store.RolledBack)
	})
}

func TestLifecycleEndToEnd(t *testing.T) {
	store := identitytest.NewStore()
	notifier := &identitytest.Notifier{}
	svc := newTestService(t, store, notifier)
	ctx := context.Background()

	created, err := svc.Create(ctx, "bob", "bob@example.com", "hunter2", "10.0.0.1", "laptop", nil,
		identity.CreateOptions{})
	require.NoError(t, err)
	require.Equal(t, identity.StatusCreated, created.Status)

	_, err = svc.Login(ctx, "bob", "", "wrong", "10.0.0.1", "laptop", identity.LoginOptions{})
	f, ok := identity.AsFail(err)
	require.True(t, ok)
	require.Equal(t, identity.StatusUnauthorized, f.Status)

	_, err = svc.Login(ctx, "bob", "", "hunter2", "10.0.0.1", "laptop",
		identity.LoginOptions{MinRole: identity.RoleP(identity.RoleAdmin)})
	f, ok = identity.AsFail(err)
	require.True(t, ok)
	require.Equal(t, identity.StatusForbidden, f.Status)

	logged, err := svc.Login(ctx, "bob", "", "hunter2", "10.0.0.1", "laptop", identity.LoginOptions{})
	require.NoError(t, err)

	_, err = svc.ChangeEmail(ctx, logged.SessionToken, "bob@example.com", "10.0.0.1", "laptop",
		identity.ChangeEmailOptions{})
	f, ok = identity.AsFail(err)
	require.True(t, ok)
	require.Equal(t, identity.StatusBadRequest, f.Status)

	changed, err := svc.ChangePassword(ctx, logged.SessionToken, "hunter3", "10.0.0.1", "laptop",
		identity.ChangePasswordOptions{})
	require.NoError(t, err)
	require.Equal(t, identity.StatusOK, changed.Status)
	require.NotEmpty(t, changed.SessionToken)

	// The pre-change token is dead; the fresh one works.
	_, err = svc.Delete(ctx, logged.SessionToken, "10.0.0.1", "laptop", identity.DeleteOptions{})
	f, ok = identity.AsFail(err)
	require.True(t, ok)
	require.Equal(t, identity.StatusUnauthorized, f.Status)

	deleted, err := svc.Delete(ctx, changed.SessionToken, "10.0.0.1", "laptop", identity.DeleteOptions{})
	require.NoError(t, err)
	require.Equal(t, identity.StatusNoContent, deleted.Status)
	require.Nil(t, store.Member("bob"))
}
