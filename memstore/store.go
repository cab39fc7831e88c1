package memstore

import (
	"context"
	"sync"
	"time"

	authcore "github.com/crewlink/authcore"
)

// Store defines a public type used by authcore APIs.
//
// Store instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Store struct {
	mu    sync.Mutex
	state *state
}

type state struct {
	users     map[int64]*authcore.User
	roles     map[int64]*authcore.Role
	userRoles map[int64][]int64

	sessions      map[string]*authcore.Session
	refreshTokens map[int64]*authcore.RefreshToken
	tokens        map[int64]*authcore.Token
	otpTokens     map[int64]*authcore.OtpToken
	m2fa          map[int64]*authcore.M2FA
	oauthAccounts map[int64]*authcore.OAuthAccount

	nextID int64
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Store {
	return &Store{state: newState()}
}

func newState() *state {
	return &state{
		users:         make(map[int64]*authcore.User),
		roles:         make(map[int64]*authcore.Role),
		userRoles:     make(map[int64][]int64),
		sessions:      make(map[string]*authcore.Session),
		refreshTokens: make(map[int64]*authcore.RefreshToken),
		tokens:        make(map[int64]*authcore.Token),
		otpTokens:     make(map[int64]*authcore.OtpToken),
		m2fa:          make(map[int64]*authcore.M2FA),
		oauthAccounts: make(map[int64]*authcore.OAuthAccount),
	}
}

// AddRole seeds a role and returns it. Tests call this before Build so the
// default role lookup during registration succeeds.
func (s *Store) AddRole(name string, permissions ...string) *authcore.Role {
	s.mu.Lock()
	defer s.mu.Unlock()

	role := &authcore.Role{
		ID:          s.state.allocID(),
		Name:        name,
		Permissions: append([]string(nil), permissions...),
	}
	s.state.roles[role.ID] = role
	return cloneRole(role)
}

// Repos describes the repos operation and its observable behavior.
//
// Repos may return an error when input validation, dependency calls, or security checks fail.
// Repos does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) Repos() authcore.Repos {
	return reposFor(s, nil)
}

// Atomic describes the atomic operation and its observable behavior.
//
// The callback runs against a deep copy of the current state. Only when the
// callback returns nil does the copy replace the live state; any error rolls
// the whole transaction back.
//
// Atomic may return an error when input validation, dependency calls, or security checks fail.
// Atomic does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) Atomic(ctx context.Context, fn func(authcore.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(reposFor(nil, working)); err != nil {
		return err
	}
	s.state = working
	return nil
}

// withState runs fn over the right state: the transaction copy when inside
// Atomic, else the live state under the store lock.
func withState[T any](s *Store, txn *state, fn func(st *state) (T, error)) (T, error) {
	if txn != nil {
		return fn(txn)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

func (st *state) allocID() int64 {
	st.nextID++
	return st.nextID
}

func (st *state) clone() *state {
	next := newState()
	next.nextID = st.nextID

	for id, u := range st.users {
		next.users[id] = cloneUser(u)
	}
	for id, r := range st.roles {
		next.roles[id] = cloneRole(r)
	}
	for id, roleIDs := range st.userRoles {
		next.userRoles[id] = append([]int64(nil), roleIDs...)
	}
	for id, sess := range st.sessions {
		next.sessions[id] = cloneSession(sess)
	}
	for id, rt := range st.refreshTokens {
		cp := *rt
		next.refreshTokens[id] = &cp
	}
	for id, t := range st.tokens {
		cp := *t
		next.tokens[id] = &cp
	}
	for id, t := range st.otpTokens {
		cp := *t
		next.otpTokens[id] = &cp
	}
	for id, m := range st.m2fa {
		next.m2fa[id] = cloneM2FA(m)
	}
	for id, a := range st.oauthAccounts {
		cp := *a
		next.oauthAccounts[id] = &cp
	}
	return next
}

/*
====================================
CLONES
====================================
*/

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func cloneUser(u *authcore.User) *authcore.User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.SuspendedAt = cloneTime(u.SuspendedAt)
	cp.SuspensionEndsAt = cloneTime(u.SuspensionEndsAt)
	cp.DeletedAt = cloneTime(u.DeletedAt)
	return &cp
}

func cloneRole(r *authcore.Role) *authcore.Role {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Permissions = append([]string(nil), r.Permissions...)
	return &cp
}

func cloneSession(s *authcore.Session) *authcore.Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.LastActivityAt = cloneTime(s.LastActivityAt)
	cp.RevokedAt = cloneTime(s.RevokedAt)
	return &cp
}

func cloneM2FA(m *authcore.M2FA) *authcore.M2FA {
	if m == nil {
		return nil
	}
	cp := *m
	cp.TOTPVerifiedAt = cloneTime(m.TOTPVerifiedAt)
	cp.LastFailedAttemptAt = cloneTime(m.LastFailedAttemptAt)
	cp.LockedUntil = cloneTime(m.LockedUntil)
	return &cp
}
