package memstore

import (
	"context"
	"strings"
	"time"

	authcore "github.com/crewlink/authcore"
)

func reposFor(s *Store, txn *state) authcore.Repos {
	return authcore.Repos{
		Users:         &userRepo{store: s, txn: txn},
		Roles:         &roleRepo{store: s, txn: txn},
		Sessions:      &sessionRepo{store: s, txn: txn},
		RefreshTokens: &refreshTokenRepo{store: s, txn: txn},
		Tokens:        &tokenRepo{store: s, txn: txn},
		OtpTokens:     &otpTokenRepo{store: s, txn: txn},
		M2FA:          &m2faRepo{store: s, txn: txn},
		OAuthAccounts: &oauthAccountRepo{store: s, txn: txn},
	}
}

/*
====================================
USERS
====================================
*/

type userRepo struct {
	store *Store
	txn   *state
}

func (r *userRepo) ByID(ctx context.Context, id int64) (*authcore.User, error) {
	return withState(r.store, r.txn, func(st *state) (*authcore.User, error) {
		u, ok := st.users[id]
		if !ok {
			return nil, authcore.ErrUserNotFound
		}
		return cloneUser(u), nil
	})
}

func (r *userRepo) ByEmail(ctx context.Context, email string) (*authcore.User, error) {
	email = strings.ToLower(email)
	return withState(r.store, r.txn, func(st *state) (*authcore.User, error) {
		for _, u := range st.users {
			if strings.ToLower(u.Email) == email {
				return cloneUser(u), nil
			}
		}
		return nil, authcore.ErrUserNotFound
	})
}

func (r *userRepo) Create(ctx context.Context, u *authcore.User) error {
	_, err := withState(r.store, r.txn, func(st *state) (struct{}, error) {
		for _, existing := range st.users {
			if strings.EqualFold(existing.Email, u.Email) {
				return struct{}{}, authcore.ErrEmailExists
			}
		}
		u.ID = st.allocID()
		st.users[u.ID] = cloneUser(u)
		return struct{}{}, nil
	})
	return err
}

func (r *userRepo) Update(ctx context.Context, u *authcore.User) error {
	_, err := withState(r.store, r.txn, func(st *state) (struct{}, error) {
		if _, ok := st.users[u.ID]; !ok {
			return struct{}{}, authcore.ErrUserNotFound
		}
		for id, existing := range st.users {
			if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
				return struct{}{}, authcore.ErrEmailExists
			}
		}
		st.users[u.ID] = cloneUser(u)
		return struct{}{}, nil
	})
	return err
}

func (r *userRepo) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := withState(r.store, r.txn, func(st *state) (struct{}, error) {
		if _, ok := st.users[userID]; !ok {
			return struct{}{}, authcore.ErrUserNotFound
		}
		for _, id := range st.userRoles[userID] {
			if id == roleID {
				return struct{}{}, nil
			}
		}
		st.userRoles[userID] = append(st.userRoles[userID], roleID)
		return struct{}{}, nil
	})
	return err
}

/*
====================================
ROLES
====================================
*/

type roleRepo struct {
	store *Store
	txn   *state
}

func (r *roleRepo) ByName(ctx context.Context, name string) (*authcore.Role, error) {
	return withState(r.store, r.txn, func(st *state) (*authcore.Role, error) {
		for _, role := range st.roles {
			if role.Name == name {
				return cloneRole(role), nil
			}
		}
		return nil, authcore.ErrDefaultRoleMissing
	})
}

func (r *roleRepo) ForUser(ctx context.Context, userID int64) ([]authcore.Role, error) {
	return withState(r.store, r.txn, func(st *state) ([]authcore.Role, error) {
		var roles []authcore.Role
		for _, id := range st.userRoles[userID] {
			if role, ok := st.roles[id]; ok {
				roles = append(roles, *cloneRole(role))
			}
		}
		return roles, nil
	})
}

/*
====================================
SESSIONS
====================================
*/

type sessionRepo struct {
	store *Store
	txn   *state
}

func (r *sessionRepo) Create(ctx context.Context, sess *authcore.Session) error {
	_, err := withState(r.store, r.txn, func(st *state) (struct{}, error) {
		st.sessions[sess.ID] = cloneSession(sess)
		return struct{}{}, nil
	})
	return err
}

func (r *sessionRepo) ByID(ctx context.Context, id string) (*authcore.Session, error) {
	return withState(r.store, r.txn, func(st *state) (*authcore.Session, error) {
		return cloneSession(st.sessions[id]), nil
	})
}

func (r *sessionRepo) ActiveForUser(ctx context.Context, userID int64) ([]authcore.Session, error) {
	return withState(r.store, r.txn, func(st *state) ([]authcore.Session, error) {
		var out []authcore.Session
		for _, sess := range st.sessions {
			if sess.UserID == userID && sess.IsActive {
				out = append(out, *cloneSession(sess))
			}
		}
		return out, nil
	})
}

func (r *sessionRepo) Revoke(ctx context.Context, id string, reason authcore.RevokeReason, at time.Time) (bool, error) {
	return withState(r.store, r.txn, func(st *state) (bool, error) {
		sess, ok := st.sessions[id]
		if !ok || !sess.IsActive {
			return false, nil
		}
		sess.IsActive = false
		sess.RevokedAt = cloneTime(&at)
		sess.RevokeReason = reason
		sess.UpdatedAt = at
		return true, nil
	})
}

func (r *sessionRepo) RevokeAllForUser(ctx context.Context, userID int64, reason authcore.RevokeReason, at time.Time) (int, error) {
	return withState(r.store, r.txn, func(st *state) (int, error) {
		n := 0
		for _, sess := range st.sessions {
			if sess.UserID != userID || !sess.IsActive {
				continue
			}
			sess.IsActive = false
			sess.RevokedAt = cloneTime(&at)
			sess.RevokeReason = reason
			sess.UpdatedAt = at
			n++
		}
		return n, nil
	})
}

func (r *sessionRepo) Unrevoke(ctx context.Context, id string) error {
	_, err := withState(r.store, r.txn, func(st *state) (struct{}, error) {
		sess, ok := st.sessions[id]
		if !ok {
			return struct{}{}, authcore.ErrSessionNotFound
		}
		sess.IsActive = true
		sess.RevokedAt = nil
		sess.RevokeReason = ""
		return struct{}{}, nil
	})
	return err
}

func (r *sessionRepo) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := withState(r.store, r.txn, func(st *state) (struct{}, error) {
		sess, ok := st.sessions[id]
		if !ok {
			return struct{}{}, authcore.ErrSessionNotFound
		}
		sess.LastActivityAt = cloneTime(&at)
		sess.UpdatedAt = at
		return struct{}{}, nil
	})
	return err
}

/*
====================================
REFRESH TOKENS
====================================
*/

type refreshTokenRepo struct {
	store *Store
	txn   *state
}

func (r *refreshTokenRepo) Create(ctx context.Context, rt *authcore.RefreshToken) error {
	_, err := withState(r.store, r.txn, func(st *state) (struct{}, error) {
		rt.ID = st.allocID()
		cp := *rt
		st.refreshTokens[rt.ID] = &cp
		return struct{}{}, nil
	})
	return err
}

func (r *refreshTokenRepo) ByHash(ctx context.Context, hash string) (*authcore.RefreshToken, error) {
	return withState(r.store, r.txn, func(st *state) (*authcore.RefreshToken, error) {
		for _, rt := range st.refreshTokens {
			if rt.TokenHash == hash {
				cp := *rt
				return &cp, nil
			}
		}
		return nil, nil
	})
}

func (r *refreshTokenRepo) Delete(ctx context.Context, id int64) error {
	_, err := withState(r.store, r.txn, func(st *state) (struct{}, error) {
		delete(st.refreshTokens, id)
		return struct{}{}, nil
	})
	return err
}

func (r *refreshTokenRepo) DeleteForSession(ctx context.Context, sessionID string) (int, error) {
	return withState(r.store, r.txn, func(st *state) (int, error) {
		n := 0
		for id, rt := range st.refreshTokens {
			if rt.SessionID == sessionID {
				delete(st.refreshTokens, id)
				n++
			}
		}
		return n, nil
	})
}

func (r *refreshTokenRepo) DeleteForUser(ctx context.Context, userID int64) (int, error) {
	return withState(r.store, r.txn, func(st *state) (int, error) {
		n := 0
		for id, rt := range st.refreshTokens {
			if rt.UserID == userID {
				delete(st.refreshTokens, id)
				n++
			}
		}
		return n, nil
	})
}

/*
====================================
LINK TOKENS
====================================
*/

type tokenRepo struct {
	store *Store
	txn   *state
}

func (r *tokenRepo) Replace(ctx context.Context, t *authcore.Token) error {
	_, err := withState(r.store, r.txn, func(st *state) (struct{}, error) {
		for id, existing := range st.tokens {
			if existing.UserID == t.UserID && existing.Type == t.Type {
				delete(st.tokens, id)
			}
		}
		t.ID = st.allocID()
		cp := *t
		st.tokens[t.ID] = &cp
		return struct{}{}, nil
	})
	return err
}

func (r *tokenRepo) ByHash(ctx context.Context, typ authcore.TokenType, hash string) (*authcore.Token, error) {
	return withState(r.store, r.txn, func(st *state) (*authcore.Token, error) {
		for _, t := range st.tokens {
			if t.Type == typ && t.TokenHash == hash {
				cp := *t
				return &cp, nil
			}
		}
		return nil, nil
	})
}

func (r *tokenRepo) Delete(ctx context.Context, id int64) error {
	_, err := withState(r.store, r.txn, func(st *state) (struct{}, error) {
		delete(st.tokens, id)
		return struct{}{}, nil
	})
	return err
}

func (r *tokenRepo) DeleteForUser(ctx context.Context, userID int64, typ authcore.TokenType) (int, error) {
	return withState(r.store, r.txn, func(st *state) (int, error) {
		n := 0
		for id, t := range st.tokens {
			if t.UserID == userID && t.Type == typ {
				delete(st.tokens, id)
				n++
			}
		}
		return n, nil
	})
}

/*
====================================
OTP TOKENS
====================================
*/

type otpTokenRepo struct {
	store *Store
	txn   *state
}

func (r *otpTokenRepo) Replace(ctx context.Context, t *authcore.OtpToken) error {
	_, err := withState(r.store, r.txn, func(st *state) (struct{}, error) {
		for id, existing := range st.otpTokens {
			if existing.UserID == t.UserID && existing.Type == t.Type {
				delete(st.otpTokens, id)
			}
		}
		t.ID = st.allocID()
		cp := *t
		st.otpTokens[t.ID] = &cp
		return struct{}{}, nil
	})
	return err
}

func (r *otpTokenRepo) ByHash(ctx context.Context, typ authcore.OtpTokenType, hash string) (*authcore.OtpToken, error) {
	return withState(r.store, r.txn, func(st *state) (*authcore.OtpToken, error) {
		for _, t := range st.otpTokens {
			if t.Type == typ && t.TokenHash == hash {
				cp := *t
				return &cp, nil
			}
		}
		return nil, nil
	})
}

func (r *otpTokenRepo) ByUser(ctx context.Context, userID int64, typ authcore.OtpTokenType) (*authcore.OtpToken, error) {
	return withState(r.store, r.txn, func(st *state) (*authcore.OtpToken, error) {
		for _, t := range st.otpTokens {
			if t.UserID == userID && t.Type == typ {
				cp := *t
				return &cp, nil
			}
		}
		return nil, nil
	})
}

func (r *otpTokenRepo) Delete(ctx context.Context, id int64) error {
	_, err := withState(r.store, r.txn, func(st *state) (struct{}, error) {
		delete(st.otpTokens, id)
		return struct{}{}, nil
	})
	return err
}

func (r *otpTokenRepo) DeleteForUser(ctx context.Context, userID int64, typ authcore.OtpTokenType) (int, error) {
	return withState(r.store, r.txn, func(st *state) (int, error) {
		n := 0
		for id, t := range st.otpTokens {
			if t.UserID == userID && t.Type == typ {
				delete(st.otpTokens, id)
				n++
			}
		}
		return n, nil
	})
}

/*
====================================
M2FA
====================================
*/

type m2faRepo struct {
	store *Store
	txn   *state
}

func (r *m2faRepo) ByUserID(ctx context.Context, userID int64) (*authcore.M2FA, error) {
	return withState(r.store, r.txn, func(st *state) (*authcore.M2FA, error) {
		return cloneM2FA(st.m2fa[userID]), nil
	})
}

func (r *m2faRepo) Upsert(ctx context.Context, m *authcore.M2FA) error {
	_, err := withState(r.store, r.txn, func(st *state) (struct{}, error) {
		if existing, ok := st.m2fa[m.UserID]; ok {
			m.ID = existing.ID
		} else {
			m.ID = st.allocID()
		}
		st.m2fa[m.UserID] = cloneM2FA(m)
		return struct{}{}, nil
	})
	return err
}

func (r *m2faRepo) Delete(ctx context.Context, userID int64) error {
	_, err := withState(r.store, r.txn, func(st *state) (struct{}, error) {
		delete(st.m2fa, userID)
		return struct{}{}, nil
	})
	return err
}

/*
====================================
OAUTH ACCOUNTS
====================================
*/

type oauthAccountRepo struct {
	store *Store
	txn   *state
}

func (r *oauthAccountRepo) ByProviderAccount(ctx context.Context, provider, providerAccountID string) (*authcore.OAuthAccount, error) {
	return withState(r.store, r.txn, func(st *state) (*authcore.OAuthAccount, error) {
		for _, a := range st.oauthAccounts {
			if a.Provider == provider && a.ProviderAccountID == providerAccountID {
				cp := *a
				return &cp, nil
			}
		}
		return nil, nil
	})
}

func (r *oauthAccountRepo) ByUserAndProvider(ctx context.Context, userID int64, provider string) (*authcore.OAuthAccount, error) {
	return withState(r.store, r.txn, func(st *state) (*authcore.OAuthAccount, error) {
		for _, a := range st.oauthAccounts {
			if a.UserID == userID && a.Provider == provider {
				cp := *a
				return &cp, nil
			}
		}
		return nil, nil
	})
}

func (r *oauthAccountRepo) Create(ctx context.Context, a *authcore.OAuthAccount) error {
	_, err := withState(r.store, r.txn, func(st *state) (struct{}, error) {
		a.ID = st.allocID()
		cp := *a
		st.oauthAccounts[a.ID] = &cp
		return struct{}{}, nil
	})
	return err
}

func (r *oauthAccountRepo) Delete(ctx context.Context, id int64) error {
	_, err := withState(r.store, r.txn, func(st *state) (struct{}, error) {
		delete(st.oauthAccounts, id)
		return struct{}{}, nil
	})
	return err
}
