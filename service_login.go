package authcore

import (
	"context"
	"errors"
	"strings"

	"github.com/crewlink/authcore/internal/randtoken"
	"github.com/crewlink/authcore/token"
)

// RegisterInput carries the fields accepted at account creation.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Phone    string
}

// Register describes the register operation and its observable behavior.
//
// Register may return an error when input validation, dependency calls, or security checks fail.
// Register does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.New("invalid email address")
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	var result *AuthResult
	err = s.store.Atomic(ctx, func(r Repos) error {
		existing, err := r.Users.ByEmail(ctx, email)
		if err != nil && !errors.Is(err, ErrUserNotFound) {
			return err
		}
		if existing != nil {
			s.metrics.Inc(MetricRegisterDuplicate)
			return ErrEmailExists
		}

		role, err := r.Roles.ByName(ctx, s.config.Account.DefaultRole)
		if err != nil {
			return ErrDefaultRoleMissing
		}

		now := s.now()
		u := &User{
			Email:        email,
			PasswordHash: hash,
			FullName:     in.FullName,
			Phone:        in.Phone,
			Status:       StatusInactive,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := r.Users.Create(ctx, u); err != nil {
			return err
		}
		if err := r.Users.AssignRole(ctx, u.ID, role.ID); err != nil {
			return err
		}

		sess, pair, err := s.establishSession(ctx, r, u, sessionContextFrom(ctx), false)
		if err != nil {
			return err
		}

		link, err := s.issueVerificationLink(ctx, r, u)
		if err != nil {
			return err
		}

		result = &AuthResult{
			User:        u,
			Session:     sess,
			Tokens:      pair,
			NextActions: ComputeNextActions(u, false),
			Cookies:     s.cookieSpecs(pair, sess.ID),
		}

		s.sendEmail(ctx, Email{Kind: EmailWelcome, To: u.Email, FullName: u.FullName})
		s.sendEmail(ctx, Email{
			Kind:      EmailVerification,
			To:        u.Email,
			FullName:  u.FullName,
			Link:      link,
			ExpiresIn: s.config.Verification.LinkTTL.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Inc(MetricRegisterSuccess)
	s.emit(ctx, AuditEvent{EventType: AuditRegister, UserID: result.User.ID, SessionID: result.Session.ID, Email: email, Success: true})
	return result, nil
}

// Login describes the login operation and its observable behavior.
//
// A user with the second factor enabled receives a partial pair whose
// access token carries m2fa_required=true and m2fa_authenticated=false;
// the caller completes the step-up through VerifyAuthenticator or
// VerifyM2FAOtp. Unknown email and wrong password are indistinguishable.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) Login(ctx context.Context, email, plainPassword string) (*AuthResult, error) {
	email = normalizeEmail(email)

	var result *AuthResult
	err := s.store.Atomic(ctx, func(r Repos) error {
		u, err := r.Users.ByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return ErrInvalidCredentials
			}
			return err
		}

		ok, err := s.passwords.Verify(plainPassword, u.PasswordHash)
		if err != nil || !ok {
			return ErrInvalidCredentials
		}

		configured, err := s.m2faConfigured(ctx, r, u.ID)
		if err != nil {
			return err
		}

		m2faRequired := u.IsM2FAEnabled
		sess, pair, err := s.establishSession(ctx, r, u, sessionContextFrom(ctx), m2faRequired)
		if err != nil {
			return err
		}

		result = &AuthResult{
			User:         u,
			Session:      sess,
			Tokens:       pair,
			M2FARequired: m2faRequired,
			NextActions:  ComputeNextActions(u, configured),
			Cookies:      s.cookieSpecs(pair, sess.ID),
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.metrics.Inc(MetricLoginFailure)
			s.emit(ctx, AuditEvent{EventType: AuditLogin, Email: email, Success: false, Error: err.Error()})
		}
		return nil, err
	}

	if result.M2FARequired {
		s.metrics.Inc(MetricLoginM2FAChallenge)
		s.emit(ctx, AuditEvent{EventType: AuditLoginM2FA, UserID: result.User.ID, SessionID: result.Session.ID, Success: true})
	} else {
		s.metrics.Inc(MetricLoginSuccess)
		s.emit(ctx, AuditEvent{EventType: AuditLogin, UserID: result.User.ID, SessionID: result.Session.ID, Success: true})
	}
	return result, nil
}

// RefreshTokens describes the refresh tokens operation and its observable behavior.
//
// Rotation is single-use: the presented refresh token is deleted inside the
// same atomic scope that mints its successor, so a concurrent second use
// fails with ErrRefreshInvalid. The session's active flag is re-read here
// and revoked sessions never rotate. Second-factor claims carry forward.
//
// RefreshTokens may return an error when input validation, dependency calls, or security checks fail.
// RefreshTokens does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken, s.now())
	if err != nil {
		s.metrics.Inc(MetricRefreshFailure)
		return nil, ErrRefreshInvalid
	}
	payload := claims.Payload()

	var result *AuthResult
	err = s.store.Atomic(ctx, func(r Repos) error {
		rt, err := r.RefreshTokens.ByHash(ctx, randtoken.Hash(refreshToken))
		if err != nil {
			return err
		}
		if rt == nil || rt.SessionID != payload.SessionID {
			return ErrRefreshInvalid
		}
		if !rt.ExpiresAt.After(s.now()) {
			return ErrRefreshInvalid
		}

		sess, err := r.Sessions.ByID(ctx, payload.SessionID)
		if err != nil {
			return err
		}
		if sess == nil || !sess.IsActive || !sess.ExpiresAt.After(s.now()) {
			return ErrSessionNotFound
		}

		u, err := r.Users.ByID(ctx, payload.UserID)
		if err != nil {
			return err
		}

		if err := r.RefreshTokens.Delete(ctx, rt.ID); err != nil {
			return err
		}

		now := s.now()
		pair, err := s.tokens.IssuePair(token.Payload{
			UserID:            u.ID,
			SessionID:         sess.ID,
			M2FARequired:      payload.M2FARequired,
			M2FAAuthenticated: payload.M2FAAuthenticated,
		}, now)
		if err != nil {
			return err
		}

		if err := r.RefreshTokens.Create(ctx, &RefreshToken{
			UserID:    u.ID,
			SessionID: sess.ID,
			TokenHash: randtoken.Hash(pair.RefreshToken),
			ExpiresAt: pair.RefreshExpiresAt,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if err := r.Sessions.Touch(ctx, sess.ID, now); err != nil {
			return err
		}

		configured, err := s.m2faConfigured(ctx, r, u.ID)
		if err != nil {
			return err
		}

		result = &AuthResult{
			User:         u,
			Session:      sess,
			Tokens:       pair,
			M2FARequired: payload.M2FARequired && !payload.M2FAAuthenticated,
			NextActions:  ComputeNextActions(u, configured),
			Cookies:      s.cookieSpecs(pair, sess.ID),
		}
		return nil
	})
	if err != nil {
		s.metrics.Inc(MetricRefreshFailure)
		s.emit(ctx, AuditEvent{EventType: AuditRefresh, UserID: payload.UserID, SessionID: payload.SessionID, Success: false, Error: err.Error()})
		return nil, err
	}

	s.metrics.Inc(MetricRefreshSuccess)
	s.emit(ctx, AuditEvent{EventType: AuditRefresh, UserID: result.User.ID, SessionID: result.Session.ID, Success: true})
	return result, nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logging out an already revoked or unknown session fails loudly with
// ErrSessionNotFound rather than pretending success.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	err := s.store.Atomic(ctx, func(r Repos) error {
		revoked, err := r.Sessions.Revoke(ctx, sessionID, RevokeManualLogout, s.now())
		if err != nil {
			return err
		}
		if !revoked {
			return ErrSessionNotFound
		}
		_, err = r.RefreshTokens.DeleteForSession(ctx, sessionID)
		return err
	})
	if err != nil {
		return err
	}

	s.metrics.Inc(MetricLogout)
	s.metrics.Inc(MetricSessionRevoked)
	s.emit(ctx, AuditEvent{EventType: AuditLogout, SessionID: sessionID, Success: true})
	return nil
}

// LogoutAll describes the logout all operation and its observable behavior.
//
// LogoutAll may return an error when input validation, dependency calls, or security checks fail.
// LogoutAll does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) LogoutAll(ctx context.Context, userID int64) error {
	var revoked int
	err := s.store.Atomic(ctx, func(r Repos) error {
		n, err := r.Sessions.RevokeAllForUser(ctx, userID, RevokeAllDeviceLogout, s.now())
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrSessionNotFound
		}
		revoked = n
		_, err = r.RefreshTokens.DeleteForUser(ctx, userID)
		return err
	})
	if err != nil {
		return err
	}

	s.metrics.Inc(MetricLogoutAll)
	for i := 0; i < revoked; i++ {
		s.metrics.Inc(MetricSessionRevoked)
	}
	s.emit(ctx, AuditEvent{EventType: AuditLogoutAll, UserID: userID, Success: true})
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
