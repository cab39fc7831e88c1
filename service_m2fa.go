package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/crewlink/authcore/internal/randtoken"
	"github.com/crewlink/authcore/otp"
	"github.com/crewlink/authcore/token"
)

// SetAuthenticationMethod describes the set authentication method operation and its observable behavior.
//
// The returned secret is NOT persisted. The caller renders the provisioning
// URI, the user scans it, and the first valid code presented to
// VerifyAuthenticator writes the durable row. Abandoned enrollments leave
// no state behind.
//
// SetAuthenticationMethod may return an error when input validation, dependency calls, or security checks fail.
// SetAuthenticationMethod does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) SetAuthenticationMethod(ctx context.Context, userID int64) (*TOTPSetup, error) {
	u, err := s.store.Repos().Users.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	secret, err := otp.GenerateSecret()
	if err != nil {
		return nil, err
	}

	uri := otp.ProvisionURI(s.config.TOTP.Issuer, u.Email, secret, s.totpOptions())
	return &TOTPSetup{Secret: secret, ProvisionURI: uri}, nil
}

// VerifyAuthenticator describes the verify authenticator operation and its observable behavior.
//
// Two modes share this entry point. With enrollSecret set and no confirmed
// authenticator on file, a valid code persists the authenticator and turns
// the second factor on. With an authenticator on file, the code is a login
// step-up: repeated failures lock the factor for the configured window, and
// success re-mints the session pair with m2fa_authenticated=true.
//
// VerifyAuthenticator may return an error when input validation, dependency calls, or security checks fail.
// VerifyAuthenticator does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) VerifyAuthenticator(ctx context.Context, userID int64, sessionID, enrollSecret, code string) (*AuthResult, error) {
	var result *AuthResult
	var lockedOut, stepUpFailed bool
	err := s.store.Atomic(ctx, func(r Repos) error {
		u, err := r.Users.ByID(ctx, userID)
		if err != nil {
			return err
		}

		rec, err := r.M2FA.ByUserID(ctx, userID)
		if err != nil {
			return err
		}

		now := s.now()
		if rec == nil || !rec.TOTPEnabled {
			if enrollSecret == "" {
				return ErrTOTPNotConfigured
			}

			valid, err := otp.Validate(enrollSecret, code, now, s.totpOptions())
			if err != nil || !valid {
				return ErrTOTPInvalid
			}

			verified := now
			if err := r.M2FA.Upsert(ctx, &M2FA{
				UserID:         userID,
				TOTPEnabled:    true,
				TOTPSecret:     enrollSecret,
				TOTPVerifiedAt: &verified,
			}); err != nil {
				return err
			}

			u.IsM2FAEnabled = true
			u.UpdatedAt = now
			if err := r.Users.Update(ctx, u); err != nil {
				return err
			}

			result, err = s.stepUpResult(ctx, r, u, sessionID)
			return err
		}

		if rec.LockedUntil != nil && rec.LockedUntil.After(now) {
			return ErrM2FALocked
		}

		valid, err := otp.Validate(rec.TOTPSecret, code, now, s.totpOptions())
		if err != nil || !valid {
			// Failure bookkeeping must outlive this transaction, which an
			// error return would roll back. Commit clean and record the
			// failure in its own transaction below.
			stepUpFailed = true
			return nil
		}

		rec.FailedAttempts = 0
		rec.LastFailedAttemptAt = nil
		rec.LockedUntil = nil
		if err := r.M2FA.Upsert(ctx, rec); err != nil {
			return err
		}

		result, err = s.stepUpResult(ctx, r, u, sessionID)
		return err
	})
	if err == nil && stepUpFailed {
		lockedOut, err = s.recordAuthenticatorFailure(ctx, userID)
		if err == nil {
			if lockedOut {
				err = ErrM2FALocked
			} else {
				err = ErrTOTPInvalid
			}
		}
	}
	if err != nil {
		s.metrics.Inc(MetricM2FAVerifyFailure)
		if lockedOut {
			s.metrics.Inc(MetricM2FALockout)
			s.emit(ctx, AuditEvent{EventType: AuditM2FALocked, UserID: userID, SessionID: sessionID, Success: false})
		}
		return nil, err
	}

	s.metrics.Inc(MetricM2FAVerifySuccess)
	s.emit(ctx, AuditEvent{EventType: AuditM2FAVerify, UserID: userID, SessionID: sessionID, Success: true, Metadata: map[string]string{"method": "authenticator"}})
	return result, nil
}

// stepUpResult re-mints the session pair with the second factor satisfied.
func (s *Service) stepUpResult(ctx context.Context, r Repos, u *User, sessionID string) (*AuthResult, error) {
	sess, err := r.Sessions.ByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.IsActive || sess.UserID != u.ID {
		return nil, ErrSessionNotFound
	}

	pair, err := s.remintPair(ctx, r, u, sessionID, true, true)
	if err != nil {
		return nil, err
	}

	configured, err := s.m2faConfigured(ctx, r, u.ID)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		User:        u,
		Session:     sess,
		Tokens:      pair,
		NextActions: ComputeNextActions(u, configured),
		Cookies:     s.cookieSpecs(pair, sessionID),
	}, nil
}

// recordAuthenticatorFailure bumps the failure counter in a committing
// transaction of its own, crossing the lockout threshold when reached.
func (s *Service) recordAuthenticatorFailure(ctx context.Context, userID int64) (locked bool, err error) {
	err = s.store.Atomic(ctx, func(r Repos) error {
		rec, err := r.M2FA.ByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if rec == nil {
			return ErrTOTPNotConfigured
		}

		now := s.now()
		rec.FailedAttempts++
		rec.LastFailedAttemptAt = &now
		if rec.FailedAttempts >= s.config.M2FA.LockoutThreshold {
			until := now.Add(s.config.M2FA.LockoutDuration)
			rec.LockedUntil = &until
			rec.FailedAttempts = 0
			locked = true
		}
		return r.M2FA.Upsert(ctx, rec)
	})
	return locked, err
}

/*
====================================
EMAIL OTP SECOND FACTOR
====================================
*/

// SendM2FAOtp describes the send m2fa otp operation and its observable behavior.
//
// A fresh challenge lives in Redis under 2fa-otp:<token> with the code seed,
// an attempt counter, and the destination email. The returned opaque token
// correlates the later verification call.
//
// SendM2FAOtp may return an error when input validation, dependency calls, or security checks fail.
// SendM2FAOtp does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) SendM2FAOtp(ctx context.Context, userID int64) (string, error) {
	u, err := s.store.Repos().Users.ByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if !u.IsM2FAEnabled {
		return "", ErrM2FANotEnabled
	}

	if err := s.allowSend(ctx, u.ID, "m2fa_otp"); err != nil {
		return "", err
	}

	secret, err := otp.GenerateSecret()
	if err != nil {
		return "", err
	}
	challengeToken, err := randtoken.New(32)
	if err != nil {
		return "", err
	}

	now := s.now()
	ttl := s.config.M2FA.ChallengeTTL
	if err := s.challenges.Save(ctx, challengeToken, &otpChallenge{
		Secret:    secret,
		Attempts:  0,
		CreatedAt: now.Unix(),
		Email:     u.Email,
	}, ttl); err != nil {
		return "", err
	}

	code, err := otp.Code(secret, now, s.emailOTPOptions(ttl))
	if err != nil {
		return "", err
	}

	s.metrics.Inc(MetricM2FAChallengeIssued)
	s.sendEmail(ctx, Email{
		Kind:      EmailM2FAOTP,
		To:        u.Email,
		FullName:  u.FullName,
		Code:      code,
		ExpiresIn: ttl.String(),
	})
	return challengeToken, nil
}

// VerifyM2FAOtp describes the verify m2fa otp operation and its observable behavior.
//
// Four failed codes burn the challenge; a correct fifth attempt still fails
// with ErrOTPAttemptsExceeded. Success consumes the challenge and re-mints
// the session pair with m2fa_authenticated=true.
//
// VerifyM2FAOtp may return an error when input validation, dependency calls, or security checks fail.
// VerifyM2FAOtp does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) VerifyM2FAOtp(ctx context.Context, userID int64, sessionID, challengeToken, code string) (*AuthResult, error) {
	maxTry := s.config.M2FA.ChallengeMaxTry

	rec, err := s.challenges.Get(ctx, challengeToken, maxTry)
	if err != nil {
		s.metrics.Inc(MetricM2FAVerifyFailure)
		return nil, err
	}

	valid, err := otp.Validate(rec.Secret, code, time.Unix(rec.CreatedAt, 0), s.emailOTPOptions(s.config.M2FA.ChallengeTTL))
	if err != nil || !valid {
		exhausted, recErr := s.challenges.RecordFailure(ctx, challengeToken, maxTry)
		if recErr != nil && !errors.Is(recErr, ErrChallengeInvalid) {
			return nil, recErr
		}
		s.metrics.Inc(MetricM2FAVerifyFailure)
		if exhausted {
			return nil, ErrOTPAttemptsExceeded
		}
		return nil, ErrOTPInvalid
	}

	if _, err := s.challenges.Delete(ctx, challengeToken); err != nil {
		return nil, err
	}

	var result *AuthResult
	err = s.store.Atomic(ctx, func(r Repos) error {
		u, err := r.Users.ByID(ctx, userID)
		if err != nil {
			return err
		}
		result, err = s.stepUpResult(ctx, r, u, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Inc(MetricM2FAVerifySuccess)
	s.emit(ctx, AuditEvent{EventType: AuditM2FAVerify, UserID: userID, SessionID: sessionID, Success: true, Metadata: map[string]string{"method": "email_otp"}})
	return result, nil
}

/*
====================================
ENABLE / DISABLE
====================================
*/

// EnableM2FA describes the enable m2fa operation and its observable behavior.
//
// Turns the email OTP second factor on without an authenticator. The
// current session's pair is re-minted so its claims reflect the new policy;
// the current session itself stays satisfied.
//
// EnableM2FA may return an error when input validation, dependency calls, or security checks fail.
// EnableM2FA does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) EnableM2FA(ctx context.Context, userID int64, sessionID string) (token.Pair, error) {
	var pair token.Pair
	err := s.store.Atomic(ctx, func(r Repos) error {
		u, err := r.Users.ByID(ctx, userID)
		if err != nil {
			return err
		}

		u.IsM2FAEnabled = true
		u.UpdatedAt = s.now()
		if err := r.Users.Update(ctx, u); err != nil {
			return err
		}

		pair, err = s.remintPair(ctx, r, u, sessionID, true, true)
		return err
	})
	if err != nil {
		return token.Pair{}, err
	}

	s.emit(ctx, AuditEvent{EventType: AuditM2FAConfirm, UserID: userID, SessionID: sessionID, Success: true, Metadata: map[string]string{"method": "email_otp"}})
	return pair, nil
}

// DisableM2FA describes the disable m2fa operation and its observable behavior.
//
// Disabling demands a password re-proof, removes any authenticator row, and
// re-mints the session pair without second-factor claims.
//
// DisableM2FA may return an error when input validation, dependency calls, or security checks fail.
// DisableM2FA does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) DisableM2FA(ctx context.Context, userID int64, sessionID, plainPassword string) (token.Pair, error) {
	var pair token.Pair
	err := s.store.Atomic(ctx, func(r Repos) error {
		u, err := r.Users.ByID(ctx, userID)
		if err != nil {
			return err
		}

		ok, err := s.passwords.Verify(plainPassword, u.PasswordHash)
		if err != nil || !ok {
			return ErrInvalidCredentials
		}

		if err := r.M2FA.Delete(ctx, userID); err != nil {
			return err
		}

		u.IsM2FAEnabled = false
		u.UpdatedAt = s.now()
		if err := r.Users.Update(ctx, u); err != nil {
			return err
		}

		pair, err = s.remintPair(ctx, r, u, sessionID, false, false)
		return err
	})
	if err != nil {
		return token.Pair{}, err
	}

	s.emit(ctx, AuditEvent{EventType: AuditM2FADisable, UserID: userID, SessionID: sessionID, Success: true})
	return pair, nil
}
