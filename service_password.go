package authcore

import (
	"context"
	"errors"
	"strconv"

	"github.com/crewlink/authcore/internal/randtoken"
	"github.com/crewlink/authcore/otp"
)

const resetAttemptScope = "reset-otp"

// ChangePassword describes the change password operation and its observable behavior.
//
// The old password must re-prove; the new password must differ from the
// current one. When revokeOtherSessions is true every other session is
// revoked and its refresh tokens deleted; the calling session survives.
//
// ChangePassword may return an error when input validation, dependency calls, or security checks fail.
// ChangePassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) ChangePassword(ctx context.Context, userID int64, currentSessionID, oldPassword, newPassword string, revokeOtherSessions bool) error {
	var email, fullName string
	err := s.store.Atomic(ctx, func(r Repos) error {
		u, err := r.Users.ByID(ctx, userID)
		if err != nil {
			return err
		}

		ok, err := s.passwords.Verify(oldPassword, u.PasswordHash)
		if err != nil || !ok {
			return ErrInvalidCredentials
		}

		same, err := s.passwords.Verify(newPassword, u.PasswordHash)
		if err == nil && same {
			return ErrPasswordReuse
		}

		hash, err := s.passwords.Hash(newPassword)
		if err != nil {
			return err
		}

		u.PasswordHash = hash
		u.PasswordResetRequired = false
		u.UpdatedAt = s.now()
		if err := r.Users.Update(ctx, u); err != nil {
			return err
		}

		if revokeOtherSessions {
			sessions, err := r.Sessions.ActiveForUser(ctx, userID)
			if err != nil {
				return err
			}
			for _, sess := range sessions {
				if sess.ID == currentSessionID {
					continue
				}
				if _, err := r.Sessions.Revoke(ctx, sess.ID, RevokePasswordChange, s.now()); err != nil {
					return err
				}
				if _, err := r.RefreshTokens.DeleteForSession(ctx, sess.ID); err != nil {
					return err
				}
				s.metrics.Inc(MetricSessionRevoked)
			}
		}

		email, fullName = u.Email, u.FullName
		return nil
	})
	if err != nil {
		s.metrics.Inc(MetricPasswordChangeFailure)
		return err
	}

	s.metrics.Inc(MetricPasswordChangeSuccess)
	s.emit(ctx, AuditEvent{EventType: AuditPasswordChange, UserID: userID, SessionID: currentSessionID, Success: true})
	s.sendEmail(ctx, Email{Kind: EmailPasswordChanged, To: email, FullName: fullName})
	return nil
}

/*
====================================
PASSWORD RESET — LINK PROTOCOL
====================================
*/

// RequestPasswordReset describes the request password reset operation and its observable behavior.
//
// Unknown addresses return success to keep account existence unguessable.
// At most one reset link is live per user; issuing a new one replaces it.
//
// RequestPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// RequestPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	u, err := s.store.Repos().Users.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}

	if err := s.allowSend(ctx, u.ID, "password_reset"); err != nil {
		return err
	}

	raw, err := randtoken.New(32)
	if err != nil {
		return err
	}

	now := s.now()
	err = s.store.Atomic(ctx, func(r Repos) error {
		return r.Tokens.Replace(ctx, &Token{
			UserID:    u.ID,
			Type:      TokenPasswordReset,
			TokenHash: randtoken.Hash(raw),
			ExpiresAt: now.Add(s.config.Reset.LinkTTL),
			CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}

	s.metrics.Inc(MetricPasswordResetRequest)
	s.sendEmail(ctx, Email{
		Kind:      EmailPasswordReset,
		To:        u.Email,
		FullName:  u.FullName,
		Link:      raw,
		ExpiresIn: s.config.Reset.LinkTTL.String(),
	})
	return nil
}

// ResetPasswordByLink describes the reset password by link operation and its observable behavior.
//
// A successful reset invalidates everything: every session is revoked, every
// refresh token deleted, the link consumed, and password_reset_required
// cleared. Unknown and expired tokens share one generic error.
//
// ResetPasswordByLink may return an error when input validation, dependency calls, or security checks fail.
// ResetPasswordByLink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) ResetPasswordByLink(ctx context.Context, rawToken, newPassword string) error {
	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return err
	}

	var userID int64
	err = s.store.Atomic(ctx, func(r Repos) error {
		tok, err := r.Tokens.ByHash(ctx, TokenPasswordReset, randtoken.Hash(rawToken))
		if err != nil {
			return err
		}
		if tok == nil || !tok.ExpiresAt.After(s.now()) {
			return ErrTokenInvalid
		}

		u, err := r.Users.ByID(ctx, tok.UserID)
		if err != nil {
			return err
		}

		userID = u.ID
		return s.applyPasswordReset(ctx, r, u, hash, tok.ID)
	})
	if err != nil {
		s.metrics.Inc(MetricPasswordResetFailure)
		return err
	}

	s.metrics.Inc(MetricPasswordResetSuccess)
	s.emit(ctx, AuditEvent{EventType: AuditPasswordReset, UserID: userID, Success: true, Metadata: map[string]string{"protocol": "link"}})
	return nil
}

/*
====================================
PASSWORD RESET — OTP PROTOCOL
====================================
*/

// RequestPasswordResetOTP describes the request password reset otp operation and its observable behavior.
//
// The emailed code is derived from a stored seed over a single window the
// length of the OTP TTL. Unknown addresses return success.
//
// RequestPasswordResetOTP may return an error when input validation, dependency calls, or security checks fail.
// RequestPasswordResetOTP does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) RequestPasswordResetOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	u, err := s.store.Repos().Users.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}

	if err := s.allowSend(ctx, u.ID, "password_reset"); err != nil {
		return err
	}

	secret, err := otp.GenerateSecret()
	if err != nil {
		return err
	}
	raw, err := randtoken.New(32)
	if err != nil {
		return err
	}

	now := s.now()
	ttl := s.config.Reset.OTPTTL
	err = s.store.Atomic(ctx, func(r Repos) error {
		return r.OtpTokens.Replace(ctx, &OtpToken{
			UserID:    u.ID,
			Type:      OtpResetPassword,
			TokenHash: randtoken.Hash(raw),
			OtpSecret: secret,
			ExpiresAt: now.Add(ttl),
			CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}

	if err := s.attempts.Reset(ctx, resetAttemptScope, strconv.FormatInt(u.ID, 10)); err != nil {
		return err
	}

	code, err := otp.Code(secret, now, s.emailOTPOptions(ttl))
	if err != nil {
		return err
	}

	s.metrics.Inc(MetricPasswordResetRequest)
	s.sendEmail(ctx, Email{
		Kind:      EmailPasswordResetOTP,
		To:        u.Email,
		FullName:  u.FullName,
		Code:      code,
		ExpiresIn: ttl.String(),
	})
	return nil
}

// ResetPasswordByOTP describes the reset password by otp operation and its observable behavior.
//
// Four failed attempts burn the challenge: the fifth try fails with
// ErrOTPAttemptsExceeded even when its code is correct. A successful reset
// has the same cascade as the link protocol.
//
// ResetPasswordByOTP may return an error when input validation, dependency calls, or security checks fail.
// ResetPasswordByOTP does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) ResetPasswordByOTP(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)

	u, err := s.store.Repos().Users.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrOTPInvalid
		}
		return err
	}
	userKey := strconv.FormatInt(u.ID, 10)

	spent, err := s.attempts.Count(ctx, resetAttemptScope, userKey)
	if err != nil {
		return err
	}
	if spent >= s.config.M2FA.ChallengeMaxTry {
		return ErrOTPAttemptsExceeded
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return err
	}

	err = s.store.Atomic(ctx, func(r Repos) error {
		rec, err := r.OtpTokens.ByUser(ctx, u.ID, OtpResetPassword)
		if err != nil {
			return err
		}
		if rec == nil || !rec.ExpiresAt.After(s.now()) {
			return ErrOTPInvalid
		}

		valid, err := otp.Validate(rec.OtpSecret, code, rec.CreatedAt, s.emailOTPOptions(s.config.Reset.OTPTTL))
		if err != nil || !valid {
			return ErrOTPInvalid
		}

		if err := r.OtpTokens.Delete(ctx, rec.ID); err != nil {
			return err
		}
		return s.applyPasswordReset(ctx, r, u, hash, 0)
	})
	if err != nil {
		if errors.Is(err, ErrOTPInvalid) {
			if _, bumpErr := s.attempts.Bump(ctx, resetAttemptScope, userKey, s.config.Reset.OTPTTL); bumpErr != nil {
				return bumpErr
			}
		}
		s.metrics.Inc(MetricPasswordResetFailure)
		return err
	}

	if err := s.attempts.Reset(ctx, resetAttemptScope, userKey); err != nil {
		return err
	}

	s.metrics.Inc(MetricPasswordResetSuccess)
	s.emit(ctx, AuditEvent{EventType: AuditPasswordReset, UserID: u.ID, Success: true, Metadata: map[string]string{"protocol": "otp"}})
	return nil
}

// applyPasswordReset writes the new hash and performs the full invalidation
// cascade inside the caller's atomic scope. tokenID > 0 additionally deletes
// the consumed link token.
func (s *Service) applyPasswordReset(ctx context.Context, r Repos, u *User, newHash string, tokenID int64) error {
	u.PasswordHash = newHash
	u.PasswordResetRequired = false
	u.UpdatedAt = s.now()
	if err := r.Users.Update(ctx, u); err != nil {
		return err
	}

	if tokenID > 0 {
		if err := r.Tokens.Delete(ctx, tokenID); err != nil {
			return err
		}
	}

	if err := s.revokeEverything(ctx, r, u.ID, RevokePasswordReset); err != nil {
		return err
	}

	s.sendEmail(ctx, Email{Kind: EmailPasswordChanged, To: u.Email, FullName: u.FullName})
	return nil
}
