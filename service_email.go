package authcore

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/crewlink/authcore/internal/randtoken"
	"github.com/crewlink/authcore/otp"
)

const verifyAttemptScope = "verify-otp"

// issueVerificationLink replaces the user's live verification token and
// returns the raw link token. Caller owns the atomic scope and the email.
func (s *Service) issueVerificationLink(ctx context.Context, r Repos, u *User) (string, error) {
	raw, err := randtoken.New(32)
	if err != nil {
		return "", err
	}

	now := s.now()
	err = r.Tokens.Replace(ctx, &Token{
		UserID:    u.ID,
		Type:      TokenEmailVerification,
		TokenHash: randtoken.Hash(raw),
		ExpiresAt: now.Add(s.config.Verification.LinkTTL),
		CreatedAt: now,
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

// RequestEmailVerification describes the request email verification operation and its observable behavior.
//
// RequestEmailVerification may return an error when input validation, dependency calls, or security checks fail.
// RequestEmailVerification does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) RequestEmailVerification(ctx context.Context, userID int64) error {
	u, err := s.store.Repos().Users.ByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.IsVerified {
		return ErrAlreadyVerified
	}

	if err := s.allowSend(ctx, u.ID, "email_verification"); err != nil {
		return err
	}

	var link string
	err = s.store.Atomic(ctx, func(r Repos) error {
		link, err = s.issueVerificationLink(ctx, r, u)
		return err
	})
	if err != nil {
		return err
	}

	s.metrics.Inc(MetricVerificationRequest)
	s.sendEmail(ctx, Email{
		Kind:      EmailVerification,
		To:        u.Email,
		FullName:  u.FullName,
		Link:      link,
		ExpiresIn: s.config.Verification.LinkTTL.String(),
	})
	return nil
}

// RequestEmailVerificationOTP describes the request email verification otp operation and its observable behavior.
//
// RequestEmailVerificationOTP may return an error when input validation, dependency calls, or security checks fail.
// RequestEmailVerificationOTP does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) RequestEmailVerificationOTP(ctx context.Context, userID int64) error {
	u, err := s.store.Repos().Users.ByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.IsVerified {
		return ErrAlreadyVerified
	}

	if err := s.allowSend(ctx, u.ID, "email_verification"); err != nil {
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
	ttl := s.config.Verification.OTPTTL
	err = s.store.Atomic(ctx, func(r Repos) error {
		return r.OtpTokens.Replace(ctx, &OtpToken{
			UserID:    u.ID,
			Type:      OtpEmailVerification,
			TokenHash: randtoken.Hash(raw),
			OtpSecret: secret,
			ExpiresAt: now.Add(ttl),
			CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}

	if err := s.attempts.Reset(ctx, verifyAttemptScope, strconv.FormatInt(u.ID, 10)); err != nil {
		return err
	}

	code, err := otp.Code(secret, now, s.emailOTPOptions(ttl))
	if err != nil {
		return err
	}

	s.metrics.Inc(MetricVerificationRequest)
	s.sendEmail(ctx, Email{
		Kind:      EmailVerificationOTP,
		To:        u.Email,
		FullName:  u.FullName,
		Code:      code,
		ExpiresIn: ttl.String(),
	})
	return nil
}

// VerifyEmailByLink describes the verify email by link operation and its observable behavior.
//
// Verification flips is_verified and promotes an inactive account to active.
// Existing sessions survive; only the consumed token is deleted.
//
// VerifyEmailByLink may return an error when input validation, dependency calls, or security checks fail.
// VerifyEmailByLink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) VerifyEmailByLink(ctx context.Context, rawToken string) error {
	var userID int64
	err := s.store.Atomic(ctx, func(r Repos) error {
		tok, err := r.Tokens.ByHash(ctx, TokenEmailVerification, randtoken.Hash(rawToken))
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
		if u.IsVerified {
			return ErrAlreadyVerified
		}

		userID = u.ID
		if err := r.Tokens.Delete(ctx, tok.ID); err != nil {
			return err
		}
		return s.markVerified(ctx, r, u)
	})
	if err != nil {
		s.metrics.Inc(MetricVerificationFailure)
		return err
	}

	s.metrics.Inc(MetricVerificationSuccess)
	s.emit(ctx, AuditEvent{EventType: AuditEmailVerified, UserID: userID, Success: true, Metadata: map[string]string{"protocol": "link"}})
	return nil
}

// VerifyEmailByOTP describes the verify email by otp operation and its observable behavior.
//
// Shares the four-attempt budget semantics of the reset OTP protocol.
//
// VerifyEmailByOTP may return an error when input validation, dependency calls, or security checks fail.
// VerifyEmailByOTP does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) VerifyEmailByOTP(ctx context.Context, userID int64, code string) error {
	userKey := strconv.FormatInt(userID, 10)

	spent, err := s.attempts.Count(ctx, verifyAttemptScope, userKey)
	if err != nil {
		return err
	}
	if spent >= s.config.M2FA.ChallengeMaxTry {
		return ErrOTPAttemptsExceeded
	}

	err = s.store.Atomic(ctx, func(r Repos) error {
		u, err := r.Users.ByID(ctx, userID)
		if err != nil {
			return err
		}
		if u.IsVerified {
			return ErrAlreadyVerified
		}

		rec, err := r.OtpTokens.ByUser(ctx, userID, OtpEmailVerification)
		if err != nil {
			return err
		}
		if rec == nil || !rec.ExpiresAt.After(s.now()) {
			return ErrOTPInvalid
		}

		valid, err := otp.Validate(rec.OtpSecret, code, rec.CreatedAt, s.emailOTPOptions(s.config.Verification.OTPTTL))
		if err != nil || !valid {
			return ErrOTPInvalid
		}

		if err := r.OtpTokens.Delete(ctx, rec.ID); err != nil {
			return err
		}
		return s.markVerified(ctx, r, u)
	})
	if err != nil {
		if errors.Is(err, ErrOTPInvalid) {
			if _, bumpErr := s.attempts.Bump(ctx, verifyAttemptScope, userKey, s.config.Verification.OTPTTL); bumpErr != nil {
				return bumpErr
			}
		}
		s.metrics.Inc(MetricVerificationFailure)
		return err
	}

	if err := s.attempts.Reset(ctx, verifyAttemptScope, userKey); err != nil {
		return err
	}

	s.metrics.Inc(MetricVerificationSuccess)
	s.emit(ctx, AuditEvent{EventType: AuditEmailVerified, UserID: userID, Success: true, Metadata: map[string]string{"protocol": "otp"}})
	return nil
}

func (s *Service) markVerified(ctx context.Context, r Repos, u *User) error {
	u.IsVerified = true
	if u.Status == StatusInactive {
		u.Status = StatusActive
	}
	u.UpdatedAt = s.now()
	return r.Users.Update(ctx, u)
}

/*
====================================
EMAIL CHANGE
====================================
*/

// RequestEmailChange describes the request email change operation and its observable behavior.
//
// The password re-proves; the pending address must not belong to another
// account; the confirmation link goes to the NEW address and carries the
// pending email in the token payload.
//
// RequestEmailChange may return an error when input validation, dependency calls, or security checks fail.
// RequestEmailChange does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) RequestEmailChange(ctx context.Context, userID int64, plainPassword, newEmail string) error {
	newEmail = normalizeEmail(newEmail)
	if newEmail == "" || !strings.Contains(newEmail, "@") {
		return errors.New("invalid email address")
	}

	var fullName string
	err := s.store.Atomic(ctx, func(r Repos) error {
		u, err := r.Users.ByID(ctx, userID)
		if err != nil {
			return err
		}

		ok, err := s.passwords.Verify(plainPassword, u.PasswordHash)
		if err != nil || !ok {
			return ErrInvalidCredentials
		}
		if u.Email == newEmail {
			return ErrEmailExists
		}

		taken, err := r.Users.ByEmail(ctx, newEmail)
		if err != nil && !errors.Is(err, ErrUserNotFound) {
			return err
		}
		if taken != nil {
			return ErrEmailExists
		}

		raw, err := randtoken.New(32)
		if err != nil {
			return err
		}

		now := s.now()
		if err := r.Tokens.Replace(ctx, &Token{
			UserID:    u.ID,
			Type:      TokenChangeEmail,
			TokenHash: randtoken.Hash(raw),
			Payload:   newEmail,
			ExpiresAt: now.Add(s.config.Account.ChangeEmailTTL),
			CreatedAt: now,
		}); err != nil {
			return err
		}

		fullName = u.FullName
		s.sendEmail(ctx, Email{
			Kind:      EmailChangeEmail,
			To:        newEmail,
			FullName:  fullName,
			Link:      raw,
			NewEmail:  newEmail,
			ExpiresIn: s.config.Account.ChangeEmailTTL.String(),
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.Inc(MetricEmailChangeRequest)
	s.emit(ctx, AuditEvent{EventType: AuditEmailChange, UserID: userID, Success: true, Metadata: map[string]string{"stage": "requested"}})
	return nil
}

// ConfirmEmailChange describes the confirm email change operation and its observable behavior.
//
// Confirmation swaps the address, re-checks uniqueness, marks the address
// verified, revokes every session and refresh token, deletes any
// outstanding link and OTP tokens, and notifies both the old and the new
// mailbox.
//
// ConfirmEmailChange may return an error when input validation, dependency calls, or security checks fail.
// ConfirmEmailChange does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) ConfirmEmailChange(ctx context.Context, rawToken string) error {
	var userID int64
	var oldEmail, newEmail, fullName string
	err := s.store.Atomic(ctx, func(r Repos) error {
		tok, err := r.Tokens.ByHash(ctx, TokenChangeEmail, randtoken.Hash(rawToken))
		if err != nil {
			return err
		}
		if tok == nil || !tok.ExpiresAt.After(s.now()) || tok.Payload == "" {
			return ErrTokenInvalid
		}

		u, err := r.Users.ByID(ctx, tok.UserID)
		if err != nil {
			return err
		}

		taken, err := r.Users.ByEmail(ctx, tok.Payload)
		if err != nil && !errors.Is(err, ErrUserNotFound) {
			return err
		}
		if taken != nil {
			return ErrEmailExists
		}

		oldEmail, newEmail, fullName = u.Email, tok.Payload, u.FullName
		userID = u.ID

		u.Email = tok.Payload
		u.IsVerified = true
		u.UpdatedAt = s.now()
		if err := r.Users.Update(ctx, u); err != nil {
			return err
		}
		if err := r.Tokens.Delete(ctx, tok.ID); err != nil {
			return err
		}
		// Links and OTPs were sent to the old address and must not
		// survive the swap.
		for _, typ := range []TokenType{TokenEmailVerification, TokenPasswordReset, TokenChangeEmail} {
			if _, err := r.Tokens.DeleteForUser(ctx, u.ID, typ); err != nil {
				return err
			}
		}
		for _, typ := range []OtpTokenType{OtpEmailVerification, OtpResetPassword} {
			if _, err := r.OtpTokens.DeleteForUser(ctx, u.ID, typ); err != nil {
				return err
			}
		}
		return s.revokeEverything(ctx, r, u.ID, RevokeEmailChange)
	})
	if err != nil {
		return err
	}

	s.metrics.Inc(MetricEmailChangeSuccess)
	s.emit(ctx, AuditEvent{EventType: AuditEmailChange, UserID: userID, Email: newEmail, Success: true, Metadata: map[string]string{"stage": "confirmed"}})
	s.sendEmail(ctx, Email{Kind: EmailEmailChanged, To: oldEmail, FullName: fullName, NewEmail: newEmail})
	s.sendEmail(ctx, Email{Kind: EmailEmailChanged, To: newEmail, FullName: fullName, NewEmail: newEmail})
	return nil
}
