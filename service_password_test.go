package authcore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	authcore "github.com/crewlink/authcore"
)

func TestChangePasswordReProvesAndRejectsReuse(t *testing.T) {
	env := newTestEnv(t)
	res := env.registerVerified(t, "change@example.com", "oldpassword1")
	ctx := context.Background()

	err := env.svc.ChangePassword(ctx, res.User.ID, res.Session.ID, "wrong", "newpassword1", false)
	if !errors.Is(err, authcore.ErrInvalidCredentials) {
		t.Fatalf("wrong old password: want ErrInvalidCredentials, got %v", err)
	}

	err = env.svc.ChangePassword(ctx, res.User.ID, res.Session.ID, "oldpassword1", "oldpassword1", false)
	if !errors.Is(err, authcore.ErrPasswordReuse) {
		t.Fatalf("same password: want ErrPasswordReuse, got %v", err)
	}

	if err := env.svc.ChangePassword(ctx, res.User.ID, res.Session.ID, "oldpassword1", "newpassword1", false); err != nil {
		t.Fatalf("change password: %v", err)
	}

	if _, err := env.svc.Login(ctx, "change@example.com", "oldpassword1"); !errors.Is(err, authcore.ErrInvalidCredentials) {
		t.Fatalf("old password still works: %v", err)
	}
	if _, err := env.svc.Login(ctx, "change@example.com", "newpassword1"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
	if _, ok := env.mailer.lastOfKind(authcore.EmailPasswordChanged); !ok {
		t.Fatal("password changed notification not sent")
	}
}

func TestChangePasswordSparesCallingSession(t *testing.T) {
	env := newTestEnv(t)
	res := env.registerVerified(t, "spare@example.com", "oldpassword1")
	ctx := context.Background()

	other, err := env.svc.Login(ctx, "spare@example.com", "oldpassword1")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	if err := env.svc.ChangePassword(ctx, res.User.ID, res.Session.ID, "oldpassword1", "newpassword1", true); err != nil {
		t.Fatalf("change password: %v", err)
	}

	// the other device's session is gone
	if _, err := env.svc.RefreshTokens(ctx, other.Tokens.RefreshToken); err == nil {
		t.Fatal("other session survived revocation")
	}
	// the calling session keeps rotating
	if _, err := env.svc.RefreshTokens(ctx, res.Tokens.RefreshToken); err != nil {
		t.Fatalf("calling session revoked: %v", err)
	}
}

func TestRequestPasswordResetHidesUnknownAddresses(t *testing.T) {
	env := newTestEnv(t)

	if err := env.svc.RequestPasswordReset(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("unknown address must not error: %v", err)
	}
	if n := env.mailer.countOfKind(authcore.EmailPasswordReset); n != 0 {
		t.Fatalf("reset email sent to unknown address: %d", n)
	}
}

func TestResetPasswordByLinkInvalidatesEverything(t *testing.T) {
	env := newTestEnv(t)
	res := env.registerVerified(t, "reset@example.com", "oldpassword1")
	ctx := context.Background()

	if err := env.svc.RequestPasswordReset(ctx, "reset@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	msg, ok := env.mailer.lastOfKind(authcore.EmailPasswordReset)
	if !ok {
		t.Fatal("no reset email captured")
	}

	if err := env.svc.ResetPasswordByLink(ctx, msg.Link, "newpassword1"); err != nil {
		t.Fatalf("reset by link: %v", err)
	}

	// every session died with the reset
	if _, err := env.svc.RefreshTokens(ctx, res.Tokens.RefreshToken); err == nil {
		t.Fatal("session survived password reset")
	}
	if _, err := env.svc.Login(ctx, "reset@example.com", "newpassword1"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}

	// the link is single-use
	if err := env.svc.ResetPasswordByLink(ctx, msg.Link, "anotherpass1"); !errors.Is(err, authcore.ErrTokenInvalid) {
		t.Fatalf("consumed link reuse: want ErrTokenInvalid, got %v", err)
	}
}

func TestResetLinkExpires(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "stale@example.com", "oldpassword1")
	ctx := context.Background()

	if err := env.svc.RequestPasswordReset(ctx, "stale@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	msg, _ := env.mailer.lastOfKind(authcore.EmailPasswordReset)

	env.clock.Advance(env.cfg.Reset.LinkTTL + time.Minute)

	if err := env.svc.ResetPasswordByLink(ctx, msg.Link, "newpassword1"); !errors.Is(err, authcore.ErrTokenInvalid) {
		t.Fatalf("expired link: want ErrTokenInvalid, got %v", err)
	}
}

func TestNewResetLinkReplacesOld(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "replace@example.com", "oldpassword1")
	ctx := context.Background()

	if err := env.svc.RequestPasswordReset(ctx, "replace@example.com"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	first, _ := env.mailer.lastOfKind(authcore.EmailPasswordReset)

	if err := env.svc.RequestPasswordReset(ctx, "replace@example.com"); err != nil {
		t.Fatalf("second request: %v", err)
	}
	second, _ := env.mailer.lastOfKind(authcore.EmailPasswordReset)

	if err := env.svc.ResetPasswordByLink(ctx, first.Link, "newpassword1"); !errors.Is(err, authcore.ErrTokenInvalid) {
		t.Fatalf("replaced link: want ErrTokenInvalid, got %v", err)
	}
	if err := env.svc.ResetPasswordByLink(ctx, second.Link, "newpassword1"); err != nil {
		t.Fatalf("current link: %v", err)
	}
}

func TestResetPasswordByOTP(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "otp@example.com", "oldpassword1")
	ctx := context.Background()

	if err := env.svc.RequestPasswordResetOTP(ctx, "otp@example.com"); err != nil {
		t.Fatalf("request otp: %v", err)
	}
	msg, ok := env.mailer.lastOfKind(authcore.EmailPasswordResetOTP)
	if !ok {
		t.Fatal("no otp email captured")
	}
	if msg.Code == "" {
		t.Fatal("otp email carries no code")
	}

	if err := env.svc.ResetPasswordByOTP(ctx, "otp@example.com", msg.Code, "newpassword1"); err != nil {
		t.Fatalf("reset by otp: %v", err)
	}
	if _, err := env.svc.Login(ctx, "otp@example.com", "newpassword1"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}

func TestResetOTPAttemptBudget(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "budget@example.com", "oldpassword1")
	ctx := context.Background()

	if err := env.svc.RequestPasswordResetOTP(ctx, "budget@example.com"); err != nil {
		t.Fatalf("request otp: %v", err)
	}
	msg, _ := env.mailer.lastOfKind(authcore.EmailPasswordResetOTP)

	for i := 0; i < env.cfg.M2FA.ChallengeMaxTry; i++ {
		err := env.svc.ResetPasswordByOTP(ctx, "budget@example.com", "000000", "newpassword1")
		if !errors.Is(err, authcore.ErrOTPInvalid) {
			t.Fatalf("attempt %d: want ErrOTPInvalid, got %v", i+1, err)
		}
	}

	// the correct code is now useless
	err := env.svc.ResetPasswordByOTP(ctx, "budget@example.com", msg.Code, "newpassword1")
	if !errors.Is(err, authcore.ErrOTPAttemptsExceeded) {
		t.Fatalf("want ErrOTPAttemptsExceeded, got %v", err)
	}
}

func TestResetRequestsAreRateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "flood@example.com", "oldpassword1")
	ctx := context.Background()

	var err error
	for i := 0; i < env.cfg.RateLimit.PerHour; i++ {
		if err = env.svc.RequestPasswordReset(ctx, "flood@example.com"); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}

	err = env.svc.RequestPasswordReset(ctx, "flood@example.com")
	if !errors.Is(err, authcore.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
}
