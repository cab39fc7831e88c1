package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	authcore "github.com/crewlink/authcore"
)

func seedUser(t *testing.T, s *Store, email string) *authcore.User {
	t.Helper()

	u := &authcore.User{
		Email:     email,
		Status:    authcore.StatusActive,
		CreatedAt: time.Now(),
	}
	if err := s.Repos().Users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestAtomicRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Atomic(ctx, func(r authcore.Repos) error {
		if err := r.Users.Create(ctx, &authcore.User{Email: "ghost@example.com"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want callback error, got %v", err)
	}

	if _, err := s.Repos().Users.ByEmail(ctx, "ghost@example.com"); !errors.Is(err, authcore.ErrUserNotFound) {
		t.Fatalf("rolled-back user still visible: %v", err)
	}
}

func TestAtomicCommitsOnSuccess(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.Atomic(ctx, func(r authcore.Repos) error {
		return r.Users.Create(ctx, &authcore.User{Email: "kept@example.com"})
	})
	if err != nil {
		t.Fatalf("atomic: %v", err)
	}

	u, err := s.Repos().Users.ByEmail(ctx, "kept@example.com")
	if err != nil {
		t.Fatalf("lookup after commit: %v", err)
	}
	if u.ID == 0 {
		t.Fatal("committed user has no id")
	}
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedUser(t, s, "dup@example.com")

	err := s.Repos().Users.Create(ctx, &authcore.User{Email: "DUP@example.com"})
	if !errors.Is(err, authcore.ErrEmailExists) {
		t.Fatalf("want ErrEmailExists, got %v", err)
	}
}

func TestReturnedRowsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := seedUser(t, s, "copy@example.com")

	got, err := s.Repos().Users.ByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	got.Email = "mutated@example.com"

	again, err := s.Repos().Users.ByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if again.Email != "copy@example.com" {
		t.Fatalf("stored row mutated through returned copy: %q", again.Email)
	}
}

func TestSessionRevokeReportsFalseOnSecondCall(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := seedUser(t, s, "session@example.com")

	sess := &authcore.Session{ID: "sess-1", UserID: u.ID, IsActive: true, ExpiresAt: time.Now().Add(time.Hour)}
	if err := s.Repos().Sessions.Create(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}

	revoked, err := s.Repos().Sessions.Revoke(ctx, "sess-1", authcore.RevokeManualLogout, time.Now())
	if err != nil || !revoked {
		t.Fatalf("first revoke: revoked=%v err=%v", revoked, err)
	}

	revoked, err = s.Repos().Sessions.Revoke(ctx, "sess-1", authcore.RevokeManualLogout, time.Now())
	if err != nil || revoked {
		t.Fatalf("second revoke should report false: revoked=%v err=%v", revoked, err)
	}
}

func TestTokenReplaceKeepsSingleActiveRow(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := seedUser(t, s, "tokens@example.com")

	first := &authcore.Token{UserID: u.ID, Type: authcore.TokenPasswordReset, TokenHash: "h1", ExpiresAt: time.Now().Add(time.Hour)}
	second := &authcore.Token{UserID: u.ID, Type: authcore.TokenPasswordReset, TokenHash: "h2", ExpiresAt: time.Now().Add(time.Hour)}

	if err := s.Repos().Tokens.Replace(ctx, first); err != nil {
		t.Fatalf("first replace: %v", err)
	}
	if err := s.Repos().Tokens.Replace(ctx, second); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	if tok, _ := s.Repos().Tokens.ByHash(ctx, authcore.TokenPasswordReset, "h1"); tok != nil {
		t.Fatal("replaced token still resolvable")
	}
	tok, err := s.Repos().Tokens.ByHash(ctx, authcore.TokenPasswordReset, "h2")
	if err != nil || tok == nil {
		t.Fatalf("current token not resolvable: tok=%v err=%v", tok, err)
	}
}

func TestRefreshTokenDeleteForSession(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := seedUser(t, s, "refresh@example.com")

	for i, sess := range []string{"a", "a", "b"} {
		rt := &authcore.RefreshToken{UserID: u.ID, SessionID: sess, TokenHash: string(rune('x' + i)), ExpiresAt: time.Now().Add(time.Hour)}
		if err := s.Repos().RefreshTokens.Create(ctx, rt); err != nil {
			t.Fatalf("create refresh token: %v", err)
		}
	}

	n, err := s.Repos().RefreshTokens.DeleteForSession(ctx, "a")
	if err != nil || n != 2 {
		t.Fatalf("want 2 deleted, got n=%d err=%v", n, err)
	}
	n, err = s.Repos().RefreshTokens.DeleteForUser(ctx, u.ID)
	if err != nil || n != 1 {
		t.Fatalf("want 1 remaining deleted, got n=%d err=%v", n, err)
	}
}

func TestM2FAUpsertKeepsID(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := seedUser(t, s, "m2fa@example.com")

	m := &authcore.M2FA{UserID: u.ID, TOTPEnabled: true, TOTPSecret: "seed"}
	if err := s.Repos().M2FA.Upsert(ctx, m); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	firstID := m.ID

	m.FailedAttempts = 3
	if err := s.Repos().M2FA.Upsert(ctx, m); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if m.ID != firstID {
		t.Fatalf("upsert reallocated id: %d != %d", m.ID, firstID)
	}

	got, err := s.Repos().M2FA.ByUserID(ctx, u.ID)
	if err != nil || got == nil || got.FailedAttempts != 3 {
		t.Fatalf("upsert lost state: %+v err=%v", got, err)
	}
}
