package token

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func testManager(t *testing.T, mutate func(*Config)) *Manager {
	t.Helper()

	cfg := Config{
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		AccessSecret:  bytes.Repeat([]byte("a"), 32),
		RefreshSecret: bytes.Repeat([]byte("r"), 32),
		Issuer:        "authcore-test",
	}
	if mutate != nil {
		mutate(&cfg)
	}

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestNewManagerValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero access ttl", func(c *Config) { c.AccessTTL = 0 }},
		{"zero refresh ttl", func(c *Config) { c.RefreshTTL = 0 }},
		{"short access secret", func(c *Config) { c.AccessSecret = []byte("short") }},
		{"short refresh secret", func(c *Config) { c.RefreshSecret = []byte("short") }},
		{"identical secrets", func(c *Config) { c.RefreshSecret = c.AccessSecret }},
		{"negative leeway", func(c *Config) { c.Leeway = -time.Second }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{
				AccessTTL:     time.Minute,
				RefreshTTL:    time.Hour,
				AccessSecret:  bytes.Repeat([]byte("a"), 32),
				RefreshSecret: bytes.Repeat([]byte("r"), 32),
			}
			tc.mutate(&cfg)
			if _, err := NewManager(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestIssuePairRoundTrip(t *testing.T) {
	m := testManager(t, nil)

	pair, err := m.IssuePair(Payload{UserID: 7, SessionID: "sid-1", M2FARequired: true}, time.Now())
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatal("access and refresh tokens must differ")
	}
	if !pair.SessionExpiresAt.Equal(pair.RefreshExpiresAt.Add(time.Hour)) {
		t.Fatalf("session expiry must be refresh expiry + 1h, got %v vs %v", pair.SessionExpiresAt, pair.RefreshExpiresAt)
	}

	access, err := m.ParseAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if access.UserID != 7 || access.SessionID != "sid-1" {
		t.Fatalf("unexpected access claims: %+v", access)
	}
	if !access.M2FARequired || access.M2FAAuthenticated {
		t.Fatalf("unexpected m2fa claims: %+v", access)
	}

	refresh, err := m.ParseRefresh(pair.RefreshToken, time.Now())
	if err != nil {
		t.Fatalf("ParseRefresh: %v", err)
	}
	if refresh.UserID != 7 || refresh.SessionID != "sid-1" {
		t.Fatalf("unexpected refresh claims: %+v", refresh)
	}
}

func TestIssuePairSameInstantMintsDistinctTokens(t *testing.T) {
	m := testManager(t, nil)
	now := time.Now().Truncate(time.Second)

	p := Payload{UserID: 42, SessionID: "sid-rot"}
	first, err := m.IssuePair(p, now)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	second, err := m.IssuePair(p, now)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	if first.RefreshToken == second.RefreshToken {
		t.Fatal("refresh tokens minted at the same instant must differ")
	}
	if first.AccessToken == second.AccessToken {
		t.Fatal("access tokens minted at the same instant must differ")
	}
}

func TestParseRefreshHonorsSuppliedClock(t *testing.T) {
	m := testManager(t, nil)
	now := time.Now()

	pair, err := m.IssuePair(Payload{UserID: 9, SessionID: "sid-clock"}, now)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	if _, err := m.ParseRefresh(pair.RefreshToken, now); err != nil {
		t.Fatalf("ParseRefresh at mint time: %v", err)
	}
	late := now.Add(m.config.RefreshTTL + time.Hour)
	if _, err := m.ParseRefresh(pair.RefreshToken, late); !errors.Is(err, ErrExpired) {
		t.Fatalf("want ErrExpired past refresh TTL, got %v", err)
	}
}

func TestTokensAreNotInterchangeable(t *testing.T) {
	m := testManager(t, nil)

	pair, err := m.IssuePair(Payload{UserID: 1, SessionID: "sid"}, time.Now())
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	if _, err := m.ParseAccess(pair.RefreshToken); !errors.Is(err, ErrInvalid) {
		t.Fatalf("refresh token accepted as access token: %v", err)
	}
	if _, err := m.ParseRefresh(pair.AccessToken, time.Now()); !errors.Is(err, ErrInvalid) {
		t.Fatalf("access token accepted as refresh token: %v", err)
	}
}

func TestParseFailureTaxonomy(t *testing.T) {
	m := testManager(t, nil)

	t.Run("expired", func(t *testing.T) {
		// negative TTL yields an already-expired token
		signed, _, err := m.sign(Payload{UserID: 1, SessionID: "sid"}, time.Now(), -time.Minute, m.config.AccessSecret)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		if _, err := m.ParseAccess(signed); !errors.Is(err, ErrExpired) {
			t.Fatalf("want ErrExpired, got %v", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		if _, err := m.ParseAccess("not-a-token"); !errors.Is(err, ErrMalformed) {
			t.Fatalf("want ErrMalformed, got %v", err)
		}
	})

	t.Run("tampered", func(t *testing.T) {
		other := testManager(t, func(c *Config) { c.AccessSecret = bytes.Repeat([]byte("x"), 32) })
		signed, _, err := other.sign(Payload{UserID: 1, SessionID: "sid"}, time.Now(), time.Minute, other.config.AccessSecret)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		m2 := testManager(t, nil)
		if _, err := m2.ParseAccess(signed); !errors.Is(err, ErrInvalid) {
			t.Fatalf("want ErrInvalid, got %v", err)
		}
	})

	t.Run("missing subject claims", func(t *testing.T) {
		m2 := testManager(t, nil)
		signed, _, err := m2.sign(Payload{}, time.Now(), time.Minute, m2.config.AccessSecret)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		if _, err := m2.ParseAccess(signed); !errors.Is(err, ErrMalformed) {
			t.Fatalf("want ErrMalformed, got %v", err)
		}
	})
}
