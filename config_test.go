package authcore

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := defaultConfig()
	cfg.Token.AccessSecret = bytes.Repeat([]byte("a"), 32)
	cfg.Token.RefreshSecret = bytes.Repeat([]byte("b"), 32)
	return cfg
}

func TestConfigValidateAcceptsDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "short access secret",
			mutate:  func(c *Config) { c.Token.AccessSecret = []byte("short") },
			wantMsg: "AccessSecret",
		},
		{
			name:    "identical secrets",
			mutate:  func(c *Config) { c.Token.RefreshSecret = cloneBytes(c.Token.AccessSecret) },
			wantMsg: "must differ",
		},
		{
			name:    "excessive leeway",
			mutate:  func(c *Config) { c.Token.Leeway = 5 * time.Minute },
			wantMsg: "Leeway",
		},
		{
			name:    "bcrypt cost out of range",
			mutate:  func(c *Config) { c.Password.BcryptCost = 2 },
			wantMsg: "BcryptCost",
		},
		{
			name:    "odd totp digits",
			mutate:  func(c *Config) { c.TOTP.Digits = 7 },
			wantMsg: "Digits",
		},
		{
			name:    "unknown totp algorithm",
			mutate:  func(c *Config) { c.TOTP.Algorithm = "MD5" },
			wantMsg: "Algorithm",
		},
		{
			name:    "daily budget below hourly",
			mutate:  func(c *Config) { c.RateLimit.PerHour = 20 },
			wantMsg: "PerDay",
		},
		{
			name:    "short oauth state secret",
			mutate:  func(c *Config) { c.OAuth.StateSecret = []byte("short") },
			wantMsg: "StateSecret",
		},
		{
			name:    "missing default role",
			mutate:  func(c *Config) { c.Account.DefaultRole = "" },
			wantMsg: "DefaultRole",
		},
		{
			name:    "blank cookie name",
			mutate:  func(c *Config) { c.Cookie.RefreshName = "" },
			wantMsg: "Cookie names",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("error %q does not mention %q", err, tc.wantMsg)
			}
		})
	}
}

func TestCloneConfigDetachesSecrets(t *testing.T) {
	cfg := validConfig()
	clone := cloneConfig(cfg)

	clone.Token.AccessSecret[0] = 'z'
	if cfg.Token.AccessSecret[0] == 'z' {
		t.Fatal("clone shares secret backing array")
	}
}
