package authcore

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/crewlink/authcore/token"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Token        TokenConfig
	Password     PasswordConfig
	TOTP         TOTPConfig
	M2FA         M2FAConfig
	Verification VerificationConfig
	Reset        ResetConfig
	Account      AccountConfig
	OAuth        OAuthConfig
	RateLimit    RateLimitConfig
	Cookie       CookieConfig
	Redis        RedisConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by authcore APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	SessionGrace  time.Duration
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by authcore APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	BcryptCost int
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig defines a public type used by authcore APIs.
//
// TOTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Skew      int
	Algorithm string
}

// M2FAConfig defines a public type used by authcore APIs.
//
// M2FAConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type M2FAConfig struct {
	ChallengeTTL     time.Duration
	ChallengeMaxTry  int
	LockoutThreshold int
	LockoutDuration  time.Duration
}

/*
====================================
EMAIL FLOW CONFIG
====================================
*/

// VerificationConfig defines a public type used by authcore APIs.
//
// VerificationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type VerificationConfig struct {
	LinkTTL time.Duration
	OTPTTL  time.Duration
}

// ResetConfig defines a public type used by authcore APIs.
//
// ResetConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ResetConfig struct {
	LinkTTL time.Duration
	OTPTTL  time.Duration
}

// AccountConfig defines a public type used by authcore APIs.
//
// AccountConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AccountConfig struct {
	DefaultRole           string
	SoftDeleteRestoreDays int
	ChangeEmailTTL        time.Duration
}

/*
====================================
OAUTH CONFIG
====================================
*/

// OAuthConfig defines a public type used by authcore APIs.
//
// OAuthConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OAuthConfig struct {
	StateSecret  []byte
	LinkTokenTTL time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig defines a public type used by authcore APIs.
//
// Fixed-window counters keyed per recipient; both windows apply.
type RateLimitConfig struct {
	Enabled    bool
	PerHour    int
	PerDay     int
	RedisKeyNS string
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig defines a public type used by authcore APIs.
//
// CookieConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CookieConfig struct {
	AccessName  string
	RefreshName string
	SessionName string
	Domain      string
	Path        string
	Secure      bool
	SameSite    http.SameSite
}

/*
====================================
REDIS CONFIG
====================================
*/

// RedisConfig defines a public type used by authcore APIs.
//
// Used only when the builder is asked to open its own client; ignored when
// an existing client is injected.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// AuditConfig defines a public type used by authcore APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authcore APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. Secrets are empty and
// must be filled in before Validate passes.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:    15 * time.Minute,
			RefreshTTL:   7 * 24 * time.Hour,
			Issuer:       "authcore",
			SessionGrace: time.Hour,
			Leeway:       30 * time.Second,
		},
		Password: PasswordConfig{
			BcryptCost: 10,
		},
		TOTP: TOTPConfig{
			Issuer:    "authcore",
			Digits:    6,
			Period:    30,
			Skew:      1,
			Algorithm: "SHA1",
		},
		M2FA: M2FAConfig{
			ChallengeTTL:     5 * time.Minute,
			ChallengeMaxTry:  4,
			LockoutThreshold: 5,
			LockoutDuration:  15 * time.Minute,
		},
		Verification: VerificationConfig{
			LinkTTL: 24 * time.Hour,
			OTPTTL:  5 * time.Minute,
		},
		Reset: ResetConfig{
			LinkTTL: 15 * time.Minute,
			OTPTTL:  5 * time.Minute,
		},
		Account: AccountConfig{
			DefaultRole:           "user",
			SoftDeleteRestoreDays: 14,
			ChangeEmailTTL:        15 * time.Minute,
		},
		OAuth: OAuthConfig{
			LinkTokenTTL: 300 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:    true,
			PerHour:    5,
			PerDay:     10,
			RedisKeyNS: "authcore",
		},
		Cookie: CookieConfig{
			AccessName:  "authentication",
			RefreshName: "refresh",
			SessionName: "session",
			Path:        "/",
			Secure:      true,
			SameSite:    http.SameSiteStrictMode,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.AccessSecret = cloneBytes(cfg.Token.AccessSecret)
	out.Token.RefreshSecret = cloneBytes(cfg.Token.RefreshSecret)
	out.OAuth.StateSecret = cloneBytes(cfg.OAuth.StateSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c *Config) tokenConfig() token.Config {
	return token.Config{
		AccessTTL:     c.Token.AccessTTL,
		RefreshTTL:    c.Token.RefreshTTL,
		AccessSecret:  c.Token.AccessSecret,
		RefreshSecret: c.Token.RefreshSecret,
		Issuer:        c.Token.Issuer,
		SessionGrace:  c.Token.SessionGrace,
		Leeway:        c.Token.Leeway,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Token
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token RefreshTTL must be > 0")
	}
	if len(c.Token.AccessSecret) < 32 {
		return errors.New("Token AccessSecret must be >= 32 bytes")
	}
	if len(c.Token.RefreshSecret) < 32 {
		return errors.New("Token RefreshSecret must be >= 32 bytes")
	}
	if string(c.Token.AccessSecret) == string(c.Token.RefreshSecret) {
		return errors.New("Token AccessSecret and RefreshSecret must differ")
	}
	if c.Token.SessionGrace < 0 {
		return errors.New("Token SessionGrace must be >= 0")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}

	// Password
	if c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31 {
		return errors.New("Password BcryptCost must be between 4 and 31")
	}

	// TOTP
	if c.TOTP.Issuer == "" {
		return errors.New("TOTP Issuer is required")
	}
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Period < 15 {
		return errors.New("TOTP Period must be >= 15 seconds")
	}
	if c.TOTP.Skew < 0 {
		return errors.New("TOTP Skew must be >= 0")
	}
	switch strings.ToUpper(c.TOTP.Algorithm) {
	case "", "SHA1", "SHA256", "SHA512":
		// empty treated as SHA1
	default:
		return errors.New("TOTP Algorithm must be SHA1, SHA256, or SHA512")
	}

	// M2FA
	if c.M2FA.ChallengeTTL <= 0 {
		return errors.New("M2FA ChallengeTTL must be > 0")
	}
	if c.M2FA.ChallengeMaxTry <= 0 {
		return errors.New("M2FA ChallengeMaxTry must be > 0")
	}
	if c.M2FA.LockoutThreshold <= 0 {
		return errors.New("M2FA LockoutThreshold must be > 0")
	}
	if c.M2FA.LockoutDuration <= 0 {
		return errors.New("M2FA LockoutDuration must be > 0")
	}

	// Email flows
	if c.Verification.LinkTTL <= 0 {
		return errors.New("Verification LinkTTL must be > 0")
	}
	if c.Verification.OTPTTL <= 0 {
		return errors.New("Verification OTPTTL must be > 0")
	}
	if c.Reset.LinkTTL <= 0 {
		return errors.New("Reset LinkTTL must be > 0")
	}
	if c.Reset.OTPTTL <= 0 {
		return errors.New("Reset OTPTTL must be > 0")
	}

	// Account
	if c.Account.DefaultRole == "" {
		return errors.New("Account DefaultRole is required")
	}
	if c.Account.SoftDeleteRestoreDays <= 0 {
		return errors.New("Account SoftDeleteRestoreDays must be > 0")
	}
	if c.Account.ChangeEmailTTL <= 0 {
		return errors.New("Account ChangeEmailTTL must be > 0")
	}

	// OAuth
	if len(c.OAuth.StateSecret) > 0 && len(c.OAuth.StateSecret) < 32 {
		return errors.New("OAuth StateSecret must be >= 32 bytes when set")
	}
	if c.OAuth.LinkTokenTTL <= 0 {
		return errors.New("OAuth LinkTokenTTL must be > 0")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.PerHour <= 0 {
			return errors.New("RateLimit PerHour must be > 0 when enabled")
		}
		if c.RateLimit.PerDay <= 0 {
			return errors.New("RateLimit PerDay must be > 0 when enabled")
		}
		if c.RateLimit.PerDay < c.RateLimit.PerHour {
			return errors.New("RateLimit PerDay must be >= PerHour")
		}
		if c.RateLimit.RedisKeyNS == "" {
			return errors.New("RateLimit RedisKeyNS is required when enabled")
		}
	}

	// Cookies
	if c.Cookie.AccessName == "" || c.Cookie.RefreshName == "" || c.Cookie.SessionName == "" {
		return errors.New("Cookie names must all be set")
	}
	if c.Cookie.Path == "" {
		return errors.New("Cookie Path is required")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
