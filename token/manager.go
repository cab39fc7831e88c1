package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const minSecretLen = 32

var (
	// ErrExpired is an exported constant or variable used by the token manager.
	ErrExpired = errors.New("token expired")
	// ErrMalformed is an exported constant or variable used by the token manager.
	ErrMalformed = errors.New("token malformed")
	// ErrNotYetValid is an exported constant or variable used by the token manager.
	ErrNotYetValid = errors.New("token not yet valid")
	// ErrInvalid is an exported constant or variable used by the token manager.
	ErrInvalid = errors.New("token invalid")
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	SessionGrace  time.Duration
	Leeway        time.Duration
}

// Payload defines a public type used by authcore APIs.
//
// Payload instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Payload struct {
	UserID            int64
	SessionID         string
	M2FAAuthenticated bool
	M2FARequired      bool
}

// Claims defines a public type used by authcore APIs.
//
// Claims instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Claims struct {
	UserID            int64  `json:"user_id"`
	SessionID         string `json:"session_id"`
	M2FAAuthenticated bool   `json:"m2fa_authenticated"`
	M2FARequired      bool   `json:"m2fa_required"`
	jwt.RegisteredClaims
}

// Payload returns the logical claim set carried by c.
func (c *Claims) Payload() Payload {
	return Payload{
		UserID:            c.UserID,
		SessionID:         c.SessionID,
		M2FAAuthenticated: c.M2FAAuthenticated,
		M2FARequired:      c.M2FARequired,
	}
}

// Pair defines a public type used by authcore APIs.
//
// Pair instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	SessionExpiresAt time.Time
}

// Manager defines a public type used by authcore APIs.
//
// Manager instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Manager struct {
	config Config
}

// NewManager describes the newmanager operation and its observable behavior.
//
// NewManager may return an error when input validation, dependency calls, or security checks fail.
// NewManager does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if len(cfg.AccessSecret) < minSecretLen {
		return nil, fmt.Errorf("access secret must be at least %d bytes", minSecretLen)
	}
	if len(cfg.RefreshSecret) < minSecretLen {
		return nil, fmt.Errorf("refresh secret must be at least %d bytes", minSecretLen)
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.SessionGrace <= 0 {
		cfg.SessionGrace = time.Hour
	}
	return &Manager{config: cfg}, nil
}

// IssuePair describes the issuepair operation and its observable behavior.
// Both tokens are minted relative to the caller-supplied now so issuance
// stays aligned with the service clock.
//
// IssuePair may return an error when input validation, dependency calls, or security checks fail.
// IssuePair does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) IssuePair(p Payload, now time.Time) (Pair, error) {
	access, accessExp, err := m.sign(p, now, m.config.AccessTTL, m.config.AccessSecret)
	if err != nil {
		return Pair{}, err
	}
	refresh, refreshExp, err := m.sign(p, now, m.config.RefreshTTL, m.config.RefreshSecret)
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		SessionExpiresAt: refreshExp.Add(m.config.SessionGrace),
	}, nil
}

// ParseAccess describes the parseaccess operation and its observable behavior.
//
// ParseAccess may return an error when input validation, dependency calls, or security checks fail.
// ParseAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) ParseAccess(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, m.config.AccessSecret, time.Time{})
}

// ParseRefresh describes the parserefresh operation and its observable behavior.
// Expiry and not-before checks run against the caller-supplied now.
//
// ParseRefresh may return an error when input validation, dependency calls, or security checks fail.
// ParseRefresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) ParseRefresh(tokenStr string, now time.Time) (*Claims, error) {
	return m.parse(tokenStr, m.config.RefreshSecret, now)
}

func (m *Manager) sign(p Payload, now time.Time, ttl time.Duration, secret []byte) (string, time.Time, error) {
	exp := now.Add(ttl)

	claims := Claims{
		UserID:            p.UserID,
		SessionID:         p.SessionID,
		M2FAAuthenticated: p.M2FAAuthenticated,
		M2FARequired:      p.M2FARequired,
		RegisteredClaims: jwt.RegisteredClaims{
			// Random jti keeps same-second mints distinct so refresh
			// rotation always invalidates the presented token.
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (m *Manager) parse(tokenStr string, secret []byte, now time.Time) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if !now.IsZero() {
		options = append(options, jwt.WithTimeFunc(func() time.Time { return now }))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	if claims.UserID <= 0 || claims.SessionID == "" {
		return nil, ErrMalformed
	}

	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %v", ErrNotYetValid, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
}
