package authcore

import (
	"context"
	"net/http"
	"time"

	"github.com/crewlink/authcore/token"
)

// AccountStatus represents the lifecycle state of a user account.
type AccountStatus string

const (
	// StatusActive is an exported constant or variable used by the authentication service.
	StatusActive AccountStatus = "active"
	// StatusInactive is an exported constant or variable used by the authentication service.
	StatusInactive AccountStatus = "inactive"
	// StatusSuspended is an exported constant or variable used by the authentication service.
	StatusSuspended AccountStatus = "suspended"
	// StatusDeactivated is an exported constant or variable used by the authentication service.
	StatusDeactivated AccountStatus = "deactivated"
	// StatusSoftDeleted is an exported constant or variable used by the authentication service.
	StatusSoftDeleted AccountStatus = "soft_deleted"
)

// RevokeReason records why a session stopped being valid.
type RevokeReason string

const (
	// RevokeManualLogout is an exported constant or variable used by the authentication service.
	RevokeManualLogout RevokeReason = "manual_logout"
	// RevokeAllDeviceLogout is an exported constant or variable used by the authentication service.
	RevokeAllDeviceLogout RevokeReason = "all_device_logout"
	// RevokePasswordChange is an exported constant or variable used by the authentication service.
	RevokePasswordChange RevokeReason = "password_change"
	// RevokePasswordReset is an exported constant or variable used by the authentication service.
	RevokePasswordReset RevokeReason = "password_reset"
	// RevokeEmailChange is an exported constant or variable used by the authentication service.
	RevokeEmailChange RevokeReason = "email_change"
	// RevokeAdminRevocation is an exported constant or variable used by the authentication service.
	RevokeAdminRevocation RevokeReason = "admin_revocation"
	// RevokeSuspiciousActivity is an exported constant or variable used by the authentication service.
	RevokeSuspiciousActivity RevokeReason = "suspicious_activity"
)

// TokenType classifies single-use link tokens.
type TokenType string

const (
	// TokenEmailVerification is an exported constant or variable used by the authentication service.
	TokenEmailVerification TokenType = "email_verification"
	// TokenPasswordReset is an exported constant or variable used by the authentication service.
	TokenPasswordReset TokenType = "password_reset"
	// TokenChangeEmail is an exported constant or variable used by the authentication service.
	TokenChangeEmail TokenType = "change_email"
)

// OtpTokenType classifies email OTP correlation tokens.
type OtpTokenType string

const (
	// OtpEmailVerification is an exported constant or variable used by the authentication service.
	OtpEmailVerification OtpTokenType = "email_verification"
	// OtpResetPassword is an exported constant or variable used by the authentication service.
	OtpResetPassword OtpTokenType = "reset_password"
)

// User defines a public type used by authcore APIs.
//
// User instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type User struct {
	ID                    int64
	Email                 string
	PasswordHash          string
	FullName              string
	Phone                 string
	Status                AccountStatus
	IsVerified            bool
	IsM2FAEnabled         bool
	PasswordResetRequired bool
	SuspendedAt           *time.Time
	SuspensionEndsAt      *time.Time
	SuspensionReason      string
	DeletedAt             *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Role defines a public type used by authcore APIs.
//
// Role instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Role struct {
	ID          int64
	Name        string
	Permissions []string // "resource:action" strings
}

// Session defines a public type used by authcore APIs.
//
// Session instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Session struct {
	ID                string
	UserID            int64
	DeviceFingerprint string
	IPAddress         string
	UserAgent         string
	IsActive          bool
	LastActivityAt    *time.Time
	ExpiresAt         time.Time
	RevokedAt         *time.Time
	RevokeReason      RevokeReason
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RefreshToken defines a public type used by authcore APIs.
//
// Only the sha256 hash of the bearer string is stored.
type RefreshToken struct {
	ID        int64
	UserID    int64
	SessionID string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Token is a single-use link token. At most one row is active per
// (user, type); issuing a new one replaces the prior one.
type Token struct {
	ID        int64
	UserID    int64
	Type      TokenType
	TokenHash string
	Payload   string // pending email address for change_email tokens
	ExpiresAt time.Time
	CreatedAt time.Time
}

// OtpToken pairs a hashed correlation token with the TOTP seed backing an
// emailed verification or reset code. Same single-active-per-(user,type)
// invariant as [Token].
type OtpToken struct {
	ID        int64
	UserID    int64
	Type      OtpTokenType
	TokenHash string
	OtpSecret string // base32 seed
	ExpiresAt time.Time
	CreatedAt time.Time
}

// M2FA is the durable authenticator configuration, at most one row per user.
// Absence of a row means an authenticator app was never confirmed; the
// email OTP second factor still works for users with m2fa enabled.
type M2FA struct {
	ID                  int64
	UserID              int64
	TOTPEnabled         bool
	TOTPSecret          string
	TOTPVerifiedAt      *time.Time
	FailedAttempts      int
	LastFailedAttemptAt *time.Time
	LockedUntil         *time.Time
}

// OAuthAccount defines a public type used by authcore APIs.
//
// OAuthAccount instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OAuthAccount struct {
	ID                int64
	UserID            int64
	Provider          string
	ProviderAccountID string
	CreatedAt         time.Time
}

/*
====================================
REPOSITORY INTERFACES
====================================
*/

// UserRepository describes durable user storage.
//
// Implementations return [ErrUserNotFound] for missing rows and
// [ErrEmailExists] on unique-email violations.
type UserRepository interface {
	ByID(ctx context.Context, id int64) (*User, error)
	ByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	AssignRole(ctx context.Context, userID, roleID int64) error
}

// RoleRepository describes role and permission lookup.
//
// Implementations return [ErrDefaultRoleMissing] when ByName misses.
type RoleRepository interface {
	ByName(ctx context.Context, name string) (*Role, error)
	ForUser(ctx context.Context, userID int64) ([]Role, error)
}

// SessionRepository describes durable session storage.
//
// Revocation flips is_active with a timestamp and reason; rows are never
// hard-deleted. Callers pair every revocation with refresh-token deletion
// inside the same atomic scope.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	ByID(ctx context.Context, id string) (*Session, error)
	ActiveForUser(ctx context.Context, userID int64) ([]Session, error)
	// Revoke reports false when the session was already inactive or absent.
	Revoke(ctx context.Context, id string, reason RevokeReason, at time.Time) (bool, error)
	RevokeAllForUser(ctx context.Context, userID int64, reason RevokeReason, at time.Time) (int, error)
	Unrevoke(ctx context.Context, id string) error
	Touch(ctx context.Context, id string, at time.Time) error
}

// RefreshTokenRepository describes durable refresh-token storage.
//
// RefreshTokenRepository instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RefreshTokenRepository interface {
	Create(ctx context.Context, rt *RefreshToken) error
	ByHash(ctx context.Context, hash string) (*RefreshToken, error)
	Delete(ctx context.Context, id int64) error
	DeleteForSession(ctx context.Context, sessionID string) (int, error)
	DeleteForUser(ctx context.Context, userID int64) (int, error)
}

// TokenRepository describes single-use link-token storage.
//
// Replace enforces the single-active-per-(user,type) invariant by deleting
// any prior row before inserting the new one.
type TokenRepository interface {
	Replace(ctx context.Context, t *Token) error
	ByHash(ctx context.Context, typ TokenType, hash string) (*Token, error)
	Delete(ctx context.Context, id int64) error
	DeleteForUser(ctx context.Context, userID int64, typ TokenType) (int, error)
}

// OtpTokenRepository describes email OTP token storage.
//
// Replace enforces the single-active-per-(user,type) invariant by deleting
// any prior row before inserting the new one.
type OtpTokenRepository interface {
	Replace(ctx context.Context, t *OtpToken) error
	ByHash(ctx context.Context, typ OtpTokenType, hash string) (*OtpToken, error)
	ByUser(ctx context.Context, userID int64, typ OtpTokenType) (*OtpToken, error)
	Delete(ctx context.Context, id int64) error
	DeleteForUser(ctx context.Context, userID int64, typ OtpTokenType) (int, error)
}

// M2FARepository describes authenticator configuration storage.
//
// ByUserID returns (nil, nil) when no row exists.
type M2FARepository interface {
	ByUserID(ctx context.Context, userID int64) (*M2FA, error)
	Upsert(ctx context.Context, m *M2FA) error
	Delete(ctx context.Context, userID int64) error
}

// OAuthAccountRepository describes provider-link storage.
//
// Lookup methods return (nil, nil) when no link exists.
type OAuthAccountRepository interface {
	ByProviderAccount(ctx context.Context, provider, providerAccountID string) (*OAuthAccount, error)
	ByUserAndProvider(ctx context.Context, userID int64, provider string) (*OAuthAccount, error)
	Create(ctx context.Context, a *OAuthAccount) error
	Delete(ctx context.Context, id int64) error
}

// Repos bundles the repositories visible inside one transaction scope.
type Repos struct {
	Users         UserRepository
	Roles         RoleRepository
	Sessions      SessionRepository
	RefreshTokens RefreshTokenRepository
	Tokens        TokenRepository
	OtpTokens     OtpTokenRepository
	M2FA          M2FARepository
	OAuthAccounts OAuthAccountRepository
}

// Store is the relational collaborator behind the service. Atomic runs fn
// inside a single transaction with commit-or-rollback semantics; an error
// mid-operation must leave no partial state behind.
type Store interface {
	Repos() Repos
	Atomic(ctx context.Context, fn func(Repos) error) error
}

/*
====================================
RESULTS
====================================
*/

// SessionContext carries the request attribution recorded on a new session.
type SessionContext struct {
	DeviceFingerprint string
	IPAddress         string
	UserAgent         string
}

// AuthResult defines a public type used by authcore APIs.
//
// AuthResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuthResult struct {
	User         *User
	Session      *Session
	Tokens       token.Pair
	M2FARequired bool
	NextActions  []NextAction
	Cookies      []CookieSpec
}

// TOTPSetup defines a public type used by authcore APIs.
//
// The secret is returned to the caller for QR display but is not persisted
// until the first code is confirmed.
type TOTPSetup struct {
	Secret       string
	ProvisionURI string
}

// CookieSpec describes one cookie the transport layer should set in
// cookie-auth mode. The service never writes HTTP responses itself.
type CookieSpec struct {
	Name     string
	Value    string
	Expires  time.Time
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
	Path     string
}
