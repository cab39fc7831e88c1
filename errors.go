package authcore

import "errors"

var (
	// ErrInvalidCredentials is an exported constant or variable used by the authentication service.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is an exported constant or variable used by the authentication service.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailExists is an exported constant or variable used by the authentication service.
	ErrEmailExists = errors.New("email already registered")
	// ErrSessionNotFound is an exported constant or variable used by the authentication service.
	ErrSessionNotFound = errors.New("no active session found")
	// ErrRefreshInvalid is an exported constant or variable used by the authentication service.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrTokenInvalid is an exported constant or variable used by the authentication service.
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrPasswordReuse is an exported constant or variable used by the authentication service.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrAlreadyVerified is an exported constant or variable used by the authentication service.
	ErrAlreadyVerified = errors.New("email already verified")
	// ErrOTPInvalid is an exported constant or variable used by the authentication service.
	ErrOTPInvalid = errors.New("invalid or expired code")
	// ErrOTPAttemptsExceeded is an exported constant or variable used by the authentication service.
	ErrOTPAttemptsExceeded = errors.New("too many attempts")
	// ErrChallengeInvalid is an exported constant or variable used by the authentication service.
	ErrChallengeInvalid = errors.New("challenge invalid or expired")
	// ErrTOTPNotConfigured is an exported constant or variable used by the authentication service.
	ErrTOTPNotConfigured = errors.New("authenticator not configured")
	// ErrTOTPInvalid is an exported constant or variable used by the authentication service.
	ErrTOTPInvalid = errors.New("invalid authenticator code")
	// ErrM2FALocked is an exported constant or variable used by the authentication service.
	ErrM2FALocked = errors.New("authenticator locked after repeated failures")
	// ErrM2FANotEnabled is an exported constant or variable used by the authentication service.
	ErrM2FANotEnabled = errors.New("two-factor authentication not enabled")
	// ErrRateLimited is an exported constant or variable used by the authentication service.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrPermissionDenied is an exported constant or variable used by the authentication service.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrRestoreWindowExpired is an exported constant or variable used by the authentication service.
	ErrRestoreWindowExpired = errors.New("account restore window expired")
	// ErrAccountNotDeleted is an exported constant or variable used by the authentication service.
	ErrAccountNotDeleted = errors.New("account is not deleted")
	// ErrDefaultRoleMissing is an exported constant or variable used by the authentication service.
	ErrDefaultRoleMissing = errors.New("default role missing from role store")
	// ErrOAuthStateInvalid is an exported constant or variable used by the authentication service.
	ErrOAuthStateInvalid = errors.New("oauth state rejected")
	// ErrOAuthEmailUnverified is an exported constant or variable used by the authentication service.
	ErrOAuthEmailUnverified = errors.New("oauth provider email not verified")
	// ErrOAuthLinkInvalid is an exported constant or variable used by the authentication service.
	ErrOAuthLinkInvalid = errors.New("oauth link token invalid or expired")
	// ErrOAuthAccountExists is an exported constant or variable used by the authentication service.
	ErrOAuthAccountExists = errors.New("oauth account already linked")
	// ErrOAuthAccountNotFound is an exported constant or variable used by the authentication service.
	ErrOAuthAccountNotFound = errors.New("oauth account not found")
	// ErrServiceNotReady is an exported constant or variable used by the authentication service.
	ErrServiceNotReady = errors.New("service not initialized")
	// ErrCacheUnavailable is an exported constant or variable used by the authentication service.
	ErrCacheUnavailable = errors.New("cache backend unavailable")
)

// ErrorKind defines a public type used by authcore APIs.
//
// ErrorKind instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ErrorKind int

const (
	// KindInternal is an exported constant or variable used by the authentication service.
	KindInternal ErrorKind = iota
	// KindNotFound is an exported constant or variable used by the authentication service.
	KindNotFound
	// KindBadRequest is an exported constant or variable used by the authentication service.
	KindBadRequest
	// KindUnauthorized is an exported constant or variable used by the authentication service.
	KindUnauthorized
	// KindForbidden is an exported constant or variable used by the authentication service.
	KindForbidden
)

// KindOf maps a service error to its transport-facing taxonomy. Unknown
// errors classify as internal so misconfiguration stays loud and generic.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrOAuthAccountNotFound):
		return KindNotFound

	case errors.Is(err, ErrEmailExists),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrPasswordReuse),
		errors.Is(err, ErrAlreadyVerified),
		errors.Is(err, ErrChallengeInvalid),
		errors.Is(err, ErrOTPAttemptsExceeded),
		errors.Is(err, ErrAccountNotDeleted),
		errors.Is(err, ErrOAuthLinkInvalid),
		errors.Is(err, ErrOAuthAccountExists),
		errors.Is(err, ErrOAuthStateInvalid),
		errors.Is(err, ErrOAuthEmailUnverified):
		return KindBadRequest

	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrRefreshInvalid),
		errors.Is(err, ErrOTPInvalid),
		errors.Is(err, ErrTOTPInvalid),
		errors.Is(err, ErrTOTPNotConfigured),
		errors.Is(err, ErrM2FANotEnabled):
		return KindUnauthorized

	case errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrM2FALocked),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrRestoreWindowExpired):
		return KindForbidden

	default:
		return KindInternal
	}
}
