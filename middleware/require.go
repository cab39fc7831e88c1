package middleware

import (
	"net/http"

	authcore "github.com/crewlink/authcore"
	"github.com/crewlink/authcore/authz"
)

// RequireAuth returns middleware enforcing the default protected route: a
// valid, fully authenticated token on an account in good standing.
//
//	Docs: docs/middleware.md
func RequireAuth(service *authcore.Service) func(http.Handler) http.Handler {
	return Guard(service, authz.RouteConfig{})
}

// RequireM2FA returns middleware for routes that demand two-factor
// authentication to be enabled on the account, not merely completed for the
// session.
func RequireM2FA(service *authcore.Service) func(http.Handler) http.Handler {
	return Guard(service, authz.RouteConfig{RequireM2FA: true})
}

// RequirePermissions returns middleware that additionally checks the union of
// the account's role permissions against the given requirements.
func RequirePermissions(service *authcore.Service, perms ...authz.Permission) func(http.Handler) http.Handler {
	return Guard(service, authz.RouteConfig{Permissions: perms})
}

// AllowUnverified returns middleware for routes an unverified account must
// still be able to reach, such as resending the verification email.
func AllowUnverified(service *authcore.Service) func(http.Handler) http.Handler {
	return Guard(service, authz.RouteConfig{SkipEmailVerified: true})
}
