package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	authcore "github.com/crewlink/authcore"
	"github.com/crewlink/authcore/authz"
	"github.com/crewlink/authcore/token"
)

// DefaultAccessCookie is the cookie consulted for an access token when no
// Authorization header is present. It matches the default cookie name the
// service issues on login.
const DefaultAccessCookie = "authentication"

type claimsContextKey struct{}

type decisionContextKey struct{}

// ClaimsFromContext describes the claims from context operation and its observable behavior.
//
// ClaimsFromContext may return an error when input validation, dependency calls, or security checks fail.
// ClaimsFromContext does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*token.Claims)
	return claims, ok
}

// DecisionFromContext describes the decision from context operation and its observable behavior.
//
// DecisionFromContext may return an error when input validation, dependency calls, or security checks fail.
// DecisionFromContext does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DecisionFromContext(ctx context.Context) (*authz.Decision, bool) {
	decision, ok := ctx.Value(decisionContextKey{}).(*authz.Decision)
	return decision, ok
}

// Options defines a public type used by authcore APIs.
//
// Options instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Options struct {
	// AccessCookie is the cookie name consulted when no Authorization
	// header is present. Empty disables the cookie fallback.
	AccessCookie string
	// FingerprintHeader names the request header carrying the client
	// device fingerprint. Empty disables fingerprint propagation.
	FingerprintHeader string
}

func defaultOptions() Options {
	return Options{
		AccessCookie:      DefaultAccessCookie,
		FingerprintHeader: "X-Device-Fingerprint",
	}
}

// Guard describes the guard operation and its observable behavior.
//
// Guard extracts the access token from the Authorization header or the
// configured cookie, submits it to the authorization pipeline for the given
// route, and on success injects the token claims and the decision into the
// request context. Missing or invalid tokens yield 401; a denied decision
// yields 403 with a JSON body describing the reason and required action.
//
// Guard may return an error when input validation, dependency calls, or security checks fail.
// Guard does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func Guard(service *authcore.Service, route authz.RouteConfig) func(http.Handler) http.Handler {
	return GuardWith(service, route, defaultOptions())
}

// GuardWith describes the guard with operation and its observable behavior.
//
// GuardWith may return an error when input validation, dependency calls, or security checks fail.
// GuardWith does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func GuardWith(service *authcore.Service, route authz.RouteConfig, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if service == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := requestContext(r, opts)
			accessToken := extractToken(r, opts.AccessCookie)

			decision, claims, err := service.Authorize(ctx, accessToken, route)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !decision.Allowed {
				writeDenied(w, decision)
				return
			}

			ctx = context.WithValue(ctx, decisionContextKey{}, decision)
			if claims != nil {
				ctx = context.WithValue(ctx, claimsContextKey{}, claims)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestContext(r *http.Request, opts Options) context.Context {
	ctx := authcore.WithClientIP(r.Context(), clientIP(r))
	if ua := r.UserAgent(); ua != "" {
		ctx = authcore.WithUserAgent(ctx, ua)
	}
	if opts.FingerprintHeader != "" {
		if fp := r.Header.Get(opts.FingerprintHeader); fp != "" {
			ctx = authcore.WithFingerprint(ctx, fp)
		}
	}
	return ctx
}

func extractToken(r *http.Request, cookieName string) string {
	if tok, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return tok
	}
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value
		}
	}
	return ""
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	tok := value[len(bearer):]
	if tok == "" {
		return "", false
	}

	return tok, true
}

func clientIP(r *http.Request) string {
	// first hop of X-Forwarded-For when present, else the peer address
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeDenied(w http.ResponseWriter, decision *authz.Decision) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)

	body := map[string]any{"error": decision.Reason}
	if decision.RequiresAction != "" {
		body["requires_action"] = string(decision.RequiresAction)
	}
	if len(decision.Metadata) > 0 {
		body["metadata"] = decision.Metadata
	}
	_ = json.NewEncoder(w).Encode(body)
}
