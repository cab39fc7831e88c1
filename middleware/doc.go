// Package middleware exposes HTTP middleware adapters for the authorization
// pipeline built on top of authcore.Service.
//
// # Guards
//
//   - [Guard] — enforces an explicit route configuration.
//   - [RequireAuth] — the default protected route.
//   - [RequireM2FA] — routes that demand two-factor enrollment.
//   - [RequirePermissions] — routes gated on role permissions.
//   - [AllowUnverified] — routes reachable before email verification.
//
// Each guard reads the Authorization header (with a cookie fallback), calls
// Service.Authorize, and injects the token claims and the decision into the
// request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Service calls. It does NOT
// implement authentication logic itself — all decisions are delegated to
// the authorization pipeline.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Service).
//   - Touch storage or Redis (Service handles I/O).
//   - Make authorization decisions beyond rendering the returned Decision.
package middleware
