// Package authcore provides a full-lifecycle authentication service with JWT
// access tokens, rotating single-use refresh tokens, database-backed sessions,
// TOTP-based two-factor authentication, OAuth account linking, and a
// permission-driven authorization pipeline.
//
// The package is designed for concurrent server workloads: Service methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Service], [Builder], [Config],
// the repository interfaces ([Store], [Repos]), and value types (AuthResult,
// AuditEvent, MetricsSnapshot, etc.). Token signing lives in the token
// sub-package, credential hashing in password, one-time codes in otp, the pure
// authorization decision in authz, and OAuth state signing in oauth. Those
// sub-packages never import authcore.
//
// # What this package must NOT do
//
//   - Ship a storage engine. Persistence is injected through [Store]; the
//     service only ever talks to the repository interfaces.
//   - Render HTTP responses. The middleware sub-package adapts [Service] to
//     net/http; authcore itself returns errors and value types.
//   - Block on email delivery or audit sinks. Mail failures are recorded and
//     swallowed; audit events flow through a buffered dispatcher.
//
// # Consistency contract
//
// Every multi-step mutation (registration, refresh rotation, password reset
// cascade, email change) runs inside [Store.Atomic] and either fully commits
// or leaves no trace. Refresh tokens are single-use: a replayed token fails
// inside the same transaction that would have rotated it.
package authcore
