// Package token mints and validates the signed access and refresh tokens
// used by the authentication service.
//
// # Claim shape
//
// Both token kinds carry the same logical claims:
//
//	{user_id, session_id, m2fa_authenticated, m2fa_required}
//
// signed with independent HS256 secrets and independent lifetimes. The
// m2fa_authenticated claim is the only record of "this session has passed
// its M2FA challenge" — it lives in the signature, not in mutable server
// state.
//
// # Architecture boundaries
//
// This package owns signing and verification only. Token persistence,
// rotation, and session checks belong to the authentication service.
//
// # What this package must NOT do
//
//   - Store tokens or touch any repository.
//   - Collapse the expired/malformed/not-yet-valid distinction — callers
//     need it for client-facing messages.
//   - Import any other authcore package.
package token
