// Package oauth carries the OAuth redirect state blob and the normalized
// provider profile consumed by the account unification flow.
//
// # State integrity
//
// The state blob rides through an untrusted redirect round-trip, so it is
// HMAC-SHA256 signed: [StateCodec.Encode] appends a signature and
// [StateCodec.Decode] rejects any blob whose signature or shape does not
// verify. Decoding fails closed.
//
// # Architecture boundaries
//
// Provider adapters normalize third-party profiles into [Profile] before
// this package sees them. Identity resolution and session creation live in
// the authentication service.
//
// # What this package must NOT do
//
//   - Talk to OAuth providers or parse provider-specific payloads.
//   - Accept an unsigned or tampered state blob.
//   - Import any other authcore package.
package oauth
