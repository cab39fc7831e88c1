// Package password implements password hashing and verification with bcrypt.
//
// # Cost factor
//
// The cost factor is fixed at construction (default 10) and validated
// against the bcrypt-supported range. [Hasher.NeedsUpgrade] reports whether
// a stored hash was produced with a weaker cost so the caller can re-hash
// on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length,
// reuse) is enforced by the authentication service.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords at runtime.
package password
