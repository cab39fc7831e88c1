// Package otp implements RFC 4226 / RFC 6238 one-time codes for the
// email-OTP and TOTP authenticator flows.
//
// # Validation window
//
// Codes are 6 digits by default, derived over a 30-second period, with a
// one-period tolerance on either side of the server clock.
//
// # Architecture boundaries
//
// This package owns code derivation and comparison only. Attempt counting,
// challenge storage, and account lockout belong to the authentication
// service.
//
// # What this package must NOT do
//
//   - Persist secrets or codes.
//   - Import any other authcore package.
package otp
