// Package memstore provides an in-memory implementation of authcore.Store
// with real transaction semantics: Atomic runs the callback against a deep
// copy of the state and publishes the copy only when the callback succeeds,
// so a failed operation leaves no partial writes behind.
//
// The package exists for tests, examples, and prototypes. It is not a
// production store: nothing is persisted, and every transaction serializes
// behind a single mutex.
//
// # Architecture boundaries
//
// memstore implements the repository interfaces the service defines and
// nothing more. Validation, hashing, and policy all stay in authcore.
//
// # What this package must NOT do
//
//   - Enforce business rules beyond the documented repository contracts
//     (unique emails, single-active tokens, revoke-once sessions).
//   - Perform I/O of any kind.
package memstore
