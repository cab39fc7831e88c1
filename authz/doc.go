// Package authz implements the authorization decision pipeline evaluated on
// every protected request.
//
// # Evaluation order
//
// [Decide] short-circuits through a fixed sequence: soft-delete window,
// account status, email verification, M2FA session completion, and finally
// the permission set. The first failing step produces the denial; later
// steps are never consulted.
//
// # Architecture boundaries
//
// Decide is a pure function of its inputs. Route requirements are plain
// [RouteConfig] values attached at route-registration time; there is no
// reflection or metadata scanning. The one side effect the pipeline can
// request — clearing an elapsed suspension — is surfaced as
// [Decision].Unsuspend for the caller to persist.
//
// # What this package must NOT do
//
//   - Perform I/O or touch any repository.
//   - Swallow a denial: every deny carries a reason and, where applicable,
//     a machine-readable remediation action.
//   - Import any other authcore package.
package authz
