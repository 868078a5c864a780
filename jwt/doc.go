// Package jwt is the access-token codec: it signs and verifies the short-lived
// JWT assertions issued by the engine.
//
// # Verification contract
//
// ParseAccess is a pure function — no I/O, no locks, safe to call from any
// number of goroutines. Each call captures a single "now" and uses it for every
// time-based check, so the multi-step validation cannot drift across checks.
// Failures are classified into [ErrBadSignature], [ErrExpired],
// [ErrMalformedToken], and [ErrClaimsRejected]; the first failing check in the
// order signature → issuer/audience → expiry determines the kind.
//
// # What this package must NOT do
//
//   - Access Redis or the account store.
//   - Mutate key material after construction.
//   - Implement refresh-token logic (refresh tokens are opaque, see session).
package jwt
