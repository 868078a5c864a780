// Package authcore provides an embeddable authentication engine with JWT access
// tokens, rotating opaque refresh tokens, Redis-backed sessions, and bitmask-based
// RBAC.
//
// The package is designed for concurrent server workloads: Engine methods are safe
// to call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config], the
// [AccountStore] integration interface, and value types (AuthResult, AccountRecord,
// MetricsSnapshot). Flow coordination, rate limiting, token material, and audit
// dispatch live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, session encoding, or key material in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Own account persistence — accounts belong to the caller's [AccountStore].
//
// # Performance contract
//
// Validate is the hot path. In ModeJWTOnly it completes without Redis round-trips
// and allocates only the returned [AuthResult]. Login, Refresh, and logout
// operations are allowed one Redis round-trip apiece; password hashing dominates
// login cost by design.
package authcore
