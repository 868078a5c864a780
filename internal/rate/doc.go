// Package rate provides Redis-backed fixed-window rate limiting for the
// login and refresh paths.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - al:  — login per-identifier
//   - ali: — login per-IP
//   - ar:  — refresh per-session
//
// The login counter tracks failures only and is cleared on success; the
// refresh counter tracks attempts.
package rate
