// Package middleware provides net/http middleware over an authcore Engine:
// a bearer-token Guard, per-route validation-mode overrides, and a
// permission gate.
//
// Status mapping is deliberate and fail-closed. Any token problem,
// including expiry and missing sessions, answers 401. 403 is reserved for
// callers the engine authenticated but refused: disabled or locked
// accounts and missing permissions. Backend failures answer 503, never a
// silent pass.
package middleware
