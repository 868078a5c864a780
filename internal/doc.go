// Package internal holds token-material helpers shared by the engine and
// its subpackages: session ID generation, refresh and reset token encoding,
// and the SHA-256 hashing applied to secrets before they reach Redis.
//
// Refresh and reset tokens share one opaque wire shape:
//
//	base64url( id[16] || secret[32] )  ->  64 URL-safe characters
//
// Only the hash of the secret is ever persisted. Presenting a token proves
// knowledge of the secret; the id half routes the lookup.
package internal
