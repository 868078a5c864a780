// Package session persists refresh sessions in Redis and implements the
// atomic compare-and-swap rotation that makes refresh-token reuse
// detectable.
//
// Sessions are stored as compact binary blobs under a configurable key
// prefix, with a per-user index set for bulk revocation. The blob layout
// places the refresh-token hash and expiry at fixed offsets so the rotation
// Lua script can validate and splice them without a full decode.
//
// Rotation runs entirely inside Redis: the script compares the presented
// refresh hash against the stored one and either swaps in the next hash or
// destroys the session. Under concurrent refresh calls for the same session
// exactly one caller observes a successful rotation; all others get a
// mismatch, which the engine reports as token reuse.
package session
