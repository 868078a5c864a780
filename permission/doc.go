// Package permission implements bitmask-based RBAC: a registry mapping
// permission names to bits, a role manager mapping role names to masks, and a
// length-prefixed wire codec for embedding masks in token claims and session
// blobs.
//
// Registry and RoleManager are populated during engine construction and frozen
// before first use; after Freeze all reads are lock-free.
package permission
