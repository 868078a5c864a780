// Package password implements argon2id hashing and verification for account
// secrets.
//
// Hashes are encoded in PHC string format with the salt and cost parameters
// embedded, so verification keeps working after the configured cost factor
// changes. Comparison is constant-time.
//
// # What this package must NOT do
//
//   - Persist or log plaintext secrets.
//   - Perform any I/O beyond reading crypto/rand.
//   - Import authcore or any of its sub-packages.
package password
