// Package password implements password hashing and verification.
//
// # Output format
//
// New hashes are Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verify also accepts bcrypt hashes ($2a$, $2b$, $2y$) left over from older account
// stores. [Hasher.NeedsRehash] reports true for those so the caller can upgrade them on
// the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Enforce password strength policy.
//   - Log plaintext passwords or hash parameters at runtime.
package password
