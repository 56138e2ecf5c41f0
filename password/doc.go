// Package password implements the credential store: slow, salted one-way hashing and
// timing-safe verification of user passwords.
//
// # Formats
//
// [Bcrypt] is the default hasher. Its cost factor is the configured work factor and the
// digest uses the standard modular crypt format ($2a$/$2b$/$2y$).
//
// [Argon2] is available as an alternative and encodes digests in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Dispatch] hashes with a primary [Hasher] and verifies digests of any registered format,
// so stored hashes can migrate between algorithms through [Hasher.NeedsUpgrade].
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length, reuse) is
// enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive digests.
//   - Import any other authcore package.
//   - Reveal where a comparison failed, or log plaintext or digest material.
package password
