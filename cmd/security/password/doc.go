// Package password hashes and verifies user passwords with Argon2id.
//
// Hashes use the self-describing PHC string format
// ($argon2id$v=19$m=..,t=..,p=..$salt$hash), so every stored hash carries
// its own salt and cost parameters. Verify treats the stored string as
// untrusted input and refuses parameters far above the configured maxima.
package password
