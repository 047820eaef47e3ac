// Package session implements haven's device sessions and access tokens.
//
// A session binds one device of one user to a random token subject. Access
// tokens are asymmetrically signed (RS256 JWT by default, PASETO v4.public as
// an alternative) and carry only sub/iat/nbf/exp; every request resolves the
// subject back to a live session, so deleting the session revokes the token.
//
// At most one session exists per (user, device). Logging in again on the same
// device replaces the previous session atomically in every Store backend.
//
// Transport (HTTP) integration lives in the authn and api packages.
package session
