package identity

import "strings"

// NormalizeName canonicalizes a login name (Matrix localpart).
// Only trim and lower-case; stores index the normalized form.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Localpart reduces a login identifier to a normalized local name.
// It accepts a bare name ("alice"), "@alice", or a fully-qualified user ID
// for this server ("@alice:example.org"). IDs of other servers yield "".
func Localpart(identifier, serverName string) string {
	s := strings.TrimSpace(identifier)
	if !strings.HasPrefix(s, "@") {
		return NormalizeName(s)
	}
	s = s[1:]
	name, server, qualified := strings.Cut(s, ":")
	if qualified && !strings.EqualFold(server, serverName) {
		return ""
	}
	return NormalizeName(name)
}

// QualifiedID renders the fully-qualified user ID "@name:server".
func QualifiedID(name, serverName string) string {
	return "@" + name + ":" + serverName
}
