package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// commonPasswords is a tiny deny-list, not a strength estimator.
var commonPasswords = map[string]struct{}{
	"password":    {},
	"password123": {},
	"123456":      {},
	"123456789":   {},
	"qwerty":      {},
	"qwerty123":   {},
	"11111111":    {},
	"letmein":     {},
	"changeme":    {},
}

// Validate checks password against the policy. Length is counted in runes.
func (c Config) Validate(password string) error {
	n := utf8.RuneCountInString(password)

	if n < c.Policy.MinLength {
		return ErrPasswordTooShort
	}
	if n > c.Policy.MaxLength {
		return ErrPasswordTooLong
	}
	if c.Policy.RejectVeryWeak && looksVeryWeak(password) {
		return ErrWeakPassword
	}
	return nil
}

func looksVeryWeak(pw string) bool {
	s := strings.TrimSpace(pw)
	if s == "" {
		return true
	}

	first, _ := utf8.DecodeRuneInString(s)
	allSame, onlyDigits := true, true
	for _, r := range s {
		if r != first {
			allSame = false
		}
		if !unicode.IsDigit(r) {
			onlyDigits = false
		}
	}
	if allSame {
		return true
	}
	// PIN-like.
	if onlyDigits && utf8.RuneCountInString(s) < 12 {
		return true
	}

	_, common := commonPasswords[strings.ToLower(s)]
	return common
}
