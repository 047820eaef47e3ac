// Package token provides small random-value and digest primitives shared by
// the auth layers: generated device identifiers and keyed fingerprints used
// to reference login identifiers in logs without recording them verbatim.
package token
