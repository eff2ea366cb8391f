package natid

import (
	"regexp"
	"strings"
)

// Length is the fixed width of a public citizen identifier.
const Length = 11

var reID = regexp.MustCompile(`^[A-Za-z0-9]{11}$`)

// Valid returns true if s is an 11-character alphanumeric identifier.
func Valid(s string) bool {
	return reID.MatchString(s)
}

// Derive builds a temporary public identifier from an identity principal id:
// prefix "N", non-alphanumeric characters stripped, right-padded with '0' and
// cut to Length. The result always satisfies Valid. Used when an account is
// auto-provisioned at first sign-in; the holder (or an administrator) replaces
// it with the real identifier later.
func Derive(subject string) string {
	var b strings.Builder
	b.WriteByte('N')
	for _, r := range subject {
		if ('0' <= r && r <= '9') || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) < Length {
		s += strings.Repeat("0", Length-len(s))
	}
	return s[:Length]
}
