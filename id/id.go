// Package id generates and validates the random identifiers used for users,
// walls, and sessions.
package id

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
)

// randomBytes is how much entropy goes into an id. 32 bytes encode to 43
// URL-safe characters.
const randomBytes = 32

// EncodedLen is the length of the random part of an id.
const EncodedLen = 43

// New returns a fresh id of the form "<prefix>_<random>".
func New(prefix string) string {
	var buf [randomBytes]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	return prefix + "_" + base64.RawURLEncoding.EncodeToString(buf[:])
}

// Secret returns a bare random token with the same entropy as an id.
func Secret() string {
	var buf [randomBytes]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf[:])
}

// Valid reports whether s is a well-formed id with the given prefix. Ids
// end up in file paths, so everything else must be rejected.
func Valid(prefix, s string) bool {
	rest, ok := strings.CutPrefix(s, prefix+"_")
	if !ok || len(rest) != EncodedLen {
		return false
	}
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		ok := c >= 'A' && c <= 'Z' ||
			c >= 'a' && c <= 'z' ||
			c >= '0' && c <= '9' ||
			c == '-' || c == '_'
		if !ok {
			return false
		}
	}
	return true
}
