// Package pin generates and checks the numeric client access PINs.
package pin

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"io"
	"math/big"
	"strings"
)

// Length is the fixed number of decimal digits in a PIN.
const Length = 6

var ErrEntropyUnavailable = errors.New("entropy source unavailable")

// Reader is the entropy source. Tests may swap it; production code must leave it at crypto/rand.
var Reader io.Reader = rand.Reader

// Generate returns a PIN drawn uniformly from 000000-999999 with leading zeros kept.
// Each digit is drawn independently with rand.Int, which rejects out-of-range samples,
// so there is no modulo bias. There is no fallback source on failure.
func Generate() (string, error) {
	var b strings.Builder
	b.Grow(Length)

	max := big.NewInt(10)
	for i := 0; i < Length; i++ {
		n, err := rand.Int(Reader, max)
		if err != nil {
			return "", errors.Join(ErrEntropyUnavailable, err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// Valid reports whether s is exactly Length ASCII digits.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// LooksLikePin is Valid after trimming surrounding whitespace, for free-form user input.
func LooksLikePin(text string) bool {
	return Valid(strings.TrimSpace(text))
}

// Matches compares a stored PIN to a candidate in constant time.
// An empty stored PIN never matches.
func Matches(stored, candidate string) bool {
	if stored == "" || !Valid(candidate) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}
