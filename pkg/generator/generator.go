// Package generator produces random passwords using crypto/rand.
package generator

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

const (
	lowercase = "abcdefghijklmnopqrstuvwxyz"
	uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits    = "0123456789"
	symbols   = "!@#$%^&*()-_=+[]{}|;:,.<>?"

	// Characters easily confused with one another when read.
	similar = "Il1O0"
)

// ErrInvalidLength is returned for a requested length below one.
var ErrInvalidLength = errors.New("generator: length must be at least 1")

// ErrEmptyCharset is returned when every character class is disabled.
var ErrEmptyCharset = errors.New("generator: no character classes enabled")

// Options selects the character classes a generated password draws from.
type Options struct {
	Length         int
	Uppercase      bool
	Lowercase      bool
	Digits         bool
	Symbols        bool
	ExcludeSimilar bool
}

// DefaultOptions generates 20-character passwords from all classes.
func DefaultOptions() Options {
	return Options{
		Length:    20,
		Uppercase: true,
		Lowercase: true,
		Digits:    true,
		Symbols:   true,
	}
}

// Generate returns a random password built from the enabled classes.
func Generate(opts Options) (string, error) {
	if opts.Length < 1 {
		return "", ErrInvalidLength
	}

	var charset string
	if opts.Lowercase {
		charset += lowercase
	}
	if opts.Uppercase {
		charset += uppercase
	}
	if opts.Digits {
		charset += digits
	}
	if opts.Symbols {
		charset += symbols
	}
	if opts.ExcludeSimilar {
		charset = stripSimilar(charset)
	}
	if charset == "" {
		return "", ErrEmptyCharset
	}

	max := big.NewInt(int64(len(charset)))
	out := make([]byte, opts.Length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = charset[n.Int64()]
	}
	return string(out), nil
}

func stripSimilar(charset string) string {
	var b strings.Builder
	for _, r := range charset {
		if !strings.ContainsRune(similar, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
