// Package passhash verifies and produces password hashes in the encodings
// operators are expected to paste into ADMIN_PWHASH: werkzeug-style
// "scrypt:N:r:p$salt$hex" and "pbkdf2:hash[:iter]$salt$hex", bcrypt "$2a$"/"$2b$"
// strings, and argon2id PHC strings.
package passhash

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupported is returned for hash strings in an unknown scheme.
	ErrUnsupported = errors.New("unsupported password hash scheme")
	// ErrMalformed is returned for hash strings in a known scheme that cannot be parsed.
	ErrMalformed = errors.New("malformed password hash")
)

// Verifier checks a password against one parsed hash.
type Verifier interface {
	Verify(password string) bool
}

// Parse decodes an encoded hash into a Verifier without doing any key
// derivation work. It is used at startup to reject unusable hashes.
func Parse(encoded string) (Verifier, error) {
	encoded = strings.TrimSpace(encoded)
	switch {
	case encoded == "":
		return nil, fmt.Errorf("%w: empty", ErrMalformed)
	case strings.HasPrefix(encoded, "scrypt:") || strings.HasPrefix(encoded, "scrypt$"):
		return parseScrypt(encoded)
	case strings.HasPrefix(encoded, "pbkdf2:") || strings.HasPrefix(encoded, "pbkdf2$"):
		return parsePBKDF2(encoded)
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		return parseBcrypt(encoded)
	case strings.HasPrefix(encoded, "$argon2id$"):
		return parseArgon2id(encoded)
	default:
		return nil, ErrUnsupported
	}
}

// Verify reports whether password matches encoded. Unparseable hashes never match.
func Verify(encoded, password string) bool {
	v, err := Parse(encoded)
	if err != nil {
		return false
	}
	return v.Verify(password)
}

// splitWerkzeug splits "method$salt$hash" into its three parts.
func splitWerkzeug(encoded string) (method, salt, hash string, err error) {
	parts := strings.SplitN(encoded, "$", 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("%w: expected method$salt$hash", ErrMalformed)
	}
	return parts[0], parts[1], parts[2], nil
}

func equal(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
