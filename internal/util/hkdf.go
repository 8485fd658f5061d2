package util

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const HKDFKeyLength = 32

var hkdfSalt = []byte("authlab:v1")

// DeriveKey expands the process secret into an independent 32-byte key for
// the named purpose. Distinct purposes never share key material.
func DeriveKey(secret []byte, purpose string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("deriving %s key: empty secret", purpose)
	}
	h := hkdf.New(sha256.New, secret, hkdfSalt, []byte(purpose))
	k := make([]byte, HKDFKeyLength)
	if _, err := io.ReadFull(h, k); err != nil {
		return nil, fmt.Errorf("reading from HKDF: %w", err)
	}
	return k, nil
}
