package passhash

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

type bcryptHash []byte

func parseBcrypt(encoded string) (Verifier, error) {
	if _, err := bcrypt.Cost([]byte(encoded)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return bcryptHash(encoded), nil
}

func (h bcryptHash) Verify(password string) bool {
	return bcrypt.CompareHashAndPassword(h, []byte(password)) == nil
}
