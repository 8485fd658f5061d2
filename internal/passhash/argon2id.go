package passhash

import (
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2idParams are the cost parameters carried in a PHC string.
type Argon2idParams struct {
	Time        uint32
	MemoryKiB   uint32
	Parallelism uint8
}

type argon2idHash struct {
	params Argon2idParams
	salt   []byte
	sum    []byte
}

// parseArgon2id decodes "$argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>".
func parseArgon2id(encoded string) (Verifier, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, fmt.Errorf("%w: argon2id expects 5 fields", ErrMalformed)
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, fmt.Errorf("%w: argon2id version %q", ErrMalformed, parts[2])
	}
	var h argon2idHash
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.params.MemoryKiB, &h.params.Time, &h.params.Parallelism); err != nil {
		return nil, fmt.Errorf("%w: argon2id params %q", ErrMalformed, parts[3])
	}
	if h.params.Time == 0 || h.params.MemoryKiB == 0 || h.params.Parallelism == 0 {
		return nil, fmt.Errorf("%w: argon2id params must be positive", ErrMalformed)
	}
	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, fmt.Errorf("%w: argon2id salt: %v", ErrMalformed, err)
	}
	if h.sum, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(h.sum) == 0 {
		return nil, fmt.Errorf("%w: argon2id digest", ErrMalformed)
	}
	return &h, nil
}

func (h *argon2idHash) Verify(password string) bool {
	key := argon2.IDKey([]byte(password), h.salt, h.params.Time, h.params.MemoryKiB, h.params.Parallelism, uint32(len(h.sum)))
	return equal(key, h.sum)
}
