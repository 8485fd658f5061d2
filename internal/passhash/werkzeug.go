package passhash

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

const (
	defaultScryptN   = 1 << 15
	defaultScryptR   = 8
	defaultScryptP   = 1
	scryptKeyLen     = 64
	defaultPBKDF2Its = 600000
	saltLength       = 16
	saltChars        = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type scryptHash struct {
	n, r, p int
	salt    string
	sum     []byte
}

func parseScrypt(encoded string) (Verifier, error) {
	method, salt, sum, err := splitWerkzeug(encoded)
	if err != nil {
		return nil, err
	}
	h := &scryptHash{n: defaultScryptN, r: defaultScryptR, p: defaultScryptP, salt: salt}
	args := strings.Split(method, ":")[1:]
	if len(args) != 0 && len(args) != 3 {
		return nil, fmt.Errorf("%w: scrypt expects N:r:p", ErrMalformed)
	}
	if len(args) == 3 {
		nums := make([]int, 3)
		for i, a := range args {
			v, err := strconv.Atoi(a)
			if err != nil || v <= 0 {
				return nil, fmt.Errorf("%w: scrypt parameter %q", ErrMalformed, a)
			}
			nums[i] = v
		}
		h.n, h.r, h.p = nums[0], nums[1], nums[2]
	}
	if h.n < 2 || h.n&(h.n-1) != 0 {
		return nil, fmt.Errorf("%w: scrypt N must be a power of two", ErrMalformed)
	}
	if h.sum, err = hex.DecodeString(sum); err != nil {
		return nil, fmt.Errorf("%w: scrypt digest: %v", ErrMalformed, err)
	}
	return h, nil
}

func (h *scryptHash) Verify(password string) bool {
	key, err := scrypt.Key([]byte(password), []byte(h.salt), h.n, h.r, h.p, len(h.sum))
	if err != nil {
		return false
	}
	return equal(key, h.sum)
}

type pbkdf2Hash struct {
	newHash    func() hash.Hash
	iterations int
	salt       string
	sum        []byte
}

func parsePBKDF2(encoded string) (Verifier, error) {
	method, salt, sum, err := splitWerkzeug(encoded)
	if err != nil {
		return nil, err
	}
	args := strings.Split(method, ":")[1:]
	h := &pbkdf2Hash{newHash: sha256.New, iterations: defaultPBKDF2Its, salt: salt}
	if len(args) > 2 {
		return nil, fmt.Errorf("%w: pbkdf2 expects hash[:iterations]", ErrMalformed)
	}
	if len(args) >= 1 {
		switch args[0] {
		case "sha1":
			h.newHash = sha1.New
		case "sha256":
			h.newHash = sha256.New
		case "sha512":
			h.newHash = sha512.New
		default:
			return nil, fmt.Errorf("%w: pbkdf2 digest %q", ErrUnsupported, args[0])
		}
	}
	if len(args) == 2 {
		its, err := strconv.Atoi(args[1])
		if err != nil || its <= 0 {
			return nil, fmt.Errorf("%w: pbkdf2 iterations %q", ErrMalformed, args[1])
		}
		h.iterations = its
	}
	if h.sum, err = hex.DecodeString(sum); err != nil {
		return nil, fmt.Errorf("%w: pbkdf2 digest: %v", ErrMalformed, err)
	}
	return h, nil
}

func (h *pbkdf2Hash) Verify(password string) bool {
	key := pbkdf2.Key([]byte(password), []byte(h.salt), h.iterations, len(h.sum), h.newHash)
	return equal(key, h.sum)
}

// Hash returns a werkzeug-compatible scrypt hash of password using the
// default cost parameters.
func Hash(password string) (string, error) {
	salt, err := genSalt(saltLength)
	if err != nil {
		return "", err
	}
	key, err := scrypt.Key([]byte(password), []byte(salt), defaultScryptN, defaultScryptR, defaultScryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("deriving scrypt key: %w", err)
	}
	return fmt.Sprintf("scrypt:%d:%d:%d$%s$%s", defaultScryptN, defaultScryptR, defaultScryptP, salt, hex.EncodeToString(key)), nil
}

func genSalt(n int) (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(saltChars)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating salt: %w", err)
		}
		sb.WriteByte(saltChars[idx.Int64()])
	}
	return sb.String(), nil
}
