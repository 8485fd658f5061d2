package storage

import (
	"encoding/json"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/authlab/internal/util"
)

const (
	envelopeVer = 1
	sealScheme  = "aes256gcm"
	nonceSize   = 12
)

// Envelope is one sealed record as it sits in a Repository. Version is
// plaintext so compare-and-swap works without the key.
type Envelope struct {
	Ver        int    `json:"ver"`
	Scheme     string `json:"scheme"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
	Version    uint64 `json:"version,omitempty"`
}

// SealRecord encrypts plaintext with AES-256-GCM under recordKey, binding aad.
func SealRecord(recordKey, plaintext, aad []byte, version ...uint64) (*Envelope, error) {
	sealed, err := util.EncryptAESWithAAD(plaintext, recordKey, aad)
	if err != nil {
		return nil, err
	}
	env := &Envelope{
		Ver:        envelopeVer,
		Scheme:     sealScheme,
		Nonce:      sealed[:nonceSize],
		Ciphertext: sealed[nonceSize:],
	}
	if len(version) > 0 {
		env.Version = version[0]
	}
	return env, nil
}

// OpenRecord reverses SealRecord. The aad must match exactly.
func OpenRecord(recordKey []byte, env *Envelope, aad []byte) ([]byte, error) {
	switch {
	case env.Ver != envelopeVer:
		return nil, fmt.Errorf("unsupported envelope version: %d", env.Ver)
	case env.Scheme != sealScheme:
		return nil, fmt.Errorf("unsupported envelope scheme: %s", env.Scheme)
	}
	return util.DecryptAESWithAAD(append(append([]byte{}, env.Nonce...), env.Ciphertext...), recordKey, aad)
}

// Sealer seals JSON records for one domain under a key kept in a memguard
// enclave. The AAD is "authlab:<domain>:<id>", so a record cannot be moved
// to another id or read back as another domain's record.
type Sealer struct {
	key    *memguard.Enclave
	domain string
}

func NewSealer(key *memguard.Enclave, domain string) *Sealer {
	return &Sealer{key: key, domain: domain}
}

func (s *Sealer) aad(id string) []byte {
	return []byte("authlab:" + s.domain + ":" + id)
}

// SealJSON marshals v and seals it as record id at the given CAS version.
func (s *Sealer) SealJSON(id string, v any, version uint64) (*Envelope, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s record: %w", s.domain, err)
	}
	buf, err := s.key.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s key: %w", s.domain, err)
	}
	defer buf.Destroy()
	return SealRecord(buf.Bytes(), data, s.aad(id), version)
}

// OpenJSON opens env as record id and unmarshals it into v.
func (s *Sealer) OpenJSON(id string, env *Envelope, v any) error {
	buf, err := s.key.Open()
	if err != nil {
		return fmt.Errorf("opening %s key: %w", s.domain, err)
	}
	defer buf.Destroy()

	data, err := OpenRecord(buf.Bytes(), env, s.aad(id))
	if err != nil {
		return fmt.Errorf("opening %s record %s: %w", s.domain, id, err)
	}
	return json.Unmarshal(data, v)
}
