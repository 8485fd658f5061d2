package guard

import "github.com/awnumar/memguard"

// Identity is a provisioned account. MFASecret holds the base32 TOTP seed
// and is nil when MFA is disabled.
type Identity struct {
	Username     string
	PasswordHash string
	MFAEnabled   bool
	MFASecret    *memguard.Enclave
}

// mfaCapable reports whether the identity can complete the MFA step.
func (id Identity) mfaCapable() bool {
	return id.MFAEnabled && id.MFASecret != nil
}

// Directory resolves usernames to identities. Lookups are exact matches.
type Directory interface {
	Lookup(username string) (Identity, bool)
}

// StaticDirectory is a Directory fixed at startup.
type StaticDirectory map[string]Identity

// NewStaticDirectory indexes ids by username.
func NewStaticDirectory(ids ...Identity) StaticDirectory {
	d := make(StaticDirectory, len(ids))
	for _, id := range ids {
		d[id.Username] = id
	}
	return d
}

func (d StaticDirectory) Lookup(username string) (Identity, bool) {
	id, ok := d[username]
	return id, ok
}
