package guard

import (
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpDigits = otp.DigitsSix
	totpPeriod = 30
	totpIssuer = "authlab"
)

// VerifyTOTP checks a six-digit code against secret at now, accepting up to
// window adjacent 30 second steps on either side. Codes containing anything
// other than ASCII digits are rejected before any HMAC is computed.
func VerifyTOTP(secret, code string, now time.Time, window uint) bool {
	code = strings.TrimSpace(code)
	if !digitsOnly(code) {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, now, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      window,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// GenerateTOTPSecret creates a new base32 secret for account and the
// otpauth:// URL an authenticator app can enrol from.
func GenerateTOTPSecret(account string) (secret, url string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: account,
		Period:      totpPeriod,
		Digits:      totpDigits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}
