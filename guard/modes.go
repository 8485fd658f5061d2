package guard

import (
	"fmt"
	"strings"
)

// Mode selects between the hardened and the intentionally vulnerable code
// path of a lab surface.
type Mode string

const (
	ModeSafe Mode = "safe"
	ModePoC  Mode = "poc"
)

// ParseMode accepts "safe" or "poc" in any case.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeSafe, ModePoC:
		return m, nil
	default:
		return "", fmt.Errorf("invalid mode %q: want safe or poc", s)
	}
}

// Unsafe reports whether the vulnerable path is selected.
func (m Mode) Unsafe() bool { return m == ModePoC }

// Surface names one of the toggled lab surfaces.
type Surface string

const (
	SurfaceReflectedXSS Surface = "xss_reflected"
	SurfaceStoredXSS    Surface = "xss_stored"
	SurfaceSQLi         Surface = "sqli"
	SurfaceIDOR         Surface = "idor"
)

// AuditResult is the audit result tag recorded for requests on s.
func (s Surface) AuditResult() string {
	switch s {
	case SurfaceReflectedXSS, SurfaceStoredXSS:
		return "xss_surface"
	case SurfaceSQLi:
		return "sqli_surface"
	case SurfaceIDOR:
		return "idor_surface"
	default:
		return string(s)
	}
}

// Modes is the process-wide, read-only set of surface modes. The zero value
// is all safe.
type Modes struct {
	reflectedXSS Mode
	storedXSS    Mode
	sqli         Mode
	idor         Mode
}

// NewModes fixes the four surface modes. Empty values default to safe.
func NewModes(reflectedXSS, storedXSS, sqli, idor Mode) Modes {
	return Modes{
		reflectedXSS: orSafe(reflectedXSS),
		storedXSS:    orSafe(storedXSS),
		sqli:         orSafe(sqli),
		idor:         orSafe(idor),
	}
}

func orSafe(m Mode) Mode {
	if m == ModePoC {
		return ModePoC
	}
	return ModeSafe
}

func (m Modes) ReflectedXSS() Mode { return orSafe(m.reflectedXSS) }
func (m Modes) StoredXSS() Mode    { return orSafe(m.storedXSS) }
func (m Modes) SQLi() Mode         { return orSafe(m.sqli) }
func (m Modes) IDOR() Mode         { return orSafe(m.idor) }

// Of returns the mode in effect for s. Unknown surfaces are safe.
func (m Modes) Of(s Surface) Mode {
	switch s {
	case SurfaceReflectedXSS:
		return m.ReflectedXSS()
	case SurfaceStoredXSS:
		return m.StoredXSS()
	case SurfaceSQLi:
		return m.SQLi()
	case SurfaceIDOR:
		return m.IDOR()
	default:
		return ModeSafe
	}
}
