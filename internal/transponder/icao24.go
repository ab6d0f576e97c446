package transponder

import (
	"fmt"
	"strings"
)

// Icao24 is the 24-bit transponder address an aircraft is identified by on the feed
type Icao24 uint32

// MaxIcao24 is the largest valid 24-bit address
const MaxIcao24 Icao24 = 0xFFFFFF

// String formats the address as six upper-case hex digits
func (i Icao24) String() string {
	return fmt.Sprintf("%06X", uint32(i))
}

// IsValid reports whether the value fits in 24 bits
func (i Icao24) IsValid() bool {
	return i <= MaxIcao24
}

// ParseIcao24 parses hex text into an address. In strict mode every character
// must be a hex digit. Otherwise stray non-hex characters (TIS-B markers,
// tildes, whitespace) are skipped, as long as between one and six hex digits
// remain.
func ParseIcao24(text string, strict bool) (Icao24, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}

	var value uint32
	digits := 0
	for i := 0; i < len(text); i++ {
		nibble, ok := hexValue(text[i])
		if !ok {
			if strict {
				return 0, false
			}
			continue
		}
		digits++
		if digits > 6 {
			return 0, false
		}
		value = value<<4 | uint32(nibble)
	}

	if digits == 0 {
		return 0, false
	}
	return Icao24(value), true
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// MarshalText writes the address as six hex digits
func (i Icao24) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText accepts strict hex text
func (i *Icao24) UnmarshalText(text []byte) error {
	v, ok := ParseIcao24(string(text), true)
	if !ok {
		return fmt.Errorf("invalid icao24: %q", string(text))
	}
	*i = v
	return nil
}
