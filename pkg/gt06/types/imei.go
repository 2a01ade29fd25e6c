package types

import (
	"fmt"
	"regexp"

	"github.com/fleetlink/gt06-gateway/internal/codec"
)

var imeiPattern = regexp.MustCompile(`^\d{15}$`)

// IMEI is a 15-digit device identifier. Construction does not enforce the
// Luhn check digit: GT06 devices in the field routinely ship IMEIs that
// fail Luhn, and the gateway's login path must still authenticate them.
type IMEI struct {
	value string
}

// NewIMEI validates that s is exactly 15 digits and returns an IMEI. It does
// not check the Luhn digit; use ValidateLuhn separately if a caller wants
// that check.
func NewIMEI(s string) (IMEI, error) {
	if !imeiPattern.MatchString(s) {
		return IMEI{}, fmt.Errorf("imei: %q is not exactly 15 digits", s)
	}
	return IMEI{value: s}, nil
}

// MustNewIMEI panics if s is not a valid 15-digit IMEI. Intended for tests
// and compile-time constants.
func MustNewIMEI(s string) IMEI {
	id, err := NewIMEI(s)
	if err != nil {
		panic(err)
	}
	return id
}

// NewIMEIFromBytes decodes an 8-byte BCD-encoded IMEI field (16 packed
// digits, one of them padding) into an IMEI. If the first digit is 0 it is
// taken as the padding and dropped; otherwise the final digit (0, or 0xF
// normalised to 0) is dropped.
func NewIMEIFromBytes(data []byte) (IMEI, error) {
	if len(data) != 8 {
		return IMEI{}, fmt.Errorf("imei: expected 8 bytes, got %d", len(data))
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	// The trailing nibble is sometimes left as 0xF padding rather than 0;
	// DecodeBCD only accepts 0-9, so normalize it before decoding.
	if buf[len(buf)-1]&0x0F == 0x0F {
		buf[len(buf)-1] &^= 0x0F
	}

	digits, err := codec.DecodeBCD(buf)
	if err != nil {
		return IMEI{}, fmt.Errorf("imei: %w", err)
	}
	// 16 packed digits; a leading zero from short-form BCD padding is
	// stripped before truncating to the 15-digit IMEI.
	if len(digits) == 16 && digits[0] == '0' {
		digits = digits[1:]
	}
	if len(digits) < 15 {
		return IMEI{}, fmt.Errorf("imei: decoded value %q too short", digits)
	}
	return NewIMEI(digits[:15])
}

// String returns the 15-digit decimal representation.
func (i IMEI) String() string {
	return i.value
}

// IsZero reports whether i is the zero value (never validated).
func (i IMEI) IsZero() bool {
	return i.value == ""
}

// Bytes re-encodes the IMEI as 8 BCD bytes, padding the 16th digit with 0.
func (i IMEI) Bytes() ([]byte, error) {
	return codec.EncodeIMEI(i.value)
}

// TAC returns the Type Allocation Code, the first 8 digits.
func (i IMEI) TAC() string {
	if len(i.value) < 8 {
		return ""
	}
	return i.value[:8]
}

// ValidateLuhn reports whether the IMEI's trailing check digit satisfies
// the Luhn algorithm. The gateway does not call this during login; it is
// exposed for callers that want to flag suspect device identifiers.
func (i IMEI) ValidateLuhn() bool {
	if len(i.value) != 15 {
		return false
	}
	sum := 0
	for idx := 0; idx < 14; idx++ {
		d := int(i.value[idx] - '0')
		if idx%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	check := (10 - (sum % 10)) % 10
	return check == int(i.value[14]-'0')
}
