package codec

import "fmt"

// BCD (Binary-Coded Decimal) encoding/decoding
// Used for IMEI, ICCID, and other numeric fields in VL103M protocol

// DecodeBCD converts BCD-encoded bytes to a decimal string
// Each byte contains two decimal digits (high nibble and low nibble)
// Example: 0x12 0x34 -> "1234"
func DecodeBCD(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	result := make([]byte, 0, len(data)*2)

	for i, b := range data {
		high := (b >> 4) & 0x0F
		low := b & 0x0F

		// Validate BCD digits (must be 0-9)
		if high > 9 {
			return "", fmt.Errorf("invalid BCD digit at byte %d (high nibble): 0x%X", i, high)
		}
		if low > 9 {
			return "", fmt.Errorf("invalid BCD digit at byte %d (low nibble): 0x%X", i, low)
		}

		result = append(result, '0'+high)
		result = append(result, '0'+low)
	}

	return string(result), nil
}

// EncodeBCD converts a decimal string to BCD-encoded bytes
// The string must contain only digits 0-9
// Example: "1234" -> []byte{0x12, 0x34}
func EncodeBCD(str string) ([]byte, error) {
	// Validate input contains only digits
	for i, c := range str {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("invalid character at position %d: '%c' (must be 0-9)", i, c)
		}
	}

	// Pad with trailing zero if odd length
	if len(str)%2 != 0 {
		str = str + "0"
	}

	result := make([]byte, len(str)/2)

	for i := 0; i < len(str); i += 2 {
		high := str[i] - '0'
		low := str[i+1] - '0'
		result[i/2] = (high << 4) | low
	}

	return result, nil
}

// EncodeIMEI encodes a 15-digit IMEI to 8 BCD bytes
// Pads the 16th position with 0
func EncodeIMEI(imei string) ([]byte, error) {
	if len(imei) != 15 {
		return nil, fmt.Errorf("IMEI must be exactly 15 digits, got %d", len(imei))
	}

	// Validate all digits
	for i, c := range imei {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("invalid IMEI character at position %d: '%c'", i, c)
		}
	}

	// Add padding digit
	padded := imei + "0"
	return EncodeBCD(padded)
}

