package types

import "testing"

func TestNewIMEI(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"valid 15 digit", "123456789012345", false},
		{"too short", "12345", true},
		{"too long", "1234567890123456", true},
		{"non digit", "12345678901234a", true},
		{"fails luhn but still accepted", "123456789012341", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIMEI(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewIMEI(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestIMEIBytesRoundTrip(t *testing.T) {
	id := MustNewIMEI("359586071234567")
	b, err := id.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
	back, err := NewIMEIFromBytes(b)
	if err != nil {
		t.Fatalf("NewIMEIFromBytes: %v", err)
	}
	if back.String() != id.String() {
		t.Fatalf("round trip mismatch: %s != %s", back.String(), id.String())
	}
}

func TestNewIMEIFromBytesStripsPaddingNibble(t *testing.T) {
	b, err := MustNewIMEI("490154203237518").Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	id, err := NewIMEIFromBytes(b)
	if err != nil {
		t.Fatalf("NewIMEIFromBytes: %v", err)
	}
	if id.String() != "490154203237518" {
		t.Fatalf("got %s", id.String())
	}
}

func TestNewIMEIFromBytesAcceptsTrailingFPadding(t *testing.T) {
	b, err := MustNewIMEI("490154203237518").Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	b[len(b)-1] |= 0x0F // device padded the final nibble with 0xF instead of 0

	id, err := NewIMEIFromBytes(b)
	if err != nil {
		t.Fatalf("NewIMEIFromBytes: %v", err)
	}
	if id.String() != "490154203237518" {
		t.Fatalf("got %s", id.String())
	}
}

func TestIMEITAC(t *testing.T) {
	id := MustNewIMEI("359586071234567")
	if got := id.TAC(); got != "35958607" {
		t.Fatalf("TAC() = %s, want 35958607", got)
	}
}
