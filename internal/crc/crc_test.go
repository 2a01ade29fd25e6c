package crc

import "testing"

func TestCalculateCRC(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"simple data", []byte{0x01, 0x02, 0x03, 0x04}},
		{"empty data", []byte{}},
		{"single byte", []byte{0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateCRC(tt.data)
			t.Logf("CRC for %v: 0x%04X", tt.data, result)
		})
	}
}

func TestCalculateCRCIsDeterministic(t *testing.T) {
	data := []byte{0x05, 0x01, 0x00, 0x01}
	if CalculateCRC(data) != CalculateCRC(data) {
		t.Fatal("CalculateCRC is not deterministic")
	}
}

func TestAppendCRC(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	result := AppendCRC(data)

	if len(result) != len(data)+2 {
		t.Errorf("expected length %d, got %d", len(data)+2, len(result))
	}
	for i := range data {
		if result[i] != data[i] {
			t.Errorf("byte %d changed: expected 0x%02X, got 0x%02X", i, data[i], result[i])
		}
	}
}

func buildFrame(protocol byte, content []byte, serial uint16) []byte {
	frame := []byte{0x78, 0x78, byte(1 + len(content) + 2 + 2)}
	frame = append(frame, protocol)
	frame = append(frame, content...)
	frame = append(frame, byte(serial>>8), byte(serial&0xFF))
	frame = append(frame, 0x00, 0x00) // CRC placeholder
	frame = append(frame, 0x0D, 0x0A)

	crcData := frame[2 : len(frame)-4]
	c := CalculateCRC(crcData)
	frame[len(frame)-4] = byte(c >> 8)
	frame[len(frame)-3] = byte(c & 0xFF)
	return frame
}

func TestValidateCRC(t *testing.T) {
	frame := buildFrame(0x13, []byte{0x00}, 1)

	if !ValidateCRC(frame) {
		t.Error("expected valid CRC")
	}

	frame[4] = 0xFF
	if ValidateCRC(frame) {
		t.Error("expected invalid CRC after corruption")
	}
}

func TestVerifyPacketCRC(t *testing.T) {
	frame := buildFrame(0x13, []byte{0x00}, 1)

	received, calculated, ok := VerifyPacketCRC(frame)
	if !ok {
		t.Fatal("expected ok=true for well-formed frame")
	}
	if received != calculated {
		t.Errorf("CRC mismatch: received=0x%04X, calculated=0x%04X", received, calculated)
	}
}

func TestVerifyPacketCRCTooShort(t *testing.T) {
	_, _, ok := VerifyPacketCRC([]byte{0x78, 0x78, 0x00})
	if ok {
		t.Error("expected ok=false for undersized packet")
	}
}

func TestCRCWithLongFormat(t *testing.T) {
	longFrame := []byte{
		0x79, 0x79,
		0x00, 0x06,
		0x01,
		0x00,
		0x00, 0x01,
		0x00, 0x00,
		0x0D, 0x0A,
	}
	crcData := longFrame[2 : len(longFrame)-4]
	c := CalculateCRC(crcData)
	longFrame[len(longFrame)-4] = byte(c >> 8)
	longFrame[len(longFrame)-3] = byte(c & 0xFF)

	if !ValidateCRC(longFrame) {
		t.Error("long-format packet CRC validation failed")
	}
}

func BenchmarkCalculateCRC(b *testing.B) {
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = CalculateCRC(data)
	}
}
