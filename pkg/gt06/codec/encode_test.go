package codec

import (
	"testing"

	"github.com/fleetlink/gt06-gateway/internal/crc"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/protocol"
)

func TestEncoderAckStructure(t *testing.T) {
	e := NewEncoder()
	ack := e.Ack(protocol.ProtocolLogin, 42)

	if len(ack) != 10 {
		t.Fatalf("expected 10-byte ack frame, got %d", len(ack))
	}
	if ack[0] != 0x78 || ack[1] != 0x78 {
		t.Fatalf("expected short start marker, got %02X%02X", ack[0], ack[1])
	}
	if ack[2] != 0x05 {
		t.Fatalf("expected length 0x05, got 0x%02X", ack[2])
	}
	if ack[3] != protocol.ProtocolLogin {
		t.Fatalf("expected echoed protocol 0x%02X, got 0x%02X", protocol.ProtocolLogin, ack[3])
	}
	if ack[4] != 0x00 || ack[5] != 42 {
		t.Fatalf("expected echoed serial 42, got %d", int(ack[4])<<8|int(ack[5]))
	}
	if ack[len(ack)-2] != 0x0D || ack[len(ack)-1] != 0x0A {
		t.Fatalf("expected canonical stop marker, got %02X%02X", ack[len(ack)-2], ack[len(ack)-1])
	}
	if !crc.ValidateCRC(ack) {
		t.Fatal("ack frame CRC does not validate")
	}
}

func TestEncoderOnlineCommandRoundTrips(t *testing.T) {
	e := NewEncoder()
	f := e.OnlineCommand(7, 0x12345678, "RESET#", 1)

	if !crc.ValidateCRC(f) {
		t.Fatal("command frame CRC does not validate")
	}
	if f[3] != protocol.ProtocolOnlineCommand {
		t.Fatalf("expected protocol 0x%02X, got 0x%02X", protocol.ProtocolOnlineCommand, f[3])
	}
}
