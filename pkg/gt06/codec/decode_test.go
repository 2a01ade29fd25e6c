package codec

import (
	"testing"
	"time"

	"github.com/fleetlink/gt06-gateway/internal/crc"
	"github.com/fleetlink/gt06-gateway/internal/frame"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/message"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/protocol"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/types"
)

func rawFrame(protocolNum byte, payload []byte, serial uint16) frame.Frame {
	content := append([]byte{protocolNum}, payload...)
	content = append(content, byte(serial>>8), byte(serial&0xFF))

	length := byte(len(content) + 2)
	crcSpan := append([]byte{length}, content...)
	full := []byte{0x78, 0x78}
	full = append(full, crc.AppendCRC(crcSpan)...)
	full = append(full, 0x0D, 0x0A)

	frames, residue := frame.Extract(full)
	if len(frames) != 1 || len(residue) != 0 {
		panic("test helper built an invalid frame")
	}
	return frames[0]
}

func TestDecodeLogin(t *testing.T) {
	imei := types.MustNewIMEI("359586071234567")
	imeiBytes, _ := imei.Bytes()
	payload := append(append([]byte{}, imeiBytes...), 0x01, 0x23, 0x00, 0x10)

	d := NewDecoder(nil)
	msg, crcValid, err := d.Decode(rawFrame(protocol.ProtocolLogin, payload, 5))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !crcValid {
		t.Fatal("expected CRC to validate")
	}
	if msg.Kind != message.KindLogin {
		t.Fatalf("expected KindLogin, got %s", msg.Kind)
	}
	if msg.IMEI.String() != imei.String() {
		t.Fatalf("imei mismatch: got %s want %s", msg.IMEI.String(), imei.String())
	}
}

func TestDecodeLocation(t *testing.T) {
	dt := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	dateBytes := []byte{26, 3, 1, 10, 30, 0}

	lat := types.Coordinates{Latitude: 22.5, Longitude: -113.9}
	latB, lonB, south, west := lat.Bytes()
	cs := types.CourseStatus{Course: 45, South: south, West: west, GPSValid: true}

	payload := append([]byte{}, dateBytes...)
	payload = append(payload, 0xC0) // satellites in high nibble
	payload = append(payload, latB...)
	payload = append(payload, lonB...)
	payload = append(payload, 60) // speed
	payload = append(payload, cs.Bytes()...)

	d := NewDecoder(nil)
	msg, _, err := d.Decode(rawFrame(protocol.ProtocolLocation, payload, 9))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Kind != message.KindLocation {
		t.Fatalf("expected KindLocation, got %s", msg.Kind)
	}
	body := msg.Body.(message.LocationBody)
	if !body.GPSValid {
		t.Fatal("expected GPSValid=true")
	}
	if !body.DeviceTime.Equal(dt) {
		t.Fatalf("device time mismatch: got %v want %v", body.DeviceTime, dt)
	}
	if body.Coordinates.DistanceTo(lat) > 1.0 {
		t.Fatalf("coordinates drifted: got %+v want %+v", body.Coordinates, lat)
	}
}

func TestDecodeUnknownProtocol(t *testing.T) {
	d := NewDecoder(nil)
	msg, _, err := d.Decode(rawFrame(0xFE, []byte{0x01, 0x02}, 1))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Kind != message.KindUnknown {
		t.Fatalf("expected KindUnknown, got %s", msg.Kind)
	}
}

func TestDecodeCRCMismatchStillYieldsMessage(t *testing.T) {
	f := rawFrame(protocol.ProtocolHeartbeat, []byte{0x01, 0x02}, 1)
	f.CRCValid = false // simulate corruption observed by the frame decoder

	d := NewDecoder(nil)
	msg, crcValid, err := d.Decode(f)
	if err != nil {
		t.Fatalf("expected decode to proceed despite CRC mismatch: %v", err)
	}
	if crcValid {
		t.Fatal("expected crcValid=false to propagate")
	}
	if msg.Kind != message.KindHeartbeat {
		t.Fatalf("expected KindHeartbeat, got %s", msg.Kind)
	}
}
