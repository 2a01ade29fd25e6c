package frame

import (
	"bytes"
	"testing"

	"github.com/fleetlink/gt06-gateway/internal/crc"
)

func buildFrame(protocolNum byte, payload []byte, serial uint16, stop uint16) []byte {
	content := append([]byte{protocolNum}, payload...)
	content = append(content, byte(serial>>8), byte(serial&0xFF))

	length := byte(len(content) + 2)
	crcSpan := append([]byte{length}, content...)
	withCRC := crc.AppendCRC(crcSpan)

	f := []byte{0x78, 0x78}
	f = append(f, withCRC...)
	f = append(f, byte(stop>>8), byte(stop&0xFF))
	return f
}

func TestExtractSingleFrame(t *testing.T) {
	raw := buildFrame(0x01, []byte{0xAA, 0xBB}, 7, 0x0D0A)

	frames, residue := Extract(raw)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if len(residue) != 0 {
		t.Fatalf("expected empty residue, got %d bytes", len(residue))
	}
	f := frames[0]
	if f.Protocol != 0x01 || f.Serial != 7 || !f.CRCValid || !f.StopValid {
		t.Fatalf("unexpected frame: %+v", f)
	}
}

func TestExtractAwaitsMoreData(t *testing.T) {
	raw := buildFrame(0x01, []byte{0xAA}, 1, 0x0D0A)
	partial := raw[:len(raw)-2]

	frames, residue := Extract(partial)
	if len(frames) != 0 {
		t.Fatalf("expected no frames for partial input, got %d", len(frames))
	}
	if !bytes.Equal(residue, partial) {
		t.Fatalf("expected residue to equal input, got %v", residue)
	}
}

func TestExtractChunkingInvariance(t *testing.T) {
	f1 := buildFrame(0x01, []byte{0x01}, 1, 0x0D0A)
	f2 := buildFrame(0x05, []byte{0x02}, 2, 0x0D0A)
	whole := append(append([]byte{}, f1...), f2...)

	wholeFrames, _ := Extract(whole)
	if len(wholeFrames) != 2 {
		t.Fatalf("expected 2 frames decoding whole, got %d", len(wholeFrames))
	}

	var streamed []Frame
	var buf []byte
	for _, b := range whole {
		buf = append(buf, b)
		got, residue := Extract(buf)
		streamed = append(streamed, got...)
		buf = residue
	}
	if len(streamed) != len(wholeFrames) {
		t.Fatalf("chunked decode produced %d frames, whole decode produced %d", len(streamed), len(wholeFrames))
	}
	for i := range streamed {
		if streamed[i].Protocol != wholeFrames[i].Protocol || streamed[i].Serial != wholeFrames[i].Serial {
			t.Fatalf("frame %d mismatch: %+v vs %+v", i, streamed[i], wholeFrames[i])
		}
	}
}

func TestExtractSkipsNoiseBeforeStart(t *testing.T) {
	noise := []byte{0x00, 0x11, 0x22, 0x33}
	real := buildFrame(0x01, []byte{0x01}, 1, 0x0D0A)
	raw := append(append([]byte{}, noise...), real...)

	frames, residue := Extract(raw)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if len(residue) != 0 {
		t.Fatalf("expected no residue, got %d", len(residue))
	}
}

func TestExtractAcceptsNonCanonicalStop(t *testing.T) {
	raw := buildFrame(0x01, []byte{0x01}, 1, 0x0A0D)

	frames, _ := Extract(raw)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame with tolerant stop bits, got %d", len(frames))
	}
	if frames[0].StopValid {
		t.Fatal("expected StopValid=false for non-canonical stop marker")
	}
}

func TestExtractRejectsOutOfRangeLength(t *testing.T) {
	// Length byte of 0 is invalid (< MinFrameLength); decoder must resync
	// rather than emit a bogus frame.
	raw := []byte{0x78, 0x78, 0x00, 0x0D, 0x0A}
	real := buildFrame(0x01, []byte{0x01}, 1, 0x0D0A)
	raw = append(raw, real...)

	frames, _ := Extract(raw)
	if len(frames) != 1 {
		t.Fatalf("expected decoder to skip invalid length and find real frame, got %d frames", len(frames))
	}
}

func TestExtractFlagsCRCMismatchWithoutDroppingFrame(t *testing.T) {
	raw := buildFrame(0x01, []byte{0x01}, 1, 0x0D0A)
	raw[4] ^= 0xFF // corrupt payload without touching CRC bytes

	frames, _ := Extract(raw)
	if len(frames) != 1 {
		t.Fatalf("expected frame to still be emitted, got %d", len(frames))
	}
	if frames[0].CRCValid {
		t.Fatal("expected CRCValid=false after corruption")
	}
}
