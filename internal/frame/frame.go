// Package frame implements the GT06 framing decoder (C1): it reassembles
// complete, structurally valid frames from a per-connection byte stream,
// leaving any partial suffix for the next call.
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/fleetlink/gt06-gateway/internal/crc"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/protocol"
)

// Frame is one fully reassembled GT06 wire frame.
type Frame struct {
	StartMarker uint16
	Protocol    byte
	Payload     []byte // message-specific content, between protocol byte and serial number
	Serial      uint16
	CRCValid    bool
	StopMarker  uint16
	StopValid   bool // true if StopMarker is the canonical 0x0D0A
	Raw         []byte
}

// ErrIOFailure marks a non-recoverable read error that must close the
// connection, as opposed to ordinary noise that the decoder skips.
type ErrIOFailure struct {
	Err error
}

func (e *ErrIOFailure) Error() string { return fmt.Sprintf("frame: io failure: %v", e.Err) }
func (e *ErrIOFailure) Unwrap() error { return e.Err }

func isStopMarker(v uint16) bool {
	for _, m := range protocol.StopBitVariants {
		if v == m {
			return true
		}
	}
	return false
}

// Extract scans buf for complete frames, returning them in order along with
// the unconsumed residue (a partial frame, or noise still within the search
// window). It never blocks and never errors on ordinary malformed input —
// per the Frame Decoder's failure semantics, unrecognisable bytes are
// skipped one at a time and no frame is emitted for them.
func Extract(buf []byte) (frames []Frame, residue []byte) {
	for {
		if len(buf) < 5 {
			return frames, buf
		}

		start, startOffset, found := findStartMarker(buf)
		if !found {
			// No marker anywhere in the search window: the window itself
			// is noise, drop it and keep whatever is left for next time.
			if len(buf) > protocol.StartSearchWindow {
				return frames, buf[protocol.StartSearchWindow:]
			}
			return frames, buf
		}
		if startOffset > 0 {
			buf = buf[startOffset:]
			continue
		}

		lengthFieldSize := protocol.LengthFieldSizeShort
		if start == protocol.StartBitLong {
			lengthFieldSize = protocol.LengthFieldSizeLong
		}
		if len(buf) < protocol.StartBitSize+lengthFieldSize {
			return frames, buf
		}

		var declaredLength int
		if lengthFieldSize == 1 {
			declaredLength = int(buf[protocol.StartBitSize])
		} else {
			declaredLength = int(binary.BigEndian.Uint16(buf[protocol.StartBitSize : protocol.StartBitSize+2]))
		}

		if declaredLength < protocol.MinFrameLength || declaredLength > protocol.MaxFrameLength {
			// Not a real frame at this offset; skip one byte and resync.
			buf = buf[1:]
			continue
		}

		total := protocol.StartBitSize + lengthFieldSize + declaredLength + protocol.StopBitSize
		if len(buf) < total {
			return frames, buf
		}

		candidate := buf[:total]
		stop := binary.BigEndian.Uint16(candidate[total-2:])
		stopValid := isStopMarker(stop)
		if !stopValid {
			// Treat as corruption at this offset; skip one byte and resync
			// rather than discarding the whole candidate, so an embedded
			// real start marker is not lost.
			buf = buf[1:]
			continue
		}

		protoOffset := protocol.StartBitSize + lengthFieldSize
		serialOffset := total - protocol.StopBitSize - protocol.CRCSize - protocol.SerialNumberSize
		crcOffset := total - protocol.StopBitSize - protocol.CRCSize

		f := Frame{
			StartMarker: start,
			Protocol:    candidate[protoOffset],
			Payload:     append([]byte(nil), candidate[protoOffset+1:serialOffset]...),
			Serial:      binary.BigEndian.Uint16(candidate[serialOffset:crcOffset]),
			StopMarker:  stop,
			StopValid:   stop == protocol.StopBitCanonical,
			Raw:         append([]byte(nil), candidate...),
		}
		f.CRCValid = crc.ValidateCRC(candidate)

		frames = append(frames, f)
		buf = buf[total:]
	}
}

// findStartMarker scans up to protocol.StartSearchWindow bytes of buf for a
// start marker, returning its value and offset. found is false if no
// marker appears within the window.
func findStartMarker(buf []byte) (marker uint16, offset int, found bool) {
	limit := len(buf) - 1
	if limit > protocol.StartSearchWindow {
		limit = protocol.StartSearchWindow
	}
	for i := 0; i < limit; i++ {
		v := binary.BigEndian.Uint16(buf[i : i+2])
		if v == protocol.StartBitShort || v == protocol.StartBitLong {
			return v, i, true
		}
	}
	return 0, 0, false
}
