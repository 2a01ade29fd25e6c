package codec

import (
	"encoding/binary"

	"github.com/fleetlink/gt06-gateway/internal/crc"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/protocol"
)

// Encoder builds outbound GT06 frames: acknowledgements for decoded
// messages, and online-command frames for the Command Consumer.
type Encoder struct{}

// NewEncoder returns an Encoder. It holds no state.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// buildFrame assembles a short-form (0x7878) frame: start, length, protocol,
// content, serial, CRC, stop. The CRC spans the length byte through the
// serial number inclusive, matching internal/crc.VerifyPacketCRC's span.
func buildFrame(protocolNum byte, content []byte, serial uint16) []byte {
	body := make([]byte, 0, 1+len(content)+2)
	body = append(body, protocolNum)
	body = append(body, content...)
	body = append(body, byte(serial>>8), byte(serial&0xFF))

	length := byte(len(body) + 2) // +2 for the trailing CRC field
	crcSpan := make([]byte, 0, 1+len(body))
	crcSpan = append(crcSpan, length)
	crcSpan = append(crcSpan, body...)
	withCRC := crc.AppendCRC(crcSpan)

	frame := make([]byte, 0, 2+len(withCRC)+2)
	frame = append(frame, byte(protocol.StartBitShort>>8), byte(protocol.StartBitShort&0xFF))
	frame = append(frame, withCRC...)
	frame = append(frame, byte(protocol.StopBitCanonical>>8), byte(protocol.StopBitCanonical&0xFF))
	return frame
}

// Ack builds the standard acknowledgement frame for a decoded message:
// start 0x7878, length 0x05, the echoed protocol byte, the echoed serial
// number, a computed CRC, and stop 0x0D0A.
func (e *Encoder) Ack(protocolNum byte, serial uint16) []byte {
	return buildFrame(protocolNum, nil, serial)
}

// OnlineCommand builds an outbound command frame (protocol 0x80): a 4-byte
// server flag, the UTF-8 command text, and a 2-byte language flag, wrapped
// per the standard frame layout.
func (e *Encoder) OnlineCommand(serial uint16, serverFlag uint32, command string, language uint16) []byte {
	content := make([]byte, 0, 4+len(command)+2)
	flagBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(flagBytes, serverFlag)
	content = append(content, flagBytes...)
	content = append(content, []byte(command)...)
	content = append(content, byte(language>>8), byte(language&0xFF))
	return buildFrame(protocol.ProtocolOnlineCommand, content, serial)
}
