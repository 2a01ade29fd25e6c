package codec

import (
	"fmt"
	"time"

	"github.com/fleetlink/gt06-gateway/internal/frame"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/message"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/types"
)

// DecodeError reports a failure interpreting a frame's payload. It always
// carries the protocol number so callers can log it without re-parsing
// the frame.
type DecodeError struct {
	Protocol byte
	Reason   string
	Err      error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("codec: protocol 0x%02X: %s: %v", e.Protocol, e.Reason, e.Err)
	}
	return fmt.Sprintf("codec: protocol 0x%02X: %s", e.Protocol, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder decodes frames into typed messages via a Registry. A CRC
// mismatch on the incoming frame does not prevent decoding — per the
// gateway's failure semantics, a bad CRC is decoded for diagnostics and
// surfaced via Message's CRCValid companion return, never by withholding
// the message.
type Decoder struct {
	registry             *Registry
	allowUnknownProtocol bool
}

// NewDecoder returns a Decoder backed by the given registry. If registry is
// nil, DefaultRegistry() is used.
func NewDecoder(registry *Registry) *Decoder {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Decoder{registry: registry, allowUnknownProtocol: true}
}

// Decode turns a structurally valid frame into a typed Message. Unknown
// protocol numbers decode to KindUnknown rather than erroring, since an
// unrecognised but well-formed frame must not crash the connection.
func (d *Decoder) Decode(f frame.Frame) (message.Message, bool, error) {
	crcValid := f.CRCValid

	p, ok := d.registry.Get(f.Protocol)
	if !ok {
		if !d.allowUnknownProtocol {
			return message.Message{}, crcValid, &DecodeError{Protocol: f.Protocol, Reason: "unknown protocol"}
		}
		return message.Message{
			Header: message.Header{
				ProtocolNumber: f.Protocol,
				SerialNumber:   f.Serial,
				ReceivedAt:     now(),
			},
			Kind: message.KindUnknown,
			Body: message.UnknownBody{Payload: f.Payload},
		}, crcValid, nil
	}

	msg, err := p.Parse(f)
	if err != nil {
		return message.Message{}, crcValid, err
	}
	msg.ReceivedAt = now()
	return msg, crcValid, nil
}

var now = time.Now

func decodeIMEIField(payload []byte) (types.IMEI, error) {
	if len(payload) < 8 {
		return types.IMEI{}, fmt.Errorf("payload too short for IMEI: %d bytes", len(payload))
	}
	return types.NewIMEIFromBytes(payload[:8])
}
