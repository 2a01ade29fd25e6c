package codec

import (
	"github.com/fleetlink/gt06-gateway/internal/frame"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/message"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/types"
)

// statusParser decodes the 0x13/0x1A status payload: terminal-info byte,
// voltage level, GSM signal level, then the alarm/language bytes, which are
// length-checked but not decoded.
type statusParser struct {
	protocol byte
}

func (p statusParser) ProtocolNumber() byte { return p.protocol }
func (statusParser) Name() string           { return "status" }

func (p statusParser) Parse(f frame.Frame) (message.Message, error) {
	if len(f.Payload) < 5 {
		return message.Message{}, &DecodeError{Protocol: f.Protocol, Reason: "status payload too short"}
	}

	terminal := types.NewTerminalInfo(f.Payload[0])
	voltageLevel := f.Payload[1]
	gsmLevel := f.Payload[2]

	body := message.StatusBody{
		Ignition:      terminal.ACCOn(),
		ExternalPower: terminal.IsCharging(),
		Charging:      terminal.IsCharging(),
		BatteryMv:     uint16(voltageLevel) * 100,
		BatteryPct:    batteryPercentFromLevel(voltageLevel),
		GSMDbm:        gsmDbmFromLevel(gsmLevel),
		GSMLevel:      gsmLevel,
	}

	return message.Message{
		Header: message.Header{ProtocolNumber: f.Protocol, SerialNumber: f.Serial},
		Kind:   message.KindStatus,
		Body:   body,
	}, nil
}

// batteryPercentFromLevel maps the GT06 0-6 voltage level scale onto a
// rough percentage; devices do not report true millivolts in this field.
func batteryPercentFromLevel(level byte) uint8 {
	switch {
	case level >= 6:
		return 100
	case level == 0:
		return 0
	default:
		return uint8(level) * 100 / 6
	}
}

// gsmDbmFromLevel maps the GT06 0-4 GSM signal level scale onto an
// approximate dBm value for operator-facing display.
func gsmDbmFromLevel(level byte) int {
	switch {
	case level >= 4:
		return -70
	case level == 3:
		return -85
	case level == 2:
		return -95
	case level == 1:
		return -105
	default:
		return -113
	}
}
