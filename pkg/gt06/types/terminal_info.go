package types

import "github.com/fleetlink/gt06-gateway/internal/codec"

// TerminalInfo wraps the 1-byte status field carried in heartbeat and
// status (0x13/0x1A) messages.
type TerminalInfo struct {
	raw byte
}

const (
	terminalBitOilElectricity = 0
	terminalBitGPSTracking    = 1
	terminalBitCharging       = 2
	terminalBitACCOn          = 3
	terminalBitDefense        = 4
)

// NewTerminalInfo wraps a raw status byte.
func NewTerminalInfo(raw byte) TerminalInfo {
	return TerminalInfo{raw: raw}
}

// Raw returns the underlying byte.
func (t TerminalInfo) Raw() byte {
	return t.raw
}

func (t TerminalInfo) bit(n uint) bool {
	return codec.IsBitSet(t.raw, n)
}

// OilElectricityDisconnected reports whether the oil/electricity cutoff
// relay is currently tripped.
func (t TerminalInfo) OilElectricityDisconnected() bool {
	return t.bit(terminalBitOilElectricity)
}

// GPSTrackingEnabled reports whether GPS tracking is currently active.
func (t TerminalInfo) GPSTrackingEnabled() bool {
	return t.bit(terminalBitGPSTracking)
}

// IsCharging reports whether the device is on external power/charging.
func (t TerminalInfo) IsCharging() bool {
	return t.bit(terminalBitCharging)
}

// ACCOn reports the vehicle ignition (ACC) state.
func (t TerminalInfo) ACCOn() bool {
	return t.bit(terminalBitACCOn)
}

// Armed reports whether the device's defense/alarm mode is armed.
func (t TerminalInfo) Armed() bool {
	return t.bit(terminalBitDefense)
}
