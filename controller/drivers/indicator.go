package drivers

import "github.com/reef-pi/rpi/i2c"

// Status LED opcodes on the pump board.
const (
	opcodeLedActive  = 0x30
	opcodeLedRestore = 0x31
)

// StatusIndicator reflects the channel currently dosing on the status LED.
// RestorePrevious puts the LED back into whatever state it showed before.
type StatusIndicator interface {
	SetActive(channel int)
	RestorePrevious()
}

// BoardIndicator drives the status LED through the pump board. Indicator
// failures are cosmetic and are dropped on the floor.
type BoardIndicator struct {
	bus  i2c.Bus
	addr byte
}

func NewBoardIndicator(bus i2c.Bus, addr byte) *BoardIndicator {
	return &BoardIndicator{bus: bus, addr: addr}
}

func (b *BoardIndicator) SetActive(channel int) {
	_ = b.bus.WriteBytes(b.addr, []byte{opcodeLedActive, byte(channel)})
}

func (b *BoardIndicator) RestorePrevious() {
	_ = b.bus.WriteBytes(b.addr, []byte{opcodeLedRestore})
}

// NopIndicator is the dev-mode indicator.
type NopIndicator struct{}

func (NopIndicator) SetActive(int)    {}
func (NopIndicator) RestorePrevious() {}
