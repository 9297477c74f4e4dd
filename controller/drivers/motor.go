package drivers

import (
	"encoding/binary"
	"time"

	"github.com/reef-pi/rpi/i2c"
)

// Pump board opcodes. The board runs a pump for a commanded duration on its
// own; Run blocks the caller for the full duration so doses never overlap.
const (
	opcodeRunPump   = 0x21
	opcodeStartPump = 0x22
	opcodeStopPump  = 0x23
)

// Motor drives the peristaltic pump of a channel (1 or 2). Run is blocking;
// Start/Stop are the continuous mode used for priming.
type Motor interface {
	Run(channel int, duration time.Duration) error
	Start(channel int) error
	Stop(channel int) error
}

// PumpBoard talks to the motor controller board over i2c.
type PumpBoard struct {
	bus  i2c.Bus
	addr byte
}

func NewPumpBoard(bus i2c.Bus, addr byte) *PumpBoard {
	return &PumpBoard{bus: bus, addr: addr}
}

func (p *PumpBoard) Run(channel int, duration time.Duration) error {
	buf := make([]byte, 6)
	buf[0] = opcodeRunPump
	buf[1] = byte(channel)
	binary.LittleEndian.PutUint32(buf[2:], uint32(duration/time.Millisecond))
	if err := p.bus.WriteBytes(p.addr, buf); err != nil {
		return err
	}
	// The board has no completion feedback; hold the caller for the run time.
	time.Sleep(duration)
	return nil
}

func (p *PumpBoard) Start(channel int) error {
	return p.bus.WriteBytes(p.addr, []byte{opcodeStartPump, byte(channel)})
}

func (p *PumpBoard) Stop(channel int) error {
	return p.bus.WriteBytes(p.addr, []byte{opcodeStopPump, byte(channel)})
}

// SoftMotor is the dev-mode substitute: it keeps the blocking contract but
// touches no hardware.
type SoftMotor struct{}

func (SoftMotor) Run(channel int, duration time.Duration) error {
	time.Sleep(duration)
	return nil
}

func (SoftMotor) Start(channel int) error { return nil }
func (SoftMotor) Stop(channel int) error  { return nil }
