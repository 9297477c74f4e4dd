package doser

import (
	"fmt"
	"time"

	"github.com/evancroft666/aquadoser/controller/drivers"
)

// dose performs one complete dose: LED bracket, blocking motor run, ledger
// write-back. The motor run happens under c.mu, which is what serializes the
// two channels and scheduled vs manual dosing; a second request blocks until
// the pump stops. Doses are never split or resumed, and a motor fault is
// still recorded as dispensed (there is no flow sensing to know better).
// Callers hold c.mu.
func (c *Controller) dose(channel int, volumeMl float32, scheduled bool, now drivers.Instant) {
	ms := c.state.Calibrations[channel-1].MillisFor(volumeMl)
	c.led.SetActive(channel)
	err := c.motor.Run(channel, time.Duration(ms)*time.Millisecond)
	c.led.RestorePrevious()
	if err != nil {
		c.log.Warnw("motor run failed", "channel", channel, "error", err)
	}
	c.recordDose(channel, volumeMl, scheduled, now.Epoch)
	kind := "manual"
	if scheduled {
		kind = "scheduled"
	}
	c.appendLog(fmt.Sprintf("%s: %s dose of %.1f mL (%d ms)",
		c.state.Schedules[channel-1].ChannelName, kind, volumeMl, ms))
}

// ManualDose dispenses the given volume right now. Manual doses never stamp
// the scheduled-dose timestamp, so they do not suppress the day's scheduled
// dose.
func (c *Controller) ManualDose(channel int, volumeMl float32) error {
	if err := validChannel(channel); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dose(channel, volumeMl, false, c.clock.Now())
	return nil
}

// scheduledDose is invoked by the evaluator only. Callers hold c.mu.
func (c *Controller) scheduledDose(channel int, volumeMl float32, now drivers.Instant) {
	c.dose(channel, volumeMl, true, now)
}
