package doser

import "github.com/evancroft666/aquadoser/controller/drivers"

// evaluateTick is the periodic schedule check. Channel state is re-derived
// from the schedule and ledger on every tick rather than stored; the
// per-calendar-day dedup in DoseAlreadyOccurredToday is what makes repeated
// ticks within the dose window idempotent.
func (c *Controller) evaluateTick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Priming suspends scheduled dosing entirely, for both channels.
	if c.priming[0] || c.priming[1] {
		return
	}
	now := c.clock.Now()
	for channel := 1; channel <= ChannelCount; channel++ {
		c.evaluateChannel(channel, now)
	}
}

// evaluateChannel doses the channel at most once per tick. The catch-up
// branch runs first and, when it fires, the exact-window branch is skipped.
// Callers hold c.mu.
func (c *Controller) evaluateChannel(channel int, now drivers.Instant) {
	sched := c.state.Schedules[channel-1]
	today := sched.Days[now.Weekday]
	if !today.Enabled {
		return
	}
	inv := c.state.Inventory[channel-1]
	dosedToday := inv.DoseAlreadyOccurredToday(now.Epoch)

	timeReached := now.Hour > today.Hour ||
		(now.Hour == today.Hour && now.Minute >= today.Minute)

	// Catch-up: dose late if the exact minute was missed. Disabled until the
	// first scheduled dose has ever been recorded, so a fresh device does not
	// dose straight out of the box.
	if sched.MissedDoseCompensation && timeReached && !dosedToday &&
		today.VolumeMl > 0 && inv.LastScheduledDoseEpoch != NeverDosedEpoch {
		c.scheduledDose(channel, today.VolumeMl, now)
		return
	}

	if now.Hour == today.Hour && now.Minute == today.Minute && !dosedToday {
		c.scheduledDose(channel, today.VolumeMl, now)
	}
}
