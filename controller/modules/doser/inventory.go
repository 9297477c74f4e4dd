package doser

import (
	"fmt"
	"time"
)

// InventoryState tracks the bottle of one channel. RemainingMl is allowed to
// go negative so an operator sees over-draw instead of silently lost doses.
type InventoryState struct {
	RemainingMl            float32
	LastDoseVolumeMl       float32
	LastDoseTime           string
	LastScheduledDoseEpoch uint32
}

// DoseAlreadyOccurredToday reports whether the last scheduled or catch-up
// dose landed on the same calendar day as nowEpoch. The never-dosed sentinel
// is unconditionally "no".
func (s InventoryState) DoseAlreadyOccurredToday(nowEpoch uint32) bool {
	if s.LastScheduledDoseEpoch == NeverDosedEpoch {
		return false
	}
	return sameCalendarDay(s.LastScheduledDoseEpoch, nowEpoch)
}

// sameCalendarDay compares the year/month/day of two timezone-shifted epochs.
// Epoch-distance comparison is wrong across midnight; compare the fields.
func sameCalendarDay(a, b uint32) bool {
	ya, ma, da := time.Unix(int64(a), 0).UTC().Date()
	yb, mb, db := time.Unix(int64(b), 0).UTC().Date()
	return ya == yb && ma == mb && da == db
}

func formatDoseTime(epoch uint32) string {
	return time.Unix(int64(epoch), 0).UTC().Format("15:04:05 02/01/2006")
}

// recordDose applies a completed dose to the ledger. Only scheduled and
// catch-up doses stamp LastScheduledDoseEpoch; manual doses never do.
// Callers hold c.mu.
func (c *Controller) recordDose(channel int, volumeMl float32, scheduled bool, nowEpoch uint32) {
	inv := &c.state.Inventory[channel-1]
	inv.RemainingMl -= volumeMl
	inv.LastDoseVolumeMl = volumeMl
	inv.LastDoseTime = formatDoseTime(nowEpoch)
	if scheduled {
		inv.LastScheduledDoseEpoch = nowEpoch
	}
	c.refreshProjection(channel)
	c.persist()
	c.appendHistory(channel, volumeMl, scheduled, nowEpoch)
	c.publishDose(channel, volumeMl, scheduled)
	if c.metrics != nil {
		kind := "manual"
		if scheduled {
			kind = "scheduled"
		}
		c.metrics.observeDose(channel, volumeMl, kind)
	}
}

// SetRemaining is the operator override for a refilled or re-measured bottle.
// Dose history is untouched.
func (c *Controller) SetRemaining(channel int, volumeMl float32) error {
	if err := validChannel(channel); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Inventory[channel-1].RemainingMl = volumeMl
	c.appendLog(fmt.Sprintf("%s: bottle level set to %.1f mL", c.state.Schedules[channel-1].ChannelName, volumeMl))
	c.refreshProjection(channel)
	c.persist()
	return nil
}

// Inventory returns a snapshot of the channel's ledger.
func (c *Controller) Inventory(channel int) InventoryState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Inventory[channel-1]
}

func validChannel(channel int) error {
	if channel < 1 || channel > ChannelCount {
		return fmt.Errorf("unknown channel %d", channel)
	}
	return nil
}
