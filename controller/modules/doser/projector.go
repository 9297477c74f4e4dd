package doser

const (
	projectionHorizon = 365

	// DaysMoreThanYear is the projection sentinel for "more than a year".
	DaysMoreThanYear = 366
)

// projectDaysRemaining walks the weekly schedule forward from startWeekday,
// one day at a time, against a copy of the remaining volume. Every day counts
// toward the horizon; only enabled days with a positive dose drain the
// balance. The walk stops at the first day the balance cannot cover, or at an
// enabled day with a non-positive volume, and reports the days advanced so
// far. It never mutates ledger state.
func projectDaysRemaining(sched WeeklySchedule, remainingMl float32, startWeekday int) int32 {
	balance := remainingMl
	for day := 0; day < projectionHorizon; day++ {
		entry := sched.Days[(startWeekday+day)%7]
		if !entry.Enabled {
			continue
		}
		if entry.VolumeMl <= 0 || balance < entry.VolumeMl {
			return int32(day)
		}
		balance -= entry.VolumeMl
	}
	return DaysMoreThanYear
}

// Project recomputes and returns the channel's day-remaining estimate.
func (c *Controller) Project(channel int) (int32, error) {
	if err := validChannel(channel); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshProjection(channel)
	return c.state.DaysRemaining[channel-1], nil
}

// refreshProjection updates the cached estimate for the channel and fires the
// low-inventory alert when the projection crosses below the threshold.
// Callers hold c.mu.
func (c *Controller) refreshProjection(channel int) {
	idx := channel - 1
	days := projectDaysRemaining(
		c.state.Schedules[idx],
		c.state.Inventory[idx].RemainingMl,
		c.clock.Now().Weekday,
	)
	c.state.DaysRemaining[idx] = days
	if c.metrics != nil {
		c.metrics.observeInventory(channel, c.state.Inventory[idx].RemainingMl, days)
	}
	if days >= lowInventoryDays {
		c.lowAlerted[idx] = false
		return
	}
	if c.state.NotifyLowFert && !c.lowAlerted[idx] {
		c.lowAlerted[idx] = true
		c.publishLowInventory(channel, days)
	}
}
