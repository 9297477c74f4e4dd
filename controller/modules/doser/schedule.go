package doser

// DaySchedule is one weekday's optional automatic dose.
type DaySchedule struct {
	Enabled  bool    `json:"enabled"`
	Hour     int     `json:"hour"`
	Minute   int     `json:"minute"`
	VolumeMl float32 `json:"volume"`
}

// clamped bounds the entry to valid ranges rather than rejecting it.
func (d DaySchedule) clamped() DaySchedule {
	if d.Hour < 0 {
		d.Hour = 0
	}
	if d.Hour > 23 {
		d.Hour = 23
	}
	if d.Minute < 0 {
		d.Minute = 0
	}
	if d.Minute > 59 {
		d.Minute = 59
	}
	if d.VolumeMl < 0 {
		d.VolumeMl = 0
	}
	return d
}

// WeeklySchedule is the 7-entry dose table of one channel, Monday first.
type WeeklySchedule struct {
	ChannelName            string         `json:"channelName"`
	MissedDoseCompensation bool           `json:"missedDoseCompensation"`
	Days                   [7]DaySchedule `json:"days"`
}

func DefaultWeeklySchedule(name string) WeeklySchedule {
	return WeeklySchedule{ChannelName: name}
}

func (w *WeeklySchedule) normalize() {
	for i := range w.Days {
		w.Days[i] = w.Days[i].clamped()
	}
}

// Schedule returns a read-only snapshot of the channel's weekly schedule.
func (c *Controller) Schedule(channel int) WeeklySchedule {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Schedules[channel-1]
}

// SaveSchedule replaces all 7 entries of the channel's schedule as one batch.
// Entries are clamped per slot, never rejected.
func (c *Controller) SaveSchedule(channel int, days [7]DaySchedule) error {
	if err := validChannel(channel); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	sched := &c.state.Schedules[channel-1]
	for i, d := range days {
		sched.Days[i] = d.clamped()
	}
	c.appendLog(sched.ChannelName + ": weekly schedule saved")
	c.refreshProjection(channel)
	c.persist()
	return nil
}

// CopyToAllDays applies the same entry to every weekday of the channel in one
// batch, the "copy Monday to all days" convenience.
func (c *Controller) CopyToAllDays(channel int, day DaySchedule) error {
	var days [7]DaySchedule
	for i := range days {
		days[i] = day
	}
	return c.SaveSchedule(channel, days)
}

// SetMissedDoseCompensation toggles catch-up dosing for the channel.
func (c *Controller) SetMissedDoseCompensation(channel int, enabled bool) error {
	if err := validChannel(channel); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Schedules[channel-1].MissedDoseCompensation = enabled
	c.persist()
	return nil
}
