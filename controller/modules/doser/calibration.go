package doser

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidMeasurement is returned when a calibration measurement cannot
// produce a factor (division by zero or a negative volume).
var ErrInvalidMeasurement = errors.New("measured volume must be greater than zero")

// ChannelCalibration maps a requested volume to a pump run-time for one
// channel. The factor is milliseconds of run-time per milliliter.
type ChannelCalibration struct {
	MsPerMilliliter float32
	Calibrated      bool
}

// MillisFor converts a volume into a pump run-time. Volumes at or below zero
// yield a zero run-time; callers are responsible for sane volumes beyond that.
func (c ChannelCalibration) MillisFor(volumeMl float32) uint32 {
	if volumeMl <= 0 {
		return 0
	}
	return uint32(math.Round(float64(volumeMl) * float64(c.MsPerMilliliter)))
}

// RunCalibration drives the channel's pump for the fixed calibration duration
// so the operator can measure the dispensed volume. It does not touch the
// stored factor.
func (c *Controller) RunCalibration(channel int) error {
	if err := validChannel(channel); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendLog(c.state.Schedules[channel-1].ChannelName + ": calibration run started")
	c.led.SetActive(channel)
	err := c.motor.Run(channel, CalibrationRunMs*time.Millisecond)
	c.led.RestorePrevious()
	if err != nil {
		// No flow sensing exists to verify the run; log and carry on.
		c.log.Warnw("calibration motor run failed", "channel", channel, "error", err)
	}
	return nil
}

// CompleteCalibration derives and stores the ms/mL factor from the measured
// volume of the calibration run. On failure the previous factor is retained.
func (c *Controller) CompleteCalibration(channel int, measuredVolumeMl float32) error {
	if err := validChannel(channel); err != nil {
		return err
	}
	if measuredVolumeMl <= 0 {
		return ErrInvalidMeasurement
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cal := &c.state.Calibrations[channel-1]
	cal.MsPerMilliliter = float32(CalibrationRunMs) / measuredVolumeMl
	cal.Calibrated = true
	c.appendLog(c.state.Schedules[channel-1].ChannelName + ": calibration factor updated")
	c.persist()
	return nil
}

// Calibration returns a snapshot of the channel's calibration.
func (c *Controller) Calibration(channel int) ChannelCalibration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Calibrations[channel-1]
}
