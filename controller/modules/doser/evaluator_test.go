package doser

import "testing"

// scheduleAt enables a single weekday entry on the channel.
func scheduleAt(t *testing.T, c *Controller, channel, weekday, hour, minute int, volume float32) {
	t.Helper()
	var days [7]DaySchedule
	days[weekday] = DaySchedule{Enabled: true, Hour: hour, Minute: minute, VolumeMl: volume}
	if err := c.SaveSchedule(channel, days); err != nil {
		t.Fatalf("SaveSchedule failed: %v", err)
	}
}

func TestExactWindowDosesOncePerDay(t *testing.T) {
	rig := newTestRig()
	scheduleAt(t, rig.c, 1, 0, 9, 30, 10) // Monday 09:30
	if err := rig.c.SetRemaining(1, 100); err != nil {
		t.Fatalf("SetRemaining failed: %v", err)
	}

	rig.clock.set(0, 9, 29)
	rig.c.evaluateTick()
	if rig.motor.runCount() != 0 {
		t.Fatal("dosed before the scheduled minute")
	}

	rig.clock.set(0, 9, 30)
	rig.c.evaluateTick()
	if rig.motor.runCount() != 1 {
		t.Fatalf("motor ran %d times at the scheduled minute, want 1", rig.motor.runCount())
	}
	if got := rig.c.Inventory(1).RemainingMl; got != 90 {
		t.Errorf("remaining = %v, want 90", got)
	}

	// Second tick in the same minute, and a later tick the same day: no
	// second dose.
	rig.c.evaluateTick()
	rig.clock.set(0, 9, 30)
	rig.c.evaluateTick()
	if rig.motor.runCount() != 1 {
		t.Errorf("motor ran %d times within one day, want 1", rig.motor.runCount())
	}

	// Next Monday it doses again.
	rig.clock.set(7, 9, 30)
	rig.c.evaluateTick()
	if rig.motor.runCount() != 2 {
		t.Errorf("motor ran %d times across two Mondays, want 2", rig.motor.runCount())
	}
}

func TestDisabledDayNeverDoses(t *testing.T) {
	rig := newTestRig()
	scheduleAt(t, rig.c, 1, 0, 9, 0, 10) // Monday only
	rig.clock.set(1, 9, 0)               // Tuesday
	rig.c.evaluateTick()
	if rig.motor.runCount() != 0 {
		t.Error("dosed on a disabled day")
	}
}

func TestCatchUpNeverFiresOnFreshDevice(t *testing.T) {
	rig := newTestRig()
	scheduleAt(t, rig.c, 1, 0, 9, 0, 10)
	if err := rig.c.SetMissedDoseCompensation(1, true); err != nil {
		t.Fatalf("SetMissedDoseCompensation failed: %v", err)
	}
	if err := rig.c.SetRemaining(1, 100); err != nil {
		t.Fatalf("SetRemaining failed: %v", err)
	}

	// Well past the window on a device that has never scheduled-dosed.
	rig.clock.set(0, 14, 0)
	rig.c.evaluateTick()
	if rig.motor.runCount() != 0 {
		t.Error("catch-up fired from the never-dosed state")
	}
}

func TestCatchUpFiresOnceAfterMissedWindow(t *testing.T) {
	rig := newTestRig()
	scheduleAt(t, rig.c, 1, 0, 9, 0, 10)
	if err := rig.c.SetMissedDoseCompensation(1, true); err != nil {
		t.Fatalf("SetMissedDoseCompensation failed: %v", err)
	}
	if err := rig.c.SetRemaining(1, 100); err != nil {
		t.Fatalf("SetRemaining failed: %v", err)
	}

	// Seed history with a real scheduled dose at the exact window.
	rig.clock.set(0, 9, 0)
	rig.c.evaluateTick()
	if rig.motor.runCount() != 1 {
		t.Fatalf("seed dose did not run")
	}

	// Next Monday the device was off at 09:00; it comes back at 16:47.
	rig.clock.set(7, 16, 47)
	rig.c.evaluateTick()
	if rig.motor.runCount() != 2 {
		t.Fatalf("catch-up did not fire, motor runs = %d", rig.motor.runCount())
	}

	// Ticks keep arriving for the rest of the day; no duplicates.
	rig.clock.set(7, 16, 48)
	rig.c.evaluateTick()
	rig.clock.set(7, 23, 59)
	rig.c.evaluateTick()
	if rig.motor.runCount() != 2 {
		t.Errorf("catch-up fired more than once per day, motor runs = %d", rig.motor.runCount())
	}
}

func TestCatchUpDisabledWithoutCompensation(t *testing.T) {
	rig := newTestRig()
	scheduleAt(t, rig.c, 1, 0, 9, 0, 10)
	if err := rig.c.SetRemaining(1, 100); err != nil {
		t.Fatalf("SetRemaining failed: %v", err)
	}
	// Seed a real dose so the sentinel guard is out of the picture.
	rig.clock.set(0, 9, 0)
	rig.c.evaluateTick()

	rig.clock.set(7, 12, 0)
	rig.c.evaluateTick()
	if rig.motor.runCount() != 1 {
		t.Error("dosed late without missed-dose compensation")
	}
}

func TestCatchUpSkipsZeroVolume(t *testing.T) {
	rig := newTestRig()
	scheduleAt(t, rig.c, 1, 0, 9, 0, 10)
	if err := rig.c.SetMissedDoseCompensation(1, true); err != nil {
		t.Fatalf("SetMissedDoseCompensation failed: %v", err)
	}
	rig.clock.set(0, 9, 0)
	rig.c.evaluateTick() // seed

	scheduleAt(t, rig.c, 1, 0, 9, 0, 0) // volume drops to zero
	if err := rig.c.SetMissedDoseCompensation(1, true); err != nil {
		t.Fatalf("SetMissedDoseCompensation failed: %v", err)
	}
	rig.clock.set(7, 12, 0)
	rig.c.evaluateTick()
	if rig.motor.runCount() != 1 {
		t.Error("catch-up fired for a zero-volume entry")
	}
}

func TestPrimingSuspendsEvaluation(t *testing.T) {
	rig := newTestRig()
	scheduleAt(t, rig.c, 1, 0, 9, 0, 10)
	if err := rig.c.StartPrime(2); err != nil {
		t.Fatalf("StartPrime failed: %v", err)
	}

	rig.clock.set(0, 9, 0)
	rig.c.evaluateTick()
	if rig.motor.runCount() != 0 {
		t.Error("dosed while a channel was priming")
	}

	if err := rig.c.StopPrime(2); err != nil {
		t.Fatalf("StopPrime failed: %v", err)
	}
	rig.c.evaluateTick()
	if rig.motor.runCount() != 1 {
		t.Error("did not dose after priming stopped")
	}
}

func TestChannelsEvaluatedIndependently(t *testing.T) {
	rig := newTestRig()
	scheduleAt(t, rig.c, 1, 0, 9, 0, 10)
	scheduleAt(t, rig.c, 2, 0, 9, 0, 4)
	if err := rig.c.SetRemaining(1, 100); err != nil {
		t.Fatalf("SetRemaining failed: %v", err)
	}
	if err := rig.c.SetRemaining(2, 100); err != nil {
		t.Fatalf("SetRemaining failed: %v", err)
	}

	rig.clock.set(0, 9, 0)
	rig.c.evaluateTick()
	if rig.motor.runCount() != 2 {
		t.Fatalf("motor ran %d times, want one dose per channel", rig.motor.runCount())
	}
	if got := rig.c.Inventory(1).RemainingMl; got != 90 {
		t.Errorf("channel 1 remaining = %v, want 90", got)
	}
	if got := rig.c.Inventory(2).RemainingMl; got != 96 {
		t.Errorf("channel 2 remaining = %v, want 96", got)
	}
	// A manual dose on channel 2 must not suppress channel 2's next
	// scheduled dose.
	rig.clock.set(6, 12, 0)
	if err := rig.c.ManualDose(2, 1); err != nil {
		t.Fatalf("ManualDose failed: %v", err)
	}
	rig.clock.set(7, 9, 0)
	rig.c.evaluateTick()
	if rig.motor.runCount() != 5 {
		t.Errorf("motor ran %d times, want 5 (2 + manual + 2)", rig.motor.runCount())
	}
}

func TestScheduledDoseStampsMarkerAndLED(t *testing.T) {
	rig := newTestRig()
	scheduleAt(t, rig.c, 1, 2, 7, 15, 3) // Wednesday 07:15
	rig.clock.set(2, 7, 15)
	rig.c.evaluateTick()

	inv := rig.c.Inventory(1)
	if inv.LastScheduledDoseEpoch == NeverDosedEpoch {
		t.Error("scheduled dose did not stamp lastScheduledDoseEpoch")
	}
	if !inv.DoseAlreadyOccurredToday(rig.clock.Now().Epoch) {
		t.Error("ledger does not report today's dose")
	}
	rig.led.mu.Lock()
	defer rig.led.mu.Unlock()
	if len(rig.led.events) < 2 || rig.led.events[0] != "active:1" || rig.led.events[len(rig.led.events)-1] != "restore" {
		t.Errorf("LED bracket wrong: %v", rig.led.events)
	}
}
