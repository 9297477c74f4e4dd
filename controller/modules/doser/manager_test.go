package doser

import (
	"testing"
	"time"
)

func TestStatePersistsAcrossRestart(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock()
	first := New(Deps{Store: store, Motor: newFakeMotor(), Clock: clock}, 30*time.Second)
	if err := first.Setup(); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := first.CompleteCalibration(1, 40); err != nil {
		t.Fatalf("CompleteCalibration failed: %v", err)
	}
	if err := first.SetRemaining(1, 250); err != nil {
		t.Fatalf("SetRemaining failed: %v", err)
	}
	scheduleAt(t, first, 1, 0, 9, 0, 10)
	if err := first.SetMissedDoseCompensation(1, true); err != nil {
		t.Fatalf("SetMissedDoseCompensation failed: %v", err)
	}
	clock.set(0, 9, 0)
	first.evaluateTick()

	second := New(Deps{Store: store, Motor: newFakeMotor(), Clock: clock}, 30*time.Second)
	if err := second.Setup(); err != nil {
		t.Fatalf("Setup of restarted controller failed: %v", err)
	}
	if got := second.Inventory(1).RemainingMl; got != 240 {
		t.Errorf("remaining after restart = %v, want 240", got)
	}
	if !second.Calibration(1).Calibrated {
		t.Error("calibration flag lost across restart")
	}
	sched := second.Schedule(1)
	if !sched.MissedDoseCompensation || !sched.Days[0].Enabled {
		t.Errorf("schedule lost across restart: %+v", sched)
	}
	// The stamped dose marker survives, so the restarted controller still
	// refuses to dose again today.
	if second.Inventory(1).DoseAlreadyOccurredToday(clock.Now().Epoch) != true {
		t.Error("scheduled-dose marker lost across restart")
	}
	second.evaluateTick()
	if got := second.Inventory(1).RemainingMl; got != 240 {
		t.Errorf("restarted controller double-dosed, remaining = %v", got)
	}
}

func TestSetupSurvivesMissingDocuments(t *testing.T) {
	rig := newTestRig()
	// A fresh store has no documents at all; everything is defaults.
	for channel := 1; channel <= ChannelCount; channel++ {
		inv := rig.c.Inventory(channel)
		if inv.RemainingMl != 0 || inv.LastScheduledDoseEpoch != NeverDosedEpoch {
			t.Errorf("channel %d not at defaults: %+v", channel, inv)
		}
		sched := rig.c.Schedule(channel)
		for i, d := range sched.Days {
			if d.Enabled {
				t.Errorf("channel %d day %d enabled by default", channel, i)
			}
		}
	}
}

func TestTimezoneShiftsTheClock(t *testing.T) {
	store := newMemStore()
	c := New(Deps{Store: store, Motor: newFakeMotor()}, 30*time.Second)
	if err := c.Setup(); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	c.SetTimezone(19800) // UTC+05:30
	if got := c.CurrentStatus().Timezone; got != 19800 {
		t.Errorf("timezone = %d, want 19800", got)
	}
	// And it survives a restart.
	c2 := New(Deps{Store: store, Motor: newFakeMotor()}, 30*time.Second)
	if err := c2.Setup(); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if got := c2.CurrentStatus().Timezone; got != 19800 {
		t.Errorf("timezone after restart = %d, want 19800", got)
	}
}

func TestDosePublishesNotifications(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock()
	sink := &captureNotifier{}
	c := New(Deps{Store: store, Motor: newFakeMotor(), Clock: clock, Notifier: sink}, 30*time.Second)
	if err := c.Setup(); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := c.ManualDose(1, 5); err != nil {
		t.Fatalf("ManualDose failed: %v", err)
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	var sawDose, sawLevels bool
	for _, topic := range sink.topics {
		switch topic {
		case topicLastDosed:
			sawDose = true
		case topicRemainingML:
			sawLevels = true
		}
	}
	if !sawDose || !sawLevels {
		t.Errorf("missing notification topics, got %v", sink.topics)
	}
}

func TestActivityLogIsCapped(t *testing.T) {
	rig := newTestRig()
	for i := 0; i < 150; i++ {
		if err := rig.c.SetRemaining(1, float32(i)); err != nil {
			t.Fatalf("SetRemaining failed: %v", err)
		}
	}
	if got := len(rig.c.ActivityLog()); got != 100 {
		t.Errorf("activity log holds %d entries, want cap of 100", got)
	}
}
