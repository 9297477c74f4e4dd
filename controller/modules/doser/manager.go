package doser

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/evancroft666/aquadoser/controller/drivers"
	"github.com/evancroft666/aquadoser/controller/storage"
)

const lowInventoryDays = 7

// Deps are the collaborators the subsystem is built from. Clock may be nil,
// in which case a wall clock following the persisted timezone offset is used.
type Deps struct {
	Store    storage.Store
	Motor    drivers.Motor
	LED      drivers.StatusIndicator
	Clock    drivers.Clock
	Notifier Notifier
	Log      *zap.SugaredLogger
	Metrics  *Metrics
}

// Controller owns the dosing engine for both channels.
//
// One mutex serializes everything that can reach the motor: the evaluator
// tick, manual doses, calibration runs and priming. The motor call blocks
// while the mutex is held, which is the firmware's mutual-exclusion contract;
// no two doses ever overlap and requests arriving mid-dose simply wait.
type Controller struct {
	store    storage.Store
	motor    drivers.Motor
	led      drivers.StatusIndicator
	clock    drivers.Clock
	notifier Notifier
	log      *zap.SugaredLogger
	metrics  *Metrics

	mu         sync.Mutex
	state      *DoserState
	priming    [ChannelCount]bool
	lowAlerted [ChannelCount]bool
	logs       []string

	tz        atomic.Int32
	tickEvery time.Duration
	cron      *cron.Cron
	tickID    cron.EntryID
}

func New(deps Deps, tickEvery time.Duration) *Controller {
	c := &Controller{
		store:     deps.Store,
		motor:     deps.Motor,
		led:       deps.LED,
		clock:     deps.Clock,
		notifier:  deps.Notifier,
		log:       deps.Log,
		metrics:   deps.Metrics,
		tickEvery: tickEvery,
		cron:      cron.New(),
	}
	if c.led == nil {
		c.led = drivers.NopIndicator{}
	}
	if c.notifier == nil {
		c.notifier = NopNotifier{}
	}
	if c.log == nil {
		c.log = zap.NewNop().Sugar()
	}
	if c.clock == nil {
		c.clock = drivers.NewClock(c.tz.Load)
	}
	return c
}

// Setup creates the buckets and loads both persisted documents. Missing or
// corrupt records become documented defaults; startup never fails on them.
func (c *Controller) Setup() error {
	for _, bucket := range []string{SettingsBucket, SchedulesBucket, HistoryBucket} {
		if err := c.store.CreateBucket(bucket); err != nil {
			return err
		}
	}
	settings := c.loadSettings()
	schedules := c.loadSchedules()
	c.mu.Lock()
	c.state = NewDoserState(settings, schedules)
	c.tz.Store(c.state.Timezone)
	c.mu.Unlock()
	return nil
}

func (c *Controller) loadSettings() Settings {
	var raw json.RawMessage
	if err := c.store.Get(SettingsBucket, recordID, &raw); err != nil {
		c.log.Infow("no stored settings, using defaults", "error", err)
		return DefaultSettings()
	}
	s, err := DecodeSettings(raw)
	if err != nil {
		c.log.Warnw("corrupt settings document, using defaults", "error", err)
	}
	return s
}

func (c *Controller) loadSchedules() ScheduleDocument {
	var raw json.RawMessage
	if err := c.store.Get(SchedulesBucket, recordID, &raw); err != nil {
		c.log.Infow("no stored schedules, using defaults", "error", err)
		return DefaultScheduleDocument()
	}
	doc, err := DecodeScheduleDocument(raw)
	if err != nil {
		c.log.Warnw("corrupt schedule document, using defaults", "error", err)
	}
	return doc
}

// Start begins the periodic schedule evaluation.
func (c *Controller) Start() error {
	spec := fmt.Sprintf("@every %ds", int(c.tickEvery.Seconds()))
	id, err := c.cron.AddFunc(spec, c.evaluateTick)
	if err != nil {
		return err
	}
	c.tickID = id
	c.cron.Start()
	c.mu.Lock()
	notifyStart := c.state.NotifyStart
	device := c.state.DeviceName
	c.mu.Unlock()
	if notifyStart {
		c.publishStartup(device)
	}
	c.log.Infow("doser started", "tick", c.tickEvery.String())
	return nil
}

// Stop halts evaluation and shuts any priming pump off.
func (c *Controller) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
	c.mu.Lock()
	defer c.mu.Unlock()
	for channel := 1; channel <= ChannelCount; channel++ {
		if c.priming[channel-1] {
			c.stopPrimeLocked(channel)
		}
	}
}

// StartPrime runs the channel's pump continuously until StopPrime. Scheduled
// evaluation is suspended while any channel primes.
func (c *Controller) StartPrime(channel int) error {
	if err := validChannel(channel); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.priming[channel-1] {
		return nil
	}
	if err := c.motor.Start(channel); err != nil {
		return err
	}
	c.priming[channel-1] = true
	c.led.SetActive(channel)
	c.appendLog(c.state.Schedules[channel-1].ChannelName + ": priming started")
	return nil
}

// StopPrime stops a priming pump.
func (c *Controller) StopPrime(channel int) error {
	if err := validChannel(channel); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.priming[channel-1] {
		return nil
	}
	c.stopPrimeLocked(channel)
	return nil
}

func (c *Controller) stopPrimeLocked(channel int) {
	if err := c.motor.Stop(channel); err != nil {
		c.log.Warnw("failed to stop priming pump", "channel", channel, "error", err)
	}
	c.priming[channel-1] = false
	c.led.RestorePrevious()
	c.appendLog(c.state.Schedules[channel-1].ChannelName + ": priming stopped")
}

// Priming reports whether the channel is in prime mode.
func (c *Controller) Priming(channel int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.priming[channel-1]
}

// SetTimezone stores the UTC offset, in seconds, applied to every clock read.
func (c *Controller) SetTimezone(offsetSeconds int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Timezone = offsetSeconds
	c.tz.Store(offsetSeconds)
	c.persist()
}

// SetChannelNames renames both channels.
func (c *Controller) SetChannelNames(name1, name2 string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Schedules[0].ChannelName = name1
	c.state.Schedules[1].ChannelName = name2
	c.persist()
}

// SetNotificationPrefs toggles the three notification classes.
func (c *Controller) SetNotificationPrefs(lowFert, start, dose bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.NotifyLowFert = lowFert
	c.state.NotifyStart = start
	c.state.NotifyDose = dose
	c.persist()
}

// SetLedOptions stores the status-LED preferences.
func (c *Controller) SetLedOptions(brightness uint8, blinkAllOk bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.LedBrightness = brightness
	c.state.BlinkAllOk = blinkAllOk
	c.persist()
}

// persist writes both documents back to the store. Saves are best-effort:
// failures are logged and the engine keeps operating in memory until the next
// successful save. Callers hold c.mu.
func (c *Controller) persist() {
	a, b := c.state.Documents()
	if err := upsert(c.store, SettingsBucket, recordID, &a); err != nil {
		c.log.Warnw("failed to save settings document", "error", err)
	}
	if err := upsert(c.store, SchedulesBucket, recordID, &b); err != nil {
		c.log.Warnw("failed to save schedule document", "error", err)
	}
}

func upsert(s storage.Store, bucket, id string, v interface{}) error {
	if err := s.Update(bucket, id, v); err == nil {
		return nil
	}
	return s.Insert(bucket, id, v)
}

// appendLog adds an entry to the in-memory activity log, capped at 100
// entries. Callers hold c.mu.
func (c *Controller) appendLog(msg string) {
	entry := time.Unix(int64(c.clock.Now().Epoch), 0).UTC().Format("15:04:05") + " " + msg
	c.logs = append(c.logs, entry)
	if len(c.logs) > 100 {
		c.logs = c.logs[len(c.logs)-100:]
	}
}

// ActivityLog returns a copy of the recent activity entries.
func (c *Controller) ActivityLog() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.logs))
	copy(out, c.logs)
	return out
}

// DoseRecord is one line of the persisted dose history.
type DoseRecord struct {
	Channel   int     `json:"channel"`
	VolumeMl  float32 `json:"volume"`
	Scheduled bool    `json:"scheduled"`
	Ts        uint32  `json:"ts"`
}

// appendHistory persists one completed dose. Every dose gets its own record;
// history is never overwritten. Callers hold c.mu.
func (c *Controller) appendHistory(channel int, volumeMl float32, scheduled bool, ts uint32) {
	rec := DoseRecord{Channel: channel, VolumeMl: volumeMl, Scheduled: scheduled, Ts: ts}
	err := c.store.Create(HistoryBucket, func(id string) interface{} {
		r := rec
		return &r
	})
	if err != nil {
		c.log.Warnw("failed to record dose history", "error", err)
	}
}

// DoseHistory lists the recorded doses of one channel, oldest first.
func (c *Controller) DoseHistory(channel int) ([]DoseRecord, error) {
	if err := validChannel(channel); err != nil {
		return nil, err
	}
	records := []DoseRecord{}
	err := c.store.List(HistoryBucket, func(_ string, v []byte) error {
		var rec DoseRecord
		if err := json.Unmarshal(v, &rec); err == nil && rec.Channel == channel {
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
