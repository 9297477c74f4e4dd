package doser

import "encoding/json"

// BoltDB buckets
const (
	SettingsBucket  = "doser_settings"
	SchedulesBucket = "doser_schedules"
	HistoryBucket   = "doser_doses"
)

const recordID = "default"

const (
	ChannelCount = 2

	// Fixed pump run used by the calibration procedure, in milliseconds.
	CalibrationRunMs = 10000

	// Epoch of 2020-01-01T00:00:00Z. A channel whose last scheduled dose
	// carries this value has never been scheduled-dosed; it must never
	// compare as "today".
	NeverDosedEpoch uint32 = 1577836800
)

// Settings is the flat legacy settings document. Field names are wire format
// and must not change; older devices carry files written with exactly these
// keys.
type Settings struct {
	Name1                  string  `json:"name1"`
	Name2                  string  `json:"name2"`
	Channel1               float32 `json:"channel1"`
	Channel2               float32 `json:"channel2"`
	Timezone               int32   `json:"timezone"`
	Calibration1           float32 `json:"calibration1"`
	Calibration2           float32 `json:"calibration2"`
	LastDispensedVolume1   float32 `json:"lastDispensedVolume1"`
	LastDispensedVolume2   float32 `json:"lastDispensedVolume2"`
	LastDispensedTime1     string  `json:"lastDispensedTime1"`
	LastDispensedTime2     string  `json:"lastDispensedTime2"`
	DeviceName             string  `json:"deviceName"`
	NotifyLowFert          bool    `json:"notifyLowFert"`
	NotifyStart            bool    `json:"notifyStart"`
	NotifyDose             bool    `json:"notifyDose"`
	CalibratedChannel1     bool    `json:"calibratedChannel1"`
	CalibratedChannel2     bool    `json:"calibratedChannel2"`
	LastNotifiedIP         string  `json:"lastNotifiedIP"`
	LastScheduledDoseTime1 uint32  `json:"lastScheduledDoseTime1"`
	LastScheduledDoseTime2 uint32  `json:"lastScheduledDoseTime2"`
	LedBrightness          uint8   `json:"ledBrightness"`
	BlinkAllOk             bool    `json:"blinkAllOk"`
	DaysRemainingChannel1  int32   `json:"daysRemainingChannel1"`
	DaysRemainingChannel2  int32   `json:"daysRemainingChannel2"`
}

func DefaultSettings() Settings {
	return Settings{
		Name1:                  "Channel 1",
		Name2:                  "Channel 2",
		Calibration1:           1,
		Calibration2:           1,
		LastDispensedTime1:     "N/A",
		LastDispensedTime2:     "N/A",
		DeviceName:             "doser",
		LastScheduledDoseTime1: NeverDosedEpoch,
		LastScheduledDoseTime2: NeverDosedEpoch,
		LedBrightness:          128,
		BlinkAllOk:             true,
		DaysRemainingChannel1:  DaysMoreThanYear,
		DaysRemainingChannel2:  DaysMoreThanYear,
	}
}

// DecodeSettings is permissive: keys absent from the stored blob keep their
// defaults, so documents written by any firmware revision load cleanly.
func DecodeSettings(data []byte) (Settings, error) {
	s := DefaultSettings()
	if err := json.Unmarshal(data, &s); err != nil {
		return DefaultSettings(), err
	}
	return s, nil
}

// ScheduleDocument is the weekly-schedules document, one object per channel.
type ScheduleDocument struct {
	Channel1 WeeklySchedule `json:"channel1"`
	Channel2 WeeklySchedule `json:"channel2"`
}

func DefaultScheduleDocument() ScheduleDocument {
	return ScheduleDocument{
		Channel1: DefaultWeeklySchedule("Channel 1"),
		Channel2: DefaultWeeklySchedule("Channel 2"),
	}
}

func DecodeScheduleDocument(data []byte) (ScheduleDocument, error) {
	doc := DefaultScheduleDocument()
	if err := json.Unmarshal(data, &doc); err != nil {
		return DefaultScheduleDocument(), err
	}
	doc.Channel1.normalize()
	doc.Channel2.normalize()
	return doc, nil
}

// DoserState aggregates all mutable engine state for both channels. It is
// owned by the Controller and only ever touched under its lock.
type DoserState struct {
	DeviceName     string
	Timezone       int32
	NotifyLowFert  bool
	NotifyStart    bool
	NotifyDose     bool
	LastNotifiedIP string
	LedBrightness  uint8
	BlinkAllOk     bool

	Calibrations  [ChannelCount]ChannelCalibration
	Schedules     [ChannelCount]WeeklySchedule
	Inventory     [ChannelCount]InventoryState
	DaysRemaining [ChannelCount]int32
}

func NewDoserState(a Settings, b ScheduleDocument) *DoserState {
	s := &DoserState{
		DeviceName:     a.DeviceName,
		Timezone:       a.Timezone,
		NotifyLowFert:  a.NotifyLowFert,
		NotifyStart:    a.NotifyStart,
		NotifyDose:     a.NotifyDose,
		LastNotifiedIP: a.LastNotifiedIP,
		LedBrightness:  a.LedBrightness,
		BlinkAllOk:     a.BlinkAllOk,
	}
	s.Calibrations[0] = ChannelCalibration{MsPerMilliliter: a.Calibration1, Calibrated: a.CalibratedChannel1}
	s.Calibrations[1] = ChannelCalibration{MsPerMilliliter: a.Calibration2, Calibrated: a.CalibratedChannel2}
	s.Schedules[0] = b.Channel1
	s.Schedules[1] = b.Channel2
	s.Schedules[0].ChannelName = a.Name1
	s.Schedules[1].ChannelName = a.Name2
	s.Inventory[0] = InventoryState{
		RemainingMl:            a.Channel1,
		LastDoseVolumeMl:       a.LastDispensedVolume1,
		LastDoseTime:           a.LastDispensedTime1,
		LastScheduledDoseEpoch: a.LastScheduledDoseTime1,
	}
	s.Inventory[1] = InventoryState{
		RemainingMl:            a.Channel2,
		LastDoseVolumeMl:       a.LastDispensedVolume2,
		LastDoseTime:           a.LastDispensedTime2,
		LastScheduledDoseEpoch: a.LastScheduledDoseTime2,
	}
	s.DaysRemaining[0] = a.DaysRemainingChannel1
	s.DaysRemaining[1] = a.DaysRemainingChannel2
	return s
}

// Documents renders the state back into the two wire documents.
func (s *DoserState) Documents() (Settings, ScheduleDocument) {
	a := Settings{
		Name1:                  s.Schedules[0].ChannelName,
		Name2:                  s.Schedules[1].ChannelName,
		Channel1:               s.Inventory[0].RemainingMl,
		Channel2:               s.Inventory[1].RemainingMl,
		Timezone:               s.Timezone,
		Calibration1:           s.Calibrations[0].MsPerMilliliter,
		Calibration2:           s.Calibrations[1].MsPerMilliliter,
		LastDispensedVolume1:   s.Inventory[0].LastDoseVolumeMl,
		LastDispensedVolume2:   s.Inventory[1].LastDoseVolumeMl,
		LastDispensedTime1:     s.Inventory[0].LastDoseTime,
		LastDispensedTime2:     s.Inventory[1].LastDoseTime,
		DeviceName:             s.DeviceName,
		NotifyLowFert:          s.NotifyLowFert,
		NotifyStart:            s.NotifyStart,
		NotifyDose:             s.NotifyDose,
		CalibratedChannel1:     s.Calibrations[0].Calibrated,
		CalibratedChannel2:     s.Calibrations[1].Calibrated,
		LastNotifiedIP:         s.LastNotifiedIP,
		LastScheduledDoseTime1: s.Inventory[0].LastScheduledDoseEpoch,
		LastScheduledDoseTime2: s.Inventory[1].LastScheduledDoseEpoch,
		LedBrightness:          s.LedBrightness,
		BlinkAllOk:             s.BlinkAllOk,
		DaysRemainingChannel1:  s.DaysRemaining[0],
		DaysRemainingChannel2:  s.DaysRemaining[1],
	}
	b := ScheduleDocument{
		Channel1: s.Schedules[0],
		Channel2: s.Schedules[1],
	}
	return a, b
}
