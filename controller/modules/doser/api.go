package doser

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// ChannelStatus is the per-channel slice of the status response.
type ChannelStatus struct {
	Name             string  `json:"name"`
	RemainingMl      float32 `json:"remaining_ml"`
	LastDoseVolumeMl float32 `json:"last_dose_ml"`
	LastDoseTime     string  `json:"last_dose_time"`
	DaysRemaining    int32   `json:"days_remaining"`
	Calibrated       bool    `json:"calibrated"`
	Priming          bool    `json:"priming"`
	Compensation     bool    `json:"missed_dose_compensation"`
}

// Status is the aggregate state exposed to status displays.
type Status struct {
	DeviceName string                      `json:"device_name"`
	Timezone   int32                       `json:"timezone"`
	Channels   [ChannelCount]ChannelStatus `json:"channels"`
}

func (c *Controller) CurrentStatus() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{DeviceName: c.state.DeviceName, Timezone: c.state.Timezone}
	for i := 0; i < ChannelCount; i++ {
		st.Channels[i] = ChannelStatus{
			Name:             c.state.Schedules[i].ChannelName,
			RemainingMl:      c.state.Inventory[i].RemainingMl,
			LastDoseVolumeMl: c.state.Inventory[i].LastDoseVolumeMl,
			LastDoseTime:     c.state.Inventory[i].LastDoseTime,
			DaysRemaining:    c.state.DaysRemaining[i],
			Calibrated:       c.state.Calibrations[i].Calibrated,
			Priming:          c.priming[i],
			Compensation:     c.state.Schedules[i].MissedDoseCompensation,
		}
	}
	return st
}

// LoadAPI registers all REST endpoints.
func (c *Controller) LoadAPI(r *mux.Router) {
	sr := r.PathPrefix("/api/doser").Subrouter()
	sr.HandleFunc("/status", c.getStatus).Methods("GET")
	sr.HandleFunc("/dose/{channel}", c.postManualDose).Methods("POST")
	sr.HandleFunc("/calibrate/{channel}/start", c.postCalibrateStart).Methods("POST")
	sr.HandleFunc("/calibrate/{channel}", c.postCalibrateComplete).Methods("POST")
	sr.HandleFunc("/schedule/{channel}", c.getSchedule).Methods("GET")
	sr.HandleFunc("/schedule/{channel}", c.putSchedule).Methods("PUT")
	sr.HandleFunc("/schedule/{channel}/copyall", c.postCopyAll).Methods("POST")
	sr.HandleFunc("/schedule/{channel}/compensation", c.postCompensation).Methods("POST")
	sr.HandleFunc("/bottle/{channel}", c.postBottle).Methods("POST")
	sr.HandleFunc("/prime/{channel}", c.postPrime).Methods("POST")
	sr.HandleFunc("/names", c.postNames).Methods("POST")
	sr.HandleFunc("/timezone", c.postTimezone).Methods("POST")
	sr.HandleFunc("/notifications", c.postNotifications).Methods("POST")
	sr.HandleFunc("/led", c.postLed).Methods("POST")
	sr.HandleFunc("/history/{channel}", c.getHistory).Methods("GET")
	sr.HandleFunc("/log", c.getLog).Methods("GET")
}

func channelVar(r *http.Request) (int, error) {
	channel, err := strconv.Atoi(mux.Vars(r)["channel"])
	if err != nil {
		return 0, err
	}
	return channel, validChannel(channel)
}

func (c *Controller) getStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c.CurrentStatus())
}

func (c *Controller) postManualDose(w http.ResponseWriter, r *http.Request) {
	channel, err := channelVar(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var payload struct {
		Ml float32 `json:"ml"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if err := c.ManualDose(channel, payload.Ml); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) postCalibrateStart(w http.ResponseWriter, r *http.Request) {
	channel, err := channelVar(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := c.RunCalibration(channel); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) postCalibrateComplete(w http.ResponseWriter, r *http.Request) {
	channel, err := channelVar(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var payload struct {
		MeasuredMl float32 `json:"measured_ml"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if err := c.CompleteCalibration(channel, payload.MeasuredMl); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) getSchedule(w http.ResponseWriter, r *http.Request) {
	channel, err := channelVar(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c.Schedule(channel))
}

func (c *Controller) putSchedule(w http.ResponseWriter, r *http.Request) {
	channel, err := channelVar(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var payload struct {
		Days [7]DaySchedule `json:"days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if err := c.SaveSchedule(channel, payload.Days); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) postCopyAll(w http.ResponseWriter, r *http.Request) {
	channel, err := channelVar(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var day DaySchedule
	if err := json.NewDecoder(r.Body).Decode(&day); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if err := c.CopyToAllDays(channel, day); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) postCompensation(w http.ResponseWriter, r *http.Request) {
	channel, err := channelVar(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var payload struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if err := c.SetMissedDoseCompensation(channel, payload.Enabled); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) postBottle(w http.ResponseWriter, r *http.Request) {
	channel, err := channelVar(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var payload struct {
		Ml float32 `json:"ml"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if err := c.SetRemaining(channel, payload.Ml); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) postPrime(w http.ResponseWriter, r *http.Request) {
	channel, err := channelVar(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var payload struct {
		State bool `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if payload.State {
		err = c.StartPrime(channel)
	} else {
		err = c.StopPrime(channel)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) postNames(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name1 string `json:"name1"`
		Name2 string `json:"name2"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	c.SetChannelNames(payload.Name1, payload.Name2)
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) postTimezone(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Offset int32 `json:"offset"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	c.SetTimezone(payload.Offset)
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) postNotifications(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		LowFert bool `json:"notifyLowFert"`
		Start   bool `json:"notifyStart"`
		Dose    bool `json:"notifyDose"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	c.SetNotificationPrefs(payload.LowFert, payload.Start, payload.Dose)
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) postLed(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Brightness uint8 `json:"ledBrightness"`
		BlinkAllOk bool  `json:"blinkAllOk"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	c.SetLedOptions(payload.Brightness, payload.BlinkAllOk)
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) getHistory(w http.ResponseWriter, r *http.Request) {
	channel, err := channelVar(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	records, err := c.DoseHistory(channel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

func (c *Controller) getLog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c.ActivityLog())
}
