package api

import (
	"log/slog"
	"math"
	"net/http"
	"sync"

	"variogo/pkg/config"
	"variogo/pkg/session"
)

// ToneDTO describes the tone currently published to the synthesizer.
type ToneDTO struct {
	Playing     bool    `json:"playing"`
	FrequencyHz float64 `json:"frequency_hz"`
	CycleMillis int     `json:"cycle_ms"`
	DutyPercent int     `json:"duty_percent"`
}

// SensorDTO describes the sensor registration.
type SensorDTO struct {
	Driver     string `json:"driver"`
	Registered bool   `json:"registered"`
	PeriodMs   int64  `json:"period_ms"`
	Dropped    uint64 `json:"dropped"`
	Error      string `json:"error,omitempty"`
}

// AudioDTO describes the playback side.
type AudioDTO struct {
	Active  bool    `json:"active"`
	Running bool    `json:"running"`
	Volume  float64 `json:"volume"`
	Error   string  `json:"error,omitempty"`
}

// StatsDTO carries session extremes; unknown values are null.
type StatsDTO struct {
	MaxAltitude *float64 `json:"max_altitude_m"`
	MinAltitude *float64 `json:"min_altitude_m"`
	MaxClimb    *float64 `json:"max_climb_mps"`
	MaxSink     *float64 `json:"max_sink_mps"`
	Samples     uint64   `json:"samples"`
	Faults      uint64   `json:"faults"`
}

// TelemetryResponse is the API response structure. NaN values are encoded as null.
type TelemetryResponse struct {
	SessionID         string    `json:"session_id"`
	UptimeSeconds     int64     `json:"uptime_s"`
	Pressure          *float64  `json:"pressure_hpa"`
	Altitude          *float64  `json:"altitude_m"`
	VerticalSpeed     *float64  `json:"vertical_speed_mps"`
	AltitudeText      string    `json:"altitude_text"`
	VerticalSpeedText string    `json:"vertical_speed_text"`
	QNH               float64   `json:"qnh"`
	Units             string    `json:"units"`
	VolumeLevel       int       `json:"volume_level"`
	Tone              ToneDTO   `json:"tone"`
	Sensor            SensorDTO `json:"sensor"`
	Audio             AudioDTO  `json:"audio"`
	Stats             StatsDTO  `json:"stats"`
	Error             string    `json:"error,omitempty"`
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func unitsName(metric bool) string {
	if metric {
		return config.UnitsMetric
	}
	return config.UnitsImperial
}

// NewTelemetryResponse converts a session snapshot to its wire form.
func NewTelemetryResponse(s *session.Snapshot) TelemetryResponse {
	return TelemetryResponse{
		SessionID:         s.ID,
		UptimeSeconds:     int64(s.Uptime.Seconds()),
		Pressure:          nullable(s.Reading.Pressure),
		Altitude:          nullable(s.Reading.Altitude),
		VerticalSpeed:     nullable(s.Reading.VerticalSpeed),
		AltitudeText:      s.AltitudeText(),
		VerticalSpeedText: s.VerticalSpeedText(),
		QNH:               s.QNH,
		Units:             unitsName(s.UseMetric),
		VolumeLevel:       s.VolumeLevel,
		Tone: ToneDTO{
			Playing:     s.Reading.Playing,
			FrequencyHz: s.Reading.Tone.FrequencyHz,
			CycleMillis: s.Reading.Tone.CycleMillis,
			DutyPercent: s.Reading.Tone.DutyPercent,
		},
		Sensor: SensorDTO{
			Driver:     s.Sensor.Driver,
			Registered: s.Sensor.Registered,
			PeriodMs:   s.Sensor.Period.Milliseconds(),
			Dropped:    s.Sensor.Dropped,
			Error:      errString(s.Sensor.Err),
		},
		Audio: AudioDTO{
			Active:  s.Audio.Active,
			Running: s.Audio.Running,
			Volume:  s.Audio.Volume,
			Error:   errString(s.Audio.Err),
		},
		Stats: StatsDTO{
			MaxAltitude: nullable(s.Stats.MaxAltitude),
			MinAltitude: nullable(s.Stats.MinAltitude),
			MaxClimb:    nullable(s.Stats.MaxClimb),
			MaxSink:     nullable(s.Stats.MaxSink),
			Samples:     s.Stats.Samples,
			Faults:      s.Stats.Faults,
		},
		Error: errString(s.Err),
	}
}

// TelemetryHandler keeps the latest snapshot and fans it out to websocket subscribers.
type TelemetryHandler struct {
	mu     sync.RWMutex
	latest *TelemetryResponse
	subs   map[chan TelemetryResponse]struct{}
}

func NewTelemetryHandler() *TelemetryHandler {
	return &TelemetryHandler{subs: make(map[chan TelemetryResponse]struct{})}
}

// Update implements core.TelemetrySink.
func (h *TelemetryHandler) Update(s *session.Snapshot) {
	resp := NewTelemetryResponse(s)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = &resp
	for ch := range h.subs {
		// Keep only the newest snapshot for slow clients.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- resp:
		default:
		}
	}
}

// Latest returns the last snapshot, if any.
func (h *TelemetryHandler) Latest() (TelemetryResponse, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.latest == nil {
		return TelemetryResponse{}, false
	}
	return *h.latest, true
}

func (h *TelemetryHandler) subscribe() chan TelemetryResponse {
	ch := make(chan TelemetryResponse, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	slog.Debug("Telemetry: subscriber added", "subscribers", n)
	return ch
}

func (h *TelemetryHandler) unsubscribe(ch chan TelemetryResponse) {
	h.mu.Lock()
	delete(h.subs, ch)
	n := len(h.subs)
	h.mu.Unlock()
	slog.Debug("Telemetry: subscriber removed", "subscribers", n)
}

// Subscribers returns the number of connected stream clients.
func (h *TelemetryHandler) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *TelemetryHandler) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.Latest()
	if !ok {
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no telemetry yet"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
