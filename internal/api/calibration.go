package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"variogo/pkg/altitude"
	"variogo/pkg/config"
	"variogo/pkg/session"
)

// VarioSession is the session surface used by the HTTP handlers.
type VarioSession interface {
	Snapshot() session.Snapshot
	Calibrate(ctx context.Context, altitudeM float64) (float64, error)
	CalibrateStep(ctx context.Context, direction int) (float64, error)
	SetQNH(ctx context.Context, qnh float64) error
	SetVolumeLevel(ctx context.Context, level int) error
	SetUseMetric(ctx context.Context, metric bool) error
}

// CalibrationHandler handles altitude calibration and QNH endpoints.
type CalibrationHandler struct {
	session VarioSession
}

// NewCalibrationHandler creates a new CalibrationHandler.
func NewCalibrationHandler(s VarioSession) *CalibrationHandler {
	return &CalibrationHandler{session: s}
}

// CalibrateRequest sets the current altitude. AltitudeM wins over Altitude+Units.
type CalibrateRequest struct {
	AltitudeM *float64 `json:"altitude_m,omitempty"`
	Altitude  *float64 `json:"altitude,omitempty"`
	Units     string   `json:"units,omitempty"` // metric|imperial|m|ft, default: session units
}

// StepRequest nudges the altitude by one unit step.
type StepRequest struct {
	Direction int `json:"direction"`
}

// QNHRequest sets the reference pressure directly.
type QNHRequest struct {
	QNH float64 `json:"qnh"`
}

// CalibrationResponse reports the resulting state.
type CalibrationResponse struct {
	QNH          float64  `json:"qnh"`
	Altitude     *float64 `json:"altitude_m"`
	AltitudeText string   `json:"altitude_text"`
}

// HandleCalibrate handles POST /api/calibrate
func (h *CalibrationHandler) HandleCalibrate(w http.ResponseWriter, r *http.Request) {
	var req CalibrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	meters, err := req.meters(h.session.Snapshot().UseMetric)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	qnh, err := h.session.Calibrate(r.Context(), meters)
	if err != nil {
		h.fail(w, err)
		return
	}
	slog.Info("API: altitude calibrated", "altitude_m", meters, "qnh", qnh)
	h.respond(w)
}

// HandleStep handles POST /api/calibrate/step
func (h *CalibrationHandler) HandleStep(w http.ResponseWriter, r *http.Request) {
	var req StepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if _, err := h.session.CalibrateStep(r.Context(), req.Direction); err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w)
}

// HandleQNH handles POST /api/qnh
func (h *CalibrationHandler) HandleQNH(w http.ResponseWriter, r *http.Request) {
	var req QNHRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.session.SetQNH(r.Context(), req.QNH); err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w)
}

func (h *CalibrationHandler) respond(w http.ResponseWriter) {
	snap := h.session.Snapshot()
	writeJSON(w, http.StatusOK, CalibrationResponse{
		QNH:          snap.QNH,
		Altitude:     nullable(snap.Reading.Altitude),
		AltitudeText: snap.AltitudeText(),
	})
}

func (h *CalibrationHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoPressure):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, session.ErrInvalidAltitude),
		errors.Is(err, session.ErrInvalidDirection),
		errors.Is(err, session.ErrInvalidQNH):
		writeError(w, http.StatusBadRequest, err)
	default:
		slog.Error("API: calibration failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (req CalibrateRequest) meters(sessionMetric bool) (float64, error) {
	if req.AltitudeM != nil {
		return *req.AltitudeM, nil
	}
	if req.Altitude == nil {
		return math.NaN(), errors.New("altitude_m or altitude is required")
	}

	metric := sessionMetric
	switch strings.ToLower(req.Units) {
	case "":
	case config.UnitsMetric, "m":
		metric = true
	case config.UnitsImperial, "ft":
		metric = false
	default:
		return math.NaN(), errors.New("unknown units " + req.Units)
	}
	if metric {
		return *req.Altitude, nil
	}
	return *req.Altitude / altitude.MetersToFeet, nil
}
