package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"variogo/pkg/config"
)

// PreferencesHandler handles the user preference endpoint.
type PreferencesHandler struct {
	session VarioSession
}

// NewPreferencesHandler creates a new PreferencesHandler.
func NewPreferencesHandler(s VarioSession) *PreferencesHandler {
	return &PreferencesHandler{session: s}
}

// PreferencesResponse represents the preferences API response.
type PreferencesResponse struct {
	Units       string  `json:"units"`
	VolumeLevel int     `json:"volume_level"`
	QNH         float64 `json:"qnh"`
}

// PreferencesRequest represents a partial update. Missing fields are left unchanged.
type PreferencesRequest struct {
	Units       string   `json:"units,omitempty"`
	VolumeLevel *int     `json:"volume_level,omitempty"` // Pointer to detect 0 vs missing
	QNH         *float64 `json:"qnh,omitempty"`
}

// HandlePreferences is a unified handler for all preference methods, facilitating CORS/OPTIONS.
func (h *PreferencesHandler) HandlePreferences(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		h.respond(w)
	case http.MethodPut, http.MethodPost:
		h.handleSet(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *PreferencesHandler) respond(w http.ResponseWriter) {
	snap := h.session.Snapshot()
	writeJSON(w, http.StatusOK, PreferencesResponse{
		Units:       unitsName(snap.UseMetric),
		VolumeLevel: snap.VolumeLevel,
		QNH:         snap.QNH,
	})
}

func (h *PreferencesHandler) handleSet(w http.ResponseWriter, r *http.Request) {
	var req PreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Validate everything before applying anything.
	if req.Units != "" && req.Units != config.UnitsMetric && req.Units != config.UnitsImperial {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid units %q: must be metric or imperial", req.Units))
		return
	}
	if req.VolumeLevel != nil && (*req.VolumeLevel < 0 || *req.VolumeLevel > 3) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid volume level %d: must be 0-3", *req.VolumeLevel))
		return
	}
	if req.QNH != nil && *req.QNH <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid QNH %v", *req.QNH))
		return
	}

	ctx := r.Context()
	if req.Units != "" {
		if err := h.session.SetUseMetric(ctx, req.Units == config.UnitsMetric); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	if req.VolumeLevel != nil {
		if err := h.session.SetVolumeLevel(ctx, *req.VolumeLevel); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	if req.QNH != nil {
		if err := h.session.SetQNH(ctx, *req.QNH); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	h.respond(w)
}
