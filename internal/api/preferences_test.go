package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandlePreferences(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
		validate   func(*testing.T, *fakeSession, PreferencesResponse)
	}{
		{
			name:       "Get",
			method:     "GET",
			wantStatus: http.StatusOK,
			validate: func(t *testing.T, s *fakeSession, resp PreferencesResponse) {
				if resp.Units != "metric" || resp.VolumeLevel != 3 || resp.QNH != 1013.25 {
					t.Errorf("unexpected response %+v", resp)
				}
			},
		},
		{
			name:       "UpdateAll",
			method:     "POST",
			body:       `{"units": "imperial", "volume_level": 0, "qnh": 1001}`,
			wantStatus: http.StatusOK,
			validate: func(t *testing.T, s *fakeSession, resp PreferencesResponse) {
				if s.metric || s.volume != 0 || s.qnh != 1001 {
					t.Errorf("session not updated: metric=%v volume=%d qnh=%v", s.metric, s.volume, s.qnh)
				}
				if resp.Units != "imperial" || resp.VolumeLevel != 0 {
					t.Errorf("unexpected response %+v", resp)
				}
			},
		},
		{
			name:       "PartialUpdate",
			method:     "PUT",
			body:       `{"volume_level": 2}`,
			wantStatus: http.StatusOK,
			validate: func(t *testing.T, s *fakeSession, resp PreferencesResponse) {
				if !s.metric || s.volume != 2 || s.qnh != 1013.25 {
					t.Errorf("unexpected session state metric=%v volume=%d qnh=%v", s.metric, s.volume, s.qnh)
				}
			},
		},
		{
			name:       "InvalidVolume",
			method:     "POST",
			body:       `{"units": "imperial", "volume_level": 4}`,
			wantStatus: http.StatusBadRequest,
			validate: func(t *testing.T, s *fakeSession, _ PreferencesResponse) {
				if !s.metric {
					t.Error("no field may be applied when validation fails")
				}
			},
		},
		{"InvalidUnits", "POST", `{"units": "nautical"}`, http.StatusBadRequest, nil},
		{"InvalidQNH", "POST", `{"qnh": 0}`, http.StatusBadRequest, nil},
		{"BadJSON", "POST", `nope`, http.StatusBadRequest, nil},
		{"Options", "OPTIONS", "", http.StatusOK, nil},
		{"Delete", "DELETE", "", http.StatusMethodNotAllowed, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFakeSession()
			h := NewPreferencesHandler(s)

			req := httptest.NewRequest(tt.method, "/api/preferences", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			h.HandlePreferences(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if w.Header().Get("Access-Control-Allow-Origin") != "*" {
				t.Error("missing CORS header")
			}
			if tt.validate == nil {
				return
			}
			var resp PreferencesResponse
			if tt.wantStatus == http.StatusOK {
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("decode: %v", err)
				}
			}
			tt.validate(t, s, resp)
		})
	}
}
