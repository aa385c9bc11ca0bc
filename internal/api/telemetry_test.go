package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"variogo/pkg/sensor"
	"variogo/pkg/session"
	"variogo/pkg/tone"
)

func climbSnapshot() *session.Snapshot {
	return &session.Snapshot{
		ID:     "abc",
		Uptime: 90 * time.Second,
		Reading: session.Reading{
			Pressure:      900,
			Altitude:      1000,
			VerticalSpeed: 2.5,
			Playing:       true,
			Tone:          tone.Params{FrequencyHz: 640, CycleMillis: 450, DutyPercent: 55},
		},
		QNH:         1013.25,
		UseMetric:   true,
		VolumeLevel: 2,
		Stats: session.Stats{
			MaxAltitude: 1000,
			MinAltitude: 950,
			MaxClimb:    2.5,
			MaxSink:     math.NaN(),
			Samples:     42,
		},
	}
}

func TestNewTelemetryResponse(t *testing.T) {
	resp := NewTelemetryResponse(climbSnapshot())

	assert.Equal(t, "abc", resp.SessionID)
	assert.Equal(t, int64(90), resp.UptimeSeconds)
	require.NotNil(t, resp.Altitude)
	assert.Equal(t, 1000.0, *resp.Altitude)
	assert.Equal(t, "1000 m", resp.AltitudeText)
	assert.Equal(t, "2.5 m/s", resp.VerticalSpeedText)
	assert.Equal(t, "metric", resp.Units)
	assert.True(t, resp.Tone.Playing)
	assert.Equal(t, 640.0, resp.Tone.FrequencyHz)
	assert.Nil(t, resp.Stats.MaxSink)
	assert.Equal(t, uint64(42), resp.Stats.Samples)
	assert.Empty(t, resp.Error)
}

func TestNewTelemetryResponse_Unknown(t *testing.T) {
	snap := &session.Snapshot{
		Reading: session.Reading{
			Pressure:      math.NaN(),
			Altitude:      math.NaN(),
			VerticalSpeed: math.NaN(),
		},
		Sensor: sensor.Status{Driver: "none", Err: errors.New("no barometer")},
		Err:    errors.New("sensor timeout"),
	}
	resp := NewTelemetryResponse(snap)
	assert.Nil(t, resp.Pressure)
	assert.Nil(t, resp.Altitude)
	assert.Nil(t, resp.VerticalSpeed)
	assert.Equal(t, "--", resp.AltitudeText)
	assert.Equal(t, "imperial", resp.Units)
	assert.Equal(t, "sensor timeout", resp.Error)
	assert.Equal(t, "no barometer", resp.Sensor.Error)

	// NaN must never reach the encoder.
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"altitude_m":null`)
}

func TestTelemetryHandler_HandleTelemetry(t *testing.T) {
	tests := []struct {
		name           string
		setup          func(*TelemetryHandler)
		expectedStatus int
		validate       func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:           "NoData",
			setup:          func(h *TelemetryHandler) {},
			expectedStatus: http.StatusServiceUnavailable,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, "1", w.Header().Get("Retry-After"))
			},
		},
		{
			name: "Success_WithData",
			setup: func(h *TelemetryHandler) {
				h.Update(climbSnapshot())
			},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp TelemetryResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				assert.Equal(t, "abc", resp.SessionID)
				assert.Equal(t, 2, resp.VolumeLevel)
			},
		},
		{
			name: "LatestWins",
			setup: func(h *TelemetryHandler) {
				h.Update(climbSnapshot())
				snap := climbSnapshot()
				snap.ID = "newer"
				h.Update(snap)
			},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp TelemetryResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				assert.Equal(t, "newer", resp.SessionID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewTelemetryHandler()
			tt.setup(h)

			req := httptest.NewRequest("GET", "/api/telemetry", http.NoBody)
			w := httptest.NewRecorder()
			h.handleTelemetry(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			tt.validate(t, w)
		})
	}
}

func TestTelemetryHandler_SlowSubscriber(t *testing.T) {
	h := NewTelemetryHandler()
	ch := h.subscribe()
	defer h.unsubscribe(ch)

	for i := 0; i < 5; i++ {
		snap := climbSnapshot()
		snap.Stats.Samples = uint64(i)
		h.Update(snap)
	}

	got := <-ch
	assert.Equal(t, uint64(4), got.Stats.Samples, "subscriber keeps only the newest snapshot")
	select {
	case extra := <-ch:
		t.Fatalf("unexpected queued snapshot %+v", extra)
	default:
	}
}

func TestTelemetryHandler_Stream(t *testing.T) {
	h := NewTelemetryHandler()
	h.Update(climbSnapshot())

	srv := httptest.NewServer(http.HandlerFunc(h.handleStream))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	// Latest snapshot is sent on connect.
	var first TelemetryResponse
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "abc", first.SessionID)

	require.Eventually(t, func() bool { return h.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	snap := climbSnapshot()
	snap.ID = "next"
	h.Update(snap)

	var next TelemetryResponse
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, "next", next.SessionID)

	conn.Close()
	assert.Eventually(t, func() bool { return h.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
