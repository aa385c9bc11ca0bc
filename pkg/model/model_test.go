package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSessionEvent(t *testing.T) {
	e := NewSessionEvent(EventCalibration, "QNH calibrated", "1013.25 -> 1009.80 hPa")
	if e.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}

	b, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `"type":"calibration"`) {
		t.Errorf("missing type in %s", s)
	}
	if strings.Contains(s, "session_id") || strings.Contains(s, "metadata") {
		t.Errorf("empty optional fields should be omitted: %s", s)
	}
}
