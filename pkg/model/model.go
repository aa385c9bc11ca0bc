package model

import (
	"time"
)

// Session event types.
const (
	EventSessionStart = "session_start"
	EventSessionStop  = "session_stop"
	EventCalibration  = "calibration"
	EventSensor       = "sensor"
	EventAudio        = "audio"
	EventProfile      = "profile"
)

// SessionEvent represents a notable occurrence during a flight session.
type SessionEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"type"`    // one of the Event* constants
	Title     string         `json:"title"`   // e.g. "QNH calibrated"
	Summary   string         `json:"summary"` // one-line human-readable detail
	SessionID string         `json:"session_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewSessionEvent creates an event stamped with the current time.
func NewSessionEvent(eventType, title, summary string) *SessionEvent {
	return &SessionEvent{
		Timestamp: time.Now(),
		Type:      eventType,
		Title:     title,
		Summary:   summary,
	}
}
