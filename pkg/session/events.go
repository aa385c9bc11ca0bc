package session

import (
	"sync"
	"time"

	"variogo/pkg/logging"
	"variogo/pkg/model"
)

// maxEvents bounds the in-memory event history.
const maxEvents = 100

// EventLog keeps the recent events of a session and mirrors them to events.log.
type EventLog struct {
	mu        sync.RWMutex
	sessionID string
	events    []model.SessionEvent
}

// NewEventLog creates an event log for the session.
func NewEventLog(sessionID string) *EventLog {
	return &EventLog{sessionID: sessionID}
}

// AddEvent adds a structured event to the session history.
func (l *EventLog) AddEvent(event *model.SessionEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.SessionID == "" {
		event.SessionID = l.sessionID
	}
	l.events = append(l.events, *event)
	if len(l.events) > maxEvents {
		l.events = l.events[len(l.events)-maxEvents:]
	}

	logging.LogEvent(event)
}

// Add records an event of the given type.
func (l *EventLog) Add(eventType, title, summary string) {
	l.AddEvent(model.NewSessionEvent(eventType, title, summary))
}

// Events returns a copy of the recorded events, oldest first.
func (l *EventLog) Events() []model.SessionEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.SessionEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of recorded events.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}
