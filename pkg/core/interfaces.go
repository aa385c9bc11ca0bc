package core

import (
	"variogo/pkg/session"
)

// SnapshotSource provides the latest session state.
type SnapshotSource interface {
	Snapshot() session.Snapshot
}

// TelemetrySink consumes the snapshot stream (e.g. the websocket hub).
type TelemetrySink interface {
	Update(s *session.Snapshot)
}

// AudioRestarter restarts a terminated synthesis loop.
type AudioRestarter interface {
	RestartAudio() error
}
