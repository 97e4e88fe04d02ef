package live

import (
	"github.com/kitts-ai/hud-live/pkg/tools"
	"github.com/kitts-ai/hud-live/pkg/transcript"
)

// Status is the connection state of a session.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// Event is a session notification delivered on Service.Events. Delivery is
// best-effort: when the consumer lags, events are dropped, not queued.
type Event interface {
	isEvent()
}

// StatusChangedEvent reports a connection state transition.
type StatusChangedEvent struct {
	From Status
	To   Status
}

// TranscriptUpdatedEvent carries a fresh assistant history snapshot.
type TranscriptUpdatedEvent struct {
	Lines []transcript.Line
}

// PoolUpdatedEvent carries a fresh translation pool snapshot.
type PoolUpdatedEvent struct {
	Items []transcript.Item
}

// WidgetEvent carries a rendered HUD widget.
type WidgetEvent struct {
	Widget tools.Widget
}

// InputLevelEvent reports the RMS level of the latest capture frame.
type InputLevelEvent struct {
	Level float64
}

// OutputLevelEvent reports the RMS level of the latest playback payload.
type OutputLevelEvent struct {
	Level float64
}

// WakeChangedEvent reports a wake gate transition.
type WakeChangedEvent struct {
	Awake bool
}

// ErrorEvent surfaces a terminal session error.
type ErrorEvent struct {
	Err error
}

func (StatusChangedEvent) isEvent()     {}
func (TranscriptUpdatedEvent) isEvent() {}
func (PoolUpdatedEvent) isEvent()       {}
func (WidgetEvent) isEvent()            {}
func (InputLevelEvent) isEvent()        {}
func (OutputLevelEvent) isEvent()       {}
func (WakeChangedEvent) isEvent()       {}
func (ErrorEvent) isEvent()             {}
