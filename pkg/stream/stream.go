// Package stream defines the boundary between the live engine and the remote
// duplex streaming provider. The engine only depends on these interfaces; the
// websocket implementation lives in the gemini subpackage.
package stream

import "context"

// Speaker tags a transcript fragment with its origin.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// Config is the session configuration assembled by the state machine and
// handed to the provider on connect.
type Config struct {
	// Model is the provider model identifier.
	Model string
	// Voice is the prebuilt voice identity for audio responses.
	Voice string
	// SystemInstruction is the assembled system prompt.
	SystemInstruction string
	// Capabilities declares the client capabilities the remote peer may
	// request. Empty in translator mode.
	Capabilities []CapabilityDecl
	// Search enables the provider-side web search tool.
	Search bool
	// InputTranscription and OutputTranscription request transcript
	// extraction for the respective audio directions.
	InputTranscription  bool
	OutputTranscription bool
}

// CapabilityDecl declares one client capability to the remote peer.
type CapabilityDecl struct {
	Name        string
	Description string
	Parameters  ParamSchema
}

// ParamSchema describes the argument object of a capability.
type ParamSchema struct {
	Properties map[string]ParamSpec
	Required   []string
}

// ParamSpec describes one argument field.
type ParamSpec struct {
	Type        string
	Description string
	Enum        []string
}

// ToolCallRequest is an inbound structured request from the remote peer.
type ToolCallRequest struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResponse acknowledges a ToolCallRequest, correlated by ID.
type ToolResponse struct {
	ID     string
	Name   string
	Result string
}

// Handlers is the event callback surface delivered by a Stream. All callbacks
// fire from the provider's read loop; implementations must not block.
type Handlers struct {
	// OnOpen fires once the remote session is established.
	OnOpen func()
	// OnClose fires when the remote side closes the stream. err is nil for a
	// clean close.
	OnClose func(err error)
	// OnError fires on a stream fault; the stream is unusable afterwards.
	OnError func(err error)
	// OnTranscript delivers a non-final partial transcript fragment.
	OnTranscript func(speaker Speaker, text string)
	// OnToolCall delivers a structured capability request.
	OnToolCall func(req ToolCallRequest)
	// OnInterrupted signals that generation was barged-in on by user speech.
	OnInterrupted func()
	// OnAudio delivers a decoded PCM16LE audio payload.
	OnAudio func(pcm []byte)
}

// Stream is one open duplex connection. Send operations are best-effort:
// callers treat failures as droppable (the reconnect policy owns recovery).
type Stream interface {
	// SendAudioFrame transmits one capture frame of PCM16LE audio.
	SendAudioFrame(pcm []byte) error
	// SendVideoFrame transmits one compressed JPEG video frame.
	SendVideoFrame(jpeg []byte) error
	// SendToolResponse transmits a capability acknowledgement.
	SendToolResponse(resp ToolResponse) error
	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// Dialer opens duplex streams.
type Dialer interface {
	Dial(ctx context.Context, cfg Config, h Handlers) (Stream, error)
}
