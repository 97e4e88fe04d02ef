// Package protocol defines the typed wire frames of the Gemini Live
// bidirectional websocket API, plus decode helpers for inbound server
// messages.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// DefaultEndpoint is the bidirectional streaming websocket endpoint. The
	// API key is appended as a query parameter on dial.
	DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// MimePCM16k is the media type of uplink audio chunks.
	MimePCM16k = "audio/pcm;rate=16000"
	// MimeJPEG is the media type of uplink video frames.
	MimeJPEG = "image/jpeg"
)

// DecodeError describes a server frame the client could not interpret.
type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func malformed(message, param string) *DecodeError {
	return &DecodeError{Code: "malformed_frame", Message: message, Param: param}
}

// ---- outbound frames -------------------------------------------------------

// ClientMessage is the envelope for every uplink frame. Exactly one field is
// set per frame.
type ClientMessage struct {
	Setup         *Setup             `json:"setup,omitempty"`
	RealtimeInput *RealtimeInput     `json:"realtimeInput,omitempty"`
	ToolResponse  *ToolResponseFrame `json:"toolResponse,omitempty"`
}

// Setup is the first frame on a new connection and configures the session.
type Setup struct {
	Model               string            `json:"model"`
	GenerationConfig    *GenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction   *Content          `json:"systemInstruction,omitempty"`
	Tools               []Tool            `json:"tools,omitempty"`
	InputTranscription  *struct{}         `json:"inputAudioTranscription,omitempty"`
	OutputTranscription *struct{}         `json:"outputAudioTranscription,omitempty"`
}

type GenerationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *SpeechConfig `json:"speechConfig,omitempty"`
}

type SpeechConfig struct {
	VoiceConfig *VoiceConfig `json:"voiceConfig,omitempty"`
}

type VoiceConfig struct {
	PrebuiltVoiceConfig *PrebuiltVoiceConfig `json:"prebuiltVoiceConfig,omitempty"`
}

type PrebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

// Content is a turn of parts, used for system instructions and model output.
type Content struct {
	Parts []Part `json:"parts,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Part is either text or inline binary data, never both.
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`
}

// Blob carries base64-encoded media with its mime type.
type Blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Tool declares server-side or client-side capabilities. GoogleSearch is a
// provider-hosted tool and carries no schema.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations,omitempty"`
	GoogleSearch         *struct{}             `json:"googleSearch,omitempty"`
}

type FunctionDeclaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

// Schema is the subset of the OpenAPI schema object the declarations need.
type Schema struct {
	Type        string            `json:"type"`
	Description string            `json:"description,omitempty"`
	Enum        []string          `json:"enum,omitempty"`
	Properties  map[string]Schema `json:"properties,omitempty"`
	Required    []string          `json:"required,omitempty"`
}

// RealtimeInput streams media chunks into the open session.
type RealtimeInput struct {
	MediaChunks []Blob `json:"mediaChunks"`
}

// ToolResponseFrame answers one or more pending function calls.
type ToolResponseFrame struct {
	FunctionResponses []FunctionResponse `json:"functionResponses"`
}

type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// ---- inbound frames --------------------------------------------------------

// ServerMessage is the envelope for every downlink frame.
type ServerMessage struct {
	SetupComplete *SetupComplete `json:"setupComplete,omitempty"`
	ServerContent *ServerContent `json:"serverContent,omitempty"`
	ToolCall      *ToolCall      `json:"toolCall,omitempty"`
}

type SetupComplete struct{}

// ServerContent carries generated model output and transcription updates.
type ServerContent struct {
	ModelTurn           *Content       `json:"modelTurn,omitempty"`
	InputTranscription  *Transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *Transcription `json:"outputTranscription,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
}

type Transcription struct {
	Text string `json:"text"`
}

// ToolCall requests execution of one or more declared client capabilities.
type ToolCall struct {
	FunctionCalls []FunctionCall `json:"functionCalls"`
}

type FunctionCall struct {
	ID   string          `json:"id,omitempty"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// DecodeServerMessage parses one downlink frame. Frames that carry none of
// the known envelope fields decode to an empty message rather than an error;
// the API adds fields over time and unknown ones are ignorable.
func DecodeServerMessage(data []byte) (*ServerMessage, error) {
	if len(data) == 0 {
		return nil, malformed("empty server frame", "")
	}
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, malformed(fmt.Sprintf("invalid server frame: %v", err), "")
	}
	return &msg, nil
}

// DecodeArgs parses a function call's argument object into a generic map.
func DecodeArgs(fc FunctionCall) (map[string]any, error) {
	if len(fc.Args) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(fc.Args, &args); err != nil {
		return nil, malformed(fmt.Sprintf("invalid function call args: %v", err), fc.Name)
	}
	return args, nil
}
