// Package gemini implements the stream.Dialer contract over the Gemini Live
// bidirectional websocket API.
package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kitts-ai/hud-live/pkg/core"
	"github.com/kitts-ai/hud-live/pkg/stream"
	"github.com/kitts-ai/hud-live/pkg/stream/protocol"
)

// Dialer opens live sessions against the Gemini API.
type Dialer struct {
	// APIKey authenticates the websocket dial.
	APIKey string
	// Endpoint overrides protocol.DefaultEndpoint when set.
	Endpoint string
	// HandshakeTimeout bounds the websocket handshake. Zero means 15s.
	HandshakeTimeout time.Duration
	// Logger is optional; a nop logger is used when nil.
	Logger *zap.Logger
}

// Dial opens the websocket, sends the setup frame, and starts the read loop.
// It returns before setupComplete arrives; Handlers.OnOpen fires when the
// session is actually established.
func (d *Dialer) Dial(ctx context.Context, cfg stream.Config, h stream.Handlers) (stream.Stream, error) {
	if strings.TrimSpace(d.APIKey) == "" {
		return nil, core.NewInvalidRequestError("gemini: API key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, core.NewInvalidRequestError("gemini: model is required")
	}

	endpoint := d.Endpoint
	if endpoint == "" {
		endpoint = protocol.DefaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, core.NewInvalidRequestError(fmt.Sprintf("gemini: bad endpoint: %v", err))
	}
	q := u.Query()
	q.Set("key", d.APIKey)
	u.RawQuery = q.Encode()

	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, core.NewTransportErrorf("gemini: dial: %v", err)
	}

	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &client{
		conn:     conn,
		handlers: h,
		logger:   logger,
	}
	if err := c.sendSetup(cfg); err != nil {
		conn.Close()
		return nil, err
	}
	go c.readLoop()
	return c, nil
}

type client struct {
	conn     *websocket.Conn
	handlers stream.Handlers
	logger   *zap.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    bool
}

func (c *client) sendSetup(cfg stream.Config) error {
	model := cfg.Model
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}

	setup := &protocol.Setup{
		Model: model,
		GenerationConfig: &protocol.GenerationConfig{
			ResponseModalities: []string{"AUDIO"},
		},
	}
	if cfg.Voice != "" {
		setup.GenerationConfig.SpeechConfig = &protocol.SpeechConfig{
			VoiceConfig: &protocol.VoiceConfig{
				PrebuiltVoiceConfig: &protocol.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		}
	}
	if cfg.SystemInstruction != "" {
		setup.SystemInstruction = &protocol.Content{
			Parts: []protocol.Part{{Text: cfg.SystemInstruction}},
		}
	}
	if len(cfg.Capabilities) > 0 {
		setup.Tools = append(setup.Tools, protocol.Tool{
			FunctionDeclarations: declarations(cfg.Capabilities),
		})
	}
	if cfg.Search {
		setup.Tools = append(setup.Tools, protocol.Tool{GoogleSearch: &struct{}{}})
	}
	if cfg.InputTranscription {
		setup.InputTranscription = &struct{}{}
	}
	if cfg.OutputTranscription {
		setup.OutputTranscription = &struct{}{}
	}

	return c.writeJSON(protocol.ClientMessage{Setup: setup})
}

func declarations(caps []stream.CapabilityDecl) []protocol.FunctionDeclaration {
	decls := make([]protocol.FunctionDeclaration, 0, len(caps))
	for _, decl := range caps {
		props := make(map[string]protocol.Schema, len(decl.Parameters.Properties))
		for name, spec := range decl.Parameters.Properties {
			props[name] = protocol.Schema{
				Type:        spec.Type,
				Description: spec.Description,
				Enum:        spec.Enum,
			}
		}
		decls = append(decls, protocol.FunctionDeclaration{
			Name:        decl.Name,
			Description: decl.Description,
			Parameters: &protocol.Schema{
				Type:       "OBJECT",
				Properties: props,
				Required:   decl.Parameters.Required,
			},
		})
	}
	return decls
}

// SendAudioFrame transmits one PCM16LE capture frame as a realtime media chunk.
func (c *client) SendAudioFrame(pcm []byte) error {
	return c.sendMediaChunk(protocol.MimePCM16k, pcm)
}

// SendVideoFrame transmits one JPEG frame as a realtime media chunk.
func (c *client) SendVideoFrame(jpeg []byte) error {
	return c.sendMediaChunk(protocol.MimeJPEG, jpeg)
}

func (c *client) sendMediaChunk(mime string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	return c.writeJSON(protocol.ClientMessage{
		RealtimeInput: &protocol.RealtimeInput{
			MediaChunks: []protocol.Blob{{
				MimeType: mime,
				Data:     base64.StdEncoding.EncodeToString(payload),
			}},
		},
	})
}

// SendToolResponse acknowledges a capability request.
func (c *client) SendToolResponse(resp stream.ToolResponse) error {
	return c.writeJSON(protocol.ClientMessage{
		ToolResponse: &protocol.ToolResponseFrame{
			FunctionResponses: []protocol.FunctionResponse{{
				ID:       resp.ID,
				Name:     resp.Name,
				Response: map[string]any{"result": resp.Result},
			}},
		},
	})
}

func (c *client) writeJSON(msg protocol.ClientMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return core.NewTransportError("gemini: stream closed")
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return core.NewTransportErrorf("gemini: write: %v", err)
	}
	return nil
}

// Close tears down the connection. Safe to call more than once; the read loop
// exits on the closed socket without reporting an error.
func (c *client) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.closed = true
		c.writeMu.Unlock()
		deadline := time.Now().Add(time.Second)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.conn.Close()
	})
	return nil
}

func (c *client) readLoop() {
	for {
		// The API sends JSON on both text and binary frames.
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.writeMu.Lock()
			closed := c.closed
			c.writeMu.Unlock()
			if closed || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.fireClose(nil)
			} else {
				c.fireClose(core.NewTransportErrorf("gemini: read: %v", err))
			}
			return
		}
		c.dispatch(data)
	}
}

func (c *client) dispatch(data []byte) {
	msg, err := protocol.DecodeServerMessage(data)
	if err != nil {
		c.logger.Warn("dropping undecodable server frame", zap.Error(err))
		return
	}

	switch {
	case msg.SetupComplete != nil:
		if c.handlers.OnOpen != nil {
			c.handlers.OnOpen()
		}
	case msg.ServerContent != nil:
		c.dispatchContent(msg.ServerContent)
	case msg.ToolCall != nil:
		c.dispatchToolCall(msg.ToolCall)
	}
}

func (c *client) dispatchContent(sc *protocol.ServerContent) {
	if sc.Interrupted && c.handlers.OnInterrupted != nil {
		c.handlers.OnInterrupted()
	}
	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" && c.handlers.OnTranscript != nil {
		c.handlers.OnTranscript(stream.SpeakerUser, sc.InputTranscription.Text)
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" && c.handlers.OnTranscript != nil {
		c.handlers.OnTranscript(stream.SpeakerAgent, sc.OutputTranscription.Text)
	}
	if sc.ModelTurn == nil || c.handlers.OnAudio == nil {
		return
	}
	for _, part := range sc.ModelTurn.Parts {
		if part.InlineData == nil || part.InlineData.Data == "" {
			continue
		}
		pcm, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			c.logger.Warn("dropping undecodable audio part", zap.Error(err))
			continue
		}
		c.handlers.OnAudio(pcm)
	}
}

func (c *client) dispatchToolCall(tc *protocol.ToolCall) {
	if c.handlers.OnToolCall == nil {
		return
	}
	for _, fc := range tc.FunctionCalls {
		args, err := protocol.DecodeArgs(fc)
		if err != nil {
			c.logger.Warn("dropping tool call with bad args",
				zap.String("name", fc.Name), zap.Error(err))
			continue
		}
		c.handlers.OnToolCall(stream.ToolCallRequest{
			ID:   fc.ID,
			Name: fc.Name,
			Args: args,
		})
	}
}

func (c *client) fireClose(err error) {
	if err != nil && c.handlers.OnError != nil {
		c.handlers.OnError(err)
	}
	if c.handlers.OnClose != nil {
		c.handlers.OnClose(err)
	}
}
