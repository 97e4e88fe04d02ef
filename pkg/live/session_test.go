package live

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kitts-ai/hud-live/pkg/core"
	"github.com/kitts-ai/hud-live/pkg/stream"
	"github.com/kitts-ai/hud-live/pkg/transcript"
)

// fakeStream records sends and lets tests drive the handler surface.
type fakeStream struct {
	h stream.Handlers

	mu        sync.Mutex
	audio     [][]byte
	video     [][]byte
	toolResps []stream.ToolResponse
	closed    bool
}

func (f *fakeStream) SendAudioFrame(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return core.NewTransportError("closed")
	}
	f.audio = append(f.audio, pcm)
	return nil
}

func (f *fakeStream) SendVideoFrame(jpeg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.video = append(f.video, jpeg)
	return nil
}

func (f *fakeStream) SendToolResponse(resp stream.ToolResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toolResps = append(f.toolResps, resp)
	return nil
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeStream) responses() []stream.ToolResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stream.ToolResponse(nil), f.toolResps...)
}

type fakeDialer struct {
	mu       sync.Mutex
	streams  []*fakeStream
	configs  []stream.Config
	failWith error
	autoOpen bool
}

func (d *fakeDialer) Dial(ctx context.Context, cfg stream.Config, h stream.Handlers) (stream.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWith != nil {
		return nil, d.failWith
	}
	fs := &fakeStream{h: h}
	d.streams = append(d.streams, fs)
	d.configs = append(d.configs, cfg)
	if d.autoOpen {
		go h.OnOpen()
	}
	return fs, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.streams)
}

func (d *fakeDialer) lastStream() *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

func (d *fakeDialer) lastConfig() stream.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.configs[len(d.configs)-1]
}

// idleSource blocks until closed; tests that exercise uplink use their own.
type idleSource struct {
	once sync.Once
	done chan struct{}
}

func newIdleSource() *idleSource { return &idleSource{done: make(chan struct{})} }

func (s *idleSource) ReadFrame(buf []byte) error {
	<-s.done
	return context.Canceled
}

func (s *idleSource) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func testSessionConfig() SessionConfig {
	return SessionConfig{
		Mode:            ModeAssistant,
		Input:           InputMicrophone,
		Model:           "test-model",
		Voice:           "Fenrir",
		SourceLang:      "Auto",
		TargetLang:      "English",
		WakePolicy:      WakeAlwaysEngaged,
		CloudRefinement: true,
		EnergyThreshold: DefaultEnergyThreshold,
		HangoverFrames:  DefaultHangoverFrames,
		WakeKeywords:    DefaultWakeKeywords,
		ReconnectDelay:  20 * time.Millisecond,
		PoolIdleClose:   0,
		SleepAfter:      30 * time.Second,
		VideoInterval:   time.Hour,
	}
}

func newTestService(t *testing.T, cfg SessionConfig, deps Deps) *Service {
	t.Helper()
	if deps.Clock == nil {
		deps.Clock = &manualClock{}
	}
	if deps.Sink == nil {
		deps.Sink = &memorySink{}
	}
	svc := NewService(cfg, deps)
	t.Cleanup(svc.Close)
	return svc
}

func waitStatus(t *testing.T, svc *Service, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if svc.Status() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("status never reached %s (now %s)", want, svc.Status())
}

func waitCond(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestConnectLifecycle(t *testing.T) {
	d := &fakeDialer{autoOpen: true}
	svc := newTestService(t, testSessionConfig(), Deps{Dialer: d})

	if err := svc.Connect(newIdleSource(), nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitStatus(t, svc, StatusConnected)

	// Connecting twice is API misuse.
	if err := svc.Connect(newIdleSource(), nil); err == nil {
		t.Error("second Connect accepted")
	}

	svc.Disconnect()
	waitStatus(t, svc, StatusDisconnected)
	if !d.lastStream().closed {
		t.Error("stream left open after Disconnect")
	}
}

func TestConnectNilAudioIsDeviceFault(t *testing.T) {
	svc := newTestService(t, testSessionConfig(), Deps{Dialer: &fakeDialer{}})
	err := svc.Connect(nil, nil)
	if err == nil || !core.IsDeviceFault(err) {
		t.Fatalf("err = %v, want device fault", err)
	}
	waitStatus(t, svc, StatusError)
}

func TestAssistantSetupDeclaresCapabilities(t *testing.T) {
	d := &fakeDialer{autoOpen: true}
	svc := newTestService(t, testSessionConfig(), Deps{Dialer: d})
	svc.Connect(newIdleSource(), nil)
	waitStatus(t, svc, StatusConnected)

	cfg := d.lastConfig()
	if len(cfg.Capabilities) != 4 || !cfg.Search {
		t.Errorf("capabilities = %d search = %v", len(cfg.Capabilities), cfg.Search)
	}
	if !strings.Contains(cfg.SystemInstruction, "AR HUD assistant") {
		t.Errorf("instruction = %q", cfg.SystemInstruction)
	}
	if !cfg.InputTranscription || !cfg.OutputTranscription {
		t.Error("transcription not requested")
	}
}

func TestTranslatorSetupDeclaresNothing(t *testing.T) {
	cfg := testSessionConfig()
	cfg.Mode = ModeTranslator
	cfg.Input = InputSystemAudio
	d := &fakeDialer{autoOpen: true}
	svc := newTestService(t, cfg, Deps{Dialer: d})
	svc.Connect(newIdleSource(), nil)
	waitStatus(t, svc, StatusConnected)

	sc := d.lastConfig()
	if len(sc.Capabilities) != 0 || sc.Search {
		t.Errorf("translator declared tools: %+v", sc)
	}
	if !strings.Contains(sc.SystemInstruction, "STRICT_INTERPRETER") {
		t.Errorf("instruction = %q", sc.SystemInstruction)
	}
}

func TestTransientCloseReconnects(t *testing.T) {
	d := &fakeDialer{autoOpen: true}
	svc := newTestService(t, testSessionConfig(), Deps{Dialer: d})
	svc.Connect(newIdleSource(), nil)
	waitStatus(t, svc, StatusConnected)

	first := d.lastStream()
	first.h.OnClose(core.NewTransportError("reset by peer"))

	waitCond(t, func() bool { return d.dialCount() == 2 })
	waitStatus(t, svc, StatusConnected)
	if d.lastStream() == first {
		t.Error("no fresh stream after reconnect")
	}
}

func TestRepeatedClosesCoalesceIntoOneRedial(t *testing.T) {
	cfg := testSessionConfig()
	cfg.ReconnectDelay = 100 * time.Millisecond
	d := &fakeDialer{autoOpen: true}
	svc := newTestService(t, cfg, Deps{Dialer: d})
	svc.Connect(newIdleSource(), nil)
	waitStatus(t, svc, StatusConnected)

	// A burst of failure signals within one backoff window arms one timer.
	first := d.lastStream()
	for i := 0; i < 5; i++ {
		first.h.OnClose(core.NewTransportError("reset by peer"))
	}

	waitCond(t, func() bool { return d.dialCount() == 2 })
	waitStatus(t, svc, StatusConnected)
	time.Sleep(300 * time.Millisecond)
	if n := d.dialCount(); n != 2 {
		t.Errorf("dials = %d, want 2", n)
	}
}

func TestOutputMuteStopsActivePlayback(t *testing.T) {
	d := &fakeDialer{autoOpen: true}
	sink := &memorySink{}
	svc := newTestService(t, testSessionConfig(), Deps{Dialer: d, Sink: sink})
	svc.Connect(newIdleSource(), nil)
	waitStatus(t, svc, StatusConnected)

	fs := d.lastStream()
	fs.h.OnAudio(oneSecond)
	waitCond(t, func() bool { return sink.written() > 0 })

	svc.SetOutputMuted(true)
	waitCond(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return sink.resets >= 1
	})
	mutedBytes := sink.written()
	fs.h.OnAudio(oneSecond)
	time.Sleep(20 * time.Millisecond)
	if sink.written() != mutedBytes {
		t.Error("muted speaker played audio")
	}

	svc.SetOutputMuted(false)
	fs.h.OnAudio(oneSecond)
	waitCond(t, func() bool { return sink.written() > mutedBytes })
}

func TestAssistantTranscriptRouting(t *testing.T) {
	d := &fakeDialer{autoOpen: true}
	svc := newTestService(t, testSessionConfig(), Deps{Dialer: d})
	svc.Connect(newIdleSource(), nil)
	waitStatus(t, svc, StatusConnected)

	fs := d.lastStream()
	fs.h.OnTranscript(stream.SpeakerUser, "what is ")
	fs.h.OnTranscript(stream.SpeakerUser, "the time?")
	fs.h.OnTranscript(stream.SpeakerAgent, "It is noon.")

	waitCond(t, func() bool { return len(svc.History()) == 2 })
	lines := svc.History()
	if lines[0].Text != "what is the time?" || lines[0].Speaker != transcript.SpeakerUser {
		t.Errorf("lines[0] = %+v", lines[0])
	}
	if len(svc.Pool()) != 0 {
		t.Error("assistant transcripts leaked into the pool")
	}
}

func TestTranslatorTranscriptRouting(t *testing.T) {
	cfg := testSessionConfig()
	cfg.Mode = ModeTranslator
	cfg.Input = InputSystemAudio
	d := &fakeDialer{autoOpen: true}
	tr := &recordingTranslator{}
	svc := newTestService(t, cfg, Deps{Dialer: d, Translator: tr})
	svc.Connect(newIdleSource(), nil)
	waitStatus(t, svc, StatusConnected)

	fs := d.lastStream()
	fs.h.OnTranscript(stream.SpeakerUser, "xin chào.")
	fs.h.OnTranscript(stream.SpeakerAgent, "hello.")

	waitCond(t, func() bool {
		items := svc.Pool()
		return len(items) == 1 && items[0].Refinement == transcript.RefineDone
	})
	item := svc.Pool()[0]
	if item.SourceText != "xin chào." {
		t.Errorf("source = %q", item.SourceText)
	}
	if item.TargetText != "refined" || !item.TargetComplete {
		t.Errorf("target = %+v", item)
	}
	if len(svc.History()) != 0 {
		t.Error("translator transcripts leaked into the history")
	}
}

type recordingTranslator struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingTranslator) Translate(ctx context.Context, sourceLang, targetLang, text string) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, text)
	r.mu.Unlock()
	return "refined", nil
}

func TestToolCallRendersWidgetAndAcks(t *testing.T) {
	d := &fakeDialer{autoOpen: true}
	svc := newTestService(t, testSessionConfig(), Deps{Dialer: d})
	svc.Connect(newIdleSource(), nil)
	waitStatus(t, svc, StatusConnected)

	fs := d.lastStream()
	fs.h.OnToolCall(stream.ToolCallRequest{
		ID:   "fc-1",
		Name: "render_weather_widget",
		Args: map[string]any{"location": "Hanoi", "temperature": "31°C", "condition": "rain"},
	})

	waitCond(t, func() bool { return len(fs.responses()) == 1 })
	resp := fs.responses()[0]
	if resp.ID != "fc-1" || resp.Result != "Widget Rendered" {
		t.Errorf("response = %+v", resp)
	}
}

func TestInterruptFlushesPlayback(t *testing.T) {
	d := &fakeDialer{autoOpen: true}
	sink := &memorySink{}
	svc := newTestService(t, testSessionConfig(), Deps{Dialer: d, Sink: sink})
	svc.Connect(newIdleSource(), nil)
	waitStatus(t, svc, StatusConnected)

	fs := d.lastStream()
	fs.h.OnAudio(oneSecond)
	waitCond(t, func() bool { return sink.written() > 0 })

	fs.h.OnInterrupted()
	waitCond(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return sink.resets >= 1
	})
}

// dozeServiceGate ages the session's wake gate past its sleep deadline, on
// the command loop so nothing races the service.
func dozeServiceGate(t *testing.T, svc *Service) {
	t.Helper()
	done := make(chan struct{})
	if !svc.post(func() {
		doze(svc.wake)
		close(done)
	}) {
		t.Fatal("service closed")
	}
	<-done
}

func gateLastActive(t *testing.T, svc *Service) time.Time {
	t.Helper()
	var ts time.Time
	done := make(chan struct{})
	if !svc.post(func() {
		g := svc.wake
		g.mu.Lock()
		ts = g.lastActive
		g.mu.Unlock()
		close(done)
	}) {
		t.Fatal("service closed")
	}
	<-done
	return ts
}

func TestWakeGatedAssistant(t *testing.T) {
	cfg := testSessionConfig()
	cfg.WakePolicy = WakeWordGated
	d := &fakeDialer{autoOpen: true}
	sink := &memorySink{}
	svc := newTestService(t, cfg, Deps{Dialer: d, Sink: sink})
	svc.Connect(newIdleSource(), nil)
	waitStatus(t, svc, StatusConnected)

	fs := d.lastStream()
	// A gated assistant starts awake; audio plays until it dozes off.
	fs.h.OnAudio(oneSecond)
	waitCond(t, func() bool { return sink.written() > 0 })
	awakeBytes := sink.written()

	// Asleep: downlink audio is gated away from the sink.
	dozeServiceGate(t, svc)
	fs.h.OnAudio(oneSecond)
	time.Sleep(20 * time.Millisecond)
	if sink.written() != awakeBytes {
		t.Error("sleeping assistant played audio")
	}

	fs.h.OnTranscript(stream.SpeakerUser, "hey kitts, what's up")
	waitCond(t, func() bool {
		for _, line := range svc.History() {
			if line.Text == "👀 I am listening..." {
				return true
			}
		}
		return false
	})

	fs.h.OnAudio(oneSecond)
	waitCond(t, func() bool { return sink.written() > awakeBytes })
}

func TestAgentTranscriptRefreshesWakeActivity(t *testing.T) {
	cfg := testSessionConfig()
	cfg.WakePolicy = WakeWordGated
	d := &fakeDialer{autoOpen: true}
	svc := newTestService(t, cfg, Deps{Dialer: d})
	svc.Connect(newIdleSource(), nil)
	waitStatus(t, svc, StatusConnected)

	before := gateLastActive(t, svc)
	time.Sleep(5 * time.Millisecond)
	d.lastStream().h.OnTranscript(stream.SpeakerAgent, "still talking")
	waitCond(t, func() bool { return gateLastActive(t, svc).After(before) })
}

func TestReconfigureRestartsSession(t *testing.T) {
	d := &fakeDialer{autoOpen: true}
	svc := newTestService(t, testSessionConfig(), Deps{Dialer: d})
	svc.Connect(newIdleSource(), nil)
	waitStatus(t, svc, StatusConnected)

	fs := d.lastStream()
	fs.h.OnTranscript(stream.SpeakerUser, "old conversation.")
	waitCond(t, func() bool { return len(svc.History()) == 1 })

	next := testSessionConfig()
	next.Mode = ModeTranslator
	next.Input = InputSystemAudio
	svc.Reconfigure(next)

	waitCond(t, func() bool { return d.dialCount() == 2 })
	waitStatus(t, svc, StatusConnected)

	lines := svc.History()
	if len(lines) != 1 || lines[0].Text != "[SYSTEM: RECONFIGURING TO TRANSLATOR MODE...]" {
		t.Errorf("history after reconfigure = %+v", lines)
	}
	if !strings.Contains(d.lastConfig().SystemInstruction, "STRICT_INTERPRETER") {
		t.Error("new instruction not applied")
	}
}

func TestOfflineDefersDialUntilOnline(t *testing.T) {
	conn := &ManualConnectivity{}
	conn.Set(false)
	d := &fakeDialer{autoOpen: true}
	svc := newTestService(t, testSessionConfig(), Deps{Dialer: d, Connectivity: conn})

	if err := svc.Connect(newIdleSource(), nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if d.dialCount() != 0 {
		t.Fatal("dialed while offline")
	}
	if svc.Status() != StatusConnecting {
		t.Fatalf("status = %s", svc.Status())
	}

	conn.Set(true)
	waitCond(t, func() bool { return d.dialCount() == 1 })
	waitStatus(t, svc, StatusConnected)
}

func TestEventsCarryStatusTransitions(t *testing.T) {
	d := &fakeDialer{autoOpen: true}
	svc := newTestService(t, testSessionConfig(), Deps{Dialer: d})
	svc.Connect(newIdleSource(), nil)

	deadline := time.After(2 * time.Second)
	sawConnected := false
	for !sawConnected {
		select {
		case ev := <-svc.Events():
			if st, ok := ev.(StatusChangedEvent); ok && st.To == StatusConnected {
				sawConnected = true
			}
		case <-deadline:
			t.Fatal("no connected status event")
		}
	}
}
