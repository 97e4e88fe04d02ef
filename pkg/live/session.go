package live

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kitts-ai/hud-live/pkg/core"
	"github.com/kitts-ai/hud-live/pkg/stream"
	"github.com/kitts-ai/hud-live/pkg/tools"
	"github.com/kitts-ai/hud-live/pkg/transcript"
)

// ConnectivityObserver reports network reachability changes. Subscribe
// returns an unsubscribe function; the callback fires with the current state
// immediately and on every change afterwards.
type ConnectivityObserver interface {
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// ManualConnectivity is a ConnectivityObserver driven by explicit Set calls.
// The zero value starts online.
type ManualConnectivity struct {
	mu      sync.Mutex
	offline bool
	subs    map[int]func(bool)
	nextID  int
}

// Subscribe registers fn and invokes it with the current state.
func (m *ManualConnectivity) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	if m.subs == nil {
		m.subs = make(map[int]func(bool))
	}
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	online := !m.offline
	m.mu.Unlock()

	fn(online)
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Set flips the reported state and notifies subscribers.
func (m *ManualConnectivity) Set(online bool) {
	m.mu.Lock()
	if m.offline == !online {
		m.mu.Unlock()
		return
	}
	m.offline = !online
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()
	for _, fn := range subs {
		fn(online)
	}
}

// Deps bundles the injected collaborators of a Service.
type Deps struct {
	Dialer       stream.Dialer
	Translator   transcript.Translator
	Clock        Clock
	Sink         Sink
	Connectivity ConnectivityObserver
	Logger       *zap.Logger
}

// Service is a live session. All state transitions run on a single internal
// loop; the exported methods post commands into it and are safe for
// concurrent use.
type Service struct {
	cfg  SessionConfig
	deps Deps
	log  *zap.Logger

	history   *transcript.History
	pool      *transcript.Pool
	scheduler *Scheduler

	commands chan func()
	events   chan Event
	done     chan struct{}
	closed   sync.Once

	uplinkMuted   atomic.Bool
	droppedEvents atomic.Int64

	refinerMu sync.Mutex
	refiner   *transcript.Refiner

	// Loop-owned state below. Never touched outside the command loop.
	status         Status
	gen            uint64
	pendingOpen    uint64
	strm           stream.Stream
	audioSrc       AudioSource
	videoSrc       VideoSource
	audioPump      *audioPump
	videoPump      *videoPump
	videoActive    bool
	wake           *WakeGate
	dispatcher     *tools.Dispatcher
	reconnectTimer *time.Timer
	offline        bool
	unsubscribe    func()
	closing        bool
}

// NewService creates a session service and starts its command loop.
func NewService(cfg SessionConfig, deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = NewMonotonicClock()
	}
	s := &Service{
		cfg:      cfg,
		deps:     deps,
		log:      deps.Logger,
		commands: make(chan func(), 64),
		events:   make(chan Event, 256),
		done:     make(chan struct{}),
		status:   StatusDisconnected,
	}
	s.history = transcript.NewHistory(func(lines []transcript.Line) {
		s.emit(TranscriptUpdatedEvent{Lines: lines})
	})
	s.pool = transcript.NewPool(cfg.PoolIdleClose, func(items []transcript.Item) {
		s.emit(PoolUpdatedEvent{Items: items})
		// Mutations can make an item refinable, including the idle timer
		// closing an open one.
		s.kickRefiner()
	})
	s.scheduler = NewScheduler(deps.Clock, deps.Sink, func(level float64) {
		s.emit(OutputLevelEvent{Level: level})
	})
	if deps.Connectivity != nil {
		s.unsubscribe = deps.Connectivity.Subscribe(func(online bool) {
			s.post(func() { s.setOnline(online) })
		})
	}
	go s.loop()
	return s
}

// Events returns the notification channel. It closes when the service does.
func (s *Service) Events() <-chan Event { return s.events }

// Status returns the current connection state.
func (s *Service) Status() Status {
	res := make(chan Status, 1)
	if !s.post(func() { res <- s.status }) {
		return StatusDisconnected
	}
	return <-res
}

// History returns a snapshot of the assistant transcript.
func (s *Service) History() []transcript.Line { return s.history.Lines() }

// Pool returns a snapshot of the translation pool.
func (s *Service) Pool() []transcript.Item { return s.pool.Items() }

// DroppedEvents reports how many notifications were discarded because the
// consumer lagged.
func (s *Service) DroppedEvents() int64 { return s.droppedEvents.Load() }

// Connect attaches the capture sources and dials the remote session. video
// may be nil; audio may not. Connecting while not disconnected fails.
func (s *Service) Connect(audio AudioSource, video VideoSource) error {
	errc := make(chan error, 1)
	if !s.post(func() { errc <- s.connect(audio, video) }) {
		return core.NewInvalidRequestError("session closed")
	}
	return <-errc
}

// Disconnect tears the session down and cancels any pending reconnect.
func (s *Service) Disconnect() {
	done := make(chan struct{})
	if !s.post(func() { s.disconnect(); close(done) }) {
		return
	}
	<-done
}

// Reconfigure applies a new session configuration. A connected session is
// restarted in place: both records are cleared, a reconfiguration notice is
// injected, and the stream is redialed with the new instruction.
func (s *Service) Reconfigure(cfg SessionConfig) {
	done := make(chan struct{})
	if !s.post(func() { s.reconfigure(cfg); close(done) }) {
		return
	}
	<-done
}

// SetMuted toggles the uplink microphone mute.
func (s *Service) SetMuted(muted bool) {
	s.uplinkMuted.Store(muted)
}

// SetOutputMuted toggles the speaker mute. Muting stops whatever is playing,
// not just future audio.
func (s *Service) SetOutputMuted(muted bool) {
	s.post(func() {
		if err := s.scheduler.SetMuted(muted); err != nil {
			s.log.Warn("playback flush failed", zap.Error(err))
		}
	})
}

// SetVideoActive toggles video frame sampling on the live session.
func (s *Service) SetVideoActive(active bool) {
	s.post(func() {
		s.videoActive = active
		if s.videoPump != nil {
			s.videoPump.setActive(active)
		}
	})
}

// Clear empties both conversation records.
func (s *Service) Clear() {
	s.post(func() {
		s.history.Clear()
		s.pool.Clear()
	})
}

// Close shuts the service down. The events channel closes once the loop
// drains.
func (s *Service) Close() {
	s.closed.Do(func() {
		s.Disconnect()
		s.post(func() {
			if s.unsubscribe != nil {
				s.unsubscribe()
			}
			s.pool.Stop()
			close(s.done)
		})
	})
}

func (s *Service) loop() {
	for {
		select {
		case <-s.done:
			close(s.events)
			return
		case fn := <-s.commands:
			fn()
		}
	}
}

// post queues fn on the command loop. Returns false once the service is
// closed.
func (s *Service) post(fn func()) bool {
	select {
	case <-s.done:
		return false
	case s.commands <- fn:
		return true
	}
}

func (s *Service) setRefiner(r *transcript.Refiner) {
	s.refinerMu.Lock()
	s.refiner = r
	s.refinerMu.Unlock()
}

func (s *Service) swapRefiner(r *transcript.Refiner) *transcript.Refiner {
	s.refinerMu.Lock()
	old := s.refiner
	s.refiner = r
	s.refinerMu.Unlock()
	return old
}

func (s *Service) kickRefiner() {
	s.refinerMu.Lock()
	r := s.refiner
	s.refinerMu.Unlock()
	if r != nil {
		r.Kick()
	}
}

func (s *Service) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.droppedEvents.Add(1)
	}
}

func (s *Service) setStatus(to Status) {
	if s.status == to {
		return
	}
	from := s.status
	s.status = to
	s.log.Debug("status changed",
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	s.emit(StatusChangedEvent{From: from, To: to})
}

// ---- connect / disconnect --------------------------------------------------

func (s *Service) connect(audio AudioSource, video VideoSource) error {
	if s.status == StatusConnecting || s.status == StatusConnected {
		return core.NewInvalidRequestError("already connected")
	}
	if audio == nil {
		err := core.NewDeviceError("no audio source")
		s.setStatus(StatusError)
		s.emit(ErrorEvent{Err: err})
		return err
	}
	s.audioSrc = audio
	s.videoSrc = video
	s.closing = false
	s.setStatus(StatusConnecting)
	s.setupMode()
	s.dial()
	return nil
}

// setupMode builds the per-mode collaborators: wake gate, refiner,
// dispatcher.
func (s *Service) setupMode() {
	s.teardownMode()

	if s.cfg.Mode == ModeAssistant {
		s.wake = NewWakeGate(s.cfg.WakePolicy, s.cfg.WakeKeywords, s.cfg.SleepAfter, func(awake bool) {
			s.emit(WakeChangedEvent{Awake: awake})
			if err := s.scheduler.SetOutputGate(!awake); err != nil {
				s.log.Warn("output gate flush failed", zap.Error(err))
			}
		})
		s.wake.Start()
		// Dispatch only ever runs on the command loop, so the stream can be
		// touched directly here.
		s.dispatcher = tools.NewDispatcher(
			func(w tools.Widget) { s.emit(WidgetEvent{Widget: w}) },
			func(resp stream.ToolResponse) {
				if s.strm == nil {
					return
				}
				if err := s.strm.SendToolResponse(resp); err != nil {
					s.log.Debug("tool response dropped", zap.Error(err))
				}
			},
			s.log,
		)
	} else if s.deps.Translator != nil && s.cfg.CloudRefinement {
		r := transcript.NewRefiner(s.pool, s.deps.Translator, s.cfg.SourceLang, s.cfg.TargetLang, s.log)
		r.Start()
		s.setRefiner(r)
	}
}

func (s *Service) teardownMode() {
	if s.wake != nil {
		s.wake.Stop()
		s.wake = nil
	}
	if r := s.swapRefiner(nil); r != nil {
		r.Stop()
	}
	s.dispatcher = nil
	if err := s.scheduler.SetOutputGate(false); err != nil {
		s.log.Warn("output gate flush failed", zap.Error(err))
	}
}

func (s *Service) streamConfig() stream.Config {
	cfg := stream.Config{
		Model:               s.cfg.Model,
		Voice:               s.cfg.Voice,
		SystemInstruction:   SystemInstruction(s.cfg),
		InputTranscription:  true,
		OutputTranscription: true,
	}
	if s.cfg.Mode == ModeAssistant {
		cfg.Capabilities = tools.Declarations()
		cfg.Search = true
	}
	return cfg
}

// dial starts an asynchronous connection attempt under a fresh generation.
// Callbacks from older generations are discarded when they arrive.
func (s *Service) dial() {
	if s.offline {
		s.log.Debug("dial deferred, offline")
		return
	}
	s.gen++
	g := s.gen
	scfg := s.streamConfig()
	h := stream.Handlers{
		OnOpen: func() {
			s.post(func() { s.onOpen(g) })
		},
		OnClose: func(err error) {
			s.post(func() { s.onStreamClosed(g, err) })
		},
		OnError: func(err error) {
			s.log.Warn("stream fault", zap.Error(err))
		},
		OnTranscript: func(speaker stream.Speaker, text string) {
			s.post(func() { s.onTranscript(g, speaker, text) })
		},
		OnToolCall: func(req stream.ToolCallRequest) {
			s.post(func() { s.onToolCall(g, req) })
		},
		OnInterrupted: func() {
			s.post(func() { s.onInterrupted(g) })
		},
		OnAudio: func(pcm []byte) {
			s.post(func() { s.onAudio(g, pcm) })
		},
	}

	go func() {
		st, err := s.deps.Dialer.Dial(context.Background(), scfg, h)
		s.post(func() { s.onDialed(g, st, err) })
	}()
}

func (s *Service) onDialed(g uint64, st stream.Stream, err error) {
	if g != s.gen || s.status != StatusConnecting {
		if st != nil {
			st.Close()
		}
		return
	}
	if err != nil {
		if core.IsTransient(err) {
			s.log.Warn("dial failed, will retry", zap.Error(err))
			s.scheduleReconnect()
			return
		}
		s.log.Error("dial failed", zap.Error(err))
		s.setStatus(StatusError)
		s.emit(ErrorEvent{Err: err})
		return
	}
	s.strm = st
	// The read loop may have seen setupComplete before the dial result
	// landed here.
	if s.pendingOpen == g {
		s.pendingOpen = 0
		s.setStatus(StatusConnected)
		s.startPumps()
	}
}

func (s *Service) onOpen(g uint64) {
	if g != s.gen {
		return
	}
	if s.strm == nil {
		s.pendingOpen = g
		return
	}
	s.setStatus(StatusConnected)
	s.startPumps()
}

func (s *Service) startPumps() {
	st := s.strm
	s.audioPump = newAudioPump(s.audioSrc, st.SendAudioFrame, s.log)
	s.audioPump.onLevel = func(level float64) { s.emit(InputLevelEvent{Level: level}) }
	s.audioPump.onEOF = func() {
		s.post(func() { s.onCaptureGone() })
	}
	gated := s.cfg.Mode == ModeAssistant && s.cfg.Input == InputMicrophone
	if gated {
		s.audioPump.gate = NewFrameGate(s.cfg.EnergyThreshold, s.cfg.HangoverFrames)
		s.audioPump.useGate = true
		s.audioPump.hold = func() bool {
			return s.uplinkMuted.Load() || s.scheduler.Busy()
		}
	} else {
		s.audioPump.hold = func() bool { return s.uplinkMuted.Load() }
	}
	s.audioPump.start()

	if s.videoSrc != nil {
		s.videoPump = newVideoPump(s.videoSrc, st.SendVideoFrame, s.cfg.VideoInterval, s.log)
		s.videoPump.setActive(s.videoActive)
		s.videoPump.start()
	}
}

func (s *Service) stopPumps() {
	if s.audioPump != nil {
		s.audioPump.stop()
		s.audioPump = nil
	}
	if s.videoPump != nil {
		s.videoPump.stop()
		s.videoPump = nil
	}
}

// closeSources releases the capture devices. Sources survive stream
// restarts and reconnects; only disconnect and device failure end them.
func (s *Service) closeSources() {
	if s.audioSrc != nil {
		s.audioSrc.Close()
		s.audioSrc = nil
	}
	if s.videoSrc != nil {
		s.videoSrc.Close()
		s.videoSrc = nil
	}
}

func (s *Service) onCaptureGone() {
	if s.status != StatusConnected {
		return
	}
	err := core.NewDeviceError("audio source ended")
	s.log.Error("capture source gone", zap.Error(err))
	s.closeStream()
	s.closeSources()
	s.setStatus(StatusError)
	s.emit(ErrorEvent{Err: err})
}

func (s *Service) onStreamClosed(g uint64, err error) {
	if g != s.gen {
		return
	}
	s.stopPumps()
	s.strm = nil
	if s.closing {
		return
	}
	s.pool.ForceCloseOpen()
	if err != nil {
		s.log.Warn("stream closed", zap.Error(err))
	} else {
		s.log.Info("stream closed by remote")
	}
	s.setStatus(StatusConnecting)
	s.scheduleReconnect()
}

func (s *Service) closeStream() {
	s.gen++
	s.stopPumps()
	if s.strm != nil {
		s.strm.Close()
		s.strm = nil
	}
}

func (s *Service) disconnect() {
	s.closing = true
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	s.closeStream()
	s.closeSources()
	s.teardownMode()
	s.pool.ForceCloseOpen()
	if err := s.scheduler.Interrupt(); err != nil {
		s.log.Debug("playback flush failed", zap.Error(err))
	}
	s.setStatus(StatusDisconnected)
}

// scheduleReconnect arms the single retry timer. A pending timer absorbs
// further scheduling, so a burst of failures produces one attempt.
func (s *Service) scheduleReconnect() {
	if s.reconnectTimer != nil || s.offline {
		return
	}
	delay := s.cfg.ReconnectDelay
	if delay <= 0 {
		delay = time.Second
	}
	s.reconnectTimer = time.AfterFunc(delay, func() {
		s.post(func() {
			s.reconnectTimer = nil
			if s.status == StatusConnecting {
				s.dial()
			}
		})
	})
}

func (s *Service) setOnline(online bool) {
	if s.offline == !online {
		return
	}
	s.offline = !online
	if !online {
		s.log.Info("network offline")
		if s.status == StatusConnected {
			s.closeStream()
			s.pool.ForceCloseOpen()
			s.setStatus(StatusConnecting)
		}
		if s.reconnectTimer != nil {
			s.reconnectTimer.Stop()
			s.reconnectTimer = nil
		}
		return
	}
	s.log.Info("network online")
	if s.status == StatusConnecting && s.reconnectTimer == nil {
		s.dial()
	}
}

func (s *Service) reconfigure(cfg SessionConfig) {
	s.cfg = cfg
	if s.status != StatusConnected {
		return
	}
	s.pool.Clear()
	s.history.Clear()
	s.history.InjectLine(transcript.SpeakerAgent, reconfigureNotice(cfg.Mode))
	s.closeStream()
	s.setupMode()
	s.setStatus(StatusConnecting)
	s.dial()
}

// ---- inbound routing -------------------------------------------------------

func (s *Service) onTranscript(g uint64, speaker stream.Speaker, text string) {
	if g != s.gen || text == "" {
		return
	}
	// Either speaker's fragments count as activity for the sleep countdown.
	if s.wake != nil {
		s.wake.Touch()
	}
	if s.cfg.Mode == ModeTranslator {
		if speaker == stream.SpeakerUser {
			s.pool.AppendSource(text)
		} else {
			s.pool.AppendTarget(text)
		}
		return
	}

	if speaker == stream.SpeakerUser && s.wake != nil {
		if woke := s.wake.Observe(text); woke {
			s.history.InjectLine(transcript.SpeakerAgent, wakeAck)
		}
	}
	if speaker == stream.SpeakerUser {
		s.history.Append(transcript.SpeakerUser, text)
	} else {
		s.history.Append(transcript.SpeakerAgent, text)
	}
}

func (s *Service) onToolCall(g uint64, req stream.ToolCallRequest) {
	if g != s.gen || s.dispatcher == nil {
		return
	}
	s.dispatcher.Dispatch(req)
}

func (s *Service) onInterrupted(g uint64) {
	if g != s.gen {
		return
	}
	s.log.Debug("generation interrupted by user speech")
	if err := s.scheduler.Interrupt(); err != nil {
		s.log.Debug("playback flush failed", zap.Error(err))
	}
}

func (s *Service) onAudio(g uint64, pcm []byte) {
	if g != s.gen {
		return
	}
	if s.wake != nil {
		s.wake.Touch()
	}
	if err := s.scheduler.Enqueue(pcm); err != nil {
		s.log.Warn("playback write failed", zap.Error(err))
	}
}
