package live

import (
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AudioSource produces uplink capture frames. ReadFrame blocks until it can
// fill buf (FrameBytes long) and returns io.EOF when the device is gone.
type AudioSource interface {
	ReadFrame(buf []byte) error
	Close() error
}

// VideoSource produces downscaled JPEG snapshots on demand.
type VideoSource interface {
	SampleJPEG() ([]byte, error)
	Close() error
}

// audioPump moves frames from the source into the stream, applying level
// metering, half-duplex hold and the noise gate. Sends are fire-and-forget:
// a failed send is logged and counted, never retried.
type audioPump struct {
	src  AudioSource
	send func(pcm []byte) error

	gate    *FrameGate
	useGate bool
	// hold reports whether uplink should pause, used for assistant-mode turn
	// taking while playback is busy.
	hold    func() bool
	onLevel func(float64)
	onEOF   func()
	logger  *zap.Logger

	stopOnce     sync.Once
	done         chan struct{}
	wg           sync.WaitGroup
	droppedSends int64
}

func newAudioPump(src AudioSource, send func([]byte) error, logger *zap.Logger) *audioPump {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &audioPump{
		src:    src,
		send:   send,
		logger: logger,
		done:   make(chan struct{}),
	}
}

func (p *audioPump) start() {
	p.wg.Add(1)
	go p.loop()
}

// stop signals the loop to exit. It does not close the source: the source
// outlives individual streams and is torn down by its owner. A loop blocked
// in ReadFrame exits on the next frame or when the source is closed.
func (p *audioPump) stop() {
	p.stopOnce.Do(func() { close(p.done) })
}

func (p *audioPump) loop() {
	defer p.wg.Done()
	buf := make([]byte, FrameBytes)
	for {
		select {
		case <-p.done:
			return
		default:
		}

		if err := p.src.ReadFrame(buf); err != nil {
			select {
			case <-p.done:
			default:
				if !errors.Is(err, io.EOF) {
					p.logger.Warn("capture read failed", zap.Error(err))
				}
				if p.onEOF != nil {
					p.onEOF()
				}
			}
			return
		}

		rms := RMSEnergy(buf)
		if p.onLevel != nil {
			p.onLevel(rms)
		}
		if p.hold != nil && p.hold() {
			continue
		}
		if p.useGate && !p.gate.Admit(rms) {
			continue
		}
		if err := p.send(append([]byte(nil), buf...)); err != nil {
			p.droppedSends++
			p.logger.Debug("audio frame dropped", zap.Error(err))
		}
	}
}

// videoPump samples JPEG frames on a fixed interval and streams them. Frame
// errors are ignored; video is best-effort by contract.
type videoPump struct {
	src      VideoSource
	send     func(jpeg []byte) error
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	active bool

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

func newVideoPump(src VideoSource, send func([]byte) error, interval time.Duration, logger *zap.Logger) *videoPump {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &videoPump{
		src:      src,
		send:     send,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

func (p *videoPump) start() {
	p.wg.Add(1)
	go p.loop()
}

func (p *videoPump) stop() {
	p.stopOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}

func (p *videoPump) setActive(active bool) {
	p.mu.Lock()
	p.active = active
	p.mu.Unlock()
}

func (p *videoPump) loop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.mu.Lock()
			active := p.active
			p.mu.Unlock()
			if !active {
				continue
			}
			frame, err := p.src.SampleJPEG()
			if err != nil || len(frame) == 0 {
				continue
			}
			if err := p.send(frame); err != nil {
				p.logger.Debug("video frame dropped", zap.Error(err))
			}
		}
	}
}
