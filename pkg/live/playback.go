package live

import (
	"sync"
	"time"
)

// Clock reports elapsed monotonic time. The scheduler never sleeps on it;
// tests substitute a manual clock.
type Clock interface {
	Now() time.Duration
}

type monotonicClock struct {
	start time.Time
}

func (c monotonicClock) Now() time.Duration { return time.Since(c.start) }

// NewMonotonicClock returns a clock measuring elapsed time from now.
func NewMonotonicClock() Clock { return monotonicClock{start: time.Now()} }

// Sink consumes scheduled playback audio. Write appends PCM16LE at the output
// rate; Reset drops anything buffered but not yet played.
type Sink interface {
	Write(pcm []byte) error
	Reset() error
}

// Scheduler serializes downlink audio into the sink and tracks the horizon up
// to which audio has been scheduled. Busy drives half-duplex turn taking;
// Interrupt implements barge-in.
type Scheduler struct {
	clock   Clock
	sink    Sink
	onLevel func(float64)

	mu        sync.Mutex
	muted     bool
	gated     bool
	nextStart time.Duration
}

// NewScheduler creates a scheduler. onLevel, when non-nil, receives the RMS
// level of every payload written to the sink.
func NewScheduler(clock Clock, sink Sink, onLevel func(float64)) *Scheduler {
	return &Scheduler{clock: clock, sink: sink, onLevel: onLevel}
}

// Enqueue schedules one downlink payload. Muted or gated output is dropped
// before it reaches the sink.
func (s *Scheduler) Enqueue(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	s.mu.Lock()
	if s.muted || s.gated {
		s.mu.Unlock()
		return nil
	}
	now := s.clock.Now()
	if s.nextStart < now {
		s.nextStart = now
	}
	s.nextStart += PCMDuration(len(pcm))
	s.mu.Unlock()

	if err := s.sink.Write(pcm); err != nil {
		return err
	}
	if s.onLevel != nil {
		s.onLevel(RMSEnergy(pcm))
	}
	return nil
}

// Busy reports whether scheduled audio extends past the current instant.
func (s *Scheduler) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart > s.clock.Now()
}

// NextStart returns the horizon up to which audio has been scheduled.
func (s *Scheduler) NextStart() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}

// Interrupt drops everything buffered and collapses the schedule. Called on
// barge-in.
func (s *Scheduler) Interrupt() error {
	s.mu.Lock()
	s.nextStart = 0
	s.mu.Unlock()
	return s.sink.Reset()
}

// SetMuted toggles the speaker mute. Muting collapses the schedule and
// flushes the sink so active audio stops immediately, the same way the sleep
// gate does.
func (s *Scheduler) SetMuted(muted bool) error {
	s.mu.Lock()
	wasMuted := s.muted
	s.muted = muted
	if muted {
		s.nextStart = 0
	}
	s.mu.Unlock()
	if muted && !wasMuted {
		return s.sink.Reset()
	}
	return nil
}

// SetOutputGate engages or releases the sleep gate. Engaging also flushes
// whatever is buffered so a dozing assistant goes quiet immediately.
func (s *Scheduler) SetOutputGate(gated bool) error {
	s.mu.Lock()
	wasGated := s.gated
	s.gated = gated
	if gated {
		s.nextStart = 0
	}
	s.mu.Unlock()
	if gated && !wasGated {
		return s.sink.Reset()
	}
	return nil
}
