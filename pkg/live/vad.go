package live

// Noise gate defaults. A frame passes when its RMS energy clears the
// threshold; after speech, a few trailing silent frames still pass so word
// endings are not clipped.
const (
	DefaultEnergyThreshold = 0.01
	DefaultHangoverFrames  = 4
)

// FrameGate is the energy-based voice activity gate applied to microphone
// capture. Not safe for concurrent use; the capture loop owns it.
type FrameGate struct {
	threshold    float64
	hangover     int
	silentFrames int
}

// NewFrameGate creates a gate. Non-positive arguments select the defaults.
func NewFrameGate(threshold float64, hangover int) *FrameGate {
	if threshold <= 0 {
		threshold = DefaultEnergyThreshold
	}
	if hangover <= 0 {
		hangover = DefaultHangoverFrames
	}
	return &FrameGate{
		threshold:    threshold,
		hangover:     hangover,
		silentFrames: hangover,
	}
}

// Admit reports whether a frame with the given RMS energy should be sent.
func (g *FrameGate) Admit(rms float64) bool {
	if rms > g.threshold {
		g.silentFrames = 0
		return true
	}
	g.silentFrames++
	return g.silentFrames <= g.hangover
}

// Reset returns the gate to its initial silent state.
func (g *FrameGate) Reset() {
	g.silentFrames = g.hangover
}
