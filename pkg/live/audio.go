// Package live implements the session engine: capture, gating, playback
// scheduling, wake handling and the connection state machine.
package live

import (
	"encoding/binary"
	"math"
	"time"
)

// Fixed audio shape of the duplex link. Uplink is 16kHz mono PCM16LE in
// 1024-sample frames; downlink is 24kHz mono PCM16LE.
const (
	InputSampleRate  = 16000
	OutputSampleRate = 24000
	FrameSamples     = 1024
	BytesPerSample   = 2
	FrameBytes       = FrameSamples * BytesPerSample
)

// FrameDuration is the wall-clock length of one uplink capture frame.
const FrameDuration = time.Second * FrameSamples / InputSampleRate

// PCMDuration returns the playback length of a downlink PCM16LE payload.
func PCMDuration(n int) time.Duration {
	samples := n / BytesPerSample
	return time.Duration(samples) * time.Second / OutputSampleRate
}

// RMSEnergy computes the normalized root-mean-square level of a PCM16LE
// buffer, in [0, 1]. Odd trailing bytes are ignored.
func RMSEnergy(pcm []byte) float64 {
	n := len(pcm) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*BytesPerSample:]))
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
