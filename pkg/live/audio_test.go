package live

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func sinePCM16LE(samples int, amplitude float64) []byte {
	buf := make([]byte, samples*BytesPerSample)
	for i := 0; i < samples; i++ {
		v := amplitude * math.Sin(2*math.Pi*440*float64(i)/float64(InputSampleRate))
		binary.LittleEndian.PutUint16(buf[i*BytesPerSample:], uint16(int16(v*32767)))
	}
	return buf
}

func TestRMSEnergy(t *testing.T) {
	if got := RMSEnergy(make([]byte, FrameBytes)); got != 0 {
		t.Errorf("silence RMS = %v, want 0", got)
	}
	if got := RMSEnergy(nil); got != 0 {
		t.Errorf("empty RMS = %v, want 0", got)
	}

	// A full-scale sine has RMS amplitude/sqrt(2).
	got := RMSEnergy(sinePCM16LE(FrameSamples, 0.5))
	want := 0.5 / math.Sqrt2
	if math.Abs(got-want) > 0.01 {
		t.Errorf("sine RMS = %v, want ~%v", got, want)
	}
}

func TestPCMDuration(t *testing.T) {
	// One second of 24kHz mono PCM16LE.
	if got := PCMDuration(OutputSampleRate * BytesPerSample); got != time.Second {
		t.Errorf("duration = %v, want 1s", got)
	}
	if got := PCMDuration(0); got != 0 {
		t.Errorf("duration = %v, want 0", got)
	}
}

func TestFrameDuration(t *testing.T) {
	if FrameDuration != 64*time.Millisecond {
		t.Errorf("frame duration = %v, want 64ms", FrameDuration)
	}
}
