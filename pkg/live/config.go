package live

import (
	"time"

	"github.com/kitts-ai/hud-live/pkg/config"
)

// Mode selects the session behavior.
type Mode string

const (
	// ModeAssistant runs the tool-calling HUD assistant.
	ModeAssistant Mode = "assistant"
	// ModeTranslator runs the strict interpreter with the dual-track pool.
	ModeTranslator Mode = "translator"
)

// InputKind selects the capture source semantics.
type InputKind string

const (
	// InputMicrophone applies the noise gate and half-duplex turn taking.
	InputMicrophone InputKind = "microphone"
	// InputSystemAudio streams everything; gating would eat the far end.
	InputSystemAudio InputKind = "system_audio"
)

// WakePolicy selects how assistant-mode attention is managed.
type WakePolicy string

const (
	// WakeAlwaysEngaged keeps the assistant listening and speaking freely.
	WakeAlwaysEngaged WakePolicy = "always_engaged"
	// WakeWordGated dozes the assistant off when idle; only a wake keyword
	// brings it back.
	WakeWordGated WakePolicy = "wake_word_gated"
)

// DefaultWakeKeywords are the spoken phrases that wake a gated assistant.
// Transcription renders the Vietnamese pet name inconsistently, hence the
// spelling variants.
var DefaultWakeKeywords = []string{
	"hey kitts", "hey kids", "hey mỡ", "mỡ ơi", "hello kitts", "hi kitts",
}

// SessionConfig carries the per-session knobs of a Service.
type SessionConfig struct {
	Mode  Mode
	Input InputKind

	Model string
	Voice string

	// SourceLang and TargetLang apply in translator mode. SourceLang may be
	// translate.AutoDetect.
	SourceLang string
	TargetLang string

	// WakePolicy and FunPersona apply in assistant mode.
	WakePolicy WakePolicy
	FunPersona bool

	// CloudRefinement enables the asynchronous refinement pipeline.
	CloudRefinement bool

	EnergyThreshold float64
	HangoverFrames  int
	WakeKeywords    []string

	ReconnectDelay time.Duration
	PoolIdleClose  time.Duration
	SleepAfter     time.Duration
	VideoInterval  time.Duration
}

// DefaultSessionConfig returns an assistant-mode configuration derived from
// the process config.
func DefaultSessionConfig(pc config.Config) SessionConfig {
	return SessionConfig{
		Mode:            ModeAssistant,
		Input:           InputMicrophone,
		Model:           pc.LiveModel,
		Voice:           pc.Voice,
		SourceLang:      "Auto",
		TargetLang:      "English",
		WakePolicy:      WakeAlwaysEngaged,
		CloudRefinement: true,
		EnergyThreshold: DefaultEnergyThreshold,
		HangoverFrames:  DefaultHangoverFrames,
		WakeKeywords:    DefaultWakeKeywords,
		ReconnectDelay:  pc.ReconnectDelay,
		PoolIdleClose:   pc.PoolIdleClose,
		SleepAfter:      pc.SleepAfter,
		VideoInterval:   pc.VideoInterval,
	}
}
