package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults for the live engine. The live model and the refinement model are
// deliberately different: the native-audio model carries the conversation,
// while the text model produces the higher-quality asynchronous translation.
const (
	DefaultLiveModel   = "gemini-2.5-flash-native-audio-preview-09-2025"
	DefaultRefineModel = "gemini-2.5-flash"
	DefaultVoice       = "Fenrir"
)

// Config carries process-level configuration for the live engine.
type Config struct {
	// APIKey authenticates against the Gemini API. Read from GEMINI_API_KEY,
	// falling back to GOOGLE_API_KEY.
	APIKey string

	// LiveModel is the duplex streaming model.
	LiveModel string
	// RefineModel is the one-shot model used by the refinement pipeline.
	RefineModel string
	// Voice is the prebuilt voice identity for audio responses.
	Voice string

	// LiveEndpoint optionally overrides the duplex websocket endpoint.
	LiveEndpoint string

	// ReconnectDelay is the fixed backoff before an automatic reconnect.
	ReconnectDelay time.Duration
	// PoolIdleClose force-closes an open translation item after this much
	// user-speech silence.
	PoolIdleClose time.Duration
	// SleepAfter flips the wake gate asleep after this much transcript
	// inactivity (gated policy only).
	SleepAfter time.Duration
	// VideoInterval is the sampling period for downscaled video frames.
	VideoInterval time.Duration
}

// LoadFromEnv builds a Config from the process environment.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		APIKey:         firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY"),
		LiveModel:      envOr("HUD_LIVE_MODEL", DefaultLiveModel),
		RefineModel:    envOr("HUD_REFINE_MODEL", DefaultRefineModel),
		Voice:          envOr("HUD_VOICE", DefaultVoice),
		LiveEndpoint:   strings.TrimSpace(os.Getenv("HUD_LIVE_ENDPOINT")),
		ReconnectDelay: time.Second,
		PoolIdleClose:  1500 * time.Millisecond,
		SleepAfter:     30 * time.Second,
		VideoInterval:  2 * time.Second,
	}

	var err error
	if cfg.ReconnectDelay, err = envDuration("HUD_RECONNECT_DELAY_MS", cfg.ReconnectDelay); err != nil {
		return Config{}, err
	}
	if cfg.PoolIdleClose, err = envDuration("HUD_POOL_IDLE_CLOSE_MS", cfg.PoolIdleClose); err != nil {
		return Config{}, err
	}
	if cfg.SleepAfter, err = envDuration("HUD_SLEEP_AFTER_MS", cfg.SleepAfter); err != nil {
		return Config{}, err
	}
	if cfg.VideoInterval, err = envDuration("HUD_VIDEO_INTERVAL_MS", cfg.VideoInterval); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

// Validate checks the configuration for completeness.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("config: GEMINI_API_KEY (or GOOGLE_API_KEY) is required")
	}
	if strings.TrimSpace(c.LiveModel) == "" {
		return fmt.Errorf("config: live model must not be empty")
	}
	if strings.TrimSpace(c.RefineModel) == "" {
		return fmt.Errorf("config: refine model must not be empty")
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("config: reconnect delay must be > 0")
	}
	if c.PoolIdleClose <= 0 {
		return fmt.Errorf("config: pool idle close must be > 0")
	}
	if c.SleepAfter <= 0 {
		return fmt.Errorf("config: sleep-after must be > 0")
	}
	if c.VideoInterval <= 0 {
		return fmt.Errorf("config: video interval must be > 0")
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive integer (milliseconds), got %q", key, raw)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
