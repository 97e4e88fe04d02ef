package live

import (
	"fmt"
	"strings"
)

const assistantPersona = `You are Kitts, an advanced AR HUD assistant. REAL-TIME tools via Google Search available.
VISUAL CAPABILITIES: Use 'render_map_location', 'render_weather_widget', 'render_stock_card', 'render_info_card' when appropriate.`

const funPersona = `You are Kitts, a CHAOTIC GOOD, HILARIOUS and WITTY AR assistant. Be sarcastic and funny. Use visual tools often.`

const wakeProtocol = `WAKE WORD PROTOCOL: Name is "Kitts" or "Mỡ". If heard "Hey Kitts" or "Mỡ ơi", acknowledge enthusiastically.`

// wakeAck is injected into the history when a gated assistant wakes up.
const wakeAck = "👀 I am listening..."

// SystemInstruction assembles the session prompt for the configured mode.
func SystemInstruction(cfg SessionConfig) string {
	if cfg.Mode == ModeTranslator {
		source := cfg.SourceLang
		if source == "" || source == "Auto" {
			source = "any language"
		}
		return fmt.Sprintf(`SYSTEM MODE: STRICT_INTERPRETER.
SOURCE_LANGUAGE: %s.
TARGET_LANGUAGE: %s.

RULES:
1. LISTEN ONLY for %s.
2. IF input is %s -> TRANSLATE to %s IMMEDIATELY.
3. IF input is background noise, music, or NOT %s -> OUTPUT NOTHING. SILENCE.
4. DO NOT transcribe or translate English conversation if Source is not English.
5. KEEP OUTPUT CONCISE. No explanations.`,
			source, cfg.TargetLang, source, source, cfg.TargetLang, source)
	}

	persona := assistantPersona
	if cfg.FunPersona {
		persona = funPersona
	}
	if cfg.WakePolicy == WakeWordGated {
		return persona + "\n" + wakeProtocol
	}
	return persona
}

// reconfigureNotice is the synthetic history line injected on a mode switch.
func reconfigureNotice(mode Mode) string {
	return fmt.Sprintf("[SYSTEM: RECONFIGURING TO %s MODE...]", strings.ToUpper(string(mode)))
}
