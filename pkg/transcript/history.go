// Package transcript holds the conversation records maintained by a live
// session: the assistant-mode rolling history and the translator-mode
// dual-track pool with its asynchronous refinement pipeline.
package transcript

import (
	"strings"
	"sync"
)

// Speaker tags a history line.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// Line is one coalesced utterance in the assistant history.
type Line struct {
	Speaker Speaker
	Text    string
}

// History accumulates assistant-mode transcript fragments into lines. A
// fragment coalesces into the previous line when the speaker matches and the
// line is not yet terminally punctuated; otherwise it opens a new line.
type History struct {
	mu       sync.Mutex
	lines    []Line
	onChange func([]Line)
}

// NewHistory creates an empty history. onChange, when non-nil, fires with a
// snapshot after every mutation.
func NewHistory(onChange func([]Line)) *History {
	return &History{onChange: onChange}
}

// Append folds one streamed fragment into the history.
func (h *History) Append(speaker Speaker, text string) {
	if text == "" {
		return
	}
	h.mu.Lock()
	if n := len(h.lines); n > 0 && h.lines[n-1].Speaker == speaker && !endsTerminal(h.lines[n-1].Text) {
		h.lines[n-1].Text += text
	} else {
		h.lines = append(h.lines, Line{Speaker: speaker, Text: text})
	}
	snapshot := h.snapshotLocked()
	h.mu.Unlock()
	h.notify(snapshot)
}

// InjectLine adds a complete synthetic line, bypassing coalescing. Used for
// engine notices such as the wake acknowledgement.
func (h *History) InjectLine(speaker Speaker, text string) {
	h.mu.Lock()
	h.lines = append(h.lines, Line{Speaker: speaker, Text: text})
	snapshot := h.snapshotLocked()
	h.mu.Unlock()
	h.notify(snapshot)
}

// Lines returns a snapshot of the history.
func (h *History) Lines() []Line {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

// Clear empties the history.
func (h *History) Clear() {
	h.mu.Lock()
	h.lines = nil
	snapshot := h.snapshotLocked()
	h.mu.Unlock()
	h.notify(snapshot)
}

func (h *History) snapshotLocked() []Line {
	out := make([]Line, len(h.lines))
	copy(out, h.lines)
	return out
}

func (h *History) notify(snapshot []Line) {
	if h.onChange != nil {
		h.onChange(snapshot)
	}
}

// endsTerminal reports whether text ends with sentence-final punctuation,
// covering both Latin and CJK marks.
func endsTerminal(text string) bool {
	trimmed := strings.TrimRight(text, " \t\n")
	if trimmed == "" {
		return false
	}
	runes := []rune(trimmed)
	switch runes[len(runes)-1] {
	case '.', '?', '!', '。', '？', '！':
		return true
	}
	return false
}
