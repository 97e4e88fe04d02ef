package transcript

import (
	"fmt"
	"io"
	"strings"
)

// RenderHistory writes the assistant history as a plain-text transcript.
func RenderHistory(w io.Writer, lines []Line) error {
	for _, line := range lines {
		tag := "[USER]"
		if line.Speaker == SpeakerAgent {
			tag = "[AGENT]"
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n", tag, strings.TrimSpace(line.Text)); err != nil {
			return err
		}
	}
	return nil
}

// RenderPool writes the translation pool as paired source/target blocks.
func RenderPool(w io.Writer, items []Item) error {
	for i, item := range items {
		if i > 0 {
			if _, err := fmt.Fprintln(w, "---"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "[SOURCE]: %s\n", strings.TrimSpace(item.SourceText)); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "[TARGET]: %s\n", strings.TrimSpace(item.TargetText)); err != nil {
			return err
		}
	}
	return nil
}
