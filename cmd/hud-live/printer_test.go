package main

import (
	"strings"
	"testing"

	"github.com/kitts-ai/hud-live/pkg/live"
	"github.com/kitts-ai/hud-live/pkg/tools"
	"github.com/kitts-ai/hud-live/pkg/transcript"
)

func TestPrinterTranscriptDedupes(t *testing.T) {
	var sb strings.Builder
	p := newPrinter(&sb, live.ModeAssistant)

	lines := []transcript.Line{{Speaker: transcript.SpeakerUser, Text: "hello"}}
	p.handle(live.TranscriptUpdatedEvent{Lines: lines})
	p.handle(live.TranscriptUpdatedEvent{Lines: lines})
	lines = append(lines, transcript.Line{Speaker: transcript.SpeakerAgent, Text: "hi."})
	p.handle(live.TranscriptUpdatedEvent{Lines: lines})

	want := "[USER] hello\n[AGENT] hi.\n"
	if sb.String() != want {
		t.Errorf("output = %q, want %q", sb.String(), want)
	}
}

func TestPrinterPoolMarksRefined(t *testing.T) {
	var sb strings.Builder
	p := newPrinter(&sb, live.ModeTranslator)

	p.handle(live.PoolUpdatedEvent{Items: []transcript.Item{
		{SourceText: "xin chào.", TargetText: "hello"},
	}})
	p.handle(live.PoolUpdatedEvent{Items: []transcript.Item{
		{SourceText: "xin chào.", TargetText: "hello there", TargetComplete: true},
	}})

	out := sb.String()
	if !strings.Contains(out, "~ xin chào. => hello\n") {
		t.Errorf("streaming item missing: %q", out)
	}
	if !strings.Contains(out, "* xin chào. => hello there\n") {
		t.Errorf("refined item missing: %q", out)
	}
}

func TestPrinterWidgetsAndStatus(t *testing.T) {
	var sb strings.Builder
	p := newPrinter(&sb, live.ModeAssistant)

	p.handle(live.StatusChangedEvent{To: live.StatusConnected})
	p.handle(live.WidgetEvent{Widget: tools.StockWidget{Symbol: "BTC", Price: "67k", Change: "+2%", Trend: "up"}})

	out := sb.String()
	if !strings.Contains(out, "-- connected") {
		t.Errorf("status missing: %q", out)
	}
	if !strings.Contains(out, ">> stock: BTC 67k +2% (up)") {
		t.Errorf("widget missing: %q", out)
	}
}
