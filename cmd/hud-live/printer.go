package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/kitts-ai/hud-live/pkg/live"
	"github.com/kitts-ai/hud-live/pkg/tools"
	"github.com/kitts-ai/hud-live/pkg/transcript"
)

// printer renders session events as terminal lines. Transcript and pool
// events arrive as full snapshots; only the tail is reprinted.
type printer struct {
	w    io.Writer
	mode live.Mode

	lastLine string
	lastItem string
}

func newPrinter(w io.Writer, mode live.Mode) *printer {
	return &printer{w: w, mode: mode}
}

func (p *printer) handle(ev live.Event) {
	switch e := ev.(type) {
	case live.StatusChangedEvent:
		fmt.Fprintf(p.w, "-- %s\n", e.To)
	case live.WakeChangedEvent:
		if e.Awake {
			fmt.Fprintln(p.w, "-- awake")
		} else {
			fmt.Fprintln(p.w, "-- sleeping")
		}
	case live.TranscriptUpdatedEvent:
		p.printTranscriptTail(e.Lines)
	case live.PoolUpdatedEvent:
		p.printPoolTail(e.Items)
	case live.WidgetEvent:
		p.printWidget(e.Widget)
	case live.ErrorEvent:
		fmt.Fprintf(p.w, "!! %v\n", e.Err)
	}
}

func (p *printer) printTranscriptTail(lines []transcript.Line) {
	if len(lines) == 0 {
		return
	}
	last := lines[len(lines)-1]
	rendered := fmt.Sprintf("[%s] %s", strings.ToUpper(string(last.Speaker)), strings.TrimSpace(last.Text))
	if rendered == p.lastLine {
		return
	}
	p.lastLine = rendered
	fmt.Fprintln(p.w, rendered)
}

func (p *printer) printPoolTail(items []transcript.Item) {
	if len(items) == 0 {
		return
	}
	last := items[len(items)-1]
	marker := "~"
	if last.TargetComplete {
		marker = "*"
	}
	rendered := fmt.Sprintf("%s %s => %s", marker, strings.TrimSpace(last.SourceText), strings.TrimSpace(last.TargetText))
	if rendered == p.lastItem {
		return
	}
	p.lastItem = rendered
	fmt.Fprintln(p.w, rendered)
}

func (p *printer) printWidget(w tools.Widget) {
	switch v := w.(type) {
	case tools.WeatherWidget:
		fmt.Fprintf(p.w, ">> weather: %s %s (%s)\n", v.Location, v.Temperature, v.Condition)
	case tools.MapWidget:
		fmt.Fprintf(p.w, ">> map: %s (%s, %s) %s\n", v.Name, v.Lat, v.Lon, v.Description)
	case tools.StockWidget:
		fmt.Fprintf(p.w, ">> stock: %s %s %s (%s)\n", v.Symbol, v.Price, v.Change, v.Trend)
	case tools.InfoWidget:
		fmt.Fprintf(p.w, ">> info: %s: %s [%s]\n", v.Title, v.Fact, v.Category)
	}
}
