package transcript

import (
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func newTestPool() *Pool {
	// Idle timer disabled; tests drive ForceCloseOpen directly.
	return NewPool(0, nil)
}

func TestAppendSourceOpensAndCloses(t *testing.T) {
	p := newTestPool()
	p.AppendSource("xin ")
	p.AppendSource("chào.")

	items := p.Items()
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].SourceText != "xin chào." {
		t.Errorf("source = %q", items[0].SourceText)
	}
	if !items[0].SourceComplete {
		t.Error("terminal punctuation should close the source side")
	}

	// Next fragment opens a fresh item.
	p.AppendSource("tạm biệt")
	items = p.Items()
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[1].SourceComplete {
		t.Error("new item should be open")
	}
}

func TestAppendTargetNeverCreatesItems(t *testing.T) {
	p := newTestPool()
	p.AppendTarget("hello")
	if len(p.Items()) != 0 {
		t.Fatal("target fragment on empty pool must be discarded")
	}

	p.AppendSource("xin chào.")
	p.AppendTarget("hel")
	p.AppendTarget("lo.")
	items := p.Items()
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].TargetText != "hello." {
		t.Errorf("target = %q", items[0].TargetText)
	}
	if items[0].TargetComplete {
		t.Error("streamed target text must not complete the target side")
	}
}

func TestTargetDiscardedOnceClaimed(t *testing.T) {
	p := newTestPool()
	p.AppendSource("xin chào.")
	p.AppendTarget("hi")

	if _, ok := p.ClaimNextRefinable(); !ok {
		t.Fatal("expected a refinable item")
	}
	p.AppendTarget(" there")
	if got := p.Items()[0].TargetText; got != "hi" {
		t.Errorf("claimed item accepted streamed text: %q", got)
	}
}

func TestClaimSkipsShortAndOpenItems(t *testing.T) {
	p := newTestPool()
	p.AppendSource("a.")
	if _, ok := p.ClaimNextRefinable(); ok {
		t.Error("single-character source should not be refinable")
	}

	p.AppendSource("still talking")
	if _, ok := p.ClaimNextRefinable(); ok {
		t.Error("open source side should not be refinable")
	}
	p.ForceCloseOpen()
	item, ok := p.ClaimNextRefinable()
	if !ok {
		t.Fatal("closed item should be refinable")
	}
	if item.SourceText != "still talking" {
		t.Errorf("claimed = %q", item.SourceText)
	}
	// A claim is exclusive.
	if _, ok := p.ClaimNextRefinable(); ok {
		t.Error("item claimed twice")
	}
}

func TestCompleteRefinement(t *testing.T) {
	p := newTestPool()
	p.AppendSource("xin chào các bạn.")
	p.AppendTarget("hello fr")
	item, ok := p.ClaimNextRefinable()
	if !ok {
		t.Fatal("expected claim")
	}

	if !p.CompleteRefinement(item.ID, "  hello everyone  ") {
		t.Fatal("CompleteRefinement returned false")
	}
	got := p.Items()[0]
	if got.TargetText != "hello everyone" {
		t.Errorf("target = %q", got.TargetText)
	}
	if !got.TargetComplete || got.Refinement != RefineDone {
		t.Errorf("state = complete:%v refinement:%v", got.TargetComplete, got.Refinement)
	}

	// Completing twice, or completing an unclaimed item, is a no-op.
	if p.CompleteRefinement(item.ID, "again") {
		t.Error("double completion accepted")
	}
}

func TestIdleTimerClosesOpenItem(t *testing.T) {
	p := NewPool(20*time.Millisecond, nil)
	defer p.Stop()
	p.AppendSource("trailing off")

	time.Sleep(80 * time.Millisecond)
	items := p.Items()
	if len(items) != 1 || !items[0].SourceComplete {
		t.Fatalf("idle timer did not close the item: %+v", items)
	}
}

func TestClearEmptiesPool(t *testing.T) {
	p := newTestPool()
	p.AppendSource("one.")
	p.AppendSource("two.")
	p.Clear()
	if len(p.Items()) != 0 {
		t.Error("pool not empty after Clear")
	}
}

func TestRenderPool(t *testing.T) {
	p := newTestPool()
	p.AppendSource("xin chào.")
	p.AppendTarget("hello.")
	p.AppendSource("tạm biệt.")

	var sb strings.Builder
	if err := RenderPool(&sb, p.Items()); err != nil {
		t.Fatalf("RenderPool: %v", err)
	}
	want := "[SOURCE]: xin chào.\n[TARGET]: hello.\n---\n[SOURCE]: tạm biệt.\n[TARGET]: \n"
	if sb.String() != want {
		t.Errorf("rendered = %q, want %q", sb.String(), want)
	}
}

// Structural invariants under arbitrary interleavings of source and target
// fragments, claims, completions, and forced closes.
func TestPoolInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		p := newTestPool()
		fragment := rapid.SampledFrom([]string{"a", "bb ", "ch.", "xin chào", "rồi.", " "})

		rt.Repeat(map[string]func(*rapid.T){
			"source": func(rt *rapid.T) {
				p.AppendSource(fragment.Draw(rt, "src"))
			},
			"target": func(rt *rapid.T) {
				before := len(p.Items())
				p.AppendTarget(fragment.Draw(rt, "tgt"))
				if len(p.Items()) != before {
					rt.Fatal("target fragment changed item count")
				}
			},
			"claim": func(rt *rapid.T) {
				if item, ok := p.ClaimNextRefinable(); ok {
					if !item.SourceComplete {
						rt.Fatal("claimed an open item")
					}
					if len(strings.TrimSpace(item.SourceText)) <= 1 {
						rt.Fatal("claimed a degenerate item")
					}
				}
			},
			"complete": func(rt *rapid.T) {
				for _, it := range p.Items() {
					if it.Refinement == RefineInFlight {
						p.CompleteRefinement(it.ID, "refined")
						break
					}
				}
			},
			"close": func(rt *rapid.T) {
				p.ForceCloseOpen()
			},
			"": func(rt *rapid.T) {
				open := 0
				for _, it := range p.Items() {
					if !it.SourceComplete {
						open++
					}
					if it.TargetComplete && it.Refinement != RefineDone {
						rt.Fatal("target completed outside refinement")
					}
				}
				if open > 1 {
					rt.Fatalf("open source items = %d", open)
				}
			},
		})
	})
}
