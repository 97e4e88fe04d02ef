package transcript

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RefineState tracks an item's position in the refinement pipeline.
type RefineState int

const (
	// RefinePending marks an item not yet picked up for refinement. Only
	// pending items accept streamed target-side text.
	RefinePending RefineState = iota
	// RefineInFlight marks an item claimed by a refinement worker.
	RefineInFlight
	// RefineDone marks an item whose target text is final.
	RefineDone
)

func (s RefineState) String() string {
	switch s {
	case RefinePending:
		return "pending"
	case RefineInFlight:
		return "in_flight"
	case RefineDone:
		return "done"
	default:
		return "unknown"
	}
}

// Item is one utterance in the dual-track translation pool: the source side
// accumulates what the user said, the target side accumulates the spoken
// translation until cloud refinement replaces it.
type Item struct {
	ID             uuid.UUID
	SourceText     string
	TargetText     string
	SourceComplete bool
	TargetComplete bool
	Refinement     RefineState
	CreatedAt      time.Time
}

// Pool maintains the translator-mode utterance items. At most one item has an
// open source side at any time; target-side text only ever lands on existing
// items.
type Pool struct {
	mu        sync.Mutex
	items     []*Item
	idleClose time.Duration
	idleTimer *time.Timer
	now       func() time.Time
	onChange  func([]Item)
}

// NewPool creates a pool that force-closes an open source item after
// idleClose without new source text. onChange, when non-nil, fires with a
// snapshot after every mutation.
func NewPool(idleClose time.Duration, onChange func([]Item)) *Pool {
	return &Pool{
		idleClose: idleClose,
		now:       time.Now,
		onChange:  onChange,
	}
}

// AppendSource folds a streamed source-language fragment into the pool. The
// fragment lands on the open item if one exists, otherwise a new item opens.
// Terminal punctuation closes the source side; each fragment re-arms the idle
// close timer.
func (p *Pool) AppendSource(text string) {
	if text == "" {
		return
	}
	p.mu.Lock()
	item := p.openSourceLocked()
	if item == nil {
		item = &Item{ID: uuid.New(), CreatedAt: p.now()}
		p.items = append(p.items, item)
	}
	item.SourceText += text
	if endsTerminal(item.SourceText) {
		item.SourceComplete = true
	}
	p.rearmIdleLocked()
	snapshot := p.snapshotLocked()
	p.mu.Unlock()
	p.notify(snapshot)
}

// AppendTarget folds a streamed target-language fragment into the pool. It
// lands on the first item still awaiting target text, falling back to the
// newest item. Items already claimed by refinement discard further streamed
// text; an empty pool discards the fragment entirely.
func (p *Pool) AppendTarget(text string) {
	if text == "" {
		return
	}
	p.mu.Lock()
	var item *Item
	for _, it := range p.items {
		if !it.TargetComplete {
			item = it
			break
		}
	}
	if item == nil && len(p.items) > 0 {
		item = p.items[len(p.items)-1]
	}
	if item == nil || item.Refinement != RefinePending {
		p.mu.Unlock()
		return
	}
	item.TargetText += text
	snapshot := p.snapshotLocked()
	p.mu.Unlock()
	p.notify(snapshot)
}

// ForceCloseOpen closes the source side of any open item. Called by the idle
// timer and on disconnect.
func (p *Pool) ForceCloseOpen() {
	p.mu.Lock()
	changed := false
	for _, it := range p.items {
		if !it.SourceComplete {
			it.SourceComplete = true
			changed = true
		}
	}
	if p.idleTimer != nil {
		p.idleTimer.Stop()
		p.idleTimer = nil
	}
	if !changed {
		p.mu.Unlock()
		return
	}
	snapshot := p.snapshotLocked()
	p.mu.Unlock()
	p.notify(snapshot)
}

// ClaimNextRefinable atomically marks the oldest refinable item in-flight and
// returns a copy of it. An item is refinable once its source side is complete,
// it has not been claimed, and its source text is more than one character.
func (p *Pool) ClaimNextRefinable() (Item, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, it := range p.items {
		if it.SourceComplete && it.Refinement == RefinePending && len(strings.TrimSpace(it.SourceText)) > 1 {
			it.Refinement = RefineInFlight
			return *it, true
		}
	}
	return Item{}, false
}

// CompleteRefinement installs the refined translation on a claimed item. The
// target side becomes complete here and only here. Returns false if the item
// is gone or was never claimed.
func (p *Pool) CompleteRefinement(id uuid.UUID, target string) bool {
	p.mu.Lock()
	var item *Item
	for _, it := range p.items {
		if it.ID == id {
			item = it
			break
		}
	}
	if item == nil || item.Refinement != RefineInFlight {
		p.mu.Unlock()
		return false
	}
	item.TargetText = strings.TrimSpace(target)
	item.TargetComplete = true
	item.Refinement = RefineDone
	snapshot := p.snapshotLocked()
	p.mu.Unlock()
	p.notify(snapshot)
	return true
}

// Items returns a snapshot of the pool in creation order.
func (p *Pool) Items() []Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Clear empties the pool and disarms the idle timer.
func (p *Pool) Clear() {
	p.mu.Lock()
	p.items = nil
	if p.idleTimer != nil {
		p.idleTimer.Stop()
		p.idleTimer = nil
	}
	snapshot := p.snapshotLocked()
	p.mu.Unlock()
	p.notify(snapshot)
}

// Stop disarms the idle timer. The pool remains readable.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.idleTimer != nil {
		p.idleTimer.Stop()
		p.idleTimer = nil
	}
}

func (p *Pool) openSourceLocked() *Item {
	for _, it := range p.items {
		if !it.SourceComplete {
			return it
		}
	}
	return nil
}

func (p *Pool) rearmIdleLocked() {
	if p.idleTimer != nil {
		p.idleTimer.Stop()
	}
	if p.idleClose <= 0 {
		return
	}
	p.idleTimer = time.AfterFunc(p.idleClose, p.ForceCloseOpen)
}

func (p *Pool) snapshotLocked() []Item {
	out := make([]Item, len(p.items))
	for i, it := range p.items {
		out[i] = *it
	}
	return out
}

func (p *Pool) notify(snapshot []Item) {
	if p.onChange != nil {
		p.onChange(snapshot)
	}
}
