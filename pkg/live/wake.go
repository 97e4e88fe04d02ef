package live

import (
	"strings"
	"sync"
	"time"
)

// WakeGate tracks assistant attention. Under WakeAlwaysEngaged it is
// permanently awake. Under WakeWordGated it starts awake and dozes off after
// a period with no activity, checked by a once-a-second ticker; asleep, only
// a keyword in the user transcript wakes it again.
type WakeGate struct {
	policy     WakePolicy
	keywords   []string
	sleepAfter time.Duration
	onChange   func(awake bool)
	now        func() time.Time

	mu         sync.Mutex
	awake      bool
	lastActive time.Time
	ticker     *time.Ticker
	done       chan struct{}
}

// NewWakeGate creates a gate. onChange, when non-nil, fires on every
// transition, outside the gate's lock.
func NewWakeGate(policy WakePolicy, keywords []string, sleepAfter time.Duration, onChange func(bool)) *WakeGate {
	g := &WakeGate{
		policy:     policy,
		keywords:   normalizeKeywords(keywords),
		sleepAfter: sleepAfter,
		onChange:   onChange,
		now:        time.Now,
		awake:      true,
	}
	g.lastActive = g.now()
	return g
}

// Start launches the sleep ticker. No-op for an always-engaged gate.
func (g *WakeGate) Start() {
	if g.policy != WakeWordGated {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ticker != nil {
		return
	}
	g.ticker = time.NewTicker(time.Second)
	g.done = make(chan struct{})
	go g.loop(g.ticker, g.done)
}

// Stop halts the sleep ticker.
func (g *WakeGate) Stop() {
	g.mu.Lock()
	ticker, done := g.ticker, g.done
	g.ticker, g.done = nil, nil
	g.mu.Unlock()
	if ticker != nil {
		ticker.Stop()
		close(done)
	}
}

// Awake reports the current attention state.
func (g *WakeGate) Awake() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.awake
}

// Observe scans one user transcript fragment. It returns true when the
// fragment wakes a sleeping gate; the caller injects the acknowledgement.
// Any fragment, waking or not, counts as activity while awake.
func (g *WakeGate) Observe(text string) bool {
	if g.policy != WakeWordGated {
		return false
	}
	lower := strings.ToLower(text)
	g.mu.Lock()
	if g.awake {
		g.lastActive = g.now()
		g.mu.Unlock()
		return false
	}
	for _, kw := range g.keywords {
		if strings.Contains(lower, kw) {
			g.awake = true
			g.lastActive = g.now()
			g.mu.Unlock()
			g.fire(true)
			return true
		}
	}
	g.mu.Unlock()
	return false
}

// Touch records activity without transcript text, keeping an awake gate from
// dozing off.
func (g *WakeGate) Touch() {
	g.mu.Lock()
	g.lastActive = g.now()
	g.mu.Unlock()
}

func (g *WakeGate) loop(ticker *time.Ticker, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			g.checkSleep()
		}
	}
}

func (g *WakeGate) checkSleep() {
	g.mu.Lock()
	if !g.awake || g.now().Sub(g.lastActive) < g.sleepAfter {
		g.mu.Unlock()
		return
	}
	g.awake = false
	g.mu.Unlock()
	g.fire(false)
}

func (g *WakeGate) fire(awake bool) {
	if g.onChange != nil {
		g.onChange(awake)
	}
}

func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
