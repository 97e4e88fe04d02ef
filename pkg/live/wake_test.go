package live

import (
	"sync"
	"testing"
	"time"
)

func newGatedWake(onChange func(bool)) *WakeGate {
	return NewWakeGate(WakeWordGated, DefaultWakeKeywords, 30*time.Second, onChange)
}

// doze forces a gated gate to sleep by aging its activity clock. The clock
// swap happens under the gate's lock so a running ticker never races it.
func doze(g *WakeGate) {
	base := time.Now()
	g.mu.Lock()
	g.now = func() time.Time { return base.Add(time.Hour) }
	g.mu.Unlock()
	g.checkSleep()
	g.mu.Lock()
	g.now = time.Now
	g.mu.Unlock()
	g.Touch()
}

func TestWakeGateAlwaysEngaged(t *testing.T) {
	g := NewWakeGate(WakeAlwaysEngaged, DefaultWakeKeywords, 30*time.Second, nil)
	if !g.Awake() {
		t.Error("always-engaged gate asleep")
	}
	if g.Observe("hey kitts") {
		t.Error("always-engaged gate reported a wake transition")
	}
}

func TestWakeGateStartsAwake(t *testing.T) {
	g := newGatedWake(nil)
	if !g.Awake() {
		t.Error("gated policy should start awake and doze later")
	}
	// Fragments while awake are plain activity, never a wake transition.
	if g.Observe("hey kitts") {
		t.Error("keyword while awake reported a transition")
	}
}

func TestWakeGateKeywordWakes(t *testing.T) {
	var transitions []bool
	g := newGatedWake(func(awake bool) { transitions = append(transitions, awake) })
	doze(g)

	if g.Observe("just some chatter") {
		t.Error("non-keyword fragment woke the gate")
	}
	if !g.Observe("ok so... Hey Kitts what time is it") {
		t.Error("keyword fragment did not report a wake")
	}
	if !g.Awake() {
		t.Error("gate still asleep after keyword")
	}
	// Further keywords while awake are plain activity.
	if g.Observe("hey kitts again") {
		t.Error("keyword while awake reported a transition")
	}
	if len(transitions) != 2 || transitions[0] || !transitions[1] {
		t.Errorf("transitions = %v", transitions)
	}
}

func TestWakeGateVietnameseKeywords(t *testing.T) {
	g := newGatedWake(nil)
	doze(g)
	if !g.Observe("Mỡ ơi, trời hôm nay thế nào") {
		t.Error("Vietnamese wake phrase not recognized")
	}
}

func TestWakeGateSleepsAfterInactivity(t *testing.T) {
	var mu sync.Mutex
	var transitions []bool
	g := newGatedWake(func(awake bool) {
		mu.Lock()
		transitions = append(transitions, awake)
		mu.Unlock()
	})
	now := time.Now()
	g.now = func() time.Time { return now }
	g.Touch()

	// 29s of silence: stays awake.
	now = now.Add(29 * time.Second)
	g.checkSleep()
	if !g.Awake() {
		t.Error("dozed off before the deadline")
	}

	// Activity resets the countdown.
	g.Touch()
	now = now.Add(29 * time.Second)
	g.checkSleep()
	if !g.Awake() {
		t.Error("activity did not reset the sleep countdown")
	}

	now = now.Add(2 * time.Second)
	g.checkSleep()
	if g.Awake() {
		t.Error("still awake past the deadline")
	}

	// Only a keyword brings it back.
	g.Observe("hey kitts")
	if !g.Awake() {
		t.Error("keyword did not wake the dozed gate")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 2 || transitions[0] || !transitions[1] {
		t.Errorf("transitions = %v", transitions)
	}
}

func TestWakeGateStartStop(t *testing.T) {
	g := newGatedWake(nil)
	g.Start()
	g.Start() // idempotent
	g.Stop()
	g.Stop()
}
