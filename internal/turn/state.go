package turn

import "sync/atomic"

// State says whether the agent is currently producing audio output.
type State int32

const (
	Silent State = iota
	Speaking
)

func (s State) String() string {
	if s == Speaking {
		return "speaking"
	}
	return "silent"
}

// Tracker holds the single authoritative speaking bit for a session.
// Mutated only by the two TTS lifecycle signals; reads never block.
// The bit is a single atomic so a reader always observes exactly
// Silent or exactly Speaking, and a signal that returned is visible
// to every later read on any goroutine.
type Tracker struct {
	state atomic.Int32
}

func NewTracker() *Tracker { return &Tracker{} }

// MarkSpeechStarted sets the state to Speaking. Calling it while
// already Speaking is a no-op.
func (t *Tracker) MarkSpeechStarted() {
	if t.state.Swap(int32(Speaking)) != int32(Speaking) {
		metricStateTransitions.WithLabelValues("silent", "speaking").Inc()
	}
}

// MarkSpeechCompleted sets the state to Silent. Calling it while
// already Silent is a no-op.
func (t *Tracker) MarkSpeechCompleted() {
	if t.state.Swap(int32(Silent)) != int32(Silent) {
		metricStateTransitions.WithLabelValues("speaking", "silent").Inc()
	}
}

func (t *Tracker) Current() State { return State(t.state.Load()) }
