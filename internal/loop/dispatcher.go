// Package loop wires worker messages to the turn decision core. Each
// session gets its own speech tracker and classifier; the dispatcher
// maps TTS lifecycle messages onto the tracker, runs every transcript
// through the classifier, and acts on the decision by sending stop_tts
// and forward_text commands back to the worker.
package loop

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"kelly/agent/internal/store"
	"kelly/agent/internal/turn"
	"kelly/agent/internal/workerws"
)

type Dispatcher struct {
	reg   *workerws.Registry
	store *store.Store
	base  *turn.Classifier

	guard      time.Duration
	ttsTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*sessState
}

type sessState struct {
	// mu serializes message handling for the session. The ws read loop
	// delivers messages one at a time, but the debug injection endpoints
	// call OnMessage from HTTP handler goroutines concurrently with it.
	mu sync.Mutex

	tracker    *turn.Tracker
	classifier *turn.Classifier

	bargeInArmed bool
	stopping     bool
	pendingCmdID string
	ttsStartRecv time.Time
	guardUntil   time.Time

	lastInterruptTsMs   int64
	lastInterruptRecvMs int64
}

// New builds a dispatcher from an already-validated classifier
// configuration. guardMs suppresses interrupts in the window right
// after TTS start; ttsTimeoutSec resets a session whose tts_stopped
// never arrived.
func New(reg *workerws.Registry, st *store.Store, base *turn.Classifier, guardMs, ttsTimeoutSec int) *Dispatcher {
	return &Dispatcher{
		reg:        reg,
		store:      st,
		base:       base,
		guard:      time.Duration(guardMs) * time.Millisecond,
		ttsTimeout: time.Duration(ttsTimeoutSec) * time.Second,
		sessions:   make(map[string]*sessState),
	}
}

func (d *Dispatcher) state(sessionID string) *sessState {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.sessions[sessionID]
	if s == nil {
		tr := turn.NewTracker()
		s = &sessState{tracker: tr, classifier: d.base.WithTracker(tr)}
		d.sessions[sessionID] = s
	}
	return s
}

func (d *Dispatcher) reset(s *sessState) {
	tr := turn.NewTracker()
	s.tracker = tr
	s.classifier = d.base.WithTracker(tr)
	s.bargeInArmed = false
	s.stopping = false
	s.pendingCmdID = ""
	s.ttsStartRecv = time.Time{}
	s.guardUntil = time.Time{}
}

// OnMessage processes one worker message and may send commands back.
func (d *Dispatcher) OnMessage(sessionID string, msg workerws.Message) {
	s := d.state(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	nowRecvMs := time.Now().UnixMilli()

	switch msg.Type {
	case "worker_hello":
		d.reset(s)
		d.store.AppendEvent(sessionID, "worker_hello", msg.Payload)

	case "tts_started":
		s.tracker.MarkSpeechStarted()
		s.ttsStartRecv = time.Now()
		s.guardUntil = s.ttsStartRecv.Add(d.guard)
		// Arm only after first audio, to avoid prebuffer cut-offs
		s.bargeInArmed = false
		s.stopping = false
		d.store.AppendEvent(sessionID, "tts_started_recv", map[string]any{"recv_ms": nowRecvMs, "utterance_id": msg.UtteranceID})

	case "tts_first_audio":
		s.bargeInArmed = true
		d.store.AppendEvent(sessionID, "tts_first_audio_recv", map[string]any{"recv_ms": nowRecvMs})

	case "tts_stopped":
		s.tracker.MarkSpeechCompleted()
		s.bargeInArmed = false
		reason := ""
		if msg.Payload != nil {
			if v, ok := msg.Payload["reason"].(string); ok {
				reason = v
			}
		}
		if reason == "interrupted" && s.lastInterruptTsMs > 0 {
			workerMs := msg.TsMs - s.lastInterruptTsMs
			backendMs := nowRecvMs - s.lastInterruptRecvMs
			if backendMs > 0 {
				metricBargeInLatency.Observe(float64(backendMs))
			}
			d.store.AppendEvent(sessionID, "barge_in_latency", map[string]any{
				"worker_ms": workerMs, "backend_ms": backendMs,
				"utterance_id": msg.UtteranceID,
			})
		}
		s.stopping = false
		s.pendingCmdID = ""
		s.ttsStartRecv = time.Time{}
		d.store.AppendEvent(sessionID, "tts_stopped_recv", map[string]any{"reason": reason})

	case "transcript_interim", "transcript_final":
		text := ""
		if msg.Payload != nil {
			if v, ok := msg.Payload["text"].(string); ok {
				text = v
			}
		}
		frag := turn.Fragment{Text: text, Final: msg.Type == "transcript_final", TsMs: msg.TsMs}
		d.handleTranscript(s, sessionID, frag, nowRecvMs)

	case "cmd_ack":
		payload := map[string]any{"command_id": msg.CommandID}
		if msg.CommandID == "" || msg.CommandID != s.pendingCmdID {
			payload["note"] = "unexpected"
		}
		d.store.AppendEvent(sessionID, "cmd_ack", payload)
	}

	// Safety timeout: a tts_started with no tts_stopped would pin the
	// session in Speaking and swallow backchannels forever.
	if !s.ttsStartRecv.IsZero() && time.Since(s.ttsStartRecv) > d.ttsTimeout {
		d.reset(s)
		d.store.AppendEvent(sessionID, "tts_timeout_reset", nil)
	}
}

func (d *Dispatcher) handleTranscript(s *sessState, sessionID string, frag turn.Fragment, nowRecvMs int64) {
	dec := s.classifier.Classify(frag)
	d.store.IncDecision(sessionID, string(dec.Kind))
	d.store.AppendEvent(sessionID, "decision", map[string]any{
		"kind": string(dec.Kind), "text": frag.Text, "final": frag.Final,
	})

	switch dec.Kind {
	case turn.HardInterrupt:
		if !d.interrupt(s, sessionID, frag, "current", nowRecvMs) {
			return
		}
	case turn.SemanticInterrupt:
		if !d.interrupt(s, sessionID, frag, "graceful", nowRecvMs) {
			return
		}
	case turn.Ignore:
		return
	}

	// Interim fragments trigger interrupts for latency, but only finals
	// carry user text downstream.
	if dec.Fragment != nil && frag.Final {
		d.forward(sessionID, *dec.Fragment, dec.Kind)
	}
}

// interrupt sends stop_tts and reports whether the interrupt took
// effect. Unarmed sessions and the guard window right after TTS start
// suppress it entirely (likely self-echo, nothing is forwarded); an
// already in-flight stop is not re-sent but still counts as effective
// so the final text reaches the worker. mode "current" cuts playback
// immediately; "graceful" lets the worker finish the current sentence.
func (d *Dispatcher) interrupt(s *sessState, sessionID string, frag turn.Fragment, mode string, nowRecvMs int64) bool {
	if !s.bargeInArmed {
		return false
	}
	if time.Now().Before(s.guardUntil) {
		metricGuardBlocks.Inc()
		d.store.AppendEvent(sessionID, "barge_in_guard_blocked", map[string]any{
			"text": frag.Text, "guard_remaining_ms": time.Until(s.guardUntil).Milliseconds(),
		})
		return false
	}
	if s.stopping {
		return true
	}

	s.stopping = true
	cmdID := uuid.New().String()
	s.pendingCmdID = cmdID
	s.lastInterruptTsMs = frag.TsMs
	s.lastInterruptRecvMs = nowRecvMs

	out := workerws.Message{
		Type:      "stop_tts",
		TsMs:      time.Now().UnixMilli(),
		SessionID: sessionID,
		CommandID: cmdID,
		Payload:   map[string]any{"mode": mode},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = d.reg.SendJSON(ctx, sessionID, out)
	cancel()

	metricBargeIn.Inc()
	d.store.AppendEvent(sessionID, "stop_tts_sent", map[string]any{"command_id": cmdID, "mode": mode})
	return true
}

func (d *Dispatcher) forward(sessionID string, frag turn.Fragment, kind turn.Kind) {
	out := workerws.Message{
		Type:      "forward_text",
		TsMs:      time.Now().UnixMilli(),
		SessionID: sessionID,
		Payload:   map[string]any{"text": frag.Text, "decision": string(kind)},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = d.reg.SendJSON(ctx, sessionID, out)
	cancel()

	metricForwards.Inc()
	d.store.AppendEvent(sessionID, "forward_text_sent", map[string]any{"decision": string(kind)})
}
