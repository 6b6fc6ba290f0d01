package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"kelly/agent/internal/auth"
	"kelly/agent/internal/config"
	"kelly/agent/internal/store"
	"kelly/agent/internal/types"
	"kelly/agent/internal/worker"
	"kelly/agent/internal/workerws"
)

// MessageInjector feeds synthesized worker messages into the dispatch
// path. Used by the debug endpoints to exercise classification without
// a live worker.
type MessageInjector interface {
	OnMessage(sessionID string, msg workerws.Message)
}

type Handlers struct {
	cfg    config.Config
	store  *store.Store
	runner worker.Runner
	inject MessageInjector
}

func NewHandlers(cfg config.Config, st *store.Store, r worker.Runner, inj MessageInjector) *Handlers {
	return &Handlers{cfg: cfg, store: st, runner: r, inject: inj}
}

func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.New().String()
	sess := &types.Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Status:    "created",
	}
	_ = h.store.CreateSession(sess)
	h.store.AppendEvent(id, "session_created", nil)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"session_id": id})
}

func (h *Handlers) HandleStartSession(w http.ResponseWriter, r *http.Request, id string) {
	sess := h.store.GetSession(id)
	if sess == nil {
		http.NotFound(w, r)
		return
	}
	if h.store.IsWorkerRunning(id) {
		h.store.AppendEvent(id, "worker_start_requested", map[string]any{"noop": true})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "running": true})
		return
	}
	h.store.AppendEvent(id, "worker_start_requested", nil)

	exp := time.Now().Add(time.Duration(h.cfg.Worker.TokenExpMin) * time.Minute).Unix()
	env := map[string]string{
		"SESSION_ID":         id,
		"COORDINATOR_WS_URL": "ws://localhost:" + h.cfg.Server.Port + "/ws/worker?session_id=" + id,
		"WORKER_TOKEN":       auth.GenerateWorkerToken(h.cfg.Worker.TokenSecret, id, exp),
	}
	if err := h.runner.Start(id, env); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.store.SetWorkerRunning(id, true)
	h.store.AppendEvent(id, "worker_started", nil)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "running": true})
}

func (h *Handlers) HandleEndSession(w http.ResponseWriter, r *http.Request, id string) {
	sess := h.store.GetSession(id)
	if sess == nil {
		http.NotFound(w, r)
		return
	}
	if !h.runner.IsRunning(id) {
		h.store.AppendEvent(id, "worker_stop_requested", map[string]any{"noop": true})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "running": false})
		return
	}
	h.store.AppendEvent(id, "worker_stop_requested", nil)
	_ = h.runner.Stop(id)
	h.store.SetWorkerRunning(id, false)
	h.store.AppendEvent(id, "worker_stopped", nil)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "running": false})
}

func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request, id string) {
	if h.store.GetSession(id) == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"session_id": id,
		"events":     h.store.ListEvents(id),
	})
}

func (h *Handlers) HandleListDecisions(w http.ResponseWriter, r *http.Request, id string) {
	if h.store.GetSession(id) == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"session_id": id,
		"decisions":  h.store.DecisionCounts(id),
	})
}

func (h *Handlers) HandleMintWorkerToken(w http.ResponseWriter, r *http.Request, id string) {
	if h.store.GetSession(id) == nil {
		http.NotFound(w, r)
		return
	}
	if h.cfg.Worker.TokenSecret == "" {
		http.Error(w, "worker auth not configured", http.StatusBadRequest)
		return
	}
	exp := time.Now().Add(time.Duration(h.cfg.Worker.TokenExpMin) * time.Minute).Unix()
	tok := auth.GenerateWorkerToken(h.cfg.Worker.TokenSecret, id, exp)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"token": tok, "exp": exp})
}

// HandleDebugTranscript injects a transcript as if the worker sent it.
// Body: {"text": "...", "final": true}
func (h *Handlers) HandleDebugTranscript(w http.ResponseWriter, r *http.Request, id string) {
	if h.store.GetSession(id) == nil {
		http.NotFound(w, r)
		return
	}
	var body struct {
		Text  string `json:"text"`
		Final bool   `json:"final"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	typ := "transcript_interim"
	if body.Final {
		typ = "transcript_final"
	}
	h.inject.OnMessage(id, workerws.Message{
		Type:      typ,
		TsMs:      time.Now().UnixMilli(),
		SessionID: id,
		Payload:   map[string]any{"text": body.Text, "source": "debug"},
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
}

// HandleDebugSpeech injects a TTS lifecycle signal. For tts_started a
// synthetic tts_first_audio follows so barge-in is armed immediately.
func (h *Handlers) HandleDebugSpeech(w http.ResponseWriter, r *http.Request, id string, typ string) {
	if h.store.GetSession(id) == nil {
		http.NotFound(w, r)
		return
	}
	now := time.Now().UnixMilli()
	h.inject.OnMessage(id, workerws.Message{Type: typ, TsMs: now, SessionID: id, Payload: map[string]any{"source": "debug"}})
	if typ == "tts_started" {
		h.inject.OnMessage(id, workerws.Message{Type: "tts_first_audio", TsMs: now, SessionID: id, Payload: map[string]any{"source": "debug"}})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
}
