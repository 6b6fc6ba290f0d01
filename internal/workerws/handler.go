// Package workerws is the websocket ingress for agent worker processes.
// A worker connects once per session, streams TTS lifecycle and
// transcript messages up, and receives coordinator commands (stop_tts,
// forward_text) back on the same connection.
package workerws

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	ws "nhooyr.io/websocket"

	"kelly/agent/internal/auth"
	"kelly/agent/internal/config"
	"kelly/agent/internal/store"
)

// Message is the JSON envelope both directions share.
//
// Worker -> coordinator types: worker_hello, tts_started,
// tts_first_audio, tts_stopped, transcript_interim, transcript_final,
// cmd_ack. Coordinator -> worker types: stop_tts, forward_text.
type Message struct {
	Type        string         `json:"type"`
	TsMs        int64          `json:"ts_ms"`
	SessionID   string         `json:"session_id"`
	Seq         int64          `json:"seq"`
	CommandID   string         `json:"command_id,omitempty"`
	UtteranceID string         `json:"utterance_id,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
}

type Server struct {
	Cfg   config.Config
	Store *store.Store
	Reg   *Registry

	// OnMessage is invoked for every parsed worker message.
	OnMessage func(sessionID string, msg Message)
}

func NewServer(cfg config.Config, st *store.Store, reg *Registry) *Server {
	return &Server{Cfg: cfg, Store: st, Reg: reg}
}

func (s *Server) HandleWorkerWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID := q.Get("session_id")
	if sessionID == "" {
		http.Error(w, "missing session_id", http.StatusBadRequest)
		return
	}
	if s.Store.GetSession(sessionID) == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	// Auth header
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}
	token := strings.TrimPrefix(authz, "Bearer ")
	if s.Cfg.Worker.TokenSecret == "" {
		http.Error(w, "worker auth not configured", http.StatusUnauthorized)
		return
	}
	if _, _, err := auth.ValidateWorkerToken(s.Cfg.Worker.TokenSecret, token, sessionID, time.Now(), s.Cfg.Worker.TokenSkewSecs); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	c, err := ws.Accept(w, r, nil)
	if err != nil {
		log.Printf("[ws] accept: %v", err)
		return
	}
	if replaced := s.Reg.Replace(sessionID, c); replaced {
		s.Store.AppendEvent(sessionID, "worker_replaced", nil)
	}
	s.Store.AppendEvent(sessionID, "worker_connected", nil)

	ctx := r.Context()
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			break
		}
		if typ != ws.MessageText && typ != ws.MessageBinary {
			continue
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.Store.AppendEvent(sessionID, "worker_msg_invalid", map[string]any{"error": err.Error()})
			continue
		}
		if s.OnMessage != nil {
			s.OnMessage(sessionID, msg)
		}
	}
	_ = c.Close(ws.StatusNormalClosure, "done")
	s.Reg.Remove(sessionID, c)
	s.Store.AppendEvent(sessionID, "worker_disconnected", nil)
}
