package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"kelly/agent/internal/config"
	"kelly/agent/internal/loop"
	"kelly/agent/internal/store"
	"kelly/agent/internal/turn"
	"kelly/agent/internal/worker"
	"kelly/agent/internal/workerws"
)

type mockRunner struct{}

func (m *mockRunner) Start(sessionID string, env map[string]string) error { return nil }
func (m *mockRunner) Stop(sessionID string) error                         { return nil }
func (m *mockRunner) IsRunning(sessionID string) bool                     { return false }

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	cfg := config.Load()
	st := store.New()
	base, err := turn.NewClassifier(turn.NewTracker(), turn.DefaultIgnoreWords, turn.DefaultInterruptWords, turn.MatchSubstring)
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}
	disp := loop.New(workerws.NewRegistry(), st, base, 0, 60)
	var r worker.Runner = &mockRunner{}
	h := NewHandlers(cfg, st, r, disp)
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv, st
}

func createSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/sessions", "application/json", nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.SessionID == "" {
		t.Fatalf("expected session id in response")
	}
	return body.SessionID
}

func TestStartEndUnknownSession404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/sessions/unknown/start", "application/json", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/sessions/unknown/end", "application/json", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestDebugTranscriptRecordsDecision(t *testing.T) {
	srv, st := newTestServer(t)
	id := createSession(t, srv)

	// Put the session into speaking state, then inject a backchannel.
	resp, err := http.Post(srv.URL+"/sessions/"+id+"/debug/speech-started", "application/json", nil)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("speech-started: %v status=%d", err, resp.StatusCode)
	}

	body, _ := json.Marshal(map[string]any{"text": "uh-huh", "final": true})
	resp, err = http.Post(srv.URL+"/sessions/"+id+"/debug/transcript", "application/json", bytes.NewReader(body))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("transcript: %v status=%d", err, resp.StatusCode)
	}

	if st.DecisionCounts(id)["ignore"] != 1 {
		t.Fatalf("expected one ignore decision, got %v", st.DecisionCounts(id))
	}

	// Decisions endpoint reports the counter.
	resp, err = http.Get(srv.URL + "/sessions/" + id + "/decisions")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("decisions: %v status=%d", err, resp.StatusCode)
	}
	var out struct {
		Decisions map[string]int64 `json:"decisions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Decisions["ignore"] != 1 {
		t.Fatalf("expected ignore=1 in response, got %v", out.Decisions)
	}
}

func TestEventsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv)

	resp, err := http.Get(srv.URL + "/sessions/" + id + "/events")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		Events []struct {
			Type string `json:"type"`
		} `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Events) == 0 || out.Events[0].Type != "session_created" {
		t.Fatalf("expected session_created event, got %+v", out.Events)
	}
}
