// Command replay acts as a scripted agent worker: it creates a session,
// connects to the worker websocket, plays a canned conversation (TTS
// lifecycle plus user transcripts), and prints every command the
// coordinator sends back. Useful for exercising barge-in end to end
// without a real audio pipeline.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	ws "nhooyr.io/websocket"

	"kelly/agent/internal/workerws"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Coordinator base URL")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sessionID := createSession(ctx, *server)
	token := mintToken(ctx, *server, sessionID)
	fmt.Printf("=== Replay ===\nSession: %s\n\n", sessionID)

	wsURL := strings.Replace(*server, "http", "ws", 1) + "/ws/worker?session_id=" + sessionID
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+token)
	c, _, err := ws.Dial(ctx, wsURL, &ws.DialOptions{HTTPHeader: hdr})
	if err != nil {
		log.Fatalf("dial worker ws: %v", err)
	}
	defer c.Close(ws.StatusNormalClosure, "done")

	// Print coordinator commands as they arrive
	go func() {
		for {
			_, data, err := c.Read(ctx)
			if err != nil {
				return
			}
			var cmd workerws.Message
			if err := json.Unmarshal(data, &cmd); err != nil {
				continue
			}
			ts := time.Now().Format("15:04:05.000")
			switch cmd.Type {
			case "stop_tts":
				fmt.Printf("[%s] <- stop_tts mode=%v command_id=%s\n", ts, cmd.Payload["mode"], cmd.CommandID)
			case "forward_text":
				fmt.Printf("[%s] <- forward_text decision=%v text=%q\n", ts, cmd.Payload["decision"], cmd.Payload["text"])
			default:
				fmt.Printf("[%s] <- %s\n", ts, cmd.Type)
			}
		}
	}()

	send := func(typ string, payload map[string]any) {
		msg := workerws.Message{Type: typ, TsMs: time.Now().UnixMilli(), SessionID: sessionID, Payload: payload}
		b, _ := json.Marshal(msg)
		if err := c.Write(ctx, ws.MessageText, b); err != nil {
			log.Fatalf("send %s: %v", typ, err)
		}
		fmt.Printf("-> %s %v\n", typ, payload)
		time.Sleep(150 * time.Millisecond)
	}

	send("worker_hello", nil)

	// Agent starts talking
	send("tts_started", nil)
	send("tts_first_audio", nil)

	// Backchannel while speaking: should be dropped
	send("transcript_interim", map[string]any{"text": "uh-huh"})
	send("transcript_final", map[string]any{"text": "yeah okay"})

	// Real question while speaking: semantic interrupt
	send("transcript_final", map[string]any{"text": "what about the budget"})
	send("tts_stopped", map[string]any{"reason": "interrupted"})

	// Agent silent now: everything passes through
	send("transcript_final", map[string]any{"text": "stop"})

	fmt.Println("\nwaiting for remaining commands...")
	time.Sleep(2 * time.Second)
}

func createSession(ctx context.Context, server string) string {
	var out struct {
		SessionID string `json:"session_id"`
	}
	postJSON(ctx, server+"/sessions", &out)
	if out.SessionID == "" {
		log.Fatalf("no session id in response")
	}
	return out.SessionID
}

func mintToken(ctx context.Context, server, sessionID string) string {
	var out struct {
		Token string `json:"token"`
	}
	postJSON(ctx, server+"/sessions/"+sessionID+"/worker-token", &out)
	if out.Token == "" {
		log.Fatalf("no token in response; is WORKER_TOKEN_SECRET set on the server?")
	}
	return out.Token
}

func postJSON(ctx context.Context, url string, out any) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(nil))
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("POST %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Fatalf("decode %s: %v", url, err)
	}
}
