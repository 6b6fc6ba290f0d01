package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kelly/agent/internal/api"
	"kelly/agent/internal/config"
	"kelly/agent/internal/health"
	"kelly/agent/internal/loop"
	"kelly/agent/internal/store"
	"kelly/agent/internal/turn"
	"kelly/agent/internal/worker"
	"kelly/agent/internal/workerws"
)

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg := config.Load()

	// Word-list validation is fatal: a misconfigured classifier must not
	// serve a single session.
	base, err := turn.NewClassifier(turn.NewTracker(), cfg.Turn.IgnoreWords, cfg.Turn.InterruptWords, turn.MatchPolicy(cfg.Turn.MatchPolicy))
	if err != nil {
		log.Fatalf("classifier config: %v", err)
	}

	if status := health.CheckAll(cfg); !status.OK {
		log.Printf("startup checks:\n%s", status)
	}

	st := store.New()

	runner := worker.NewLocalRunner(cfg.Worker.Cmd, func(sessionID string, err error) {
		st.SetWorkerRunning(sessionID, false)
		st.SetWorkerExit(sessionID, exitCodeFromErr(err), time.Now().UTC())
		st.AppendEvent(sessionID, "worker_exit", map[string]any{"error": errString(err)})
	}, func(sessionID, stream, line string) {
		st.AppendEvent(sessionID, "worker_log", map[string]any{"stream": stream, "line": line})
	}, func(sessionID string, pid int) {
		st.SetWorkerPID(sessionID, pid)
	})

	reg := workerws.NewRegistry()
	disp := loop.New(reg, st, base, cfg.Turn.GuardMs, cfg.Turn.TTSTimeoutSec)

	h := api.NewHandlers(cfg, st, runner, disp)
	mux := http.NewServeMux()
	mux.Handle("/", api.NewRouter(h))
	mux.Handle("/metrics", promhttp.Handler())

	wss := workerws.NewServer(cfg, st, reg)
	wss.OnMessage = disp.OnMessage
	mux.HandleFunc("/ws/worker", wss.HandleWorkerWS)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Printf("shutdown signal received; stopping server...")
		// Stop running workers before draining HTTP
		for _, id := range st.ListSessionIDs() {
			if runner.IsRunning(id) {
				_ = runner.Stop(id)
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	log.Printf("server starting on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println("server error:", err)
		os.Exit(1)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func exitCodeFromErr(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return 1
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
