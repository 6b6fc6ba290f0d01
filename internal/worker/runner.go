// Package worker launches and supervises agent worker processes. The
// worker owns the audio pipeline (room transport, VAD, STT, TTS, LLM)
// and talks back to the coordinator over the worker websocket; this
// package only manages the process lifecycle.
package worker

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Runner is the interface used by handlers for starting/stopping workers.
type Runner interface {
	Start(sessionID string, env map[string]string) error
	Stop(sessionID string) error
	IsRunning(sessionID string) bool
}

// ExitCallback is invoked when a session's worker process exits
// (naturally or killed).
type ExitCallback func(sessionID string, err error)
type LogCallback func(sessionID string, stream string, line string)
type StartCallback func(sessionID string, pid int)

type LocalRunner struct {
	workerCmd string
	onExit    ExitCallback
	onLog     LogCallback
	onStart   StartCallback

	mu    sync.Mutex
	procs map[string]*proc
}

type proc struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc

	// done closes once the exit watcher's Wait has returned (or the
	// start was abandoned). Wait must only ever be called by the
	// watcher; everyone else blocks on done.
	done chan struct{}
}

func NewLocalRunner(workerCmd string, onExit ExitCallback, onLog LogCallback, onStart StartCallback) *LocalRunner {
	return &LocalRunner{
		workerCmd: workerCmd,
		onExit:    onExit,
		onLog:     onLog,
		onStart:   onStart,
		procs:     make(map[string]*proc),
	}
}

func (r *LocalRunner) IsRunning(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.procs[sessionID]
	return ok
}

func (r *LocalRunner) Start(sessionID string, env map[string]string) error {
	if strings.TrimSpace(r.workerCmd) == "" {
		return errors.New("worker command not configured")
	}

	parts := strings.Fields(r.workerCmd)
	name, args := parts[0], parts[1:]
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, name, args...)

	// Reserve slot to prevent TOCTOU duplicate starts
	p := &proc{cancel: cancel, done: make(chan struct{})}
	r.mu.Lock()
	if _, exists := r.procs[sessionID]; exists {
		r.mu.Unlock()
		cancel()
		return errors.New("worker already running for session")
	}
	r.procs[sessionID] = p
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		delete(r.procs, sessionID)
		r.mu.Unlock()
		cancel()
		close(p.done)
	}

	cmd.Env = append(os.Environ(), envToList(env)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		release()
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		release()
		return err
	}

	if err := cmd.Start(); err != nil {
		release()
		return err
	}

	r.mu.Lock()
	p.cmd = cmd
	r.mu.Unlock()

	if r.onStart != nil && cmd.Process != nil {
		r.onStart(sessionID, cmd.Process.Pid)
	}

	go r.stream(sessionID, "stdout", stdout)
	go r.stream(sessionID, "stderr", stderr)

	go func() {
		err := cmd.Wait()
		r.mu.Lock()
		delete(r.procs, sessionID)
		r.mu.Unlock()
		close(p.done)
		if r.onExit != nil {
			r.onExit(sessionID, err)
		}
	}()

	return nil
}

func (r *LocalRunner) Stop(sessionID string) error {
	r.mu.Lock()
	p, ok := r.procs[sessionID]
	r.mu.Unlock()
	if !ok {
		return errors.New("worker not running for session")
	}
	// request context cancel, then force kill after grace
	p.cancel()
	select {
	case <-p.done:
		return nil
	case <-time.After(3 * time.Second):
		r.mu.Lock()
		cmd := p.cmd
		r.mu.Unlock()
		if cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		return nil
	}
}

func envToList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

func (r *LocalRunner) stream(sessionID, stream string, rdr io.Reader) {
	scanner := bufio.NewScanner(rdr)
	for scanner.Scan() {
		line := scanner.Text()
		log.Printf("worker[%s] %s: %s", sessionID, stream, line)
		if r.onLog != nil {
			r.onLog(sessionID, stream, line)
		}
	}
}
