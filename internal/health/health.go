package health

import (
	"fmt"
	"os/exec"
	"strings"
	"time"

	"kelly/agent/internal/config"
	"kelly/agent/internal/turn"
)

type CheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (h HealthStatus) String() string {
	status := "OK"
	if !h.OK {
		status = "FAIL"
	}
	s := fmt.Sprintf("Health: %s\n", status)
	for _, c := range h.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		s += fmt.Sprintf("  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if c.Error != "" {
			s += fmt.Sprintf(" - %s", c.Error)
		}
		s += "\n"
	}
	return s
}

// CheckAll runs the startup self-checks and returns combined status.
func CheckAll(cfg config.Config) HealthStatus {
	checks := []CheckResult{
		checkWordLists(cfg),
		checkWorker(cfg),
	}

	allOK := true
	for _, c := range checks {
		if !c.OK {
			allOK = false
		}
	}

	return HealthStatus{
		OK:        allOK,
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}
}

// checkWordLists constructs a throwaway classifier so overlapping word
// lists or a bad match policy fail here, before any session exists.
func checkWordLists(cfg config.Config) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "word_lists"}

	_, err := turn.NewClassifier(turn.NewTracker(), cfg.Turn.IgnoreWords, cfg.Turn.InterruptWords, turn.MatchPolicy(cfg.Turn.MatchPolicy))
	result.Latency = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if len(cfg.Turn.InterruptWords) == 0 {
		result.Error = "interrupt word list is empty"
		return result
	}

	result.OK = true
	return result
}

func checkWorker(cfg config.Config) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "worker"}

	if cfg.Worker.TokenSecret == "" {
		result.Error = "WORKER_TOKEN_SECRET not set"
		result.Latency = time.Since(start)
		return result
	}
	if strings.TrimSpace(cfg.Worker.Cmd) == "" {
		result.Error = "WORKER_CMD not set"
		result.Latency = time.Since(start)
		return result
	}
	name := strings.Fields(cfg.Worker.Cmd)[0]
	if _, err := exec.LookPath(name); err != nil {
		result.Error = fmt.Sprintf("worker command %q not found: %v", name, err)
		result.Latency = time.Since(start)
		return result
	}

	result.Latency = time.Since(start)
	result.OK = true
	return result
}
