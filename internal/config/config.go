package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"

	"kelly/agent/internal/turn"
)

type Config struct {
	Server struct {
		Port     string
		LogLevel string
	}
	Turn struct {
		IgnoreWords    []string
		InterruptWords []string
		MatchPolicy    string
		GuardMs        int
		TTSTimeoutSec  int
	}
	Worker struct {
		Cmd           string
		TokenSecret   string
		TokenSkewSecs int
		TokenExpMin   int
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("turn.ignore_words", strings.Join(turn.DefaultIgnoreWords, ","))
	v.SetDefault("turn.interrupt_words", strings.Join(turn.DefaultInterruptWords, ","))
	v.SetDefault("turn.match_policy", string(turn.MatchSubstring))
	v.SetDefault("turn.guard_ms", 500)
	v.SetDefault("turn.tts_timeout_seconds", 60)

	v.SetDefault("worker.token_skew_seconds", 60)
	v.SetDefault("worker.token_exp_min", 720)

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")

	v.BindEnv("turn.ignore_words", "TURN_IGNORE_WORDS")
	v.BindEnv("turn.interrupt_words", "TURN_INTERRUPT_WORDS")
	v.BindEnv("turn.match_policy", "TURN_MATCH_POLICY")
	v.BindEnv("turn.guard_ms", "TURN_GUARD_MS")
	v.BindEnv("turn.tts_timeout_seconds", "TURN_TTS_TIMEOUT_SECONDS")

	v.BindEnv("worker.cmd", "WORKER_CMD")
	v.BindEnv("worker.token_secret", "WORKER_TOKEN_SECRET")
	v.BindEnv("worker.token_skew_seconds", "WORKER_TOKEN_SKEW_SECONDS")
	v.BindEnv("worker.token_exp_min", "WORKER_TOKEN_EXP_MIN")

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.LogLevel = v.GetString("server.log_level")

	c.Turn.IgnoreWords = splitWords(v.GetString("turn.ignore_words"))
	c.Turn.InterruptWords = splitWords(v.GetString("turn.interrupt_words"))
	c.Turn.MatchPolicy = v.GetString("turn.match_policy")
	c.Turn.GuardMs = v.GetInt("turn.guard_ms")
	c.Turn.TTSTimeoutSec = v.GetInt("turn.tts_timeout_seconds")

	c.Worker.Cmd = v.GetString("worker.cmd")
	c.Worker.TokenSecret = v.GetString("worker.token_secret")
	c.Worker.TokenSkewSecs = v.GetInt("worker.token_skew_seconds")
	c.Worker.TokenExpMin = v.GetInt("worker.token_exp_min")

	log.Printf("config loaded: port=%s match_policy=%s ignore=%d interrupt=%d",
		c.Server.Port, c.Turn.MatchPolicy, len(c.Turn.IgnoreWords), len(c.Turn.InterruptWords))
	return c
}

// splitWords parses a comma-separated word list, trimming whitespace and
// dropping empty entries.
func splitWords(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func toString(v any) string { return fmt.Sprint(v) }
