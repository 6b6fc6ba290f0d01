package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// Clear relevant envs
	os.Unsetenv("PORT")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("TURN_IGNORE_WORDS")
	os.Unsetenv("TURN_INTERRUPT_WORDS")
	os.Unsetenv("TURN_MATCH_POLICY")

	c := Load()

	if c.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", c.Server.Port)
	}
	if c.Turn.MatchPolicy != "substring" {
		t.Fatalf("expected default match policy substring, got %q", c.Turn.MatchPolicy)
	}
	if len(c.Turn.IgnoreWords) != 6 {
		t.Fatalf("expected 6 default ignore words, got %v", c.Turn.IgnoreWords)
	}
	if len(c.Turn.InterruptWords) != 4 {
		t.Fatalf("expected 4 default interrupt words, got %v", c.Turn.InterruptWords)
	}
	if c.Turn.GuardMs != 500 {
		t.Fatalf("expected default guard 500ms, got %d", c.Turn.GuardMs)
	}
}

func TestWordListsFromEnv(t *testing.T) {
	os.Setenv("TURN_IGNORE_WORDS", "si, claro ,vale")
	os.Setenv("TURN_INTERRUPT_WORDS", "para,espera")
	defer os.Unsetenv("TURN_IGNORE_WORDS")
	defer os.Unsetenv("TURN_INTERRUPT_WORDS")

	c := Load()

	want := []string{"si", "claro", "vale"}
	if len(c.Turn.IgnoreWords) != len(want) {
		t.Fatalf("expected %v, got %v", want, c.Turn.IgnoreWords)
	}
	for i := range want {
		if c.Turn.IgnoreWords[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, c.Turn.IgnoreWords)
		}
	}
	if len(c.Turn.InterruptWords) != 2 {
		t.Fatalf("expected 2 interrupt words, got %v", c.Turn.InterruptWords)
	}
}
