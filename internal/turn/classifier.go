// Package turn decides what to do with user speech that arrives while
// the agent may itself be talking. While the agent is speaking, incoming
// transcripts are classified as passive backchannel ("uh-huh" — drop),
// hard interrupt ("stop" — cut playback), or semantic interrupt (real
// content — yield the floor). While the agent is silent everything
// passes through untouched.
package turn

import (
	"errors"
	"fmt"
	"strings"
)

// ErrWordOverlap is returned when the same word appears in both the
// ignore and interrupt lists.
var ErrWordOverlap = errors.New("word appears in both ignore and interrupt lists")

// MatchPolicy selects how interrupt words are matched against the text.
type MatchPolicy string

const (
	// MatchSubstring flags an interrupt when an entry occurs anywhere in
	// the normalized text, even inside an unrelated word ("nostalgic"
	// contains "no"). This mirrors the reference behavior.
	MatchSubstring MatchPolicy = "substring"

	// MatchToken only flags an interrupt when an entry appears on token
	// boundaries. Multi-word entries match consecutive token runs.
	MatchToken MatchPolicy = "token"
)

// Fragment is one unit of transcribed user speech, partial or final.
type Fragment struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
	TsMs  int64  `json:"ts_ms"`
}

// Kind is the classification outcome for a fragment.
type Kind string

const (
	PassThrough       Kind = "pass_through"
	HardInterrupt     Kind = "hard_interrupt"
	SemanticInterrupt Kind = "semantic_interrupt"
	Ignore            Kind = "ignore"
)

// Decision pairs the outcome with the fragment to forward downstream.
// Fragment is nil for Ignore.
type Decision struct {
	Kind     Kind
	Fragment *Fragment
}

// DefaultIgnoreWords are passive acknowledgements dropped while speaking.
var DefaultIgnoreWords = []string{"yeah", "ok", "okay", "hmm", "uh-huh", "right"}

// DefaultInterruptWords are explicit stop commands.
var DefaultInterruptWords = []string{"stop", "wait", "no", "hold on"}

// Classifier maps one transcript fragment to a Decision using the
// tracker's current speaking state and two fixed word lists.
//
// Classify is a pure function of (state, word lists, text): it keeps no
// history and is safe for concurrent use. The word lists are immutable
// after construction.
type Classifier struct {
	tracker   *Tracker
	ignore    map[string]struct{}
	interrupt []string
	policy    MatchPolicy
}

// NewClassifier validates the word lists and builds a classifier bound
// to tracker. Entries are lowercased and trimmed; empty entries are
// dropped. An entry present in both lists is a configuration error,
// rejected here rather than silently resolved at classification time.
func NewClassifier(tracker *Tracker, ignoreWords, interruptWords []string, policy MatchPolicy) (*Classifier, error) {
	switch policy {
	case MatchSubstring, MatchToken:
	case "":
		policy = MatchSubstring
	default:
		return nil, fmt.Errorf("unknown match policy %q", policy)
	}

	ignore := make(map[string]struct{}, len(ignoreWords))
	for _, w := range ignoreWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			ignore[w] = struct{}{}
		}
	}

	interrupt := make([]string, 0, len(interruptWords))
	seen := make(map[string]struct{}, len(interruptWords))
	for _, w := range interruptWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, clash := ignore[w]; clash {
			return nil, fmt.Errorf("%w: %q", ErrWordOverlap, w)
		}
		interrupt = append(interrupt, w)
	}

	return &Classifier{tracker: tracker, ignore: ignore, interrupt: interrupt, policy: policy}, nil
}

// Policy returns the active interrupt match policy.
func (c *Classifier) Policy() MatchPolicy { return c.policy }

// WithTracker returns a classifier sharing the same validated word lists
// and policy but bound to a different tracker. Lets one validated
// configuration stamp out a classifier per session.
func (c *Classifier) WithTracker(t *Tracker) *Classifier {
	cp := *c
	cp.tracker = t
	return &cp
}

// Classify decides what to do with one fragment.
//
// Text that normalizes to zero tokens is Ignore regardless of state.
// While Silent, everything else passes through without consulting the
// word lists. While Speaking, an interrupt-word match wins over the
// all-soft-words check, so a word that (illegally) sits in both lists
// still interrupts.
//
// The speaking state is read exactly once; a fragment racing a state
// transition sees either the old or the new state, never a mix.
func (c *Classifier) Classify(f Fragment) Decision {
	text := strings.ToLower(strings.TrimSpace(f.Text))
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return c.done(Decision{Kind: Ignore})
	}

	if c.tracker.Current() == Silent {
		return c.done(Decision{Kind: PassThrough, Fragment: &f})
	}

	if c.containsInterrupt(text, tokens) {
		return c.done(Decision{Kind: HardInterrupt, Fragment: &f})
	}
	if c.onlySoftWords(tokens) {
		return c.done(Decision{Kind: Ignore})
	}
	return c.done(Decision{Kind: SemanticInterrupt, Fragment: &f})
}

func (c *Classifier) done(d Decision) Decision {
	metricDecisions.WithLabelValues(string(d.Kind)).Inc()
	return d
}

func (c *Classifier) containsInterrupt(text string, tokens []string) bool {
	switch c.policy {
	case MatchToken:
		padded := " " + strings.Join(tokens, " ") + " "
		for _, w := range c.interrupt {
			if strings.Contains(padded, " "+w+" ") {
				return true
			}
		}
	default:
		for _, w := range c.interrupt {
			if strings.Contains(text, w) {
				return true
			}
		}
	}
	return false
}

func (c *Classifier) onlySoftWords(tokens []string) bool {
	for _, tok := range tokens {
		if _, ok := c.ignore[tok]; !ok {
			return false
		}
	}
	return true
}
