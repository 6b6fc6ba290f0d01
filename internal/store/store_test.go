package store

import (
	"testing"
	"time"

	"kelly/agent/internal/types"
)

func TestCreateAndGetSession(t *testing.T) {
	st := New()
	s := &types.Session{ID: "abc123", CreatedAt: time.Now()}
	if err := st.CreateSession(s); err != nil {
		t.Fatalf("create session: %v", err)
	}
	got := st.GetSession("abc123")
	if got == nil || got.ID != s.ID {
		t.Fatalf("expected session %q, got %#v", s.ID, got)
	}
	if err := st.CreateSession(s); err != ErrSessionExists {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}
}

func TestDecisionCounts(t *testing.T) {
	st := New()
	st.IncDecision("s1", "ignore")
	st.IncDecision("s1", "ignore")
	st.IncDecision("s1", "hard_interrupt")

	counts := st.DecisionCounts("s1")
	if counts["ignore"] != 2 || counts["hard_interrupt"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
	if len(st.DecisionCounts("unknown")) != 0 {
		t.Fatalf("expected no counts for unknown session")
	}
}

func TestEventCapTruncates(t *testing.T) {
	st := New()
	for i := 0; i < 250; i++ {
		st.AppendEvent("s1", "tick", nil)
	}
	events := st.ListEvents("s1")
	if len(events) > 200 {
		t.Fatalf("expected at most 200 events, got %d", len(events))
	}
	last := events[len(events)-1]
	if last.Type != "events_truncated" {
		t.Fatalf("expected truncation warning as last event, got %q", last.Type)
	}
}
