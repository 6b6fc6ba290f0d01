package turn

import (
	"sync"
	"testing"
)

func TestTrackerStartsSilent(t *testing.T) {
	tr := NewTracker()
	if tr.Current() != Silent {
		t.Fatalf("expected initial state silent, got %v", tr.Current())
	}
}

func TestLifecycleIdempotence(t *testing.T) {
	tr := NewTracker()

	tr.MarkSpeechStarted()
	tr.MarkSpeechStarted()
	if tr.Current() != Speaking {
		t.Fatalf("expected speaking after redundant starts, got %v", tr.Current())
	}

	tr.MarkSpeechCompleted()
	if tr.Current() != Silent {
		t.Fatalf("expected silent after completed, got %v", tr.Current())
	}

	tr.MarkSpeechCompleted()
	if tr.Current() != Silent {
		t.Fatalf("expected silent after redundant completed, got %v", tr.Current())
	}
}

func TestCompletedWithoutStartIsNoop(t *testing.T) {
	tr := NewTracker()
	tr.MarkSpeechCompleted()
	if tr.Current() != Silent {
		t.Fatalf("expected silent, got %v", tr.Current())
	}
}

// Concurrent readers and writers must only ever observe Silent or
// Speaking. Run with -race.
func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				tr.MarkSpeechStarted()
				tr.MarkSpeechCompleted()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if s := tr.Current(); s != Silent && s != Speaking {
					t.Errorf("observed invalid state %d", s)
					return
				}
			}
		}()
	}
	wg.Wait()
}
