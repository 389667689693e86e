package convo

import (
	"fmt"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"interviewd/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewOverwritesExistingTranscript(t *testing.T) {
	s := NewStore()
	s.New("sid", types.System("first seed"))
	s.Add("sid", types.User("answer"))

	s.New("sid", types.System("second seed"))

	got, ok := s.Get("sid")
	if !ok {
		t.Fatal("transcript missing after New")
	}
	if len(got) != 1 {
		t.Fatalf("expected sole seed message, got %d messages", len(got))
	}
	if got[0].Content != "second seed" {
		t.Errorf("seed = %q, want %q", got[0].Content, "second seed")
	}
}

func TestAddUnknownSessionFails(t *testing.T) {
	s := NewStore()
	if s.Add("missing", types.User("hi")) {
		t.Error("Add on unknown id should return false")
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("Get on unknown id should report absence")
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	s := NewStore()
	s.New("sid", types.System("seed"))

	snap, _ := s.Get("sid")
	snap[0].Content = "mutated"

	got, _ := s.Get("sid")
	if got[0].Content != "seed" {
		t.Error("mutating the snapshot leaked into the store")
	}
}

func TestLastAssistant(t *testing.T) {
	s := NewStore()
	s.New("sid", types.System("seed"))
	if got := s.LastAssistant("sid"); got != "" {
		t.Errorf("LastAssistant with no assistant messages = %q, want empty", got)
	}

	s.Add("sid", types.Assistant("q1"))
	s.Add("sid", types.User("a1"))
	s.Add("sid", types.Assistant("q2"))

	if got := s.LastAssistant("sid"); got != "q2" {
		t.Errorf("LastAssistant = %q, want q2", got)
	}
}

func TestDiscard(t *testing.T) {
	s := NewStore()
	s.New("sid", types.System("seed"))
	s.Discard("sid")

	if s.Exists("sid") {
		t.Error("transcript should be gone after Discard")
	}
}

func TestConcurrentAppendsDistinctSessions(t *testing.T) {
	s := NewStore()
	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("s%d", i)
		s.New(id, types.System("seed"))
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Add(id, types.User("m"))
			}
		}(id)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("s%d", i)
		if got := s.Len(id); got != 51 {
			t.Errorf("session %s has %d messages, want 51", id, got)
		}
	}
}

func TestAcquireSerializesPerSession(t *testing.T) {
	s := NewStore()
	s.New("sid", types.System("seed"))

	const turns = 20
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := s.Acquire("sid")
			defer release()
			// A whole logical turn: two appends that must stay adjacent.
			n := s.Len("sid")
			s.Add("sid", types.User(fmt.Sprintf("answer-%d", n)))
			s.Add("sid", types.Assistant(fmt.Sprintf("reply-%d", n)))
		}()
	}
	wg.Wait()

	got, _ := s.Get("sid")
	if len(got) != 1+2*turns {
		t.Fatalf("expected %d messages, got %d", 1+2*turns, len(got))
	}
	// Pairs must alternate user/assistant with matching markers.
	for i := 1; i < len(got); i += 2 {
		if got[i].Role != types.RoleUser || got[i+1].Role != types.RoleAssistant {
			t.Fatalf("turn at %d interleaved: %s then %s", i, got[i].Role, got[i+1].Role)
		}
	}
}
