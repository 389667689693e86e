package store

import (
	"testing"
	"time"

	"interviewd/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStoreInitializesSchema(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}

	for _, table := range []string{"sessions", "turns", "users"} {
		var name string
		err := s.db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("missing table %s: %v", table, err)
		}
	}
}

func TestTurnIndexIsWriteTimeSnapshot(t *testing.T) {
	s := newTestStore(t)

	for want := 0; want < 3; want++ {
		n, err := s.CountTurns("sid")
		if err != nil {
			t.Fatalf("CountTurns: %v", err)
		}
		if n != want {
			t.Fatalf("CountTurns = %d before insert %d, want %d", n, want, want)
		}
		if err := s.InsertTurn(types.Turn{
			SessionID: "sid", Index: n, Question: "q", UserAnswer: "a", Feedback: "f",
		}); err != nil {
			t.Fatalf("InsertTurn: %v", err)
		}
	}
}

func TestTurnRoundTripWithMetricsAndScore(t *testing.T) {
	s := newTestStore(t)

	score := 8
	err := s.InsertTurn(types.Turn{
		SessionID:  "sid",
		Index:      0,
		Question:   "What is a B-tree?",
		UserAnswer: "A balanced tree.",
		Feedback:   "Good.",
		Score:      &score,
		Metrics: &types.Metrics{
			TechnicalCorrectness: 8, Clarity: 7.5, Completeness: 6, Tone: 9,
			Overall: 7.4, Notes: "decent",
		},
	})
	if err != nil {
		t.Fatalf("InsertTurn: %v", err)
	}

	turns, err := s.GetTurns("sid")
	if err != nil {
		t.Fatalf("GetTurns: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("got %d turns, want 1", len(turns))
	}
	got := turns[0]
	if got.Score == nil || *got.Score != 8 {
		t.Errorf("score round trip failed: %v", got.Score)
	}
	if got.Metrics == nil || got.Metrics.Overall != 7.4 {
		t.Errorf("metrics round trip failed: %+v", got.Metrics)
	}
}

func TestUpdateTurnScore(t *testing.T) {
	s := newTestStore(t)
	if err := s.InsertTurn(types.Turn{SessionID: "sid", Index: 0, Question: "q", UserAnswer: "a", Feedback: "f"}); err != nil {
		t.Fatal(err)
	}

	if err := s.UpdateTurnScore("sid", 0, 9); err != nil {
		t.Fatalf("UpdateTurnScore: %v", err)
	}
	// Unknown index: silent no-op.
	if err := s.UpdateTurnScore("sid", 7, 5); err != nil {
		t.Fatalf("UpdateTurnScore on missing row should not error: %v", err)
	}

	turns, _ := s.GetTurns("sid")
	if turns[0].Score == nil || *turns[0].Score != 9 {
		t.Errorf("score = %v, want 9", turns[0].Score)
	}
}

func TestSessionRoundTripAndOverallUpdate(t *testing.T) {
	s := newTestStore(t)

	started := time.Now().UTC().Truncate(time.Second)
	sess := types.Session{
		SessionID: "sid",
		UserEmail: "dev@example.com",
		Company:   "Acme",
		Role:      "Data Engineer",
		Level:     "Senior",
		StartedAt: started,
		Setup: &types.SessionSetup{
			Form:   types.SessionSlots{Company: "Acme"},
			Merged: types.SessionSlots{Company: "Acme", Role: "Data Engineer"},
			Brief:  "interview me",
		},
	}
	if err := s.PutSession(sess); err != nil {
		t.Fatalf("PutSession: %v", err)
	}

	got, ok, err := s.GetSession("sid")
	if err != nil || !ok {
		t.Fatalf("GetSession: ok=%v err=%v", ok, err)
	}
	if got.Company != "Acme" || got.Role != "Data Engineer" {
		t.Errorf("session fields lost: %+v", got)
	}
	if got.Setup == nil || got.Setup.Merged.Role != "Data Engineer" {
		t.Errorf("setup metadata lost: %+v", got.Setup)
	}
	if got.OverallScore != nil {
		t.Errorf("unexpected overall before finalize: %v", got.OverallScore)
	}

	overall := 7.5
	if err := s.UpdateSessionOverall("sid", &overall); err != nil {
		t.Fatalf("UpdateSessionOverall: %v", err)
	}
	got, _, _ = s.GetSession("sid")
	if got.OverallScore == nil || *got.OverallScore != 7.5 {
		t.Errorf("overall = %v, want 7.5", got.OverallScore)
	}
	if got.EndedAt == nil {
		t.Error("endedAt should be set after finalize")
	}
}

func TestUpdateSessionOverallUnknownSessionIsNoop(t *testing.T) {
	s := newTestStore(t)
	overall := 5.0
	if err := s.UpdateSessionOverall("ghost", &overall); err != nil {
		t.Fatalf("unknown session should be a no-op, got: %v", err)
	}
}

func TestListSessionsMostRecentFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		err := s.PutSession(types.Session{
			SessionID: id,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d sessions, want 3", len(got))
	}
	if got[0].SessionID != "c" || got[2].SessionID != "a" {
		t.Errorf("wrong order: %s, %s, %s", got[0].SessionID, got[1].SessionID, got[2].SessionID)
	}
}

func TestNormalizeSessionDocVariants(t *testing.T) {
	variantA := map[string]interface{}{
		"_id":          "sid-1",
		"company":      "Acme",
		"role":         "SRE",
		"startedAt":    "2025-06-01T12:00:00Z",
		"endedAt":      "2025-06-01T13:00:00Z",
		"overallScore": 6.5,
	}
	variantB := map[string]interface{}{
		"sessionId": "sid-1",
		"company":   "Acme",
		"role":      "SRE",
		"createdAt": "2025-06-01T12:00:00Z",
		"updatedAt": "2025-06-01T13:00:00Z",
		"scores":    map[string]interface{}{"overall": 6.5},
	}

	a := NormalizeSessionDoc(variantA)
	b := NormalizeSessionDoc(variantB)

	if a.SessionID != b.SessionID || a.Company != b.Company || a.Role != b.Role {
		t.Errorf("identity fields diverge:\nA: %+v\nB: %+v", a, b)
	}
	if !a.StartedAt.Equal(b.StartedAt) {
		t.Errorf("startedAt diverges: %v vs %v", a.StartedAt, b.StartedAt)
	}
	if a.OverallScore == nil || b.OverallScore == nil || *a.OverallScore != *b.OverallScore {
		t.Errorf("overall diverges: %v vs %v", a.OverallScore, b.OverallScore)
	}
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateUser("dev@example.com", "hash1"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := s.CreateUser("dev@example.com", "hash2"); err != ErrDuplicateEmail {
		t.Errorf("duplicate insert err = %v, want ErrDuplicateEmail", err)
	}

	hash, ok, err := s.GetUser("dev@example.com")
	if err != nil || !ok || hash != "hash1" {
		t.Errorf("GetUser = (%q, %v, %v)", hash, ok, err)
	}
	_, ok, err = s.GetUser("ghost@example.com")
	if err != nil || ok {
		t.Errorf("missing user should report absence, got ok=%v err=%v", ok, err)
	}
}
