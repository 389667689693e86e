package interview

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewd/internal/convo"
	"interviewd/internal/scoring"
	"interviewd/internal/types"
)

// fakeClient scripts the two model operations independently.
type fakeClient struct {
	mu       sync.Mutex
	chatFn   func(messages []types.Message) (string, error)
	detFn    func(messages []types.Message) (string, error)
	chatSeen [][]types.Message
	detSeen  [][]types.Message
}

func (f *fakeClient) Chat(_ context.Context, messages []types.Message) (string, error) {
	f.mu.Lock()
	f.chatSeen = append(f.chatSeen, messages)
	f.mu.Unlock()
	if f.chatFn == nil {
		return "ok", nil
	}
	return f.chatFn(messages)
}

func (f *fakeClient) ChatDeterministic(_ context.Context, messages []types.Message) (string, error) {
	f.mu.Lock()
	f.detSeen = append(f.detSeen, messages)
	f.mu.Unlock()
	if f.detFn == nil {
		return goodMetricsJSON, nil
	}
	return f.detFn(messages)
}

const goodMetricsJSON = `{"technical_correctness": 8, "clarity": 10, "completeness": 6, "tone": 4,
	"flags": {"gibberish": false, "off_topic": false, "dont_know": false, "policy_violation": false},
	"notes": "solid"}`

// scorePatch records one UpdateTurnScore call.
type scorePatch struct {
	Index int
	Score int
}

// fakePersist records every write; individual operations can be failed.
type fakePersist struct {
	mu           sync.Mutex
	sessions     map[string]types.Session
	turns        map[string][]types.Turn
	overall      map[string]*float64
	scorePatches []scorePatch
	insertErr    error
	putErr       error
	countErr     error
}

func newFakePersist() *fakePersist {
	return &fakePersist{
		sessions: make(map[string]types.Session),
		turns:    make(map[string][]types.Turn),
		overall:  make(map[string]*float64),
	}
}

func (p *fakePersist) PutSession(sess types.Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.putErr != nil {
		return p.putErr
	}
	p.sessions[sess.SessionID] = sess
	return nil
}

func (p *fakePersist) UpdateSessionOverall(sessionID string, overall *float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overall[sessionID] = overall
	return nil
}

func (p *fakePersist) CountTurns(sessionID string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.countErr != nil {
		return 0, p.countErr
	}
	return len(p.turns[sessionID]), nil
}

func (p *fakePersist) InsertTurn(turn types.Turn) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.insertErr != nil {
		return p.insertErr
	}
	p.turns[turn.SessionID] = append(p.turns[turn.SessionID], turn)
	return nil
}

func (p *fakePersist) UpdateTurnScore(sessionID string, index, score int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scorePatches = append(p.scorePatches, scorePatch{Index: index, Score: score})
	for i := range p.turns[sessionID] {
		if p.turns[sessionID][i].Index == index {
			s := score
			p.turns[sessionID][i].Score = &s
		}
	}
	return nil
}

func (p *fakePersist) turnCount(sessionID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.turns[sessionID])
}

func newTestOrchestrator(client *fakeClient, persist *fakePersist) (*Orchestrator, *convo.Store) {
	store := convo.NewStore()
	o := New(store, client, scoring.NewPipeline(client), persist, 5*time.Second)
	return o, store
}

func TestStartGeneratesSessionID(t *testing.T) {
	client := &fakeClient{chatFn: func([]types.Message) (string, error) {
		return "What is a B-tree?", nil
	}}
	o, store := newTestOrchestrator(client, newFakePersist())

	res := o.Start(context.Background(), StartParams{Role: "data engineer", Seniority: "senior"})

	require.NotEmpty(t, res.SessionID)
	assert.Equal(t, "What is a B-tree?", res.Question)
	// system framing + first-question prompt + assistant reply
	assert.Equal(t, 3, store.Len(res.SessionID))
}

func TestStartReusesExplicitIDAndOverwrites(t *testing.T) {
	client := &fakeClient{}
	o, store := newTestOrchestrator(client, newFakePersist())

	first := o.Start(context.Background(), StartParams{Role: "sre", SessionID: "sess-1"})
	require.Equal(t, "sess-1", first.SessionID)
	store.Add("sess-1", types.User("extra"))
	require.Equal(t, 4, store.Len("sess-1"))

	second := o.Start(context.Background(), StartParams{Role: "sre", SessionID: "sess-1"})
	assert.Equal(t, "sess-1", second.SessionID)
	// restart replaces, never appends
	assert.Equal(t, 3, store.Len("sess-1"))
}

func TestStartFallsBackOnModelFailure(t *testing.T) {
	client := &fakeClient{chatFn: func([]types.Message) (string, error) {
		return "", errors.New("upstream down")
	}}
	o, _ := newTestOrchestrator(client, newFakePersist())

	res := o.Start(context.Background(), StartParams{Role: "analyst", SessionID: "s"})
	assert.Equal(t, fallbackFirstQuestion, res.Question)
}

func TestAnswerUnknownSession(t *testing.T) {
	persist := newFakePersist()
	o, _ := newTestOrchestrator(&fakeClient{}, persist)

	_, err := o.Answer(context.Background(), "nope", "my answer")
	require.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, persist.turnCount("nope"))
}

func TestAnswerSplitsMarker(t *testing.T) {
	client := &fakeClient{chatFn: func([]types.Message) (string, error) {
		return "Good job.\n\nNEXT: What is a hash join?", nil
	}}
	persist := newFakePersist()
	o, _ := newTestOrchestrator(client, persist)
	o.Start(context.Background(), StartParams{Role: "data engineer", SessionID: "s"})

	res, err := o.Answer(context.Background(), "s", "I used an index.")
	require.NoError(t, err)
	assert.Equal(t, "Good job.", res.Feedback)
	assert.Equal(t, "What is a hash join?", res.Next)
	require.NotNil(t, res.Score)
	// 0.5*8 + 0.25*6 + 0.2*10 + 0.05*4 = 7.7, rounds to 8
	assert.Equal(t, 8, *res.Score)
}

func TestAnswerWithoutMarkerEndsInterview(t *testing.T) {
	client := &fakeClient{chatFn: func([]types.Message) (string, error) {
		return "Thanks, that concludes our session.", nil
	}}
	o, _ := newTestOrchestrator(client, newFakePersist())
	o.Start(context.Background(), StartParams{Role: "pm", SessionID: "s"})

	res, err := o.Answer(context.Background(), "s", "final answer")
	require.NoError(t, err)
	assert.Equal(t, "Thanks, that concludes our session.", res.Feedback)
	assert.Equal(t, terminalQuestion, res.Next)
}

func TestAnswerPersistsTurnWithSnapshotIndex(t *testing.T) {
	question := "What is a B-tree?"
	client := &fakeClient{chatFn: func([]types.Message) (string, error) {
		return question + "\n\nNEXT: follow-up", nil
	}}
	persist := newFakePersist()
	o, _ := newTestOrchestrator(client, persist)
	o.Start(context.Background(), StartParams{Role: "dba", SessionID: "s"})

	for i := 0; i < 3; i++ {
		_, err := o.Answer(context.Background(), "s", "answer")
		require.NoError(t, err)
	}

	require.Equal(t, 3, persist.turnCount("s"))
	for i, turn := range persist.turns["s"] {
		assert.Equal(t, i, turn.Index)
		assert.Equal(t, "answer", turn.UserAnswer)
		assert.NotNil(t, turn.Metrics)
	}
}

func TestAnswerSurvivesScoringFailure(t *testing.T) {
	client := &fakeClient{
		chatFn: func([]types.Message) (string, error) {
			return "Fine.\n\nNEXT: next q", nil
		},
		detFn: func([]types.Message) (string, error) {
			return "", errors.New("scoring upstream down")
		},
	}
	persist := newFakePersist()
	o, _ := newTestOrchestrator(client, persist)
	o.Start(context.Background(), StartParams{Role: "dev", SessionID: "s"})

	res, err := o.Answer(context.Background(), "s", "answer")
	require.NoError(t, err)
	assert.Equal(t, "Fine.", res.Feedback)
	assert.Nil(t, res.Score)

	require.Equal(t, 1, persist.turnCount("s"))
	assert.Nil(t, persist.turns["s"][0].Score)
	assert.Nil(t, persist.turns["s"][0].Metrics)
}

func TestAnswerSurvivesPersistenceFailure(t *testing.T) {
	client := &fakeClient{chatFn: func([]types.Message) (string, error) {
		return "Nice.\n\nNEXT: and then?", nil
	}}
	persist := newFakePersist()
	persist.insertErr = errors.New("disk full")
	o, _ := newTestOrchestrator(client, persist)
	o.Start(context.Background(), StartParams{Role: "dev", SessionID: "s"})

	res, err := o.Answer(context.Background(), "s", "answer")
	require.NoError(t, err)
	assert.Equal(t, "Nice.", res.Feedback)
	assert.Equal(t, "and then?", res.Next)
}

func TestAnswerUsesFallbackFeedbackOnModelFailure(t *testing.T) {
	calls := 0
	client := &fakeClient{chatFn: func([]types.Message) (string, error) {
		calls++
		if calls == 1 {
			return "first question", nil
		}
		return "", errors.New("timeout")
	}}
	o, _ := newTestOrchestrator(client, newFakePersist())
	o.Start(context.Background(), StartParams{Role: "dev", SessionID: "s"})

	res, err := o.Answer(context.Background(), "s", "answer")
	require.NoError(t, err)
	assert.Equal(t, "Good start. Consider adding specific metrics next time.", res.Feedback)
	assert.Equal(t, "What are your favorite data quality checks and why?", res.Next)
}

func TestSaveScoreSkipsNegativeIndex(t *testing.T) {
	client := &fakeClient{chatFn: func([]types.Message) (string, error) {
		return "ok\n\nNEXT: q2", nil
	}}
	persist := newFakePersist()
	o, _ := newTestOrchestrator(client, persist)
	o.Start(context.Background(), StartParams{Role: "dev", SessionID: "s"})
	_, err := o.Answer(context.Background(), "s", "answer")
	require.NoError(t, err)

	nine, five := 9, 5
	overall := 9.0
	o.SaveScore("s", []ScoreOverride{{Index: 0, Score: &nine}, {Index: -1, Score: &five}}, &overall)

	require.Len(t, persist.scorePatches, 1)
	assert.Equal(t, scorePatch{Index: 0, Score: 9}, persist.scorePatches[0])
	require.NotNil(t, persist.turns["s"][0].Score)
	assert.Equal(t, 9, *persist.turns["s"][0].Score)
	require.NotNil(t, persist.overall["s"])
	assert.Equal(t, 9.0, *persist.overall["s"])
}

func TestSaveScoreSkipsNullScore(t *testing.T) {
	persist := newFakePersist()
	o, _ := newTestOrchestrator(&fakeClient{}, persist)

	o.SaveScore("s", []ScoreOverride{{Index: 0, Score: nil}}, nil)
	assert.Empty(t, persist.scorePatches)
}

func TestScoreOverrideDecodesLeniently(t *testing.T) {
	var overrides []ScoreOverride
	raw := `[{"index": "oops", "score": 5},
		{"index": 0, "score": 9},
		{"index": "2", "score": "7"},
		{"index": 1, "score": null},
		"not even an object"]`
	require.NoError(t, json.Unmarshal([]byte(raw), &overrides))
	require.Len(t, overrides, 5)

	// Uncoercible index marks the row skippable, never fails the batch.
	assert.Equal(t, -1, overrides[0].Index)
	assert.Equal(t, 0, overrides[1].Index)
	require.NotNil(t, overrides[1].Score)
	assert.Equal(t, 9, *overrides[1].Score)
	// Numeric strings coerce.
	assert.Equal(t, 2, overrides[2].Index)
	require.NotNil(t, overrides[2].Score)
	assert.Equal(t, 7, *overrides[2].Score)
	// Null score survives decoding and is skipped at apply time.
	assert.Equal(t, 1, overrides[3].Index)
	assert.Nil(t, overrides[3].Score)
	assert.Equal(t, -1, overrides[4].Index)
}

func TestResetReusesSessionID(t *testing.T) {
	client := &fakeClient{}
	o, store := newTestOrchestrator(client, newFakePersist())
	o.Start(context.Background(), StartParams{Role: "dev", SessionID: "s"})
	store.Add("s", types.User("old message"))

	res, err := o.Reset(context.Background(), "s", StartParams{Role: "sre"})
	require.NoError(t, err)
	assert.Equal(t, "s", res.SessionID)
	assert.Equal(t, 3, store.Len("s"))
}

func TestResetUnknownSession(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeClient{}, newFakePersist())
	_, err := o.Reset(context.Background(), "ghost", StartParams{Role: "dev"})
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSplitFeedback(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		feedback string
		next     string
	}{
		{"marker present", "Good job.\n\nNEXT: What is a hash join?", "Good job.", "What is a hash join?"},
		{"marker absent", "All done here.", "All done here.", terminalQuestion},
		{"marker first", "NEXT: q only", "", "q only"},
		{"marker twice splits on first", "a NEXT: b NEXT: c", "a", "b NEXT: c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feedback, next := splitFeedback(tt.raw)
			assert.Equal(t, tt.feedback, feedback)
			assert.Equal(t, tt.next, next)
		})
	}
}

func TestConcurrentAnswersStaySerialized(t *testing.T) {
	client := &fakeClient{chatFn: func([]types.Message) (string, error) {
		time.Sleep(5 * time.Millisecond)
		return "ok\n\nNEXT: more", nil
	}}
	persist := newFakePersist()
	o, _ := newTestOrchestrator(client, persist)
	o.Start(context.Background(), StartParams{Role: "dev", SessionID: "s"})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.Answer(context.Background(), "s", "answer")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, 4, persist.turnCount("s"))
	seen := make(map[int]bool)
	for _, turn := range persist.turns["s"] {
		assert.False(t, seen[turn.Index], "duplicate turn index %d", turn.Index)
		seen[turn.Index] = true
	}
}
