// Package interview drives a session through its lifecycle: start, the
// answer/feedback loop, score save, and reset. It owns the conversation
// transcript and delegates grading to the scoring pipeline.
package interview

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"interviewd/internal/convo"
	"interviewd/internal/llm"
	"interviewd/internal/logging"
	"interviewd/internal/scoring"
	"interviewd/internal/types"
)

// defaultModelTimeout bounds each external model call made on the request
// path. On expiry a fixed fallback is substituted; the request never fails
// on model latency alone.
const defaultModelTimeout = 30 * time.Second

// Persistence is the storage collaborator. Writes made through it are
// best-effort relative to the user-visible response.
type Persistence interface {
	PutSession(sess types.Session) error
	UpdateSessionOverall(sessionID string, overall *float64) error
	CountTurns(sessionID string) (int, error)
	InsertTurn(turn types.Turn) error
	UpdateTurnScore(sessionID string, index, score int) error
}

// Orchestrator coordinates the transcript store, the model client, the
// scoring pipeline and persistence for every session operation.
type Orchestrator struct {
	convo   *convo.Store
	client  llm.Client
	scorer  *scoring.Pipeline
	persist Persistence
	timeout time.Duration
}

// New wires an orchestrator. A zero timeout falls back to the default
// 30-second model-call bound.
func New(store *convo.Store, client llm.Client, scorer *scoring.Pipeline, persist Persistence, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = defaultModelTimeout
	}
	return &Orchestrator{
		convo:   store,
		client:  client,
		scorer:  scorer,
		persist: persist,
		timeout: timeout,
	}
}

// StartParams carries the interview framing for Start and Reset.
type StartParams struct {
	Role      string
	Seniority string
	Company   string
	Brief     string
	SessionID string
}

// StartResult is the response of Start.
type StartResult struct {
	SessionID string
	Question  string
}

// Start seeds a fresh transcript under the given (or a generated) session
// id and produces the first question. Re-starting an existing id
// overwrites its transcript; the new system message becomes the sole seed.
// A failed or slow model call degrades to a fixed generic question.
func (o *Orchestrator) Start(ctx context.Context, p StartParams) StartResult {
	id := p.SessionID
	if id == "" {
		id = uuid.NewString()
	}

	o.convo.New(id, types.System(systemPrompt(p.Role, p.Seniority)))
	o.convo.Add(id, types.User(firstQuestionPrompt(p.Company, p.Role, p.Seniority, p.Brief)))

	question := o.chat(ctx, id, fallbackFirstQuestion)
	o.convo.Add(id, types.Assistant(question))

	logging.Session("session started: session=%s role=%q level=%q", id, p.Role, p.Seniority)
	return StartResult{SessionID: id, Question: question}
}

// AnswerResult is the response of Answer. Score is nil when scoring did
// not complete in time.
type AnswerResult struct {
	Feedback string
	Next     string
	Score    *int
}

// Answer records the candidate's answer, asks the model for feedback plus
// the next question, and grades the answer. The whole turn holds the
// session's lock so concurrent answers to one session cannot interleave
// their transcript appends.
//
// Persistence of the turn is fire-and-forget: a write failure is logged
// and the response is unaffected.
func (o *Orchestrator) Answer(ctx context.Context, sessionID, answer string) (AnswerResult, error) {
	if !o.convo.Exists(sessionID) {
		return AnswerResult{}, ErrSessionNotFound
	}

	release := o.convo.Acquire(sessionID)
	defer release()

	// Re-check under the lock: a concurrent reset may have discarded it.
	if !o.convo.Exists(sessionID) {
		return AnswerResult{}, ErrSessionNotFound
	}

	question := o.convo.LastAssistant(sessionID)

	o.convo.Add(sessionID, types.User(answer))
	o.convo.Add(sessionID, types.User(feedbackInstruction))

	raw := o.chat(ctx, sessionID, fallbackFeedback)
	o.convo.Add(sessionID, types.Assistant(raw))

	feedback, next := splitFeedback(raw)

	metrics, score := o.grade(ctx, sessionID, question, answer)

	index, err := o.persist.CountTurns(sessionID)
	if err != nil {
		logging.SessionWarn("turn count lookup failed: session=%s: %v", sessionID, err)
		index = 0
	}
	turn := types.Turn{
		SessionID:  sessionID,
		Index:      index,
		Question:   question,
		UserAnswer: answer,
		Feedback:   feedback,
		Score:      score,
		Metrics:    metrics,
		CreatedAt:  time.Now().UTC(),
	}
	if err := o.persist.InsertTurn(turn); err != nil {
		logging.SessionWarn("turn persist failed: session=%s index=%d: %v", sessionID, index, err)
	}

	return AnswerResult{Feedback: feedback, Next: next, Score: score}, nil
}

// grade runs the scoring pipeline under the model-call timeout. On any
// failure the turn carries no metrics and no score.
func (o *Orchestrator) grade(ctx context.Context, sessionID, question, answer string) (*types.Metrics, *int) {
	sctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	m, err := o.scorer.Score(sctx, question, answer)
	if err != nil {
		logging.ScoringWarn("scoring unavailable for session=%s: %v", sessionID, err)
		return nil, nil
	}
	n := scoring.RoundedOverall(m)
	return &m, &n
}

// ScoreOverride patches one persisted turn's score by index. Overrides
// arrive from the frontend as loosely typed JSON; decoding coerces each
// row on its own so one malformed entry never rejects the batch. A row
// that cannot be coerced ends up with Index -1 or a nil Score and is
// skipped by SaveScore.
type ScoreOverride struct {
	Index int
	Score *int
}

func (s *ScoreOverride) UnmarshalJSON(data []byte) error {
	var raw struct {
		Index interface{} `json:"index"`
		Score interface{} `json:"score"`
	}
	s.Index = -1
	s.Score = nil
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	s.Index = coerceIndex(raw.Index)
	s.Score = coerceScorePtr(raw.Score)
	return nil
}

func coerceIndex(v interface{}) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return -1
		}
		return n
	default:
		return -1
	}
}

func coerceScorePtr(v interface{}) *int {
	switch x := v.(type) {
	case float64:
		n := int(math.Round(x))
		return &n
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}

// SaveScore applies per-turn score overrides and the session's overall
// score. Rows with a negative or uncoercible index, or without a score,
// are skipped. Best-effort throughout: every persistence failure is
// logged and swallowed, the call always succeeds.
func (o *Orchestrator) SaveScore(sessionID string, overrides []ScoreOverride, overall *float64) {
	for _, ov := range overrides {
		if ov.Index < 0 || ov.Score == nil {
			logging.SessionDebug("unusable score override skipped: session=%s index=%d", sessionID, ov.Index)
			continue
		}
		if err := o.persist.UpdateTurnScore(sessionID, ov.Index, *ov.Score); err != nil {
			logging.SessionWarn("turn score save failed: session=%s index=%d: %v", sessionID, ov.Index, err)
		}
	}
	if err := o.persist.UpdateSessionOverall(sessionID, overall); err != nil {
		logging.SessionWarn("overall score save failed: session=%s: %v", sessionID, err)
	}
	logging.Session("score saved: session=%s overrides=%d", sessionID, len(overrides))
}

// Reset discards the session's transcript and restarts it in place with
// the same id. Fails with not-found when no transcript exists.
func (o *Orchestrator) Reset(ctx context.Context, sessionID string, p StartParams) (StartResult, error) {
	if !o.convo.Exists(sessionID) {
		return StartResult{}, ErrSessionNotFound
	}
	o.convo.Discard(sessionID)
	p.SessionID = sessionID
	return o.Start(ctx, p), nil
}

// chat performs one model call over the session's transcript under the
// configured timeout, substituting fallback on any failure.
func (o *Orchestrator) chat(ctx context.Context, sessionID, fallback string) string {
	transcript, ok := o.convo.Get(sessionID)
	if !ok {
		return fallback
	}

	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	reply, err := o.client.Chat(cctx, transcript)
	if err != nil {
		logging.LLMError("chat failed for session=%s, using fallback: %v", sessionID, err)
		return fallback
	}
	return strings.TrimSpace(reply)
}

// splitFeedback divides the model output on the first NEXT: marker. With
// no marker the whole text is feedback and the interview is over.
func splitFeedback(raw string) (feedback, next string) {
	if i := strings.Index(raw, nextMarker); i >= 0 {
		return strings.TrimSpace(raw[:i]), strings.TrimSpace(raw[i+len(nextMarker):])
	}
	return strings.TrimSpace(raw), terminalQuestion
}
