package interview

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"interviewd/internal/logging"
	"interviewd/internal/types"
)

// CreateSessionRequest carries the form fields plus the free-text brief a
// candidate submits when opening a session.
type CreateSessionRequest struct {
	Email     string
	Company   string
	Role      string
	Level     string
	Brief     string
	SessionID string
}

// CreateResult pairs the persisted session aggregate with the first
// question.
type CreateResult struct {
	Session  types.Session
	Question string
}

// CreateSession enriches the form with slots extracted from the brief,
// validates the merge, starts the interview and persists the session
// document. Extraction is best-effort: a failed slot call leaves the form
// values as-is. Explicit form values always win over extracted ones.
//
// Persisting the session document is fire-and-forget; a write failure is
// logged, not surfaced.
func (o *Orchestrator) CreateSession(ctx context.Context, req CreateSessionRequest) (CreateResult, error) {
	form := types.SessionSlots{
		Company: strings.TrimSpace(req.Company),
		Role:    strings.TrimSpace(req.Role),
		Level:   strings.TrimSpace(req.Level),
	}

	extracted := o.extractSlots(ctx, req.Brief)
	merged := mergeSlots(form, extracted)

	var missing []string
	if merged.Company == "" {
		missing = append(missing, "company")
	}
	if merged.Role == "" {
		missing = append(missing, "role")
	}
	if len(missing) > 0 {
		return CreateResult{}, &ValidationError{Missing: missing}
	}

	result := o.Start(ctx, StartParams{
		Role:      merged.Role,
		Seniority: merged.Level,
		Company:   merged.Company,
		Brief:     req.Brief,
		SessionID: req.SessionID,
	})

	sess := types.Session{
		SessionID: result.SessionID,
		UserEmail: strings.ToLower(strings.TrimSpace(req.Email)),
		Company:   merged.Company,
		Role:      merged.Role,
		Level:     merged.Level,
		StartedAt: time.Now().UTC(),
		Setup: &types.SessionSetup{
			Form:   form,
			Slots:  extracted,
			Merged: merged,
			Brief:  req.Brief,
		},
	}
	if err := o.persist.PutSession(sess); err != nil {
		logging.SessionWarn("session doc persist failed: session=%s: %v", sess.SessionID, err)
	}

	return CreateResult{Session: sess, Question: result.Question}, nil
}

// ResetSession discards the session's transcript and re-runs creation
// under the same id, re-extracting slots from the (possibly new) brief.
// Fails with not-found when no transcript exists.
func (o *Orchestrator) ResetSession(ctx context.Context, sessionID string, req CreateSessionRequest) (CreateResult, error) {
	if !o.convo.Exists(sessionID) {
		return CreateResult{}, ErrSessionNotFound
	}
	o.convo.Discard(sessionID)
	req.SessionID = sessionID
	return o.CreateSession(ctx, req)
}

// extractSlots asks the model for the company/role/level hidden in the
// brief. Empty brief, model failure or unparseable output all yield empty
// slots.
func (o *Orchestrator) extractSlots(ctx context.Context, brief string) types.SessionSlots {
	brief = strings.TrimSpace(brief)
	if brief == "" {
		return types.SessionSlots{}
	}

	ectx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	raw, err := o.client.ChatDeterministic(ectx, []types.Message{
		types.System(slotPrompt),
		types.User(brief),
	})
	if err != nil {
		logging.LLMError("slot extraction failed, relying on form values: %v", err)
		return types.SessionSlots{}
	}

	jsonStr := slotJSON(raw)
	if jsonStr == "" {
		logging.SessionDebug("slot extraction returned no JSON object")
		return types.SessionSlots{}
	}
	var slots types.SessionSlots
	if err := json.Unmarshal([]byte(jsonStr), &slots); err != nil {
		logging.SessionDebug("slot extraction JSON parse failed: %v", err)
		return types.SessionSlots{}
	}
	slots.Company = strings.TrimSpace(slots.Company)
	slots.Role = strings.TrimSpace(slots.Role)
	slots.Level = strings.TrimSpace(slots.Level)
	return slots
}

// mergeSlots fills only the form's blanks from the extracted slots.
func mergeSlots(form, extracted types.SessionSlots) types.SessionSlots {
	merged := form
	if merged.Company == "" {
		merged.Company = extracted.Company
	}
	if merged.Role == "" {
		merged.Role = extracted.Role
	}
	if merged.Level == "" {
		merged.Level = extracted.Level
	}
	return merged
}

// slotJSON pulls the first JSON object out of the model reply, tolerating
// markdown fences and prose around it.
func slotJSON(response string) string {
	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(response); i++ {
		switch response[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}
