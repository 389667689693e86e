package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"interviewd/internal/logging"
	"interviewd/internal/types"
)

// sessionDoc is the persisted document shape (variant A: `_id`/`startedAt`).
// Reads accept variant B (`sessionId`/`createdAt`, score possibly under
// `scores.overall`) as well; see NormalizeSessionDoc.
type sessionDoc struct {
	ID           string              `json:"_id"`
	UserEmail    string              `json:"userEmail,omitempty"`
	Company      string              `json:"company,omitempty"`
	Role         string              `json:"role,omitempty"`
	Level        string              `json:"level,omitempty"`
	StartedAt    string              `json:"startedAt"`
	EndedAt      *string             `json:"endedAt"`
	OverallScore *float64            `json:"overallScore,omitempty"`
	Setup        *types.SessionSetup `json:"setup,omitempty"`
}

// PutSession inserts or replaces the session document.
func (s *Store) PutSession(sess types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := sessionDoc{
		ID:           sess.SessionID,
		UserEmail:    sess.UserEmail,
		Company:      sess.Company,
		Role:         sess.Role,
		Level:        sess.Level,
		StartedAt:    sess.StartedAt.UTC().Format(time.RFC3339Nano),
		OverallScore: sess.OverallScore,
		Setup:        sess.Setup,
	}
	if sess.EndedAt != nil {
		ended := sess.EndedAt.UTC().Format(time.RFC3339Nano)
		doc.EndedAt = &ended
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal session doc: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO sessions (session_id, doc, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET doc = excluded.doc`,
		sess.SessionID, string(data), sess.StartedAt.UTC(),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("failed to put session %s: %v", sess.SessionID, err)
		return err
	}
	logging.StoreDebug("session stored: session=%s", sess.SessionID)
	return nil
}

// UpdateSessionOverall sets the session's overall score and end time.
// Missing sessions are a no-op: the caller treats score save as
// best-effort.
func (s *Store) UpdateSessionOverall(sessionID string, overall *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw string
	err := s.db.QueryRow(`SELECT doc FROM sessions WHERE session_id = ?`, sessionID).Scan(&raw)
	if err == sql.ErrNoRows {
		logging.StoreWarn("overall score save for unknown session %s skipped", sessionID)
		return nil
	}
	if err != nil {
		return err
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		doc = map[string]interface{}{"_id": sessionID}
	}
	if overall != nil {
		doc["overallScore"] = *overall
	} else {
		doc["overallScore"] = nil
	}
	doc["endedAt"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal session doc: %w", err)
	}
	_, err = s.db.Exec(`UPDATE sessions SET doc = ? WHERE session_id = ?`, string(data), sessionID)
	return err
}

// GetSession loads and normalizes one session. The boolean reports
// existence.
func (s *Store) GetSession(sessionID string) (types.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRow(`SELECT doc FROM sessions WHERE session_id = ?`, sessionID).Scan(&raw)
	if err == sql.ErrNoRows {
		return types.Session{}, false, nil
	}
	if err != nil {
		return types.Session{}, false, err
	}
	return normalizeRaw(sessionID, raw), true, nil
}

// ListSessions returns all sessions normalized, most recently created
// first.
func (s *Store) ListSessions() ([]types.Session, error) {
	timer := logging.StartTimer(logging.CategoryStore, "ListSessions")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT session_id, doc FROM sessions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []types.Session
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			continue
		}
		sessions = append(sessions, normalizeRaw(id, raw))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	return sessions, nil
}

func normalizeRaw(sessionID, raw string) types.Session {
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		logging.StoreWarn("session %s has unreadable doc: %v", sessionID, err)
		return types.Session{SessionID: sessionID}
	}
	sess := NormalizeSessionDoc(doc)
	if sess.SessionID == "" {
		sess.SessionID = sessionID
	}
	return sess
}

// NormalizeSessionDoc maps either historical session document shape onto
// the canonical Session:
//
//	variant A: {_id, startedAt, endedAt, overallScore, ...}
//	variant B: {sessionId, createdAt, updatedAt, scores: {overall}, ...}
func NormalizeSessionDoc(doc map[string]interface{}) types.Session {
	var sess types.Session

	sess.SessionID = firstString(doc, "sessionId", "_id")
	sess.UserEmail = firstString(doc, "userEmail")
	sess.Company = firstString(doc, "company")
	sess.Role = firstString(doc, "role")
	sess.Level = firstString(doc, "level")

	if t, ok := firstTime(doc, "startedAt", "createdAt"); ok {
		sess.StartedAt = t
	}
	if t, ok := firstTime(doc, "endedAt", "updatedAt"); ok {
		sess.EndedAt = &t
	}

	if v, ok := docFloat(doc["overallScore"]); ok {
		sess.OverallScore = &v
	} else if scores, ok := doc["scores"].(map[string]interface{}); ok {
		if v, ok := docFloat(scores["overall"]); ok {
			sess.OverallScore = &v
		}
	}

	if setupRaw, ok := doc["setup"]; ok {
		if data, err := json.Marshal(setupRaw); err == nil {
			var setup types.SessionSetup
			if json.Unmarshal(data, &setup) == nil {
				sess.Setup = &setup
			}
		}
	}

	return sess
}

func firstString(doc map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := doc[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstTime(doc map[string]interface{}, keys ...string) (time.Time, bool) {
	for _, k := range keys {
		s, ok := doc[k].(string)
		if !ok || s == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t, true
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func docFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
