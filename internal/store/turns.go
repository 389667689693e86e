package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"interviewd/internal/logging"
	"interviewd/internal/types"
)

// CountTurns returns the number of turns recorded for a session. The
// orchestrator uses this as the next turn index at insert time.
func (s *Store) CountTurns(sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM turns WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}

// InsertTurn records one question/answer/feedback/score row.
func (s *Store) InsertTurn(turn types.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("storing turn: session=%s index=%d answer_len=%d",
		turn.SessionID, turn.Index, len(turn.UserAnswer))

	var metricsJSON sql.NullString
	if turn.Metrics != nil {
		if data, err := json.Marshal(turn.Metrics); err == nil {
			metricsJSON = sql.NullString{String: string(data), Valid: true}
		}
	}
	var score sql.NullInt64
	if turn.Score != nil {
		score = sql.NullInt64{Int64: int64(*turn.Score), Valid: true}
	}
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO turns (session_id, turn_index, question, user_answer, feedback, score, metrics_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.SessionID, turn.Index, turn.Question, turn.UserAnswer, turn.Feedback,
		score, metricsJSON, createdAt,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("failed to store turn: session=%s index=%d: %v",
			turn.SessionID, turn.Index, err)
		return err
	}
	return nil
}

// UpdateTurnScore patches the score of one turn addressed by (session,
// index). Unknown rows are a silent no-op, matching best-effort save.
func (s *Store) UpdateTurnScore(sessionID string, index, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE turns SET score = ? WHERE session_id = ? AND turn_index = ?`,
		score, sessionID, index,
	)
	if err != nil {
		logging.StoreWarn("turn score update failed: session=%s index=%d: %v", sessionID, index, err)
	}
	return err
}

// GetTurns returns a session's turns ordered by index.
func (s *Store) GetTurns(sessionID string) ([]types.Turn, error) {
	timer := logging.StartTimer(logging.CategoryStore, "GetTurns")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT turn_index, question, user_answer, feedback, score, metrics_json, created_at
		 FROM turns WHERE session_id = ? ORDER BY turn_index ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []types.Turn
	for rows.Next() {
		var (
			t           types.Turn
			score       sql.NullInt64
			metricsJSON sql.NullString
		)
		t.SessionID = sessionID
		if err := rows.Scan(&t.Index, &t.Question, &t.UserAnswer, &t.Feedback, &score, &metricsJSON, &t.CreatedAt); err != nil {
			continue
		}
		if score.Valid {
			n := int(score.Int64)
			t.Score = &n
		}
		if metricsJSON.Valid && metricsJSON.String != "" {
			var m types.Metrics
			if json.Unmarshal([]byte(metricsJSON.String), &m) == nil {
				t.Metrics = &m
			}
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
