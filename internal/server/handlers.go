package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"interviewd/internal/auth"
	"interviewd/internal/interview"
	"interviewd/internal/logging"
	"interviewd/internal/types"
)

type startRequest struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	Seniority string `json:"seniority"`
	Company   string `json:"company"`
	Context   string `json:"context"`
}

type startResponse struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decode(w, r, &req) {
		return
	}

	// The interviewer persona needs both fields; creation via /session
	// fills them from the brief before reaching Start.
	var missing []string
	if strings.TrimSpace(req.Role) == "" {
		missing = append(missing, "role")
	}
	if strings.TrimSpace(req.Seniority) == "" {
		missing = append(missing, "seniority")
	}
	if len(missing) > 0 {
		mapError(w, &interview.ValidationError{Missing: missing})
		return
	}

	res := s.orch.Start(r.Context(), interview.StartParams{
		Role:      req.Role,
		Seniority: req.Seniority,
		Company:   req.Company,
		Brief:     req.Context,
		SessionID: req.SessionID,
	})
	writeJSON(w, http.StatusOK, startResponse{SessionID: res.SessionID, Question: res.Question})
}

type answerRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type answerResponse struct {
	Feedback string `json:"feedback"`
	Question string `json:"question"`
	Score    *int   `json:"score"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.orch.Answer(r.Context(), req.SessionID, req.Text)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{Feedback: res.Feedback, Question: res.Next, Score: res.Score})
}

type saveScoreRequest struct {
	Scores  []interview.ScoreOverride `json:"scores"`
	Overall *float64                  `json:"overall"`
}

func (s *Server) handleSaveScore(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	// Best-effort by contract: a malformed body or row never turns into an
	// error response, the handler acknowledges whatever it could apply.
	var req saveScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logging.HTTPDebug("save-score body partially ignored: session=%s: %v", sessionID, err)
	}

	s.orch.SaveScore(sessionID, req.Scores, req.Overall)
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "overall": req.Overall})
}

type sessionRequest struct {
	Email     string `json:"email"`
	Company   string `json:"company"`
	Role      string `json:"role"`
	Level     string `json:"level"`
	UserText  string `json:"user_text"`
	SessionID string `json:"session_id"`
}

func (req sessionRequest) toCreate() interview.CreateSessionRequest {
	return interview.CreateSessionRequest{
		Email:     req.Email,
		Company:   req.Company,
		Role:      req.Role,
		Level:     req.Level,
		Brief:     req.UserText,
		SessionID: req.SessionID,
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.orch.CreateSession(r.Context(), req.toCreate())
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, startResponse{SessionID: res.Session.SessionID, Question: res.Question})
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	var req sessionRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.orch.ResetSession(r.Context(), sessionID, req.toCreate())
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, startResponse{SessionID: res.Session.SessionID, Question: res.Question})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.db.ListSessions()
	if err != nil {
		logging.HTTPDebug("session list failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if sessions == nil {
		sessions = []types.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

type summaryResponse struct {
	Session types.Session `json:"session"`
	Turns   []types.Turn  `json:"turns"`
}

// handleSessionSummary returns the normalized session with its turns. An
// unknown id still answers 200 with bare metadata, matching the dashboard
// contract.
func (s *Server) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	sess, ok, err := s.db.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		sess = types.Session{SessionID: sessionID}
	}

	turns, err := s.db.GetTurns(sessionID)
	if err != nil {
		logging.HTTPDebug("turns lookup failed: session=%s: %v", sessionID, err)
	}
	if turns == nil {
		turns = []types.Turn{}
	}
	writeJSON(w, http.StatusOK, summaryResponse{Session: sess, Turns: turns})
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.auth.Signup(req.Email, req.Password); err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Signup successful"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.auth.Login(req.Email, req.Password); err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Login successful",
		"email":   auth.NormalizeEmail(req.Email),
	})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.auth.ForgotPassword(req.Email); err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Password reset link sent to " + auth.NormalizeEmail(req.Email),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	storage := "ok"
	if err := s.db.Ping(); err != nil {
		storage = "unavailable"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    s.cfg.Name,
		"version": s.cfg.Version,
		"storage": storage,
	})
}
