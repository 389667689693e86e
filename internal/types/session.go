package types

import "time"

// SessionSetup records how a session's company/role/level were assembled:
// the raw form values, the slots extracted from the candidate brief, and the
// merged result that won.
type SessionSetup struct {
	Form   SessionSlots `json:"form"`
	Slots  SessionSlots `json:"slots"`
	Merged SessionSlots `json:"merged"`
	Brief  string       `json:"brief,omitempty"`
}

// SessionSlots is the company/role/level triple in any of its three stages.
type SessionSlots struct {
	Company string `json:"company,omitempty"`
	Role    string `json:"role,omitempty"`
	Level   string `json:"level,omitempty"`
}

// Session is the canonical persisted aggregate for one interview attempt.
// Legacy document variants are normalized into this shape by the store and
// never leak past it.
type Session struct {
	SessionID    string        `json:"sessionId"`
	UserEmail    string        `json:"userEmail,omitempty"`
	Company      string        `json:"company,omitempty"`
	Role         string        `json:"role,omitempty"`
	Level        string        `json:"level,omitempty"`
	StartedAt    time.Time     `json:"startedAt"`
	EndedAt      *time.Time    `json:"endedAt,omitempty"`
	OverallScore *float64      `json:"overallScore,omitempty"`
	Setup        *SessionSetup `json:"setup,omitempty"`
}

// Turn is one persisted question/answer/feedback/score record. Index is a
// write-time snapshot: the count of turns already recorded for the session
// at insertion, never re-derived after deletions.
type Turn struct {
	SessionID  string    `json:"sessionId"`
	Index      int       `json:"index"`
	Question   string    `json:"question"`
	UserAnswer string    `json:"userAnswer"`
	Feedback   string    `json:"feedback"`
	Score      *int      `json:"score,omitempty"`
	Metrics    *Metrics  `json:"metrics,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
