// Package llm provides the upstream language-model transport used for
// question generation, feedback, and scoring.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"interviewd/internal/types"
)

// Chat sampling temperatures. Scoring runs deterministic; the interview
// loop keeps a little variety.
const (
	chatTemperature          = 0.7
	deterministicTemperature = 0.0
)

// Client defines the capability interface for model providers. Both
// operations take a full transcript and return the assistant text; the
// deterministic variant pins temperature 0 and is used by the scoring
// pipeline. Neither applies its own fallback: callers bound the wait and
// substitute fallback values on error.
type Client interface {
	Chat(ctx context.Context, messages []types.Message) (string, error)
	ChatDeterministic(ctx context.Context, messages []types.Message) (string, error)
}

// Config holds provider configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// New selects a provider implementation by name.
func New(provider string, cfg Config) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai", "":
		return NewOpenAIClient(cfg), nil
	case "gemini":
		return NewGeminiClient(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", provider)
	}
}
