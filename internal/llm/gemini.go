package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"interviewd/internal/logging"
	"interviewd/internal/types"
)

// GeminiClient implements Client using Google's GenAI SDK.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(cfg Config) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	model := cfg.Model
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = "gemini-2.0-flash"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{client: client, model: model, timeout: timeout}, nil
}

// Chat sends the transcript at the interview temperature.
func (c *GeminiClient) Chat(ctx context.Context, messages []types.Message) (string, error) {
	return c.generate(ctx, messages, chatTemperature)
}

// ChatDeterministic sends the transcript at temperature 0.
func (c *GeminiClient) ChatDeterministic(ctx context.Context, messages []types.Message) (string, error) {
	return c.generate(ctx, messages, deterministicTemperature)
}

func (c *GeminiClient) generate(ctx context.Context, messages []types.Message, temperature float64) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	startTime := time.Now()
	logging.LLMDebug("[Gemini] generate: model=%s messages=%d temp=%.1f", c.model, len(messages), temperature)

	// Gemini has no system role in contents; system messages become the
	// system instruction, the rest map user/assistant -> user/model.
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case types.RoleSystem:
			system = append(system, m.Content)
		case types.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	}
	if len(system) > 0 {
		genCfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, genCfg)
	if err != nil {
		logging.LLMError("[Gemini] generate failed after %v: %v", time.Since(startTime), err)
		return "", fmt.Errorf("Gemini generate failed: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", fmt.Errorf("no completion returned")
	}

	logging.LLM("[Gemini] generate: done in %v response_len=%d", time.Since(startTime), len(text))
	return text, nil
}
