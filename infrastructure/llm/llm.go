package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/core/config"
)

var ErrNoResponse = errors.New("model returned no content")

// Options tune one completion.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	// JSONMode asks the provider for a JSON object response.
	JSONMode bool
}

// Completer runs a single prompt and returns the raw model text. Callers
// must not assume the text is valid JSON even in JSON mode.
type Completer interface {
	Complete(ctx context.Context, userPrompt, systemPrompt string, opts Options) (string, error)
}

// New builds the configured provider wrapped in a circuit breaker.
func New(ctx context.Context, cfg config.AIConfig) (*Breaker, error) {
	var (
		inner Completer
		err   error
	)
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
		inner = NewOpenAI(cfg.OpenAIKey)
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
		inner, err = NewGemini(ctx, cfg.GeminiKey)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
	return NewBreaker("llm-"+strings.ToLower(cfg.Provider), inner), nil
}
