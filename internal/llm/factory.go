package llm

import (
	"fmt"
	"log"

	"github.com/aicoe-genesis/genesis-backend/config"
)

// New selects the generator named by cfg.Provider and applies the request-rate cap.
func New(cfg config.LLMConfig) (Generator, error) {
	var (
		gen Generator
		err error
	)

	switch cfg.Provider {
	case "mock":
		log.Println("LLM_PROVIDER=mock, using mock generator")
		gen = NewMockGenerator()
	case "openai":
		gen, err = NewOpenAIGenerator("openai", cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	case "gemini", "":
		gen, err = NewOpenAIGenerator("gemini", cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewRateLimited(gen, cfg.RequestsPerMinute), nil
}
