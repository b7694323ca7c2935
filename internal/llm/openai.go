package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIGenerator streams chat completions through the openai-go SDK. Gemini is
// served by the same client pointed at its OpenAI-compatible endpoint.
type OpenAIGenerator struct {
	provider string
	model    string
	client   openai.Client
}

// NewOpenAIGenerator builds a streaming generator. baseURL may be empty for api.openai.com.
func NewOpenAIGenerator(provider, apiKey, model, baseURL string, extra ...option.RequestOption) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, errors.New(provider + " api key missing")
	}
	if model == "" {
		return nil, errors.New(provider + " model is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// nothing is retried automatically
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, extra...)

	return &OpenAIGenerator{
		provider: provider,
		model:    model,
		client:   openai.NewClient(opts...),
	}, nil
}

func (g *OpenAIGenerator) Name() string { return g.provider }

func (g *OpenAIGenerator) Stream(ctx context.Context, p Prompt, onDelta DeltaFunc) (text string, err error) {
	start := time.Now()
	defer func() { RecordProviderCall(time.Since(start), err) }()

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if p.System != "" {
		msgs = append(msgs, openai.SystemMessage(p.System))
	}
	msgs = append(msgs, openai.UserMessage(p.User))

	stream := g.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(g.model),
		Messages: msgs,
	})
	defer stream.Close()

	var sb strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return sb.String(), err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return sb.String(), &ProviderError{Provider: g.provider, Op: "chat completion", Err: err}
	}
	if sb.Len() == 0 {
		return "", &ProviderError{Provider: g.provider, Op: "chat completion", Err: errors.New("empty response")}
	}
	return sb.String(), nil
}
