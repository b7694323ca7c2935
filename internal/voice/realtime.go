package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aicoe-genesis/genesis-backend/internal/llm"
	"github.com/aicoe-genesis/genesis-backend/internal/logging"
)

const (
	realtimeTimeout  = 30 * time.Second
	maxProviderReply = 1 << 20
)

// RealtimeClient brokers browser-negotiated OpenAI Realtime sessions: it mints
// ephemeral client secrets and exchanges SDP offers for answers.
type RealtimeClient struct {
	settings OpenAISettings
	client   *http.Client
}

func NewRealtimeClient(s OpenAISettings) *RealtimeClient {
	return &RealtimeClient{
		settings: s,
		client:   &http.Client{Timeout: realtimeTimeout},
	}
}

// CreateSession returns the provider's session payload, including the ephemeral
// client_secret the browser uses to connect directly.
func (c *RealtimeClient) CreateSession(ctx context.Context, instructions string) (json.RawMessage, error) {
	logger := logging.New(ctx)
	body := map[string]any{
		"model": c.settings.Model,
		"voice": c.settings.Voice,
		"input_audio_transcription": map[string]any{
			"model": "whisper-1",
		},
	}
	if instructions != "" {
		body["instructions"] = instructions
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	reqURL := strings.TrimRight(c.settings.BaseURL, "/") + "/realtime/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	data, err := c.do(req, "create session")
	if err != nil {
		logger.Error("realtime_session", err)
		return nil, err
	}
	if !json.Valid(data) {
		return nil, &llm.ProviderError{Provider: ProviderOpenAI, Op: "create session", Err: fmt.Errorf("invalid JSON response")}
	}
	logger.Infof("realtime_session", "model=%s created", c.settings.Model)
	return json.RawMessage(data), nil
}

// Negotiate posts an SDP offer and returns the provider's SDP answer.
func (c *RealtimeClient) Negotiate(ctx context.Context, offer string) (string, error) {
	logger := logging.New(ctx)

	u, err := url.Parse(strings.TrimRight(c.settings.BaseURL, "/") + "/realtime")
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	q := u.Query()
	q.Set("model", c.settings.Model)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(offer))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/sdp")

	data, err := c.do(req, "negotiate")
	if err != nil {
		logger.Error("realtime_negotiate", err)
		return "", err
	}
	logger.Infof("realtime_negotiate", "answer_len=%d", len(data))
	return string(data), nil
}

func (c *RealtimeClient) do(req *http.Request, op string) (data []byte, err error) {
	start := time.Now()
	defer func() { llm.RecordProviderCall(time.Since(start), err) }()

	req.Header.Set("Authorization", "Bearer "+c.settings.APIKey)
	req.Header.Set("OpenAI-Beta", "realtime=v1")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &llm.ProviderError{Provider: ProviderOpenAI, Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err = io.ReadAll(io.LimitReader(resp.Body, maxProviderReply))
	if err != nil {
		return nil, &llm.ProviderError{Provider: ProviderOpenAI, Op: op, Err: err}
	}
	if resp.StatusCode >= 400 {
		return nil, &llm.ProviderError{
			Provider: ProviderOpenAI,
			Op:       op,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))),
		}
	}
	return data, nil
}
