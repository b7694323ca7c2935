package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aicoe-genesis/genesis-backend/internal/llm"
)

const geminiInputMime = "audio/pcm;rate=16000"

// GeminiBackend speaks the Gemini Live BidiGenerateContent socket protocol.
type GeminiBackend struct {
	settings GeminiSettings
}

func NewGeminiBackend(s GeminiSettings) *GeminiBackend {
	return &GeminiBackend{settings: s}
}

func (b *GeminiBackend) Name() string { return ProviderGemini }

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiText struct {
	Text string `json:"text"`
}

type geminiSetup struct {
	Setup struct {
		Model                    string         `json:"model"`
		GenerationConfig         map[string]any `json:"generationConfig"`
		SystemInstruction        *geminiContent `json:"systemInstruction,omitempty"`
		InputAudioTranscription  struct{}       `json:"inputAudioTranscription"`
		OutputAudioTranscription struct{}       `json:"outputAudioTranscription"`
	} `json:"setup"`
}

type geminiServerContent struct {
	ModelTurn           *geminiContent `json:"modelTurn"`
	TurnComplete        bool           `json:"turnComplete"`
	InputTranscription  *geminiText    `json:"inputTranscription"`
	OutputTranscription *geminiText    `json:"outputTranscription"`
}

type geminiServerMessage struct {
	SetupComplete *struct{}            `json:"setupComplete"`
	ServerContent *geminiServerContent `json:"serverContent"`
	Error         *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (b *GeminiBackend) Connect(ctx context.Context, opts SessionOptions) (Session, error) {
	u, err := url.Parse(b.settings.LiveURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("key", b.settings.APIKey)
	u.RawQuery = q.Encode()

	sock, err := dialProvider(ctx, ProviderGemini, u.String(), nil)
	if err != nil {
		return nil, err
	}

	var setup geminiSetup
	setup.Setup.Model = b.settings.Model
	setup.Setup.GenerationConfig = map[string]any{"responseModalities": []string{"AUDIO"}}
	if opts.Instructions != "" {
		setup.Setup.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: opts.Instructions}}}
	}
	if err := sock.writeJSON(setup); err != nil {
		_ = sock.Close()
		return nil, err
	}
	if err := awaitSetupComplete(ctx, sock); err != nil {
		_ = sock.Close()
		return nil, err
	}

	go sock.readLoop(decodeGemini)
	return &geminiSession{sock: sock}, nil
}

func awaitSetupComplete(ctx context.Context, sock *providerSocket) error {
	deadline := time.Now().Add(15 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = sock.ws.SetReadDeadline(deadline)
	defer sock.ws.SetReadDeadline(time.Time{})

	for {
		_, data, err := sock.ws.ReadMessage()
		if err != nil {
			return &llm.ProviderError{Provider: ProviderGemini, Op: "setup", Err: err}
		}
		var msg geminiServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Error != nil {
			return &llm.ProviderError{Provider: ProviderGemini, Op: "setup", Err: errors.New(msg.Error.Message)}
		}
		if msg.SetupComplete != nil {
			return nil
		}
	}
}

func decodeGemini(data []byte) []Event {
	var msg geminiServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return []Event{{Kind: EventError, Err: &llm.ProviderError{Provider: ProviderGemini, Op: "decode", Err: err}}}
	}
	if msg.Error != nil {
		return []Event{{Kind: EventError, Err: &llm.ProviderError{Provider: ProviderGemini, Op: "receive", Err: errors.New(msg.Error.Message)}}}
	}
	sc := msg.ServerContent
	if sc == nil {
		return nil
	}

	var out []Event
	if sc.InputTranscription != nil && strings.TrimSpace(sc.InputTranscription.Text) != "" {
		out = append(out, Event{Kind: EventTranscript, Role: RoleUser, Text: sc.InputTranscription.Text})
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData == nil || !strings.HasPrefix(p.InlineData.MimeType, "audio/") {
				continue
			}
			pcm, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				out = append(out, Event{Kind: EventError, Err: fmt.Errorf("gemini audio: %w", err)})
				continue
			}
			out = append(out, Event{Kind: EventAudio, Audio: pcm})
		}
	}
	if sc.OutputTranscription != nil && strings.TrimSpace(sc.OutputTranscription.Text) != "" {
		out = append(out, Event{Kind: EventTranscript, Role: RoleAssistant, Text: sc.OutputTranscription.Text})
	}
	if sc.TurnComplete {
		out = append(out, Event{Kind: EventTurnComplete})
	}
	return out
}

type geminiSession struct {
	sock *providerSocket
}

func (s *geminiSession) SendAudio(_ context.Context, pcm []byte) error {
	return s.sock.writeJSON(map[string]any{
		"realtimeInput": map[string]any{
			"audio": geminiInlineData{MimeType: geminiInputMime, Data: base64.StdEncoding.EncodeToString(pcm)},
		},
	})
}

func (s *geminiSession) SendText(_ context.Context, text string) error {
	return s.sock.writeJSON(map[string]any{
		"clientContent": map[string]any{
			"turns":        []geminiContent{{Role: "user", Parts: []geminiPart{{Text: text}}}},
			"turnComplete": true,
		},
	})
}

func (s *geminiSession) Events() <-chan Event { return s.sock.Events() }

func (s *geminiSession) Close() error { return s.sock.Close() }
