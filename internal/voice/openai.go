package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/aicoe-genesis/genesis-backend/internal/llm"
)

// OpenAIBackend speaks the OpenAI Realtime socket protocol.
type OpenAIBackend struct {
	settings OpenAISettings
}

func NewOpenAIBackend(s OpenAISettings) *OpenAIBackend {
	return &OpenAIBackend{settings: s}
}

func (b *OpenAIBackend) Name() string { return ProviderOpenAI }

type openAIServerEvent struct {
	Type       string `json:"type"`
	Delta      string `json:"delta"`
	Transcript string `json:"transcript"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (b *OpenAIBackend) Connect(ctx context.Context, opts SessionOptions) (Session, error) {
	u, err := url.Parse(b.settings.WSURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("model", b.settings.Model)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+b.settings.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	sock, err := dialProvider(ctx, ProviderOpenAI, u.String(), header)
	if err != nil {
		return nil, err
	}

	session := map[string]any{
		"modalities":                []string{"audio", "text"},
		"voice":                     b.settings.Voice,
		"input_audio_format":        "pcm16",
		"output_audio_format":       "pcm16",
		"input_audio_transcription": map[string]any{"model": "whisper-1"},
		"turn_detection":            map[string]any{"type": "server_vad"},
	}
	if opts.Instructions != "" {
		session["instructions"] = opts.Instructions
	}
	if err := sock.writeJSON(map[string]any{"type": "session.update", "session": session}); err != nil {
		_ = sock.Close()
		return nil, err
	}

	go sock.readLoop(decodeOpenAI)
	return &openAISession{sock: sock}, nil
}

func decodeOpenAI(data []byte) []Event {
	var ev openAIServerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return []Event{{Kind: EventError, Err: &llm.ProviderError{Provider: ProviderOpenAI, Op: "decode", Err: err}}}
	}

	switch ev.Type {
	case "response.audio.delta":
		pcm, err := base64.StdEncoding.DecodeString(ev.Delta)
		if err != nil {
			return []Event{{Kind: EventError, Err: &llm.ProviderError{Provider: ProviderOpenAI, Op: "decode audio", Err: err}}}
		}
		return []Event{{Kind: EventAudio, Audio: pcm}}
	case "response.audio_transcript.done":
		return []Event{{Kind: EventTranscript, Role: RoleAssistant, Text: ev.Transcript}}
	case "conversation.item.input_audio_transcription.completed":
		return []Event{{Kind: EventTranscript, Role: RoleUser, Text: ev.Transcript}}
	case "response.done":
		return []Event{{Kind: EventTurnComplete}}
	case "error":
		msg := "unknown error"
		if ev.Error != nil && ev.Error.Message != "" {
			msg = ev.Error.Message
		}
		return []Event{{Kind: EventError, Err: &llm.ProviderError{Provider: ProviderOpenAI, Op: "receive", Err: errors.New(msg)}}}
	}
	return nil
}

type openAISession struct {
	sock *providerSocket
}

func (s *openAISession) SendAudio(_ context.Context, pcm []byte) error {
	return s.sock.writeJSON(map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(pcm),
	})
}

func (s *openAISession) SendText(_ context.Context, text string) error {
	err := s.sock.writeJSON(map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type": "message",
			"role": "user",
			"content": []map[string]any{
				{"type": "input_text", "text": text},
			},
		},
	})
	if err != nil {
		return err
	}
	return s.sock.writeJSON(map[string]any{"type": "response.create"})
}

func (s *openAISession) Events() <-chan Event { return s.sock.Events() }

func (s *openAISession) Close() error { return s.sock.Close() }
