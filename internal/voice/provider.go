// Package voice relays browser audio and text to a realtime voice provider.
package voice

import "github.com/aicoe-genesis/genesis-backend/config"

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderNone   = "none"
)

type OpenAISettings struct {
	Enabled bool
	APIKey  string
	Model   string
	Voice   string
	BaseURL string
	WSURL   string
}

type GeminiSettings struct {
	Enabled bool
	APIKey  string
	Model   string
	LiveURL string
}

// ProviderConfig is resolved once at startup and never mutated; relay handlers
// receive it by value.
type ProviderConfig struct {
	provider string
	openai   OpenAISettings
	gemini   GeminiSettings
}

// NewProviderConfig resolves the realtime settings. A provider is enabled only when
// its flag is on and it has an API key. The configured default wins if enabled,
// otherwise the first enabled provider, otherwise voice is off.
func NewProviderConfig(rt config.RealtimeConfig, keys config.LLMConfig) ProviderConfig {
	pc := ProviderConfig{
		openai: OpenAISettings{
			Enabled: rt.OpenAIEnabled && keys.OpenAIAPIKey != "",
			APIKey:  keys.OpenAIAPIKey,
			Model:   rt.OpenAIModel,
			Voice:   rt.OpenAIVoice,
			BaseURL: rt.OpenAIBaseURL,
			WSURL:   rt.OpenAIWSURL,
		},
		gemini: GeminiSettings{
			Enabled: rt.GeminiEnabled && keys.GeminiAPIKey != "",
			APIKey:  keys.GeminiAPIKey,
			Model:   rt.GeminiModel,
			LiveURL: rt.GeminiLiveURL,
		},
	}

	switch {
	case pc.Enabled(rt.DefaultProvider):
		pc.provider = rt.DefaultProvider
	case pc.openai.Enabled:
		pc.provider = ProviderOpenAI
	case pc.gemini.Enabled:
		pc.provider = ProviderGemini
	default:
		pc.provider = ProviderNone
	}
	return pc
}

// Provider returns the default provider name, or "none".
func (pc ProviderConfig) Provider() string { return pc.provider }

func (pc ProviderConfig) OpenAI() OpenAISettings { return pc.openai }

func (pc ProviderConfig) Gemini() GeminiSettings { return pc.gemini }

func (pc ProviderConfig) Enabled(name string) bool {
	switch name {
	case ProviderOpenAI:
		return pc.openai.Enabled
	case ProviderGemini:
		return pc.gemini.Enabled
	}
	return false
}

// InputSampleRate is the PCM16 rate the browser must send for the provider.
func InputSampleRate(provider string) int {
	if provider == ProviderOpenAI {
		return 24000
	}
	return 16000
}
