package voice

import (
	"context"
	"errors"
)

// EventKind classifies provider output.
type EventKind int

const (
	EventAudio EventKind = iota
	EventTranscript
	EventTurnComplete
	EventError
)

// Transcript roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Event is one piece of provider output. Audio is raw PCM16.
type Event struct {
	Kind  EventKind
	Audio []byte
	Role  string
	Text  string
	Err   error
}

type SessionOptions struct {
	Instructions string
}

// Backend opens sessions against one realtime provider.
type Backend interface {
	Name() string
	Connect(ctx context.Context, opts SessionOptions) (Session, error)
}

// Session is one live provider conversation. Events is closed when the provider
// socket ends; Close may be called more than once.
type Session interface {
	SendAudio(ctx context.Context, pcm []byte) error
	SendText(ctx context.Context, text string) error
	Events() <-chan Event
	Close() error
}

var ErrProviderDisabled = errors.New("voice provider is not enabled")

// Backends selects a backend per session according to the frozen ProviderConfig.
type Backends struct {
	cfg      ProviderConfig
	backends map[string]Backend
}

func NewBackends(cfg ProviderConfig, backends ...Backend) *Backends {
	b := &Backends{cfg: cfg, backends: make(map[string]Backend, len(backends))}
	for _, be := range backends {
		b.backends[be.Name()] = be
	}
	return b
}

// Get returns the named backend; an empty name means the default provider.
func (b *Backends) Get(name string) (Backend, error) {
	if name == "" {
		name = b.cfg.Provider()
	}
	if !b.cfg.Enabled(name) {
		return nil, ErrProviderDisabled
	}
	be, ok := b.backends[name]
	if !ok {
		return nil, ErrProviderDisabled
	}
	return be, nil
}

func (b *Backends) Config() ProviderConfig { return b.cfg }
