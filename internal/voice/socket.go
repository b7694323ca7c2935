package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aicoe-genesis/genesis-backend/internal/llm"
)

const providerWriteTimeout = 10 * time.Second

// providerSocket is the outbound connection to a provider. Writes are serialized;
// a single goroutine reads and decodes frames into events.
type providerSocket struct {
	provider string
	ws       *websocket.Conn
	events   chan Event
	done     chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func dialProvider(ctx context.Context, provider, url string, header http.Header) (*providerSocket, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	ws, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			err = &httpStatusError{status: resp.StatusCode, err: err}
		}
		return nil, &llm.ProviderError{Provider: provider, Op: "connect", Err: err}
	}
	return &providerSocket{
		provider: provider,
		ws:       ws,
		events:   make(chan Event, 128),
		done:     make(chan struct{}),
	}, nil
}

func (s *providerSocket) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.ws.SetWriteDeadline(time.Now().Add(providerWriteTimeout))
	if err := s.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return &llm.ProviderError{Provider: s.provider, Op: "send", Err: err}
	}
	return nil
}

// readLoop decodes frames until the socket ends, then closes the events channel.
func (s *providerSocket) readLoop(decode func(data []byte) []Event) {
	defer close(s.events)
	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.emit(Event{Kind: EventError, Err: &llm.ProviderError{Provider: s.provider, Op: "receive", Err: err}})
			}
			return
		}
		for _, ev := range decode(data) {
			if !s.emit(ev) {
				return
			}
		}
	}
}

func (s *providerSocket) emit(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *providerSocket) Events() <-chan Event { return s.events }

func (s *providerSocket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		_ = s.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.ws.Close()
	})
	return err
}

type httpStatusError struct {
	status int
	err    error
}

func (e *httpStatusError) Error() string {
	return http.StatusText(e.status) + ": " + e.err.Error()
}

func (e *httpStatusError) Unwrap() error { return e.err }
