package voice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicoe-genesis/genesis-backend/config"
	"github.com/aicoe-genesis/genesis-backend/internal/projects/domain"
	"github.com/aicoe-genesis/genesis-backend/internal/relay"
)

type fakeSession struct {
	mu     sync.Mutex
	texts  []string
	audio  [][]byte
	events chan Event
	closed bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{events: make(chan Event, 16)}
}

func (s *fakeSession) SendAudio(_ context.Context, pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, pcm)
	return nil
}

// SendText answers every typed message with an assistant transcript.
func (s *fakeSession) SendText(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	if !s.closed {
		s.events <- Event{Kind: EventTranscript, Role: RoleAssistant, Text: "reply to " + text}
		s.events <- Event{Kind: EventTurnComplete}
	}
	return nil
}

func (s *fakeSession) Events() <-chan Event { return s.events }

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

func (s *fakeSession) snapshot() ([]string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...), len(s.audio)
}

type fakeBackend struct {
	name    string
	session *fakeSession
	err     error

	mu   sync.Mutex
	opts SessionOptions
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) instructions() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opts.Instructions
}

func (b *fakeBackend) Connect(_ context.Context, opts SessionOptions) (Session, error) {
	b.mu.Lock()
	b.opts = opts
	b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	return b.session, nil
}

type fakeProjects struct{}

func (fakeProjects) GetProject(_ context.Context, id string) (*domain.Project, error) {
	if id != "p1" {
		return nil, domain.ErrNotFound
	}
	return &domain.Project{ID: "p1", Name: "Todo", Description: "a todo app"}, nil
}

type fakeArtifacts struct {
	err error
}

func (f fakeArtifacts) GenerateArtifact(_ context.Context, projectID, artifactType, _ string) (*domain.Artifact, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Artifact{ID: "a1", ProjectID: projectID, ArtifactType: artifactType, Content: "# Vision"}, nil
}

type fakeRealtime struct {
	err error
}

func (f fakeRealtime) CreateSession(context.Context, string) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"id":"sess_1","client_secret":{"value":"ek_1"}}`), nil
}

func (f fakeRealtime) Negotiate(_ context.Context, offer string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "answer for " + offer, nil
}

func geminiOnly() ProviderConfig {
	return NewProviderConfig(
		config.RealtimeConfig{DefaultProvider: "gemini", GeminiEnabled: true, OpenAIEnabled: true},
		config.LLMConfig{GeminiAPIKey: "g", OpenAIAPIKey: "o"},
	)
}

func setupVoiceRouter(t *testing.T, d HandlerDeps) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(d).Register(r.Group("/api"))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dialVoice(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) outboundFrame {
	t.Helper()
	var f outboundFrame
	require.NoError(t, ws.ReadJSON(&f))
	return f
}

func TestLive_RelaysBothDirections(t *testing.T) {
	sess := newFakeSession()
	backend := &fakeBackend{name: ProviderGemini, session: sess}
	registry := NewMemoryRegistry()
	srv := setupVoiceRouter(t, HandlerDeps{
		Backends: NewBackends(geminiOnly(), backend),
		Registry: registry,
		Projects: fakeProjects{},
		Socket:   relay.Options{PingInterval: time.Minute},
	})

	ws := dialVoice(t, srv, "/api/gemini/live?project_id=p1")

	started := readFrame(t, ws)
	assert.Equal(t, frameSessionStarted, started.Type)
	assert.Equal(t, ProviderGemini, started.Provider)
	assert.Equal(t, 16000, started.InputSampleRate)
	assert.True(t, strings.HasPrefix(started.SessionID, "vs"))
	assert.Contains(t, backend.instructions(), "Todo")

	live, err := registry.List(context.Background())
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "p1", live[0].ProjectID)

	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3, 4}))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"text_message","message":"hello"}`)))

	// The typed message is not echoed back; the first frame is the assistant reply.
	reply := readFrame(t, ws)
	assert.Equal(t, frameTranscript, reply.Type)
	assert.Equal(t, RoleAssistant, reply.Role)
	assert.Equal(t, "reply to hello", reply.Text)
	assert.Equal(t, frameTurnComplete, readFrame(t, ws).Type)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{not json`)))
	bad := readFrame(t, ws)
	assert.Equal(t, frameError, bad.Type)
	assert.Equal(t, "invalid JSON message", bad.Message)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"unknown"}`)))

	texts, chunks := sess.snapshot()
	assert.Equal(t, []string{"hello"}, texts)
	assert.Equal(t, 1, chunks)

	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	assert.Eventually(t, func() bool {
		items, _ := registry.List(context.Background())
		return len(items) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLive_ProviderEndClosesBrowser(t *testing.T) {
	sess := newFakeSession()
	srv := setupVoiceRouter(t, HandlerDeps{
		Backends: NewBackends(geminiOnly(), &fakeBackend{name: ProviderGemini, session: sess}),
		Projects: fakeProjects{},
	})

	ws := dialVoice(t, srv, "/api/voice/live")
	assert.Equal(t, frameSessionStarted, readFrame(t, ws).Type)

	_ = sess.Close()
	_, _, err := ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestLive_ProviderErrorKeepsSession(t *testing.T) {
	sess := newFakeSession()
	srv := setupVoiceRouter(t, HandlerDeps{
		Backends: NewBackends(geminiOnly(), &fakeBackend{name: ProviderGemini, session: sess}),
		Projects: fakeProjects{},
	})

	ws := dialVoice(t, srv, "/api/gemini/live")
	assert.Equal(t, frameSessionStarted, readFrame(t, ws).Type)

	sess.events <- Event{Kind: EventError, Err: errors.New("quota exceeded")}
	f := readFrame(t, ws)
	assert.Equal(t, frameError, f.Type)
	assert.Equal(t, "quota exceeded", f.Message)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"text_message","message":"still here"}`)))
	reply := readFrame(t, ws)
	assert.Equal(t, frameTranscript, reply.Type)
	assert.Equal(t, "reply to still here", reply.Text)
	assert.Equal(t, frameTurnComplete, readFrame(t, ws).Type)
}

type touchCountingRegistry struct {
	*MemoryRegistry
	mu      sync.Mutex
	touches map[string]int
}

func (r *touchCountingRegistry) Touch(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touches[id]++
	return nil
}

func (r *touchCountingRegistry) count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.touches[id]
}

func TestLive_RefreshesRegistryWhileOpen(t *testing.T) {
	reg := &touchCountingRegistry{MemoryRegistry: NewMemoryRegistry(), touches: map[string]int{}}
	srv := setupVoiceRouter(t, HandlerDeps{
		Backends:       NewBackends(geminiOnly(), &fakeBackend{name: ProviderGemini, session: newFakeSession()}),
		Registry:       reg,
		Projects:       fakeProjects{},
		SessionRefresh: 10 * time.Millisecond,
	})

	ws := dialVoice(t, srv, "/api/gemini/live")
	started := readFrame(t, ws)
	require.Equal(t, frameSessionStarted, started.Type)

	assert.Eventually(t, func() bool { return reg.count(started.SessionID) >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestLive_ConnectFailure(t *testing.T) {
	srv := setupVoiceRouter(t, HandlerDeps{
		Backends: NewBackends(geminiOnly(), &fakeBackend{name: ProviderGemini, err: errors.New("provider down")}),
		Projects: fakeProjects{},
	})

	ws := dialVoice(t, srv, "/api/gemini/live")
	f := readFrame(t, ws)
	assert.Equal(t, frameError, f.Type)
	assert.Equal(t, "provider down", f.Message)

	_, _, err := ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestLive_RejectsBeforeUpgrade(t *testing.T) {
	gin.SetMode(gin.TestMode)
	disabled := NewProviderConfig(config.RealtimeConfig{DefaultProvider: "openai"}, config.LLMConfig{})

	tests := []struct {
		name   string
		cfg    ProviderConfig
		path   string
		status int
	}{
		{"disabled provider", disabled, "/api/voice/live", http.StatusServiceUnavailable},
		{"unknown project", geminiOnly(), "/api/gemini/live?project_id=nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			NewHandler(HandlerDeps{
				Backends: NewBackends(tt.cfg, &fakeBackend{name: ProviderGemini, session: newFakeSession()}),
				Projects: fakeProjects{},
			}).Register(r.Group("/api"))

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"ok":false`)
		})
	}
}

func TestHandler_GenerateArtifact(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		gen    fakeArtifacts
		body   string
		status int
		want   string
	}{
		{"missing fields", fakeArtifacts{}, `{"project_id":"p1","artifact_type":"vision"}`, http.StatusBadRequest, "Missing required fields"},
		{"invalid type", fakeArtifacts{err: domain.ErrInvalidArtifactType}, `{"project_id":"p1","artifact_type":"x","context":"c"}`, http.StatusBadRequest, "Invalid artifact type"},
		{"unknown project", fakeArtifacts{err: domain.ErrNotFound}, `{"project_id":"nope","artifact_type":"vision","context":"c"}`, http.StatusNotFound, "project not found"},
		{"provider failure", fakeArtifacts{err: errors.New("upstream 500")}, `{"project_id":"p1","artifact_type":"vision","context":"c"}`, http.StatusBadGateway, "upstream 500"},
		{"success", fakeArtifacts{}, `{"project_id":"p1","artifact_type":"vision","context":"we talked"}`, http.StatusOK, `"artifact_id":"a1"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			NewHandler(HandlerDeps{Backends: NewBackends(geminiOnly()), Artifacts: tt.gen}).Register(r.Group("/api"))

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/voice/generate-artifact", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestHandler_RealtimeEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(cfg ProviderConfig, rt RealtimeSessions) *gin.Engine {
		r := gin.New()
		NewHandler(HandlerDeps{Backends: NewBackends(cfg), Realtime: rt}).Register(r.Group("/api"))
		return r
	}
	do := func(r *gin.Engine, method, path, contentType, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("config", func(t *testing.T) {
		w := do(newRouter(geminiOnly(), nil), http.MethodGet, "/api/realtime/config", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		var got map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "gemini", got["provider"])
		assert.Equal(t, true, got["openai_enabled"])
		assert.Equal(t, float64(16000), got["input_sample_rate"])
	})

	t.Run("session disabled", func(t *testing.T) {
		off := NewProviderConfig(config.RealtimeConfig{DefaultProvider: "openai"}, config.LLMConfig{})
		w := do(newRouter(off, fakeRealtime{}), http.MethodPost, "/api/realtime/session", "", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("session created", func(t *testing.T) {
		w := do(newRouter(geminiOnly(), fakeRealtime{}), http.MethodPost, "/api/realtime/session", "", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":"sess_1","client_secret":{"value":"ek_1"}}`, w.Body.String())
	})

	t.Run("session upstream failure", func(t *testing.T) {
		w := do(newRouter(geminiOnly(), fakeRealtime{err: errors.New("boom")}), http.MethodPost, "/api/realtime/session", "", "")
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("negotiate raw sdp", func(t *testing.T) {
		w := do(newRouter(geminiOnly(), fakeRealtime{}), http.MethodPost, "/api/realtime/negotiate", "application/sdp", "v=0")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"sdp":"answer for v=0"}`, w.Body.String())
	})

	t.Run("negotiate json", func(t *testing.T) {
		w := do(newRouter(geminiOnly(), fakeRealtime{}), http.MethodPost, "/api/realtime/negotiate", "application/json", `{"sdp":"v=1"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"sdp":"answer for v=1"}`, w.Body.String())
	})

	t.Run("negotiate empty offer", func(t *testing.T) {
		w := do(newRouter(geminiOnly(), fakeRealtime{}), http.MethodPost, "/api/realtime/negotiate", "application/json", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("negotiate upstream failure", func(t *testing.T) {
		w := do(newRouter(geminiOnly(), fakeRealtime{err: errors.New("boom")}), http.MethodPost, "/api/realtime/negotiate", "application/sdp", "v=0")
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestHandler_ListSessions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := NewMemoryRegistry()
	require.NoError(t, reg.Register(context.Background(), SessionInfo{ID: "vs1", Provider: ProviderGemini}))

	r := gin.New()
	NewHandler(HandlerDeps{Backends: NewBackends(geminiOnly()), Registry: reg}).Register(r.Group("/api"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/voice/sessions", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"vs1"`)
}
