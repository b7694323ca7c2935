package workflow

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

	"github.com/aicoe-genesis/genesis-backend/internal/agents"
	"github.com/aicoe-genesis/genesis-backend/internal/events"
	"github.com/aicoe-genesis/genesis-backend/internal/llm"
	"github.com/aicoe-genesis/genesis-backend/internal/projects/domain"
	"github.com/aicoe-genesis/genesis-backend/internal/projects/repository"
	"github.com/aicoe-genesis/genesis-backend/internal/projects/service"
	"github.com/aicoe-genesis/genesis-backend/internal/relay"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	srv     *httptest.Server
	svc     *service.ProjectService
	pub     *recordingPublisher
	project *domain.Project
}

func newFixture(t *testing.T, runner func(svc *service.ProjectService) Runner) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := service.NewProjectService(repository.NewMemoryRepository())
	p, err := svc.CreateProject(context.Background(), "Todo", "d", "text")
	require.NoError(t, err)

	pub := &recordingPublisher{}
	r := gin.New()
	NewHandler(svc, runner(svc), pub, relay.Options{PingInterval: time.Second}).Register(r.Group("/api"))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, svc: svc, pub: pub, project: p}
}

func mockRunner(svc *service.ProjectService) Runner {
	return agents.NewOrchestrator(agents.DefaultCatalog(), llm.NewMockGenerator(), svc)
}

func (f *fixture) dial(t *testing.T, projectID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/ws/workflow/" + projectID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev events.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestRelay_UnknownProject(t *testing.T) {
	f := newFixture(t, mockRunner)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/ws/workflow/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRelay_FullWorkflow(t *testing.T) {
	f := newFixture(t, mockRunner)
	conn := f.dial(t, f.project.ID)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "start_workflow"}))
	ev := readEvent(t, conn)
	assert.Equal(t, events.TypeError, ev.Type)
	assert.Equal(t, "Brief is required", ev.Message)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "say_hello"}))
	require.NoError(t, conn.WriteJSON(Command{Action: ActionStartWorkflow, Brief: "A todo app"}))

	var got []events.Event
	for {
		ev := readEvent(t, conn)
		got = append(got, ev)
		assert.NotEqual(t, events.TypeAgentDelta, ev.Type)
		if ev.Terminal() {
			break
		}
	}
	last := got[len(got)-1]
	assert.Equal(t, events.TypeWorkflowComplete, last.Type)
	assert.Equal(t, f.project.ID, last.ProjectID)

	var artifacts []string
	for _, ev := range got {
		if ev.Type == events.TypeArtifactReady {
			artifacts = append(artifacts, ev.ArtifactType)
		}
	}
	assert.Equal(t, []string{"vision", "usecases", "prototype"}, artifacts)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	msgs, err := f.svc.ListMessages(context.Background(), f.project.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 4)

	types := f.pub.types()
	assert.Contains(t, types, events.TypeAgentDelta)
	assert.Equal(t, events.TypeWorkflowComplete, types[len(types)-1])
}

func TestRelay_MalformedFrameTearsDown(t *testing.T) {
	f := newFixture(t, mockRunner)
	conn := f.dial(t, f.project.ID)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseUnsupportedData), "got %v", err)
}

// blockingRunner waits for cancellation and reports it.
type blockingRunner struct {
	started   chan struct{}
	cancelled chan struct{}
}

func (b *blockingRunner) Run(ctx context.Context, _, _ string, sink agents.Sink) (*agents.RunResult, error) {
	_ = sink(ctx, events.Status("pm", events.StatusInProgress))
	close(b.started)
	<-ctx.Done()
	close(b.cancelled)
	return nil, ctx.Err()
}

func TestRelay_DisconnectCancelsRun(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}), cancelled: make(chan struct{})}
	f := newFixture(t, func(*service.ProjectService) Runner { return runner })
	conn := f.dial(t, f.project.ID)

	require.NoError(t, conn.WriteJSON(Command{Action: ActionStartWorkflow, Brief: "x"}))
	ev := readEvent(t, conn)
	assert.Equal(t, events.StatusInProgress, ev.Status)

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not start")
	}

	// a second start is discarded
	require.NoError(t, conn.WriteJSON(Command{Action: ActionStartWorkflow, Brief: "again"}))
	require.NoError(t, conn.Close())

	select {
	case <-runner.cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("run was not cancelled after disconnect")
	}
}

// failingGenerator fails any prompt addressed to the named agent and defers the rest to the mock.
type failingGenerator struct {
	*llm.MockGenerator
	agent string
}

func (g failingGenerator) Stream(ctx context.Context, p llm.Prompt, onDelta llm.DeltaFunc) (string, error) {
	if strings.Contains(p.System, g.agent) {
		return "", &llm.ProviderError{Provider: "mock", Op: "chat completion", Err: errors.New("quota exceeded")}
	}
	return g.MockGenerator.Stream(ctx, p, onDelta)
}

func TestRelay_ProviderFailureStopsAtFailedStage(t *testing.T) {
	f := newFixture(t, func(svc *service.ProjectService) Runner {
		gen := failingGenerator{MockGenerator: llm.NewMockGenerator(), agent: "Brenda"}
		return agents.NewOrchestrator(agents.DefaultCatalog(), gen, svc)
	})
	conn := f.dial(t, f.project.ID)

	require.NoError(t, conn.WriteJSON(Command{Action: ActionStartWorkflow, Brief: "A todo app"}))

	var got []events.Event
	for {
		ev := readEvent(t, conn)
		got = append(got, ev)
		if ev.Terminal() {
			break
		}
	}
	require.GreaterOrEqual(t, len(got), 2)

	last := got[len(got)-1]
	assert.Equal(t, events.TypeError, last.Type)
	assert.Contains(t, last.Message, "quota exceeded")

	prev := got[len(got)-2]
	assert.Equal(t, events.TypeAgentStatus, prev.Type)
	assert.Equal(t, "ba", prev.AgentRole)
	assert.Equal(t, events.StatusInProgress, prev.Status)

	for _, ev := range got {
		assert.NotEqual(t, "ux", ev.AgentRole)
		assert.NotEqual(t, "ui", ev.AgentRole)
		assert.NotEqual(t, events.TypeArtifactReady, ev.Type)
	}

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	arts, err := f.svc.ListArtifacts(context.Background(), f.project.ID)
	require.NoError(t, err)
	assert.Empty(t, arts)
}
