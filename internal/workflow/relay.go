// Package workflow serves the per-project WebSocket that drives the agent pipeline.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/aicoe-genesis/genesis-backend/internal/agents"
	"github.com/aicoe-genesis/genesis-backend/internal/events"
	"github.com/aicoe-genesis/genesis-backend/internal/logging"
	"github.com/aicoe-genesis/genesis-backend/internal/projects/domain"
	"github.com/aicoe-genesis/genesis-backend/internal/relay"
)

// Runner executes one pipeline run, reporting every event to sink.
type Runner interface {
	Run(ctx context.Context, projectID, brief string, sink agents.Sink) (*agents.RunResult, error)
}

type Handler struct {
	projects events.ProjectLookup
	runner   Runner
	pub      events.Publisher
	upgrader websocket.Upgrader
	opts     relay.Options
}

func NewHandler(projects events.ProjectLookup, runner Runner, pub events.Publisher, opts relay.Options) *Handler {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Handler{
		projects: projects,
		runner:   runner,
		pub:      pub,
		upgrader: relay.NewUpgrader(),
		opts:     opts,
	}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/ws/workflow/:project_id", h.Serve)
}

// Serve handles WS /ws/workflow/:project_id for the lifetime of the socket.
func (h *Handler) Serve(c *gin.Context) {
	projectID := c.Param("project_id")
	log := logging.New(c.Request.Context())

	if _, err := h.projects.GetProject(c.Request.Context(), projectID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
			return
		}
		log.Error("workflow_connect", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to get project"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("workflow_connect", "project_id=%s upgrade failed: %v", projectID, err)
		return
	}
	conn := relay.New(ws, h.opts)
	log.Infof("workflow_connect", "project_id=%s connected", projectID)

	ctx, cancel := context.WithCancel(c.Request.Context())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		conn.Close(websocket.CloseNormalClosure, "")
		<-conn.Done()
		log.Infof("workflow_disconnect", "project_id=%s disconnected", projectID)
	}()

	sink := h.sink(conn, projectID)
	started := false

	for {
		kind, data, err := conn.Read()
		if err != nil {
			if relay.IsUnexpectedClose(err) {
				log.Errorf("workflow_read", "project_id=%s error=%v", projectID, err)
			}
			return
		}
		if started {
			// run in progress; the read only keeps disconnect detection alive
			continue
		}
		if kind != websocket.TextMessage {
			log.Warnf("workflow_read", "project_id=%s ignoring non-text frame", projectID)
			continue
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			log.Errorf("workflow_read", "project_id=%s malformed frame: %v", projectID, err)
			conn.Close(websocket.CloseUnsupportedData, "malformed JSON")
			return
		}

		switch cmd.Action {
		case ActionStartWorkflow:
			brief := strings.TrimSpace(cmd.Brief)
			if brief == "" {
				_ = conn.SendJSON(events.Error(msgBriefRequired))
				continue
			}
			started = true
			log.Infof("workflow_start", "project_id=%s brief_len=%d", projectID, len(brief))

			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := h.runner.Run(ctx, projectID, brief, sink); err != nil {
					log.Errorf("workflow_run", "project_id=%s error=%v", projectID, err)
				}
				conn.Close(websocket.CloseNormalClosure, "")
			}()

		default:
			log.Warnf("workflow_read", "project_id=%s ignoring action=%q", projectID, cmd.Action)
		}
	}
}

// sink publishes every event on the bus and forwards all but streaming deltas to the socket.
func (h *Handler) sink(conn *relay.Conn, projectID string) agents.Sink {
	log := logging.Named(projectID)
	return func(ctx context.Context, ev events.Event) error {
		if err := h.pub.Publish(context.WithoutCancel(ctx), projectID, ev); err != nil {
			log.Warnf("publish_event", "type=%s error=%v", ev.Type, err)
		}
		if ev.Type == events.TypeAgentDelta {
			return nil
		}
		return conn.SendJSON(ev)
	}
}
