package voice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/aicoe-genesis/genesis-backend/internal/events"
	"github.com/aicoe-genesis/genesis-backend/internal/logging"
	"github.com/aicoe-genesis/genesis-backend/internal/projects/domain"
	"github.com/aicoe-genesis/genesis-backend/internal/projects/utils"
	"github.com/aicoe-genesis/genesis-backend/internal/relay"
)

const (
	maxSDPSize            = 64 << 10
	defaultSessionRefresh = time.Minute
)

// RealtimeSessions is the negotiated-session side of the OpenAI provider.
type RealtimeSessions interface {
	CreateSession(ctx context.Context, instructions string) (json.RawMessage, error)
	Negotiate(ctx context.Context, offer string) (string, error)
}

// ArtifactGenerator produces an artifact from conversation context.
type ArtifactGenerator interface {
	GenerateArtifact(ctx context.Context, projectID, artifactType, conversation string) (*domain.Artifact, error)
}

type Handler struct {
	backends  *Backends
	realtime  RealtimeSessions
	registry  Registry
	artifacts ArtifactGenerator
	projects  events.ProjectLookup
	upgrader  websocket.Upgrader
	opts      relay.Options
	refresh   time.Duration
}

type HandlerDeps struct {
	Backends  *Backends
	Realtime  RealtimeSessions
	Registry  Registry
	Artifacts ArtifactGenerator
	Projects  events.ProjectLookup
	Socket    relay.Options

	// SessionRefresh is how often a live session's registry entry is touched.
	// Zero means the registry's RefreshInterval, or one minute.
	SessionRefresh time.Duration
}

func NewHandler(d HandlerDeps) *Handler {
	if d.Registry == nil {
		d.Registry = NewMemoryRegistry()
	}
	if d.SessionRefresh <= 0 {
		d.SessionRefresh = defaultSessionRefresh
		if r, ok := d.Registry.(interface{ RefreshInterval() time.Duration }); ok && r.RefreshInterval() > 0 {
			d.SessionRefresh = r.RefreshInterval()
		}
	}
	return &Handler{
		backends:  d.Backends,
		realtime:  d.Realtime,
		registry:  d.Registry,
		artifacts: d.Artifacts,
		projects:  d.Projects,
		upgrader:  relay.NewUpgrader(),
		opts:      d.Socket,
		refresh:   d.SessionRefresh,
	}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/gemini/live", h.Live(ProviderGemini))
	rg.GET("/voice/live", h.Live(""))
	rg.GET("/voice/sessions", h.ListSessions)
	rg.POST("/voice/generate-artifact", h.GenerateArtifact)
	rg.GET("/realtime/config", h.Config)
	rg.POST("/realtime/session", h.CreateSession)
	rg.POST("/realtime/negotiate", h.Negotiate)
}

// Config reports which realtime providers are usable.
func (h *Handler) Config(c *gin.Context) {
	cfg := h.backends.Config()
	c.JSON(http.StatusOK, gin.H{
		"provider":          cfg.Provider(),
		"openai_enabled":    cfg.Enabled(ProviderOpenAI),
		"gemini_enabled":    cfg.Enabled(ProviderGemini),
		"input_sample_rate": InputSampleRate(cfg.Provider()),
		"available_providers": gin.H{
			ProviderOpenAI: cfg.Enabled(ProviderOpenAI),
			ProviderGemini: cfg.Enabled(ProviderGemini),
		},
	})
}

func (h *Handler) CreateSession(c *gin.Context) {
	if !h.backends.Config().Enabled(ProviderOpenAI) || h.realtime == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "OpenAI realtime is not enabled"})
		return
	}

	payload, err := h.realtime.CreateSession(c.Request.Context(), defaultInstructions)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

// Negotiate accepts an SDP offer as application/sdp (or JSON {"sdp": ...}) and returns {sdp}.
func (h *Handler) Negotiate(c *gin.Context) {
	if !h.backends.Config().Enabled(ProviderOpenAI) || h.realtime == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "OpenAI realtime is not enabled"})
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSDPSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "failed to read body"})
		return
	}
	offer := string(raw)
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req negotiateReq
		if err := json.Unmarshal(raw, &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
			return
		}
		offer = req.SDP
	}
	if strings.TrimSpace(offer) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "SDP offer is required"})
		return
	}

	answer, err := h.realtime.Negotiate(c.Request.Context(), offer)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sdp": answer})
}

func (h *Handler) ListSessions(c *gin.Context) {
	items, err := h.registry.List(c.Request.Context())
	if err != nil {
		logging.New(c.Request.Context()).Error("list_voice_sessions", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to list sessions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": items})
}

func (h *Handler) GenerateArtifact(c *gin.Context) {
	var req generateArtifactReq
	if err := c.ShouldBindJSON(&req); err != nil ||
		strings.TrimSpace(req.ProjectID) == "" ||
		strings.TrimSpace(req.ArtifactType) == "" ||
		strings.TrimSpace(req.Context) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Missing required fields"})
		return
	}

	a, err := h.artifacts.GenerateArtifact(c.Request.Context(), req.ProjectID, req.ArtifactType, req.Context)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArtifactType):
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Invalid artifact type"})
		case errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
		default:
			logging.New(c.Request.Context()).Error("generate_artifact", err)
			c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"artifact_id":   a.ID,
		"artifact_type": a.ArtifactType,
		"content":       a.Content,
	})
}

// Live relays one browser voice session to the named provider ("" = default).
func (h *Handler) Live(provider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logging.New(ctx)

		backend, err := h.backends.Get(provider)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": err.Error()})
			return
		}

		projectID := c.Query("project_id")
		instructions := defaultInstructions
		if projectID != "" {
			p, err := h.projects.GetProject(ctx, projectID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
					return
				}
				c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to get project"})
				return
			}
			instructions += "\n\nProject: " + p.Name + ". " + p.Description
		}

		sessionID, err := utils.NewID("vs")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to create session id"})
			return
		}

		ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Errorf("voice_connect", "session_id=%s upgrade failed: %v", sessionID, err)
			return
		}
		conn := relay.New(ws, h.opts)
		defer func() {
			conn.Close(websocket.CloseNormalClosure, "")
			<-conn.Done()
		}()

		session, err := backend.Connect(ctx, SessionOptions{Instructions: instructions})
		if err != nil {
			log.Errorf("voice_connect", "session_id=%s provider=%s error=%v", sessionID, backend.Name(), err)
			_ = conn.SendJSON(outboundFrame{Type: frameError, Message: err.Error()})
			return
		}
		defer session.Close()

		info := SessionInfo{ID: sessionID, Provider: backend.Name(), ProjectID: projectID, StartedAt: time.Now().UTC()}
		if err := h.registry.Register(ctx, info); err != nil {
			log.Warnf("voice_connect", "session_id=%s register failed: %v", sessionID, err)
		}
		defer func() {
			if err := h.registry.Unregister(context.WithoutCancel(ctx), sessionID); err != nil {
				log.Warnf("voice_disconnect", "session_id=%s unregister failed: %v", sessionID, err)
			}
		}()
		log.Infof("voice_connect", "session_id=%s provider=%s project_id=%s connected", sessionID, backend.Name(), projectID)

		_ = conn.SendJSON(outboundFrame{
			Type:            frameSessionStarted,
			SessionID:       sessionID,
			Provider:        backend.Name(),
			InputSampleRate: InputSampleRate(backend.Name()),
		})

		stopRefresh := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			pumpProvider(session, conn)
			conn.Close(websocket.CloseNormalClosure, "provider closed")
		}()
		go func() {
			defer wg.Done()
			h.keepRegistered(ctx, sessionID, stopRefresh, log)
		}()

		readBrowser(ctx, conn, session, log)

		_ = session.Close()
		close(stopRefresh)
		wg.Wait()
		log.Infof("voice_disconnect", "session_id=%s disconnected", sessionID)
	}
}

// keepRegistered refreshes the session's registry entry until stop is closed.
func (h *Handler) keepRegistered(ctx context.Context, sessionID string, stop <-chan struct{}, log *logging.Logger) {
	ticker := time.NewTicker(h.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := h.registry.Touch(context.WithoutCancel(ctx), sessionID); err != nil {
				log.Warnf("voice_refresh", "session_id=%s refresh failed: %v", sessionID, err)
			}
		}
	}
}

// pumpProvider forwards provider output until the provider session ends.
func pumpProvider(session Session, conn *relay.Conn) {
	for ev := range session.Events() {
		var err error
		switch ev.Kind {
		case EventAudio:
			err = conn.SendBinary(ev.Audio)
		case EventTranscript:
			err = conn.SendJSON(outboundFrame{Type: frameTranscript, Role: ev.Role, Text: ev.Text})
		case EventTurnComplete:
			err = conn.SendJSON(outboundFrame{Type: frameTurnComplete})
		case EventError:
			msg := "provider error"
			if ev.Err != nil {
				msg = ev.Err.Error()
			}
			err = conn.SendJSON(outboundFrame{Type: frameError, Message: msg})
		}
		if err != nil {
			return
		}
	}
}

// readBrowser forwards browser frames until the browser disconnects or the socket closes.
func readBrowser(ctx context.Context, conn *relay.Conn, session Session, log *logging.Logger) {
	for {
		kind, data, err := conn.Read()
		if err != nil {
			if relay.IsUnexpectedClose(err) {
				log.Errorf("voice_read", "error=%v", err)
			}
			return
		}

		switch kind {
		case websocket.BinaryMessage:
			if err := session.SendAudio(ctx, data); err != nil {
				_ = conn.SendJSON(outboundFrame{Type: frameError, Message: err.Error()})
			}

		case websocket.TextMessage:
			var in inboundFrame
			if err := json.Unmarshal(data, &in); err != nil {
				_ = conn.SendJSON(outboundFrame{Type: frameError, Message: "invalid JSON message"})
				continue
			}
			if in.Type != inboundTextMessage {
				continue
			}
			if strings.TrimSpace(in.Message) == "" {
				continue
			}
			if err := session.SendText(ctx, in.Message); err != nil {
				_ = conn.SendJSON(outboundFrame{Type: frameError, Message: err.Error()})
			}
		}
	}
}
