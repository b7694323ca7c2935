package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aicoe-genesis/genesis-backend/internal/projects/domain"
)

// ProjectLookup is the slice of the project service the watch handler needs.
type ProjectLookup interface {
	GetProject(ctx context.Context, id string) (*domain.Project, error)
}

// WatchHandler mirrors a project's workflow events to Server-Sent Events clients.
type WatchHandler struct {
	bus       *Bus
	projects  ProjectLookup
	keepAlive time.Duration
}

func NewWatchHandler(bus *Bus, projects ProjectLookup) *WatchHandler {
	return &WatchHandler{bus: bus, projects: projects, keepAlive: 15 * time.Second}
}

// Watch streams events of :id until the client disconnects.
func (h *WatchHandler) Watch(c *gin.Context) {
	projectID := c.Param("id")
	ctx := c.Request.Context()

	if _, err := h.projects.GetProject(ctx, projectID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to get project"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "streaming unsupported"})
		return
	}

	sub, err := h.bus.Subscribe(ctx, projectID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "event bus unavailable"})
		return
	}
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // nginx: disable buffering

	fmt.Fprintf(c.Writer, "event: ready\ndata: {\"project_id\":%q}\n\n", projectID)
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			flusher.Flush()

		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			data, _ := json.Marshal(ev)
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}
