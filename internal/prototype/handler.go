package prototype

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aicoe-genesis/genesis-backend/internal/logging"
	"github.com/aicoe-genesis/genesis-backend/internal/projects/domain"
)

// ArtifactGetter loads one artifact of a project.
type ArtifactGetter interface {
	GetArtifact(ctx context.Context, projectID, artifactID string) (*domain.Artifact, error)
}

type Handler struct {
	artifacts ArtifactGetter
}

func NewHandler(artifacts ArtifactGetter) *Handler {
	return &Handler{artifacts: artifacts}
}

// Register mounts the preview route on the projects group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/:id/artifacts/:artifact_id/preview", h.Preview)
}

// Preview serves GET /projects/:id/artifacts/:artifact_id/preview?view=live|source.
func (h *Handler) Preview(c *gin.Context) {
	ctx := c.Request.Context()
	log := logging.New(ctx)

	view := c.DefaultQuery("view", ViewLive)
	if view != ViewLive && view != ViewSource {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "view must be live or source"})
		return
	}

	a, err := h.artifacts.GetArtifact(ctx, c.Param("id"), c.Param("artifact_id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "artifact not found"})
			return
		}
		log.Error("preview_artifact", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	page, err := Render(a, view)
	if err != nil {
		log.Error("render_preview", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to render preview"})
		return
	}

	c.Header("Content-Security-Policy", "frame-ancestors 'self'")
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}
