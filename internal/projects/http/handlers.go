package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aicoe-genesis/genesis-backend/internal/projects/domain"
)

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	p, err := h.svc.CreateProject(c.Request.Context(), req.Name, req.Description, req.Mode)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.ListProjects(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) get(c *gin.Context) {
	p, err := h.svc.GetProject(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) listArtifacts(c *gin.Context) {
	projectID := strings.TrimSpace(c.Param("id"))
	latest, _ := strconv.ParseBool(c.Query("latest"))

	ctx := c.Request.Context()
	var err error
	var items any
	if latest {
		items, err = h.svc.LatestArtifacts(ctx, projectID)
	} else {
		items, err = h.svc.ListArtifacts(ctx, projectID)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) listMessages(c *gin.Context) {
	items, err := h.svc.ListMessages(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
	case errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidMode),
		errors.Is(err, domain.ErrInvalidArtifactType),
		errors.Is(err, domain.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
	}
}
