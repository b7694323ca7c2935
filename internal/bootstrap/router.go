package bootstrap

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	httpapi "github.com/aicoe-genesis/genesis-backend/internal/api/http"
	"github.com/aicoe-genesis/genesis-backend/internal/api/http/middleware"
	"github.com/aicoe-genesis/genesis-backend/internal/events"
	projectshttp "github.com/aicoe-genesis/genesis-backend/internal/projects/http"
	"github.com/aicoe-genesis/genesis-backend/internal/prototype"
	"github.com/aicoe-genesis/genesis-backend/internal/relay"
	"github.com/aicoe-genesis/genesis-backend/internal/voice"
	"github.com/aicoe-genesis/genesis-backend/internal/workflow"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	App         *App
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	a := dep.App
	srv := a.Config.Server

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(srv.CORSOrigins))
	r.Use(middleware.RequestIDMiddleware())

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, a.Pool, a.Redis)
	healthHandler.RegisterRoutes(r)

	api := r.Group("/api")
	api.Use(middleware.APIKeyMiddleware(srv.APIKey))
	api.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "AICOE Genesis API", "status": "active"})
	})

	socket := relay.OptionsFromConfig(srv)

	projectsGroup := api.Group("/projects")
	projectshttp.New(a.Projects).Register(projectsGroup)
	prototype.NewHandler(a.Projects).Register(projectsGroup)
	if a.Bus != nil {
		projectsGroup.GET("/:id/events", events.NewWatchHandler(a.Bus, a.Projects).Watch)
	}

	workflow.NewHandler(a.Projects, a.Orchestrator, a.Publisher(), socket).Register(api)

	voice.NewHandler(voice.HandlerDeps{
		Backends:  a.Backends,
		Realtime:  a.Realtime,
		Registry:  a.Registry,
		Artifacts: a.Orchestrator,
		Projects:  a.Projects,
		Socket:    socket,
	}).Register(api)

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "X-API-Key", "X-Request-Id"},
		ExposeHeaders: []string{"X-Request-Id"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cors.New(cfg)
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cors.New(cfg)
		}
	}
	cfg.AllowOrigins = origins
	return cors.New(cfg)
}
