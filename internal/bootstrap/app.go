package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/aicoe-genesis/genesis-backend/config"
	"github.com/aicoe-genesis/genesis-backend/internal/agents"
	"github.com/aicoe-genesis/genesis-backend/internal/events"
	"github.com/aicoe-genesis/genesis-backend/internal/llm"
	"github.com/aicoe-genesis/genesis-backend/internal/projects/repository"
	"github.com/aicoe-genesis/genesis-backend/internal/projects/service"
	"github.com/aicoe-genesis/genesis-backend/internal/storage/postgres"
	"github.com/aicoe-genesis/genesis-backend/internal/voice"
)

// App holds the long-lived dependencies shared by the API server and the worker CLI.
type App struct {
	Config *config.Config

	SQL   *sql.DB       // nil in memory mode
	Pool  *pgxpool.Pool // nil in memory mode
	Redis *redis.Client // nil when REDIS_ADDR is empty

	Projects     *service.ProjectService
	Generator    llm.Generator
	Orchestrator *agents.Orchestrator
	Bus          *events.Bus // nil without Redis

	Voice    voice.ProviderConfig
	Backends *voice.Backends
	Realtime *voice.RealtimeClient
	Registry voice.Registry
}

type AppOptions struct {
	// InMemory skips Postgres and keeps projects in process memory.
	InMemory bool
	// Migrate applies the embedded schema after connecting.
	Migrate bool
}

func NewApp(ctx context.Context, cfg *config.Config, opt AppOptions) (*App, error) {
	a := &App{Config: cfg}

	var repo service.Repository
	if opt.InMemory {
		log.Println("[info] using in-memory project store")
		repo = repository.NewMemoryRepository()
	} else {
		dsn := postgres.DSN(&cfg.Database)
		pool, err := OpenPool(ctx, DBOptions{
			DSN:      dsn,
			MaxConns: int32(cfg.Database.MaxConns),
			MinConns: int32(cfg.Database.MinConns),
		})
		if err != nil {
			return nil, err
		}
		a.Pool = pool

		if opt.Migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				a.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}

		db, err := postgres.NewConnection(ctx, &cfg.Database)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.SQL = db
		repo = repository.NewProjectRepository(db)
	}

	rdb, err := OpenRedis(ctx, cfg.Redis)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Redis = rdb

	gen, err := llm.New(cfg.LLM)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("llm: %w", err)
	}
	a.Generator = gen

	a.Projects = service.NewProjectService(repo)
	a.Orchestrator = agents.NewOrchestrator(agents.DefaultCatalog(), gen, a.Projects)

	a.Voice = voice.NewProviderConfig(cfg.Realtime, cfg.LLM)
	a.Backends = voice.NewBackends(a.Voice,
		voice.NewOpenAIBackend(a.Voice.OpenAI()),
		voice.NewGeminiBackend(a.Voice.Gemini()),
	)
	a.Realtime = voice.NewRealtimeClient(a.Voice.OpenAI())

	if rdb != nil {
		a.Bus = events.NewBus(rdb)
		a.Registry = voice.NewRedisRegistry(rdb, cfg.Realtime.SessionTTL)
	} else {
		log.Println("[warn] REDIS_ADDR not set: event bus disabled, voice sessions tracked in memory")
		a.Registry = voice.NewMemoryRegistry()
	}

	log.Printf("[info] llm=%s voice_provider=%s", gen.Name(), a.Voice.Provider())
	return a, nil
}

// Publisher returns the event bus, or a no-op publisher without Redis.
func (a *App) Publisher() events.Publisher {
	if a.Bus == nil {
		return events.NopPublisher{}
	}
	return a.Bus
}

func (a *App) Close() {
	if a.SQL != nil {
		_ = a.SQL.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}
