package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	LLM      LLMConfig
	Realtime RealtimeConfig
	App      AppConfig
}

type ServerConfig struct {
	Port        string
	CORSOrigins []string
	APIKey      string

	WSPingInterval time.Duration
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	WSMaxFrameSize int64
}

type DatabaseConfig struct {
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type LLMConfig struct {
	Provider          string // gemini, openai or mock
	GeminiAPIKey      string
	GeminiModel       string
	GeminiBaseURL     string
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	RequestsPerMinute int
}

type RealtimeConfig struct {
	DefaultProvider string
	OpenAIEnabled   bool
	GeminiEnabled   bool

	OpenAIModel   string
	OpenAIVoice   string
	OpenAIBaseURL string
	OpenAIWSURL   string
	GeminiModel   string
	GeminiLiveURL string
	SessionTTL    time.Duration
	SweepSchedule string
}

type AppConfig struct {
	Environment string
	LogLevel    string
	Version     string
	// InMemory keeps projects in process instead of Postgres.
	InMemory    bool
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			CORSOrigins:    getEnvAsList("CORS_ORIGINS", []string{"*"}),
			APIKey:         getEnv("API_KEY", ""),
			WSPingInterval: getEnvAsDuration("WS_PING_INTERVAL", 30*time.Second),
			WSReadTimeout:  getEnvAsDuration("WS_READ_TIMEOUT", 10*time.Minute),
			WSWriteTimeout: getEnvAsDuration("WS_WRITE_TIMEOUT", 10*time.Second),
			WSMaxFrameSize: int64(getEnvAsInt("WS_MAX_FRAME_SIZE", 1<<20)),
		},
		Database: DatabaseConfig{
			DSN:      getEnv("DB_DSN", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "genesis"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 2),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		LLM: LLMConfig{
			Provider:          strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
			GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
			GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-pro"),
			GeminiBaseURL:     getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
			OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o"),
			OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
			RequestsPerMinute: getEnvAsInt("LLM_REQUESTS_PER_MINUTE", 30),
		},
		Realtime: RealtimeConfig{
			DefaultProvider: strings.ToLower(getEnv("REALTIME_PROVIDER", "openai")),
			OpenAIEnabled:   getEnvAsBool("OPENAI_REALTIME_ENABLED", true),
			GeminiEnabled:   getEnvAsBool("GEMINI_LIVE_ENABLED", true),
			OpenAIModel:     getEnv("OPENAI_REALTIME_MODEL", "gpt-4o-realtime-preview"),
			OpenAIVoice:     getEnv("OPENAI_REALTIME_VOICE", "verse"),
			OpenAIBaseURL:   getEnv("OPENAI_REALTIME_BASE_URL", "https://api.openai.com/v1"),
			OpenAIWSURL:     getEnv("OPENAI_REALTIME_WS_URL", "wss://api.openai.com/v1/realtime"),
			GeminiModel:     getEnv("GEMINI_LIVE_MODEL", "models/gemini-2.0-flash-live-001"),
			GeminiLiveURL: getEnv("GEMINI_LIVE_URL",
				"wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"),
			SessionTTL:    getEnvAsDuration("VOICE_SESSION_TTL", 2*time.Hour),
			SweepSchedule: getEnv("VOICE_SWEEP_SCHEDULE", "0 */10 * * * *"),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			InMemory:    getEnvAsBool("GENESIS_IN_MEMORY", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Database.DSN == "" && c.Database.Host == "" {
		return fmt.Errorf("DB_DSN or DB_HOST is required")
	}

	switch c.LLM.Provider {
	case "gemini", "openai", "mock":
	default:
		return fmt.Errorf("LLM_PROVIDER must be one of gemini, openai, mock (got %q)", c.LLM.Provider)
	}

	switch c.Realtime.DefaultProvider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("REALTIME_PROVIDER must be openai or gemini (got %q)", c.Realtime.DefaultProvider)
	}

	if c.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("LLM_REQUESTS_PER_MINUTE must not be negative")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean for %s, using default: %t", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration for %s, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	out := make([]string, 0, 4)
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
