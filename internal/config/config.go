package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bot process.
type Config struct {
	App          AppConfig
	Discord      DiscordConfig
	Store        StoreConfig
	Transcript   TranscriptConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Ops          OpsConfig
	Notification NotificationConfig
}

// AppConfig controls process level behavior.
type AppConfig struct {
	Name    string
	Env     string
	Version string
}

// DiscordConfig holds gateway connection values.
type DiscordConfig struct {
	Token   string
	GuildID string
}

// StoreConfig locates the persisted configuration document.
type StoreConfig struct {
	Path string
}

// TranscriptConfig controls transcript archiving.
type TranscriptConfig struct {
	Dir string
}

// RedisConfig holds Redis connection values. Addr empty means the
// in-memory cooldown tracker is used instead.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior. Name becomes the logger
// name on every line, so bot output is attributable when logs from
// several processes are aggregated.
type LoggerConfig struct {
	Level string
	Name  string
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	WebhookURL string
}

// OpsConfig configures the operator HTTP API.
type OpsConfig struct {
	Enabled               bool
	Host                  string
	Port                  string
	JWTSecret             string
	TokenTTLMinutes       int
	RequestTimeoutSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "support-ticket-bot"),
			Env:     getEnv("APP_ENV", "development"),
			Version: getEnv("APP_VERSION", "dev"),
		},
		Discord: DiscordConfig{
			Token:   token,
			GuildID: os.Getenv("GUILD_ID"),
		},
		Store: StoreConfig{
			Path: getEnv("STATE_FILE", "config.json"),
		},
		Transcript: TranscriptConfig{
			Dir: getEnv("TRANSCRIPT_DIR", "transcripts"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			Name:  getEnv("APP_NAME", "support-ticket-bot"),
		},
		Ops: OpsConfig{
			Enabled:               getEnvAsBool("OPS_API_ENABLED", true),
			Host:                  getEnv("OPS_API_HOST", "0.0.0.0"),
			Port:                  getEnv("OPS_API_PORT", "8080"),
			JWTSecret:             getEnv("OPS_JWT_SECRET", "dev-secret"),
			TokenTTLMinutes:       getEnvAsInt("OPS_TOKEN_TTL_MINUTES", 60),
			RequestTimeoutSeconds: getEnvAsInt("OPS_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Notification: NotificationConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

// Addr returns the ops API bind address.
func (o OpsConfig) Addr() string {
	return fmt.Sprintf("%s:%s", o.Host, o.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (o OpsConfig) RequestTimeout() time.Duration {
	if o.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(o.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
