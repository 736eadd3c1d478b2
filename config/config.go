package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Providers     ProvidersConfig
	Routing       RoutingConfig
	Quota         QuotaConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	AutoMigrate      bool
}

// AuthConfig holds identity token verification settings
type AuthConfig struct {
	JWTSecret string
	Issuer    string // empty skips the iss check
	Audience  string // empty skips the aud check
}

// ProviderConfig describes one OpenAI-compatible upstream bound to a routing role
type ProviderConfig struct {
	Name       string
	APIKey     string
	BaseURL    string
	Model      string
	LargeModel string
	Timeout    time.Duration
	Headers    map[string]string
}

// Configured reports whether the provider has credentials
func (p ProviderConfig) Configured() bool {
	return p.APIKey != ""
}

// ProvidersConfig binds a provider to every routing role
type ProvidersConfig struct {
	Reasoning ProviderConfig // xAI
	FastChat  ProviderConfig // Groq
	Vision    ProviderConfig // Gemini
	Fallback  ProviderConfig // OpenRouter
}

// All returns the providers in role order
func (p ProvidersConfig) All() []ProviderConfig {
	return []ProviderConfig{p.Reasoning, p.FastChat, p.Vision, p.Fallback}
}

// RoutingConfig holds chat pipeline settings
type RoutingConfig struct {
	AttemptTimeout time.Duration
	HistoryLimit   int
	MaxTokens      int
	Temperature    float64
	SystemPrompt   string
}

// QuotaConfig holds message quota settings
type QuotaConfig struct {
	// DefaultDailyLimit mirrors the column default and is reported on status
	DefaultDailyLimit int
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

const defaultSystemPrompt = "You are Veda, a helpful wellness and nutrition assistant. " +
	"Answer clearly and concisely. When asked for a diet or meal plan, respond with valid JSON."

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	providerTimeout := getEnvAsDuration("PROVIDER_TIMEOUT", 30*time.Second)

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			JWTSecret: getEnv("SUPABASE_JWT_SECRET", getEnv("JWT_SECRET", "")),
			Issuer:    getEnv("JWT_ISSUER", ""),
			Audience:  getEnv("JWT_AUDIENCE", "authenticated"),
		},
		Providers: ProvidersConfig{
			Reasoning: ProviderConfig{
				Name:    getEnv("XAI_PROVIDER_NAME", "xai"),
				APIKey:  getEnv("XAI_API_KEY", ""),
				BaseURL: getEnv("XAI_BASE_URL", "https://api.x.ai/v1"),
				Model:   getEnv("XAI_MODEL", "grok-2-1212"),
				Timeout: providerTimeout,
			},
			FastChat: ProviderConfig{
				Name:       getEnv("GROQ_PROVIDER_NAME", "groq"),
				APIKey:     getEnv("GROQ_API_KEY", ""),
				BaseURL:    getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
				Model:      getEnv("GROQ_MODEL", "llama-3.1-8b-instant"),
				LargeModel: getEnv("GROQ_LARGE_MODEL", "llama-3.3-70b-versatile"),
				Timeout:    providerTimeout,
			},
			Vision: ProviderConfig{
				Name:    getEnv("GEMINI_PROVIDER_NAME", "gemini"),
				APIKey:  getEnv("GEMINI_API_KEY", ""),
				BaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai"),
				Model:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
				Timeout: providerTimeout,
			},
			Fallback: ProviderConfig{
				Name:    getEnv("OPENROUTER_PROVIDER_NAME", "openrouter"),
				APIKey:  getEnv("OPENROUTER_API_KEY", ""),
				BaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
				Model:   getEnv("OPENROUTER_MODEL", "google/gemini-2.0-flash-001"),
				Timeout: providerTimeout,
				Headers: map[string]string{
					"HTTP-Referer": getEnv("OPENROUTER_SITE_URL", "https://veda.ai"),
					"X-Title":      getEnv("OPENROUTER_APP_NAME", "Veda"),
				},
			},
		},
		Routing: RoutingConfig{
			AttemptTimeout: providerTimeout,
			HistoryLimit:   getEnvAsInt("CHAT_HISTORY_LIMIT", 20),
			MaxTokens:      getEnvAsInt("CHAT_MAX_TOKENS", 2048),
			Temperature:    getEnvAsFloat("CHAT_TEMPERATURE", 0.7),
			SystemPrompt:   getEnv("CHAT_SYSTEM_PROMPT", defaultSystemPrompt),
		},
		Quota: QuotaConfig{
			DefaultDailyLimit: getEnvAsInt("QUOTA_DEFAULT_DAILY_LIMIT", 50),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	// Database validation (DATABASE_URL or DB_* vars)
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required: set SUPABASE_JWT_SECRET or JWT_SECRET")
	}

	// The fallback ends every route, so production refuses to start without it.
	if c.IsProduction() && !c.Providers.Fallback.Configured() {
		return fmt.Errorf("fallback provider %q must be configured in production", c.Providers.Fallback.Name)
	}

	seen := make(map[string]bool)
	for _, p := range c.Providers.All() {
		if p.Name == "" || p.Model == "" || p.BaseURL == "" {
			return fmt.Errorf("provider name, model and base URL are required")
		}
		if seen[p.Name] {
			return fmt.Errorf("provider name %q is used twice", p.Name)
		}
		seen[p.Name] = true
	}

	if c.Routing.HistoryLimit < 0 {
		return fmt.Errorf("chat history limit must not be negative")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

func loadDatabaseConfig() DatabaseConfig {
	cfg := DatabaseConfig{
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", false),
	}
	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		cfg.ConnectionString = dbURL
		return cfg
	}
	cfg.Host = getEnv("DB_HOST", "localhost")
	cfg.Port = getEnvAsInt("DB_PORT", 5432)
	cfg.User = getEnv("DB_USER", "veda")
	cfg.Password = getEnv("DB_PASSWORD", "")
	cfg.Database = getEnv("DB_NAME", "veda")
	cfg.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 8080
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
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
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
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
