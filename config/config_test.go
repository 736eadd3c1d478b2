package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
				"JWT_SECRET":  "dev-secret",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "veda", cfg.Database.User)
				assert.False(t, cfg.Database.AutoMigrate)
				assert.Equal(t, "authenticated", cfg.Auth.Audience)
				assert.Equal(t, 20, cfg.Routing.HistoryLimit)
				assert.Equal(t, 30*time.Second, cfg.Routing.AttemptTimeout)
				assert.NotEmpty(t, cfg.Routing.SystemPrompt)
				assert.Equal(t, 50, cfg.Quota.DefaultDailyLimit)
			},
		},
		{
			name: "provider defaults",
			envVars: map[string]string{
				"JWT_SECRET": "dev-secret",
			},
			check: func(t *testing.T, cfg *Config) {
				p := cfg.Providers
				assert.Equal(t, "xai", p.Reasoning.Name)
				assert.Equal(t, "https://api.x.ai/v1", p.Reasoning.BaseURL)
				assert.Equal(t, "grok-2-1212", p.Reasoning.Model)
				assert.Equal(t, "groq", p.FastChat.Name)
				assert.Equal(t, "llama-3.1-8b-instant", p.FastChat.Model)
				assert.Equal(t, "llama-3.3-70b-versatile", p.FastChat.LargeModel)
				assert.Equal(t, "gemini", p.Vision.Name)
				assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/openai", p.Vision.BaseURL)
				assert.Equal(t, "openrouter", p.Fallback.Name)
				assert.Equal(t, "google/gemini-2.0-flash-001", p.Fallback.Model)
				assert.Contains(t, p.Fallback.Headers, "HTTP-Referer")
				assert.Equal(t, "Veda", p.Fallback.Headers["X-Title"])
				assert.False(t, p.Fallback.Configured())
			},
		},
		{
			name: "supabase secret takes precedence",
			envVars: map[string]string{
				"SUPABASE_JWT_SECRET": "supabase",
				"JWT_SECRET":          "plain",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "supabase", cfg.Auth.JWTSecret)
			},
		},
		{
			name: "production configuration",
			envVars: map[string]string{
				"ENVIRONMENT":         "production",
				"SERVER_PORT":         "9000",
				"DATABASE_URL":        "postgres://veda:pw@prod-db.example.com:5433/veda?sslmode=require",
				"DB_AUTO_MIGRATE":     "true",
				"SUPABASE_JWT_SECRET": "prod-secret",
				"OPENROUTER_API_KEY":  "or-key",
				"XAI_API_KEY":         "xai-key",
				"XAI_MODEL":           "grok-3",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsProduction())
				assert.False(t, cfg.IsDevelopment())
				assert.Equal(t, 9000, cfg.Server.Port)
				assert.True(t, cfg.Database.AutoMigrate)
				assert.Equal(t, "host=prod-db.example.com port=5433 database=veda", cfg.Database.LogString())
				assert.True(t, cfg.Providers.Fallback.Configured())
				assert.Equal(t, "grok-3", cfg.Providers.Reasoning.Model)
			},
		},
		{
			name: "custom timeouts and pool settings",
			envVars: map[string]string{
				"JWT_SECRET":           "s",
				"SERVER_READ_TIMEOUT":  "60s",
				"SERVER_WRITE_TIMEOUT": "90s",
				"DB_MAX_OPEN_CONNS":    "50",
				"DB_MAX_IDLE_CONNS":    "10",
				"PROVIDER_TIMEOUT":     "12s",
				"CHAT_HISTORY_LIMIT":   "8",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
				assert.Equal(t, 50, cfg.Database.MaxOpenConns)
				assert.Equal(t, 10, cfg.Database.MaxIdleConns)
				assert.Equal(t, 12*time.Second, cfg.Routing.AttemptTimeout)
				assert.Equal(t, 12*time.Second, cfg.Providers.Vision.Timeout)
				assert.Equal(t, 8, cfg.Routing.HistoryLimit)
			},
		},
		{
			name: "cors origins list",
			envVars: map[string]string{
				"JWT_SECRET":           "s",
				"CORS_ALLOWED_ORIGINS": "https://veda.ai, https://app.veda.ai ,",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"https://veda.ai", "https://app.veda.ai"}, cfg.Server.AllowedOrigins)
			},
		},
		{
			name: "observability configuration",
			envVars: map[string]string{
				"JWT_SECRET": "s",
				"LOG_LEVEL":  "debug",
				"LOG_FORMAT": "text",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Observability.LogLevel)
				assert.Equal(t, "text", cfg.Observability.LogFormat)
			},
		},
		{
			name: "PORT env var takes precedence over SERVER_PORT",
			envVars: map[string]string{
				"JWT_SECRET":  "s",
				"PORT":        "9443",
				"SERVER_PORT": "9000",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9443, cfg.Server.Port)
			},
		},
		{
			name:    "missing jwt secret",
			envVars: map[string]string{"ENVIRONMENT": "development"},
			wantErr: true,
		},
		{
			name: "production without fallback provider",
			envVars: map[string]string{
				"ENVIRONMENT": "production",
				"JWT_SECRET":  "s",
				"XAI_API_KEY": "xai-key",
			},
			wantErr: true,
		},
		{
			name: "duplicate provider names",
			envVars: map[string]string{
				"JWT_SECRET":         "s",
				"GEMINI_PROVIDER_NAME": "groq",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg, err := New(context.Background())

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Environment: "development",
		Database: DatabaseConfig{
			Host:     "localhost",
			User:     "user",
			Database: "db",
		},
		Auth: AuthConfig{JWTSecret: "secret"},
		Providers: ProvidersConfig{
			Reasoning: ProviderConfig{Name: "xai", Model: "grok", BaseURL: "https://x"},
			FastChat:  ProviderConfig{Name: "groq", Model: "llama", BaseURL: "https://g"},
			Vision:    ProviderConfig{Name: "gemini", Model: "flash", BaseURL: "https://v"},
			Fallback:  ProviderConfig{Name: "openrouter", Model: "flash", BaseURL: "https://o"},
		},
		Observability: ObservabilityConfig{LogLevel: "info"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid development config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing database host",
			mutate:  func(c *Config) { c.Database.Host = "" },
			wantErr: true,
			errMsg:  "database configuration required",
		},
		{
			name:    "missing database user",
			mutate:  func(c *Config) { c.Database.User = "" },
			wantErr: true,
			errMsg:  "database user is required",
		},
		{
			name: "connection string skips field checks",
			mutate: func(c *Config) {
				c.Database = DatabaseConfig{ConnectionString: "postgres://localhost/veda"}
			},
		},
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "" },
			wantErr: true,
			errMsg:  "jwt secret is required",
		},
		{
			name:    "production without fallback key",
			mutate:  func(c *Config) { c.Environment = "production" },
			wantErr: true,
			errMsg:  "fallback provider",
		},
		{
			name: "production with fallback key",
			mutate: func(c *Config) {
				c.Environment = "production"
				c.Providers.Fallback.APIKey = "key"
			},
		},
		{
			name:    "provider without model",
			mutate:  func(c *Config) { c.Providers.Vision.Model = "" },
			wantErr: true,
			errMsg:  "model",
		},
		{
			name:    "negative history limit",
			mutate:  func(c *Config) { c.Routing.HistoryLimit = -1 },
			wantErr: true,
			errMsg:  "history limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		environment string
		want        bool
	}{
		{"production", true},
		{"prod", true},
		{"development", false},
		{"staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.want, cfg.IsProduction())
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		Database: "testdb",
		SSLMode:  "disable",
	}

	assert.Equal(t, "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable", cfg.DSN())

	cfg.ConnectionString = "postgres://u:p@db/veda"
	assert.Equal(t, "postgres://u:p@db/veda", cfg.DSN())
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{Host: "0.0.0.0", Port: 8080}
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue int
		want         int
	}{
		{"valid int", "42", 10, 42},
		{"empty value", "", 10, 10},
		{"invalid int", "not-a-number", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv("TEST_INT", tt.value)
			}
			assert.Equal(t, tt.want, getEnvAsInt("TEST_INT", tt.defaultValue))
		})
	}
}

func TestGetEnvAsBool(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		want         bool
	}{
		{"true", "true", false, true},
		{"false", "false", true, false},
		{"empty value", "", true, true},
		{"invalid bool", "not-a-bool", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv("TEST_BOOL", tt.value)
			}
			assert.Equal(t, tt.want, getEnvAsBool("TEST_BOOL", tt.defaultValue))
		})
	}
}
