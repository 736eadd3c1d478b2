package app

import (
	"context"
	"fmt"

	"github.com/vedaai/veda-backend/auth"
	"github.com/vedaai/veda-backend/config"
	"github.com/vedaai/veda-backend/middleware"
	"github.com/vedaai/veda-backend/repositories"
	"github.com/vedaai/veda-backend/repositories/postgres"
	"github.com/vedaai/veda-backend/services/chat"
	"github.com/vedaai/veda-backend/services/providers"
	"github.com/vedaai/veda-backend/services/providers/openai"
	"github.com/vedaai/veda-backend/services/quota"
	"github.com/vedaai/veda-backend/services/routing"
	"github.com/vedaai/veda-backend/services/users"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Repos     *repositories.Repositories
	TxManager repositories.TransactionManager

	// Model routing
	Providers *providers.Registry
	Router    *routing.RoutingService

	// Services
	Quota *quota.QuotaService
	Chats *chat.ChatService
	Users *users.UserService

	// Auth
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Initialize PostgreSQL
	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()

	// Initialize provider registry and route table
	if err := deps.initRouting(cfg); err != nil {
		_ = deps.RepoFactory.Close()
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	deps.initServices(cfg)
	deps.initAuth(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase opens the pool, applies migrations when enabled and checks the connection
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(ctx, cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.PingContext(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("database ping failed: %w", err)
	}

	d.Logger.Info("repository factory ready", zap.Bool("auto_migrate", cfg.Database.AutoMigrate))

	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	d.Repos = d.RepoFactory.NewRepositories()
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initRouting registers every configured provider and builds the route table
func (d *Dependencies) initRouting(cfg *config.Config) error {
	registry, err := NewProviderRegistry(cfg.Providers, d.Logger)
	if err != nil {
		return err
	}
	d.Providers = registry

	table := routing.NewTable(BindingsFromConfig(cfg.Providers))
	d.Router = routing.NewRoutingService(RoutingConfigFrom(cfg.Routing), table, registry, d.Logger)

	for _, task := range table.Tasks() {
		names := make([]string, 0)
		for _, c := range table.Candidates(task) {
			names = append(names, c.String())
		}
		d.Logger.Debug("route", zap.String("task", string(task)), zap.Strings("candidates", names))
	}
	return nil
}

func (d *Dependencies) initServices(cfg *config.Config) {
	d.Quota = quota.NewQuotaService(d.Repos.Settings, d.Logger)
	d.Chats = chat.NewChatService(d.TxManager, d.Repos, d.Quota, d.Router, chat.Config{
		HistoryLimit: cfg.Routing.HistoryLimit,
		SystemPrompt: cfg.Routing.SystemPrompt,
	}, d.Logger)
	d.Users = users.NewUserService(d.TxManager, d.Repos, d.Quota, d.Logger)
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	validator := auth.NewValidator(auth.Config{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	})
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Users, d.Logger)
}

// NewProviderRegistry registers an OpenAI-compatible adapter for every
// provider that has credentials. Unconfigured providers are skipped, and the
// router treats their candidates as failed.
func NewProviderRegistry(cfg config.ProvidersConfig, logger *zap.Logger) (*providers.Registry, error) {
	registry := providers.NewRegistry()

	for _, p := range cfg.All() {
		if !p.Configured() {
			logger.Warn("provider not configured, its routes will fall through",
				zap.String("provider", p.Name))
			continue
		}
		adapter := openai.NewAdapter(providers.ProviderConfig{
			Name:    p.Name,
			APIKey:  p.APIKey,
			BaseURL: p.BaseURL,
			Timeout: p.Timeout,
			Headers: p.Headers,
		})
		if err := registry.RegisterProvider(adapter); err != nil {
			return nil, fmt.Errorf("register provider %s: %w", p.Name, err)
		}
		logger.Info("provider registered",
			zap.String("provider", p.Name),
			zap.String("base_url", p.BaseURL))
	}

	if registry.GetProviderCount() == 0 {
		logger.Warn("no LLM providers configured")
	}
	return registry, nil
}

// BindingsFromConfig maps configured providers onto routing roles
func BindingsFromConfig(cfg config.ProvidersConfig) routing.Bindings {
	bind := func(p config.ProviderConfig) routing.Binding {
		return routing.Binding{Provider: p.Name, Model: p.Model, LargeModel: p.LargeModel}
	}
	return routing.Bindings{
		routing.RoleReasoning: bind(cfg.Reasoning),
		routing.RoleFastChat:  bind(cfg.FastChat),
		routing.RoleVision:    bind(cfg.Vision),
		routing.RoleFallback:  bind(cfg.Fallback),
	}
}

// RoutingConfigFrom converts the routing section of the config
func RoutingConfigFrom(cfg config.RoutingConfig) routing.RoutingConfig {
	rc := routing.DefaultRoutingConfig()
	if cfg.AttemptTimeout > 0 {
		rc.AttemptTimeout = cfg.AttemptTimeout
	}
	if cfg.MaxTokens > 0 {
		rc.MaxTokens = cfg.MaxTokens
	}
	if cfg.Temperature > 0 {
		rc.Temperature = float32(cfg.Temperature)
	}
	return rc
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
	}

	_ = d.Logger.Sync()

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
