package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"cv-assistant/internal/advisor"
	"cv-assistant/internal/chat"
	"cv-assistant/internal/chat/stream"
	"cv-assistant/internal/cvparse"
	"cv-assistant/internal/intake"
	"cv-assistant/internal/llm"
	"cv-assistant/internal/llm/gemini"
	"cv-assistant/internal/llm/proxy"
	"cv-assistant/internal/queue"
	"cv-assistant/internal/services/health"
	"cv-assistant/internal/shared/config"
	"cv-assistant/internal/shared/server"
	"cv-assistant/internal/shared/storage/db"
	"cv-assistant/internal/shared/storage/object"
	localstore "cv-assistant/internal/shared/storage/object/local"
	s3store "cv-assistant/internal/shared/storage/object/s3"
	"cv-assistant/internal/shared/telemetry"
	"cv-assistant/internal/state"
	"cv-assistant/internal/workspace"
)

// App holds shared dependencies and the HTTP router.
type App struct {
	Config      config.Config
	Router      *gin.Engine
	DB          *sql.DB
	Store       object.Store
	Queue       queue.Client
	StateRepo   state.Repo
	Completer   llm.Completer
	Coordinator *chat.Coordinator
	Advisor     *advisor.Advisor
	Workspaces  *workspace.Manager
	Health      *health.Service
}

// Build prepares every dependency from cfg and wires the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, DB: sqlDB}

	if sqlDB != nil {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			app.Close()
			return nil, err
		}
		app.StateRepo = &state.PGRepo{DB: sqlDB}
	} else {
		app.StateRepo = state.NewMemoryRepo()
	}

	if app.Store, err = buildStore(ctx, cfg); err != nil {
		app.Close()
		return nil, err
	}
	if app.Queue, err = buildQueue(ctx, cfg); err != nil {
		app.Close()
		return nil, err
	}

	completer, proxyClient, err := buildCompleter(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Completer = completer

	app.Coordinator, err = buildCoordinator(cfg, completer, proxyClient)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Advisor = advisor.New(completer, cfg.RecommendLimit)
	app.Workspaces = workspace.NewManager(workspace.Deps{
		Repo:        app.StateRepo,
		Intake:      intake.NewService(app.Store, cvparse.New(completer)),
		Coordinator: app.Coordinator,
		Advisor:     app.Advisor,
		Queue:       app.Queue,
	})
	app.Health = health.NewService(sqlDB, app.Workspaces.Len)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:    cfg,
		Health:    app.Health,
		Workspace: workspace.NewHandler(app.Workspaces),
	})
	return app, nil
}

// Close releases the database pool.
func (a *App) Close() {
	if a == nil || a.DB == nil {
		return
	}
	if err := a.DB.Close(); err != nil {
		telemetry.Warn("bootstrap.db_close_failed", map[string]any{"error": err.Error()})
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Info("bootstrap.memory_state", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.DefaultServerOptions())
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_state", map[string]any{"reason": "database connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "none":
		return nil, nil
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.SubmissionsQueueURL) == "" {
		return queue.NopClient{}, nil
	}
	return queue.NewSQSClient(ctx, cfg.SubmissionsQueueURL, cfg.AWSRegion)
}

func buildCompleter(ctx context.Context, cfg config.Config) (llm.Completer, *proxy.Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.LLMProvider)) {
	case "proxy":
		if strings.TrimSpace(cfg.LLMProxyURL) == "" {
			if isDevLike(cfg.Env) {
				telemetry.Warn("bootstrap.llm_unconfigured", map[string]any{"provider": "proxy"})
				return llm.PlaceholderCompleter{}, nil, nil
			}
			return nil, nil, fmt.Errorf("LLM_PROXY_URL is required for LLM_PROVIDER=proxy")
		}
		client, err := proxy.NewClient(ctx, proxy.Options{
			URL:          cfg.LLMProxyURL,
			Model:        cfg.LLMModel,
			Timeout:      cfg.LLMTimeout,
			TokenURL:     cfg.LLMProxyTokenURL,
			ClientID:     cfg.LLMProxyClientID,
			ClientSecret: cfg.LLMProxyClientSecret,
			Scopes:       cfg.LLMProxyScopes,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	case "gemini":
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel, cfg.GeminiBaseURL)
		if err != nil {
			return nil, nil, err
		}
		telemetry.Info("bootstrap.llm_ready", map[string]any{"provider": "gemini", "model": client.Model()})
		return client, nil, nil
	default:
		return llm.PlaceholderCompleter{}, nil, nil
	}
}

// buildCoordinator enables streaming only against the proxy, whose stream
// endpoint is derived from its blocking URL.
func buildCoordinator(cfg config.Config, completer llm.Completer, proxyClient *proxy.Client) (*chat.Coordinator, error) {
	opts := chat.Options{
		Deadline:  cfg.StreamDeadline,
		Completer: completer,
	}
	if cfg.StreamEnabled && proxyClient != nil {
		endpoint, err := stream.EndpointFor(proxyClient.URL())
		if err != nil {
			return nil, err
		}
		opts.Dialer = stream.WSDialer{TokenSource: proxyClient.TokenSource()}
		opts.Endpoint = endpoint
		opts.StartPayload = func(prompt string, history []llm.Message, systemPrompt string) any {
			return proxyClient.StreamRequest(prompt, history, systemPrompt)
		}
	}
	return chat.NewCoordinator(opts), nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "test":
		return true
	default:
		return false
	}
}
