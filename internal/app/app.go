// Package app wires configuration into the stores and services shared by the
// server and the seed command.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/p-n-ai/pai-learn/internal/ai"
	"github.com/p-n-ai/pai-learn/internal/api"
	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/learning"
	"github.com/p-n-ai/pai-learn/internal/platform/auth"
	"github.com/p-n-ai/pai-learn/internal/platform/cache"
	"github.com/p-n-ai/pai-learn/internal/platform/config"
	"github.com/p-n-ai/pai-learn/internal/platform/database"
	"github.com/p-n-ai/pai-learn/internal/platform/docstore"
	"github.com/p-n-ai/pai-learn/internal/progression"
	"github.com/p-n-ai/pai-learn/internal/quizgen"
	"github.com/p-n-ai/pai-learn/internal/seed"
)

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// App holds the connected stores and services.
type App struct {
	Store   learning.Store
	Catalog catalog.Store
	Engine  *progression.Engine
	Quizzes *quizgen.Generator
	Auth    *auth.Authenticator

	db    *database.DB
	cache *cache.Cache
	docs  *docstore.DocStore
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// New connects every configured backend. On error, anything already opened
// is closed.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}
	if err := a.open(ctx, cfg); err != nil {
		a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) open(ctx context.Context, cfg *config.Config) error {
	if err := a.openStore(ctx, cfg); err != nil {
		return err
	}
	if err := a.openCatalog(ctx, cfg); err != nil {
		return err
	}

	a.Engine = progression.NewEngine(progression.EngineConfig{Store: a.Store})
	a.Auth = auth.New(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
	if cfg.HasAIProvider() {
		a.Quizzes = quizgen.NewGenerator(quizgen.GeneratorConfig{
			AIRouter: NewAIRouter(cfg.AI),
			Budget:   a.newBudget(cfg.AI.Budget),
			Timeout:  cfg.AI.Timeout(),
		})
	} else {
		slog.Warn("no AI provider configured, quiz generation disabled")
	}
	return nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) error {
	if cfg.Store.Backend == config.BackendMemory {
		slog.Info("using in-memory store")
		a.Store = learning.NewMemoryStore()
		return nil
	}

	db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	a.db = db
	if cfg.Database.AutoMigrate {
		if err := db.EnsureSchema(ctx, learning.Schema); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	store, err := learning.NewPostgresStore(db.Pool)
	if err != nil {
		return err
	}
	a.Store = store
	slog.Info("database connected", "max_conns", cfg.Database.MaxConns)
	return nil
}

func (a *App) openCatalog(ctx context.Context, cfg *config.Config) error {
	var cat catalog.Store
	if cfg.Mongo.URL == "" {
		slog.Info("using in-memory catalog")
		cat = catalog.NewMemoryStore()
	} else {
		docs, err := docstore.New(ctx, cfg.Mongo.URL, cfg.Mongo.Database)
		if err != nil {
			return fmt.Errorf("connecting document store: %w", err)
		}
		a.docs = docs
		mongoStore, err := catalog.NewMongoStore(docs.DB)
		if err != nil {
			return err
		}
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			return err
		}
		cat = mongoStore
		slog.Info("document store connected", "database", cfg.Mongo.Database)
	}

	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return fmt.Errorf("connecting cache: %w", err)
		}
		a.cache = c
		cat = catalog.NewCachedStore(cat, c, cfg.Cache.TTL())
		slog.Info("catalog cache enabled", "ttl", cfg.Cache.TTL().String())
	}
	a.Catalog = cat
	return nil
}

// NewAIRouter registers the configured providers in fallback order: OpenAI,
// DeepSeek, Anthropic, Google, OpenRouter, then a local Ollama. Each provider
// uses its own default model unless one is configured.
func NewAIRouter(cfg config.AIConfig) *ai.Router {
	router := ai.NewRouter()
	if cfg.OpenAI.APIKey != "" {
		opts := []ai.OpenAIOption{ai.WithModel(cfg.OpenAI.Model)}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, ai.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		router.Register("openai", ai.NewOpenAIProvider(cfg.OpenAI.APIKey, opts...))
	}
	if cfg.DeepSeek.APIKey != "" {
		router.Register("deepseek", ai.NewDeepSeekProvider(cfg.DeepSeek.APIKey))
	}
	if cfg.Anthropic.APIKey != "" {
		p, err := ai.NewAnthropicProvider(cfg.Anthropic.APIKey, ai.WithAnthropicModel(cfg.Anthropic.Model))
		if err != nil {
			slog.Warn("skipping anthropic provider", "error", err)
		} else {
			router.Register("anthropic", p)
		}
	}
	if cfg.Google.APIKey != "" {
		router.Register("google", ai.NewGoogleProvider(cfg.Google.APIKey, ai.WithGoogleModel(cfg.Google.Model)))
	}
	if cfg.OpenRouter.APIKey != "" {
		router.Register("openrouter", ai.NewOpenRouterProvider(cfg.OpenRouter.APIKey, ai.WithModel(cfg.OpenRouter.Model)))
	}
	if cfg.Ollama.URL != "" {
		router.Register("ollama", ai.NewOllamaProvider(cfg.Ollama.URL, ai.WithModel(cfg.Ollama.Model)))
	}
	slog.Info("AI providers registered", "providers", router.Providers())
	return router
}

// newBudget returns the per-caller token budget, shared through Redis when
// a cache is connected. It returns nil when no limit is configured.
func (a *App) newBudget(cfg config.BudgetConfig) ai.BudgetChecker {
	if cfg.TokensPerCaller <= 0 {
		return nil
	}
	if a.cache != nil {
		return cache.NewBudget(a.cache, cfg.TokensPerCaller, cfg.Window())
	}
	slog.Warn("no cache configured, token budget is tracked per instance")
	return ai.NewInMemoryBudget(cfg.TokensPerCaller)
}

// API returns the REST server over the app's services.
func (a *App) API() *api.Server {
	return api.New(api.Config{
		Store:   a.Store,
		Catalog: a.Catalog,
		Engine:  a.Engine,
		Quizzes: a.Quizzes,
		Auth:    a.Auth,
	})
}

// Checks returns the readiness checks for the connected backends.
func (a *App) Checks() map[string]HealthChecker {
	checks := make(map[string]HealthChecker)
	if a.db != nil {
		checks["database"] = a.db
	}
	if a.cache != nil {
		checks["cache"] = a.cache
	}
	if a.docs != nil {
		checks["docstore"] = a.docs
	}
	return checks
}

// Seed loads the seed files in dir and applies them.
func (a *App) Seed(ctx context.Context, dir string) (seed.Result, error) {
	files, err := seed.Load(dir)
	if err != nil {
		return seed.Result{}, err
	}
	start := time.Now()
	res, err := seed.NewSeeder(a.Store, a.Catalog).Apply(ctx, files...)
	if err != nil {
		return res, err
	}
	slog.Info("seed applied",
		"files", len(files),
		"created", res.Created,
		"existing", res.Existing,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// Close releases every open connection.
func (a *App) Close(ctx context.Context) {
	var errs []error
	if a.docs != nil {
		errs = append(errs, a.docs.Close(ctx))
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.db != nil {
		a.db.Close()
	}
	if err := errors.Join(errs...); err != nil {
		slog.Warn("closing connections", "error", err)
	}
}
