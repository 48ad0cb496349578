package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"newsintel/internal/config"
	"newsintel/internal/domain"
	"newsintel/internal/infrastructure/credcache"
	"newsintel/internal/infrastructure/credstore"
	"newsintel/internal/infrastructure/extract"
	"newsintel/internal/infrastructure/news"
	"newsintel/internal/infrastructure/provider"
	"newsintel/internal/infrastructure/telegram"
	"newsintel/internal/logging"
	"newsintel/internal/ports"
	"newsintel/internal/session"
	"newsintel/internal/source"
	"newsintel/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg         config.Config
	logger      *slog.Logger
	db          *sql.DB
	redisClient *redis.Client

	resolver    *usecase.Resolver
	pipeline    *usecase.Pipeline
	synthesizer *usecase.Synthesizer
	notifier    ports.Notifier
}

// New builds a runnable application instance. onUpdate receives per-article
// progress; pass nil to discard updates.
func New(cfg config.Config, baseLogger *slog.Logger, onUpdate usecase.UpdateFunc) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	a := &Application{cfg: cfg, logger: baseLogger}

	store, err := a.buildStore()
	if err != nil {
		return nil, err
	}
	cache := a.buildCache()

	a.resolver = usecase.NewResolver(cache, store, cfg.FallbackSecret,
		baseLogger.With("component", "resolver"))

	primary := provider.NewGeminiProvider(cfg.Providers.Primary.Endpoint, nil)
	var secondary ports.ModelProvider
	if cfg.Providers.Fallback.Endpoint != "" {
		secondary = provider.NewOpenAICompatProvider("groq", cfg.Providers.Fallback.Endpoint, nil)
	}

	selector := usecase.NewModelSelector(cfg.Providers.Primary.DefaultModel,
		baseLogger.With("component", "modelselect"))

	registry := source.NewRegistry()
	registry.Register(news.NewGNewsSource(cfg.News.Endpoint, cfg.News.Location(), nil))
	registry.Register(news.NewGoogleNewsSource(cfg.News.Location()))

	articleSource, err := registry.Resolve(cfg.News.Provider)
	if err != nil {
		return nil, fmt.Errorf("configure news source: %w", err)
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:        articleSource,
		Primary:       primary,
		Secondary:     secondary,
		Resolver:      a.resolver,
		Selector:      selector,
		Extractor:     extract.NewPageExtractor(nil),
		OnUpdate:      onUpdate,
		Logger:        baseLogger.With("component", "pipeline"),
		News:          cfg.News,
		Tuning:        cfg.Pipeline,
		FallbackModel: cfg.Providers.Fallback.Model,
	})

	a.synthesizer = usecase.NewSynthesizer(primary, cfg.Briefing,
		baseLogger.With("component", "briefing"))

	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		a.notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}

	return a, nil
}

// NewSession creates the per-user context with its own cooldown gate.
func (a *Application) NewSession(user domain.User) *session.Session {
	return session.New(user, session.NewGate(a.cfg.Pipeline.Cooldown.Std()))
}

// Analyze executes one run for the session.
func (a *Application) Analyze(ctx context.Context, sess *session.Session, keyword string, day *time.Time) (*domain.Run, error) {
	return a.pipeline.Analyze(ctx, sess, usecase.AnalyzeRequest{Keyword: keyword, Day: day})
}

// Brief synthesizes the aggregate briefing over the session's run and, when a
// notifier is configured, publishes it.
func (a *Application) Brief(ctx context.Context, sess *session.Session) (domain.Briefing, error) {
	run := sess.Run()
	if run == nil {
		return domain.Briefing{}, fmt.Errorf("no completed run in session")
	}

	creds, err := a.resolver.Resolve(ctx, sess.User)
	if err != nil {
		return domain.Briefing{}, err
	}

	briefing, err := a.synthesizer.Synthesize(ctx, run, creds.PrimaryKey, run.Model.ModelID)
	if err != nil {
		return briefing, err
	}

	if a.notifier != nil {
		if err := a.notifier.PublishBriefing(ctx, briefing); err != nil {
			a.logger.Warn("briefing notification failed", "error", err)
		}
	}

	return briefing, nil
}

// RotateKey updates the user's primary provider key in the remote store.
func (a *Application) RotateKey(ctx context.Context, user domain.User, newKey string) error {
	return a.resolver.RotatePrimaryKey(ctx, user, newKey)
}

// Close releases database and cache connections.
func (a *Application) Close() error {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Application) buildStore() (ports.CredentialStore, error) {
	if keys := a.cfg.KeyOverrides; keys.SourceKey != "" && keys.PrimaryKey != "" {
		a.logger.Info("using env-provided API keys, credential store disabled")
		return staticStore{keys: keys}, nil
	}

	if a.cfg.Database.DSN == "" {
		return nil, nil
	}

	db, err := sql.Open("postgres", a.cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	a.db = db
	return credstore.NewPostgresStore(db), nil
}

func (a *Application) buildCache() ports.CredentialCache {
	if a.cfg.Cache.Addr == "" {
		return nil
	}

	a.redisClient = redis.NewClient(&redis.Options{
		Addr:     a.cfg.Cache.Addr,
		Password: a.cfg.Cache.Password,
		DB:       a.cfg.Cache.DB,
	})
	return credcache.NewRedisCache(a.redisClient, a.cfg.Cache.TTL.Std())
}

// staticStore serves env-provided keys for single-user deployments that run
// without Postgres.
type staticStore struct {
	keys config.KeyOverrides
}

func (s staticStore) GetByID(_ context.Context, id string) (domain.CredentialRecord, error) {
	return domain.CredentialRecord{
		ID:         id,
		SourceKey:  s.keys.SourceKey,
		PrimaryKey: s.keys.PrimaryKey,
	}, nil
}

func (s staticStore) GetByEmail(_ context.Context, email string) (domain.CredentialRecord, error) {
	return domain.CredentialRecord{
		Email:      email,
		SourceKey:  s.keys.SourceKey,
		PrimaryKey: s.keys.PrimaryKey,
	}, nil
}

func (s staticStore) UpdateKeys(context.Context, string, domain.CredentialPatch) error {
	return fmt.Errorf("env-provided keys cannot be rotated")
}
