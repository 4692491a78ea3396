package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"voice-intake/internal/dialogue"
	"voice-intake/internal/forms"
	"voice-intake/internal/llm"
	"voice-intake/internal/llm/gigachat"
	"voice-intake/internal/llm/openai"
	"voice-intake/internal/llm/remote"
	"voice-intake/internal/questions"
	"voice-intake/internal/queue"
	"voice-intake/internal/services/health"
	"voice-intake/internal/sessions"
	"voice-intake/internal/shared/config"
	"voice-intake/internal/shared/server"
	"voice-intake/internal/shared/server/middleware"
	"voice-intake/internal/shared/storage/db"
	"voice-intake/internal/shared/storage/object"
	localstore "voice-intake/internal/shared/storage/object/local"
	s3store "voice-intake/internal/shared/storage/object/s3"
	"voice-intake/internal/submissions"
)

// App holds shared dependencies and the router built from them.
type App struct {
	Config            config.Config
	Router            *gin.Engine
	DB                *sql.DB
	Store             object.ObjectStore
	Queue             queue.Client
	LLM               llm.Client
	Catalog           *forms.Catalog
	Bank              *questions.Bank
	CaseStore         submissions.CaseStore
	SubmissionsRepo   submissions.Repo
	Submissions       *submissions.Service
	Registry          *sessions.Registry
	SessionsHandler   *sessions.Handler
	SubmissionHandler *submissions.Handler
	Health            *health.Service
}

// Option overrides a dependency Build would otherwise construct from config.
type Option func(*App)

// WithLLM replaces the extraction/interpretation client. The retry wrapper is still applied.
func WithLLM(c llm.Client) Option {
	return func(a *App) { a.LLM = c }
}

// WithCaseStore replaces the case-management store client.
func WithCaseStore(s submissions.CaseStore) Option {
	return func(a *App) { a.CaseStore = s }
}

// WithQueue replaces the submission queue client.
func WithQueue(q queue.Client) Option {
	return func(a *App) { a.Queue = q }
}

// Build prepares shared dependencies and the router.
func Build(cfg config.Config, opts ...Option) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	app := &App{Config: cfg, Catalog: forms.Default()}
	for _, opt := range opts {
		opt(app)
	}

	bank, err := buildBank(cfg)
	if err != nil {
		return nil, err
	}
	app.Bank = bank

	if app.DB, err = buildDB(ctx, cfg); err != nil {
		return nil, err
	}
	if app.Store, err = buildStore(ctx, cfg); err != nil {
		return nil, err
	}
	if app.Queue == nil {
		if app.Queue, err = buildQueue(ctx, cfg); err != nil {
			return nil, err
		}
	}
	if app.LLM == nil {
		if app.LLM, err = buildLLM(cfg, app.Catalog); err != nil {
			return nil, err
		}
	}
	app.LLM = llm.WithRetry(app.LLM, cfg.ServiceTimeout)
	if app.CaseStore == nil {
		app.CaseStore = submissions.NewHTTPCaseStore(cfg.CaseStoreURL, cfg.CaseStoreToken, cfg.HandoffTimeout)
	}

	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:            app.Config,
		SessionsHandler:   app.SessionsHandler,
		SubmissionHandler: app.SubmissionHandler,
		Health:            app.Health,
		Limiter:           middleware.NewRateLimiter(nil),
	})

	return app, nil
}

// DialogueDeps returns the collaborators every new session is built with.
func (a *App) DialogueDeps() dialogue.Deps {
	return dialogue.Deps{
		Extractor:   a.LLM,
		Interpreter: a.LLM,
		Catalog:     a.Catalog,
		Bank:        a.Bank,
	}
}

func buildBank(cfg config.Config) (*questions.Bank, error) {
	if strings.TrimSpace(cfg.QuestionBankPath) == "" {
		return questions.Default(), nil
	}
	bank, err := questions.Load(cfg.QuestionBankPath)
	if err != nil {
		return nil, fmt.Errorf("question bank: %w", err)
	}
	log.Printf("bootstrap: question bank loaded from %s", cfg.QuestionBankPath)
	return bank, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if config.IsDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return queue.NewMemoryClient(), nil
	}
	return queue.NewSQSClient(ctx, cfg.QueueURL, cfg.AWSRegion)
}

func buildLLM(cfg config.Config, catalog *forms.Catalog) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "openai":
		client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, catalog, cfg.ServiceTimeout)
		if err != nil {
			if config.IsDevLike(cfg.Env) {
				log.Printf("bootstrap: openai unavailable, using placeholder client: %v", err)
				return llm.PlaceholderClient{}, nil
			}
			return nil, err
		}
		return client, nil
	case "gigachat":
		client, err := gigachat.NewClient(context.Background(), gigachat.Options{
			APIKey:             cfg.GigaChatAPIKey,
			Scope:              cfg.GigaChatScope,
			Model:              cfg.GigaChatModel,
			InsecureSkipVerify: cfg.GigaChatInsecure,
			Timeout:            cfg.ServiceTimeout,
		}, catalog)
		if err != nil {
			if config.IsDevLike(cfg.Env) {
				log.Printf("bootstrap: gigachat unavailable, using placeholder client: %v", err)
				return llm.PlaceholderClient{}, nil
			}
			return nil, err
		}
		return client, nil
	case "remote":
		return remote.NewClient(cfg.IntakeServiceURL, cfg.IntakeServiceToken, cfg.ServiceTimeout)
	default:
		log.Printf("bootstrap: LLM_PROVIDER=%s; sessions will fail at extraction", cfg.LLMProvider)
		return llm.PlaceholderClient{}, nil
	}
}

func buildServices(app *App) {
	var repo submissions.Repo
	if app.DB != nil {
		repo = &submissions.PGRepo{DB: app.DB}
	} else {
		repo = submissions.NewMemoryRepo()
	}
	app.SubmissionsRepo = repo
	app.Submissions = &submissions.Service{
		Store:   app.CaseStore,
		Repo:    repo,
		Queue:   app.Queue,
		Archive: app.Store,
		Timeout: app.Config.HandoffTimeout,
	}
	app.SubmissionHandler = submissions.NewHandler(app.Submissions)

	app.Registry = sessions.NewRegistry(app.DialogueDeps(), 0)
	app.SessionsHandler = sessions.NewHandler(app.Registry, app.Submissions, app.Catalog, app.Bank)

	var pinger health.Pinger
	if app.DB != nil {
		pinger = app.DB
	}
	app.Health = health.NewService(pinger, app.Config.LLMProvider, app.Config.ObjectStoreType, app.Registry.Len)
}
