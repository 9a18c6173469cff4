package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"litigation-backend/internal/agent"
	googleauth "litigation-backend/internal/auth"
	"litigation-backend/internal/chat"
	"litigation-backend/internal/documents"
	"litigation-backend/internal/pipeline"
	"litigation-backend/internal/queue"
	"litigation-backend/internal/rag"
	"litigation-backend/internal/shared/config"
	"litigation-backend/internal/shared/server"
	"litigation-backend/internal/shared/storage/db"
	"litigation-backend/internal/shared/storage/object"
	localstore "litigation-backend/internal/shared/storage/object/local"
	s3store "litigation-backend/internal/shared/storage/object/s3"
	"litigation-backend/internal/status"
	"litigation-backend/internal/users"
)

// App holds shared dependencies for the API server and the worker.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  queue.Client

	StatusRepo status.Repo
	Lifecycle  *status.Lifecycle
	Reaper     *status.Reaper

	UsersRepo     users.Repo
	DocumentsRepo documents.DocumentsRepo

	Users    *users.Service
	Docs     *documents.Service
	Rag      *rag.Client
	Agent    *agent.Client
	Pipeline *pipeline.Service
	Runner   *pipeline.Runner
	Stager   *pipeline.Stager

	DocumentsHandler *documents.Handler
	PipelineHandler  *pipeline.Handler
	StatusHandler    *status.Handler
	UsersHandler     *users.Handler
	ChatHandler      *chat.Handler
	GoogleAuth       *googleauth.GoogleService
}

// Build prepares shared dependencies and the HTTP router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
	}
	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:           app.Config,
		DocumentsHandler: app.DocumentsHandler,
		PipelineHandler:  app.PipelineHandler,
		StatusHandler:    app.StatusHandler,
		UsersHandler:     app.UsersHandler,
		ChatHandler:      app.ChatHandler,
		GoogleAuth:       app.GoogleAuth,
	})

	return app, nil
}

// Close releases held resources. Safe on a partially built app.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			log.Printf("bootstrap: close database: %v", err)
		}
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
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

func buildQueue(ctx context.Context) (queue.Client, error) {
	if strings.TrimSpace(os.Getenv("LA_SQS_QUEUE_URL")) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) {
	cfg := app.Config

	var statusRepo status.Repo
	var userRepo users.Repo
	var docRepo documents.DocumentsRepo
	if app.DB != nil {
		statusRepo = &status.PGRepo{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
		docRepo = &documents.PGRepo{DB: app.DB}
	} else {
		statusRepo = status.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
		docRepo = documents.NewMemoryRepo()
	}

	ragClient := rag.NewClient(cfg.RagBaseURL)
	ragClient.LLMModel = cfg.LLMModel
	ragClient.EmbeddingModel = cfg.EmbeddingModel
	ragClient.VectorStore = cfg.VectorStore
	agentClient := agent.NewClient(cfg.AgentBaseURL, cfg.RagBaseURL)

	userSvc := users.NewService(userRepo)
	userSvc.FallbackAPIKey = cfg.ProviderAPIKey

	docSvc := &documents.Service{
		Store:   app.Store,
		Repo:    docRepo,
		Indexer: ragClient,
	}

	lifecycle := status.NewLifecycle(statusRepo)
	runner := pipeline.NewRunner(cfg.PipelineWorkers)
	stager := &pipeline.Stager{Store: app.Store}

	pipelineSvc := &pipeline.Service{
		Status:     lifecycle,
		Docs:       docSvc,
		Users:      userSvc,
		Indexer:    ragClient,
		Summarizer: agentClient,
		Runner:     runner,
		Stager:     stager,
		ShortAgent: cfg.ShortSummaryAgent,
		LongAgent:  cfg.LongSummaryAgent,
		Timeout:    cfg.PipelineTimeout,
	}
	if app.Queue != nil {
		pipelineSvc.Queue = queue.NewPublisher(app.Queue)
	}

	googleAuthSvc := googleauth.NewGoogleService(
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.GoogleRedirectURL,
		cfg.UIRedirectURL,
	)
	googleAuthSvc.Users = userSvc

	app.StatusRepo = statusRepo
	app.Lifecycle = lifecycle
	app.Reaper = status.NewReaper(statusRepo, cfg.ReaperInterval, cfg.StatusRetention)
	app.UsersRepo = userRepo
	app.DocumentsRepo = docRepo
	app.Users = userSvc
	app.Docs = docSvc
	app.Rag = ragClient
	app.Agent = agentClient
	app.Pipeline = pipelineSvc
	app.Runner = runner
	app.Stager = stager

	app.DocumentsHandler = documents.NewHandler(docSvc, userSvc)
	app.PipelineHandler = pipeline.NewHandler(pipelineSvc)
	app.StatusHandler = status.NewHandler(statusRepo)
	app.UsersHandler = users.NewHandler(userSvc)
	app.ChatHandler = chat.NewHandler(agentClient, userSvc, cfg.ChatAgent)
	app.GoogleAuth = googleAuthSvc
}
