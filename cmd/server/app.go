package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/athenus/review-api/internal/agent"
	"github.com/athenus/review-api/internal/config"
	"github.com/athenus/review-api/internal/events"
	"github.com/athenus/review-api/internal/pipeline"
	"github.com/athenus/review-api/internal/platform/gemini"
	"github.com/athenus/review-api/internal/platform/openalex"
	"github.com/athenus/review-api/internal/platform/postgres"
	"github.com/athenus/review-api/internal/service/auth"
	"github.com/athenus/review-api/internal/task"
	"github.com/athenus/review-api/internal/workflow"
)

// shutdownTimeout bounds both the HTTP drain and the running-task drain.
const shutdownTimeout = 30 * time.Second

// application holds the shared application dependencies so startup wiring
// and shutdown cleanup live in one place.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	tasks      *task.Service
	workflows  *workflow.Service
	dispatcher *task.Dispatcher

	jwtService auth.JWTService
	emitter    events.EventEmitter
}

// newApplication wires every dependency: stores over the database, the task
// ledger and workflow services, the review pipeline behind the orchestrator,
// and the event path from the API into the dispatcher.
func newApplication(ctx context.Context, cfg *config.Config, log *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: log,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	log.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.tasks = task.NewService(
		postgres.NewTaskStore(db),
		postgres.NewStepStore(db),
		cfg.Task.StreamInterval,
		log,
	)
	app.workflows = workflow.NewService(postgres.NewWorkflowStore(db), log)

	generator, err := gemini.NewGenerator(ctx, log.With("component", "llm_generator"), cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM generator: %w", err)
	}
	log.Info("LLM generator initialized", "model", cfg.LLM.ModelName)

	searcher := openalex.NewClient(cfg.Search, log)

	reviewPipeline := pipeline.New(
		generator,
		searcher,
		app.tasks,
		app.workflows,
		cfg.Task.SectionConcurrency,
		log,
	)

	orchestrator := agent.NewOrchestrator(cfg.Task.MaxTaskDuration, log)
	if err := orchestrator.Register(agent.ReviewGeneration, reviewPipeline); err != nil {
		return nil, fmt.Errorf("failed to register review pipeline: %w", err)
	}

	app.dispatcher = task.NewDispatcher(app.tasks, orchestrator, log)

	emitter := events.NewInMemoryEventEmitter(log)
	emitter.RegisterHandler(task.NewTaskRequestHandler(app.tasks, app.dispatcher, app.workflows, log))
	app.emitter = emitter

	log.Info("application initialized")
	return app, nil
}

// Run starts the HTTP server and blocks until shutdown completes.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup drains running tasks and closes the database connection.
func (app *application) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.dispatcher.Shutdown(ctx); err != nil {
		app.logger.Error("task drain did not finish cleanly", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database connection", "error", err)
	}

	app.logger.Info("application shutdown completed")
}
