package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/athenus/review-api/internal/api"
	apimiddleware "github.com/athenus/review-api/internal/api/middleware"
)

// setupRouter configures the router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.Trace)

	taskHandler := api.NewTaskHandler(app.tasks, app.emitter, app.logger)
	workflowHandler := api.NewWorkflowHandler(app.workflows, app.logger)
	authMiddleware := apimiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Post("/tasks", taskHandler.Submit)
		r.Get("/tasks", taskHandler.List)
		r.Get("/tasks/{id}", taskHandler.Get)
		r.Delete("/tasks/{id}", taskHandler.Cancel)
		r.Get("/tasks/{id}/steps", taskHandler.Steps)
		r.Get("/tasks/{id}/stream", taskHandler.Stream)

		r.Post("/workflows", workflowHandler.Create)
		r.Get("/workflows/{id}", workflowHandler.Get)
		r.Get("/workflows/{id}/status", workflowHandler.Status)
		r.Get("/workflows/{id}/steps", workflowHandler.Steps)
		r.Get("/workflows/{id}/results", workflowHandler.Results)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := app.db.PingContext(r.Context()); err != nil {
			app.logger.Error("health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
