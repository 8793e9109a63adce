package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/batchq/internal/api/middleware"
	"github.com/phrazzld/batchq/internal/service/auth"
)

// NewRouter assembles the control API routes. When jwtService is nil,
// authentication is disabled and all routes are open.
func NewRouter(handler *TaskHandler, jwtService auth.JWTService) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.TraceMiddleware)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {
		if jwtService != nil {
			authMiddleware := middleware.NewAuthMiddleware(jwtService)
			r.Use(authMiddleware.Authenticate)
		}

		r.Post("/tasks", handler.AddTask)
		r.Post("/tasks/bulk", handler.AddTasksBulk)
		r.Delete("/tasks/completed", handler.ClearCompleted)
		r.Get("/tasks/{id}", handler.GetTask)
		r.Delete("/tasks/{id}", handler.CancelTask)
		r.Get("/queue/status", handler.QueueStatus)
		r.Post("/export", handler.Export)
	})

	return r
}
