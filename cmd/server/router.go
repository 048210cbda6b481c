package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"
	"github.com/phrazzld/tasksync/internal/api"
	apiMiddleware "github.com/phrazzld/tasksync/internal/api/middleware"
	"github.com/phrazzld/tasksync/internal/domain"
	"github.com/phrazzld/tasksync/internal/realtime"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware(app.logger))

	authHandler := api.NewAuthHandler(
		app.userService,
		app.jwtService,
		app.config.Auth.TokenLifetime(),
		app.logger,
	)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService, app.logger)
	taskHandler := api.NewTaskHandler(app.taskService, app.userService, app.logger)
	userHandler := api.NewUserHandler(app.userService, app.logger)

	channelConfig := realtime.DefaultConfig()
	channelConfig.WriteTimeout = app.config.Realtime.WriteTimeout()
	channelConfig.AllowedOrigins = app.config.Realtime.AllowedOrigins
	channelHandler := realtime.NewHandler(app.jwtService, app.registry, channelConfig, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", taskHandler.ListTasks)
				r.Get("/my", taskHandler.ListMyTasks)
				r.With(apiMiddleware.RequireRole(domain.RoleAdmin)).Post("/", taskHandler.CreateTask)
				r.Get("/{id}", taskHandler.GetTask)
				r.Put("/{id}", taskHandler.UpdateTask)
				r.With(apiMiddleware.RequireRole(domain.RoleAdmin)).Delete("/{id}", taskHandler.DeleteTask)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/profile/me", userHandler.GetProfile)

				r.Group(func(r chi.Router) {
					r.Use(apiMiddleware.RequireRole(domain.RoleAdmin))
					r.Get("/", userHandler.ListUsers)
					r.Get("/{id}", userHandler.GetUser)
					r.Put("/{id}", userHandler.UpdateUser)
					r.Delete("/{id}", userHandler.DeleteUser)
				})
			})
		})
	})

	// The channel authenticates its own handshake so browsers can pass the
	// token as a query parameter.
	r.Handle("/ws", channelHandler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", slog.String("error", err.Error()))
		}
	})

	return app.withCORS(r)
}

// withCORS lets browser clients on the configured origins call the REST API.
// With no origins configured the router is returned unchanged.
func (app *application) withCORS(next http.Handler) http.Handler {
	origins := app.config.Server.CORSAllowedOrigins
	if len(origins) == 0 {
		return next
	}
	app.logger.Info("CORS enabled", slog.Any("allowed_origins", origins))
	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "X-Requested-With"}),
	)(next)
}
