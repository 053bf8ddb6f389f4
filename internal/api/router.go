package api

import (
	"context"
	"net/http"

	"github.com/calderhq/sidechat/internal/api/handler"
	custommiddleware "github.com/calderhq/sidechat/internal/api/middleware"
	"github.com/calderhq/sidechat/internal/config"
	"github.com/calderhq/sidechat/internal/llm"
	"github.com/calderhq/sidechat/internal/llm/anthropic"
	"github.com/calderhq/sidechat/internal/llm/gemini"
	"github.com/calderhq/sidechat/internal/llm/ollama"
	"github.com/calderhq/sidechat/internal/llm/openai"
	"github.com/calderhq/sidechat/internal/repository/postgres"
	"github.com/calderhq/sidechat/internal/repository/redis"
	"github.com/calderhq/sidechat/internal/service"
	"github.com/calderhq/sidechat/internal/tools"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, db *postgres.DB, redisClient *redis.Client) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize repositories
	sessionRepo := postgres.NewSessionRepository(db)
	messageRepo := postgres.NewMessageRepository(db)

	// Initialize rate limiter and model catalog cache
	rateLimiter := redis.NewRateLimiter(
		redisClient,
		cfg.Security.RateLimit.RequestsPerMinute,
		cfg.Security.RateLimit.ChatPerMinute,
		cfg.Security.RateLimit.Burst,
	)
	modelCache := redis.NewModelCache(redisClient)

	// Initialize LLM router with providers
	llmRouter := llm.NewRouter(cfg.LLM.DefaultProvider)

	log.Info().Msgf("Initializing LLM providers. Default: %s", cfg.LLM.DefaultProvider)

	if cfg.LLM.Ollama.Host != "" {
		log.Info().Str("host", cfg.LLM.Ollama.Host).Msg("Registering Ollama provider")
		llmRouter.RegisterProvider(ollama.NewProvider(cfg.LLM.Ollama.Host, cfg.LLM.Ollama.DefaultModel))
	}
	if cfg.LLM.OpenAI.APIKey != "" {
		llmRouter.RegisterProvider(openai.NewProvider(cfg.LLM.OpenAI.APIKey, cfg.LLM.OpenAI.Model))
	}
	if cfg.LLM.Anthropic.APIKey != "" {
		llmRouter.RegisterProvider(anthropic.NewProvider(cfg.LLM.Anthropic.APIKey, cfg.LLM.Anthropic.Model))
	}
	if cfg.LLM.Gemini.APIKey != "" {
		llmRouter.RegisterProvider(gemini.NewProvider(cfg.LLM.Gemini.APIKey, cfg.LLM.Gemini.Model))
	}

	// The provider set may have changed since the last process cached a
	// catalog; drop it so the first listing reflects this configuration.
	if err := modelCache.Invalidate(context.Background()); err != nil {
		log.Debug().Err(err).Msg("could not invalidate model catalog cache")
	}

	registry := llm.NewRegistry(llmRouter, cfg.LLM.DefaultModel, modelCache)
	dispatcher := tools.NewDispatcher()

	// Initialize services
	sessionService := service.NewSessionService(sessionRepo, registry)
	chatService := service.NewChatService(
		sessionRepo,
		messageRepo,
		llmRouter,
		registry,
		dispatcher,
		cfg.Chat,
	)

	// Initialize handlers
	sessionHandler := handler.NewSessionHandler(sessionService)
	chatHandler := handler.NewChatHandler(chatService)
	toolHandler := handler.NewToolHandler(dispatcher)
	modelHandler := handler.NewModelHandler(registry)

	rateLimitMiddleware := custommiddleware.NewRateLimitMiddleware(rateLimiter)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(db))

		r.Group(func(r chi.Router) {
			r.Use(rateLimitMiddleware.Limit(redis.ScopeAPI))

			// Session routes
			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", sessionHandler.List)
				r.Post("/", sessionHandler.Create)

				r.Route("/{sessionID}", func(r chi.Router) {
					r.Get("/", sessionHandler.Get)
					r.Patch("/", sessionHandler.Update)
					r.Delete("/", sessionHandler.Delete)

					r.Get("/messages", chatHandler.Messages)
					r.With(rateLimitMiddleware.Limit(redis.ScopeChat)).
						Post("/chat", chatHandler.Send)
					r.Delete("/chat", chatHandler.Abort)
				})
			})

			// Tool routes
			r.Route("/tools", func(r chi.Router) {
				r.Get("/", toolHandler.List)
				r.Post("/{toolName}", toolHandler.Execute)
			})

			// Model routes
			r.Route("/models", func(r chi.Router) {
				r.Get("/", modelHandler.List)
				r.Get("/{modelID}", modelHandler.Get)
			})
		})
	})

	return r
}
