package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/inboxia/mailcore/api/handlers"
	"github.com/inboxia/mailcore/api/middleware"
	"github.com/inboxia/mailcore/internal/repository"
	"github.com/inboxia/mailcore/internal/tracing"
	"github.com/inboxia/mailcore/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(ctx context.Context, r *gin.Engine, s *services.Services, repos *repository.Repositories, apikey string) {
	if s == nil {
		panic("Services cannot be nil")
	}
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	// Add recovery middlewares
	r.Use(gin.Recovery())                                         // Gin's built-in recovery
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer())) // Our custom Jaeger recovery

	// setup handlers
	apiHandlers := handlers.InitHandlers(repos, s)

	// Health check endpoint (no custom context needed)
	r.GET("/health", handlers.HealthCheck)

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-MAILCORE-API-KEY",
		ValidAPIKey: apikey,
	})

	// API group with version and custom context
	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	api.Use(middleware.CustomContextMiddleware("mailcore")) // Add custom context for all /v1/* endpoints
	api.Use(middleware.TracingMiddleware())                 // Add tracing for all /v1/* endpoints
	{
		// Account endpoints
		accounts := api.Group("/accounts")
		{
			accounts.POST("", apiHandlers.Accounts.Register())
			accounts.GET("", apiHandlers.Accounts.List())
			accounts.POST("/:id/sync", apiHandlers.Accounts.Sync())
			accounts.GET("/:id/search", apiHandlers.Search.Search())
			accounts.GET("/:id/emails", apiHandlers.Emails.List())
		}

		// Email endpoints
		emails := api.Group("/emails")
		{
			emails.POST("", apiHandlers.Emails.Send()) // send
		}
	}
}
