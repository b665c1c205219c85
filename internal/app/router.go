package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"taxi/internal/handler"
	"taxi/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	TripHandler    *handler.TripHandler
	UserHandler    *handler.UserHandler
	TaxiHandler    *handler.TaxiHandler
	Authenticator  middleware.Authenticator
	NewRelicApp    *newrelic.Application
	AllowedOrigins []string
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware(deps.AllowedOrigins))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	router.Use(middleware.Authentication(deps.Authenticator))

	// Trip WebSocket. Anonymous callers are refused by the handler.
	router.GET("/taxi/", deps.TaxiHandler.Serve)

	// API v1 routes.
	v1 := router.Group("/v1", middleware.RequireIdentity())
	{
		v1.GET("/users/me", deps.UserHandler.Me)

		trips := v1.Group("/trips")
		{
			trips.GET("", deps.TripHandler.GetAll)
			trips.GET("/:id", deps.TripHandler.GetTrip)
		}
	}

	return router
}
