package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	custommiddleware "perpguard/internal/middleware"
)

// RouterConfig holds all dependencies for routing
type RouterConfig struct {
	AuthHandler    *AuthHandler
	ControlHandler *ControlHandler
}

// SetupRoutes configures all HTTP routes
func SetupRoutes(e *echo.Echo, config *RouterConfig) {
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging for polling endpoints to reduce noise
			path := c.Request().URL.Path
			return path == "/health" || path == "/api/control/positions"
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(middleware.Secure())

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return SuccessResponse(c, map[string]interface{}{
			"status":  "healthy",
			"service": "perpguard-api",
		})
	})

	api := e.Group("/api")

	// Auth routes (public)
	auth := api.Group("/auth")
	{
		auth.POST("/login", config.AuthHandler.Login)
		auth.POST("/logout", config.AuthHandler.Logout)
	}

	// Control routes (protected). Reads need a valid token; state changes
	// need the ADMIN role.
	control := api.Group("/control", custommiddleware.AuthMiddleware)
	{
		control.GET("/mode", config.ControlHandler.GetMode)
		control.GET("/breaker", config.ControlHandler.GetBreaker)
		control.GET("/profile", config.ControlHandler.GetProfile)
		control.GET("/decisions", config.ControlHandler.GetDecisions)
		control.GET("/positions", config.ControlHandler.GetPositions)
		control.GET("/balance", config.ControlHandler.GetBalance)
		control.GET("/logs", config.ControlHandler.GetAuditLog)

		admin := control.Group("", custommiddleware.AdminMiddleware)
		admin.POST("/mode", config.ControlHandler.SwitchMode)
		admin.POST("/profile", config.ControlHandler.SwitchProfile)
		admin.POST("/breaker/reset", config.ControlHandler.ResetBreaker)
		admin.POST("/cycle", config.ControlHandler.TriggerCycle)
	}
}
