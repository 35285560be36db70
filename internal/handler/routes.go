package handler

import (
	"github.com/labstack/echo/v4"
)

// Handlers bundles every handler the view API serves
type Handlers struct {
	Session      *SessionHandler
	Categories   *CategoryHandler
	Transactions *TransactionHandler
	Dashboard    *DashboardHandler
	Exports      *ExportHandler
	WebSocket    *WebSocketHandler
	Status       *StatusHandler
}

// RegisterRoutes sets up all API routes. guard protects everything except
// health and login; extra middleware (rate limiting) applies to the protected group.
func RegisterRoutes(e *echo.Echo, h Handlers, guard echo.MiddlewareFunc, extra ...echo.MiddlewareFunc) {
	e.GET("/health", h.Status.Health)

	// API version 1
	api := e.Group("/api/v1")

	// Session routes
	sess := api.Group("/session")
	sess.POST("/login", h.Session.Login, extra...)
	sess.POST("/logout", h.Session.Logout)
	sess.GET("", h.Session.Me, append([]echo.MiddlewareFunc{guard}, extra...)...)

	// Protected routes
	protected := api.Group("", guard)
	protected.Use(extra...)

	protected.GET("/status", h.Status.GetStatus)
	protected.GET("/ws", h.WebSocket.HandleWS)

	protected.GET("/categories", h.Categories.GetCategories)
	protected.GET("/categories/:type", h.Categories.GetCategories)
	protected.POST("/categories", h.Categories.CreateCategory)
	protected.PUT("/categories/:id", h.Categories.UpdateCategory)

	protected.GET("/dashboard", h.Dashboard.GetDashboard)
	protected.POST("/filter", h.Transactions.Filter)

	protected.POST("/exports/:kind", h.Exports.Download)
	protected.POST("/exports/:kind/email", h.Exports.Email)

	// incomes and expenses
	protected.GET("/:kind", h.Transactions.GetPage)
	protected.POST("/:kind", h.Transactions.CreateTransaction)
	protected.DELETE("/:kind/:id", h.Transactions.DeleteTransaction)
}
