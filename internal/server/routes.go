package server

import "github.com/gin-gonic/gin"

// registerRoutes sets up the API route table.
func registerRoutes(router *gin.Engine, a *api) {
	api := router.Group("/api")

	api.POST("/detect", a.handleDetect)

	api.POST("/shifts", a.handleCreateShift)
	api.PUT("/shifts/:id", a.handleUpdateShift)
	api.DELETE("/shifts/:id", a.handleDeleteShift)
	api.GET("/shifts/:id/recommendations", a.handleRecommendations)
	api.POST("/shifts/:id/swaps", a.handleCreateSwap)

	api.GET("/conflicts", a.handleListConflicts)
	api.GET("/conflicts/:id", a.handleGetConflict)
	api.POST("/conflicts/:id/resolve", a.handleResolveConflict)
	api.GET("/conflicts/:id/attempts", a.handleListAttempts)

	api.GET("/providers/:id/notifications", a.handleListNotifications)
	api.POST("/providers/:id/notifications/read", a.handleMarkNotificationsRead)

	api.GET("/swaps", a.handleListSwaps)
	api.POST("/swaps/:id/accept", a.handleAcceptSwap)
	api.POST("/swaps/:id/reject", a.handleRejectSwap)
	api.POST("/swaps/:id/cancel", a.handleCancelSwap)

	api.GET("/reconcile/pairs", a.handlePendingPairs)
	api.POST("/reconcile/apply", a.handleApplyResolutions)
	api.POST("/reconcile/batch", a.handleApplyBatch)

	api.POST("/sync", a.handleSync)

	router.GET("/ws", a.handleWebSocket)
}
