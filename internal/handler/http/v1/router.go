package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	// Маршрут Health-check открыт для балансировщика
	api.GET("/system/health", h.healthCheck)

	protected := api.Group("")
	protected.Use(APIKeyAuthMiddleware(h.cfg.APIKeys, h.logger))

	// Жизненный цикл инцидентов
	incidents := protected.Group("/incidents")
	{
		incidents.POST("", h.createIncident)
		incidents.GET("", h.listIncidents)
		incidents.GET("/stats", h.getStats)
		incidents.GET("/nearby", h.nearbyIncidents)
		incidents.GET("/:id", h.getIncident)
		incidents.POST("/:id/status", h.advanceStatus)
		incidents.POST("/:id/false-alarm", h.markFalseAlarm)
		incidents.PUT("/:id/severity", h.reassignSeverity)
		incidents.PUT("/:id/notes", h.updateNotes)
	}

	// Разовая классификация фотографии
	protected.POST("/analyze", h.analyzeImage)

	// Управление камерой и настройками съемки
	camera := protected.Group("/camera")
	{
		camera.POST("/start", h.startCamera)
		camera.POST("/stop", h.stopCamera)
		camera.POST("/capture", h.triggerCapture)
		camera.GET("/status", h.cameraStatus)
		camera.GET("/settings", h.getSettings)
		camera.PUT("/settings", h.updateSettings)
	}

	// Журнал снимков и очередь проверки
	captures := protected.Group("/captures")
	{
		captures.GET("", h.listCaptures)
		captures.GET("/pending", h.pendingCaptures)
		captures.GET("/stats", h.captureStats)
		captures.POST("/:id/approve", h.approveCapture)
		captures.POST("/:id/reject", h.rejectCapture)
	}

	protected.GET("/hotspots", h.listHotspots)
}
