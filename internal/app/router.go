// internal/app/router.go
package app

import (
	campaignHandler "postflow-service/internal/handlers/campaign"
	eventsHandler "postflow-service/internal/handlers/events"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	CampaignHandler *campaignHandler.CampaignHandler
	EventsHandler   *eventsHandler.EventsHandler
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	r.GET("/ws", h.EventsHandler.HandleConnection)

	// ==================== Campaigns ====================
	campaigns := api.Group("/campaigns")
	{
		campaigns.POST("", h.CampaignHandler.CreateCampaign)
		campaigns.GET("", h.CampaignHandler.ListCampaigns)
		campaigns.GET("/:id", h.CampaignHandler.GetCampaign)
		campaigns.DELETE("/:id", h.CampaignHandler.DeleteCampaign)

		// Schedule management
		campaigns.PUT("/:id/toggle", h.CampaignHandler.ToggleCampaign)
		campaigns.POST("/:id/regenerate", h.CampaignHandler.RegenerateCampaign)
		campaigns.POST("/:id/bulk-schedule", h.CampaignHandler.BulkSchedule)

		// Projections
		campaigns.GET("/:id/queue", h.CampaignHandler.GetQueue) // ?limit=N
	}

	// ==================== Calendar ====================
	api.GET("/calendar", h.CampaignHandler.Calendar) // ?start=YYYY-MM-DD&end=YYYY-MM-DD&campaign_ids=1,2
}
