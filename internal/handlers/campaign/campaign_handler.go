// internal/handlers/campaign/campaign_handler.go
package campaign

import (
	"net/http"
	"strconv"

	"postflow-service/internal/domain/campaign"
	"postflow-service/internal/pkg/response"
	service "postflow-service/internal/service/campaign"

	"github.com/gin-gonic/gin"
)

type CampaignHandler struct {
	campaignService *service.CampaignService
}

func NewCampaignHandler(campaignService *service.CampaignService) *CampaignHandler {
	return &CampaignHandler{
		campaignService: campaignService,
	}
}

// CreateCampaign creates a campaign and generates its posting schedule.
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req campaign.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.campaignService.CreateCampaign(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, "failed to create campaign", err)
		return
	}

	response.Success(c, http.StatusCreated, "campaign created successfully", result)
}

// GetCampaign retrieves a campaign by ID.
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	campaignID, ok := h.campaignID(c)
	if !ok {
		return
	}

	result, err := h.campaignService.GetCampaign(c.Request.Context(), campaignID)
	if err != nil {
		response.FromError(c, "failed to get campaign", err)
		return
	}

	response.Success(c, http.StatusOK, "campaign retrieved successfully", result)
}

// ListCampaigns lists campaigns with optional status filter and pagination.
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	var filters campaign.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.ValidationError(c, "invalid filters", err)
		return
	}

	result, err := h.campaignService.ListCampaigns(c.Request.Context(), &filters)
	if err != nil {
		response.FromError(c, "failed to list campaigns", err)
		return
	}

	response.Success(c, http.StatusOK, "campaigns retrieved successfully", result)
}

// DeleteCampaign deletes a campaign and all of its posts.
func (h *CampaignHandler) DeleteCampaign(c *gin.Context) {
	campaignID, ok := h.campaignID(c)
	if !ok {
		return
	}

	if err := h.campaignService.DeleteCampaign(c.Request.Context(), campaignID); err != nil {
		response.FromError(c, "failed to delete campaign", err)
		return
	}

	response.Success(c, http.StatusOK, "campaign deleted successfully", nil)
}

// ToggleCampaign flips a campaign between active and paused.
func (h *CampaignHandler) ToggleCampaign(c *gin.Context) {
	campaignID, ok := h.campaignID(c)
	if !ok {
		return
	}

	result, err := h.campaignService.ToggleCampaign(c.Request.Context(), campaignID)
	if err != nil {
		response.FromError(c, "failed to toggle campaign", err)
		return
	}

	response.Success(c, http.StatusOK, "campaign toggled successfully", result)
}

// RegenerateCampaign re-runs schedule generation. Rules may be supplied in
// the body; an empty body regenerates with the stored rules.
func (h *CampaignHandler) RegenerateCampaign(c *gin.Context) {
	campaignID, ok := h.campaignID(c)
	if !ok {
		return
	}

	var req *campaign.CreateCampaignRequest
	if c.Request.ContentLength > 0 {
		req = &campaign.CreateCampaignRequest{}
		if err := c.ShouldBindJSON(req); err != nil {
			response.ValidationError(c, "invalid request", err)
			return
		}
	}

	result, err := h.campaignService.RegenerateCampaign(c.Request.Context(), campaignID, req)
	if err != nil {
		response.FromError(c, "failed to regenerate campaign", err)
		return
	}

	response.Success(c, http.StatusOK, "campaign regenerated successfully", result)
}

// BulkSchedule inserts manually timed posts into a campaign.
func (h *CampaignHandler) BulkSchedule(c *gin.Context) {
	campaignID, ok := h.campaignID(c)
	if !ok {
		return
	}

	var req campaign.BulkScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.campaignService.BulkSchedule(c.Request.Context(), campaignID, &req)
	if err != nil {
		response.FromError(c, "failed to schedule posts", err)
		return
	}

	response.Success(c, http.StatusCreated, "posts scheduled successfully", result)
}

// GetQueue returns a campaign's pending posts in dispatch order. ?limit=N
// caps the result.
func (h *CampaignHandler) GetQueue(c *gin.Context) {
	campaignID, ok := h.campaignID(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.ValidationError(c, "invalid limit", err)
			return
		}
		limit = n
	}

	result, err := h.campaignService.GetQueue(c.Request.Context(), campaignID, limit)
	if err != nil {
		response.FromError(c, "failed to get queue", err)
		return
	}

	response.Success(c, http.StatusOK, "queue retrieved successfully", result)
}

// Calendar projects posts onto day buckets for a date range.
// ?start=YYYY-MM-DD&end=YYYY-MM-DD&campaign_ids=1,2
func (h *CampaignHandler) Calendar(c *gin.Context) {
	var q campaign.CalendarQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ValidationError(c, "invalid calendar query", err)
		return
	}

	result, err := h.campaignService.Calendar(c.Request.Context(), &q)
	if err != nil {
		response.FromError(c, "failed to build calendar", err)
		return
	}

	response.Success(c, http.StatusOK, "calendar retrieved successfully", result)
}

func (h *CampaignHandler) campaignID(c *gin.Context) (int64, bool) {
	campaignID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid campaign ID", err)
		return 0, false
	}
	return campaignID, true
}
