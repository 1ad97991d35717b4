package v1

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shenikar/road_incident_triage/internal/models"
	"github.com/shenikar/road_incident_triage/internal/triage"
	"github.com/sirupsen/logrus"
)

// @Summary List captures
// @Description Capture journal, newest first. Requires API key.
// @Tags Captures
// @Produce json
// @Security ApiKeyAuth
// @Param disposition query string false "Disposition filter (auto_submit, pending_review, discard)"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.Capture
// @Failure 400 {object} map[string]string "Invalid filter"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /captures [get]
func (h *Handler) listCaptures(c *gin.Context) {
	log := h.logger.WithField("method", "listCaptures")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	filter := triage.CaptureFilter{Limit: limit, Offset: offset}

	if v := c.Query("disposition"); v != "" {
		d, err := models.ParseDisposition(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Disposition = &d
	}

	captures, err := h.captures.ListCaptures(c.Request.Context(), filter)
	if err != nil {
		fail(c, log, err, "Failed to list captures")
		return
	}
	c.JSON(http.StatusOK, captures)
}

// @Summary Review queue
// @Description Captures waiting for an operator decision, newest first. Requires API key.
// @Tags Captures
// @Produce json
// @Security ApiKeyAuth
// @Param limit query int false "Page size" default(50)
// @Success 200 {array} models.Capture
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /captures/pending [get]
func (h *Handler) pendingCaptures(c *gin.Context) {
	log := h.logger.WithField("method", "pendingCaptures")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	captures, err := h.captures.PendingCaptures(c.Request.Context(), limit)
	if err != nil {
		fail(c, log, err, "Failed to list pending captures")
		return
	}
	c.JSON(http.StatusOK, captures)
}

// @Summary Capture statistics
// @Description Journal totals per disposition and review outcome, plus cycle counters of the camera. Requires API key.
// @Tags Captures
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} CaptureStatsResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /captures/stats [get]
func (h *Handler) captureStats(c *gin.Context) {
	log := h.logger.WithField("method", "captureStats")

	stats, err := h.captures.CaptureStats(c.Request.Context())
	if err != nil {
		fail(c, log, err, "Failed to get capture stats")
		return
	}

	st := h.camera.Status()
	stats.IsActive = st.Monitoring
	c.JSON(http.StatusOK, CaptureStatsResponse{
		CaptureStats: *stats,
		Dropped:      st.Dropped,
		Failed:       st.Failed,
	})
}

// @Summary Approve a capture
// @Description Create an incident from a capture waiting for review. Each capture can be decided once. Requires API key.
// @Tags Captures
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Capture ID"
// @Param review body ReviewRequest true "Reviewer"
// @Success 200 {object} models.Capture
// @Failure 400 {object} map[string]string "Invalid capture ID or request body"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Capture not found"
// @Failure 409 {object} map[string]string "Capture is not pending review"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /captures/{id}/approve [post]
func (h *Handler) approveCapture(c *gin.Context) {
	h.review(c, "approveCapture", h.captures.Approve)
}

// @Summary Reject a capture
// @Description Discard a capture waiting for review. Requires API key.
// @Tags Captures
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Capture ID"
// @Param review body ReviewRequest true "Reviewer"
// @Success 200 {object} models.Capture
// @Failure 400 {object} map[string]string "Invalid capture ID or request body"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Capture not found"
// @Failure 409 {object} map[string]string "Capture is not pending review"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /captures/{id}/reject [post]
func (h *Handler) rejectCapture(c *gin.Context) {
	h.review(c, "rejectCapture", h.captures.Reject)
}

type reviewFunc func(ctx context.Context, id uuid.UUID, reviewer, notes string) (*models.Capture, error)

func (h *Handler) review(c *gin.Context, method string, decide reviewFunc) {
	id, ok := parseID(c, "capture")
	if !ok {
		return
	}
	log := h.logger.WithFields(logrus.Fields{"method": method, "id": id})

	var input ReviewRequest
	if !h.bind(c, &input, log) {
		return
	}

	result, err := decide(c.Request.Context(), id, input.Reviewer, input.Notes)
	if err != nil {
		fail(c, log, err, "Failed to review capture")
		return
	}
	c.JSON(http.StatusOK, result)
}
