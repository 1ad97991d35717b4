package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// @Summary Start monitoring
// @Description Open the camera and start periodic captures. Requires API key.
// @Tags Camera
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} capture.Status
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 409 {object} map[string]string "Monitoring already active"
// @Failure 500 {object} map[string]string "Camera unavailable"
// @Router /camera/start [post]
func (h *Handler) startCamera(c *gin.Context) {
	log := h.logger.WithField("method", "startCamera")

	if err := h.camera.Start(c.Request.Context()); err != nil {
		fail(c, log, err, "Failed to start monitoring")
		return
	}
	c.JSON(http.StatusOK, h.camera.Status())
}

// @Summary Stop monitoring
// @Description Stop periodic captures and release the camera. Waits for the cycle in flight. Requires API key.
// @Tags Camera
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} capture.Status
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /camera/stop [post]
func (h *Handler) stopCamera(c *gin.Context) {
	h.camera.Stop()
	c.JSON(http.StatusOK, h.camera.Status())
}

// @Summary Capture now
// @Description Run one capture cycle immediately and return the journaled capture. Requires API key.
// @Tags Camera
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} models.Capture
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 409 {object} map[string]string "Capture already in progress"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /camera/capture [post]
func (h *Handler) triggerCapture(c *gin.Context) {
	log := h.logger.WithField("method", "triggerCapture")

	result, err := h.camera.Trigger(c.Request.Context())
	if err != nil {
		fail(c, log, err, "Manual capture failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Camera status
// @Description Monitoring state and cycle counters. Requires API key.
// @Tags Camera
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} capture.Status
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /camera/status [get]
func (h *Handler) cameraStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.camera.Status())
}

// @Summary Get capture settings
// @Description Current interval, location tracking and confidence thresholds. Requires API key.
// @Tags Camera
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} SettingsResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /camera/settings [get]
func (h *Handler) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, SettingsToResponse(h.settings.Snapshot()))
}

// @Summary Update capture settings
// @Description Partial update. Thresholds must satisfy 0 <= manual_review <= auto_submit <= 1. Changes apply to the next capture cycle. Requires API key.
// @Tags Camera
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param settings body UpdateSettingsRequest true "Settings to change"
// @Success 200 {object} SettingsResponse
// @Failure 400 {object} map[string]string "Invalid settings"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /camera/settings [put]
func (h *Handler) updateSettings(c *gin.Context) {
	log := h.logger.WithField("method", "updateSettings")

	var input UpdateSettingsRequest
	if !h.bind(c, &input, log) {
		return
	}

	updated, err := h.settings.Update(DTOToSettingsUpdate(input))
	if err != nil {
		fail(c, log, err, "Failed to update settings")
		return
	}
	log.WithFields(logrus.Fields{
		"interval":      updated.CaptureInterval,
		"auto_submit":   updated.Thresholds.AutoSubmit,
		"manual_review": updated.Thresholds.ManualReview,
	}).Info("Capture settings updated")
	c.JSON(http.StatusOK, SettingsToResponse(updated))
}
