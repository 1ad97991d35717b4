package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// @Summary List hotspots
// @Description Active risk zones ordered by risk score. Requires API key.
// @Tags Hotspots
// @Produce json
// @Security ApiKeyAuth
// @Param min_risk query number false "Minimum risk score (0-100)" default(0)
// @Success 200 {array} models.Hotspot
// @Failure 400 {object} map[string]string "Invalid min_risk"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /hotspots [get]
func (h *Handler) listHotspots(c *gin.Context) {
	log := h.logger.WithField("method", "listHotspots")

	minRisk, err := strconv.ParseFloat(c.DefaultQuery("min_risk", "0"), 64)
	if err != nil || minRisk < 0 || minRisk > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "min_risk must be a number between 0 and 100"})
		return
	}

	hotspots, err := h.hotspots.Hotspots(c.Request.Context(), minRisk)
	if err != nil {
		fail(c, log, err, "Failed to list hotspots")
		return
	}
	c.JSON(http.StatusOK, hotspots)
}
