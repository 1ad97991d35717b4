package v1

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/road_incident_triage/internal/classifier"
)

const maxImageSize = 10 << 20

// @Summary Analyze a photo
// @Description Classify a single photo without creating an incident. When the classifier is unavailable the result is marked degraded. Requires API key.
// @Tags Analysis
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param image formData file true "Photo (JPEG, PNG or WebP)"
// @Success 200 {object} models.ClassificationResult
// @Failure 400 {object} map[string]string "Missing or empty image"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 413 {object} map[string]string "Image too large"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /analyze [post]
func (h *Handler) analyzeImage(c *gin.Context) {
	log := h.logger.WithField("method", "analyzeImage")

	file, err := c.FormFile("image")
	if err != nil {
		log.WithError(err).Warn("Image form field missing")
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	if file.Size > maxImageSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return
	}

	f, err := file.Open()
	if err != nil {
		fail(c, log, err, "Failed to open uploaded image")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageSize))
	if err != nil {
		fail(c, log, err, "Failed to read uploaded image")
		return
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), classifier.Image{Data: data, ContentType: contentType})
	if err != nil {
		fail(c, log, err, "Failed to analyze image")
		return
	}
	c.JSON(http.StatusOK, result)
}
