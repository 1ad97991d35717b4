package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/road_incident_triage/internal/models"
	"github.com/shenikar/road_incident_triage/internal/service"
	"github.com/sirupsen/logrus"
)

const defaultActor = "operator"

// @Summary Report a new incident
// @Description Citizen report. A report matching an open incident nearby is consolidated into it. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param incident body CreateIncidentRequest true "Incident report"
// @Success 201 {object} SubmissionResponse "New incident"
// @Success 200 {object} SubmissionResponse "Consolidated into an existing incident"
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents [post]
func (h *Handler) createIncident(c *gin.Context) {
	var input CreateIncidentRequest
	log := h.logger.WithField("method", "createIncident")

	if !h.bind(c, &input, log) {
		return
	}

	res, err := h.incidentService.ReportIncident(c.Request.Context(), DTOToNewIncident(input))
	if err != nil {
		fail(c, log, err, "Failed to report incident in service")
		return
	}

	code := http.StatusCreated
	if res.Consolidated {
		code = http.StatusOK
	}
	c.JSON(code, ResultToSubmissionResponse(res))
}

// @Summary Get a list of incidents
// @Description Get a paginated list of incidents, newest first. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "Status filter"
// @Param severity query string false "Severity filter"
// @Param source query string false "Source filter (citizen_app, smart_camera)"
// @Param category query string false "Category filter"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Number of items per page" default(20)
// @Success 200 {object} IncidentListResponse
// @Failure 400 {object} map[string]string "Invalid filter"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents [get]
func (h *Handler) listIncidents(c *gin.Context) {
	log := h.logger.WithField("method", "listIncidents")

	filter, ok := parseIncidentFilter(c)
	if !ok {
		return
	}

	incidents, total, err := h.incidentService.ListIncidents(c.Request.Context(), filter)
	if err != nil {
		fail(c, log, err, "Failed to list incidents from service")
		return
	}

	c.JSON(http.StatusOK, IncidentListResponse{
		Items:    ModelsToIncidentResponses(incidents),
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	})
}

func parseIncidentFilter(c *gin.Context) (service.IncidentFilter, bool) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	filter := service.IncidentFilter{Page: page, PageSize: pageSize}

	if v := c.Query("status"); v != "" {
		s := models.Status(v)
		if !s.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
			return filter, false
		}
		filter.Status = &s
	}
	if v := c.Query("severity"); v != "" {
		s := models.Severity(v)
		if !s.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid severity filter"})
			return filter, false
		}
		filter.Severity = &s
	}
	if v := c.Query("source"); v != "" {
		s := models.Source(v)
		if !s.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source filter"})
			return filter, false
		}
		filter.Source = &s
	}
	if v := c.Query("category"); v != "" {
		cat := models.Category(v)
		if !cat.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category filter"})
			return filter, false
		}
		filter.Category = &cat
	}
	return filter, true
}

// @Summary Find incidents near a point
// @Description Incidents within radius_km of the point, nearest first. Only open incidents unless include_closed is set. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param lat query number true "Latitude"
// @Param lon query number true "Longitude"
// @Param radius_km query number false "Search radius in kilometers" default(10)
// @Param include_closed query bool false "Include resolved and false alarm incidents"
// @Param limit query int false "Maximum number of incidents" default(50)
// @Success 200 {array} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid query"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/nearby [get]
func (h *Handler) nearbyIncidents(c *gin.Context) {
	log := h.logger.WithField("method", "nearbyIncidents")

	var input NearbyQuery
	if err := c.ShouldBindQuery(&input); err != nil {
		log.WithError(err).Warn("Failed to bind nearby query")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed for nearby query")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	incidents, err := h.incidentService.NearbyIncidents(c.Request.Context(), *input.Latitude, *input.Longitude, input.RadiusKm, input.IncludeClosed, input.Limit)
	if err != nil {
		fail(c, log, err, "Failed to find nearby incidents")
		return
	}
	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Get incident by ID
// @Description Get a single incident with its media. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id} [get]
func (h *Handler) getIncident(c *gin.Context) {
	id, ok := parseID(c, "incident")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "getIncident").WithField("id", id)

	incident, err := h.incidentService.GetIncident(c.Request.Context(), id)
	if err != nil {
		fail(c, log, err, "Failed to get incident from service")
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Advance incident status
// @Description Move the incident to the next status of the response chain. Skips and backward moves are rejected. Notes are accepted only with "resolved". Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Param request body AdvanceStatusRequest true "Target status"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid incident ID or request body"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 409 {object} map[string]string "Invalid transition"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id}/status [post]
func (h *Handler) advanceStatus(c *gin.Context) {
	id, ok := parseID(c, "incident")
	if !ok {
		return
	}
	log := h.logger.WithFields(logrus.Fields{"method": "advanceStatus", "id": id})

	var input AdvanceStatusRequest
	if !h.bind(c, &input, log) {
		return
	}

	incident, err := h.incidentService.AdvanceStatus(c.Request.Context(), id, models.Status(input.Status), actorOrDefault(input.Actor), input.Notes)
	if err != nil {
		fail(c, log, err, "Failed to advance incident status")
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Mark incident as false alarm
// @Description Close a just-reported incident as a false alarm. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Param request body FalseAlarmRequest false "Actor and notes"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid incident ID or request body"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 409 {object} map[string]string "Incident is already being handled"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id}/false-alarm [post]
func (h *Handler) markFalseAlarm(c *gin.Context) {
	id, ok := parseID(c, "incident")
	if !ok {
		return
	}
	log := h.logger.WithFields(logrus.Fields{"method": "markFalseAlarm", "id": id})

	var input FalseAlarmRequest
	if c.Request.ContentLength != 0 && !h.bind(c, &input, log) {
		return
	}

	incident, err := h.incidentService.MarkFalseAlarm(c.Request.Context(), id, actorOrDefault(input.Actor), input.Notes)
	if err != nil {
		fail(c, log, err, "Failed to mark incident as false alarm")
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Reassign incident severity
// @Description Change severity of an incident that is not closed. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Param request body SeverityRequest true "New severity"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid incident ID or request body"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 409 {object} map[string]string "Incident is closed"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id}/severity [put]
func (h *Handler) reassignSeverity(c *gin.Context) {
	id, ok := parseID(c, "incident")
	if !ok {
		return
	}
	log := h.logger.WithFields(logrus.Fields{"method": "reassignSeverity", "id": id})

	var input SeverityRequest
	if !h.bind(c, &input, log) {
		return
	}

	incident, err := h.incidentService.ReassignSeverity(c.Request.Context(), id, models.Severity(input.Severity))
	if err != nil {
		fail(c, log, err, "Failed to reassign severity")
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Update operator notes
// @Description Replace the response notes of an incident. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Param request body NotesRequest true "Notes"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid incident ID or request body"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id}/notes [put]
func (h *Handler) updateNotes(c *gin.Context) {
	id, ok := parseID(c, "incident")
	if !ok {
		return
	}
	log := h.logger.WithFields(logrus.Fields{"method": "updateNotes", "id": id})

	var input NotesRequest
	if !h.bind(c, &input, log) {
		return
	}

	incident, err := h.incidentService.UpdateNotes(c.Request.Context(), id, input.Notes)
	if err != nil {
		fail(c, log, err, "Failed to update incident notes")
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Get incident statistics
// @Description Totals by status group and open critical incidents. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} models.IncidentStats
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/stats [get]
func (h *Handler) getStats(c *gin.Context) {
	log := h.logger.WithField("method", "getStats")

	stats, err := h.incidentService.GetStats(c.Request.Context())
	if err != nil {
		fail(c, log, err, "Failed to get stats from service")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func actorOrDefault(actor string) string {
	if actor == "" {
		return defaultActor
	}
	return actor
}
