package server

import (
	"net/http"

	"github.com/credtrack/credtrack/backend/internal/activities"
	"github.com/gin-gonic/gin"
)

type createActivityPayload struct {
	Title           string   `json:"title"`
	Provider        string   `json:"provider"`
	ActivityType    string   `json:"activity_type"`
	Description     string   `json:"description"`
	ActivityDate    string   `json:"activity_date"`
	DurationHours   *float64 `json:"duration_hours"`
	CPEPoints       float64  `json:"cpe_points"`
	CertificationID string   `json:"certification_id"`
	ProofReference  string   `json:"proof_reference"`
	Accepted        *bool    `json:"accepted"`
}

type updateActivityPayload struct {
	Title           *string  `json:"title"`
	Provider        *string  `json:"provider"`
	ActivityType    *string  `json:"activity_type"`
	Description     *string  `json:"description"`
	ActivityDate    *string  `json:"activity_date"`
	DurationHours   *float64 `json:"duration_hours"`
	CPEPoints       *float64 `json:"cpe_points"`
	CertificationID *string  `json:"certification_id"`
	ProofReference  *string  `json:"proof_reference"`
	Accepted        *bool    `json:"accepted"`
}

func (h *httpHandler) handleListActivities(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	records, err := h.activities.List(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, err, "failed to list activities")
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": toActivityPayloads(records)})
}

func (h *httpHandler) handleCreateActivity(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	var payload createActivityPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	activity, err := h.activities.Create(c.Request.Context(), userID, activities.CreateRequest{
		Title:           payload.Title,
		Provider:        payload.Provider,
		ActivityType:    payload.ActivityType,
		Description:     payload.Description,
		ActivityDate:    payload.ActivityDate,
		DurationHours:   payload.DurationHours,
		CPEPoints:       payload.CPEPoints,
		CertificationID: payload.CertificationID,
		ProofReference:  payload.ProofReference,
		Accepted:        payload.Accepted,
	})
	if err != nil {
		h.respondServiceError(c, err, "failed to create activity")
		return
	}
	c.JSON(http.StatusCreated, toActivityPayload(activity))
}

func (h *httpHandler) handleGetActivity(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	activity, err := h.activities.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err, "failed to get activity")
		return
	}
	c.JSON(http.StatusOK, toActivityPayload(activity))
}

func (h *httpHandler) handleUpdateActivity(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	var payload updateActivityPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	activity, err := h.activities.Update(c.Request.Context(), userID, c.Param("id"), activities.UpdateRequest{
		Title:           payload.Title,
		Provider:        payload.Provider,
		ActivityType:    payload.ActivityType,
		Description:     payload.Description,
		ActivityDate:    payload.ActivityDate,
		DurationHours:   payload.DurationHours,
		CPEPoints:       payload.CPEPoints,
		CertificationID: payload.CertificationID,
		ProofReference:  payload.ProofReference,
		Accepted:        payload.Accepted,
	})
	if err != nil {
		h.respondServiceError(c, err, "failed to update activity")
		return
	}
	c.JSON(http.StatusOK, toActivityPayload(activity))
}

func (h *httpHandler) handleDeleteActivity(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	if err := h.activities.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.respondServiceError(c, err, "failed to delete activity")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
