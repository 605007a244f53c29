package server

import (
	"net/http"
	"strings"

	"github.com/credtrack/credtrack/backend/internal/recommendations"
	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleRunVerifications(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	results, err := h.verifications.VerifyAll(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, err, "failed to run verifications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"verifications": toVerificationPayloads(results)})
}

func (h *httpHandler) handleListVerifications(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	if strings.EqualFold(c.Query("status"), "pending") {
		pending, listErr := h.verifications.ListPending(c.Request.Context(), userID)
		if listErr != nil {
			h.respondServiceError(c, listErr, "failed to list pending verifications")
			return
		}
		c.JSON(http.StatusOK, gin.H{"verifications": toVerificationPayloads(pending)})
		return
	}

	records, err := h.verifications.List(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, err, "failed to list verifications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"verifications": toVerificationPayloads(records)})
}

func (h *httpHandler) handleListCachedRecommendations(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	records, err := h.resolver.ListUserRecommendations(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, err, "failed to list cached recommendations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": toCachedRecommendationPayloads(records)})
}

type submitRecommendationPayload struct {
	Title           string  `json:"title"`
	URL             string  `json:"url"`
	Type            string  `json:"type"`
	Source          string  `json:"source"`
	Description     string  `json:"description"`
	CPE             float64 `json:"cpe"`
	TargetAuthority string  `json:"target_authority"`
	ExpiresAt       *int64  `json:"expires_at_s"`
}

type updateRecommendationPayload struct {
	Title       *string `json:"title"`
	URL         *string `json:"url"`
	Description *string `json:"description"`
	ExpiresAt   *int64  `json:"expires_at_s"`
}

func (h *httpHandler) handleSubmitRecommendation(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	var payload submitRecommendationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	record, err := h.community.Submit(c.Request.Context(), userID, recommendations.SubmitRequest{
		Title:           payload.Title,
		URL:             payload.URL,
		Type:            payload.Type,
		Source:          payload.Source,
		Description:     payload.Description,
		CPE:             payload.CPE,
		TargetAuthority: payload.TargetAuthority,
		ExpiresAt:       payload.ExpiresAt,
	})
	if err != nil {
		h.respondServiceError(c, err, "failed to submit recommendation")
		return
	}
	c.JSON(http.StatusCreated, toCuratedRecommendationPayload(record))
}

func (h *httpHandler) handleListMyRecommendations(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	records, err := h.community.ListMine(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, err, "failed to list own recommendations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": toCuratedRecommendationPayloads(records)})
}

func (h *httpHandler) handleListPendingRecommendations(c *gin.Context) {
	if _, ok := h.currentUserID(c); !ok {
		return
	}
	records, err := h.community.ListPending(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err, "failed to list pending recommendations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": toCuratedRecommendationPayloads(records)})
}

func (h *httpHandler) handleUpdateRecommendation(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	var payload updateRecommendationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	record, err := h.community.UpdateOwn(c.Request.Context(), userID, c.Param("id"), recommendations.UpdateOwnRequest{
		Title:       payload.Title,
		URL:         payload.URL,
		Description: payload.Description,
		ExpiresAt:   payload.ExpiresAt,
	})
	if err != nil {
		h.respondServiceError(c, err, "failed to update recommendation")
		return
	}
	c.JSON(http.StatusOK, toCuratedRecommendationPayload(record))
}

func (h *httpHandler) handleDeleteRecommendation(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	if err := h.community.DeleteOwn(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.respondServiceError(c, err, "failed to delete recommendation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
