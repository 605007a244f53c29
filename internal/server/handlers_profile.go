package server

import (
	"net/http"

	"github.com/credtrack/credtrack/backend/internal/certificates"
	"github.com/credtrack/credtrack/backend/internal/users"
	"github.com/gin-gonic/gin"
)

const dashboardRecentActivityCount = 3

type updateProfilePayload struct {
	Email       *string `json:"email"`
	DisplayName *string `json:"display_name"`
}

func (h *httpHandler) handleGetProfile(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	profile, err := h.users.Get(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, err, "failed to get profile")
		return
	}
	c.JSON(http.StatusOK, toProfilePayload(profile))
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	var payload updateProfilePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	profile, err := h.users.Update(c.Request.Context(), userID, users.UpdateRequest{
		Email:       payload.Email,
		DisplayName: payload.DisplayName,
	})
	if err != nil {
		h.respondServiceError(c, err, "failed to update profile")
		return
	}
	c.JSON(http.StatusOK, toProfilePayload(profile))
}

type dashboardPayload struct {
	Certificates     []certificatePayload    `json:"certificates"`
	Reminders        []certificates.Reminder `json:"reminders"`
	RecentActivities []activityPayload       `json:"recent_activities"`
	TotalCPEs        float64                 `json:"total_cpes"`
	CertificateCount int                     `json:"certificate_count"`
	ActivityCount    int                     `json:"activity_count"`
}

// handleDashboard aggregates the landing view: classified certificates with
// their reminders, the most recent activities, and the running credit total.
func (h *httpHandler) handleDashboard(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	views, err := h.certificates.List(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, err, "failed to list certificates")
		return
	}

	today := h.clock().UTC()
	reminders := []certificates.Reminder{}
	for _, view := range views {
		reminders = append(reminders, certificates.Reminders(view, today)...)
	}

	records, err := h.activities.List(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, err, "failed to list activities")
		return
	}
	recent := records
	if len(recent) > dashboardRecentActivityCount {
		recent = recent[:dashboardRecentActivityCount]
	}

	total, err := h.ledger.TotalCredits(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, err, "failed to read credit total")
		return
	}

	c.JSON(http.StatusOK, dashboardPayload{
		Certificates:     toCertificatePayloads(views),
		Reminders:        reminders,
		RecentActivities: toActivityPayloads(recent),
		TotalCPEs:        total,
		CertificateCount: len(views),
		ActivityCount:    len(records),
	})
}
