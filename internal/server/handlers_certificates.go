package server

import (
	"net/http"

	"github.com/credtrack/credtrack/backend/internal/certificates"
	"github.com/credtrack/credtrack/backend/internal/reports"
	"github.com/gin-gonic/gin"
)

type createCertificatePayload struct {
	Name         string `json:"name"`
	Authority    string `json:"authority"`
	RequiredCPEs int    `json:"required_cpes"`
	RenewalDate  string `json:"renewal_date"`
}

type updateCertificatePayload struct {
	Name         *string `json:"name"`
	Authority    *string `json:"authority"`
	RequiredCPEs *int    `json:"required_cpes"`
	RenewalDate  *string `json:"renewal_date"`
}

func (h *httpHandler) handleListCertificates(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	views, err := h.certificates.List(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, err, "failed to list certificates")
		return
	}
	c.JSON(http.StatusOK, gin.H{"certificates": toCertificatePayloads(views)})
}

func (h *httpHandler) handleCreateCertificate(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	var payload createCertificatePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	certificate, err := h.certificates.Create(c.Request.Context(), userID, certificates.CreateRequest{
		Name:         payload.Name,
		Authority:    payload.Authority,
		RequiredCPEs: payload.RequiredCPEs,
		RenewalDate:  payload.RenewalDate,
	})
	if err != nil {
		h.respondServiceError(c, err, "failed to create certificate")
		return
	}
	view, err := h.certificates.Get(c.Request.Context(), userID, certificate.ID)
	if err != nil {
		h.respondServiceError(c, err, "failed to load created certificate")
		return
	}
	c.JSON(http.StatusCreated, toCertificatePayload(view))
}

func (h *httpHandler) handleGetCertificate(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	view, err := h.certificates.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err, "failed to get certificate")
		return
	}
	c.JSON(http.StatusOK, toCertificatePayload(view))
}

func (h *httpHandler) handleUpdateCertificate(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	var payload updateCertificatePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	view, err := h.certificates.Update(c.Request.Context(), userID, c.Param("id"), certificates.UpdateRequest{
		Name:         payload.Name,
		Authority:    payload.Authority,
		RequiredCPEs: payload.RequiredCPEs,
		RenewalDate:  payload.RenewalDate,
	})
	if err != nil {
		h.respondServiceError(c, err, "failed to update certificate")
		return
	}
	c.JSON(http.StatusOK, toCertificatePayload(view))
}

func (h *httpHandler) handleDeleteCertificate(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	if err := h.certificates.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.respondServiceError(c, err, "failed to delete certificate")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *httpHandler) handleCertificateRecommendations(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	view, err := h.certificates.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err, "failed to get certificate")
		return
	}
	resources, err := h.resolver.Resolve(c.Request.Context(), view.Name, view.Authority, userID)
	if err != nil {
		h.respondServiceError(c, err, "failed to resolve recommendations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": resources})
}

func (h *httpHandler) handleCertificateReport(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	view, err := h.certificates.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err, "failed to get certificate")
		return
	}
	records, err := h.activities.List(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, err, "failed to list activities")
		return
	}
	report := reports.BuildCertificateReport(view, records, h.clock())
	c.JSON(http.StatusOK, report)
}
