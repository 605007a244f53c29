package server

import (
	"net/http"
	"strconv"

	"github.com/credtrack/credtrack/backend/internal/events"
	"github.com/gin-gonic/gin"
)

type createEventPayload struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	EventAt       *int64 `json:"event_at_s"`
	Link          string `json:"link"`
	Type          string `json:"type"`
	CreatedByName string `json:"created_by_name"`
}

type updateEventPayload struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	EventAt     *int64  `json:"event_at_s"`
	Link        *string `json:"link"`
}

func (h *httpHandler) handleListEvents(c *gin.Context) {
	if _, ok := h.currentUserID(c); !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		limit = parsed
	}
	records, err := h.events.List(c.Request.Context(), c.Query("type"), limit)
	if err != nil {
		h.respondServiceError(c, err, "failed to list events")
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": toEventPayloads(records)})
}

func (h *httpHandler) handleCreateEvent(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	var payload createEventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	event, err := h.events.Create(c.Request.Context(), userID, events.CreateRequest{
		Title:         payload.Title,
		Description:   payload.Description,
		EventAt:       payload.EventAt,
		Link:          payload.Link,
		Type:          payload.Type,
		CreatedByName: payload.CreatedByName,
	})
	if err != nil {
		h.respondServiceError(c, err, "failed to create event")
		return
	}
	c.JSON(http.StatusCreated, toEventPayload(event))
}

func (h *httpHandler) handleGetEvent(c *gin.Context) {
	if _, ok := h.currentUserID(c); !ok {
		return
	}
	event, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err, "failed to get event")
		return
	}
	c.JSON(http.StatusOK, toEventPayload(event))
}

func (h *httpHandler) handleUpdateEvent(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	var payload updateEventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	event, err := h.events.Update(c.Request.Context(), userID, c.Param("id"), events.UpdateRequest{
		Title:       payload.Title,
		Description: payload.Description,
		EventAt:     payload.EventAt,
		Link:        payload.Link,
	})
	if err != nil {
		h.respondServiceError(c, err, "failed to update event")
		return
	}
	c.JSON(http.StatusOK, toEventPayload(event))
}

func (h *httpHandler) handleDeleteEvent(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	if err := h.events.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.respondServiceError(c, err, "failed to delete event")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
