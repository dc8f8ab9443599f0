package rest

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"chat-presence/observability"
	"chat-presence/services"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string                        `json:"status"`
	Stats  observability.MonitoringStats `json:"stats"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type reactBody struct {
	UserID   string `json:"userId"`
	Reaction string `json:"reaction"`
}

type readBody struct {
	UserID string `json:"userId"`
}

type handler struct {
	log        *slog.Logger
	service    services.IChatService
	monitoring *observability.MonitoringManager
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Stats: h.monitoring.GetLatest()})
}

func (h *handler) history(c *gin.Context) {
	messages, err := h.service.History(c.Request.Context(), domain.RoomID(c.Param("roomId")))
	if err != nil {
		h.fail(c, err)
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	c.JSON(http.StatusOK, messages)
}

func (h *handler) users(c *gin.Context) {
	users, err := h.service.Users(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	c.JSON(http.StatusOK, users)
}

func (h *handler) react(c *gin.Context) {
	var body reactBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	msg, err := h.service.React(c.Request.Context(), services.ReactRequest{
		MessageID: c.Param("id"),
		UserID:    body.UserID,
		Reaction:  body.Reaction,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *handler) read(c *gin.Context) {
	var body readBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	err := h.service.MarkRead(c.Request.Context(), services.ReadRequest{
		MessageID: c.Param("id"),
		UserID:    body.UserID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

func (h *handler) fail(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, ErrorResponse{Error: errors.Code(err), Message: err.Error()})
}
