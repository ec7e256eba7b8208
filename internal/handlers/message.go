package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coup-study/coup-api/internal/dto"
	apierrors "github.com/coup-study/coup-api/internal/errors"
	"github.com/coup-study/coup-api/internal/services"
	"github.com/coup-study/coup-api/internal/utils"
)

type MessageHandler struct {
	messageService *services.MessageService
}

func NewMessageHandler(messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

func (h *MessageHandler) PostMessage(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	studyID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.messageService.PostMessage(c.Request.Context(), actor, studyID, req.Content)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ToMessageDTO(*msg))
}

// ListMessages lists a study's chat history, newest first
func (h *MessageHandler) ListMessages(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	studyID, ok := idParam(c, "id")
	if !ok {
		return
	}
	page := utils.GetPaginationParams(c)

	messages, total, err := h.messageService.ListMessages(c.Request.Context(), actor, studyID, page)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageListResponse{
		Messages:   dto.ToMessageDTOs(messages),
		Pagination: dto.NewPage(page, total),
	})
}
