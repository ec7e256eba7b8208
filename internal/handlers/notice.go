package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coup-study/coup-api/internal/dto"
	apierrors "github.com/coup-study/coup-api/internal/errors"
	"github.com/coup-study/coup-api/internal/services"
	"github.com/coup-study/coup-api/internal/utils"
)

type NoticeHandler struct {
	noticeService *services.NoticeService
}

func NewNoticeHandler(noticeService *services.NoticeService) *NoticeHandler {
	return &NoticeHandler{noticeService: noticeService}
}

func (h *NoticeHandler) CreateNotice(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	studyID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Title    string `json:"title" binding:"required"`
		Content  string `json:"content"`
		IsPinned bool   `json:"is_pinned"`
	}
	if !bindJSON(c, &req) {
		return
	}

	notice, err := h.noticeService.CreateNotice(c.Request.Context(), actor, studyID, services.CreateNoticeInput{
		Title:    req.Title,
		Content:  req.Content,
		IsPinned: req.IsPinned,
	})
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ToNoticeDTO(*notice))
}

// ListNotices lists notices pinned first, then newest
func (h *NoticeHandler) ListNotices(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	studyID, ok := idParam(c, "id")
	if !ok {
		return
	}
	page := utils.GetPaginationParams(c)

	notices, total, err := h.noticeService.ListNotices(c.Request.Context(), actor, studyID, c.Query("pinned") == "true", page)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NoticeListResponse{
		Notices:    dto.ToNoticeDTOs(notices),
		Pagination: dto.NewPage(page, total),
	})
}

func (h *NoticeHandler) GetNotice(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	notice, err := h.noticeService.GetNotice(c.Request.Context(), actor, id)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToNoticeDTO(*notice))
}

func (h *NoticeHandler) SetPinned(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		IsPinned *bool `json:"is_pinned" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	notice, err := h.noticeService.SetPinned(c.Request.Context(), actor, id, *req.IsPinned)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToNoticeDTO(*notice))
}

func (h *NoticeHandler) DeleteNotice(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.noticeService.DeleteNotice(c.Request.Context(), actor, id); err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
