package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coup-study/coup-api/internal/dto"
	apierrors "github.com/coup-study/coup-api/internal/errors"
	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/services"
)

// InternalHandler serves trusted backend callers such as the signalling
// server. Routes are mounted behind RequireInternalKey.
type InternalHandler struct {
	membershipService   *services.MembershipService
	notificationService *services.NotificationService
}

func NewInternalHandler(membershipService *services.MembershipService, notificationService *services.NotificationService) *InternalHandler {
	return &InternalHandler{
		membershipService:   membershipService,
		notificationService: notificationService,
	}
}

// CheckMembership reports whether a user is an ACTIVE member of a study
func (h *InternalHandler) CheckMembership(c *gin.Context) {
	studyID, ok := idParam(c, "id")
	if !ok {
		return
	}
	userID, ok := idParam(c, "userId")
	if !ok {
		return
	}

	member, err := h.membershipService.OpenMembership(c.Request.Context(), studyID, userID)
	if err != nil {
		if errors.Is(err, services.ErrMembershipNotFound) {
			c.JSON(http.StatusOK, dto.MembershipCheckResponse{Member: false})
			return
		}
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MembershipCheckResponse{
		Member: member.Status == models.MemberStatusActive,
		Role:   member.Role,
		Status: member.Status,
	})
}

// CreateNotification stores and publishes a notification for a user
func (h *InternalHandler) CreateNotification(c *gin.Context) {
	var req struct {
		RecipientID uint64                  `json:"recipient_id" binding:"required"`
		Type        models.NotificationType `json:"type"`
		Message     string                  `json:"message" binding:"required"`
		Link        string                  `json:"link"`
	}
	if !bindJSON(c, &req) {
		return
	}

	n, err := h.notificationService.CreateForService(c.Request.Context(), req.RecipientID, req.Type, req.Message, req.Link)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ToNotificationDTO(*n))
}
