package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coup-study/coup-api/internal/dto"
	apierrors "github.com/coup-study/coup-api/internal/errors"
	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/services"
)

// MembershipHandler serves join requests and member moderation.
type MembershipHandler struct {
	membershipService *services.MembershipService
}

func NewMembershipHandler(membershipService *services.MembershipService) *MembershipHandler {
	return &MembershipHandler{membershipService: membershipService}
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// RequestJoin files a join request for a PUBLIC study
func (h *MembershipHandler) RequestJoin(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	studyID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if !bindOptionalJSON(c, &req) {
		return
	}

	member, err := h.membershipService.RequestJoin(c.Request.Context(), actor, studyID, req.Message)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ToMembershipDTO(*member))
}

func (h *MembershipHandler) ListJoinRequests(c *gin.Context) {
	h.list(c, h.membershipService.ListJoinRequests, "join_requests")
}

func (h *MembershipHandler) ListMembers(c *gin.Context) {
	h.list(c, h.membershipService.ListMembers, "members")
}

func (h *MembershipHandler) list(c *gin.Context, fetch func(ctx context.Context, actor *models.User, studyID uint64) ([]models.StudyMember, error), key string) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	studyID, ok := idParam(c, "id")
	if !ok {
		return
	}

	members, err := fetch(c.Request.Context(), actor, studyID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{key: dto.ToMembershipDTOs(members)})
}

func (h *MembershipHandler) Approve(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	member, err := h.membershipService.Approve(c.Request.Context(), actor, id)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToMembershipDTO(*member))
}

func (h *MembershipHandler) Reject(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req reasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	if err := h.membershipService.Reject(c.Request.Context(), actor, id, req.Reason); err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MembershipHandler) ChangeRole(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Role models.MemberRole `json:"role" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	member, err := h.membershipService.ChangeRole(c.Request.Context(), actor, id, req.Role)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToMembershipDTO(*member))
}

// Remove removes a member, or lets a member leave
func (h *MembershipHandler) Remove(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.membershipService.Remove(c.Request.Context(), actor, id); err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MembershipHandler) Suspend(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req reasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	member, err := h.membershipService.Suspend(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToMembershipDTO(*member))
}

func (h *MembershipHandler) Reinstate(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	member, err := h.membershipService.Reinstate(c.Request.Context(), actor, id)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToMembershipDTO(*member))
}
