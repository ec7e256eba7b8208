package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coup-study/coup-api/internal/dto"
	apierrors "github.com/coup-study/coup-api/internal/errors"
	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/services"
	"github.com/coup-study/coup-api/internal/utils"
)

// StudyHandler serves study CRUD and invite codes.
type StudyHandler struct {
	studyService      *services.StudyService
	membershipService *services.MembershipService
}

func NewStudyHandler(studyService *services.StudyService, membershipService *services.MembershipService) *StudyHandler {
	return &StudyHandler{
		studyService:      studyService,
		membershipService: membershipService,
	}
}

// CreateStudy opens a study owned by the caller
func (h *StudyHandler) CreateStudy(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	type CreateStudyRequest struct {
		Name        string                 `json:"name" binding:"required"`
		Description string                 `json:"description"`
		Category    string                 `json:"category"`
		Visibility  models.StudyVisibility `json:"visibility"`
		MaxMembers  int                    `json:"max_members"`
		AutoApprove bool                   `json:"auto_approve"`
	}

	var req CreateStudyRequest
	if !bindJSON(c, &req) {
		return
	}

	study, err := h.studyService.CreateStudy(c.Request.Context(), actor, services.CreateStudyInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Visibility:  req.Visibility,
		MaxMembers:  req.MaxMembers,
		AutoApprove: req.AutoApprove,
	})
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToStudyDTO(*study, true))
}

// ListStudies lists PUBLIC studies
func (h *StudyHandler) ListStudies(c *gin.Context) {
	page := utils.GetPaginationParams(c)

	studies, total, err := h.studyService.ListPublicStudies(c.Request.Context(), c.Query("category"), page)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.StudyListResponse{
		Studies:    dto.ToStudyDTOs(studies),
		Pagination: dto.NewPage(page, total),
	})
}

// ListMyStudies lists the caller's memberships with their studies
func (h *StudyHandler) ListMyStudies(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	members, err := h.studyService.ListMyStudies(c.Request.Context(), actor)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"memberships": dto.ToMembershipDTOs(members)})
}

func (h *StudyHandler) GetStudy(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	studyID, ok := idParam(c, "id")
	if !ok {
		return
	}

	study, err := h.studyService.GetStudy(c.Request.Context(), actor, studyID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToStudyDTO(*study, false))
}

func (h *StudyHandler) UpdateStudy(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	studyID, ok := idParam(c, "id")
	if !ok {
		return
	}

	type UpdateStudyRequest struct {
		Name        *string                 `json:"name"`
		Description *string                 `json:"description"`
		Category    *string                 `json:"category"`
		Visibility  *models.StudyVisibility `json:"visibility"`
		MaxMembers  *int                    `json:"max_members"`
		AutoApprove *bool                   `json:"auto_approve"`
	}

	var req UpdateStudyRequest
	if !bindJSON(c, &req) {
		return
	}

	study, err := h.studyService.UpdateStudy(c.Request.Context(), actor, studyID, services.UpdateStudyInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Visibility:  req.Visibility,
		MaxMembers:  req.MaxMembers,
		AutoApprove: req.AutoApprove,
	})
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToStudyDTO(*study, true))
}

// GetInviteCode returns the invite code to the study's managers
func (h *StudyHandler) GetInviteCode(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	studyID, ok := idParam(c, "id")
	if !ok {
		return
	}

	code, err := h.studyService.InviteCode(c.Request.Context(), actor, studyID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.InviteCodeResponse{InviteCode: code})
}

// RegenerateInviteCode generates a new invite code for the study
func (h *StudyHandler) RegenerateInviteCode(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	studyID, ok := idParam(c, "id")
	if !ok {
		return
	}

	code, err := h.studyService.RegenerateInviteCode(c.Request.Context(), actor, studyID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.InviteCodeResponse{InviteCode: code})
}

// JoinByInviteCode files a join request using an invite code
func (h *StudyHandler) JoinByInviteCode(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req struct {
		InviteCode string `json:"invite_code" binding:"required"`
		Message    string `json:"message"`
	}
	if !bindJSON(c, &req) {
		return
	}

	member, err := h.membershipService.JoinByInviteCode(c.Request.Context(), actor, req.InviteCode, req.Message)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ToMembershipDTO(*member))
}
