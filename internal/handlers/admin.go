package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/coup-study/coup-api/internal/dto"
	apierrors "github.com/coup-study/coup-api/internal/errors"
	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/repository"
	"github.com/coup-study/coup-api/internal/services"
	"github.com/coup-study/coup-api/internal/utils"
)

// ReportHandler lets any signed-in user file a report.
type ReportHandler struct {
	reportService *services.ReportService
}

func NewReportHandler(reportService *services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func (h *ReportHandler) CreateReport(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req struct {
		TargetType models.TargetType `json:"target_type" binding:"required"`
		TargetID   uint64            `json:"target_id" binding:"required"`
		Reason     string            `json:"reason" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	report, err := h.reportService.CreateReport(c.Request.Context(), actor, services.CreateReportInput{
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Reason:     req.Reason,
	})
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ToReportDTO(*report))
}

// AdminHandler serves the platform admin console. Every route checks
// ADMIN_ACTION in the service layer.
type AdminHandler struct {
	adminService *services.AdminService
}

func NewAdminHandler(adminService *services.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	page := utils.GetPaginationParams(c)

	input := services.ListUsersInput{Query: c.Query("q"), Page: page}
	if raw := c.Query("status"); raw != "" {
		status := models.UserStatus(raw)
		input.Status = &status
	}

	users, total, err := h.adminService.ListUsers(c.Request.Context(), actor, input)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.UserListResponse{
		Users:      dto.ToUserDTOs(users),
		Pagination: dto.NewPage(page, total),
	})
}

// SetUserStatus suspends, deletes or reactivates an account
func (h *AdminHandler) SetUserStatus(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Status models.UserStatus `json:"status" binding:"required"`
		Reason string            `json:"reason"`
	}
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.adminService.SetUserStatus(c.Request.Context(), actor, userID, req.Status, req.Reason)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}

func (h *AdminHandler) DeleteStudy(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	studyID, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.adminService.DeleteStudy(c.Request.Context(), actor, studyID, c.Query("reason")); err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) ListReports(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	page := utils.GetPaginationParams(c)

	var status *models.ReportStatus
	if raw := c.Query("status"); raw != "" {
		s := models.ReportStatus(raw)
		status = &s
	}

	reports, total, err := h.adminService.ListReports(c.Request.Context(), actor, status, page)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ReportListResponse{
		Reports:    dto.ToReportDTOs(reports),
		Pagination: dto.NewPage(page, total),
	})
}

// CloseReport resolves or dismisses a PENDING report
func (h *AdminHandler) CloseReport(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Status models.ReportStatus `json:"status" binding:"required"`
		Note   string              `json:"note"`
	}
	if !bindJSON(c, &req) {
		return
	}

	report, err := h.adminService.CloseReport(c.Request.Context(), actor, id, req.Status, req.Note)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToReportDTO(*report))
}

// ListLogs returns the most recent admin log entries
func (h *AdminHandler) ListLogs(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	filter := repository.AdminLogFilter{
		Action:     c.Query("action"),
		TargetType: models.TargetType(c.Query("target_type")),
	}
	if raw := c.Query("admin_id"); raw != "" {
		adminID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid admin_id")
			return
		}
		filter.AdminID = &adminID
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			apierrors.BadRequest(c, "Invalid limit")
			return
		}
		filter.Limit = limit
	}

	entries, err := h.adminService.ListLogs(c.Request.Context(), actor, filter)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": dto.ToAdminLogDTOs(entries)})
}
