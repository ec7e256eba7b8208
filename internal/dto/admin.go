package dto

import (
	"time"

	"github.com/coup-study/coup-api/internal/models"
)

// ReportDTO represents a user report
type ReportDTO struct {
	ID         uint64              `json:"id"`
	ReporterID uint64              `json:"reporter_id"`
	TargetType models.TargetType   `json:"target_type"`
	TargetID   uint64              `json:"target_id"`
	Reason     string              `json:"reason"`
	Status     models.ReportStatus `json:"status"`
	ResolvedBy *uint64             `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time          `json:"resolved_at,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// ReportListResponse represents a paginated list of reports
type ReportListResponse struct {
	Reports    []ReportDTO `json:"reports"`
	Pagination Page        `json:"pagination"`
}

// AdminLogDTO represents one admin log entry
type AdminLogDTO struct {
	ID         uint64            `json:"id"`
	AdminID    uint64            `json:"admin_id"`
	Action     string            `json:"action"`
	TargetType models.TargetType `json:"target_type"`
	TargetID   uint64            `json:"target_id"`
	Reason     string            `json:"reason,omitempty"`
	IPAddress  string            `json:"ip_address,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

func ToReportDTO(r models.Report) ReportDTO {
	return ReportDTO{
		ID:         r.ID,
		ReporterID: r.ReporterID,
		TargetType: r.TargetType,
		TargetID:   r.TargetID,
		Reason:     r.Reason,
		Status:     r.Status,
		ResolvedBy: r.ResolvedBy,
		ResolvedAt: r.ResolvedAt,
		CreatedAt:  r.CreatedAt,
	}
}

func ToReportDTOs(reports []models.Report) []ReportDTO {
	out := make([]ReportDTO, len(reports))
	for i, r := range reports {
		out[i] = ToReportDTO(r)
	}
	return out
}

func ToAdminLogDTOs(entries []models.AdminLog) []AdminLogDTO {
	out := make([]AdminLogDTO, len(entries))
	for i, e := range entries {
		out[i] = AdminLogDTO{
			ID:         e.ID,
			AdminID:    e.AdminID,
			Action:     e.Action,
			TargetType: e.TargetType,
			TargetID:   e.TargetID,
			Reason:     e.Reason,
			IPAddress:  e.IPAddress,
			CreatedAt:  e.CreatedAt,
		}
	}
	return out
}
