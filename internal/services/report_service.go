package services

import (
	"context"
	"fmt"

	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/repository"
	"github.com/coup-study/coup-api/internal/utils"
)

var reportableTargets = map[models.TargetType]bool{
	models.TargetUser:    true,
	models.TargetStudy:   true,
	models.TargetNotice:  true,
	models.TargetFile:    true,
	models.TargetMessage: true,
}

// ReportService lets any user flag content for the admin console.
type ReportService struct {
	reportRepo repository.ReportRepository
}

func NewReportService(reportRepo repository.ReportRepository) *ReportService {
	return &ReportService{reportRepo: reportRepo}
}

// CreateReportInput describes what is being reported and why.
type CreateReportInput struct {
	TargetType models.TargetType
	TargetID   uint64
	Reason     string
}

func (s *ReportService) CreateReport(ctx context.Context, actor *models.User, input CreateReportInput) (*models.Report, error) {
	if !reportableTargets[input.TargetType] {
		return nil, invalidInput("Target type cannot be reported")
	}
	if input.TargetID == 0 {
		return nil, invalidInput("Target ID is required")
	}
	reason := utils.SanitizePlainText(input.Reason)
	if reason == "" {
		return nil, invalidInput("Reason is required")
	}

	report := &models.Report{
		ReporterID: actor.ID,
		TargetType: input.TargetType,
		TargetID:   input.TargetID,
		Reason:     reason,
		Status:     models.ReportStatusPending,
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}
	return report, nil
}
