package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coup-study/coup-api/internal/audit"
	"github.com/coup-study/coup-api/internal/authz"
	apierrors "github.com/coup-study/coup-api/internal/errors"
	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/notify"
	"github.com/coup-study/coup-api/internal/repository"
	"github.com/coup-study/coup-api/internal/utils"
)

// AdminService backs the admin console. Every method requires ADMIN_ACTION
// and every successful mutation writes one admin log entry.
type AdminService struct {
	userRepo   repository.UserRepository
	studyRepo  repository.StudyRepository
	reportRepo repository.ReportRepository
	logRepo    repository.AdminLogRepository
	guard      *Guard
	auditor    *audit.Auditor
	notifier   *notify.Notifier
}

// NewAdminService creates a new AdminService.
func NewAdminService(
	userRepo repository.UserRepository,
	studyRepo repository.StudyRepository,
	reportRepo repository.ReportRepository,
	logRepo repository.AdminLogRepository,
	guard *Guard,
	auditor *audit.Auditor,
	notifier *notify.Notifier,
) *AdminService {
	return &AdminService{
		userRepo:   userRepo,
		studyRepo:  studyRepo,
		reportRepo: reportRepo,
		logRepo:    logRepo,
		guard:      guard,
		auditor:    auditor,
		notifier:   notifier,
	}
}

func (s *AdminService) authorize(ctx context.Context, actor *models.User) error {
	_, err := s.guard.Check(ctx, actor, authz.CapAdminAction, authz.Resource{Kind: authz.KindPlatform})
	return err
}

// ListUsersInput holds the admin user search.
type ListUsersInput struct {
	Status *models.UserStatus
	Query  string
	Page   utils.PaginationParams
}

func (s *AdminService) ListUsers(ctx context.Context, actor *models.User, input ListUsersInput) ([]models.User, int64, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return nil, 0, err
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, 0, invalidInput("Unknown user status")
	}

	users, total, err := s.userRepo.List(ctx, repository.UserFilter{
		Status: input.Status,
		Query:  strings.TrimSpace(input.Query),
		Page:   input.Page,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// SetUserStatus suspends, deletes or reactivates an account. The change
// takes effect on the user's next request because every request re-reads
// the account.
func (s *AdminService) SetUserStatus(ctx context.Context, actor *models.User, userID uint64, status models.UserStatus, reason string) (*models.User, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, invalidInput("Status must be ACTIVE, SUSPENDED or DELETED")
	}
	if userID == actor.ID {
		return nil, ErrCannotModifySelf
	}

	target, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if target.Role == models.UserRoleSystemAdmin && actor.Role != models.UserRoleSystemAdmin {
		return nil, apierrors.NotAuthorizedError(string(authz.ReasonInsufficientRole))
	}
	if target.Status == status {
		return target, nil
	}

	if err := s.userRepo.UpdateStatus(ctx, target.ID, status); err != nil {
		return nil, fmt.Errorf("failed to update user status: %w", err)
	}
	previous := target.Status
	target.Status = status

	reason = utils.SanitizePlainText(reason)
	s.auditor.Record(ctx, audit.Entry{
		AdminID:    actor.ID,
		Action:     models.ActionUserStatus,
		TargetType: models.TargetUser,
		TargetID:   target.ID,
		Reason:     auditReason(fmt.Sprintf("%s -> %s", previous, status), reason),
	})
	return target, nil
}

// DeleteStudy soft deletes a study and closes its memberships.
func (s *AdminService) DeleteStudy(ctx context.Context, actor *models.User, studyID uint64, reason string) error {
	if err := s.authorize(ctx, actor); err != nil {
		return err
	}

	study, err := loadStudy(ctx, s.studyRepo, studyID)
	if err != nil {
		return err
	}
	if err := s.studyRepo.Delete(ctx, study.ID); err != nil {
		if isNotFound(err) {
			return ErrStudyNotFound
		}
		return fmt.Errorf("failed to delete study: %w", err)
	}

	reason = utils.SanitizePlainText(reason)
	s.auditor.Record(ctx, audit.Entry{
		AdminID:    actor.ID,
		Action:     models.ActionStudyDelete,
		TargetType: models.TargetStudy,
		TargetID:   study.ID,
		Reason:     reason,
	})
	s.notifier.Notify(ctx, study.OwnerID, models.NotificationSystem,
		fmt.Sprintf("Your study %s was removed by an administrator", study.Name), "")
	return nil
}

func (s *AdminService) ListReports(ctx context.Context, actor *models.User, status *models.ReportStatus, page utils.PaginationParams) ([]models.Report, int64, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return nil, 0, err
	}

	reports, total, err := s.reportRepo.List(ctx, status, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, total, nil
}

// CloseReport resolves or dismisses a PENDING report.
func (s *AdminService) CloseReport(ctx context.Context, actor *models.User, reportID uint64, status models.ReportStatus, note string) (*models.Report, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return nil, err
	}

	var action string
	switch status {
	case models.ReportStatusResolved:
		action = models.ActionReportResolve
	case models.ReportStatusDismissed:
		action = models.ActionReportDismiss
	default:
		return nil, invalidInput("Status must be RESOLVED or DISMISSED")
	}

	report, err := s.findReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status != models.ReportStatusPending {
		return nil, apierrors.InvalidStateError(string(models.ReportStatusPending), string(report.Status))
	}

	now := time.Now()
	if err := s.reportRepo.Close(ctx, report.ID, status, actor.ID, now); err != nil {
		if !errors.Is(err, repository.ErrStaleTransition) {
			return nil, fmt.Errorf("failed to close report: %w", err)
		}
		current, findErr := s.findReport(ctx, reportID)
		if findErr != nil {
			return nil, findErr
		}
		return nil, apierrors.InvalidStateError(string(models.ReportStatusPending), string(current.Status))
	}
	report.Status = status
	report.ResolvedBy = &actor.ID
	report.ResolvedAt = &now

	s.auditor.Record(ctx, audit.Entry{
		AdminID:    actor.ID,
		Action:     action,
		TargetType: models.TargetReport,
		TargetID:   report.ID,
		Reason:     utils.SanitizePlainText(note),
	})
	return report, nil
}

// ListLogs returns the most recent admin log entries.
func (s *AdminService) ListLogs(ctx context.Context, actor *models.User, filter repository.AdminLogFilter) ([]models.AdminLog, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return nil, err
	}

	entries, err := s.logRepo.Recent(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to read admin log: %w", err)
	}
	return entries, nil
}

func (s *AdminService) findReport(ctx context.Context, id uint64) (*models.Report, error) {
	report, err := s.reportRepo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to find report: %w", err)
	}
	return report, nil
}

func auditReason(change, reason string) string {
	if reason == "" {
		return change
	}
	return change + ": " + reason
}
