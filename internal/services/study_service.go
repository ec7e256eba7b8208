package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/coup-study/coup-api/internal/audit"
	"github.com/coup-study/coup-api/internal/authz"
	"github.com/coup-study/coup-api/internal/constants"
	apierrors "github.com/coup-study/coup-api/internal/errors"
	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/repository"
	"github.com/coup-study/coup-api/internal/utils"
)

// inviteCodeAttempts bounds retries on the rare invite code collision.
const inviteCodeAttempts = 3

// StudyService handles study related business logic.
type StudyService struct {
	studyRepo  repository.StudyRepository
	memberRepo repository.MembershipRepository
	guard      *Guard
	auditor    *audit.Auditor
	log        *zap.Logger
}

// NewStudyService creates a new StudyService.
func NewStudyService(
	studyRepo repository.StudyRepository,
	memberRepo repository.MembershipRepository,
	guard *Guard,
	auditor *audit.Auditor,
	log *zap.Logger,
) *StudyService {
	return &StudyService{
		studyRepo:  studyRepo,
		memberRepo: memberRepo,
		guard:      guard,
		auditor:    auditor,
		log:        log.Named("studies"),
	}
}

// CreateStudyInput represents the information needed to open a study.
type CreateStudyInput struct {
	Name        string
	Description string
	Category    string
	Visibility  models.StudyVisibility
	MaxMembers  int
	AutoApprove bool
}

// CreateStudy opens a study with the creator as its ACTIVE OWNER.
func (s *StudyService) CreateStudy(ctx context.Context, actor *models.User, input CreateStudyInput) (*models.Study, error) {
	study := &models.Study{
		OwnerID:     actor.ID,
		Description: utils.SanitizeRichText(input.Description),
		Category:    strings.TrimSpace(input.Category),
		Visibility:  input.Visibility,
		MaxMembers:  input.MaxMembers,
		AutoApprove: input.AutoApprove,
	}
	if study.Visibility == "" {
		study.Visibility = models.VisibilityPublic
	}

	name, err := validateStudyFields(input.Name, study)
	if err != nil {
		return nil, err
	}
	study.Name = name

	now := time.Now()
	owner := &models.StudyMember{
		Role:       models.MemberRoleOwner,
		Status:     models.MemberStatusActive,
		JoinedAt:   now,
		ApprovedAt: &now,
	}

	for attempt := 0; ; attempt++ {
		if study.IsPrivate() {
			code, err := utils.GenerateInviteCode()
			if err != nil {
				return nil, fmt.Errorf("failed to generate invite code: %w", err)
			}
			study.InviteCode = &code
		}

		err := s.studyRepo.CreateWithOwner(ctx, study, owner)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrCreateStudy) && errors.Is(err, gorm.ErrDuplicatedKey) && study.IsPrivate() && attempt+1 < inviteCodeAttempts {
			study.ID = 0
			continue
		}
		if errors.Is(err, repository.ErrCreateOwnerMembership) {
			return nil, fmt.Errorf("failed to add owner to study: %w", err)
		}
		return nil, fmt.Errorf("failed to create study: %w", err)
	}

	s.log.Info("study created", zap.Uint64("study_id", study.ID), zap.Uint64("owner_id", actor.ID))
	return study, nil
}

// ListPublicStudies lists PUBLIC studies, newest first.
func (s *StudyService) ListPublicStudies(ctx context.Context, category string, page utils.PaginationParams) ([]models.Study, int64, error) {
	visibility := models.VisibilityPublic
	studies, total, err := s.studyRepo.List(ctx, repository.StudyFilter{
		Visibility: &visibility,
		Category:   strings.TrimSpace(category),
		Page:       page,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list studies: %w", err)
	}
	return studies, total, nil
}

// ListMyStudies lists the caller's open memberships with their studies.
func (s *StudyService) ListMyStudies(ctx context.Context, actor *models.User) ([]models.StudyMember, error) {
	members, err := s.memberRepo.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	return members, nil
}

// GetStudy returns a study. A PRIVATE study the caller cannot view is
// reported as missing so its existence is not disclosed.
func (s *StudyService) GetStudy(ctx context.Context, actor *models.User, studyID uint64) (*models.Study, error) {
	study, err := loadStudy(ctx, s.studyRepo, studyID)
	if err != nil {
		return nil, err
	}
	if study.IsPrivate() {
		if _, err := s.guard.Check(ctx, actor, authz.CapView, authz.Resource{Kind: authz.KindStudy, StudyID: study.ID}); err != nil {
			if e, ok := apierrors.As(err); ok && e.Kind == apierrors.KindNotAuthorized {
				return nil, ErrStudyNotFound
			}
			return nil, err
		}
	}
	return study, nil
}

// UpdateStudyInput holds the editable study fields. Nil fields are left unchanged.
type UpdateStudyInput struct {
	Name        *string
	Description *string
	Category    *string
	Visibility  *models.StudyVisibility
	MaxMembers  *int
	AutoApprove *bool
}

// UpdateStudy edits a study's settings.
func (s *StudyService) UpdateStudy(ctx context.Context, actor *models.User, studyID uint64, input UpdateStudyInput) (*models.Study, error) {
	study, err := loadStudy(ctx, s.studyRepo, studyID)
	if err != nil {
		return nil, err
	}
	decision, err := s.guard.Check(ctx, actor, authz.CapStudyManage, authz.Resource{Kind: authz.KindStudy, StudyID: study.ID})
	if err != nil {
		return nil, err
	}

	name := study.Name
	if input.Name != nil {
		name = *input.Name
	}
	if input.Description != nil {
		study.Description = utils.SanitizeRichText(*input.Description)
	}
	if input.Category != nil {
		study.Category = strings.TrimSpace(*input.Category)
	}
	if input.Visibility != nil {
		study.Visibility = *input.Visibility
	}
	if input.MaxMembers != nil {
		study.MaxMembers = *input.MaxMembers
	}
	if input.AutoApprove != nil {
		study.AutoApprove = *input.AutoApprove
	}

	if study.Name, err = validateStudyFields(name, study); err != nil {
		return nil, err
	}

	if study.IsPrivate() && study.InviteCode == nil {
		code, err := utils.GenerateInviteCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate invite code: %w", err)
		}
		study.InviteCode = &code
	}

	if err := s.studyRepo.Update(ctx, study); err != nil {
		return nil, fmt.Errorf("failed to update study: %w", err)
	}

	recordGlobal(ctx, s.auditor, actor, decision, audit.Entry{
		Action:     models.ActionStudyUpdate,
		TargetType: models.TargetStudy,
		TargetID:   study.ID,
	})
	return study, nil
}

// RegenerateInviteCode replaces the invite code, invalidating the old one.
func (s *StudyService) RegenerateInviteCode(ctx context.Context, actor *models.User, studyID uint64) (string, error) {
	study, err := loadStudy(ctx, s.studyRepo, studyID)
	if err != nil {
		return "", err
	}
	decision, err := s.guard.Check(ctx, actor, authz.CapStudyManage, authz.Resource{Kind: authz.KindStudy, StudyID: study.ID})
	if err != nil {
		return "", err
	}

	code, err := utils.GenerateInviteCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate invite code: %w", err)
	}
	study.InviteCode = &code
	if err := s.studyRepo.Update(ctx, study); err != nil {
		return "", fmt.Errorf("failed to update invite code: %w", err)
	}

	recordGlobal(ctx, s.auditor, actor, decision, audit.Entry{
		Action:     models.ActionStudyInviteRegen,
		TargetType: models.TargetStudy,
		TargetID:   study.ID,
	})
	return code, nil
}

// InviteCode returns the current invite code to the study's managers.
func (s *StudyService) InviteCode(ctx context.Context, actor *models.User, studyID uint64) (string, error) {
	study, err := loadStudy(ctx, s.studyRepo, studyID)
	if err != nil {
		return "", err
	}
	if _, err := s.guard.Check(ctx, actor, authz.CapStudyManage, authz.Resource{Kind: authz.KindStudy, StudyID: study.ID}); err != nil {
		return "", err
	}
	if study.InviteCode == nil {
		return "", nil
	}
	return *study.InviteCode, nil
}

func validateStudyFields(rawName string, study *models.Study) (string, error) {
	name := utils.SanitizePlainText(rawName)
	if name == "" {
		return "", invalidInput("Study name is required")
	}
	if len([]rune(name)) > constants.MaxStudyNameLen {
		return "", invalidInput(fmt.Sprintf("Study name must be at most %d characters", constants.MaxStudyNameLen))
	}
	if study.Visibility != models.VisibilityPublic && study.Visibility != models.VisibilityPrivate {
		return "", invalidInput("Visibility must be PUBLIC or PRIVATE")
	}
	if study.MaxMembers < 0 {
		return "", invalidInput("Max members cannot be negative")
	}
	return name, nil
}
