package services

import (
	"context"
	"fmt"

	"github.com/coup-study/coup-api/internal/audit"
	"github.com/coup-study/coup-api/internal/authz"
	"github.com/coup-study/coup-api/internal/constants"
	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/notify"
	"github.com/coup-study/coup-api/internal/repository"
	"github.com/coup-study/coup-api/internal/utils"
)

// NoticeService handles study notice boards.
type NoticeService struct {
	noticeRepo repository.NoticeRepository
	studyRepo  repository.StudyRepository
	memberRepo repository.MembershipRepository
	guard      *Guard
	notifier   *notify.Notifier
	auditor    *audit.Auditor
}

// NewNoticeService creates a new NoticeService.
func NewNoticeService(
	noticeRepo repository.NoticeRepository,
	studyRepo repository.StudyRepository,
	memberRepo repository.MembershipRepository,
	guard *Guard,
	notifier *notify.Notifier,
	auditor *audit.Auditor,
) *NoticeService {
	return &NoticeService{
		noticeRepo: noticeRepo,
		studyRepo:  studyRepo,
		memberRepo: memberRepo,
		guard:      guard,
		notifier:   notifier,
		auditor:    auditor,
	}
}

// CreateNoticeInput represents a new notice.
type CreateNoticeInput struct {
	Title    string
	Content  string
	IsPinned bool
}

// CreateNotice posts a notice and notifies the other active members.
func (s *NoticeService) CreateNotice(ctx context.Context, actor *models.User, studyID uint64, input CreateNoticeInput) (*models.Notice, error) {
	study, err := loadStudy(ctx, s.studyRepo, studyID)
	if err != nil {
		return nil, err
	}
	decision, err := s.guard.Check(ctx, actor, authz.CapStudyManage, authz.Resource{Kind: authz.KindStudy, StudyID: studyID})
	if err != nil {
		return nil, err
	}

	title := utils.SanitizePlainText(input.Title)
	if title == "" {
		return nil, invalidInput("Title is required")
	}
	if len([]rune(title)) > constants.MaxNoticeTitleLen {
		return nil, invalidInput(fmt.Sprintf("Title must be at most %d characters", constants.MaxNoticeTitleLen))
	}

	notice := &models.Notice{
		StudyID:  studyID,
		AuthorID: actor.ID,
		Title:    title,
		Content:  utils.SanitizeRichText(input.Content),
		IsPinned: input.IsPinned,
	}
	if err := s.noticeRepo.Create(ctx, notice); err != nil {
		return nil, fmt.Errorf("failed to create notice: %w", err)
	}
	recordGlobal(ctx, s.auditor, actor, decision, audit.Entry{
		Action:     models.ActionNoticeCreate,
		TargetType: models.TargetNotice,
		TargetID:   notice.ID,
	})

	if recipients, err := activeMemberIDs(ctx, s.memberRepo, studyID, actor.ID); err == nil {
		s.notifier.NotifyMany(ctx, recipients, models.NotificationNewNotice,
			fmt.Sprintf("New notice in %s: %s", study.Name, notice.Title),
			fmt.Sprintf("/studies/%d/notices/%d", studyID, notice.ID))
	}

	return notice, nil
}

// ListNotices lists a study's notices, pinned first, then newest.
func (s *NoticeService) ListNotices(ctx context.Context, actor *models.User, studyID uint64, pinnedOnly bool, page utils.PaginationParams) ([]models.Notice, int64, error) {
	if _, err := loadStudy(ctx, s.studyRepo, studyID); err != nil {
		return nil, 0, err
	}
	if _, err := s.guard.Check(ctx, actor, authz.CapView, authz.Resource{Kind: authz.KindStudy, StudyID: studyID}); err != nil {
		return nil, 0, err
	}

	notices, total, err := s.noticeRepo.List(ctx, repository.NoticeFilter{
		StudyID:    studyID,
		PinnedOnly: pinnedOnly,
		Page:       page,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notices: %w", err)
	}
	return notices, total, nil
}

// GetNotice returns one notice with its author.
func (s *NoticeService) GetNotice(ctx context.Context, actor *models.User, noticeID uint64) (*models.Notice, error) {
	notice, err := s.findNotice(ctx, noticeID, "Author")
	if err != nil {
		return nil, err
	}
	if _, err := s.guard.Check(ctx, actor, authz.CapView, authz.Resource{Kind: authz.KindNotice, StudyID: notice.StudyID}); err != nil {
		return nil, err
	}
	return notice, nil
}

// SetPinned pins or unpins a notice.
func (s *NoticeService) SetPinned(ctx context.Context, actor *models.User, noticeID uint64, pinned bool) (*models.Notice, error) {
	notice, err := s.findNotice(ctx, noticeID)
	if err != nil {
		return nil, err
	}
	decision, err := s.guard.Check(ctx, actor, authz.CapStudyManage, authz.Resource{Kind: authz.KindStudy, StudyID: notice.StudyID})
	if err != nil {
		return nil, err
	}

	if err := s.noticeRepo.SetPinned(ctx, notice.ID, pinned); err != nil {
		return nil, fmt.Errorf("failed to pin notice: %w", err)
	}
	notice.IsPinned = pinned

	recordGlobal(ctx, s.auditor, actor, decision, audit.Entry{
		Action:     models.ActionNoticePin,
		TargetType: models.TargetNotice,
		TargetID:   notice.ID,
	})
	return notice, nil
}

// DeleteNotice removes a notice. Authors may delete their own.
func (s *NoticeService) DeleteNotice(ctx context.Context, actor *models.User, noticeID uint64) error {
	notice, err := s.findNotice(ctx, noticeID)
	if err != nil {
		return err
	}
	decision, err := s.guard.Check(ctx, actor, authz.CapStudyManage, authz.Resource{
		Kind:    authz.KindNotice,
		StudyID: notice.StudyID,
		OwnerID: notice.AuthorID,
	})
	if err != nil {
		return err
	}

	if err := s.noticeRepo.Delete(ctx, notice.ID); err != nil {
		return fmt.Errorf("failed to delete notice: %w", err)
	}

	recordGlobal(ctx, s.auditor, actor, decision, audit.Entry{
		Action:     models.ActionNoticeDelete,
		TargetType: models.TargetNotice,
		TargetID:   notice.ID,
	})
	return nil
}

func (s *NoticeService) findNotice(ctx context.Context, id uint64, preload ...string) (*models.Notice, error) {
	notice, err := s.noticeRepo.FindByID(ctx, id, preload...)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNoticeNotFound
		}
		return nil, fmt.Errorf("failed to find notice: %w", err)
	}
	return notice, nil
}
