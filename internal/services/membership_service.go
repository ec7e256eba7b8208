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
	"github.com/coup-study/coup-api/internal/notify"
	"github.com/coup-study/coup-api/internal/repository"
	"github.com/coup-study/coup-api/internal/utils"
)

// MembershipService drives the membership lifecycle:
//
//	PENDING -> ACTIVE | REJECTED
//	ACTIVE <-> SUSPENDED
//	ACTIVE | SUSPENDED -> REMOVED
//
// Every status change is a conditional update on the expected current
// status, so of two concurrent transitions on one row exactly one wins and
// the other reports InvalidState without writing.
type MembershipService struct {
	studyRepo  repository.StudyRepository
	memberRepo repository.MembershipRepository
	guard      *Guard
	notifier   *notify.Notifier
	auditor    *audit.Auditor
	log        *zap.Logger
}

// NewMembershipService creates a new MembershipService.
func NewMembershipService(
	studyRepo repository.StudyRepository,
	memberRepo repository.MembershipRepository,
	guard *Guard,
	notifier *notify.Notifier,
	auditor *audit.Auditor,
	log *zap.Logger,
) *MembershipService {
	return &MembershipService{
		studyRepo:  studyRepo,
		memberRepo: memberRepo,
		guard:      guard,
		notifier:   notifier,
		auditor:    auditor,
		log:        log.Named("membership"),
	}
}

// RequestJoin asks to join a PUBLIC study. PRIVATE studies are joined by
// invite code only and are reported as missing here.
func (s *MembershipService) RequestJoin(ctx context.Context, actor *models.User, studyID uint64, message string) (*models.StudyMember, error) {
	study, err := loadStudy(ctx, s.studyRepo, studyID)
	if err != nil {
		return nil, err
	}
	if study.IsPrivate() {
		return nil, ErrStudyNotFound
	}
	return s.requestJoin(ctx, actor, study, message)
}

// JoinByInviteCode asks to join the study the code belongs to.
func (s *MembershipService) JoinByInviteCode(ctx context.Context, actor *models.User, code, message string) (*models.StudyMember, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, invalidInput("Invite code is required")
	}
	study, err := s.studyRepo.FindByInviteCode(ctx, code)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidInviteCode
		}
		return nil, fmt.Errorf("failed to find study by invite code: %w", err)
	}
	return s.requestJoin(ctx, actor, study, message)
}

func (s *MembershipService) requestJoin(ctx context.Context, actor *models.User, study *models.Study, rawMessage string) (*models.StudyMember, error) {
	if actor == nil || !actor.IsActive() {
		return nil, apierrors.UnauthenticatedError("")
	}

	message := utils.SanitizePlainText(rawMessage)
	if len([]rune(message)) > constants.MaxJoinMessageLen {
		return nil, invalidInput(fmt.Sprintf("Message must be at most %d characters", constants.MaxJoinMessageLen))
	}

	existing, err := s.memberRepo.FindOpen(ctx, study.ID, actor.ID)
	switch {
	case err == nil:
		return nil, openMembershipConflict(existing)
	case !isNotFound(err):
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	if err := s.checkCapacity(ctx, study); err != nil {
		return nil, err
	}

	now := time.Now()
	member := &models.StudyMember{
		StudyID:  study.ID,
		UserID:   actor.ID,
		Role:     models.MemberRoleMember,
		Status:   models.MemberStatusPending,
		Message:  message,
		JoinedAt: now,
	}
	if study.AutoApprove {
		member.Status = models.MemberStatusActive
		member.ApprovedAt = &now
	}

	create := s.memberRepo.Create
	if member.Status == models.MemberStatusActive {
		create = s.memberRepo.CreateWithinCapacity
	}
	if err := create(ctx, member); err != nil {
		switch {
		case errors.Is(err, repository.ErrCapacityReached):
			return nil, ErrStudyFull
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrStudyNotFound
		case !errors.Is(err, gorm.ErrDuplicatedKey):
			return nil, fmt.Errorf("failed to create membership: %w", err)
		}
		// A concurrent request for the same pair won the open_key slot.
		if existing, findErr := s.memberRepo.FindOpen(ctx, study.ID, actor.ID); findErr == nil {
			return nil, openMembershipConflict(existing)
		}
		return nil, ErrConcurrentUpdate
	}

	text := fmt.Sprintf("%s requested to join %s", actor.DisplayName, study.Name)
	link := fmt.Sprintf("/studies/%d/join-requests", study.ID)
	if member.Status == models.MemberStatusActive {
		text = fmt.Sprintf("%s joined %s", actor.DisplayName, study.Name)
		link = fmt.Sprintf("/studies/%d/members", study.ID)
	}
	s.notifyManagers(ctx, study.ID, models.NotificationJoinRequest, text, link)

	s.log.Info("join requested",
		zap.Uint64("study_id", study.ID),
		zap.Uint64("user_id", actor.ID),
		zap.String("status", string(member.Status)))
	return member, nil
}

// Approve activates a PENDING request.
func (s *MembershipService) Approve(ctx context.Context, actor *models.User, membershipID uint64) (*models.StudyMember, error) {
	member, err := s.findMembership(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	decision, err := s.guard.Check(ctx, actor, authz.CapStudyManage, authz.Resource{Kind: authz.KindStudy, StudyID: member.StudyID})
	if err != nil {
		return nil, err
	}
	if member.Status != models.MemberStatusPending {
		return nil, apierrors.InvalidStateError(string(models.MemberStatusPending), string(member.Status))
	}

	study, err := loadStudy(ctx, s.studyRepo, member.StudyID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCapacity(ctx, study); err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.memberRepo.ActivateWithinCapacity(ctx, study.ID, member.ID, models.MemberStatusPending, map[string]interface{}{
		"approved_at": now,
	}); err != nil {
		return nil, s.activationFailed(ctx, member.ID, models.MemberStatusPending, err)
	}
	member.Status = models.MemberStatusActive
	member.ApprovedAt = &now

	s.notifier.Notify(ctx, member.UserID, models.NotificationJoinApproved,
		fmt.Sprintf("Your request to join %s was approved", study.Name),
		fmt.Sprintf("/studies/%d", study.ID))
	s.auditGlobal(ctx, actor, decision, models.ActionMembershipApprove, member.ID, "")

	return member, nil
}

// Reject declines a PENDING request. The request row is deleted, so the
// user may ask again later.
func (s *MembershipService) Reject(ctx context.Context, actor *models.User, membershipID uint64, reason string) error {
	member, err := s.findMembership(ctx, membershipID)
	if err != nil {
		return err
	}
	decision, err := s.guard.Check(ctx, actor, authz.CapStudyManage, authz.Resource{Kind: authz.KindStudy, StudyID: member.StudyID})
	if err != nil {
		return err
	}
	if member.Status != models.MemberStatusPending {
		return apierrors.InvalidStateError(string(models.MemberStatusPending), string(member.Status))
	}

	reason = utils.SanitizePlainText(reason)
	if err := s.memberRepo.DeletePending(ctx, member.ID); err != nil {
		return s.transitionFailed(ctx, member.ID, models.MemberStatusPending, err)
	}

	text := "Your join request was rejected"
	if study, err := s.studyRepo.FindByID(ctx, member.StudyID); err == nil {
		text = fmt.Sprintf("Your request to join %s was rejected", study.Name)
	}
	if reason != "" {
		text += ": " + reason
	}
	s.notifier.Notify(ctx, member.UserID, models.NotificationJoinRejected, text, "")
	s.auditGlobal(ctx, actor, decision, models.ActionMembershipReject, member.ID, reason)

	return nil
}

// ChangeRole promotes a member to ADMIN or demotes an ADMIN to MEMBER.
func (s *MembershipService) ChangeRole(ctx context.Context, actor *models.User, membershipID uint64, newRole models.MemberRole) (*models.StudyMember, error) {
	if newRole != models.MemberRoleAdmin && newRole != models.MemberRoleMember {
		return nil, ErrInvalidRole
	}

	member, err := s.findMembership(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	decision, err := s.guard.Check(ctx, actor, authz.CapStudyManage, authz.Resource{Kind: authz.KindStudy, StudyID: member.StudyID})
	if err != nil {
		return nil, err
	}
	if member.Role == models.MemberRoleOwner {
		return nil, ErrCannotModifyOwner
	}
	if member.Status != models.MemberStatusActive {
		return nil, apierrors.InvalidStateError(string(models.MemberStatusActive), string(member.Status))
	}
	if member.Role == newRole {
		return member, nil
	}

	if err := s.memberRepo.ChangeRole(ctx, member.ID, member.Role, newRole); err != nil {
		return nil, s.transitionFailed(ctx, member.ID, models.MemberStatusActive, err)
	}
	member.Role = newRole

	s.notifier.Notify(ctx, member.UserID, models.NotificationRoleChanged,
		fmt.Sprintf("Your role was changed to %s", newRole),
		fmt.Sprintf("/studies/%d", member.StudyID))
	s.auditGlobal(ctx, actor, decision, models.ActionMembershipRole, member.ID, string(newRole))

	return member, nil
}

// Remove ends an ACTIVE or SUSPENDED membership. Members may remove
// themselves, which is how a study is left.
func (s *MembershipService) Remove(ctx context.Context, actor *models.User, membershipID uint64) error {
	member, err := s.findMembership(ctx, membershipID)
	if err != nil {
		return err
	}
	decision, err := s.guard.Check(ctx, actor, authz.CapStudyManage, authz.Resource{
		Kind:    authz.KindMembership,
		StudyID: member.StudyID,
		OwnerID: member.UserID,
	})
	if err != nil {
		return err
	}
	if member.Role == models.MemberRoleOwner {
		return ErrCannotRemoveOwner
	}
	if member.Status != models.MemberStatusActive && member.Status != models.MemberStatusSuspended {
		return apierrors.InvalidStateError(string(models.MemberStatusActive), string(member.Status))
	}

	if err := s.memberRepo.Transition(ctx, member.ID, member.Status, models.MemberStatusRemoved, nil); err != nil {
		return s.transitionFailed(ctx, member.ID, member.Status, err)
	}

	if decision.Via != authz.ViaOwnership {
		s.notifier.Notify(ctx, member.UserID, models.NotificationMemberRemoved, "You were removed from a study", "")
	}
	s.auditGlobal(ctx, actor, decision, models.ActionMembershipRemove, member.ID, "")

	return nil
}

// Suspend blocks an ACTIVE member without ending the membership.
func (s *MembershipService) Suspend(ctx context.Context, actor *models.User, membershipID uint64, reason string) (*models.StudyMember, error) {
	member, decision, err := s.loadForModeration(ctx, actor, membershipID)
	if err != nil {
		return nil, err
	}
	if member.Status != models.MemberStatusActive {
		return nil, apierrors.InvalidStateError(string(models.MemberStatusActive), string(member.Status))
	}

	if err := s.memberRepo.Transition(ctx, member.ID, models.MemberStatusActive, models.MemberStatusSuspended, nil); err != nil {
		return nil, s.transitionFailed(ctx, member.ID, models.MemberStatusActive, err)
	}
	member.Status = models.MemberStatusSuspended

	reason = utils.SanitizePlainText(reason)
	s.notifier.Notify(ctx, member.UserID, models.NotificationMemberSuspended, "Your study membership was suspended", fmt.Sprintf("/studies/%d", member.StudyID))
	s.auditGlobal(ctx, actor, decision, models.ActionMembershipSuspend, member.ID, reason)

	return member, nil
}

// Reinstate returns a SUSPENDED member to ACTIVE if the study has room.
func (s *MembershipService) Reinstate(ctx context.Context, actor *models.User, membershipID uint64) (*models.StudyMember, error) {
	member, decision, err := s.loadForModeration(ctx, actor, membershipID)
	if err != nil {
		return nil, err
	}
	if member.Status != models.MemberStatusSuspended {
		return nil, apierrors.InvalidStateError(string(models.MemberStatusSuspended), string(member.Status))
	}

	study, err := loadStudy(ctx, s.studyRepo, member.StudyID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCapacity(ctx, study); err != nil {
		return nil, err
	}

	if err := s.memberRepo.ActivateWithinCapacity(ctx, study.ID, member.ID, models.MemberStatusSuspended, nil); err != nil {
		return nil, s.activationFailed(ctx, member.ID, models.MemberStatusSuspended, err)
	}
	member.Status = models.MemberStatusActive

	s.notifier.Notify(ctx, member.UserID, models.NotificationMemberReinstated,
		fmt.Sprintf("Your membership in %s was reinstated", study.Name),
		fmt.Sprintf("/studies/%d", study.ID))
	s.auditGlobal(ctx, actor, decision, models.ActionMembershipReinstate, member.ID, "")

	return member, nil
}

// ListJoinRequests lists a study's PENDING requests for its managers.
func (s *MembershipService) ListJoinRequests(ctx context.Context, actor *models.User, studyID uint64) ([]models.StudyMember, error) {
	return s.listByStatus(ctx, actor, studyID, authz.CapStudyManage, models.MemberStatusPending)
}

// ListMembers lists a study's ACTIVE members.
func (s *MembershipService) ListMembers(ctx context.Context, actor *models.User, studyID uint64) ([]models.StudyMember, error) {
	return s.listByStatus(ctx, actor, studyID, authz.CapView, models.MemberStatusActive)
}

// OpenMembership returns the open membership of a user in a study. It backs
// the internal membership check and performs no authorization of its own.
func (s *MembershipService) OpenMembership(ctx context.Context, studyID, userID uint64) (*models.StudyMember, error) {
	member, err := s.memberRepo.FindOpen(ctx, studyID, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}
	return member, nil
}

func (s *MembershipService) listByStatus(ctx context.Context, actor *models.User, studyID uint64, capability authz.Capability, status models.MemberStatus) ([]models.StudyMember, error) {
	if _, err := loadStudy(ctx, s.studyRepo, studyID); err != nil {
		return nil, err
	}
	if _, err := s.guard.Check(ctx, actor, capability, authz.Resource{Kind: authz.KindStudy, StudyID: studyID}); err != nil {
		return nil, err
	}

	members, err := s.memberRepo.ListByStudy(ctx, studyID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

func (s *MembershipService) loadForModeration(ctx context.Context, actor *models.User, membershipID uint64) (*models.StudyMember, authz.Decision, error) {
	member, err := s.findMembership(ctx, membershipID)
	if err != nil {
		return nil, authz.Decision{}, err
	}
	decision, err := s.guard.Check(ctx, actor, authz.CapStudyManage, authz.Resource{Kind: authz.KindStudy, StudyID: member.StudyID})
	if err != nil {
		return nil, authz.Decision{}, err
	}
	if member.Role == models.MemberRoleOwner {
		return nil, authz.Decision{}, ErrCannotModifyOwner
	}
	return member, decision, nil
}

func (s *MembershipService) checkCapacity(ctx context.Context, study *models.Study) error {
	if study.MaxMembers <= 0 {
		return nil
	}
	active, err := s.memberRepo.CountActive(ctx, study.ID)
	if err != nil {
		return fmt.Errorf("failed to count members: %w", err)
	}
	if !study.HasCapacity(active) {
		return ErrStudyFull
	}
	return nil
}

// transitionFailed turns a lost conditional update into InvalidState
// carrying the status the row actually has now.
func (s *MembershipService) transitionFailed(ctx context.Context, membershipID uint64, expected models.MemberStatus, err error) error {
	if !errors.Is(err, repository.ErrStaleTransition) {
		return fmt.Errorf("failed to update membership: %w", err)
	}

	current, findErr := s.memberRepo.FindByID(ctx, membershipID)
	if findErr != nil {
		if isNotFound(findErr) {
			// Rejected requests are deleted.
			return apierrors.InvalidStateError(string(expected), string(models.MemberStatusRejected))
		}
		return fmt.Errorf("failed to reload membership: %w", findErr)
	}
	if current.Status == expected {
		return ErrConcurrentUpdate
	}
	return apierrors.InvalidStateError(string(expected), string(current.Status))
}

func (s *MembershipService) activationFailed(ctx context.Context, membershipID uint64, expected models.MemberStatus, err error) error {
	switch {
	case errors.Is(err, repository.ErrCapacityReached):
		return ErrStudyFull
	case isNotFound(err):
		return ErrStudyNotFound
	}
	return s.transitionFailed(ctx, membershipID, expected, err)
}

func (s *MembershipService) auditGlobal(ctx context.Context, actor *models.User, decision authz.Decision, action string, membershipID uint64, reason string) {
	recordGlobal(ctx, s.auditor, actor, decision, audit.Entry{
		Action:     action,
		TargetType: models.TargetMembership,
		TargetID:   membershipID,
		Reason:     reason,
	})
}

func (s *MembershipService) notifyManagers(ctx context.Context, studyID uint64, typ models.NotificationType, message, link string) {
	managers, err := s.memberRepo.ListManagers(ctx, studyID)
	if err != nil {
		s.log.Warn("failed to load study managers", zap.Uint64("study_id", studyID), zap.Error(err))
		return
	}

	recipients := make([]uint64, 0, len(managers))
	for _, m := range managers {
		recipients = append(recipients, m.UserID)
	}
	s.notifier.NotifyMany(ctx, recipients, typ, message, link)
}

func (s *MembershipService) findMembership(ctx context.Context, id uint64) (*models.StudyMember, error) {
	member, err := s.memberRepo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}
	return member, nil
}

func openMembershipConflict(existing *models.StudyMember) error {
	if existing.Status == models.MemberStatusPending {
		return ErrAlreadyRequested
	}
	return ErrAlreadyMember
}
