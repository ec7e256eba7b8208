package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coup-study/coup-api/internal/models"
)

// GormMembershipRepository is a GORM implementation of MembershipRepository
type GormMembershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository creates a new MembershipRepository
func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &GormMembershipRepository{db: db}
}

// Create inserts a membership, setting open_key for open statuses
func (r *GormMembershipRepository) Create(ctx context.Context, member *models.StudyMember) error {
	if member.Status.IsOpen() {
		member.OpenKey = models.OpenKeyFor(member.StudyID, member.UserID)
	} else {
		member.OpenKey = nil
	}
	return r.db.WithContext(ctx).Create(member).Error
}

// FindByID finds a membership by ID
func (r *GormMembershipRepository) FindByID(ctx context.Context, id uint64) (*models.StudyMember, error) {
	var member models.StudyMember
	if err := r.db.WithContext(ctx).First(&member, id).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// FindOpen finds the open membership for a (study, user) pair
func (r *GormMembershipRepository) FindOpen(ctx context.Context, studyID, userID uint64) (*models.StudyMember, error) {
	var member models.StudyMember
	if err := r.db.WithContext(ctx).
		Where("open_key = ?", *models.OpenKeyFor(studyID, userID)).
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// CountActive counts ACTIVE memberships of a study
func (r *GormMembershipRepository) CountActive(ctx context.Context, studyID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.StudyMember{}).
		Where("study_id = ? AND status = ?", studyID, models.MemberStatusActive).
		Count(&count).Error
	return count, err
}

// ListByStudy lists memberships of a study in a status
func (r *GormMembershipRepository) ListByStudy(ctx context.Context, studyID uint64, status models.MemberStatus) ([]models.StudyMember, error) {
	var members []models.StudyMember
	if err := r.db.WithContext(ctx).Preload("User").
		Where("study_id = ? AND status = ?", studyID, status).
		Order("joined_at ASC").Order("id ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// ListManagers lists ACTIVE OWNER and ADMIN memberships
func (r *GormMembershipRepository) ListManagers(ctx context.Context, studyID uint64) ([]models.StudyMember, error) {
	var members []models.StudyMember
	if err := r.db.WithContext(ctx).
		Where("study_id = ? AND status = ? AND role IN ?", studyID, models.MemberStatusActive,
			[]models.MemberRole{models.MemberRoleOwner, models.MemberRoleAdmin}).
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// ListByUser lists all open memberships of a user
func (r *GormMembershipRepository) ListByUser(ctx context.Context, userID uint64) ([]models.StudyMember, error) {
	var memberships []models.StudyMember
	if err := r.db.WithContext(ctx).Preload("Study").
		Where("user_id = ? AND open_key IS NOT NULL", userID).
		Order("joined_at DESC").
		Find(&memberships).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}

// Transition updates status only when the row is still in `from`.
// Leaving the open statuses releases the open_key slot.
func (r *GormMembershipRepository) Transition(ctx context.Context, id uint64, from, to models.MemberStatus, extra map[string]interface{}) error {
	return transition(r.db.WithContext(ctx), id, from, to, extra)
}

// ActivateWithinCapacity moves a membership from `from` to ACTIVE while the
// study row is locked, and rolls back if the study would exceed MaxMembers.
func (r *GormMembershipRepository) ActivateWithinCapacity(ctx context.Context, studyID, id uint64, from models.MemberStatus, extra map[string]interface{}) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		study, err := lockStudy(tx, studyID)
		if err != nil {
			return err
		}
		if err := transition(tx, id, from, models.MemberStatusActive, extra); err != nil {
			return err
		}
		return checkCapacity(tx, study, 0)
	})
}

// CreateWithinCapacity inserts an ACTIVE membership while the study row is
// locked, failing with ErrCapacityReached when the study is full.
func (r *GormMembershipRepository) CreateWithinCapacity(ctx context.Context, member *models.StudyMember) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		study, err := lockStudy(tx, member.StudyID)
		if err != nil {
			return err
		}
		if err := checkCapacity(tx, study, 1); err != nil {
			return err
		}
		member.OpenKey = models.OpenKeyFor(member.StudyID, member.UserID)
		return tx.Create(member).Error
	})
}

// lockStudy serializes capacity-sensitive writes per study. SQLite has no
// row locks and serializes writers itself.
func lockStudy(tx *gorm.DB, studyID uint64) (*models.Study, error) {
	var study models.Study
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "max_members").
		First(&study, studyID).Error; err != nil {
		return nil, err
	}
	return &study, nil
}

// checkCapacity fails when the ACTIVE count plus adding would pass MaxMembers.
func checkCapacity(tx *gorm.DB, study *models.Study, adding int64) error {
	if study.MaxMembers <= 0 {
		return nil
	}
	var active int64
	if err := tx.Model(&models.StudyMember{}).
		Where("study_id = ? AND status = ?", study.ID, models.MemberStatusActive).
		Count(&active).Error; err != nil {
		return err
	}
	if active+adding > int64(study.MaxMembers) {
		return ErrCapacityReached
	}
	return nil
}

func transition(db *gorm.DB, id uint64, from, to models.MemberStatus, extra map[string]interface{}) error {
	updates := map[string]interface{}{"status": to}
	if !to.IsOpen() {
		updates["open_key"] = nil
	}
	for column, value := range extra {
		updates[column] = value
	}

	result := db.Model(&models.StudyMember{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

// ChangeRole updates the role of an ACTIVE membership that still holds fromRole
func (r *GormMembershipRepository) ChangeRole(ctx context.Context, id uint64, fromRole, toRole models.MemberRole) error {
	result := r.db.WithContext(ctx).Model(&models.StudyMember{}).
		Where("id = ? AND status = ? AND role = ?", id, models.MemberStatusActive, fromRole).
		Update("role", toRole)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

// DeletePending deletes a membership that is still PENDING
func (r *GormMembershipRepository) DeletePending(ctx context.Context, id uint64) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, models.MemberStatusPending).
		Delete(&models.StudyMember{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}
