package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coup-study/coup-api/internal/database"
	"github.com/coup-study/coup-api/internal/models"
)

var (
	// ErrCreateStudy is returned when creating the study fails inside the create transaction.
	ErrCreateStudy = errors.New("study repository: create study failed")
	// ErrCreateOwnerMembership is returned when creating the owner membership fails inside the create transaction.
	ErrCreateOwnerMembership = errors.New("study repository: create owner membership failed")
)

// GormStudyRepository is a GORM implementation of StudyRepository
type GormStudyRepository struct {
	db *gorm.DB
}

// NewStudyRepository creates a new StudyRepository
func NewStudyRepository(db *gorm.DB) StudyRepository {
	return &GormStudyRepository{db: db}
}

// CreateWithOwner creates a study and the owner's membership atomically.
func (r *GormStudyRepository) CreateWithOwner(ctx context.Context, study *models.Study, owner *models.StudyMember) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(study).Error; err != nil {
			return fmt.Errorf("%w: %w", ErrCreateStudy, err)
		}

		owner.StudyID = study.ID
		owner.UserID = study.OwnerID
		owner.OpenKey = models.OpenKeyFor(study.ID, study.OwnerID)

		if err := tx.Create(owner).Error; err != nil {
			return fmt.Errorf("%w: %w", ErrCreateOwnerMembership, err)
		}

		return nil
	})
}

// FindByID finds a study by ID
func (r *GormStudyRepository) FindByID(ctx context.Context, id uint64) (*models.Study, error) {
	var study models.Study
	if err := r.db.WithContext(ctx).First(&study, id).Error; err != nil {
		return nil, err
	}
	return &study, nil
}

// FindByInviteCode finds a study by invite code
func (r *GormStudyRepository) FindByInviteCode(ctx context.Context, code string) (*models.Study, error) {
	var study models.Study
	if err := r.db.WithContext(ctx).Where("invite_code = ?", code).First(&study).Error; err != nil {
		return nil, err
	}
	return &study, nil
}

// Update updates a study
func (r *GormStudyRepository) Update(ctx context.Context, study *models.Study) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(study).Error
}

// Delete soft deletes a study and closes every open membership in a transaction
func (r *GormStudyRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.Study{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return tx.Model(&models.StudyMember{}).
			Where("study_id = ? AND open_key IS NOT NULL", id).
			Updates(map[string]interface{}{
				"status":   models.MemberStatusRemoved,
				"open_key": nil,
			}).Error
	})
}

// List retrieves studies with filtering and pagination
func (r *GormStudyRepository) List(ctx context.Context, filter StudyFilter) ([]models.Study, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Study{})

	if filter.Visibility != nil {
		query = query.Where("visibility = ?", *filter.Visibility)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var studies []models.Study
	if err := query.Scopes(database.Newest, database.Paginate(filter.Page)).Find(&studies).Error; err != nil {
		return nil, 0, err
	}
	return studies, total, nil
}
