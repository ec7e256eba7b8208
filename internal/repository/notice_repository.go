package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/coup-study/coup-api/internal/database"
	"github.com/coup-study/coup-api/internal/models"
)

// GormNoticeRepository is a GORM implementation of NoticeRepository
type GormNoticeRepository struct {
	db *gorm.DB
}

// NewNoticeRepository creates a new NoticeRepository
func NewNoticeRepository(db *gorm.DB) NoticeRepository {
	return &GormNoticeRepository{db: db}
}

// Create creates a new notice
func (r *GormNoticeRepository) Create(ctx context.Context, notice *models.Notice) error {
	return r.db.WithContext(ctx).Create(notice).Error
}

// FindByID finds a notice by ID with optional preloading
func (r *GormNoticeRepository) FindByID(ctx context.Context, id uint64, preload ...string) (*models.Notice, error) {
	var notice models.Notice
	query := r.db.WithContext(ctx)

	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&notice, id).Error; err != nil {
		return nil, err
	}
	return &notice, nil
}

// List retrieves notices, pinned first and then newest first
func (r *GormNoticeRepository) List(ctx context.Context, filter NoticeFilter) ([]models.Notice, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Notice{}).Where("notices.study_id = ?", filter.StudyID)

	if filter.PinnedOnly {
		query = query.Where("notices.is_pinned = ?", true)
	}
	if filter.AuthorID != nil {
		query = query.Where("notices.author_id = ?", *filter.AuthorID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notices []models.Notice
	if err := query.Order("notices.is_pinned DESC").
		Scopes(database.Newest, database.Paginate(filter.Page)).
		Preload("Author").
		Find(&notices).Error; err != nil {
		return nil, 0, err
	}
	return notices, total, nil
}

// SetPinned pins or unpins a notice
func (r *GormNoticeRepository) SetPinned(ctx context.Context, id uint64, pinned bool) error {
	result := r.db.WithContext(ctx).Model(&models.Notice{}).Where("id = ?", id).Update("is_pinned", pinned)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete soft deletes a notice
func (r *GormNoticeRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&models.Notice{}, id).Error
}
