package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/coup-study/coup-api/internal/database"
	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/utils"
)

// GormFileRepository is a GORM implementation of FileRepository
type GormFileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) FileRepository {
	return &GormFileRepository{db: db}
}

func (r *GormFileRepository) Create(ctx context.Context, file *models.File) error {
	return r.db.WithContext(ctx).Create(file).Error
}

func (r *GormFileRepository) FindByID(ctx context.Context, id uint64) (*models.File, error) {
	var file models.File
	if err := r.db.WithContext(ctx).First(&file, id).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *GormFileRepository) ListByStudy(ctx context.Context, studyID uint64, page utils.PaginationParams) ([]models.File, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.File{}).Where("study_id = ?", studyID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var files []models.File
	if err := query.Scopes(database.Newest, database.Paginate(page)).Preload("Uploader").Find(&files).Error; err != nil {
		return nil, 0, err
	}
	return files, total, nil
}

func (r *GormFileRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&models.File{}, id).Error
}

// GormMessageRepository is a GORM implementation of MessageRepository
type GormMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *GormMessageRepository) ListByStudy(ctx context.Context, studyID uint64, page utils.PaginationParams) ([]models.Message, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Message{}).Where("study_id = ?", studyID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var messages []models.Message
	if err := query.Scopes(database.Newest, database.Paginate(page)).Preload("Sender").Find(&messages).Error; err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}
