package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/coup-study/coup-api/internal/constants"
	"github.com/coup-study/coup-api/internal/database"
	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/utils"
)

// GormReportRepository is a GORM implementation of ReportRepository
type GormReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) ReportRepository {
	return &GormReportRepository{db: db}
}

func (r *GormReportRepository) Create(ctx context.Context, report *models.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *GormReportRepository) FindByID(ctx context.Context, id uint64) (*models.Report, error) {
	var report models.Report
	if err := r.db.WithContext(ctx).First(&report, id).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *GormReportRepository) List(ctx context.Context, status *models.ReportStatus, page utils.PaginationParams) ([]models.Report, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Report{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reports []models.Report
	if err := query.Scopes(database.Newest, database.Paginate(page)).Find(&reports).Error; err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

func (r *GormReportRepository) Close(ctx context.Context, id uint64, status models.ReportStatus, adminID uint64, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Report{}).
		Where("id = ? AND status = ?", id, models.ReportStatusPending).
		Updates(map[string]interface{}{
			"status":      status,
			"resolved_by": adminID,
			"resolved_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

// GormAdminLogRepository is a GORM implementation of AdminLogRepository.
// It has no update or delete methods.
type GormAdminLogRepository struct {
	db *gorm.DB
}

func NewAdminLogRepository(db *gorm.DB) AdminLogRepository {
	return &GormAdminLogRepository{db: db}
}

func (r *GormAdminLogRepository) Append(ctx context.Context, entry *models.AdminLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *GormAdminLogRepository) Recent(ctx context.Context, filter AdminLogFilter) ([]models.AdminLog, error) {
	limit := filter.Limit
	if limit <= 0 || limit > constants.MaxAdminLogPageSize {
		limit = constants.DefaultPageSize
	}

	query := r.db.WithContext(ctx).Model(&models.AdminLog{})
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.TargetType != "" {
		query = query.Where("target_type = ?", filter.TargetType)
	}
	if filter.AdminID != nil {
		query = query.Where("admin_id = ?", *filter.AdminID)
	}

	var entries []models.AdminLog
	if err := query.Scopes(database.Newest).Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
