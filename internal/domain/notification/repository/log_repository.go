package repository

import (
	"context"
	"time"

	"nextspay/internal/domain/notification/model"

	"gorm.io/gorm"
)

type LogRepository interface {
	Create(ctx context.Context, log *model.NotificationLog) error
	ListSince(ctx context.Context, since time.Time) ([]model.NotificationLog, error)
	Recent(ctx context.Context, limit int) ([]model.NotificationLog, error)
}

type logRepository struct {
	db *gorm.DB
}

func NewLogRepository(db *gorm.DB) LogRepository {
	return &logRepository{db: db}
}

func (r *logRepository) Create(ctx context.Context, log *model.NotificationLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *logRepository) ListSince(ctx context.Context, since time.Time) ([]model.NotificationLog, error) {
	var logs []model.NotificationLog
	err := r.db.WithContext(ctx).
		Select("id", "type", "reference", "results", "created_at").
		Where("created_at >= ?", since).
		Order("id ASC").
		Find(&logs).Error
	return logs, err
}

func (r *logRepository) Recent(ctx context.Context, limit int) ([]model.NotificationLog, error) {
	var logs []model.NotificationLog
	err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
