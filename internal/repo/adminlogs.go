package repo

import (
	"context"

	"github.com/richardliu001/smm-panel/internal/model"
	"gorm.io/gorm"
)

func (r *Repository) CreateAdminLog(ctx context.Context, tx *gorm.DB, l *model.AdminLog) error {
	return r.conn(ctx, tx).Create(l).Error
}

func (r *Repository) ListAdminLogs(ctx context.Context, tx *gorm.DB, limit int) ([]model.AdminLog, error) {
	var ls []model.AdminLog
	err := r.conn(ctx, tx).Order("created_at desc").Limit(limit).Find(&ls).Error
	return ls, err
}
