package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/richardliu001/smm-panel/internal/model"
	"gorm.io/gorm"
)

func (r *Repository) CreateNotifications(ctx context.Context, tx *gorm.DB, rows ...*model.Notification) error {
	if len(rows) == 0 {
		return nil
	}
	return r.conn(ctx, tx).Create(rows).Error
}

func (r *Repository) ListNotifications(ctx context.Context, tx *gorm.DB, userID uuid.UUID, unreadOnly bool, limit int) ([]model.Notification, error) {
	q := r.conn(ctx, tx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	var ns []model.Notification
	err := q.Order("created_at desc").Limit(limit).Find(&ns).Error
	return ns, err
}

func (r *Repository) CountUnread(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.conn(ctx, tx).Model(&model.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).Count(&n).Error
	return n, err
}

// MarkNotificationRead only touches rows owned by userID; anything else is
// reported as gorm.ErrRecordNotFound.
func (r *Repository) MarkNotificationRead(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) error {
	res := r.conn(ctx, tx).Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := r.conn(ctx, tx).Model(&model.Notification{}).
			Where("id = ? AND user_id = ?", id, userID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

func (r *Repository) MarkAllNotificationsRead(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	res := r.conn(ctx, tx).Model(&model.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true)
	return res.RowsAffected, res.Error
}
