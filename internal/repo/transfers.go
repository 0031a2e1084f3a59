package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/richardliu001/smm-panel/internal/model"
	"gorm.io/gorm"
)

func (r *Repository) CreateTransfer(ctx context.Context, tx *gorm.DB, t *model.Transfer) error {
	return r.conn(ctx, tx).Create(t).Error
}

// ListTransfers returns transfers where the user is sender or receiver.
func (r *Repository) ListTransfers(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]model.Transfer, error) {
	var ts []model.Transfer
	err := r.conn(ctx, tx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at desc").
		Limit(limit).
		Find(&ts).Error
	return ts, err
}
