package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/richardliu001/smm-panel/internal/model"
	"gorm.io/gorm"
)

func (r *Repository) CreateOrder(ctx context.Context, tx *gorm.DB, o *model.Order) error {
	return r.conn(ctx, tx).Create(o).Error
}

func (r *Repository) GetOrder(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Order, error) {
	var o model.Order
	if err := r.conn(ctx, tx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repository) ListOrders(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]model.Order, error) {
	var orders []model.Order
	err := r.conn(ctx, tx).Where("user_id = ?", userID).Order("created_at desc").Limit(limit).Find(&orders).Error
	return orders, err
}

// ListOrdersByStatus returns the oldest orders in status first.
func (r *Repository) ListOrdersByStatus(ctx context.Context, tx *gorm.DB, status model.OrderStatus, limit int) ([]model.Order, error) {
	var orders []model.Order
	err := r.conn(ctx, tx).Where("status = ?", status).Order("created_at asc").Limit(limit).Find(&orders).Error
	return orders, err
}

func (r *Repository) CountOrders(ctx context.Context, tx *gorm.DB, userID *uuid.UUID) (int64, error) {
	q := r.conn(ctx, tx).Model(&model.Order{})
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// TransitionOrder applies fields only while the order is still in status from.
func (r *Repository) TransitionOrder(ctx context.Context, tx *gorm.DB, id uuid.UUID, from model.OrderStatus, fields map[string]interface{}) error {
	res := r.conn(ctx, tx).Model(&model.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStateConflict
	}
	return nil
}
