package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/smm-panel/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateUser inserts an account. Balance always starts at zero.
func (r *Repository) CreateUser(ctx context.Context, tx *gorm.DB, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Balance = decimal.Zero
	u.Version = 0
	if err := r.conn(ctx, tx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		return err
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.User, error) {
	var u model.User
	if err := r.conn(ctx, tx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail matches the normalised email exactly.
func (r *Repository) GetUserByEmail(ctx context.Context, tx *gorm.DB, email string) (*model.User, error) {
	var u model.User
	if err := r.conn(ctx, tx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) UserExists(ctx context.Context, tx *gorm.DB, email string, phone *string) (bool, error) {
	q := r.conn(ctx, tx).Model(&model.User{}).Where("email = ?", strings.ToLower(strings.TrimSpace(email)))
	if phone != nil && *phone != "" {
		q = q.Or("phone = ?", *phone)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repository) ListUsers(ctx context.Context, tx *gorm.DB, f UserFilter) ([]model.User, error) {
	var users []model.User
	err := userQuery(r.conn(ctx, tx), f).Order("created_at desc").Find(&users).Error
	return users, err
}

// ListStaffIDs returns every active admin and subadmin, excluding system accounts.
func (r *Repository) ListStaffIDs(ctx context.Context, tx *gorm.DB) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.conn(ctx, tx).Model(&model.User{}).
		Where("role IN ? AND status = ? AND is_system = ?",
			[]model.Role{model.RoleAdmin, model.RoleSubadmin}, model.UserActive, false).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *Repository) CountUsers(ctx context.Context, tx *gorm.DB, f UserFilter) (int64, error) {
	var n int64
	err := userQuery(r.conn(ctx, tx).Model(&model.User{}), f).Count(&n).Error
	return n, err
}

// UpdateUserStatus moves an account between statuses, guarded on the current one.
func (r *Repository) UpdateUserStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to model.UserStatus) error {
	res := r.conn(ctx, tx).Model(&model.User{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStateConflict
	}
	return nil
}

func (r *Repository) RecordLoginFailure(ctx context.Context, tx *gorm.DB, id uuid.UUID, attempts int, lockedUntil *time.Time) error {
	return r.conn(ctx, tx).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"failed_login_attempts": attempts, "locked_until": lockedUntil}).Error
}

func (r *Repository) ResetLoginFailures(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return r.conn(ctx, tx).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"failed_login_attempts": 0, "locked_until": nil}).Error
}

func userQuery(q *gorm.DB, f UserFilter) *gorm.DB {
	q = q.Where("is_system = ?", false)
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}
