package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/smm-panel/internal/model"
	"github.com/richardliu001/smm-panel/internal/provider"
	"github.com/richardliu001/smm-panel/internal/repo"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type AdjustRequest struct {
	// Delta is signed; negative values debit the user.
	Delta decimal.Decimal
	Note  string
}

// AdminStats is the admin dashboard.
type AdminStats struct {
	TotalClients     int64           `json:"total_clients"`
	PendingDeposits  int64           `json:"pending_deposits"`
	TotalOrders      int64           `json:"total_orders"`
	ApprovedDeposits decimal.Decimal `json:"approved_deposits"`
	TotalCommissions decimal.Decimal `json:"total_commissions"`
}

// ReviewerStats is the reviewer's own workload for the current UTC day.
type ReviewerStats struct {
	PendingDeposits int64 `json:"pending_deposits"`
	ApprovedToday   int64 `json:"approved_today"`
	RejectedToday   int64 `json:"rejected_today"`
}

// AdjustBalance applies a signed manual correction. The resulting balance may
// not drop below zero.
func (s *PanelService) AdjustBalance(ctx context.Context, actor Actor, userID uuid.UUID, req AdjustRequest) (*model.User, error) {
	if actor.Role != model.RoleAdmin {
		return nil, ErrForbidden
	}
	if req.Delta.IsZero() {
		return nil, validationf("amount must not be zero")
	}
	if err := checkAmount(req.Delta.Abs(), "amount"); err != nil {
		return nil, err
	}
	dir := model.Credit
	if req.Delta.IsNegative() {
		dir = model.Debit
	}
	desc := "Manual balance adjustment by admin"
	if note := strings.TrimSpace(req.Note); note != "" {
		desc += ": " + note
	}

	err := s.mutate(ctx, userID, func(tx *gorm.DB, touched map[uuid.UUID]bool) error {
		before, after, err := s.repo.AdjustBalance(ctx, tx, userID, req.Delta)
		if err != nil {
			return err
		}
		touched[userID] = true
		if err := s.repo.CreateTransactions(ctx, tx, &model.Transaction{
			UserID:        userID,
			Type:          model.TxManualAdjustment,
			Direction:     dir,
			Amount:        req.Delta.Abs(),
			BalanceBefore: before,
			BalanceAfter:  after,
			Status:        model.TxCompleted,
			Description:   desc,
		}); err != nil {
			return err
		}
		verb := "credited"
		if dir == model.Debit {
			verb = "debited"
		}
		if err := s.notify(ctx, tx, &model.Notification{
			UserID:  userID,
			Type:    model.NotifyAdmin,
			Title:   "Balance Updated",
			Message: fmt.Sprintf("An administrator %s %s to your balance", verb, usd(req.Delta.Abs())),
			Data:    model.JSON(map[string]interface{}{"delta": req.Delta.String(), "balance": after.String()}),
		}); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor, model.ActionAdjustBalance, userID, "user", map[string]interface{}{
			"delta": req.Delta.String(), "before": before.String(), "after": after.String(), "note": req.Note,
		})
	})
	if err != nil {
		return nil, s.fail("adjust balance", err)
	}
	s.log.Infow("balance adjusted", "user_id", userID, "admin_id", actor.UserID, "delta", req.Delta)
	return s.Profile(ctx, userID)
}

// SetSuspension suspends or reactivates a user. Admins cannot suspend themselves.
func (s *PanelService) SetSuspension(ctx context.Context, actor Actor, userID uuid.UUID, suspend bool) (*model.User, error) {
	if actor.Role != model.RoleAdmin {
		return nil, ErrForbidden
	}
	if userID == actor.UserID {
		return nil, validationf("cannot change your own status")
	}
	from, to, action := model.UserSuspended, model.UserActive, model.ActionActivateUser
	if suspend {
		from, to, action = model.UserActive, model.UserSuspended, model.ActionSuspendUser
	}

	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := s.repo.GetUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if u.IsSystem {
			return ErrNotFound
		}
		if u.Status != from {
			return fmt.Errorf("%w: user is %s", ErrInvalidState, u.Status)
		}
		if err := s.repo.UpdateUserStatus(ctx, tx, userID, from, to); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor, action, userID, "user", map[string]interface{}{
			"from": from, "to": to,
		})
	})
	if err != nil {
		return nil, s.fail("set suspension", err)
	}
	s.log.Infow("user status changed", "user_id", userID, "admin_id", actor.UserID, "status", to)
	return s.Profile(ctx, userID)
}

func (s *PanelService) ListUsers(ctx context.Context, actor Actor, role model.Role, status model.UserStatus) ([]model.User, error) {
	if actor.Role != model.RoleAdmin {
		return nil, ErrForbidden
	}
	users, err := s.repo.ListUsers(ctx, nil, repo.UserFilter{Role: role, Status: status})
	if err != nil {
		return nil, s.fail("list users", err)
	}
	return users, nil
}

// AdminStats aggregates the dashboard counters concurrently.
func (s *PanelService) AdminStats(ctx context.Context, actor Actor) (*AdminStats, error) {
	if actor.Role != model.RoleAdmin {
		return nil, ErrForbidden
	}
	var out AdminStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.TotalClients, err = s.repo.CountUsers(gctx, nil, repo.UserFilter{Role: model.RoleClient})
		return err
	})
	g.Go(func() (err error) {
		out.PendingDeposits, err = s.repo.CountDeposits(gctx, nil, repo.DepositFilter{Status: model.DepositPending})
		return err
	})
	g.Go(func() (err error) {
		out.TotalOrders, err = s.repo.CountOrders(gctx, nil, nil)
		return err
	})
	g.Go(func() (err error) {
		out.ApprovedDeposits, err = s.repo.SumDeposits(gctx, nil, repo.DepositFilter{Status: model.DepositApproved})
		return err
	})
	g.Go(func() (err error) {
		out.TotalCommissions, err = s.repo.SumTransactions(gctx, nil, repo.LedgerFilter{
			Type: model.TxCommission, Direction: model.Debit, Status: model.TxCompleted,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, s.fail("admin stats", err)
	}
	return &out, nil
}

func (s *PanelService) ReviewerStats(ctx context.Context, actor Actor) (*ReviewerStats, error) {
	if !actor.Role.IsStaff() {
		return nil, ErrForbidden
	}
	today := s.now().UTC().Truncate(24 * time.Hour)
	var out ReviewerStats
	var err error
	if out.PendingDeposits, err = s.repo.CountDeposits(ctx, nil, repo.DepositFilter{Status: model.DepositPending}); err != nil {
		return nil, s.fail("reviewer stats", err)
	}
	if out.ApprovedToday, err = s.repo.CountDeposits(ctx, nil, repo.DepositFilter{
		Status: model.DepositApproved, ReviewedBy: &actor.UserID, ReviewedFrom: &today,
	}); err != nil {
		return nil, s.fail("reviewer stats", err)
	}
	if out.RejectedToday, err = s.repo.CountDeposits(ctx, nil, repo.DepositFilter{
		Status: model.DepositRejected, ReviewedBy: &actor.UserID, ReviewedFrom: &today,
	}); err != nil {
		return nil, s.fail("reviewer stats", err)
	}
	return &out, nil
}

func (s *PanelService) ListAdminLogs(ctx context.Context, actor Actor, limit int) ([]model.AdminLog, error) {
	if actor.Role != model.RoleAdmin {
		return nil, ErrForbidden
	}
	logs, err := s.repo.ListAdminLogs(ctx, nil, clampLimit(limit, 100, 500))
	if err != nil {
		return nil, s.fail("list admin logs", err)
	}
	return logs, nil
}

// ProviderBalance reports the reseller's funds at the provider.
func (s *PanelService) ProviderBalance(ctx context.Context, actor Actor) (*provider.Balance, error) {
	if actor.Role != model.RoleAdmin {
		return nil, ErrForbidden
	}
	b, err := s.provider.Balance(ctx)
	if err != nil {
		return nil, s.fail("provider balance", &ProviderError{Message: "provider is unavailable", Err: err})
	}
	return b, nil
}

// ProviderServices lists the provider's raw catalog, used to maintain the local one.
func (s *PanelService) ProviderServices(ctx context.Context, actor Actor) ([]provider.Service, error) {
	if actor.Role != model.RoleAdmin {
		return nil, ErrForbidden
	}
	svcs, err := s.provider.Services(ctx)
	if err != nil {
		return nil, s.fail("provider services", &ProviderError{Message: "provider is unavailable", Err: err})
	}
	return svcs, nil
}
