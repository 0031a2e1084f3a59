package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/richardliu001/smm-panel/internal/model"
	"github.com/richardliu001/smm-panel/internal/repo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DepositRequest struct {
	Amount   decimal.Decimal
	ProofURL string
}

// RequestDeposit records a pending deposit and alerts every active staff member.
func (s *PanelService) RequestDeposit(ctx context.Context, userID uuid.UUID, req DepositRequest) (*model.Deposit, error) {
	if err := checkAmount(req.Amount, "amount"); err != nil {
		return nil, err
	}
	if req.Amount.LessThan(s.opts.MinDeposit) {
		return nil, validationf("minimum deposit amount is %s", usd(s.opts.MinDeposit))
	}
	d := &model.Deposit{UserID: userID, Amount: req.Amount, Status: model.DepositPending}
	if p := strings.TrimSpace(req.ProofURL); p != "" {
		d.ProofURL = &p
	}

	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.repo.GetUser(ctx, tx, userID); err != nil {
			return err
		}
		if err := s.repo.CreateDeposit(ctx, tx, d); err != nil {
			return err
		}
		staff, err := s.repo.ListStaffIDs(ctx, tx)
		if err != nil {
			return err
		}
		if len(staff) == 0 {
			return nil
		}
		data := model.JSON(map[string]interface{}{
			"deposit_id": d.ID, "user_id": userID, "amount": req.Amount.String(),
		})
		rows := make([]*model.Notification, 0, len(staff))
		for _, id := range staff {
			rows = append(rows, &model.Notification{
				UserID:  id,
				Type:    model.NotifyDeposit,
				Title:   "New Deposit Request",
				Message: fmt.Sprintf("A user has requested a deposit of %s", usd(req.Amount)),
				Data:    data,
			})
		}
		return s.notify(ctx, tx, rows...)
	})
	if err != nil {
		return nil, s.fail("request deposit", err)
	}
	s.log.Infow("deposit requested", "deposit_id", d.ID, "user_id", userID, "amount", req.Amount)
	return d, nil
}

// ApproveDeposit moves a pending deposit to approved and credits the owner.
// Only one of two racing reviews can win the guarded status update.
func (s *PanelService) ApproveDeposit(ctx context.Context, actor Actor, depositID uuid.UUID) (*model.Deposit, error) {
	if !actor.Role.IsStaff() {
		return nil, ErrForbidden
	}
	d, err := s.repo.GetDeposit(ctx, nil, depositID)
	if err != nil {
		return nil, s.fail("approve deposit", err)
	}
	if d.Status != model.DepositPending {
		return nil, fmt.Errorf("%w: deposit is already %s", ErrInvalidState, d.Status)
	}

	err = s.mutate(ctx, d.UserID, func(tx *gorm.DB, touched map[uuid.UUID]bool) error {
		if err := s.repo.ReviewDeposit(ctx, tx, d.ID, model.DepositApproved, actor.UserID, nil); err != nil {
			return err
		}
		before, after, err := s.repo.AdjustBalance(ctx, tx, d.UserID, d.Amount)
		if err != nil {
			return err
		}
		touched[d.UserID] = true
		if err := s.repo.CreateTransactions(ctx, tx, &model.Transaction{
			UserID:        d.UserID,
			Type:          model.TxDeposit,
			Direction:     model.Credit,
			Amount:        d.Amount,
			BalanceBefore: before,
			BalanceAfter:  after,
			Status:        model.TxCompleted,
			Description:   "Deposit approved",
			ReferenceID:   &d.ID,
		}); err != nil {
			return err
		}
		if err := s.notify(ctx, tx, &model.Notification{
			UserID:  d.UserID,
			Type:    model.NotifyDeposit,
			Title:   "Deposit Approved",
			Message: fmt.Sprintf("Your deposit of %s has been approved", usd(d.Amount)),
			Data:    model.JSON(map[string]interface{}{"deposit_id": d.ID, "amount": d.Amount.String()}),
		}); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor, model.ActionApproveDeposit, d.UserID, "deposit", map[string]interface{}{
			"deposit_id": d.ID, "amount": d.Amount.String(),
		})
	})
	if err != nil {
		return nil, s.fail("approve deposit", reviewErr(err))
	}
	s.log.Infow("deposit approved", "deposit_id", d.ID, "reviewer", actor.UserID, "amount", d.Amount)
	return s.reloadDeposit(ctx, d)
}

// RejectDeposit closes a pending deposit without touching any balance.
func (s *PanelService) RejectDeposit(ctx context.Context, actor Actor, depositID uuid.UUID, reason string) (*model.Deposit, error) {
	if !actor.Role.IsStaff() {
		return nil, ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationf("rejection reason is required")
	}
	d, err := s.repo.GetDeposit(ctx, nil, depositID)
	if err != nil {
		return nil, s.fail("reject deposit", err)
	}
	if d.Status != model.DepositPending {
		return nil, fmt.Errorf("%w: deposit is already %s", ErrInvalidState, d.Status)
	}
	msg := fmt.Sprintf("Your deposit of %s has been rejected: %s", usd(d.Amount), reason)

	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.ReviewDeposit(ctx, tx, d.ID, model.DepositRejected, actor.UserID, &reason); err != nil {
			return err
		}
		if err := s.notify(ctx, tx, &model.Notification{
			UserID:  d.UserID,
			Type:    model.NotifyDeposit,
			Title:   "Deposit Rejected",
			Message: msg,
			Data:    model.JSON(map[string]interface{}{"deposit_id": d.ID, "reason": reason}),
		}); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor, model.ActionRejectDeposit, d.UserID, "deposit", map[string]interface{}{
			"deposit_id": d.ID, "amount": d.Amount.String(), "reason": reason,
		})
	})
	if err != nil {
		return nil, s.fail("reject deposit", reviewErr(err))
	}
	s.log.Infow("deposit rejected", "deposit_id", d.ID, "reviewer", actor.UserID)
	return s.reloadDeposit(ctx, d)
}

// ListDeposits returns deposits newest first. Staff may filter by owner;
// clients only ever see their own.
func (s *PanelService) ListDeposits(ctx context.Context, actor Actor, status model.DepositStatus, owner *uuid.UUID) ([]model.Deposit, error) {
	f := repo.DepositFilter{Status: status, UserID: owner}
	if !actor.Role.IsStaff() {
		f.UserID = &actor.UserID
	}
	ds, err := s.repo.ListDeposits(ctx, nil, f)
	if err != nil {
		return nil, s.fail("list deposits", err)
	}
	return ds, nil
}

func (s *PanelService) reloadDeposit(ctx context.Context, d *model.Deposit) (*model.Deposit, error) {
	fresh, err := s.repo.GetDeposit(ctx, nil, d.ID)
	if err != nil {
		s.log.Warnw("reload deposit", "deposit_id", d.ID, "err", err)
		return d, nil
	}
	return fresh, nil
}

func reviewErr(err error) error {
	if errors.Is(err, repo.ErrStateConflict) {
		return fmt.Errorf("%w: deposit was already reviewed", ErrInvalidState)
	}
	return err
}
