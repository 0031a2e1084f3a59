package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/richardliu001/smm-panel/internal/config"
	"github.com/richardliu001/smm-panel/internal/model"
	"github.com/richardliu001/smm-panel/internal/provider"
	"github.com/richardliu001/smm-panel/internal/repo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderRequest struct {
	ServiceID string
	Link      string
	Quantity  int
}

// ListServices returns the orderable catalog in configured order.
func (s *PanelService) ListServices() []config.CatalogEntry {
	out := make([]config.CatalogEntry, len(s.opts.Catalog))
	copy(out, s.opts.Catalog)
	return out
}

// PlaceOrder charges the user and submits the order to the provider.
//
// The user's lock is held from the balance check until the local writes
// commit. Nothing is written unless the provider accepts the order. If the
// provider accepts but the local transaction fails, no money moves and the
// provider order id is logged for manual reconciliation.
func (s *PanelService) PlaceOrder(ctx context.Context, userID uuid.UUID, req OrderRequest) (*model.Order, error) {
	entry, ok := s.catalog[req.ServiceID]
	if !ok {
		return nil, validationf("unknown service %q", req.ServiceID)
	}
	link, err := checkLink(req.Link)
	if err != nil {
		return nil, err
	}
	if req.Quantity < entry.Min || req.Quantity > entry.Max {
		return nil, validationf("quantity must be between %d and %d", entry.Min, entry.Max)
	}
	total := entry.UnitPrice.Mul(decimal.NewFromInt(int64(req.Quantity)))

	var order *model.Order
	err = s.withUserLock(ctx, userID, func() error {
		u, err := s.repo.GetUser(ctx, nil, userID)
		if err != nil {
			return err
		}
		if u.Balance.LessThan(total) {
			return ErrInsufficientFunds
		}

		placed, err := s.provider.PlaceOrder(ctx, provider.OrderRequest{
			Service:  entry.ServiceID,
			Link:     link,
			Quantity: req.Quantity,
		})
		if err != nil {
			return &ProviderError{Message: s.remediation(), Err: err}
		}

		o := &model.Order{
			UserID:      userID,
			ServiceID:   entry.ServiceID,
			ServiceName: entry.Name,
			Platform:    entry.Platform,
			ServiceType: entry.Type,
			TargetURL:   link,
			Quantity:    req.Quantity,
			Price:       total,
			Status:      model.OrderProcessing,
			APIOrderID:  &placed.OrderID,
			APIResponse: &placed.Raw,
		}
		// The provider holds the order now; the charge must land even if the
		// caller goes away.
		wctx := context.WithoutCancel(ctx)
		err = s.repo.DB(wctx).Transaction(func(tx *gorm.DB) error {
			if err := s.repo.CreateOrder(wctx, tx, o); err != nil {
				return err
			}
			before, after, err := s.repo.AdjustBalance(wctx, tx, userID, total.Neg())
			if err != nil {
				return err
			}
			if err := s.repo.CreateTransactions(wctx, tx, &model.Transaction{
				UserID:        userID,
				Type:          model.TxOrder,
				Direction:     model.Debit,
				Amount:        total,
				BalanceBefore: before,
				BalanceAfter:  after,
				Status:        model.TxCompleted,
				Description:   fmt.Sprintf("Order: %s x%d", entry.Name, req.Quantity),
				ReferenceID:   &o.ID,
			}); err != nil {
				return err
			}
			return s.notify(wctx, tx, &model.Notification{
				UserID:  userID,
				Type:    model.NotifyOrder,
				Title:   "Order Placed Successfully",
				Message: fmt.Sprintf("Your order for %d %s has been placed", req.Quantity, entry.Name),
				Data: model.JSON(map[string]interface{}{
					"order_id": o.ID, "api_order_id": placed.OrderID, "amount": total.String(),
				}),
			})
		})
		if err != nil {
			s.log.Errorw("provider accepted order but local write failed",
				"api_order_id", placed.OrderID, "user_id", userID, "service_id", entry.ServiceID, "err", err)
			return classify(err)
		}
		s.refreshCache(wctx, userID)
		order = o
		return nil
	})
	if err != nil {
		return nil, s.fail("place order", err)
	}
	s.log.Infow("order placed", "order_id", order.ID, "api_order_id", *order.APIOrderID, "user_id", userID, "price", total)
	return order, nil
}

func checkLink(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", validationf("link must be an http(s) URL")
	}
	return raw, nil
}

func (s *PanelService) ListOrders(ctx context.Context, userID uuid.UUID, limit int) ([]model.Order, error) {
	orders, err := s.repo.ListOrders(ctx, nil, userID, clampLimit(limit, 50, 200))
	if err != nil {
		return nil, s.fail("list orders", err)
	}
	return orders, nil
}

// GetOrder returns an order owned by the actor. Staff may read any order.
func (s *PanelService) GetOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*model.Order, error) {
	o, err := s.repo.GetOrder(ctx, nil, orderID)
	if err != nil {
		return nil, s.fail("get order", err)
	}
	if o.UserID != actor.UserID && !actor.Role.IsStaff() {
		return nil, ErrNotFound
	}
	return o, nil
}

// SyncOrder polls the provider for a processing order and settles it.
// Partial deliveries refund the undelivered share; cancellations refund all.
func (s *PanelService) SyncOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	o, err := s.repo.GetOrder(ctx, nil, orderID)
	if err != nil {
		return nil, s.fail("sync order", err)
	}
	if o.Status != model.OrderProcessing || o.APIOrderID == nil {
		return o, nil
	}
	st, err := s.provider.OrderStatus(ctx, *o.APIOrderID)
	if err != nil {
		return nil, s.fail("sync order", &ProviderError{Message: s.remediation(), Err: err})
	}

	var (
		to     model.OrderStatus
		refund decimal.Decimal
	)
	switch strings.ToLower(strings.TrimSpace(st.Status)) {
	case "completed":
		to = model.OrderCompleted
	case "partial":
		to = model.OrderCompleted
		refund = partialRefund(o.Price, o.Quantity, st.Remains)
	case "canceled", "cancelled", "refunded":
		to = model.OrderRefunded
		refund = o.Price
	default:
		return o, nil
	}

	if err := s.settleOrder(ctx, o, to, refund); err != nil {
		if errors.Is(err, repo.ErrStateConflict) {
			return s.repo.GetOrder(ctx, nil, orderID)
		}
		return nil, s.fail("sync order", err)
	}
	s.log.Infow("order settled", "order_id", o.ID, "status", to, "refund", refund)
	return s.repo.GetOrder(ctx, nil, orderID)
}

// SyncProcessingOrders settles up to limit processing orders and reports how
// many changed status.
func (s *PanelService) SyncProcessingOrders(ctx context.Context, limit int) (int, error) {
	orders, err := s.repo.ListOrdersByStatus(ctx, nil, model.OrderProcessing, limit)
	if err != nil {
		return 0, s.fail("list processing orders", err)
	}
	settled := 0
	for _, o := range orders {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		fresh, err := s.SyncOrder(ctx, o.ID)
		if err != nil {
			continue
		}
		if fresh.Status != model.OrderProcessing {
			settled++
		}
	}
	return settled, nil
}

func partialRefund(price decimal.Decimal, quantity, remains int) decimal.Decimal {
	if quantity <= 0 || remains <= 0 {
		return decimal.Zero
	}
	if remains > quantity {
		remains = quantity
	}
	return price.Mul(decimal.NewFromInt(int64(remains))).
		Div(decimal.NewFromInt(int64(quantity))).
		Truncate(8)
}

func (s *PanelService) settleOrder(ctx context.Context, o *model.Order, to model.OrderStatus, refund decimal.Decimal) error {
	return s.mutate(ctx, o.UserID, func(tx *gorm.DB, touched map[uuid.UUID]bool) error {
		now := s.now()
		if err := s.repo.TransitionOrder(ctx, tx, o.ID, model.OrderProcessing, map[string]interface{}{
			"status":          to,
			"refunded_amount": refund,
			"completed_at":    &now,
		}); err != nil {
			return err
		}
		title, msg := "Order Completed", fmt.Sprintf("Your order for %d %s is complete", o.Quantity, o.ServiceName)
		if refund.IsPositive() {
			before, after, err := s.repo.AdjustBalance(ctx, tx, o.UserID, refund)
			if err != nil {
				return err
			}
			touched[o.UserID] = true
			if err := s.repo.CreateTransactions(ctx, tx, &model.Transaction{
				UserID:        o.UserID,
				Type:          model.TxRefund,
				Direction:     model.Credit,
				Amount:        refund,
				BalanceBefore: before,
				BalanceAfter:  after,
				Status:        model.TxCompleted,
				Description:   "Refund for order " + o.ID.String(),
				ReferenceID:   &o.ID,
			}); err != nil {
				return err
			}
			title, msg = "Order Refunded", fmt.Sprintf("%s has been refunded for your %s order", usd(refund), o.ServiceName)
		}
		return s.notify(ctx, tx, &model.Notification{
			UserID:  o.UserID,
			Type:    model.NotifyOrder,
			Title:   title,
			Message: msg,
			Data: model.JSON(map[string]interface{}{
				"order_id": o.ID, "status": to, "refund": refund.String(),
			}),
		})
	})
}
