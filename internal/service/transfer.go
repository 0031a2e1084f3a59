package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/richardliu001/smm-panel/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransferRequest struct {
	// Recipient is a user id or an exact email address.
	Recipient string
	Amount    decimal.Decimal
}

type TransferResult struct {
	Transfer      *model.Transfer `json:"transfer"`
	Recipient     string          `json:"recipient"`
	SenderBalance decimal.Decimal `json:"balance"`
}

// QuoteTransfer previews the commission breakdown without moving money.
func (s *PanelService) QuoteTransfer(amount decimal.Decimal) (model.TransferQuote, error) {
	if err := checkAmount(amount, "amount"); err != nil {
		return model.TransferQuote{}, err
	}
	return model.QuoteTransfer(amount), nil
}

// Transfer moves amount to the recipient and charges the sender a commission
// on top. Every balance change, ledger row and notification commits together.
func (s *PanelService) Transfer(ctx context.Context, senderID uuid.UUID, req TransferRequest) (*TransferResult, error) {
	if err := checkAmount(req.Amount, "amount"); err != nil {
		return nil, err
	}
	quote := model.QuoteTransfer(req.Amount)
	var res TransferResult

	err := s.mutate(ctx, senderID, func(tx *gorm.DB, touched map[uuid.UUID]bool) error {
		sender, err := s.repo.GetUser(ctx, tx, senderID)
		if err != nil {
			return err
		}
		recipient, err := s.resolveRecipient(ctx, tx, req.Recipient)
		if err != nil {
			return err
		}
		if recipient.ID == sender.ID {
			return ErrSelfTransfer
		}
		if sender.Balance.LessThan(quote.TotalDeducted) {
			return ErrInsufficientFunds
		}
		house, err := s.platformAccount(ctx, tx)
		if err != nil {
			return err
		}

		t := &model.Transfer{
			SenderID:       sender.ID,
			ReceiverID:     recipient.ID,
			Amount:         quote.Amount,
			Commission:     quote.Commission,
			TotalDeducted:  quote.TotalDeducted,
			AmountReceived: quote.AmountReceived,
			Status:         model.TransferCompleted,
		}
		if err := s.repo.CreateTransfer(ctx, tx, t); err != nil {
			return err
		}
		var sb, sa, rb, ra decimal.Decimal
		debit := func() (err error) {
			sb, sa, err = s.repo.AdjustBalance(ctx, tx, sender.ID, quote.TotalDeducted.Neg())
			return err
		}
		credit := func() (err error) {
			rb, ra, err = s.repo.AdjustBalance(ctx, tx, recipient.ID, quote.AmountReceived)
			return err
		}
		// Row locks are taken in id order so opposite transfers cannot deadlock.
		steps := []func() error{debit, credit}
		if recipient.ID.String() < sender.ID.String() {
			steps[0], steps[1] = credit, debit
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return err
			}
		}
		touched[sender.ID], touched[recipient.ID] = true, true

		rows := []*model.Transaction{
			{
				UserID: sender.ID, Type: model.TxTransferSent, Direction: model.Debit,
				Amount: quote.TotalDeducted, Commission: quote.Commission,
				BalanceBefore: sb, BalanceAfter: sa, Status: model.TxCompleted,
				Description: "Transfer to " + recipient.Email, ReferenceID: &t.ID,
			},
			{
				UserID: recipient.ID, Type: model.TxTransferReceived, Direction: model.Credit,
				Amount:        quote.AmountReceived,
				BalanceBefore: rb, BalanceAfter: ra, Status: model.TxCompleted,
				Description: "Transfer from " + sender.Email, ReferenceID: &t.ID,
			},
			// Breakdown of the fee already included in the sent row.
			{
				UserID: sender.ID, Type: model.TxCommission, Direction: model.Debit,
				Amount:        quote.Commission,
				BalanceBefore: sa, BalanceAfter: sa, Status: model.TxCompleted,
				Description: "Transfer commission", ReferenceID: &t.ID,
			},
		}
		if house != nil {
			hb, ha, err := s.repo.AdjustBalance(ctx, tx, house.ID, quote.Commission)
			if err != nil {
				return err
			}
			touched[house.ID] = true
			rows = append(rows, &model.Transaction{
				UserID: house.ID, Type: model.TxCommission, Direction: model.Credit,
				Amount:        quote.Commission,
				BalanceBefore: hb, BalanceAfter: ha, Status: model.TxCompleted,
				Description: "Commission from " + sender.Email, ReferenceID: &t.ID,
			})
		}
		if err := s.repo.CreateTransactions(ctx, tx, rows...); err != nil {
			return err
		}

		data := model.JSON(map[string]interface{}{
			"transfer_id": t.ID, "amount": quote.Amount.String(), "commission": quote.Commission.String(),
		})
		if err := s.notify(ctx, tx,
			&model.Notification{
				UserID:  sender.ID,
				Type:    model.NotifyTransfer,
				Title:   "Transfer Sent",
				Message: fmt.Sprintf("You sent %s to %s (commission %s)", usd(quote.Amount), recipient.Email, usd(quote.Commission)),
				Data:    data,
			},
			&model.Notification{
				UserID:  recipient.ID,
				Type:    model.NotifyTransfer,
				Title:   "Transfer Received",
				Message: fmt.Sprintf("You received %s from %s", usd(quote.AmountReceived), sender.FullName),
				Data:    data,
			},
		); err != nil {
			return err
		}
		res = TransferResult{Transfer: t, Recipient: recipient.Email, SenderBalance: sa}
		return nil
	})
	if err != nil {
		return nil, s.fail("transfer", err)
	}
	s.log.Infow("transfer completed", "transfer_id", res.Transfer.ID, "sender", senderID,
		"receiver", res.Transfer.ReceiverID, "amount", quote.Amount, "commission", quote.Commission)
	return &res, nil
}

// resolveRecipient matches an id or an exact email. Inactive and system
// accounts are never valid recipients.
func (s *PanelService) resolveRecipient(ctx context.Context, tx *gorm.DB, ident string) (*model.User, error) {
	ident = strings.TrimSpace(ident)
	if ident == "" {
		return nil, validationf("recipient is required")
	}
	var (
		u   *model.User
		err error
	)
	if id, perr := uuid.Parse(ident); perr == nil {
		u, err = s.repo.GetUser(ctx, tx, id)
	} else {
		u, err = s.repo.GetUserByEmail(ctx, tx, ident)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecipientNotFound
	}
	if err != nil {
		return nil, err
	}
	if u.IsSystem || u.Status != model.UserActive {
		return nil, ErrRecipientNotFound
	}
	return u, nil
}
