package service

import (
	"context"
	"sync"
	"testing"

	"github.com/richardliu001/smm-panel/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransfer_MovesFundsWithCommission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.client(t, "a@example.com", 100)
	b := f.client(t, "b@example.com", 0)

	res, err := f.svc.Transfer(ctx, a.ID, TransferRequest{Recipient: "B@example.com", Amount: dec("20")})
	require.NoError(t, err)

	tr := res.Transfer
	assert.True(t, tr.Commission.Equal(dec("1")))
	assert.True(t, tr.TotalDeducted.Equal(tr.Amount.Add(tr.Commission)))
	assert.True(t, tr.AmountReceived.Equal(dec("20")))
	assert.Equal(t, model.TransferCompleted, tr.Status)

	assert.True(t, f.balance(t, a.ID).Equal(dec("79")))
	assert.True(t, f.balance(t, b.ID).Equal(dec("20")))
	assert.True(t, res.SenderBalance.Equal(dec("79")))

	sent := ofType(f.ledger(t, a.ID), model.TxTransferSent)
	require.Len(t, sent, 1)
	assert.True(t, sent[0].Amount.Equal(dec("21")))
	assert.Equal(t, model.Debit, sent[0].Direction)
	fee := ofType(f.ledger(t, a.ID), model.TxCommission)
	require.Len(t, fee, 1)
	assert.True(t, fee[0].Amount.Equal(dec("1")))
	recv := ofType(f.ledger(t, b.ID), model.TxTransferReceived)
	require.Len(t, recv, 1)
	assert.True(t, recv[0].Amount.Equal(dec("20")))
	assert.Equal(t, tr.ID, *recv[0].ReferenceID)
	assert.Equal(t, tr.ID, *sent[0].ReferenceID)

	assert.Len(t, f.notifications(t, a.ID), 1)
	assert.Len(t, f.notifications(t, b.ID), 1)
}

func TestTransfer_CommissionAccruesToHouse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.client(t, "a@example.com", 100)
	b := f.client(t, "b@example.com", 0)

	_, err := f.svc.Transfer(ctx, a.ID, TransferRequest{Recipient: b.ID.String(), Amount: dec("10.50")})
	require.NoError(t, err)

	house := f.house(t)
	assert.True(t, house.Balance.Equal(dec("0.525")), house.Balance.String())
	credits := ofType(f.ledger(t, house.ID), model.TxCommission)
	require.Len(t, credits, 1)
	assert.Equal(t, model.Credit, credits[0].Direction)

	// Money is conserved across sender, recipient and house.
	total := f.balance(t, a.ID).Add(f.balance(t, b.ID)).Add(house.Balance)
	assert.True(t, total.Equal(dec("100")), total.String())

	admin := f.staff(t, "root@example.com", model.RoleAdmin)
	stats, err := f.svc.AdminStats(ctx, admin)
	require.NoError(t, err)
	assert.True(t, stats.TotalCommissions.Equal(dec("0.525")))
}

func TestTransfer_WithoutHouseAccount(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.PlatformAccountEmail = "" })
	ctx := context.Background()
	a := f.client(t, "a@example.com", 100)
	b := f.client(t, "b@example.com", 0)

	_, err := f.svc.Transfer(ctx, a.ID, TransferRequest{Recipient: "b@example.com", Amount: dec("20")})
	require.NoError(t, err)
	assert.True(t, f.balance(t, a.ID).Equal(dec("79")))
	assert.True(t, f.balance(t, b.ID).Equal(dec("20")))
}

func TestTransfer_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.client(t, "a@example.com", 50)
	f.client(t, "b@example.com", 0)

	_, err := f.svc.Transfer(ctx, a.ID, TransferRequest{Recipient: "a@example.com", Amount: dec("10")})
	assert.ErrorIs(t, err, ErrSelfTransfer)

	_, err = f.svc.Transfer(ctx, a.ID, TransferRequest{Recipient: "nobody@example.com", Amount: dec("10")})
	assert.ErrorIs(t, err, ErrRecipientNotFound)

	_, err = f.svc.Transfer(ctx, a.ID, TransferRequest{Recipient: "house@panel.local", Amount: dec("10")})
	assert.ErrorIs(t, err, ErrRecipientNotFound)

	// 48 + 2.40 commission exceeds 50.
	_, err = f.svc.Transfer(ctx, a.ID, TransferRequest{Recipient: "b@example.com", Amount: dec("48")})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = f.svc.Transfer(ctx, a.ID, TransferRequest{Recipient: "b@example.com", Amount: dec("0")})
	assert.ErrorIs(t, err, ErrValidation)

	assert.True(t, f.balance(t, a.ID).Equal(dec("50")))
	assert.Empty(t, f.ledger(t, a.ID))
	assert.Empty(t, f.notifications(t, a.ID))
}

func TestTransfer_SuspendedRecipient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.client(t, "a@example.com", 50)
	b := f.client(t, "b@example.com", 0)
	admin := f.staff(t, "root@example.com", model.RoleAdmin)
	_, err := f.svc.SetSuspension(ctx, admin, b.ID, true)
	require.NoError(t, err)

	_, err = f.svc.Transfer(ctx, a.ID, TransferRequest{Recipient: "b@example.com", Amount: dec("10")})
	assert.ErrorIs(t, err, ErrRecipientNotFound)
}

func TestTransfer_ConcurrentNeverOverdraws(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.client(t, "a@example.com", 100)
	b := f.client(t, "b@example.com", 0)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Transfer(ctx, a.ID, TransferRequest{Recipient: "b@example.com", Amount: dec("40")})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientFunds)
		}
	}
	assert.Equal(t, 2, ok)
	assert.True(t, f.balance(t, a.ID).Equal(dec("16")))
	assert.True(t, f.balance(t, b.ID).Equal(dec("80")))
}

func TestQuoteTransfer(t *testing.T) {
	f := newFixture(t)
	q, err := f.svc.QuoteTransfer(dec("100"))
	require.NoError(t, err)
	assert.True(t, q.Commission.Equal(dec("5")))
	assert.True(t, q.TotalDeducted.Equal(dec("105")))

	_, err = f.svc.QuoteTransfer(dec("1.234"))
	assert.ErrorIs(t, err, ErrValidation)
}
