package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richardliu001/smm-panel/internal/model"
	"github.com/richardliu001/smm-panel/internal/service"
	"github.com/shopspring/decimal"
)

type depositReq struct {
	Amount   string `json:"amount" binding:"required"`
	ProofURL string `json:"proof_url"`
}

func createDepositHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req depositReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		amt, err := decimal.NewFromString(req.Amount)
		if err != nil {
			badRequest(c, "invalid amount")
			return
		}
		d, err := svc.RequestDeposit(c.Request.Context(), currentUser(c).ID, service.DepositRequest{
			Amount: amt, ProofURL: req.ProofURL,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, d)
	}
}

// listDepositsHandler serves both the client's own list and the staff queue.
func listDepositsHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var owner *uuid.UUID
		if q := c.Query("user_id"); q != "" {
			id, err := uuid.Parse(q)
			if err != nil {
				badRequest(c, "invalid user_id")
				return
			}
			owner = &id
		}
		ds, err := svc.ListDeposits(c.Request.Context(), actorOf(c), model.DepositStatus(c.Query("status")), owner)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, ds)
	}
}

type rejectReq struct {
	Reason string `json:"reason" binding:"required"`
}

func approveDepositHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		d, err := svc.ApproveDeposit(c.Request.Context(), actorOf(c), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

func rejectDepositHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		var req rejectReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		d, err := svc.RejectDeposit(c.Request.Context(), actorOf(c), id, req.Reason)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

type transferReq struct {
	Recipient string `json:"recipient" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
}

func transferHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req transferReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		amt, err := decimal.NewFromString(req.Amount)
		if err != nil {
			badRequest(c, "invalid amount")
			return
		}
		res, err := svc.Transfer(c.Request.Context(), currentUser(c).ID, service.TransferRequest{
			Recipient: req.Recipient, Amount: amt,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type quoteReq struct {
	Amount string `json:"amount" binding:"required"`
}

func quoteTransferHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req quoteReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		amt, err := decimal.NewFromString(req.Amount)
		if err != nil {
			badRequest(c, "invalid amount")
			return
		}
		q, err := svc.QuoteTransfer(amt)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"amount":          q.Amount,
			"commission":      q.Commission,
			"total_deducted":  q.TotalDeducted,
			"amount_received": q.AmountReceived,
		})
	}
}

func listTransfersHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := limitQuery(c, "50")
		if !ok {
			return
		}
		ts, err := svc.ListTransfers(c.Request.Context(), currentUser(c).ID, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, ts)
	}
}
