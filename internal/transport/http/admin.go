package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/smm-panel/internal/model"
	"github.com/richardliu001/smm-panel/internal/service"
	"github.com/shopspring/decimal"
)

func reviewerStatsHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svc.ReviewerStats(c.Request.Context(), actorOf(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func listUsersHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := svc.ListUsers(c.Request.Context(), actorOf(c),
			model.Role(c.Query("role")), model.UserStatus(c.Query("status")))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

type adjustReq struct {
	// Amount is signed; negative debits the user.
	Amount string `json:"amount" binding:"required"`
	Note   string `json:"note"`
}

func adjustBalanceHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		var req adjustReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		delta, err := decimal.NewFromString(req.Amount)
		if err != nil {
			badRequest(c, "invalid amount")
			return
		}
		u, err := svc.AdjustBalance(c.Request.Context(), actorOf(c), id, service.AdjustRequest{Delta: delta, Note: req.Note})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

func suspensionHandler(svc *service.PanelService, suspend bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		u, err := svc.SetSuspension(c.Request.Context(), actorOf(c), id, suspend)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

func adminStatsHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svc.AdminStats(c.Request.Context(), actorOf(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func adminLogsHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := limitQuery(c, "100")
		if !ok {
			return
		}
		logs, err := svc.ListAdminLogs(c.Request.Context(), actorOf(c), limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, logs)
	}
}

func providerBalanceHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := svc.ProviderBalance(c.Request.Context(), actorOf(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

func providerServicesHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		svcs, err := svc.ProviderServices(c.Request.Context(), actorOf(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, svcs)
	}
}
