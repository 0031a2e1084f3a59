package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/smm-panel/internal/config"
	"github.com/richardliu001/smm-panel/internal/model"
	"github.com/richardliu001/smm-panel/internal/service"
	"go.uber.org/zap"
)

func NewRouter(svc *service.PanelService, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware(log))
	r.Use(RateLimitMiddleware(rl.RPS, rl.Burst))
	RegisterHandlers(r, svc)
	return r
}

func RegisterHandlers(r *gin.Engine, svc *service.PanelService) {
	v1 := r.Group("/v1")
	v1.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	v1.POST("/auth/register", registerHandler(svc))
	v1.POST("/auth/login", loginHandler(svc))

	authed := v1.Group("", AuthMiddleware(svc))
	{
		authed.GET("/me", meHandler(svc))
		authed.GET("/me/balance", balanceHandler(svc))
		authed.GET("/me/transactions", historyHandler(svc))
		authed.GET("/me/summary", summaryHandler(svc))

		authed.POST("/deposits", createDepositHandler(svc))
		authed.GET("/deposits", listDepositsHandler(svc))
		authed.POST("/transfers/quote", quoteTransferHandler(svc))
		authed.POST("/transfers", transferHandler(svc))
		authed.GET("/transfers", listTransfersHandler(svc))

		authed.GET("/services", servicesHandler(svc))
		authed.POST("/orders", placeOrderHandler(svc))
		authed.GET("/orders", listOrdersHandler(svc))
		authed.GET("/orders/:id", getOrderHandler(svc))

		authed.GET("/notifications", listNotificationsHandler(svc))
		authed.GET("/notifications/unread-count", unreadCountHandler(svc))
		authed.POST("/notifications/:id/read", markReadHandler(svc))
		authed.POST("/notifications/read-all", markAllReadHandler(svc))
	}

	staff := authed.Group("/admin", RequireRole(model.RoleAdmin, model.RoleSubadmin))
	{
		staff.GET("/deposits", listDepositsHandler(svc))
		staff.POST("/deposits/:id/approve", approveDepositHandler(svc))
		staff.POST("/deposits/:id/reject", rejectDepositHandler(svc))
		staff.GET("/reviewer-stats", reviewerStatsHandler(svc))
	}

	admin := authed.Group("/admin", RequireRole(model.RoleAdmin))
	{
		admin.GET("/users", listUsersHandler(svc))
		admin.POST("/users/:id/balance", adjustBalanceHandler(svc))
		admin.POST("/users/:id/suspend", suspensionHandler(svc, true))
		admin.POST("/users/:id/activate", suspensionHandler(svc, false))
		admin.GET("/stats", adminStatsHandler(svc))
		admin.GET("/logs", adminLogsHandler(svc))
		admin.GET("/provider/balance", providerBalanceHandler(svc))
		admin.GET("/provider/services", providerServicesHandler(svc))
		admin.POST("/orders/:id/sync", syncOrderHandler(svc))
	}
}
