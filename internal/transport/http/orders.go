package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/smm-panel/internal/service"
)

func servicesHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.ListServices())
	}
}

type orderReq struct {
	ServiceID string `json:"service_id" binding:"required"`
	Link      string `json:"link" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

func placeOrderHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req orderReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		o, err := svc.PlaceOrder(c.Request.Context(), currentUser(c).ID, service.OrderRequest{
			ServiceID: req.ServiceID, Link: req.Link, Quantity: req.Quantity,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, o)
	}
}

func listOrdersHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := limitQuery(c, "50")
		if !ok {
			return
		}
		orders, err := svc.ListOrders(c.Request.Context(), currentUser(c).ID, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, orders)
	}
}

func getOrderHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		o, err := svc.GetOrder(c.Request.Context(), actorOf(c), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func syncOrderHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		o, err := svc.SyncOrder(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}
