package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/smm-panel/internal/service"
)

type registerReq struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required"`
}

func registerHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		u, err := svc.Register(c.Request.Context(), service.RegisterRequest{
			FullName: req.FullName, Email: req.Email, Phone: req.Phone, Password: req.Password,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, u)
	}
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svc.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func meHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := svc.Profile(c.Request.Context(), currentUser(c).ID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

func balanceHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		bal, err := svc.Balance(c.Request.Context(), currentUser(c).ID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"balance": bal})
	}
}

func historyHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := limitQuery(c, "50")
		if !ok {
			return
		}
		var since time.Time
		if s := c.Query("since"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				badRequest(c, "invalid since")
				return
			}
			since = t
		}
		txs, err := svc.History(c.Request.Context(), currentUser(c).ID, limit, since)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, txs)
	}
}

func summaryHandler(svc *service.PanelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sum, err := svc.Summary(c.Request.Context(), currentUser(c).ID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, sum)
	}
}
