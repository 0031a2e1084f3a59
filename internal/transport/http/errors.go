package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richardliu001/smm-panel/internal/service"
)

// writeError maps service errors onto HTTP statuses. Persistence failures
// never leak their cause.
func writeError(c *gin.Context, err error) {
	var perr *service.ProviderError
	switch {
	case errors.As(err, &perr):
		c.JSON(http.StatusBadGateway, gin.H{"error": perr.Message})
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrSelfTransfer):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient balance"})
	case errors.Is(err, service.ErrRecipientNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "recipient not found"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "email or phone already registered"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, service.ErrAccountSuspended):
		c.JSON(http.StatusForbidden, gin.H{"error": "account suspended"})
	case errors.Is(err, service.ErrAccountLocked):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "too many failed attempts, try again later"})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error, please try again"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// limitQuery reads the optional limit query parameter; service calls clamp it.
func limitQuery(c *gin.Context, def string) (int, bool) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", def))
	if err != nil {
		badRequest(c, "invalid limit")
		return 0, false
	}
	return limit, true
}
