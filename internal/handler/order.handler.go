package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"guardians-shop/internal/domain"
	"guardians-shop/internal/service"
)

type orderHandler struct {
	orders     service.OrderService
	players    PlayerCounter
	maxPlayers int
	log        *slog.Logger
}

type createOrderRequest struct {
	UserID         string `json:"userId" binding:"required"`
	ProductSKU     string `json:"productSku" binding:"required"`
	PlayerUsername string `json:"playerUsername" binding:"required"`
}

// create registers a pending order. Its id is the external reference the
// checkout attaches to the payment preference.
func (h *orderHandler) create(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orders.CreatePendingOrder(c.Request.Context(), service.PendingOrderRequest{
		UserRef:    req.UserID,
		ProductSKU: req.ProductSKU,
		Player:     req.PlayerUsername,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, order)
	case errors.Is(err, service.ErrUnknownProduct):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error("failed to create order", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *orderHandler) getByPayment(c *gin.Context) {
	order, err := h.orders.GetOrderByPayment(c.Request.Context(), c.Param("paymentId"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, order)
	case errors.Is(err, domain.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.log.Error("failed to load order", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *orderHandler) playersOnline(c *gin.Context) {
	if h.players == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"online": 0, "max": h.maxPlayers, "error": "rcon not configured"})
		return
	}
	online, err := h.players(c.Request.Context())
	if err != nil {
		h.log.Warn("players online lookup failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"online": 0, "max": h.maxPlayers, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"online": online, "max": h.maxPlayers, "timestamp": time.Now().UTC()})
}
