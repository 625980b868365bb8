package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"guardians-shop/internal/infrastructure/payment"
	"guardians-shop/internal/service"
)

const maxWebhookBody = 64 << 10

type webhookHandler struct {
	orders service.OrderService
	log    *slog.Logger
}

// notificationBody holds the only body fields read: the topic and the id.
type notificationBody struct {
	Type  string          `json:"type"`
	Topic string          `json:"topic"`
	ID    json.RawMessage `json:"id"`
	Data  struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

func (h *webhookHandler) handle(c *gin.Context) {
	n := parseNotification(c)

	res, err := h.orders.HandleNotification(c.Request.Context(), n)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"result": res})
	case errors.Is(err, payment.ErrGatewayUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable"})
	default:
		h.log.Error("webhook processing failed", slog.String("payment_id", n.PaymentID), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// parseNotification reads topic and payment id from the query string, as
// both IPN and webhook deliveries send them, and falls back to the body.
func parseNotification(c *gin.Context) service.Notification {
	n := service.Notification{
		Topic:     firstNonEmpty(c.Query("topic"), c.Query("type")),
		PaymentID: firstNonEmpty(c.Query("data.id"), c.Query("id")),
	}
	if n.Topic != "" && n.PaymentID != "" {
		return n
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil || len(raw) == 0 {
		return n
	}
	var body notificationBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return n
	}
	if n.Topic == "" {
		n.Topic = firstNonEmpty(body.Type, body.Topic)
	}
	if n.PaymentID == "" {
		n.PaymentID = firstNonEmpty(rawID(body.Data.ID), rawID(body.ID))
	}
	return n
}

// rawID accepts both "123" and 123.
func rawID(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return strings.TrimSpace(str)
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String()
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
