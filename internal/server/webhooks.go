package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/losverdes/membersync/internal/queue"
	"github.com/losverdes/membersync/internal/webhook"
)

// squarespaceSignatureHeader carries the base HMAC digest of the body.
const squarespaceSignatureHeader = "Squarespace-Signature"

// bigcommerceTokenHeader carries the shared secret BigCommerce was configured
// to send with each webhook delivery.
const bigcommerceTokenHeader = "X-Webhook-Token"

// HandleSquarespaceWebhook verifies and routes a Squarespace notification.
// Processing is enqueued; the handler only acknowledges receipt.
func (s *Server) HandleSquarespaceWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	signature := c.GetHeader(squarespaceSignatureHeader)
	err = s.webhookSvc.ProcessNotification(c.Request.Context(), signature, payload)
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrForbiddenWebsite):
			c.JSON(http.StatusForbidden, gin.H{"error": "website not allowed"})
		case errors.Is(err, webhook.ErrInvalidSignature),
			errors.Is(err, webhook.ErrUnknownSubscription):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "verification failed"})
		case errors.Is(err, webhook.ErrUnsupportedTopic):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported topic"})
		default:
			s.log.Error("webhook processing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type bigcommerceNotification struct {
	Scope string `json:"scope"`
	Data  struct {
		ID int64 `json:"id"`
	} `json:"data"`
}

// HandleBigCommerceWebhook authenticates a BigCommerce delivery by shared
// token and enqueues a re-sync of the referenced order.
func (s *Server) HandleBigCommerceWebhook(c *gin.Context) {
	bc := s.cfg.BigCommerce
	token := c.GetHeader(bigcommerceTokenHeader)
	if bc.WebhookSecret == "" ||
		webhook.VerifyBigCommerceToken(token, bc.StoreHash, bc.ClientID, bc.WebhookSecret) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "verification failed"})
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	var note bigcommerceNotification
	if err := json.Unmarshal(payload, &note); err != nil || note.Data.ID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed notification"})
		return
	}

	err = s.publisher.PublishOrderSync(c.Request.Context(), queue.OrderSyncJob{
		Source:  "bigcommerce",
		OrderID: strconv.FormatInt(note.Data.ID, 10),
		Topic:   note.Scope,
	})
	if err != nil {
		s.log.Error("failed to enqueue order sync", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
