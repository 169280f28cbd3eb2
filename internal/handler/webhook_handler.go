package handler

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/AryaDuhan/Whatsapp-BOT/internal/dto"
	appErrors "github.com/AryaDuhan/Whatsapp-BOT/pkg/errors"
	"github.com/AryaDuhan/Whatsapp-BOT/pkg/response"
)

type conversationService interface {
	HandleMessage(ctx context.Context, msg dto.InboundMessage) error
}

// WebhookHandler receives inbound message events from the WhatsApp gateway.
type WebhookHandler struct {
	conversations conversationService
	validator     *validator.Validate
	token         string
	logger        *zap.Logger
}

// NewWebhookHandler constructs the handler.
func NewWebhookHandler(conversations conversationService, validate *validator.Validate, token string, logger *zap.Logger) *WebhookHandler {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{conversations: conversations, validator: validate, token: token, logger: logger}
}

// Receive handles one gateway delivery. The shared webhook token gates the
// endpoint; the gateway is the only expected caller.
func (h *WebhookHandler) Receive(c *gin.Context) {
	provided := c.GetHeader("X-Webhook-Token")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.token)) != 1 {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var msg dto.InboundMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid webhook payload"))
		return
	}
	if err := h.validator.Struct(msg); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid webhook payload"))
		return
	}

	if err := h.conversations.HandleMessage(c.Request.Context(), msg); err != nil {
		h.logger.Error("message handling failed", zap.String("address", msg.Address), zap.Error(err))
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"status": "processed"})
}
