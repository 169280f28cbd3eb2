package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// GatewayClient sends outbound texts through the WhatsApp gateway's REST
// API. The gateway owns the actual WhatsApp session; this process only ever
// talks JSON over HTTP to it.
type GatewayClient struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

// NewGatewayClient constructs a client for the given gateway endpoint.
func NewGatewayClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *GatewayClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GatewayClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type sendRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

// Send delivers one text message to a WhatsApp address.
func (c *GatewayClient) Send(ctx context.Context, address, text string) error {
	body, err := json.Marshal(sendRequest{To: address, Text: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway send: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("gateway send: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("gateway send: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed sendResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("gateway send: decode response: %w", err)
	}
	if parsed.Error != "" {
		return fmt.Errorf("gateway send: %s", parsed.Error)
	}

	c.logger.Debug("message dispatched", zap.String("message_id", parsed.MessageID))
	return nil
}

// Noop is a dispatcher that drops every message, for tests and for running
// the bot without a gateway configured.
type Noop struct{}

// Send discards the message.
func (Noop) Send(ctx context.Context, address, text string) error { return nil }
