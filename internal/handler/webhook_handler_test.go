package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AryaDuhan/Whatsapp-BOT/internal/dto"
)

type conversationServiceMock struct {
	handled []dto.InboundMessage
	err     error
}

func (m *conversationServiceMock) HandleMessage(ctx context.Context, msg dto.InboundMessage) error {
	if m.err != nil {
		return m.err
	}
	m.handled = append(m.handled, msg)
	return nil
}

func webhookRequest(t *testing.T, token string, payload interface{}) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var body []byte
	switch v := payload.(type) {
	case []byte:
		body = v
	default:
		var err error
		body, err = json.Marshal(v)
		require.NoError(t, err)
	}
	req, err := http.NewRequest(http.MethodPost, "/webhook/messages", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Webhook-Token", token)
	}
	c.Request = req
	return w, c
}

func TestWebhookHandlerRejectsBadToken(t *testing.T) {
	mock := &conversationServiceMock{}
	handler := NewWebhookHandler(mock, nil, "secret-token", nil)

	w, c := webhookRequest(t, "wrong-token", dto.InboundMessage{Address: "911234567890", Text: "help"})
	handler.Receive(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, mock.handled)
}

func TestWebhookHandlerRejectsMalformedBody(t *testing.T) {
	mock := &conversationServiceMock{}
	handler := NewWebhookHandler(mock, nil, "secret-token", nil)

	w, c := webhookRequest(t, "secret-token", []byte(`{"address":`))
	handler.Receive(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mock.handled)
}

func TestWebhookHandlerRejectsMissingAddress(t *testing.T) {
	mock := &conversationServiceMock{}
	handler := NewWebhookHandler(mock, nil, "secret-token", nil)

	w, c := webhookRequest(t, "secret-token", dto.InboundMessage{Text: "help"})
	handler.Receive(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mock.handled)
}

func TestWebhookHandlerProcessesMessage(t *testing.T) {
	mock := &conversationServiceMock{}
	handler := NewWebhookHandler(mock, nil, "secret-token", nil)

	w, c := webhookRequest(t, "secret-token", dto.InboundMessage{Address: "911234567890", Text: "list"})
	handler.Receive(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, mock.handled, 1)
	assert.Equal(t, "list", mock.handled[0].Text)
	assert.Contains(t, w.Body.String(), "processed")
}
