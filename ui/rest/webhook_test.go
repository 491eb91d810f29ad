package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/message"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/ui/rest/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubmitter struct {
	mu   sync.Mutex
	msgs []message.Inbound
}

func (r *recordingSubmitter) Submit(msg message.Inbound) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return true
}

func newWebhookApp(sub Submitter) *fiber.App {
	app := fiber.New()
	app.Use(middleware.Recovery())
	InitRestWebhook(app, "s3cret", sub)
	return app
}

func TestWebhookVerify(t *testing.T) {
	app := newWebhookApp(&recordingSubmitter{})

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=s3cret&hub.challenge=1158201444", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "1158201444", string(body))

	for _, q := range []string{
		"hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1",
		"hub.mode=unsubscribe&hub.verify_token=s3cret&hub.challenge=1",
		"",
	} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/webhook?"+q, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, q)
	}
}

const delivery = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "1",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "contacts": [{"profile": {"name": "Ram"}, "wa_id": "919876543210"}],
        "messages": [
          {"from": "919876543210", "id": "wamid.1", "timestamp": "1769853600", "type": "text", "text": {"body": "hi"}},
          {"from": "919876543210", "id": "wamid.2", "timestamp": "1769853601", "type": "sticker"}
        ],
        "statuses": [{"id": "wamid.0", "status": "read", "recipient_id": "919876543210"}]
      }
    }]
  }]
}`

func TestWebhookReceiveQueuesMessages(t *testing.T) {
	sub := &recordingSubmitter{}
	app := newWebhookApp(sub)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(delivery))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Code    string         `json:"code"`
		Results map[string]int `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "SUCCESS", body.Code)
	assert.Equal(t, 2, body.Results["messages"])
	assert.Equal(t, 1, body.Results["statuses"])

	require.Len(t, sub.msgs, 2)
	assert.Equal(t, "hi", sub.msgs[0].Text)
	assert.Equal(t, "Ram", sub.msgs[0].ContactName)
	assert.Equal(t, message.TypeUnknown, sub.msgs[1].Type)
}

func TestWebhookStatusOnlyDelivery(t *testing.T) {
	sub := &recordingSubmitter{}
	app := newWebhookApp(sub)

	payload := `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.9","status":"delivered"}]}}]}]}`
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, sub.msgs)
}

func TestWebhookRejectsUnparseableBody(t *testing.T) {
	sub := &recordingSubmitter{}
	app := newWebhookApp(sub)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("not json")))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "WEBHOOK_ERROR", body.Code)
	assert.Empty(t, sub.msgs)
}
