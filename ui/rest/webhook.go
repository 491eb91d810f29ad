package rest

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/infrastructure/meta"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/message"
	pkgError "github.com/himanshujainsanghai/up-igrs-new-sub002/pkg/error"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/pkg/utils"
	"github.com/sirupsen/logrus"
)

// Submitter queues a normalized message without blocking.
type Submitter interface {
	Submit(msg message.Inbound) bool
}

type Webhook struct {
	verifyToken string
	submitter   Submitter
}

func InitRestWebhook(app fiber.Router, verifyToken string, submitter Submitter) Webhook {
	handler := Webhook{verifyToken: verifyToken, submitter: submitter}
	app.Get("/webhook", handler.Verify)
	app.Post("/webhook", handler.Receive)
	return handler
}

// Verify answers the subscription handshake by echoing hub.challenge.
func (h *Webhook) Verify(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")

	if mode == "subscribe" && h.verifyToken != "" && token == h.verifyToken {
		logrus.Info("[WEBHOOK] Subscription verified")
		return c.Status(fiber.StatusOK).SendString(c.Query("hub.challenge"))
	}

	logrus.WithField("mode", mode).Warn("[WEBHOOK] Verification rejected")
	return c.SendStatus(fiber.StatusForbidden)
}

// Receive acknowledges a delivery once it parses. Messages are queued for
// the worker pool; status receipts are counted and dropped.
func (h *Webhook) Receive(c *fiber.Ctx) error {
	var payload meta.WebhookPayload
	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		panic(pkgError.WebhookError("invalid webhook payload: " + err.Error()))
	}

	messages, statuses := meta.Normalize(payload)
	accepted := 0
	for _, msg := range messages {
		if h.submitter.Submit(msg) {
			accepted++
		}
	}

	if len(messages) > 0 || statuses > 0 {
		logrus.WithFields(logrus.Fields{
			"messages": len(messages),
			"accepted": accepted,
			"statuses": statuses,
		}).Debug("[WEBHOOK] Delivery received")
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Webhook received",
		Results: map[string]any{
			"messages": len(messages),
			"accepted": accepted,
			"statuses": statuses,
		},
	})
}
