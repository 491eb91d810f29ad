package error

import "net/http"

// WebhookError is returned when an inbound delivery cannot be accepted at all
// (for example a body that is not JSON).
type WebhookError string

func (err WebhookError) Error() string {
	return string(err)
}

func (err WebhookError) ErrCode() string {
	return "WEBHOOK_ERROR"
}

func (err WebhookError) StatusCode() int {
	return http.StatusBadRequest
}
