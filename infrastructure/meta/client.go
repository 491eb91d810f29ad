package meta

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/core/config"
	"github.com/sirupsen/logrus"
)

const (
	maxAttempts     = 3
	defaultBackoff  = 500 * time.Millisecond
	maxMediaBytes   = 16 * 1024 * 1024
	maxErrorBodyLen = 8192
)

var ErrNotConfigured = errors.New("whatsapp cloud api is not configured")

// APIError is a non-2xx answer from the Graph API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph api request failed: status=%d body=%s", e.Status, e.Body)
}

// Client talks to the WhatsApp Cloud API.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	version       string
	phoneNumberID string
	token         string
	backoff       time.Duration
}

func NewClient(cfg config.MetaConfig) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       strings.TrimSuffix(cfg.GraphBaseURL, "/"),
		version:       cfg.APIVersion,
		phoneNumberID: cfg.PhoneNumberID,
		token:         cfg.AccessToken,
		backoff:       defaultBackoff,
	}
}

// Configured reports whether outbound calls can be made.
func (c *Client) Configured() bool {
	return c.token != "" && c.phoneNumberID != ""
}

func (c *Client) endpoint(parts ...string) string {
	return c.baseURL + "/" + c.version + "/" + strings.Join(parts, "/")
}

// withRetry runs fn up to maxAttempts times while it fails with a
// transient network error, sleeping attempt*backoff in between.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil || !IsTransient(err) || ctx.Err() != nil {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		wait := time.Duration(attempt) * c.backoff
		logrus.WithError(err).Warnf("[META] %s failed (attempt %d/%d), retrying in %s", op, attempt, maxAttempts, wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, maxAttempts, err)
}

// IsTransient reports connection resets, refusals, timeouts and DNS failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func (c *Client) jsonRequest(ctx context.Context, method, url string, body any, dest any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		payload = b
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return &APIError{Status: resp.StatusCode, Body: string(data)}
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
