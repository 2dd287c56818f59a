package dosed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ryantjarrett/CTSI-2024/pkg/logger"
	"github.com/ryantjarrett/CTSI-2024/pkg/models"
	"github.com/ryantjarrett/CTSI-2024/pkg/utils"
)

// Callback URL validation errors.
var (
	ErrInvalidCallbackURL = errors.New("invalid callback url")
	ErrMetadataEndpoint   = errors.New("callback url targets a cloud metadata endpoint")
	ErrInternalHost       = errors.New("callback url targets an internal address")
)

// NotificationPayload is the JSON body POSTed to the callback URL when a job
// reaches a terminal status. Surface grids can run to thousands of points,
// so only their size is included; receivers fetch points from the job
// endpoint.
type NotificationPayload struct {
	JobID           string                `json:"job_id"`
	Kind            JobKind               `json:"kind"`
	Status          JobStatus             `json:"status"`
	CreatedAtUnixMs int64                 `json:"created_at_unix_ms"`
	StartedAtUnixMs int64                 `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64                 `json:"ended_at_unix_ms,omitempty"`
	Error           string                `json:"error,omitempty"`
	Result          *models.SolveResponse `json:"result,omitempty"`
	SurfaceSize     int                   `json:"surface_size,omitempty"`
	SentAtUnixMs    int64                 `json:"sent_at_unix_ms"`
}

// Notifier POSTs terminal job states to caller-provided callback URLs with
// retries.
type Notifier struct {
	client     *http.Client
	backoff    utils.BackoffStrategy
	maxRetries int
}

// NewNotifier creates a notifier with a 10 second request timeout and
// jittered exponential retry delays.
func NewNotifier() *Notifier {
	backoff := utils.NewExponentialBackoff(500*time.Millisecond, 8*time.Second, 2.0)
	backoff.Jitter = 0.2
	return &Notifier{
		client:     &http.Client{Timeout: 10 * time.Second},
		backoff:    backoff,
		maxRetries: 3,
	}
}

// Notify sends the job's terminal state to its callback URL asynchronously.
// An empty URL disables notification. URLs that fail validation are dropped
// with a log line and never fetched.
func (n *Notifier) Notify(rec JobRecord) {
	callbackURL := rec.Input.CallbackURL
	if callbackURL == "" {
		return
	}
	if err := validateCallbackURL(callbackURL); err != nil {
		logger.Warn("dropping job callback",
			"job_id", rec.ID,
			"callback_url", callbackURL,
			"error", err)
		return
	}

	// A {job_id} placeholder in the URL is replaced with the job's ID.
	finalURL := strings.ReplaceAll(callbackURL, "{job_id}", rec.ID)

	payload := NotificationPayload{
		JobID:           rec.ID,
		Kind:            rec.Kind,
		Status:          rec.Status,
		CreatedAtUnixMs: rec.CreatedAtUnixMs,
		StartedAtUnixMs: rec.StartedAtUnixMs,
		EndedAtUnixMs:   rec.EndedAtUnixMs,
		Error:           rec.Error,
		Result:          rec.Result,
		SurfaceSize:     len(rec.Surface),
		SentAtUnixMs:    nowUnixMs(),
	}
	go n.send(finalURL, rec.Input.CallbackSecret, payload)
}

// send performs the HTTP POST with retries. It is synchronous so tests can
// call it directly.
func (n *Notifier) send(callbackURL, secret string, payload NotificationPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal callback payload",
			"job_id", payload.JobID,
			"error", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			delay := n.backoff.NextDelay(attempt - 1)
			logger.Debug("retrying job callback",
				"job_id", payload.JobID,
				"attempt", attempt,
				"delay", delay)
			time.Sleep(delay)
		}

		req, err := http.NewRequest(http.MethodPost, callbackURL, bytes.NewReader(body))
		if err != nil {
			lastErr = fmt.Errorf("build request: %w", err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "dosed/1.0")
		if secret != "" {
			req.Header.Set("X-Dosed-Callback-Secret", secret)
		}

		resp, err := n.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("post callback: %w", err)
			logger.Warn("job callback attempt failed",
				"job_id", payload.JobID,
				"attempt", attempt+1,
				"error", err)
			continue
		}

		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			logger.Info("job callback delivered",
				"job_id", payload.JobID,
				"status", payload.Status,
				"status_code", resp.StatusCode)
			return
		}

		lastErr = fmt.Errorf("callback returned status %d", resp.StatusCode)
		logger.Warn("job callback rejected",
			"job_id", payload.JobID,
			"status_code", resp.StatusCode,
			"response_body", string(snippet),
			"attempt", attempt+1)
	}

	logger.Error("job callback abandoned after retries",
		"job_id", payload.JobID,
		"status", payload.Status,
		"max_retries", n.maxRetries,
		"last_error", lastErr)
}

// validateCallbackURL rejects URLs the server should never fetch. Literal
// internal IPs and cloud metadata endpoints are blocked; the localhost
// hostname stays open for development receivers.
func validateCallbackURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCallbackURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrInvalidCallbackURL, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidCallbackURL)
	}
	if host == "localhost" {
		return nil
	}
	if host == "metadata.google.internal" || host == "169.254.169.254" {
		return fmt.Errorf("%w: %s", ErrMetadataEndpoint, host)
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsUnspecified() || isPrivateIP(ip) {
			return fmt.Errorf("%w: %s", ErrInternalHost, host)
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}
