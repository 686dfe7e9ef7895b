package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/clipforge/clipforge/internal/models"
)

// WebhookPayload is the body POSTed to a job's webhook URL on every
// terminal transition.
type WebhookPayload struct {
	JobID     string           `json:"job_id"`
	JobType   models.JobType   `json:"job_type"`
	Status    models.JobStatus `json:"status"`
	Result    map[string]any   `json:"result"`
	Error     *string          `json:"error"`
	Timestamp string           `json:"timestamp"`
	// Truncated is set when the result payload exceeded the size cap and
	// was dropped from the body.
	Truncated bool `json:"truncated,omitempty"`
}

// WebhookDispatcher delivers completion webhooks at-least-once:
// several attempts with exponential backoff, a retry on any connect
// error or non-2xx response. Delivery failures never change job state.
type WebhookDispatcher struct {
	client   *http.Client
	attempts int
	backoff  []time.Duration
	maxBody  int64
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewWebhookDispatcher creates a dispatcher. attempts caps delivery
// tries, maxBody caps the serialized payload size in bytes.
func NewWebhookDispatcher(attempts int, timeout time.Duration, maxBody int64, logger *slog.Logger) *WebhookDispatcher {
	if attempts < 1 {
		attempts = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookDispatcher{
		client:   &http.Client{Timeout: timeout},
		attempts: attempts,
		backoff:  []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second},
		maxBody:  maxBody,
		logger:   logger,
	}
}

// Dispatch delivers the webhook for a terminal job asynchronously.
func (d *WebhookDispatcher) Dispatch(job *models.Job) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliver(job)
	}()
}

// Wait blocks until all in-flight deliveries finish. Used on shutdown
// and in tests.
func (d *WebhookDispatcher) Wait() {
	d.wg.Wait()
}

func (d *WebhookDispatcher) deliver(job *models.Job) {
	body := d.encode(job)

	for attempt := 0; attempt < d.attempts; attempt++ {
		if attempt > 0 {
			wait := d.backoff[min(attempt-1, len(d.backoff)-1)]
			time.Sleep(wait)
		}
		if d.post(job.WebhookURL, body) {
			return
		}
	}
	// URL withheld from the log line; it may carry caller credentials.
	d.logger.Warn("webhook delivery failed, giving up",
		slog.String("job_id", job.ID),
		slog.Int("attempts", d.attempts))
}

func (d *WebhookDispatcher) encode(job *models.Job) []byte {
	payload := WebhookPayload{
		JobID:     job.ID,
		JobType:   job.Type,
		Status:    job.Status,
		Result:    job.Result,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if job.Error != "" {
		payload.Error = &job.Error
	}

	body, err := json.Marshal(payload)
	if err == nil && d.maxBody > 0 && int64(len(body)) > d.maxBody {
		payload.Result = nil
		payload.Truncated = true
		body, err = json.Marshal(payload)
	}
	if err != nil {
		d.logger.Error("encoding webhook payload", slog.String("job_id", job.ID), slog.String("error", err.Error()))
		return nil
	}
	return body
}

func (d *WebhookDispatcher) post(url string, body []byte) bool {
	ctx, cancel := context.WithTimeout(context.Background(), d.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
