package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// webhookQueueSize is the bounded channel capacity for outbound records.
const webhookQueueSize = 1024

// WebhookSink forwards records to an external HTTP endpoint. Records are
// enqueued without blocking and sent by a background goroutine; when the
// queue is full they are dropped.
type WebhookSink struct {
	url        string
	authHeader string // "Header: Value", e.g. "Authorization: Bearer xxx"
	client     *http.Client
	retryDelay time.Duration
	logger     *slog.Logger

	mu     sync.RWMutex
	closed bool
	events chan Record
	wg     sync.WaitGroup
}

// NewWebhookSink starts a dispatcher posting to url. authHeader may be empty.
func NewWebhookSink(url, authHeader string, logger *slog.Logger) *WebhookSink {
	if logger == nil {
		logger = slog.Default()
	}
	w := &WebhookSink{
		url:        url,
		authHeader: authHeader,
		client:     &http.Client{Timeout: 10 * time.Second},
		retryDelay: time.Second,
		logger:     logger,
		events:     make(chan Record, webhookQueueSize),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Append enqueues rec. It never blocks and never fails; a full queue drops
// the record with a warning.
func (w *WebhookSink) Append(_ context.Context, rec Record) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return nil
	}
	select {
	case w.events <- rec:
	default:
		w.logger.Warn("audit webhook: queue full, dropping record", "result", rec.Result, "reason", rec.Reason)
	}
	return nil
}

// Close stops accepting records and waits for the queue to drain.
func (w *WebhookSink) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.events)
	w.mu.Unlock()
	w.wg.Wait()
	return nil
}

func (w *WebhookSink) loop() {
	defer w.wg.Done()
	for rec := range w.events {
		w.send(rec)
	}
}

// send POSTs the record with one retry on 5xx or transport failure.
func (w *WebhookSink) send(rec Record) {
	body, err := json.Marshal(rec)
	if err != nil {
		w.logger.Warn("audit webhook: marshal failed", "error", err)
		return
	}

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			time.Sleep(w.retryDelay)
		}

		req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			w.logger.Warn("audit webhook: request creation failed", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "authlab-audit-webhook/1.0")
		if name, value, ok := strings.Cut(w.authHeader, ":"); ok {
			req.Header.Set(strings.TrimSpace(name), strings.TrimSpace(value))
		}

		resp, err := w.client.Do(req)
		if err != nil {
			w.logger.Warn("audit webhook: request failed", "error", err, "attempt", attempt+1)
			continue
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return
		case resp.StatusCode >= 500:
			w.logger.Warn("audit webhook: server error", "status", resp.StatusCode, "attempt", attempt+1)
			continue
		default:
			w.logger.Warn("audit webhook: client error", "status", resp.StatusCode)
			return
		}
	}
}
