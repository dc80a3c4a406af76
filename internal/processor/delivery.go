package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dhima/webhook-scheduler/internal/models"
)

// webhookPayload is the JSON body POSTed to the webhook. Name is only
// present for cron events; CreatedAt only for one-off events.
type webhookPayload struct {
	ID            string          `json:"id"`
	Name          *string         `json:"name,omitempty"`
	ScheduledTime string          `json:"scheduled_time"`
	Payload       json.RawMessage `json:"payload"`
	Comment       *string         `json:"comment,omitempty"`
	CreatedAt     *string         `json:"created_at,omitempty"`
}

// deliver runs one delivery attempt for a claimed event and applies the
// resulting state transition. A nil return means the attempt concluded
// (delivered, retry scheduled, terminal error, or dead) and the event no
// longer belongs to this replica. A non-nil return means no transition
// was written: the row stays locked and registered.
func (p *Processor) deliver(ctx context.Context, class models.EventClass, event *models.ScheduledEventFull) error {
	now := p.clk.Now()

	// Tolerance check happens before any HTTP. Dead events get no
	// invocation row.
	tolerance := time.Duration(event.RetryConf.ToleranceSeconds) * time.Second
	if now.Sub(event.ScheduledTime) > tolerance {
		if p.stopping.Load() {
			return ErrShuttingDown
		}
		if err := p.store.SetStatus(ctx, class, event.ID, models.EventStatusDead); err != nil {
			return fmt.Errorf("mark event dead: %w", err)
		}
		p.logger.Info("event dead: lateness exceeded tolerance",
			zap.String("event_id", event.ID),
			zap.Duration("lateness", now.Sub(event.ScheduledTime)),
			zap.Int("tolerance_seconds", event.RetryConf.ToleranceSeconds))
		p.publishOutcome(ctx, class, event, models.EventStatusDead, event.Tries)
		return nil
	}

	body, err := buildRequestBody(class, event)
	if err != nil {
		return fmt.Errorf("build request body: %w", err)
	}
	headers := requestHeaders(event)
	invRequest := models.InvocationRequest{Payload: body, Headers: headers}

	resp, err := p.post(ctx, event, body, headers)
	if err != nil {
		// Cancellation means shutdown (or deadline of the whole loop):
		// discard the partial outcome, write nothing.
		if ctx.Err() != nil {
			return fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		inv := &models.Invocation{
			EventID:  event.ID,
			Status:   models.StatusTransportError,
			Request:  invRequest,
			Response: models.NewErrorVariant(err.Error()),
		}
		return p.applyRetryLogic(ctx, class, event, inv, nil)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		inv := &models.Invocation{
			EventID:  event.ID,
			Status:   models.StatusParseError,
			Request:  invRequest,
			Response: models.NewErrorVariant(fmt.Sprintf("read response body: %s", err)),
		}
		return p.applyRetryLogic(ctx, class, event, inv, nil)
	}

	webhookResp := models.WebhookResponse{
		Status:  resp.StatusCode,
		Body:    string(respBody),
		Headers: headerInfos(resp.Header),
	}

	switch {
	case resp.StatusCode < 400:
		inv := &models.Invocation{
			EventID:  event.ID,
			Status:   resp.StatusCode,
			Request:  invRequest,
			Response: models.NewWebhookResponseVariant(webhookResp),
		}
		if p.stopping.Load() {
			return ErrShuttingDown
		}
		if err := p.store.InsertInvocationWithStatus(ctx, class, inv, models.EventStatusDelivered); err != nil {
			return fmt.Errorf("record delivered invocation: %w", err)
		}
		p.logger.Info("event delivered",
			zap.String("event_id", event.ID),
			zap.Int("http_status", resp.StatusCode))
		p.publishOutcome(ctx, class, event, models.EventStatusDelivered, event.Tries+1)
		return nil

	case resp.StatusCode < 500:
		inv := &models.Invocation{
			EventID:  event.ID,
			Status:   resp.StatusCode,
			Request:  invRequest,
			Response: models.NewClientErrorVariant(webhookResp),
		}
		return p.applyRetryLogic(ctx, class, event, inv, resp.Header)

	default:
		inv := &models.Invocation{
			EventID:  event.ID,
			Status:   resp.StatusCode,
			Request:  invRequest,
			Response: models.NewWebhookResponseVariant(webhookResp),
		}
		return p.applyRetryLogic(ctx, class, event, inv, resp.Header)
	}
}

// applyRetryLogic classifies a failed attempt. A parseable Retry-After
// header always wins, even with tries exhausted: the server may extend
// the attempt budget. Otherwise exhausted tries go terminal, and
// everything else is retried after the configured interval.
func (p *Processor) applyRetryLogic(ctx context.Context, class models.EventClass, event *models.ScheduledEventFull, inv *models.Invocation, respHeader http.Header) error {
	if p.stopping.Load() {
		return ErrShuttingDown
	}

	if delay, ok := retryAfterSeconds(respHeader); ok {
		retryAt := p.clk.Now().Add(delay)
		if err := p.store.InsertInvocationWithRetry(ctx, class, inv, retryAt); err != nil {
			return fmt.Errorf("record retry invocation: %w", err)
		}
		p.logger.Info("event rescheduled per Retry-After",
			zap.String("event_id", event.ID),
			zap.Int("http_status", inv.Status),
			zap.Time("next_retry_at", retryAt))
		return nil
	}

	if event.Tries >= event.RetryConf.NumRetries {
		if err := p.store.InsertInvocationWithStatus(ctx, class, inv, models.EventStatusError); err != nil {
			return fmt.Errorf("record terminal invocation: %w", err)
		}
		p.logger.Info("event exhausted retries",
			zap.String("event_id", event.ID),
			zap.Int("http_status", inv.Status),
			zap.Int("tries", event.Tries+1))
		p.publishOutcome(ctx, class, event, models.EventStatusError, event.Tries+1)
		return nil
	}

	retryAt := p.clk.Now().Add(time.Duration(event.RetryConf.RetryIntervalSeconds) * time.Second)
	if err := p.store.InsertInvocationWithRetry(ctx, class, inv, retryAt); err != nil {
		return fmt.Errorf("record retry invocation: %w", err)
	}
	p.logger.Info("event scheduled for retry",
		zap.String("event_id", event.ID),
		zap.Int("http_status", inv.Status),
		zap.Time("next_retry_at", retryAt))
	return nil
}

func (p *Processor) post(ctx context.Context, event *models.ScheduledEventFull, body []byte, headers []models.EventHeaderInfo) (*http.Response, error) {
	attemptCtx := ctx
	if secs := requestTimeoutSeconds(event.RetryConf.TimeoutSeconds); secs > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, event.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for _, h := range headers {
		req.Header.Set(h.Name, h.Value)
	}
	return p.httpClient.Do(req)
}

func (p *Processor) publishOutcome(ctx context.Context, class models.EventClass, event *models.ScheduledEventFull, status models.EventStatus, tries int) {
	if p.publisher == nil {
		return
	}
	outcome := models.DeliveryOutcome{
		EventID:     event.ID,
		EventClass:  class,
		TriggerName: event.TriggerName,
		Status:      status,
		Tries:       tries,
		OccurredAt:  p.clk.Now().UTC().Format(time.RFC3339),
	}
	if err := p.publisher.Publish(ctx, outcome); err != nil {
		p.logger.Error("failed to publish delivery outcome",
			zap.String("event_id", event.ID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

func buildRequestBody(class models.EventClass, event *models.ScheduledEventFull) ([]byte, error) {
	payload := event.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	wp := webhookPayload{
		ID:            event.ID,
		ScheduledTime: event.ScheduledTime.Format(time.RFC3339),
		Payload:       payload,
		Comment:       event.Comment,
	}
	if class == models.EventClassCron {
		wp.Name = event.TriggerName
	} else {
		createdAt := event.CreatedAt.Format(time.RFC3339)
		wp.CreatedAt = &createdAt
	}
	return json.Marshal(wp)
}

// requestHeaders combines the engine defaults with the resolved
// per-event headers; event headers win on name collision.
func requestHeaders(event *models.ScheduledEventFull) []models.EventHeaderInfo {
	headers := []models.EventHeaderInfo{{Name: "Content-Type", Value: "application/json"}}
	for _, h := range event.Headers {
		if h.Name == "Content-Type" {
			headers[0].Value = h.Value
			continue
		}
		headers = append(headers, h)
	}
	return headers
}

func requestTimeoutSeconds(timeoutSeconds float64) int {
	secs := int(math.Round(timeoutSeconds))
	if secs < 0 {
		return 0
	}
	return secs
}

func headerInfos(h http.Header) []models.EventHeaderInfo {
	out := make([]models.EventHeaderInfo, 0, len(h))
	for name, values := range h {
		for _, v := range values {
			out = append(out, models.EventHeaderInfo{Name: name, Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// retryAfterSeconds honours Retry-After only as a non-negative integer
// number of seconds; HTTP-date values are ignored.
func retryAfterSeconds(h http.Header) (time.Duration, bool) {
	if h == nil {
		return 0, false
	}
	raw := h.Get("Retry-After")
	if raw == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
