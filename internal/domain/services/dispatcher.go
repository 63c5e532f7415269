package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/flowgate-io/flowgate/internal/domain/models"
	"github.com/flowgate-io/flowgate/internal/pkg/metrics"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxResponseBytes      = 64 * 1024
)

// WebhookSource selects the subscriptions a trigger fans out to.
// *repositories.WebhookRepository satisfies it.
type WebhookSource interface {
	FindMatching(ctx context.Context, resourceType, resourceID string, webhookIDs []uuid.UUID) ([]models.Webhook, error)
}

// RunStore persists runs and their executions.
// *repositories.RunRepository satisfies it.
type RunStore interface {
	Create(ctx context.Context, run *models.WebhookRun) error
	CreateExecutions(ctx context.Context, executions []models.WebhookExecution) error
	Complete(ctx context.Context, runID uuid.UUID, at time.Time) error
}

// HTTPDoer is the outbound transport. The pooled client in pkg/httpclient
// satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Dispatcher fans one trigger event out to every matching subscription,
// delivers concurrently and records one execution row per delivery.
type Dispatcher struct {
	webhookRepo WebhookSource
	runRepo     RunStore
	client      HTTPDoer
}

func NewDispatcher(webhookRepo WebhookSource, runRepo RunStore, client HTTPDoer) *Dispatcher {
	return &Dispatcher{webhookRepo: webhookRepo, runRepo: runRepo, client: client}
}

type TriggerInput struct {
	ResourceType string
	ResourceID   string
	Content      models.JSON
	Headers      models.StringMap
	TriggeredBy  string
	// WebhookIDs, when non-empty, restricts the fan-out to the given
	// subscriptions. The schedule engine uses it to fire exactly one.
	WebhookIDs []uuid.UUID
}

type TriggerResult struct {
	RunID   uuid.UUID `json:"run_id"`
	Success int       `json:"success"`
	Failure int       `json:"failure"`
}

// Trigger creates the run row before any delivery is attempted, delivers to
// all matching subscriptions concurrently, batch-persists the execution rows
// once every delivery has settled, and only then marks the run completed.
// Individual delivery failures are recorded outcomes, never errors.
func (d *Dispatcher) Trigger(ctx context.Context, input TriggerInput) (*TriggerResult, error) {
	webhooks, err := d.webhookRepo.FindMatching(ctx, input.ResourceType, input.ResourceID, input.WebhookIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load webhooks: %w", err)
	}

	payload, err := json.Marshal(input.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to encode content: %w", err)
	}

	run := &models.WebhookRun{
		ResourceType: input.ResourceType,
		ResourceID:   input.ResourceID,
		Content:      input.Content,
		Headers:      input.Headers,
		TriggeredAt:  time.Now().UTC(),
		TriggeredBy:  input.TriggeredBy,
	}
	if err := d.runRepo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create webhook run: %w", err)
	}

	// The run row exists from here on. Deliveries are bounded only by each
	// subscription's own request_timeout, and the execution rows plus the
	// completed_at write must land even if the caller's context has been
	// canceled, so everything below runs detached from it.
	ctx = context.WithoutCancel(ctx)

	if len(webhooks) == 0 {
		if err := d.runRepo.Complete(ctx, run.ID, time.Now().UTC()); err != nil {
			return nil, fmt.Errorf("failed to complete webhook run: %w", err)
		}
		return &TriggerResult{RunID: run.ID}, nil
	}

	executions := make([]models.WebhookExecution, len(webhooks))
	var wg sync.WaitGroup
	for i, webhook := range webhooks {
		wg.Add(1)
		go func(i int, webhook models.Webhook) {
			defer wg.Done()
			executions[i] = d.deliver(ctx, run.ID, webhook, payload, input.Headers)
		}(i, webhook)
	}
	wg.Wait()

	if err := d.runRepo.CreateExecutions(ctx, executions); err != nil {
		return nil, fmt.Errorf("failed to record executions: %w", err)
	}
	if err := d.runRepo.Complete(ctx, run.ID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to complete webhook run: %w", err)
	}

	result := &TriggerResult{RunID: run.ID}
	for _, exec := range executions {
		if exec.Result == models.ExecutionResultSuccess {
			result.Success++
		} else {
			result.Failure++
		}
	}

	log.Info().
		Str("run_id", run.ID.String()).
		Str("resource_type", input.ResourceType).
		Str("resource_id", input.ResourceID).
		Int("success", result.Success).
		Int("failure", result.Failure).
		Msg("Webhook trigger completed")

	return result, nil
}

// deliver posts the payload to one subscription and always returns an
// execution record; a timeout is recorded as a failure with status 408.
func (d *Dispatcher) deliver(ctx context.Context, runID uuid.UUID, webhook models.Webhook, payload []byte, override models.StringMap) models.WebhookExecution {
	headers := mergeHeaders(webhook.Headers, override)

	exec := models.WebhookExecution{
		RunID:       runID,
		WebhookID:   webhook.ID,
		OwnerType:   webhook.OwnerType,
		OwnerID:     webhook.OwnerID,
		WebhookType: webhook.WebhookType,
		URL:         webhook.URL,
		Headers:     headers,
		Result:      models.ExecutionResultFailure,
		StartedAt:   time.Now().UTC(),
	}

	timeout := time.Duration(webhook.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, webhook.URL, bytes.NewReader(payload))
	if err != nil {
		exec.Response = strPtr(err.Error())
		exec.EndedAt = time.Now().UTC()
		metrics.WebhookDeliveriesTotal.WithLabelValues(exec.Result).Inc()
		return exec
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			exec.StatusCode = intPtr(http.StatusRequestTimeout)
		}
		exec.Response = strPtr(err.Error())
		exec.EndedAt = time.Now().UTC()

		log.Warn().
			Err(err).
			Str("webhook_id", webhook.ID.String()).
			Str("url", webhook.URL).
			Msg("Webhook delivery failed")
		metrics.WebhookDeliveriesTotal.WithLabelValues(exec.Result).Inc()
		return exec
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	exec.StatusCode = intPtr(resp.StatusCode)
	if len(body) > 0 {
		exec.Response = strPtr(string(body))
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		exec.Result = models.ExecutionResultSuccess
	}
	exec.EndedAt = time.Now().UTC()

	metrics.WebhookDeliveriesTotal.WithLabelValues(exec.Result).Inc()
	metrics.WebhookDeliveryDuration.Observe(exec.EndedAt.Sub(exec.StartedAt).Seconds())
	return exec
}

// mergeHeaders combines the subscription's stored headers with the trigger's
// override headers; the override wins on key conflict.
func mergeHeaders(stored, override models.StringMap) models.StringMap {
	if len(stored) == 0 && len(override) == 0 {
		return nil
	}
	merged := make(models.StringMap, len(stored)+len(override))
	for k, v := range stored {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func strPtr(s string) *string {
	return &s
}
