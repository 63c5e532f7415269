package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgate-io/flowgate/internal/domain/models"
)

type fakeWebhookSource struct {
	webhooks []models.Webhook
}

func (f *fakeWebhookSource) FindMatching(_ context.Context, resourceType, resourceID string, webhookIDs []uuid.UUID) ([]models.Webhook, error) {
	var out []models.Webhook
	for _, webhook := range f.webhooks {
		if webhook.ResourceType != resourceType || webhook.ResourceID != resourceID || !webhook.Enabled {
			continue
		}
		if len(webhookIDs) > 0 && !containsID(webhookIDs, webhook.ID) {
			continue
		}
		out = append(out, webhook)
	}
	return out, nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

type fakeRunStore struct {
	runs       []*models.WebhookRun
	executions []models.WebhookExecution
	completed  []uuid.UUID
}

func (f *fakeRunStore) Create(_ context.Context, run *models.WebhookRun) error {
	run.ID = uuid.New()
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeRunStore) CreateExecutions(_ context.Context, executions []models.WebhookExecution) error {
	f.executions = append(f.executions, executions...)
	return nil
}

func (f *fakeRunStore) Complete(_ context.Context, runID uuid.UUID, _ time.Time) error {
	f.completed = append(f.completed, runID)
	return nil
}

func subscription(url string) models.Webhook {
	return models.Webhook{
		ID:             uuid.New(),
		ResourceType:   "invoice",
		ResourceID:     "inv-7",
		OwnerType:      "team",
		OwnerID:        "team-1",
		WebhookType:    models.WebhookTypeHTTP,
		URL:            url,
		RequestTimeout: 30,
		Enabled:        true,
	}
}

func triggerInput() TriggerInput {
	return TriggerInput{
		ResourceType: "invoice",
		ResourceID:   "inv-7",
		Content:      models.JSON{"amount": 125.5},
		TriggeredBy:  "billing-service",
	}
}

func TestTriggerWithoutSubscribersStillRecordsRun(t *testing.T) {
	runs := &fakeRunStore{}
	d := NewDispatcher(&fakeWebhookSource{}, runs, http.DefaultClient)

	result, err := d.Trigger(context.Background(), triggerInput())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Success)
	assert.Equal(t, 0, result.Failure)
	require.Len(t, runs.runs, 1)
	assert.Equal(t, runs.runs[0].ID, result.RunID)
	assert.Equal(t, []uuid.UUID{result.RunID}, runs.completed)
	assert.Empty(t, runs.executions)
}

func TestTriggerFansOutToAllSubscribers(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, _ := io.ReadAll(r.Body)
		var content map[string]interface{}
		assert.NoError(t, json.Unmarshal(body, &content))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	source := &fakeWebhookSource{webhooks: []models.Webhook{
		subscription(server.URL),
		subscription(server.URL),
		subscription(server.URL),
	}}
	runs := &fakeRunStore{}
	d := NewDispatcher(source, runs, server.Client())

	result, err := d.Trigger(context.Background(), triggerInput())
	require.NoError(t, err)

	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, 3, result.Success)
	assert.Equal(t, 0, result.Failure)
	require.Len(t, runs.executions, 3)
	for _, exec := range runs.executions {
		assert.Equal(t, result.RunID, exec.RunID)
		assert.Equal(t, models.ExecutionResultSuccess, exec.Result)
		require.NotNil(t, exec.StatusCode)
		assert.Equal(t, http.StatusOK, *exec.StatusCode)
	}
	assert.Equal(t, []uuid.UUID{result.RunID}, runs.completed)
}

func TestTriggerRecordsNon2xxAsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	}))
	defer server.Close()

	runs := &fakeRunStore{}
	d := NewDispatcher(&fakeWebhookSource{webhooks: []models.Webhook{subscription(server.URL)}}, runs, server.Client())

	result, err := d.Trigger(context.Background(), triggerInput())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Success)
	assert.Equal(t, 1, result.Failure)
	require.Len(t, runs.executions, 1)
	exec := runs.executions[0]
	assert.Equal(t, models.ExecutionResultFailure, exec.Result)
	require.NotNil(t, exec.StatusCode)
	assert.Equal(t, http.StatusBadGateway, *exec.StatusCode)
	require.NotNil(t, exec.Response)
	assert.Contains(t, *exec.Response, "upstream broke")
}

func TestTriggerRecordsTimeoutAs408(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	webhook := subscription(server.URL)
	webhook.RequestTimeout = 1
	runs := &fakeRunStore{}
	d := NewDispatcher(&fakeWebhookSource{webhooks: []models.Webhook{webhook}}, runs, server.Client())

	result, err := d.Trigger(context.Background(), triggerInput())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failure)
	require.Len(t, runs.executions, 1)
	exec := runs.executions[0]
	assert.Equal(t, models.ExecutionResultFailure, exec.Result)
	require.NotNil(t, exec.StatusCode)
	assert.Equal(t, http.StatusRequestTimeout, *exec.StatusCode)
}

func TestTriggerNotCutShortByCallerDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	webhook := subscription(server.URL)
	webhook.RequestTimeout = 30
	runs := &fakeRunStore{}
	d := NewDispatcher(&fakeWebhookSource{webhooks: []models.Webhook{webhook}}, runs, server.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := d.Trigger(ctx, triggerInput())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 0, result.Failure)
	require.Len(t, runs.executions, 1)
	assert.Equal(t, models.ExecutionResultSuccess, runs.executions[0].Result)
	assert.Equal(t, []uuid.UUID{result.RunID}, runs.completed)
}

func TestTriggerRejectsUnencodableContentBeforeRunCreation(t *testing.T) {
	runs := &fakeRunStore{}
	d := NewDispatcher(&fakeWebhookSource{}, runs, http.DefaultClient)

	input := triggerInput()
	input.Content = models.JSON{"bad": make(chan int)}
	_, err := d.Trigger(context.Background(), input)

	require.Error(t, err)
	assert.Empty(t, runs.runs)
	assert.Empty(t, runs.completed)
}

func TestTriggerOverrideHeadersWin(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	webhook := subscription(server.URL)
	webhook.Headers = models.StringMap{"X-Signature": "stored", "X-Channel": "hooks"}
	runs := &fakeRunStore{}
	d := NewDispatcher(&fakeWebhookSource{webhooks: []models.Webhook{webhook}}, runs, server.Client())

	input := triggerInput()
	input.Headers = models.StringMap{"X-Signature": "override"}
	_, err := d.Trigger(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "override", got.Get("X-Signature"))
	assert.Equal(t, "hooks", got.Get("X-Channel"))
}

func TestTriggerScopedToGivenWebhookIDs(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	chosen := subscription(server.URL)
	other := subscription(server.URL)
	runs := &fakeRunStore{}
	d := NewDispatcher(&fakeWebhookSource{webhooks: []models.Webhook{chosen, other}}, runs, server.Client())

	input := triggerInput()
	input.WebhookIDs = []uuid.UUID{chosen.ID}
	result, err := d.Trigger(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	require.Len(t, runs.executions, 1)
	assert.Equal(t, chosen.ID, runs.executions[0].WebhookID)
	assert.Equal(t, 1, result.Success)
}

func TestTriggerTruncatesLargeResponses(t *testing.T) {
	big := make([]byte, 96*1024)
	for i := range big {
		big[i] = 'x'
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(big)
	}))
	defer server.Close()

	runs := &fakeRunStore{}
	d := NewDispatcher(&fakeWebhookSource{webhooks: []models.Webhook{subscription(server.URL)}}, runs, server.Client())

	_, err := d.Trigger(context.Background(), triggerInput())
	require.NoError(t, err)

	require.Len(t, runs.executions, 1)
	require.NotNil(t, runs.executions[0].Response)
	assert.Len(t, *runs.executions[0].Response, maxResponseBytes)
}

func TestMergeHeaders(t *testing.T) {
	assert.Nil(t, mergeHeaders(nil, nil))

	merged := mergeHeaders(
		models.StringMap{"A": "1", "B": "2"},
		models.StringMap{"B": "override", "C": "3"},
	)
	assert.Equal(t, models.StringMap{"A": "1", "B": "override", "C": "3"}, merged)
}
