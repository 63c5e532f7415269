package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/flowgate-io/flowgate/internal/domain/models"
	"github.com/flowgate-io/flowgate/internal/domain/repositories"
)

type fakeWebhookStore struct {
	webhooks map[uuid.UUID]*models.Webhook
	deleted  []uuid.UUID
}

func newFakeWebhookStore() *fakeWebhookStore {
	return &fakeWebhookStore{webhooks: make(map[uuid.UUID]*models.Webhook)}
}

func (f *fakeWebhookStore) Create(_ context.Context, webhook *models.Webhook) error {
	webhook.ID = uuid.New()
	f.webhooks[webhook.ID] = webhook
	return nil
}

func (f *fakeWebhookStore) Update(_ context.Context, webhook *models.Webhook) error {
	f.webhooks[webhook.ID] = webhook
	return nil
}

func (f *fakeWebhookStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.webhooks, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeWebhookStore) FindByID(_ context.Context, id uuid.UUID) (*models.Webhook, error) {
	webhook, ok := f.webhooks[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return webhook, nil
}

func (f *fakeWebhookStore) ExistsDuplicate(_ context.Context, candidate *models.Webhook) (bool, error) {
	for _, webhook := range f.webhooks {
		if webhook.ResourceType == candidate.ResourceType &&
			webhook.ResourceID == candidate.ResourceID &&
			webhook.OwnerType == candidate.OwnerType &&
			webhook.OwnerID == candidate.OwnerID &&
			webhook.URL == candidate.URL {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeWebhookStore) Search(_ context.Context, filter repositories.WebhookFilter, _ *repositories.ListOptions) ([]models.Webhook, int64, error) {
	var out []models.Webhook
	for _, webhook := range f.webhooks {
		if webhook.OwnerType == filter.OwnerType && webhook.OwnerID == filter.OwnerID {
			out = append(out, *webhook)
		}
	}
	return out, int64(len(out)), nil
}

type fakeRunSource struct {
	runs       map[uuid.UUID]*models.WebhookRun
	executions map[uuid.UUID][]models.WebhookExecution
}

func newFakeRunSource() *fakeRunSource {
	return &fakeRunSource{
		runs:       make(map[uuid.UUID]*models.WebhookRun),
		executions: make(map[uuid.UUID][]models.WebhookExecution),
	}
}

func (f *fakeRunSource) FindByID(_ context.Context, id uuid.UUID) (*models.WebhookRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return run, nil
}

func (f *fakeRunSource) SearchWithCounts(_ context.Context, _ repositories.RunFilter, _ *repositories.ListOptions) ([]repositories.RunWithCounts, int64, error) {
	var out []repositories.RunWithCounts
	for _, run := range f.runs {
		out = append(out, repositories.RunWithCounts{WebhookRun: *run})
	}
	return out, int64(len(out)), nil
}

func (f *fakeRunSource) FindExecutionsByRun(_ context.Context, runID uuid.UUID, _ *repositories.ListOptions) ([]models.WebhookExecution, int64, error) {
	executions := f.executions[runID]
	return executions, int64(len(executions)), nil
}

func webhookInput() CreateWebhookInput {
	return CreateWebhookInput{
		ResourceType: "invoice",
		ResourceID:   "inv-7",
		URL:          "https://hooks.example.com/invoices",
	}
}

func TestCreateWebhookDefaults(t *testing.T) {
	svc := NewWebhookService(newFakeWebhookStore(), newFakeRunSource())

	webhook, err := svc.Create(context.Background(), testOwner, webhookInput())
	require.NoError(t, err)

	assert.Equal(t, models.WebhookTypeHTTP, webhook.WebhookType)
	assert.Equal(t, 10, webhook.ConnectionTimeout)
	assert.Equal(t, 30, webhook.RequestTimeout)
	assert.True(t, webhook.Enabled)
	assert.Equal(t, testOwner.Type, webhook.OwnerType)
	assert.Equal(t, testOwner.ID, webhook.OwnerID)
}

func TestCreateWebhookRejectsDuplicate(t *testing.T) {
	svc := NewWebhookService(newFakeWebhookStore(), newFakeRunSource())

	_, err := svc.Create(context.Background(), testOwner, webhookInput())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), testOwner, webhookInput())
	assert.ErrorIs(t, err, ErrDuplicateWebhook)
}

func TestCreateWebhookSameURLDifferentOwner(t *testing.T) {
	svc := NewWebhookService(newFakeWebhookStore(), newFakeRunSource())

	_, err := svc.Create(context.Background(), testOwner, webhookInput())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), models.Owner{Type: "team", ID: "team-2"}, webhookInput())
	assert.NoError(t, err)
}

func TestUpdateWebhook(t *testing.T) {
	svc := NewWebhookService(newFakeWebhookStore(), newFakeRunSource())

	created, err := svc.Create(context.Background(), testOwner, webhookInput())
	require.NoError(t, err)

	url := "https://hooks.example.com/v2/invoices"
	timeout := 5
	disabled := false
	updated, err := svc.Update(context.Background(), testOwner, created.ID, UpdateWebhookInput{
		URL:            &url,
		RequestTimeout: &timeout,
		Enabled:        &disabled,
	})
	require.NoError(t, err)
	assert.Equal(t, url, updated.URL)
	assert.Equal(t, 5, updated.RequestTimeout)
	assert.False(t, updated.Enabled)
}

func TestWebhookScopedToOwner(t *testing.T) {
	store := newFakeWebhookStore()
	svc := NewWebhookService(store, newFakeRunSource())

	created, err := svc.Create(context.Background(), testOwner, webhookInput())
	require.NoError(t, err)

	stranger := models.Owner{Type: "team", ID: "team-2"}
	_, err = svc.GetByID(context.Background(), stranger, created.ID)
	assert.ErrorIs(t, err, ErrWebhookNotFound)

	err = svc.Delete(context.Background(), stranger, created.ID)
	assert.ErrorIs(t, err, ErrWebhookNotFound)
	assert.Empty(t, store.deleted)
}

func TestDeleteWebhook(t *testing.T) {
	store := newFakeWebhookStore()
	svc := NewWebhookService(store, newFakeRunSource())

	created, err := svc.Create(context.Background(), testOwner, webhookInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), testOwner, created.ID))
	assert.Equal(t, []uuid.UUID{created.ID}, store.deleted)

	_, err = svc.GetByID(context.Background(), testOwner, created.ID)
	assert.ErrorIs(t, err, ErrWebhookNotFound)
}

func TestGetRunWithExecutions(t *testing.T) {
	runs := newFakeRunSource()
	run := &models.WebhookRun{ID: uuid.New(), ResourceType: "invoice", ResourceID: "inv-7"}
	runs.runs[run.ID] = run
	runs.executions[run.ID] = []models.WebhookExecution{
		{RunID: run.ID, Result: models.ExecutionResultSuccess},
		{RunID: run.ID, Result: models.ExecutionResultFailure},
	}
	svc := NewWebhookService(newFakeWebhookStore(), runs)

	detail, err := svc.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, detail.Run.ID)
	assert.Len(t, detail.Executions, 2)
}

func TestGetRunNotFound(t *testing.T) {
	svc := NewWebhookService(newFakeWebhookStore(), newFakeRunSource())

	_, err := svc.GetRun(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, _, err = svc.ListExecutions(context.Background(), uuid.New(), nil)
	assert.ErrorIs(t, err, ErrRunNotFound)
}
