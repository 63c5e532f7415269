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

type fakeTaskStore struct {
	tasks   map[uuid.UUID]*models.ApprovalTask
	saveErr error
	actions []*models.TaskAction
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[uuid.UUID]*models.ApprovalTask)}
}

func (f *fakeTaskStore) Create(_ context.Context, task *models.ApprovalTask) error {
	task.ID = uuid.New()
	f.tasks[task.ID] = task
	return nil
}

func (f *fakeTaskStore) CreateBatch(ctx context.Context, tasks []*models.ApprovalTask) error {
	for _, task := range tasks {
		if err := f.Create(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeTaskStore) FindWithWorkflow(_ context.Context, id uuid.UUID) (*models.ApprovalTask, error) {
	task, ok := f.tasks[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return task, nil
}

func (f *fakeTaskStore) SaveTransition(_ context.Context, task *models.ApprovalTask, action *models.TaskAction) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.actions = append(f.actions, action)
	return nil
}

func (f *fakeTaskStore) SaveTransitions(ctx context.Context, tasks []*models.ApprovalTask, actions []*models.TaskAction) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.actions = append(f.actions, actions...)
	return nil
}

type fakeWorkflowSource struct {
	workflows map[uuid.UUID]*models.Workflow
}

func newFakeWorkflowSource() *fakeWorkflowSource {
	return &fakeWorkflowSource{workflows: make(map[uuid.UUID]*models.Workflow)}
}

func (f *fakeWorkflowSource) FindOwned(_ context.Context, id uuid.UUID, owner models.Owner) (*models.Workflow, error) {
	workflow, ok := f.workflows[id]
	if !ok || !owner.Matches(workflow.OwnerType, workflow.OwnerID) {
		return nil, gorm.ErrRecordNotFound
	}
	return workflow, nil
}

var testOwner = models.Owner{Type: "team", ID: "team-1"}

func twoLevelWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:           uuid.New(),
		Name:         "expense approval",
		ResourceType: "expense",
		OwnerType:    testOwner.Type,
		OwnerID:      testOwner.ID,
		Enabled:      true,
		Approvals: []models.ApprovalLevel{
			{Name: "manager review", Level: 1, AllowedRoles: models.StringArray{"manager"}, ApprovalCountsRequired: 1},
			{Name: "finance review", Level: 2, AllowedRoles: models.StringArray{"finance", "cfo"}, ApprovalCountsRequired: 1},
		},
	}
}

func approvalFixture(t *testing.T) (*ApprovalService, *fakeTaskStore, *models.Workflow, *models.ApprovalTask) {
	t.Helper()

	workflow := twoLevelWorkflow()
	workflows := newFakeWorkflowSource()
	workflows.workflows[workflow.ID] = workflow

	tasks := newFakeTaskStore()
	svc := NewApprovalService(tasks, workflows)

	view, err := svc.CreateTask(context.Background(), testOwner, workflow.ID, "expense-42")
	require.NoError(t, err)

	task := tasks.tasks[view.ID]
	task.Workflow = *workflow
	return svc, tasks, workflow, task
}

func TestCreateTaskStartsAtLevelOne(t *testing.T) {
	_, _, _, task := approvalFixture(t)

	assert.Equal(t, models.TaskStatusPending, task.Status)
	require.NotNil(t, task.NextReviewLevel)
	assert.Equal(t, 1, *task.NextReviewLevel)
	assert.Equal(t, "expense-42", task.ResourceID)
}

func TestCreateTaskComputesNextReviewRoles(t *testing.T) {
	workflow := twoLevelWorkflow()
	workflows := newFakeWorkflowSource()
	workflows.workflows[workflow.ID] = workflow
	svc := NewApprovalService(newFakeTaskStore(), workflows)

	view, err := svc.CreateTask(context.Background(), testOwner, workflow.ID, "expense-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"manager"}, view.NextReviewRoles)
}

func TestCreateTaskRejectsDisabledWorkflow(t *testing.T) {
	workflow := twoLevelWorkflow()
	workflow.Enabled = false
	workflows := newFakeWorkflowSource()
	workflows.workflows[workflow.ID] = workflow
	svc := NewApprovalService(newFakeTaskStore(), workflows)

	_, err := svc.CreateTask(context.Background(), testOwner, workflow.ID, "expense-1")
	assert.ErrorIs(t, err, ErrWorkflowDisabled)
}

func TestCreateTaskUnknownWorkflow(t *testing.T) {
	svc := NewApprovalService(newFakeTaskStore(), newFakeWorkflowSource())

	_, err := svc.CreateTask(context.Background(), testOwner, uuid.New(), "expense-1")
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestBulkCreateTasks(t *testing.T) {
	workflow := twoLevelWorkflow()
	workflows := newFakeWorkflowSource()
	workflows.workflows[workflow.ID] = workflow
	tasks := newFakeTaskStore()
	svc := NewApprovalService(tasks, workflows)

	views, err := svc.BulkCreateTasks(context.Background(), testOwner, workflow.ID, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Len(t, tasks.tasks, 3)
	for _, view := range views {
		assert.Equal(t, models.TaskStatusPending, view.Status)
	}
}

func TestApproveAdvancesOneLevel(t *testing.T) {
	svc, store, _, task := approvalFixture(t)

	view, err := svc.Approve(context.Background(), testOwner, task.ID, ActionInput{
		ReviewerID:    "alice",
		ReviewerRoles: []string{"manager"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.TaskStatusInProgress, view.Status)
	require.NotNil(t, view.NextReviewLevel)
	assert.Equal(t, 2, *view.NextReviewLevel)
	assert.Equal(t, []string{"finance", "cfo"}, view.NextReviewRoles)

	require.Len(t, store.actions, 1)
	action := store.actions[0]
	assert.Equal(t, models.ActionApprove, action.ActionType)
	assert.Equal(t, 1, *action.FromLevel)
	assert.Equal(t, 2, *action.ToLevel)
	assert.Equal(t, models.TaskStatusPending, action.FromStatus)
	assert.Equal(t, models.TaskStatusInProgress, action.ToStatus)
}

func TestApproveAtFinalLevelCompletes(t *testing.T) {
	svc, _, _, task := approvalFixture(t)
	task.Status = models.TaskStatusInProgress
	task.NextReviewLevel = intPtr(2)

	view, err := svc.Approve(context.Background(), testOwner, task.ID, ActionInput{
		ReviewerID:    "bob",
		ReviewerRoles: []string{"cfo"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.TaskStatusCompleted, view.Status)
	assert.Nil(t, view.NextReviewLevel)
	assert.Empty(t, view.NextReviewRoles)
}

func TestRejectAtLevelOneTerminates(t *testing.T) {
	svc, _, _, task := approvalFixture(t)
	comment := "missing receipts"

	view, err := svc.Reject(context.Background(), testOwner, task.ID, ActionInput{
		ReviewerID:    "alice",
		ReviewerRoles: []string{"manager"},
		Comment:       &comment,
	})
	require.NoError(t, err)

	assert.Equal(t, models.TaskStatusRejected, view.Status)
	assert.Nil(t, view.NextReviewLevel)
}

func TestRejectAboveLevelOneStepsBack(t *testing.T) {
	svc, _, _, task := approvalFixture(t)
	task.Status = models.TaskStatusInProgress
	task.NextReviewLevel = intPtr(2)
	comment := "needs manager sign-off again"

	view, err := svc.Reject(context.Background(), testOwner, task.ID, ActionInput{
		ReviewerID:    "bob",
		ReviewerRoles: []string{"finance"},
		Comment:       &comment,
	})
	require.NoError(t, err)

	assert.Equal(t, models.TaskStatusInProgress, view.Status)
	require.NotNil(t, view.NextReviewLevel)
	assert.Equal(t, 1, *view.NextReviewLevel)
}

func TestRejectRequiresComment(t *testing.T) {
	svc, _, _, task := approvalFixture(t)

	_, err := svc.Reject(context.Background(), testOwner, task.ID, ActionInput{
		ReviewerID:    "alice",
		ReviewerRoles: []string{"manager"},
	})
	assert.ErrorIs(t, err, ErrCommentRequired)
}

func TestTransitionRequiresReviewer(t *testing.T) {
	svc, _, _, task := approvalFixture(t)

	_, err := svc.Approve(context.Background(), testOwner, task.ID, ActionInput{})
	assert.ErrorIs(t, err, ErrReviewerRequired)
}

func TestTransitionRejectsWrongRole(t *testing.T) {
	svc, _, _, task := approvalFixture(t)

	_, err := svc.Approve(context.Background(), testOwner, task.ID, ActionInput{
		ReviewerID:    "eve",
		ReviewerRoles: []string{"intern"},
	})

	var roleErr *RoleError
	require.ErrorAs(t, err, &roleErr)
	assert.Equal(t, 1, roleErr.Level)
	assert.Contains(t, roleErr.Required, "manager")
}

func TestTransitionBlockedOnTerminalTask(t *testing.T) {
	for _, status := range []string{
		models.TaskStatusCompleted,
		models.TaskStatusRejected,
		models.TaskStatusDiscarded,
	} {
		t.Run(status, func(t *testing.T) {
			svc, _, _, task := approvalFixture(t)
			task.Status = status
			task.NextReviewLevel = nil

			_, err := svc.Approve(context.Background(), testOwner, task.ID, ActionInput{
				ReviewerID:    "alice",
				ReviewerRoles: []string{"manager"},
			})
			assert.ErrorIs(t, err, ErrInvalidState)
		})
	}
}

func TestTransitionConflictOnStaleRow(t *testing.T) {
	svc, store, _, task := approvalFixture(t)
	store.saveErr = repositories.ErrStaleRow

	_, err := svc.Approve(context.Background(), testOwner, task.ID, ActionInput{
		ReviewerID:    "alice",
		ReviewerRoles: []string{"manager"},
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestForeignTaskIndistinguishableFromMissing(t *testing.T) {
	svc, _, _, task := approvalFixture(t)
	stranger := models.Owner{Type: "team", ID: "team-2"}

	_, err := svc.GetTask(context.Background(), stranger, task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = svc.Approve(context.Background(), stranger, task.ID, ActionInput{
		ReviewerID:    "mallory",
		ReviewerRoles: []string{"manager"},
	})
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestApproveAppendsToHistory(t *testing.T) {
	svc, _, _, task := approvalFixture(t)

	view, err := svc.Approve(context.Background(), testOwner, task.ID, ActionInput{
		ReviewerID:    "alice",
		ReviewerRoles: []string{"manager"},
	})
	require.NoError(t, err)
	require.Len(t, view.Actions, 1)

	comment := "not yet"
	view, err = svc.Reject(context.Background(), testOwner, task.ID, ActionInput{
		ReviewerID:    "bob",
		ReviewerRoles: []string{"finance"},
		Comment:       &comment,
	})
	require.NoError(t, err)
	require.Len(t, view.Actions, 2)
	assert.Equal(t, models.ActionApprove, view.Actions[0].ActionType)
	assert.Equal(t, models.ActionReject, view.Actions[1].ActionType)
}

func TestDiscardMixedBatch(t *testing.T) {
	svc, store, workflow, task := approvalFixture(t)

	done := &models.ApprovalTask{
		ID:         uuid.New(),
		WorkflowID: workflow.ID,
		ResourceID: "expense-done",
		Status:     models.TaskStatusCompleted,
		Workflow:   *workflow,
	}
	store.tasks[done.ID] = done
	missing := uuid.New()

	result, err := svc.Discard(context.Background(), testOwner, DiscardInput{
		TaskIDs:       []uuid.UUID{task.ID, done.ID, missing},
		ReviewerID:    "alice",
		ReviewerRoles: []string{"manager"},
	})
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{task.ID}, result.Discarded)
	assert.Len(t, result.Errors, 2)
	assert.Equal(t, models.TaskStatusDiscarded, task.Status)
	assert.Nil(t, task.NextReviewLevel)
}

func TestDiscardRequiresReviewer(t *testing.T) {
	svc, _, _, task := approvalFixture(t)

	_, err := svc.Discard(context.Background(), testOwner, DiscardInput{TaskIDs: []uuid.UUID{task.ID}})
	assert.ErrorIs(t, err, ErrReviewerRequired)
}

func TestDiscardRoleGate(t *testing.T) {
	svc, _, _, task := approvalFixture(t)

	result, err := svc.Discard(context.Background(), testOwner, DiscardInput{
		TaskIDs:       []uuid.UUID{task.ID},
		ReviewerID:    "eve",
		ReviewerRoles: []string{"intern"},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Discarded)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, task.ID, result.Errors[0].TaskID)
}
