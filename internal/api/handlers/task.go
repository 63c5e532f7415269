package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/flowgate-io/flowgate/internal/api/dto"
	"github.com/flowgate-io/flowgate/internal/domain/models"
	"github.com/flowgate-io/flowgate/internal/domain/services"
	"github.com/flowgate-io/flowgate/internal/pkg/validator"
)

type TaskHandler struct {
	approvalSvc *services.ApprovalService
}

func NewTaskHandler(approvalSvc *services.ApprovalService) *TaskHandler {
	return &TaskHandler{approvalSvc: approvalSvc}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		dto.BadRequest(w, "invalid request body")
		return
	}
	if err := validator.Validate(&req); err != nil {
		dto.ValidationErrorResponse(w, err)
		return
	}

	workflowID, err := uuid.Parse(req.WorkflowID)
	if err != nil {
		dto.BadRequest(w, "invalid workflow ID")
		return
	}

	task, err := h.approvalSvc.CreateTask(r.Context(), requestOwner(r), workflowID, req.ResourceID)
	if err != nil {
		dto.HandleServiceError(w, err)
		return
	}

	dto.Created(w, task)
}

func (h *TaskHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var req dto.BulkCreateTasksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		dto.BadRequest(w, "invalid request body")
		return
	}
	if err := validator.Validate(&req); err != nil {
		dto.ValidationErrorResponse(w, err)
		return
	}

	workflowID, err := uuid.Parse(req.WorkflowID)
	if err != nil {
		dto.BadRequest(w, "invalid workflow ID")
		return
	}

	tasks, err := h.approvalSvc.BulkCreateTasks(r.Context(), requestOwner(r), workflowID, req.ResourceIDs)
	if err != nil {
		dto.HandleServiceError(w, err)
		return
	}

	dto.Created(w, tasks)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "taskID")
	if !ok {
		dto.BadRequest(w, "invalid task ID")
		return
	}

	task, err := h.approvalSvc.GetTask(r.Context(), requestOwner(r), id)
	if err != nil {
		dto.HandleServiceError(w, err)
		return
	}

	dto.OK(w, task)
}

func (h *TaskHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.approvalSvc.Approve)
}

func (h *TaskHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.approvalSvc.Reject)
}

func (h *TaskHandler) review(w http.ResponseWriter, r *http.Request,
	act func(ctx context.Context, owner models.Owner, taskID uuid.UUID, input services.ActionInput) (*services.TaskView, error),
) {
	id, ok := uuidParam(r, "taskID")
	if !ok {
		dto.BadRequest(w, "invalid task ID")
		return
	}

	var req dto.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		dto.BadRequest(w, "invalid request body")
		return
	}
	if err := validator.Validate(&req); err != nil {
		dto.ValidationErrorResponse(w, err)
		return
	}

	task, err := act(r.Context(), requestOwner(r), id, services.ActionInput{
		ReviewerID:    req.ReviewerID,
		ReviewerRoles: req.ReviewerRoles,
		Comment:       req.Comment,
	})
	if err != nil {
		dto.HandleServiceError(w, err)
		return
	}

	dto.OK(w, task)
}

func (h *TaskHandler) Discard(w http.ResponseWriter, r *http.Request) {
	var req dto.DiscardTasksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		dto.BadRequest(w, "invalid request body")
		return
	}
	if err := validator.Validate(&req); err != nil {
		dto.ValidationErrorResponse(w, err)
		return
	}

	taskIDs := make([]uuid.UUID, len(req.TaskIDs))
	for i, raw := range req.TaskIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			dto.BadRequest(w, "invalid task ID: "+raw)
			return
		}
		taskIDs[i] = id
	}

	result, err := h.approvalSvc.Discard(r.Context(), requestOwner(r), services.DiscardInput{
		TaskIDs:       taskIDs,
		ReviewerID:    req.ReviewerID,
		ReviewerRoles: req.ReviewerRoles,
		Comment:       req.Comment,
	})
	if err != nil {
		dto.HandleServiceError(w, err)
		return
	}

	dto.OK(w, result)
}
