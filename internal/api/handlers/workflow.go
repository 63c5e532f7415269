package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/flowgate-io/flowgate/internal/api/dto"
	"github.com/flowgate-io/flowgate/internal/domain/services"
	"github.com/flowgate-io/flowgate/internal/pkg/validator"
)

type WorkflowHandler struct {
	workflowSvc *services.WorkflowService
}

func NewWorkflowHandler(workflowSvc *services.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{workflowSvc: workflowSvc}
}

func (h *WorkflowHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		dto.BadRequest(w, "invalid request body")
		return
	}
	if err := validator.Validate(&req); err != nil {
		dto.ValidationErrorResponse(w, err)
		return
	}

	levels := make([]services.ApprovalLevelInput, len(req.Approvals))
	for i, lvl := range req.Approvals {
		levels[i] = services.ApprovalLevelInput{
			Name:                   lvl.Name,
			Level:                  lvl.Level,
			AllowedRoles:           lvl.AllowedRoles,
			ApprovalCountsRequired: lvl.ApprovalCountsRequired,
		}
	}

	workflow, err := h.workflowSvc.Create(r.Context(), requestOwner(r), services.CreateWorkflowInput{
		Name:         req.Name,
		ResourceType: req.ResourceType,
		Enabled:      req.Enabled,
		Approvals:    levels,
	})
	if err != nil {
		dto.HandleServiceError(w, err)
		return
	}

	dto.Created(w, workflow)
}

func (h *WorkflowHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "workflowID")
	if !ok {
		dto.BadRequest(w, "invalid workflow ID")
		return
	}

	workflow, err := h.workflowSvc.GetByID(r.Context(), requestOwner(r), id)
	if err != nil {
		dto.HandleServiceError(w, err)
		return
	}

	dto.OK(w, workflow)
}

func (h *WorkflowHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := listOptions(r, "created_at", "updated_at", "name")

	workflows, total, err := h.workflowSvc.List(r.Context(), requestOwner(r), opts)
	if err != nil {
		dto.InternalServerError(w, "failed to list workflows")
		return
	}

	dto.JSONWithMeta(w, http.StatusOK, workflows, listMeta(opts, total))
}

func (h *WorkflowHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "workflowID")
	if !ok {
		dto.BadRequest(w, "invalid workflow ID")
		return
	}

	var req dto.UpdateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		dto.BadRequest(w, "invalid request body")
		return
	}
	if err := validator.Validate(&req); err != nil {
		dto.ValidationErrorResponse(w, err)
		return
	}

	workflow, err := h.workflowSvc.Update(r.Context(), requestOwner(r), id, services.UpdateWorkflowInput{
		Name:    req.Name,
		Enabled: req.Enabled,
	})
	if err != nil {
		dto.HandleServiceError(w, err)
		return
	}

	dto.OK(w, workflow)
}
