package handlers

import (
	"net/http"

	"github.com/flowgate-io/flowgate/internal/api/dto"
	"github.com/flowgate-io/flowgate/internal/domain/repositories"
	"github.com/flowgate-io/flowgate/internal/domain/services"
)

type RunHandler struct {
	webhookSvc *services.WebhookService
}

func NewRunHandler(webhookSvc *services.WebhookService) *RunHandler {
	return &RunHandler{webhookSvc: webhookSvc}
}

func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := listOptions(r, "triggered_at")

	q := r.URL.Query()
	filter := repositories.RunFilter{
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
		TriggeredBy:  q.Get("triggered_by"),
	}

	runs, total, err := h.webhookSvc.ListRuns(r.Context(), filter, opts)
	if err != nil {
		dto.InternalServerError(w, "failed to list runs")
		return
	}

	dto.JSONWithMeta(w, http.StatusOK, runs, listMeta(opts, total))
}

func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "runID")
	if !ok {
		dto.BadRequest(w, "invalid run ID")
		return
	}

	detail, err := h.webhookSvc.GetRun(r.Context(), id)
	if err != nil {
		dto.HandleServiceError(w, err)
		return
	}

	dto.OK(w, detail)
}

func (h *RunHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "runID")
	if !ok {
		dto.BadRequest(w, "invalid run ID")
		return
	}

	opts := listOptions(r, "started_at")

	executions, total, err := h.webhookSvc.ListExecutions(r.Context(), id, opts)
	if err != nil {
		dto.HandleServiceError(w, err)
		return
	}

	dto.JSONWithMeta(w, http.StatusOK, executions, listMeta(opts, total))
}
