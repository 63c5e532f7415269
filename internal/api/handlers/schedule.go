package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/flowgate-io/flowgate/internal/api/dto"
	"github.com/flowgate-io/flowgate/internal/domain/services"
	"github.com/flowgate-io/flowgate/internal/pkg/validator"
)

type ScheduleHandler struct {
	scheduleSvc *services.ScheduleService
}

func NewScheduleHandler(scheduleSvc *services.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{scheduleSvc: scheduleSvc}
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		dto.BadRequest(w, "invalid request body")
		return
	}
	if err := validator.Validate(&req); err != nil {
		dto.ValidationErrorResponse(w, err)
		return
	}

	webhookID, err := uuid.Parse(req.WebhookID)
	if err != nil {
		dto.BadRequest(w, "invalid webhook ID")
		return
	}

	schedule, err := h.scheduleSvc.Create(r.Context(), requestOwner(r), services.CreateScheduleInput{
		WebhookID:   webhookID,
		Frequency:   req.Frequency,
		Content:     req.Content,
		Enabled:     req.Enabled,
		EndAt:       unixPtr(req.EndAt),
		TriggeredBy: req.TriggeredBy,
	})
	if err != nil {
		dto.HandleServiceError(w, err)
		return
	}

	dto.Created(w, schedule)
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "scheduleID")
	if !ok {
		dto.BadRequest(w, "invalid schedule ID")
		return
	}

	schedule, err := h.scheduleSvc.GetByID(r.Context(), requestOwner(r), id)
	if err != nil {
		dto.HandleServiceError(w, err)
		return
	}

	dto.OK(w, schedule)
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := listOptions(r, "created_at", "next_run_at")

	schedules, total, err := h.scheduleSvc.List(r.Context(), requestOwner(r), opts)
	if err != nil {
		dto.InternalServerError(w, "failed to list schedules")
		return
	}

	dto.JSONWithMeta(w, http.StatusOK, schedules, listMeta(opts, total))
}

func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "scheduleID")
	if !ok {
		dto.BadRequest(w, "invalid schedule ID")
		return
	}

	var req dto.UpdateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		dto.BadRequest(w, "invalid request body")
		return
	}
	if err := validator.Validate(&req); err != nil {
		dto.ValidationErrorResponse(w, err)
		return
	}

	schedule, err := h.scheduleSvc.Update(r.Context(), requestOwner(r), id, services.UpdateScheduleInput{
		Frequency:   req.Frequency,
		Content:     req.Content,
		Enabled:     req.Enabled,
		EndAt:       unixPtr(req.EndAt),
		TriggeredBy: req.TriggeredBy,
	})
	if err != nil {
		dto.HandleServiceError(w, err)
		return
	}

	dto.OK(w, schedule)
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "scheduleID")
	if !ok {
		dto.BadRequest(w, "invalid schedule ID")
		return
	}

	if err := h.scheduleSvc.Delete(r.Context(), requestOwner(r), id); err != nil {
		dto.HandleServiceError(w, err)
		return
	}

	dto.NoContent(w)
}

func unixPtr(ts *int64) *time.Time {
	if ts == nil {
		return nil
	}
	t := time.Unix(*ts, 0).UTC()
	return &t
}
