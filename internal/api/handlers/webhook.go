package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/flowgate-io/flowgate/internal/api/dto"
	"github.com/flowgate-io/flowgate/internal/domain/repositories"
	"github.com/flowgate-io/flowgate/internal/domain/services"
	"github.com/flowgate-io/flowgate/internal/pkg/validator"
)

type WebhookHandler struct {
	webhookSvc *services.WebhookService
	dispatcher *services.Dispatcher
}

func NewWebhookHandler(webhookSvc *services.WebhookService, dispatcher *services.Dispatcher) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc, dispatcher: dispatcher}
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		dto.BadRequest(w, "invalid request body")
		return
	}
	if err := validator.Validate(&req); err != nil {
		dto.ValidationErrorResponse(w, err)
		return
	}

	webhook, err := h.webhookSvc.Create(r.Context(), requestOwner(r), services.CreateWebhookInput{
		ResourceType:      req.ResourceType,
		ResourceID:        req.ResourceID,
		URL:               req.URL,
		Headers:           req.Headers,
		ConnectionTimeout: req.ConnectionTimeout,
		RequestTimeout:    req.RequestTimeout,
		Enabled:           req.Enabled,
	})
	if err != nil {
		dto.HandleServiceError(w, err)
		return
	}

	dto.Created(w, webhook)
}

func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "webhookID")
	if !ok {
		dto.BadRequest(w, "invalid webhook ID")
		return
	}

	webhook, err := h.webhookSvc.GetByID(r.Context(), requestOwner(r), id)
	if err != nil {
		dto.HandleServiceError(w, err)
		return
	}

	dto.OK(w, webhook)
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := listOptions(r, "created_at", "updated_at")

	q := r.URL.Query()
	filter := repositories.WebhookFilter{
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
	}
	if raw := q.Get("enabled"); raw != "" {
		enabled := raw == "true"
		filter.Enabled = &enabled
	}

	webhooks, total, err := h.webhookSvc.List(r.Context(), requestOwner(r), filter, opts)
	if err != nil {
		dto.InternalServerError(w, "failed to list webhooks")
		return
	}

	dto.JSONWithMeta(w, http.StatusOK, webhooks, listMeta(opts, total))
}

func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "webhookID")
	if !ok {
		dto.BadRequest(w, "invalid webhook ID")
		return
	}

	var req dto.UpdateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		dto.BadRequest(w, "invalid request body")
		return
	}
	if err := validator.Validate(&req); err != nil {
		dto.ValidationErrorResponse(w, err)
		return
	}

	webhook, err := h.webhookSvc.Update(r.Context(), requestOwner(r), id, services.UpdateWebhookInput{
		URL:               req.URL,
		Headers:           req.Headers,
		ConnectionTimeout: req.ConnectionTimeout,
		RequestTimeout:    req.RequestTimeout,
		Enabled:           req.Enabled,
	})
	if err != nil {
		dto.HandleServiceError(w, err)
		return
	}

	dto.OK(w, webhook)
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "webhookID")
	if !ok {
		dto.BadRequest(w, "invalid webhook ID")
		return
	}

	if err := h.webhookSvc.Delete(r.Context(), requestOwner(r), id); err != nil {
		dto.HandleServiceError(w, err)
		return
	}

	dto.NoContent(w)
}

// Trigger fans the event out to all matching subscriptions and blocks until
// every delivery has settled and the run is recorded.
func (h *WebhookHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req dto.TriggerWebhooksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		dto.BadRequest(w, "invalid request body")
		return
	}
	if err := validator.Validate(&req); err != nil {
		dto.ValidationErrorResponse(w, err)
		return
	}

	result, err := h.dispatcher.Trigger(r.Context(), services.TriggerInput{
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Content:      req.Content,
		Headers:      req.Headers,
		TriggeredBy:  req.TriggeredBy,
	})
	if err != nil {
		dto.HandleServiceError(w, err)
		return
	}

	dto.OK(w, result)
}
