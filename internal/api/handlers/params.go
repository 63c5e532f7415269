package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/flowgate-io/flowgate/internal/api/dto"
	"github.com/flowgate-io/flowgate/internal/api/middleware"
	"github.com/flowgate-io/flowgate/internal/domain/models"
	"github.com/flowgate-io/flowgate/internal/domain/repositories"
)

// requestOwner returns the calling owner placed in context by RequireOwner.
func requestOwner(r *http.Request) models.Owner {
	principal := middleware.GetOwnerFromContext(r.Context())
	if principal == nil {
		return models.Owner{}
	}
	return models.Owner{Type: principal.Type, ID: principal.ID}
}

// listOptions builds pagination options from the request's query string.
// sortable is the column allow-list; its first entry is the default order.
func listOptions(r *http.Request, sortable ...string) *repositories.ListOptions {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return repositories.NewListOptions(limit, offset, q.Get("order_by"), q.Get("order_dir"), sortable...)
}

func listMeta(opts *repositories.ListOptions, total int64) *dto.Meta {
	return &dto.Meta{Limit: opts.Limit, Offset: opts.Offset, Total: total}
}

func uuidParam(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}
