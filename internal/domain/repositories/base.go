package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ListOptions struct {
	Offset  int
	Limit   int
	OrderBy string
	Order   string // asc or desc
}

// NewListOptions builds pagination options from raw limit/offset/orderBy/
// orderByDir query parameters. orderBy is checked against the caller-supplied
// allow-list so it can be interpolated into the ORDER BY clause.
func NewListOptions(limit, offset int, orderBy, orderDir string, sortable ...string) *ListOptions {
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	allowed := false
	for _, col := range sortable {
		if orderBy == col {
			allowed = true
			break
		}
	}
	if !allowed {
		if len(sortable) > 0 {
			orderBy = sortable[0]
		} else {
			orderBy = "created_at"
		}
	}
	if orderDir != "asc" {
		orderDir = "desc"
	}

	return &ListOptions{
		Offset:  offset,
		Limit:   limit,
		OrderBy: orderBy,
		Order:   orderDir,
	}
}

type BaseRepository[T any] struct {
	db *gorm.DB
}

func NewBaseRepository[T any](db *gorm.DB) *BaseRepository[T] {
	return &BaseRepository[T]{db: db}
}

func (r *BaseRepository[T]) DB() *gorm.DB {
	return r.db
}

func (r *BaseRepository[T]) Create(ctx context.Context, entity *T) error {
	return r.db.WithContext(ctx).Create(entity).Error
}

func (r *BaseRepository[T]) Update(ctx context.Context, entity *T) error {
	return r.db.WithContext(ctx).Save(entity).Error
}

func (r *BaseRepository[T]) Delete(ctx context.Context, id uuid.UUID) error {
	var entity T
	return r.db.WithContext(ctx).Delete(&entity, "id = ?", id).Error
}

func (r *BaseRepository[T]) FindByID(ctx context.Context, id uuid.UUID) (*T, error) {
	var entity T
	err := r.db.WithContext(ctx).First(&entity, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *BaseRepository[T]) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

func paginate(query *gorm.DB, opts *ListOptions) *gorm.DB {
	if opts == nil {
		return query
	}
	if opts.OrderBy != "" {
		query = query.Order(opts.OrderBy + " " + opts.Order)
	}
	return query.Offset(opts.Offset).Limit(opts.Limit)
}
