package repository

import (
	"context"

	"blogpost-backend/internal/post/domain"
)

// PostRepository defines the interface for post data access
type PostRepository interface {
	Create(ctx context.Context, post *domain.Post) error

	// FindByID returns nil, nil for unknown and soft-deleted ids.
	FindByID(ctx context.Context, id string) (*domain.Post, error)

	// FindByIDs loads live posts by id applying the strict filters of f.
	// Result order is unspecified.
	FindByIDs(ctx context.Context, ids []string, f domain.Filter) ([]*domain.Post, error)

	Update(ctx context.Context, post *domain.Post) error

	// Delete soft-deletes a post.
	Delete(ctx context.Context, id string) error

	// Filter runs a paginated listing without the search backend.
	Filter(ctx context.Context, f domain.Filter) (*domain.Page, error)

	// Each streams live posts in batches of size.
	Each(ctx context.Context, size int, fn func([]*domain.Post) error) error
}
