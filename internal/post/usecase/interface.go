package usecase

import (
	"context"

	authdomain "blogpost-backend/internal/auth/domain"
	"blogpost-backend/internal/post/domain"
	"blogpost-backend/internal/post/dto"
)

// PostUsecase defines the interface for post business logic
type PostUsecase interface {
	List(ctx context.Context, f domain.Filter) (*domain.Page, error)
	Create(ctx context.Context, user *authdomain.User, req *dto.PostRequest) (*domain.Post, error)
	Get(ctx context.Context, id string) (*domain.Post, error)
	// Update and Delete run the ownership policy before touching storage.
	Update(ctx context.Context, user *authdomain.User, id string, req *dto.PostRequest) (*domain.Post, error)
	Delete(ctx context.Context, user *authdomain.User, id string) error
}
