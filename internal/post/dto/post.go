package dto

import "blogpost-backend/internal/post/domain"

// PostRequest is the body of store and update.
type PostRequest struct {
	Title   string       `json:"title" binding:"required,max=255"`
	Content string       `json:"content" binding:"required,max=65535"`
	Tags    []domain.Tag `json:"tags" binding:"required,min=1,dive,oneof=php ruby java javascript bash"`
}

// FilterRequest is the query string of the listing endpoint.
type FilterRequest struct {
	Q            string `form:"q"`
	ItemsPerPage int    `form:"itemsPerPage" binding:"required,min=1,max=20"`
	Page         int    `form:"page" binding:"required,min=1"`
	Title        string `form:"title"`
	Content      string `form:"content"`
	Tags         string `form:"tags" binding:"omitempty,oneof=php ruby java javascript bash"`
	SortBy       string `form:"sortBy" binding:"omitempty,oneof=title content"`
	OrderBy      string `form:"orderBy" binding:"omitempty,oneof=asc desc"`
}

func (r FilterRequest) Filter() domain.Filter {
	return domain.Filter{
		Query:        r.Q,
		Title:        r.Title,
		Content:      r.Content,
		Tag:          domain.Tag(r.Tags),
		SortBy:       domain.SortField(r.SortBy),
		Descending:   r.OrderBy == "desc",
		ItemsPerPage: r.ItemsPerPage,
		Page:         r.Page,
	}
}

// ListResponse is one page of posts.
type ListResponse struct {
	Posts      []*domain.Post `json:"posts"`
	Items      int            `json:"items"`
	TotalItems int64          `json:"totalItems"`
	TotalPages int            `json:"totalPages"`
	Page       int            `json:"page"`
}

func NewListResponse(p *domain.Page) ListResponse {
	posts := p.Items
	if posts == nil {
		posts = []*domain.Post{}
	}
	return ListResponse{
		Posts:      posts,
		Items:      len(posts),
		TotalItems: p.TotalItems,
		TotalPages: p.TotalPages(),
		Page:       p.Page,
	}
}
