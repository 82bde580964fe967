package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"blogpost-backend/internal/post/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// gormPostRepository implements PostRepository using GORM
type gormPostRepository struct {
	db *gorm.DB
}

func NewGormPostRepository(db *gorm.DB) PostRepository {
	return &gormPostRepository{db: db}
}

func (r *gormPostRepository) Create(ctx context.Context, post *domain.Post) error {
	if post.ID == "" {
		post.ID = uuid.New().String()
	}
	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *gormPostRepository) FindByID(ctx context.Context, id string) (*domain.Post, error) {
	var post domain.Post
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

func (r *gormPostRepository) FindByIDs(ctx context.Context, ids []string, f domain.Filter) ([]*domain.Post, error) {
	if len(ids) == 0 {
		return []*domain.Post{}, nil
	}
	var posts []*domain.Post
	err := strict(r.db.WithContext(ctx).Where("id IN ?", ids), f).Find(&posts).Error
	return posts, err
}

func (r *gormPostRepository) Update(ctx context.Context, post *domain.Post) error {
	post.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(post).Error
}

func (r *gormPostRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&domain.Post{}, "id = ?", id).Error
}

func (r *gormPostRepository) Filter(ctx context.Context, f domain.Filter) (*domain.Page, error) {
	var posts []*domain.Post
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Post{})
	if f.Query != "" {
		like := "%" + escapeLike(f.Query) + "%"
		query = query.Where(`title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\'`, like, like)
	}
	query = strict(query, f)

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	if f.SortBy != "" {
		query = query.Order(orderClause(string(f.SortBy), f.Descending))
	}
	err := query.Order("created_at DESC").Order("id").
		Limit(f.ItemsPerPage).Offset(f.Offset()).Find(&posts).Error
	if err != nil {
		return nil, err
	}

	return &domain.Page{Items: posts, TotalItems: total, Page: f.Page, PerPage: f.ItemsPerPage}, nil
}

func (r *gormPostRepository) Each(ctx context.Context, size int, fn func([]*domain.Post) error) error {
	var batch []*domain.Post
	res := r.db.WithContext(ctx).Order("id").FindInBatches(&batch, size, func(_ *gorm.DB, _ int) error {
		return fn(batch)
	})
	return res.Error
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user input match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// strict applies the exact-match filters shared by listing and search.
func strict(query *gorm.DB, f domain.Filter) *gorm.DB {
	if f.Title != "" {
		query = query.Where("title = ?", f.Title)
	}
	if f.Content != "" {
		query = query.Where("content = ?", f.Content)
	}
	if f.Tag != "" {
		query = query.Where("tags LIKE ?", `%"`+string(f.Tag)+`"%`)
	}
	return query
}

func orderClause(column string, desc bool) string {
	switch column {
	case "title", "content":
	default:
		column = "created_at"
	}
	if desc {
		return column + " DESC"
	}
	return column + " ASC"
}
