package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	authdomain "blogpost-backend/internal/auth/domain"
	"blogpost-backend/internal/post/domain"
	"blogpost-backend/internal/post/dto"
	"blogpost-backend/internal/post/events"
	"blogpost-backend/internal/post/policy"
	"blogpost-backend/internal/post/repository"
	"blogpost-backend/internal/post/search"
	"blogpost-backend/pkg/apperror"
	"blogpost-backend/pkg/logger"
	"blogpost-backend/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxSearchHits  = 1000
	publishTimeout = 5 * time.Second
)

// postUsecase implements PostUsecase interface
type postUsecase struct {
	postRepo  repository.PostRepository
	searcher  search.Searcher
	publisher events.Publisher
	log       *zap.Logger
}

func NewPostUsecase(postRepo repository.PostRepository, searcher search.Searcher, publisher events.Publisher) PostUsecase {
	return &postUsecase{
		postRepo:  postRepo,
		searcher:  searcher,
		publisher: publisher,
		log:       logger.Named("PostUsecase"),
	}
}

func (u *postUsecase) List(ctx context.Context, f domain.Filter) (*domain.Page, error) {
	if strings.TrimSpace(f.Query) == "" || u.searcher == nil {
		return u.filter(ctx, f)
	}

	hits, err := u.searcher.Search(ctx, f.Query, maxSearchHits)
	if err != nil {
		u.log.Warn("search backend failed, falling back to database filter", zap.Error(err))
		return u.filter(ctx, f)
	}

	ids := make([]string, 0, len(hits))
	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
		scores[h.ID] = h.Score
	}

	posts, err := u.postRepo.FindByIDs(ctx, ids, f)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load search hits: %w", err))
	}
	rank(posts, scores, f)

	page := &domain.Page{TotalItems: int64(len(posts)), Page: f.Page, PerPage: f.ItemsPerPage}
	start := min(f.Offset(), len(posts))
	end := min(start+f.ItemsPerPage, len(posts))
	page.Items = posts[start:end]
	return page, nil
}

func (u *postUsecase) filter(ctx context.Context, f domain.Filter) (*domain.Page, error) {
	page, err := u.postRepo.Filter(ctx, f)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("filter posts: %w", err))
	}
	return page, nil
}

// rank orders search results by the requested column, else by score.
func rank(posts []*domain.Post, scores map[string]float64, f domain.Filter) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		if f.SortBy != "" {
			x, y := a.Title, b.Title
			if f.SortBy == domain.SortByContent {
				x, y = a.Content, b.Content
			}
			if x != y {
				if f.Descending {
					return x > y
				}
				return x < y
			}
		}
		if scores[a.ID] != scores[b.ID] {
			return scores[a.ID] > scores[b.ID]
		}
		return a.ID < b.ID
	})
}

func (u *postUsecase) Create(ctx context.Context, user *authdomain.User, req *dto.PostRequest) (*domain.Post, error) {
	if user == nil {
		return nil, apperror.Unauthenticated("")
	}

	post := &domain.Post{
		UserID:  user.ID,
		Title:   req.Title,
		Content: req.Content,
		Tags:    uniqueTags(req.Tags),
	}
	if err := u.postRepo.Create(ctx, post); err != nil {
		return nil, apperror.Internal(fmt.Errorf("create post: %w", err))
	}

	u.emit(ctx, events.Indexed(post.ID))
	return post, nil
}

func (u *postUsecase) Get(ctx context.Context, id string) (*domain.Post, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperror.Validation(apperror.MsgValidation, apperror.MsgInvalidUUID)
	}

	post, err := u.postRepo.FindByID(ctx, id)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("find post: %w", err))
	}
	if post == nil {
		return nil, apperror.NotFound(apperror.MsgResourceNotFound)
	}
	return post, nil
}

func (u *postUsecase) Update(ctx context.Context, user *authdomain.User, id string, req *dto.PostRequest) (*domain.Post, error) {
	post, err := u.authorize(ctx, user, id)
	if err != nil {
		return nil, err
	}

	post.Title = req.Title
	post.Content = req.Content
	post.Tags = uniqueTags(req.Tags)
	if err := u.postRepo.Update(ctx, post); err != nil {
		return nil, apperror.Internal(fmt.Errorf("update post: %w", err))
	}

	u.emit(ctx, events.Indexed(post.ID))
	return post, nil
}

func (u *postUsecase) Delete(ctx context.Context, user *authdomain.User, id string) error {
	post, err := u.authorize(ctx, user, id)
	if err != nil {
		return err
	}

	if err := u.postRepo.Delete(ctx, post.ID); err != nil {
		return apperror.Internal(fmt.Errorf("delete post: %w", err))
	}

	u.emit(ctx, events.Removed(post.ID))
	return nil
}

// authorize loads the post and applies the ownership policy. Unknown ids are
// denied rather than reported as missing.
func (u *postUsecase) authorize(ctx context.Context, user *authdomain.User, id string) (*domain.Post, error) {
	var post *domain.Post
	if _, err := uuid.Parse(id); err == nil {
		post, err = u.postRepo.FindByID(ctx, id)
		if err != nil {
			return nil, apperror.Internal(fmt.Errorf("find post: %w", err))
		}
	}
	if err := policy.Modify(user, post); err != nil {
		return nil, err
	}
	return post, nil
}

// emit publishes an index event. Failures are logged and counted; the post
// mutation has already been committed and stands.
func (u *postUsecase) emit(ctx context.Context, e events.Event) {
	if u.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := u.publisher.Publish(ctx, e); err != nil {
		metrics.IndexEvents.WithLabelValues(string(e.Type), "publish_failed").Inc()
		u.log.Error("failed to publish index event",
			zap.String("type", string(e.Type)),
			zap.String("post_id", e.PostID),
			zap.Error(err),
		)
	}
}

func uniqueTags(tags []domain.Tag) []domain.Tag {
	seen := make(map[domain.Tag]struct{}, len(tags))
	out := make([]domain.Tag, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
