package usecase

import (
	"context"
	"fmt"

	"blogpost-backend/internal/post/domain"
	"blogpost-backend/internal/post/events"
	"blogpost-backend/internal/post/repository"
	"blogpost-backend/internal/post/search"
	"blogpost-backend/pkg/logger"
	"blogpost-backend/pkg/metrics"

	"go.uber.org/zap"
)

const reindexBatchSize = 100

// Indexer keeps the search backend in step with the posts table.
type Indexer struct {
	postRepo repository.PostRepository
	searcher search.Searcher
	log      *zap.Logger
}

func NewIndexer(postRepo repository.PostRepository, searcher search.Searcher) *Indexer {
	return &Indexer{postRepo: postRepo, searcher: searcher, log: logger.Named("Indexer")}
}

// Handle applies one index event. It satisfies events.Handler.
func (i *Indexer) Handle(ctx context.Context, e events.Event) error {
	err := i.apply(ctx, e)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.IndexEvents.WithLabelValues(string(e.Type), result).Inc()
	return err
}

func (i *Indexer) apply(ctx context.Context, e events.Event) error {
	switch e.Type {
	case events.TypeIndexed:
		post, err := i.postRepo.FindByID(ctx, e.PostID)
		if err != nil {
			return fmt.Errorf("load post %s: %w", e.PostID, err)
		}
		if post == nil {
			i.log.Debug("post gone before indexing", zap.String("post_id", e.PostID))
			return nil
		}
		return i.searcher.Upsert(ctx, search.FromPost(post))

	case events.TypeRemoved:
		return i.searcher.Delete(ctx, e.PostID)

	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
}

// Reindex clears the backend and loads every live post into it.
func (i *Indexer) Reindex(ctx context.Context) (int, error) {
	if err := i.searcher.Reset(ctx); err != nil {
		return 0, fmt.Errorf("reset index: %w", err)
	}

	count := 0
	err := i.postRepo.Each(ctx, reindexBatchSize, func(posts []*domain.Post) error {
		for _, p := range posts {
			if err := i.searcher.Upsert(ctx, search.FromPost(p)); err != nil {
				return err
			}
			count++
		}
		i.log.Info("indexed batch", zap.Int("total", count))
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("reindex: %w", err)
	}
	return count, nil
}
