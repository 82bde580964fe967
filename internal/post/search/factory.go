package search

import (
	"context"
	"fmt"

	"blogpost-backend/pkg/config"
)

// New builds the backend selected by SEARCH_DRIVER.
func New(ctx context.Context, cfg *config.Config) (Searcher, error) {
	switch cfg.SearchDriver {
	case config.SearchDriverChroma:
		return NewChromaSearcher(ctx, cfg)
	case config.SearchDriverMemory, "":
		return NewMemorySearcher(), nil
	default:
		return nil, fmt.Errorf("unknown search driver %q", cfg.SearchDriver)
	}
}
