package search

import (
	"context"
	"fmt"
	"os"
	"sync"

	"blogpost-backend/pkg/config"
	"blogpost-backend/pkg/logger"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
	"go.uber.org/zap"
)

// ChromaSearcher ranks posts by embedding distance in a Chroma collection.
type ChromaSearcher struct {
	client    chroma.Client
	embedFunc *gemini.GeminiEmbeddingFunction
	name      string

	mu         sync.RWMutex
	collection chroma.Collection
}

func NewChromaSearcher(ctx context.Context, cfg *config.Config) (*ChromaSearcher, error) {
	if cfg.ChromaURL == "" && cfg.ChromaAPIKey == "" {
		return nil, fmt.Errorf("CHROMA_URL or CHROMA_API_KEY is required")
	}

	if cfg.GeminiApiKey != "" {
		os.Setenv("GEMINI_API_KEY", cfg.GeminiApiKey)
	}

	embedFunc, err := gemini.NewGeminiEmbeddingFunction(
		gemini.WithEnvAPIKey(),
		gemini.WithDefaultModel("text-embedding-004"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini embedding function: %w", err)
	}

	client, err := chroma.NewHTTPClient(clientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Chroma client: %w", err)
	}

	s := &ChromaSearcher{client: client, embedFunc: embedFunc, name: cfg.ChromaCollection}
	if err := s.open(ctx); err != nil {
		return nil, err
	}

	logger.Named("Chroma").Info("collection ready", zap.String("collection", s.name))
	return s, nil
}

// clientOptions targets a self-hosted server when CHROMA_URL is set and
// Chroma Cloud otherwise.
func clientOptions(cfg *config.Config) []chroma.ClientOption {
	var opts []chroma.ClientOption
	if cfg.ChromaURL != "" {
		opts = append(opts, chroma.WithBaseURL(cfg.ChromaURL))
	} else {
		opts = append(opts, chroma.WithBaseURL(chroma.ChromaCloudEndpoint))
	}
	if cfg.ChromaAPIKey != "" {
		opts = append(opts, chroma.WithCloudAPIKey(cfg.ChromaAPIKey))
	}
	switch {
	case cfg.ChromaDatabase != "" && cfg.ChromaTenant != "":
		opts = append(opts, chroma.WithDatabaseAndTenant(cfg.ChromaDatabase, cfg.ChromaTenant))
	case cfg.ChromaTenant != "":
		opts = append(opts, chroma.WithTenant(cfg.ChromaTenant))
	}
	return opts
}

func (s *ChromaSearcher) open(ctx context.Context) error {
	collection, err := s.client.GetOrCreateCollection(ctx, s.name, chroma.WithEmbeddingFunctionCreate(s.embedFunc))
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	s.mu.Lock()
	s.collection = collection
	s.mu.Unlock()
	return nil
}

func (s *ChromaSearcher) current() chroma.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection
}

func (s *ChromaSearcher) Upsert(ctx context.Context, doc Document) error {
	metadata, err := chroma.NewDocumentMetadataFromMap(map[string]interface{}{
		"user_id": doc.UserID,
		"post_id": doc.ID,
		"title":   doc.Title,
	})
	if err != nil {
		return fmt.Errorf("failed to create metadata: %w", err)
	}

	err = s.current().Upsert(
		ctx,
		chroma.WithIDs(chroma.DocumentID(doc.ID)),
		chroma.WithMetadatas(metadata),
		chroma.WithTexts(doc.text()),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert post %s: %w", doc.ID, err)
	}
	return nil
}

func (s *ChromaSearcher) Delete(ctx context.Context, id string) error {
	if err := s.current().Delete(ctx, chroma.WithIDsDelete(chroma.DocumentID(id))); err != nil {
		return fmt.Errorf("failed to delete post %s: %w", id, err)
	}
	return nil
}

// Search converts distances to scores so that the nearest post ranks first.
func (s *ChromaSearcher) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	results, err := s.current().Query(ctx, chroma.WithQueryTexts(query), chroma.WithNResults(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	if results == nil || results.CountGroups() == 0 {
		return []Hit{}, nil
	}

	idGroups := results.GetIDGroups()
	distanceGroups := results.GetDistancesGroups()
	if len(idGroups) == 0 {
		return []Hit{}, nil
	}

	hits := make([]Hit, 0, len(idGroups[0]))
	for i, id := range idGroups[0] {
		hit := Hit{ID: string(id)}
		if len(distanceGroups) > 0 && i < len(distanceGroups[0]) {
			hit.Score = 1 / (1 + float64(distanceGroups[0][i]))
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Reset drops and recreates the collection.
func (s *ChromaSearcher) Reset(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.name); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", s.name, err)
	}
	return s.open(ctx)
}
