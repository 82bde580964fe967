package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	authdomain "blogpost-backend/internal/auth/domain"
	"blogpost-backend/internal/post/domain"
	"blogpost-backend/internal/post/dto"
	"blogpost-backend/internal/post/events"
	"blogpost-backend/internal/post/repository"
	"blogpost-backend/internal/post/search"
	"blogpost-backend/pkg/apperror"
	"blogpost-backend/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// recorder collects events and optionally forwards them to a handler.
type recorder struct {
	mu      sync.Mutex
	events  []events.Event
	forward events.Handler
	err     error
}

func (r *recorder) Publish(ctx context.Context, e events.Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.forward != nil {
		return r.forward.Handle(ctx, e)
	}
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type mockSearcher struct {
	mock.Mock
	search.Searcher
}

func (m *mockSearcher) Search(ctx context.Context, query string, limit int) ([]search.Hit, error) {
	args := m.Called(ctx, query, limit)
	hits, _ := args.Get(0).([]search.Hit)
	return hits, args.Error(1)
}

type fixture struct {
	uc       PostUsecase
	repo     repository.PostRepository
	searcher *search.MemorySearcher
	indexer  *Indexer
	events   *recorder
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewInMemory(uuid.NewString())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Post{}))

	repo := repository.NewGormPostRepository(db)
	searcher := search.NewMemorySearcher()
	indexer := NewIndexer(repo, searcher)
	rec := &recorder{forward: indexer}

	return &fixture{
		uc:       NewPostUsecase(repo, searcher, rec),
		repo:     repo,
		searcher: searcher,
		indexer:  indexer,
		events:   rec,
	}
}

var (
	alice = &authdomain.User{ID: "alice"}
	bob   = &authdomain.User{ID: "bob"}
)

func req(title, content string, tags ...domain.Tag) *dto.PostRequest {
	return &dto.PostRequest{Title: title, Content: content, Tags: tags}
}

func TestCreateGetEmitsIndexed(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	post, err := f.uc.Create(ctx, alice, req("Go", "channels", domain.TagBash, domain.TagBash))
	require.NoError(t, err)
	assert.Equal(t, "alice", post.UserID)
	assert.Equal(t, []domain.Tag{domain.TagBash}, post.Tags)
	assert.Equal(t, []events.Type{events.TypeIndexed}, f.events.types())
	assert.Equal(t, 1, f.searcher.Len())

	got, err := f.uc.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go", got.Title)
}

func TestGet_Errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.uc.Get(ctx, "not-a-uuid")
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = f.uc.Get(ctx, uuid.NewString())
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestUpdateDelete_Ownership(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	post, err := f.uc.Create(ctx, alice, req("mine", "c", domain.TagPHP))
	require.NoError(t, err)

	_, err = f.uc.Update(ctx, bob, post.ID, req("stolen", "c", domain.TagPHP))
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))
	assert.Equal(t, apperror.MsgOwnership, apperror.From(err).Message)

	err = f.uc.Delete(ctx, bob, post.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	_, err = f.uc.Update(ctx, alice, uuid.NewString(), req("x", "c", domain.TagPHP))
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden), "missing posts are denied, not 404")

	err = f.uc.Delete(ctx, alice, "garbage")
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	stored, err := f.repo.FindByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "mine", stored.Title, "denied mutations leave the post untouched")
	assert.Equal(t, []events.Type{events.TypeIndexed}, f.events.types())
}

func TestUpdateDelete_Owner(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	post, err := f.uc.Create(ctx, alice, req("draft", "c", domain.TagPHP))
	require.NoError(t, err)

	updated, err := f.uc.Update(ctx, alice, post.ID, req("final", "c2", domain.TagRuby))
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Title)

	hits, err := f.searcher.Search(ctx, "final", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	require.NoError(t, f.uc.Delete(ctx, alice, post.ID))
	_, err = f.uc.Get(ctx, post.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	assert.Zero(t, f.searcher.Len())
	assert.Equal(t, []events.Type{events.TypeIndexed, events.TypeIndexed, events.TypeRemoved}, f.events.types())
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	f := setup(t)
	f.events.err = errors.New("broker down")

	post, err := f.uc.Create(context.Background(), alice, req("kept", "c", domain.TagJava))
	require.NoError(t, err)

	stored, err := f.repo.FindByID(context.Background(), post.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestList_Search(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ruby, err := f.uc.Create(ctx, alice, req("Ruby blocks", "yield", domain.TagRuby))
	require.NoError(t, err)
	shell, err := f.uc.Create(ctx, bob, req("Shell", "ruby one-liners", domain.TagBash))
	require.NoError(t, err)
	_, err = f.uc.Create(ctx, bob, req("PHP", "arrays", domain.TagPHP))
	require.NoError(t, err)

	page, err := f.uc.List(ctx, domain.Filter{Query: "ruby", ItemsPerPage: 10, Page: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.TotalItems)
	require.Len(t, page.Items, 2)
	assert.Equal(t, ruby.ID, page.Items[0].ID, "title match ranks first")
	assert.Equal(t, shell.ID, page.Items[1].ID)

	page, err = f.uc.List(ctx, domain.Filter{Query: "ruby", ItemsPerPage: 1, Page: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.TotalItems)
	assert.Equal(t, 2, page.TotalPages())
	require.Len(t, page.Items, 1)
	assert.Equal(t, shell.ID, page.Items[0].ID)

	page, err = f.uc.List(ctx, domain.Filter{Query: "ruby", Tag: domain.TagBash, ItemsPerPage: 10, Page: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, shell.ID, page.Items[0].ID)

	page, err = f.uc.List(ctx, domain.Filter{Query: "ruby", SortBy: domain.SortByTitle, Descending: true, ItemsPerPage: 10, Page: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, shell.ID, page.Items[0].ID)

	page, err = f.uc.List(ctx, domain.Filter{Query: "ruby", ItemsPerPage: 10, Page: 5})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	require.NoError(t, f.uc.Delete(ctx, alice, ruby.ID))
	page, err = f.uc.List(ctx, domain.Filter{Query: "ruby", ItemsPerPage: 10, Page: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.TotalItems)
}

func TestList_WithoutQueryUsesRepository(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for _, title := range []string{"b", "a", "c"} {
		_, err := f.uc.Create(ctx, alice, req(title, "x", domain.TagPHP))
		require.NoError(t, err)
	}

	page, err := f.uc.List(ctx, domain.Filter{SortBy: domain.SortByTitle, ItemsPerPage: 2, Page: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.TotalItems)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "a", page.Items[0].Title)
}

func TestList_SearchFailureFallsBack(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.uc.Create(ctx, alice, req("Ruby", "x", domain.TagRuby))
	require.NoError(t, err)

	broken := &mockSearcher{}
	broken.On("Search", mock.Anything, "Ruby", maxSearchHits).Return(nil, errors.New("timeout"))
	uc := NewPostUsecase(f.repo, broken, nil)

	page, err := uc.List(ctx, domain.Filter{Query: "Ruby", ItemsPerPage: 10, Page: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.TotalItems)
	broken.AssertExpectations(t)
}

func TestReindex(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.uc.Create(ctx, alice, req("post", "x", domain.TagPHP))
		require.NoError(t, err)
	}
	gone, err := f.uc.Create(ctx, alice, req("gone", "x", domain.TagPHP))
	require.NoError(t, err)
	require.NoError(t, f.repo.Delete(ctx, gone.ID))

	require.NoError(t, f.searcher.Upsert(ctx, search.Document{ID: "stale", Title: "stale"}))

	n, err := f.indexer.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, f.searcher.Len())
}

func TestIndexer_HandleSkipsMissingPost(t *testing.T) {
	f := setup(t)
	assert.NoError(t, f.indexer.Handle(context.Background(), events.Indexed(uuid.NewString())))
	assert.Error(t, f.indexer.Handle(context.Background(), events.Event{Type: "post.renamed", PostID: "x"}))
}
