package search

import (
	"context"
	"strings"
	"unicode/utf8"

	"blogpost-backend/internal/post/domain"
)

// maxTextBytes caps what is sent to the embedding function.
const maxTextBytes = 10000

// Document is the searchable projection of a post.
type Document struct {
	ID      string
	UserID  string
	Title   string
	Content string
	Tags    []string
}

func FromPost(p *domain.Post) Document {
	tags := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		tags = append(tags, string(t))
	}
	return Document{ID: p.ID, UserID: p.UserID, Title: p.Title, Content: p.Content, Tags: tags}
}

// Hit is a matching document id; higher scores rank first.
type Hit struct {
	ID    string
	Score float64
}

// Searcher is a full-text index over posts.
type Searcher interface {
	Upsert(ctx context.Context, doc Document) error
	Delete(ctx context.Context, id string) error
	// Search returns at most limit hits ordered by descending score.
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
	// Reset drops every document.
	Reset(ctx context.Context) error
}

// text flattens a document for embedding backends.
func (d Document) text() string {
	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(d.Title)
	b.WriteString("\n\nTags: ")
	b.WriteString(strings.Join(d.Tags, ", "))
	b.WriteString("\n\nContent: ")
	b.WriteString(d.Content)
	return truncate(b.String(), maxTextBytes)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
