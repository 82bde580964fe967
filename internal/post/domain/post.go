package domain

import (
	"time"

	"gorm.io/gorm"
)

// Tag is one of the fixed post categories.
type Tag string

const (
	TagPHP        Tag = "php"
	TagRuby       Tag = "ruby"
	TagJava       Tag = "java"
	TagJavaScript Tag = "javascript"
	TagBash       Tag = "bash"
)

// Tags lists every allowed tag in display order.
var Tags = []Tag{TagPHP, TagRuby, TagJava, TagJavaScript, TagBash}

func (t Tag) Valid() bool {
	for _, known := range Tags {
		if t == known {
			return true
		}
	}
	return false
}

// Post is a blog entry owned by a single user
type Post struct {
	ID        string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string         `json:"user_id" gorm:"index;not null"`
	Title     string         `json:"title" gorm:"size:255;not null"`
	Content   string         `json:"content" gorm:"type:text;not null"`
	Tags      []Tag          `json:"tags" gorm:"serializer:json;type:text"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (p *Post) HasTag(tag Tag) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SortField is a column posts can be ordered by.
type SortField string

const (
	SortByTitle   SortField = "title"
	SortByContent SortField = "content"
)

// Filter narrows a post listing. Empty strings mean "no constraint".
type Filter struct {
	Query        string
	Title        string
	Content      string
	Tag          Tag
	SortBy       SortField
	Descending   bool
	ItemsPerPage int
	Page         int
}

func (f Filter) Offset() int {
	return (f.Page - 1) * f.ItemsPerPage
}

// Page is one slice of a listing.
type Page struct {
	Items      []*Post
	TotalItems int64
	Page       int
	PerPage    int
}

func (p Page) TotalPages() int {
	if p.TotalItems == 0 || p.PerPage <= 0 {
		return 0
	}
	return int((p.TotalItems + int64(p.PerPage) - 1) / int64(p.PerPage))
}
