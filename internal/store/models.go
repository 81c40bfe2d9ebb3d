package store

import (
	"strings"
	"time"
)

// Kind selects a term namespace. Tags and categories never share slugs.
type Kind int

const (
	KindTag Kind = iota
	KindCategory
)

func (k Kind) String() string {
	if k == KindCategory {
		return "category"
	}
	return "tag"
}

// Taxonomy is the label reported to API clients.
func (k Kind) Taxonomy() string {
	if k == KindCategory {
		return "category"
	}
	return "post_tag"
}

func (k Kind) table() string {
	if k == KindCategory {
		return "categories"
	}
	return "tags"
}

func (k Kind) linkTable() string {
	if k == KindCategory {
		return "post_categories"
	}
	return "post_tags"
}

func (k Kind) linkColumn() string {
	if k == KindCategory {
		return "category_id"
	}
	return "tag_id"
}

// Term is a tag or a category.
type Term struct {
	ID          int64
	Kind        Kind
	Name        string
	Slug        string
	Description string
}

// Post is a stored post with the ids of its linked terms in link order.
type Post struct {
	ID          int64
	Title       string
	Content     string
	Excerpt     string
	Slug        string
	Status      string
	PublishedAt time.Time
	AuthorID    int64
	TagIDs      []int64
	CategoryIDs []int64
}

// NewPost carries the fields of a post about to be inserted.
type NewPost struct {
	Title       string
	Content     string
	Excerpt     string
	Slug        string
	Status      string
	PublishedAt time.Time
	AuthorID    int64
}

// PostFilter selects a page of posts. Page is 1-indexed. Empty Slug and
// Status match every post.
type PostFilter struct {
	Slug    string
	Status  string
	Page    int
	PerPage int
}

func (f PostFilter) where() (string, []any) {
	var conds []string
	var args []any
	if f.Slug != "" {
		conds = append(conds, "slug = ?")
		args = append(args, f.Slug)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (f PostFilter) normalize() PostFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = 10
	}
	return f
}

// timeLayout sorts lexicographically in chronological order.
const timeLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }
