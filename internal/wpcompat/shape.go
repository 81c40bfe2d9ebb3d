package wpcompat

import (
	"strings"

	"github.com/example/pressbridge/internal/store"
)

// wpDateLayout is how WordPress prints dates: no zone designator.
const wpDateLayout = "2006-01-02T15:04:05"

type renderedField struct {
	Rendered  string `json:"rendered"`
	Raw       string `json:"raw,omitempty"`
	Protected *bool  `json:"protected,omitempty"`
}

type postResponse struct {
	ID          int64         `json:"id"`
	Date        string        `json:"date"`
	DateGMT     string        `json:"date_gmt"`
	Modified    string        `json:"modified"`
	Slug        string        `json:"slug"`
	Status      string        `json:"status"`
	Type        string        `json:"type"`
	Link        string        `json:"link"`
	Title       renderedField `json:"title"`
	Content     renderedField `json:"content"`
	Excerpt     renderedField `json:"excerpt"`
	Author      int64         `json:"author"`
	Tags        []int64       `json:"tags"`
	Categories  []int64       `json:"categories"`
	TagIDs      []int64       `json:"tagIds"`
	CategoryIDs []int64       `json:"categoryIds"`
}

type termResponse struct {
	ID          int64  `json:"id"`
	Count       int    `json:"count"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Taxonomy    string `json:"taxonomy"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

func (s *Service) shapePost(p store.Post, origin string) postResponse {
	date := p.PublishedAt.UTC().Format(wpDateLayout)
	protected := false
	tags, cats := nonNil(p.TagIDs), nonNil(p.CategoryIDs)
	return postResponse{
		ID:          p.ID,
		Date:        date,
		DateGMT:     date,
		Modified:    date,
		Slug:        p.Slug,
		Status:      p.Status,
		Type:        "post",
		Link:        s.link(origin, p.Slug),
		Title:       renderedField{Rendered: p.Title, Raw: p.Title},
		Content:     renderedField{Rendered: p.Content, Raw: p.Content, Protected: &protected},
		Excerpt:     renderedField{Rendered: p.Excerpt, Raw: p.Excerpt, Protected: &protected},
		Author:      p.AuthorID,
		Tags:        tags,
		Categories:  cats,
		TagIDs:      tags,
		CategoryIDs: cats,
	}
}

func (s *Service) shapeTerm(t store.Term, origin string) termResponse {
	return termResponse{
		ID:          t.ID,
		Name:        t.Name,
		Slug:        t.Slug,
		Taxonomy:    t.Kind.Taxonomy(),
		Description: t.Description,
		Link:        s.link(origin, t.Kind.String()+"/"+t.Slug),
	}
}

func (s *Service) link(origin, rest string) string {
	return strings.TrimRight(origin, "/") + s.opts.PostPath + rest + "/"
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
