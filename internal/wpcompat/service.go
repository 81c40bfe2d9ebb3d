// Package wpcompat emulates the slice of the WordPress REST API that blog
// publishing tools use: token exchange, post/tag/category creation and the
// batch endpoint.
package wpcompat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/pressbridge/internal/store"
	"github.com/example/pressbridge/internal/token"
)

type Options struct {
	PublicURL      string
	PublisherAgent string
	PostPath       string
	BatchMaxItems  int
}

// Request is one logical API call: a physical HTTP request or a batch item.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   json.RawMessage
	// Fallback is the batch-level credential, used only when the item sends
	// neither credential header.
	Fallback string
	// Issuer is the canonical site origin tokens must be bound to.
	Issuer string
}

// Response is an HTTP-shaped result, written directly for single requests and
// embedded as-is in batch output.
type Response struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    any               `json:"body"`
}

type Service struct {
	store  store.Store
	tokens *token.Service
	log    *zap.Logger
	opts   Options
	routes []route
	now    func() time.Time

	// mu serializes mutating requests so term upserts resolve
	// deterministically.
	mu sync.Mutex
}

func NewService(st store.Store, tokens *token.Service, log *zap.Logger, opts Options) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.PostPath == "" {
		opts.PostPath = "/blog/"
	}
	if opts.BatchMaxItems <= 0 {
		opts.BatchMaxItems = 25
	}
	s := &Service{store: st, tokens: tokens, log: log, opts: opts, now: time.Now}
	s.routes = newRoutes()
	return s
}

// authenticate runs step one of every pipeline.
func (s *Service) authenticate(req *Request) (token.Claims, *APIError) {
	if !s.tokens.Configured() {
		return token.Claims{}, errNotConfigured()
	}
	raw := ResolveCredential(req.Header.Get(HeaderToken), req.Header.Get("Authorization"), req.Fallback)
	if raw == "" {
		return token.Claims{}, errMissingToken()
	}
	claims, err := s.tokens.Verify(raw, req.Issuer)
	if err != nil {
		return token.Claims{}, errorFromToken(err)
	}
	return claims, nil
}

// exec authenticates req and hands it to h. Callers hold s.mu.
func (s *Service) exec(ctx context.Context, h handlerFunc, req *Request) Response {
	claims, apiErr := s.authenticate(req)
	if apiErr != nil {
		return apiErr.response()
	}
	return h(s, ctx, req, claims)
}

type postInput struct {
	Title      TextField `json:"title"`
	Content    TextField `json:"content"`
	Excerpt    TextField `json:"excerpt"`
	Slug       string    `json:"slug"`
	Status     string    `json:"status"`
	Date       string    `json:"date"`
	DateGMT    string    `json:"date_gmt"`
	Tags       []TermRef `json:"tags"`
	Categories []TermRef `json:"categories"`
}

type termInput struct {
	Name        TextField `json:"name"`
	Slug        string    `json:"slug"`
	Description TextField `json:"description"`
}

var postStatuses = map[string]bool{
	"publish": true, "draft": true, "pending": true, "private": true, "future": true,
}

func decodeBody(body json.RawMessage, dst any) *APIError {
	if len(body) == 0 {
		body = json.RawMessage("{}")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errInvalidJSON()
	}
	return nil
}

func (s *Service) createPost(ctx context.Context, req *Request, claims token.Claims) Response {
	var in postInput
	if apiErr := decodeBody(req.Body, &in); apiErr != nil {
		return apiErr.response()
	}

	p := store.NewPost{
		Title:    in.Title.String(),
		Content:  in.Content.String(),
		Excerpt:  in.Excerpt.String(),
		Status:   in.Status,
		AuthorID: claims.UserID(),
	}
	if p.Title == "" && p.Content == "" && p.Excerpt == "" {
		return newError(http.StatusBadRequest, "empty_content", "Content, title, and excerpt are empty.").response()
	}
	if p.Status == "" {
		p.Status = "publish"
	}
	if !postStatuses[p.Status] {
		return errInvalidParam("Invalid parameter(s): status").response()
	}
	p.Slug = Slugify(in.Slug)
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	published, err := parseDate(in.DateGMT, in.Date, s.now())
	if err != nil {
		return errInvalidParam("Invalid parameter(s): date").response()
	}
	p.PublishedAt = published

	var post store.Post
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		tagIDs, err := resolveTerms(ctx, tx, store.KindTag, in.Tags)
		if err != nil {
			return err
		}
		categoryIDs, err := resolveTerms(ctx, tx, store.KindCategory, in.Categories)
		if err != nil {
			return err
		}
		id, err := tx.CreatePost(ctx, p)
		if err != nil {
			return err
		}
		if err := tx.LinkPostTerms(ctx, id, tagIDs, categoryIDs); err != nil {
			return err
		}
		post = store.Post{
			ID: id, Title: p.Title, Content: p.Content, Excerpt: p.Excerpt, Slug: p.Slug,
			Status: p.Status, PublishedAt: p.PublishedAt, AuthorID: p.AuthorID,
			TagIDs: dedupe(tagIDs), CategoryIDs: dedupe(categoryIDs),
		}
		return nil
	})
	if err != nil {
		return s.persistFailure("create post", err)
	}

	s.log.Info("post created", zap.Int64("id", post.ID), zap.String("slug", post.Slug), zap.Int64s("tags", post.TagIDs))
	return Response{
		Status:  http.StatusCreated,
		Headers: map[string]string{"Location": req.Issuer + "/wp-json/wp/v2/posts/" + strconv.FormatInt(post.ID, 10)},
		Body:    s.shapePost(post, req.Issuer),
	}
}

func (s *Service) createTag(ctx context.Context, req *Request, _ token.Claims) Response {
	return s.createTerm(ctx, req, store.KindTag)
}

func (s *Service) createCategory(ctx context.Context, req *Request, _ token.Claims) Response {
	return s.createTerm(ctx, req, store.KindCategory)
}

func (s *Service) createTerm(ctx context.Context, req *Request, kind store.Kind) Response {
	var in termInput
	if apiErr := decodeBody(req.Body, &in); apiErr != nil {
		return apiErr.response()
	}
	name := in.Name.String()
	if name == "" {
		return newError(http.StatusBadRequest, "rest_missing_callback_param", "Missing parameter(s): name").response()
	}
	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(name)
	}
	if slug == "" {
		return errInvalidParam("Invalid parameter(s): slug").response()
	}

	var term store.Term
	var created bool
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		term, created, err = tx.UpsertTerm(ctx, kind, name, slug, in.Description.String())
		return err
	})
	if err != nil {
		return s.persistFailure("create "+kind.String(), err)
	}

	s.log.Info(kind.String()+" resolved", zap.Int64("id", term.ID), zap.String("slug", term.Slug), zap.Bool("created", created))
	return Response{
		Status:  http.StatusCreated,
		Headers: map[string]string{},
		Body:    s.shapeTerm(term, req.Issuer),
	}
}

// persistFailure reports validation errors raised inside a transaction as-is
// and everything else as rest_cannot_create.
func (s *Service) persistFailure(op string, err error) Response {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.response()
	}
	s.log.Error(op+" failed", zap.Error(err))
	return errCannotCreate().response()
}

// parseDate prefers the GMT value; both accept RFC 3339 or the zone-less
// WordPress form, read as UTC.
func parseDate(gmt, local string, now time.Time) (time.Time, error) {
	v := gmt
	if v == "" {
		v = local
	}
	if v == "" {
		return now.UTC().Truncate(time.Second), nil
	}
	for _, layout := range []string{time.RFC3339, wpDateLayout} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC().Truncate(time.Second), nil
		}
	}
	return time.Time{}, errors.New("unrecognized date")
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
