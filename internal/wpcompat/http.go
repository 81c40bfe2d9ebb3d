package wpcompat

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/example/pressbridge/internal/store"
	"github.com/example/pressbridge/internal/token"
)

const maxBodyBytes = 4 << 20

func (s *Service) issuer(r *http.Request) string {
	return token.IssuerFromRequest(r, s.opts.PublicURL)
}

func (s *Service) knownClient(r *http.Request) bool {
	return s.opts.PublisherAgent == "" || strings.Contains(r.UserAgent(), s.opts.PublisherAgent)
}

func readBody(r *http.Request) (json.RawMessage, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleTokenExchange trades the publishing credentials for a token.
// POST /token-exchange
func (s *Service) HandleTokenExchange(w http.ResponseWriter, r *http.Request) {
	var c credentials
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			WriteError(w, errInvalidParam("Invalid form body."))
			return
		}
		c.Username, c.Password = r.FormValue("username"), r.FormValue("password")
	default:
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&c); err != nil {
			WriteError(w, errInvalidJSON())
			return
		}
	}

	signed, claims, err := s.tokens.Issue(c.Username, c.Password, s.issuer(r))
	if err != nil {
		s.log.Warn("token exchange rejected", zap.Error(err))
		WriteError(w, errorFromToken(err))
		return
	}
	s.log.Info("token issued", zap.String("issuer", claims.Issuer), zap.Time("expires_at", claims.ExpiresAt.Time))
	WriteJSON(w, http.StatusOK, map[string]string{"token": signed})
}

// HandleCanPublish lets a client check its token before sending content.
// GET /can-publish
func (s *Service) HandleCanPublish(w http.ResponseWriter, r *http.Request) {
	if !s.knownClient(r) {
		WriteError(w, errUnknownClient())
		return
	}
	_, apiErr := s.authenticate(&Request{Method: r.Method, Path: r.URL.Path, Header: r.Header, Issuer: s.issuer(r)})
	if apiErr != nil {
		WriteError(w, apiErr)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"can_publish": true})
}

type discoveryRoute struct {
	Namespace string   `json:"namespace"`
	Methods   []string `json:"methods"`
	Href      string   `json:"href"`
}

// HandleDiscovery describes the routes this server answers.
// GET /discovery
func (s *Service) HandleDiscovery(w http.ResponseWriter, r *http.Request) {
	origin := s.issuer(r)
	routes := map[string]discoveryRoute{
		"/wp/v2/posts":         {Namespace: "wp/v2", Methods: []string{http.MethodGet, http.MethodPost}, Href: origin + "/wp-json/wp/v2/posts"},
		"/wp/v2/tags":          {Namespace: "wp/v2", Methods: []string{http.MethodPost}, Href: origin + "/wp-json/wp/v2/tags"},
		"/wp/v2/categories":    {Namespace: "wp/v2", Methods: []string{http.MethodPost}, Href: origin + "/wp-json/wp/v2/categories"},
		"/batch/v1":            {Namespace: "batch/v1", Methods: []string{http.MethodPost}, Href: origin + "/wp-json/batch/v1"},
		"/jwt-auth/v1/token":   {Namespace: "jwt-auth/v1", Methods: []string{http.MethodPost}, Href: origin + "/token-exchange"},
		"/publish/can-publish": {Namespace: "publish", Methods: []string{http.MethodGet}, Href: origin + "/can-publish"},
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"url":        origin,
		"namespaces": []string{"wp/v2", "batch/v1", "jwt-auth/v1"},
		"routes":     routes,
	})
}

// HandleListPosts is the public, paginated post listing. Only published
// posts are visible.
// GET /posts?per_page&page&slug
func (s *Service) HandleListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	perPage, err := intParam(q.Get("per_page"), 10, 1, 100)
	if err != nil {
		WriteError(w, errInvalidParam("Invalid parameter(s): per_page"))
		return
	}
	page, err := intParam(q.Get("page"), 1, 1, 0)
	if err != nil {
		WriteError(w, errInvalidParam("Invalid parameter(s): page"))
		return
	}
	filter := store.PostFilter{Slug: q.Get("slug"), Status: "publish", Page: page, PerPage: perPage}

	posts, err := s.store.ReadPosts(r.Context(), filter)
	if err != nil {
		s.log.Error("list posts failed", zap.Error(err))
		WriteError(w, newError(http.StatusInternalServerError, "rest_cannot_read", "Could not load posts."))
		return
	}
	total, err := s.store.CountPosts(r.Context(), filter)
	if err != nil {
		s.log.Error("count posts failed", zap.Error(err))
		WriteError(w, newError(http.StatusInternalServerError, "rest_cannot_read", "Could not load posts."))
		return
	}

	origin := s.issuer(r)
	out := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, s.shapePost(p, origin))
	}
	w.Header().Set("X-WP-Total", strconv.Itoa(total))
	w.Header().Set("X-WP-TotalPages", strconv.Itoa((total+perPage-1)/perPage))
	WriteJSON(w, http.StatusOK, out)
}

// intParam parses v, falling back to def when empty. max <= 0 means no upper
// bound.
func intParam(v string, def, min, max int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || (max > 0 && n > max) {
		return 0, errors.New("out of range")
	}
	return n, nil
}

func (s *Service) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	s.serveSingle(w, r, (*Service).createPost)
}

func (s *Service) HandleCreateTag(w http.ResponseWriter, r *http.Request) {
	s.serveSingle(w, r, (*Service).createTag)
}

func (s *Service) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	s.serveSingle(w, r, (*Service).createCategory)
}

func (s *Service) serveSingle(w http.ResponseWriter, r *http.Request, h handlerFunc) {
	if !s.knownClient(r) {
		WriteError(w, errUnknownClient())
		return
	}
	body, err := readBody(r)
	if err != nil {
		WriteError(w, errInvalidJSON())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	writeResponse(w, s.exec(r.Context(), h, &Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header,
		Body:   body,
		Issuer: s.issuer(r),
	}))
}

// HandleBatch runs many create calls in one round trip.
// POST /batch
func (s *Service) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var in BatchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&in); err != nil {
		WriteError(w, errInvalidJSON())
		return
	}
	fallback := ResolveCredential(r.Header.Get(HeaderToken), r.Header.Get("Authorization"), "")

	responses, apiErr := s.Dispatch(r.Context(), in.Requests, fallback, s.issuer(r))
	if apiErr != nil {
		WriteError(w, apiErr)
		return
	}
	WriteJSON(w, http.StatusOK, BatchResponse{Responses: responses})
}

// HandleNotFound answers any path no route matched.
func HandleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, errNotFound())
}
