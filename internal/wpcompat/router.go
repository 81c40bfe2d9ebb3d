package wpcompat

import (
	"context"
	"net/http"
	"strings"

	"github.com/example/pressbridge/internal/token"
)

type handlerFunc func(s *Service, ctx context.Context, req *Request, claims token.Claims) Response

type route struct {
	method string
	path   string
	handle handlerFunc
}

// namespaces are stripped, in order, before matching.
var namespaces = []string{"/wp-json", "/wp/v2", "/batch/v1"}

func newRoutes() []route {
	return []route{
		{method: http.MethodPost, path: "/posts", handle: (*Service).createPost},
		{method: http.MethodPost, path: "/tags", handle: (*Service).createTag},
		{method: http.MethodPost, path: "/categories", handle: (*Service).createCategory},
	}
}

// NormalizePath drops the query string, fragment, API namespace prefixes and
// any trailing slash: "/wp-json/wp/v2/posts/?x=1" becomes "/posts".
func NormalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for _, ns := range namespaces {
		if p == ns {
			p = "/"
		} else if strings.HasPrefix(p, ns+"/") {
			p = p[len(ns):]
		}
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}

// match finds the handler for method and an already normalized path.
func (s *Service) match(method, path string) (handlerFunc, bool) {
	if method == "" {
		method = http.MethodPost
	}
	for _, rt := range s.routes {
		if strings.EqualFold(rt.method, method) && rt.path == path {
			return rt.handle, true
		}
	}
	return nil, false
}
