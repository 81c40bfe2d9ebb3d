package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	cfg "github.com/example/pressbridge/internal/config"
)

func newTestServer(t *testing.T, mutate func(*cfg.Config)) *httptest.Server {
	t.Helper()
	c := &cfg.Config{
		DBAdapter:          "sqlite",
		SQLiteFile:         filepath.Join(t.TempDir(), "site.db"),
		JwtSecret:          "test-secret",
		PublishUsername:    "editor",
		PublishPassword:    "hunter2",
		PublisherAgent:     "BlogPublisher",
		PostPath:           "/blog/",
		BatchMaxItems:      25,
		TokenRatePerMinute: 100,
	}
	if mutate != nil {
		mutate(c)
	}
	st, err := openStore(context.Background(), c)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	srv := httptest.NewServer(newRouter(newApp(c, st, zaptest.NewLogger(t))))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any, header http.Header) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "BlogPublisher/1.0")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func exchange(t *testing.T, base string) string {
	t.Helper()
	resp, out := do(t, http.MethodPost, base+"/wp-json/jwt-auth/v1/token",
		map[string]string{"username": "editor", "password": "hunter2"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return out["token"].(string)
}

func TestPublishFlow(t *testing.T) {
	srv := newTestServer(t, nil)
	tok := exchange(t, srv.URL)
	auth := http.Header{"X-Publish-Token": {tok}}

	resp, out := do(t, http.MethodGet, srv.URL+"/can-publish", nil, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, out["can_publish"])

	resp, out = do(t, http.MethodPost, srv.URL+"/wp-json/batch/v1", map[string]any{
		"requests": []map[string]any{
			{"method": "POST", "path": "/wp/v2/tags", "body": map[string]any{"name": "Finance"}},
			{"method": "POST", "path": "/wp/v2/posts", "body": map[string]any{
				"title":   "Markets today",
				"content": "<p>Calm.</p>",
				"tags":    []any{"Finance"},
			}},
		},
	}, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	responses := out["responses"].([]any)
	require.Len(t, responses, 2)
	tag := responses[0].(map[string]any)["body"].(map[string]any)
	post := responses[1].(map[string]any)["body"].(map[string]any)
	require.Equal(t, "finance", tag["slug"])
	require.Equal(t, []any{tag["id"]}, post["tagIds"])

	resp, _ = do(t, http.MethodGet, srv.URL+"/wp-json/wp/v2/posts?slug=markets-today", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "1", resp.Header.Get("X-WP-Total"))
}

func TestNotConfiguredServer(t *testing.T) {
	srv := newTestServer(t, func(c *cfg.Config) { c.JwtSecret = "" })

	resp, out := do(t, http.MethodPost, srv.URL+"/tags", map[string]string{"name": "x"},
		http.Header{"Authorization": {"Bearer whatever"}})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "server_not_configured", out["code"])
}

func TestTokenExchangeIsRateLimited(t *testing.T) {
	srv := newTestServer(t, func(c *cfg.Config) { c.TokenRatePerMinute = 2 })

	for i := 0; i < 2; i++ {
		resp, _ := do(t, http.MethodPost, srv.URL+"/token-exchange", map[string]string{"username": "editor", "password": "nope"}, nil)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
	resp, out := do(t, http.MethodPost, srv.URL+"/token-exchange", map[string]string{"username": "editor", "password": "hunter2"}, nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "rate_limit_exceeded", out["code"])
}

func TestRateLimitIgnoresForwardedForByDefault(t *testing.T) {
	srv := newTestServer(t, func(c *cfg.Config) { c.TokenRatePerMinute = 1 })

	creds := map[string]string{"username": "editor", "password": "nope"}
	resp, _ := do(t, http.MethodPost, srv.URL+"/token-exchange", creds, http.Header{"X-Forwarded-For": {"10.0.0.1"}})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, srv.URL+"/token-exchange", creds, http.Header{"X-Forwarded-For": {"10.0.0.2"}})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestClientIPTrustsProxyOnlyWhenConfigured(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/token-exchange", nil)
	r.RemoteAddr = "192.0.2.7:4411"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	require.Equal(t, "192.0.2.7", (&App{}).clientIP(r))
	require.Equal(t, "203.0.113.9", (&App{trustProxy: true}).clientIP(r))
}

func TestAmbientRoutes(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, out := do(t, http.MethodGet, srv.URL+"/health", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", out["status"])
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	require.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	resp, out = do(t, http.MethodGet, srv.URL+"/ready", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, out["ready"])

	resp, _ = do(t, http.MethodOptions, srv.URL+"/wp-json/wp/v2/posts", nil, http.Header{"Origin": {"https://editor.example"}})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "https://editor.example", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "X-Publish-Token")

	resp, out = do(t, http.MethodGet, srv.URL+"/nowhere", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "not_found", out["code"])
}

func TestUnmatchedMethodIsNotFound(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/tags"},
		{http.MethodDelete, "/posts"},
		{http.MethodPut, "/wp-json/wp/v2/posts"},
		{http.MethodGet, "/batch"},
	} {
		resp, out := do(t, tc.method, srv.URL+tc.path, nil, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode, tc.method+" "+tc.path)
		require.Contains(t, resp.Header.Get("Content-Type"), "application/json")
		require.Equal(t, "not_found", out["code"])
	}
}

func TestRecoverReturnsJSON(t *testing.T) {
	app := &App{Log: zaptest.NewLogger(t)}
	h := app.Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal_server_error")
}
