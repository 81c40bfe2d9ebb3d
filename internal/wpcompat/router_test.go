package wpcompat

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/pressbridge/internal/token"
)

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/wp-json/wp/v2/posts":         "/posts",
		"/wp-json/wp/v2/posts/?x=1":    "/posts",
		"wp/v2/tags":                   "/tags",
		"/categories/":                 "/categories",
		"/wp-json":                     "/",
		"/wp-json/wp/v2/posts/12#frag": "/posts/12",
		"/wp-jsonx/posts":              "/wp-jsonx/posts",
		"":                             "/",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizePath(in), in)
	}
}

func TestMatch(t *testing.T) {
	s := NewService(nil, token.New("", "", ""), nil, Options{})

	_, ok := s.match("", "/posts")
	require.True(t, ok)
	_, ok = s.match("post", "/tags")
	require.True(t, ok)
	_, ok = s.match(http.MethodGet, "/posts")
	require.False(t, ok)
	_, ok = s.match(http.MethodPost, "/posts/1")
	require.False(t, ok)
}

func TestResolveCredential(t *testing.T) {
	cases := []struct {
		custom, auth, fallback string
		want                   string
	}{
		{"", "", "", ""},
		{"", "", "fb", "fb"},
		{"", "Bearer a", "", "a"},
		{"", "Bearer a", "fb", "a"},
		{"c", "", "", "c"},
		{"Bearer c", "", "fb", "c"},
		{"c", "Bearer a", "", "c"},
		{"c", "Bearer a", "fb", "c"},
		{"", "Basic xyz", "fb", ""},
		{"", "bearer  spaced ", "", "spaced"},
	}
	for _, tc := range cases {
		got := ResolveCredential(tc.custom, tc.auth, tc.fallback)
		require.Equal(t, tc.want, got, fmt.Sprintf("%+v", tc))
	}
}

func TestErrorFromToken(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{token.ErrNotConfigured, http.StatusInternalServerError, "server_not_configured"},
		{token.ErrInvalidUsername, http.StatusForbidden, "invalid_username"},
		{token.ErrIncorrectPassword, http.StatusForbidden, "incorrect_password"},
		{token.ErrMalformedToken, http.StatusForbidden, "rest_token_invalid"},
		{token.ErrExpired, http.StatusForbidden, "invalid_token"},
		{token.ErrNotYetValid, http.StatusForbidden, "invalid_token"},
		{fmt.Errorf("wrap: %w", token.ErrIssuerMismatch), http.StatusUnauthorized, "bad_issuer"},
		{token.ErrMalformedClaims, http.StatusUnauthorized, "bad_request"},
		{token.ErrInvalidSignature, http.StatusForbidden, "invalid_token"},
		{errors.New("other"), http.StatusForbidden, "invalid_token"},
	}
	for _, tc := range cases {
		got := errorFromToken(tc.err)
		require.Equal(t, tc.status, got.Status(), tc.err.Error())
		require.Equal(t, tc.code, got.Code, tc.err.Error())
	}
	require.Equal(t, "Expired token", errorFromToken(token.ErrExpired).Message)
}
