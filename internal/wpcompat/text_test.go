package wpcompat

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/pressbridge/internal/store"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello, World! 2024":   "hello-world-2024",
		"  Go   Lang  ":        "go-lang",
		"already-a-slug":       "already-a-slug",
		"--dashes -- inside--": "dashes-inside",
		"Ünïcode":              "ncode",
		"!!!":                  "",
	}
	for in, want := range cases {
		require.Equal(t, want, Slugify(in), in)
	}
}

func TestTextFieldForms(t *testing.T) {
	var v struct {
		A TextField `json:"a"`
		B TextField `json:"b"`
		C TextField `json:"c"`
		D TextField `json:"d"`
		E TextField `json:"e"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{
		"a": "plain",
		"b": {"raw": "raw wins", "rendered": "<p>r</p>"},
		"c": {"raw": "", "rendered": "rendered only"},
		"d": null
	}`), &v))
	require.Equal(t, "plain", v.A.String())
	require.Equal(t, "raw wins", v.B.String())
	require.Equal(t, "rendered only", v.C.String())
	require.Equal(t, "", v.D.String())
	require.Nil(t, v.E.Plain)
	require.Nil(t, v.E.Object)

	var bad TextField
	require.Error(t, json.Unmarshal([]byte(`42`), &bad))

	out, err := json.Marshal(v.B)
	require.NoError(t, err)
	require.JSONEq(t, `"raw wins"`, string(out))
}

func TestTermRefForms(t *testing.T) {
	var refs []TermRef
	require.NoError(t, json.Unmarshal([]byte(`[
		"Finance",
		7,
		{"id": 9},
		{"name": {"raw": "Deep Dive"}, "slug": "deep", "description": "long reads"}
	]`), &refs))
	require.Equal(t, []TermRef{
		{Name: "Finance"},
		{ID: 7},
		{ID: 9},
		{Name: "Deep Dive", Slug: "deep", Description: "long reads"},
	}, refs)

	require.Error(t, json.Unmarshal([]byte(`[0]`), &refs))
	require.Error(t, json.Unmarshal([]byte(`[true]`), &refs))
}

func TestResolveTermsKeepsPositions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids, err := resolveTerms(ctx, f.store, store.KindTag, []TermRef{{Name: "b"}, {Name: "a"}, {Name: "B"}, {ID: 42}})
	require.NoError(t, err)
	require.Len(t, ids, 4)
	require.Equal(t, ids[0], ids[2])
	require.NotEqual(t, ids[0], ids[1])
	require.Equal(t, int64(42), ids[3])

	_, err = resolveTerms(ctx, f.store, store.KindCategory, []TermRef{{Name: "ok"}, {Name: "?"}})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 400, apiErr.Status())
}
