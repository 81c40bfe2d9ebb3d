package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	t.Setenv("DB_ADAPTER", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PUBLISH_USERNAME", "")
	t.Setenv("PUBLISH_PASSWORD", "")
	t.Setenv("POST_PATH", "")
	t.Setenv("BATCH_MAX_ITEMS", "")

	c, err := New()
	require.NoError(t, err)
	require.Equal(t, "sqlite", c.DBAdapter)
	require.Equal(t, "/blog/", c.PostPath)
	require.Equal(t, 25, c.BatchMaxItems)
	require.False(t, c.Configured())
}

func TestNewConfigured(t *testing.T) {
	t.Setenv("DB_ADAPTER", "sqlite")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PUBLISH_USERNAME", "editor")
	t.Setenv("PUBLISH_PASSWORD", "hunter2")
	t.Setenv("PUBLIC_URL", "https://example.com/")
	t.Setenv("POST_PATH", "articles")

	c, err := New()
	require.NoError(t, err)
	require.True(t, c.Configured())
	require.Equal(t, "https://example.com", c.PublicURL)
	require.Equal(t, "/articles/", c.PostPath)
}

func TestNewRejectsBadValues(t *testing.T) {
	t.Setenv("DB_ADAPTER", "mongo")
	_, err := New()
	require.Error(t, err)

	t.Setenv("DB_ADAPTER", "sqlite")
	t.Setenv("PORT", "http")
	_, err = New()
	require.Error(t, err)

	t.Setenv("PORT", "8080")
	t.Setenv("BATCH_MAX_ITEMS", "-3")
	_, err = New()
	require.Error(t, err)
}

func TestBuildPostgresDSN(t *testing.T) {
	c := &Config{PostgresHost: "db", PostgresUser: "u", PostgresDB: "site", PostgresPassword: "pw"}
	dsn, err := c.BuildPostgresDSN()
	require.NoError(t, err)
	require.Equal(t, "host=db port=5432 user=u dbname=site sslmode=disable password=pw", dsn)

	_, err = (&Config{}).BuildPostgresDSN()
	require.Error(t, err)
}

func TestProductionAndTrustProxy(t *testing.T) {
	t.Setenv("DB_ADAPTER", "sqlite")
	t.Setenv("PORT", "8080")
	t.Setenv("BATCH_MAX_ITEMS", "")
	t.Setenv("ENV", "Production")
	t.Setenv("TRUST_PROXY", "true")

	c, err := New()
	require.NoError(t, err)
	require.True(t, c.Production())
	require.True(t, c.TrustProxy)

	t.Setenv("ENV", "development")
	t.Setenv("TRUST_PROXY", "")
	c, err = New()
	require.NoError(t, err)
	require.False(t, c.Production())
	require.False(t, c.TrustProxy)

	t.Setenv("TRUST_PROXY", "maybe")
	_, err = New()
	require.Error(t, err)
}
