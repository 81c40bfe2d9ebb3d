// Package store persists posts, tags and categories in SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var ErrNotInitialized = errors.New("store not initialized")

// Store is the persistence surface used by the publishing handlers.
type Store interface {
	// UpsertTerm returns the term stored under slug, inserting it first when
	// absent. An existing term is returned unchanged; created reports which
	// case happened.
	UpsertTerm(ctx context.Context, kind Kind, name, slug, description string) (term Term, created bool, err error)
	CreatePost(ctx context.Context, p NewPost) (int64, error)
	LinkPostTerms(ctx context.Context, postID int64, tagIDs, categoryIDs []int64) error
	ReadPosts(ctx context.Context, f PostFilter) ([]Post, error)
	CountPosts(ctx context.Context, f PostFilter) (int, error)
	// WithTx runs fn against a store bound to one transaction, committing
	// when fn returns nil and rolling back otherwise.
	WithTx(ctx context.Context, fn func(Store) error) error
	Ping(ctx context.Context) error
	Close() error
}

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements Store on database/sql for both dialects.
type SQLStore struct {
	db      *sql.DB
	q       dbtx
	dialect Dialect
	inTx    bool
}

// OpenSQLite opens (creating when needed) the database file at path and
// migrates it to the latest schema. Writes are serialized through a single
// connection.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	if err := Migrate(SQLite, path, 0); err != nil {
		return nil, err
	}

	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	d.SetMaxOpenConns(1)
	for _, pragma := range []string{`PRAGMA foreign_keys = ON`, `PRAGMA busy_timeout = 5000`, `PRAGMA journal_mode = WAL`} {
		if _, err := d.ExecContext(ctx, pragma); err != nil {
			d.Close()
			return nil, fmt.Errorf("sqlite %s: %w", pragma, err)
		}
	}
	return &SQLStore{db: d, q: d, dialect: SQLite}, nil
}

// OpenPostgres connects to dsn and applies pending migrations.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	if err := Migrate(Postgres, dsn, 0); err != nil {
		return nil, err
	}
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := d.PingContext(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return &SQLStore{db: d, q: d, dialect: Postgres}, nil
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) UpsertTerm(ctx context.Context, kind Kind, name, slug, description string) (Term, bool, error) {
	if s.q == nil {
		return Term{}, false, ErrNotInitialized
	}
	if slug == "" {
		return Term{}, false, fmt.Errorf("upsert %s: empty slug", kind)
	}

	var id int64
	err := s.q.QueryRowContext(ctx,
		s.rebind(`INSERT INTO `+kind.table()+`(name, slug, description) VALUES(?, ?, ?) ON CONFLICT(slug) DO NOTHING RETURNING id`),
		name, slug, description,
	).Scan(&id)
	switch {
	case err == nil:
		return Term{ID: id, Kind: kind, Name: name, Slug: slug, Description: description}, true, nil
	case errors.Is(err, sql.ErrNoRows):
		t, err := s.termBySlug(ctx, kind, slug)
		return t, false, err
	default:
		return Term{}, false, fmt.Errorf("upsert %s: %w", kind, err)
	}
}

func (s *SQLStore) termBySlug(ctx context.Context, kind Kind, slug string) (Term, error) {
	t := Term{Kind: kind}
	err := s.q.QueryRowContext(ctx,
		s.rebind(`SELECT id, name, slug, description FROM `+kind.table()+` WHERE slug = ?`), slug,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.Description)
	if err != nil {
		return Term{}, fmt.Errorf("load %s %q: %w", kind, slug, err)
	}
	return t, nil
}

func (s *SQLStore) CreatePost(ctx context.Context, p NewPost) (int64, error) {
	if s.q == nil {
		return 0, ErrNotInitialized
	}
	var id int64
	err := s.q.QueryRowContext(ctx,
		s.rebind(`INSERT INTO posts(title, content, excerpt, slug, status, published_at, author_id) VALUES(?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		p.Title, p.Content, p.Excerpt, p.Slug, p.Status, formatTime(p.PublishedAt), p.AuthorID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create post: %w", err)
	}
	return id, nil
}

func (s *SQLStore) LinkPostTerms(ctx context.Context, postID int64, tagIDs, categoryIDs []int64) error {
	if s.q == nil {
		return ErrNotInitialized
	}
	if err := s.link(ctx, KindTag, postID, tagIDs); err != nil {
		return err
	}
	return s.link(ctx, KindCategory, postID, categoryIDs)
}

func (s *SQLStore) link(ctx context.Context, kind Kind, postID int64, ids []int64) error {
	query := s.rebind(`INSERT INTO ` + kind.linkTable() + `(post_id, ` + kind.linkColumn() + `, position) VALUES(?, ?, ?) ON CONFLICT DO NOTHING`)
	for i, id := range ids {
		if _, err := s.q.ExecContext(ctx, query, postID, id, i); err != nil {
			return fmt.Errorf("link post %d to %s %d: %w", postID, kind, id, err)
		}
	}
	return nil
}

func (s *SQLStore) ReadPosts(ctx context.Context, f PostFilter) ([]Post, error) {
	if s.q == nil {
		return nil, ErrNotInitialized
	}
	f = f.normalize()

	where, args := f.where()
	query := `SELECT id, title, content, excerpt, slug, status, published_at, author_id FROM posts` + where
	query += ` ORDER BY published_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)

	rows, err := s.q.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	posts := make([]Post, 0, f.PerPage)
	for rows.Next() {
		var p Post
		var published string
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.Excerpt, &p.Slug, &p.Status, &published, &p.AuthorID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan post: %w", err)
		}
		if p.PublishedAt, err = parseTime(published); err != nil {
			rows.Close()
			return nil, fmt.Errorf("post %d published_at: %w", p.ID, err)
		}
		posts = append(posts, p)
	}
	// The SQLite pool holds a single connection, so rows must be released
	// before the link queries below.
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range posts {
		if posts[i].TagIDs, err = s.linkedIDs(ctx, KindTag, posts[i].ID); err != nil {
			return nil, err
		}
		if posts[i].CategoryIDs, err = s.linkedIDs(ctx, KindCategory, posts[i].ID); err != nil {
			return nil, err
		}
	}
	return posts, nil
}

func (s *SQLStore) linkedIDs(ctx context.Context, kind Kind, postID int64) ([]int64, error) {
	rows, err := s.q.QueryContext(ctx,
		s.rebind(`SELECT `+kind.linkColumn()+` FROM `+kind.linkTable()+` WHERE post_id = ? ORDER BY position`), postID)
	if err != nil {
		return nil, fmt.Errorf("list %s links: %w", kind, err)
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLStore) CountPosts(ctx context.Context, f PostFilter) (int, error) {
	if s.q == nil {
		return 0, ErrNotInitialized
	}
	where, args := f.where()
	var n int
	if err := s.q.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM posts`+where), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// open starts the unit of work that persist later makes durable.
func (s *SQLStore) open(ctx context.Context) (*sql.Tx, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return tx, nil
}

func (s *SQLStore) persist(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLStore) WithTx(ctx context.Context, fn func(Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.open(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&SQLStore{db: s.db, q: tx, dialect: s.dialect, inTx: true}); err != nil {
		return err
	}
	if err := s.persist(tx); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	if s.db == nil || s.inTx {
		return nil
	}
	return s.db.Close()
}
